package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"obsledger/internal/services/nightly/domain"
	"obsledger/internal/services/nightly/service"
)

var (
	reportTelescope   string
	reportDate        string
	reportProject     string
	reportIncludeCals bool
	reportFormat      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the time accounting for one telescope night",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportTelescope, "telescope", "", "Telescope name, e.g. JCMT")
	reportCmd.Flags().StringVar(&reportDate, "date", "", "UT date, YYYY-MM-DD")
	reportCmd.Flags().StringVar(&reportProject, "project", "", "Restrict to one project")
	reportCmd.Flags().BoolVar(&reportIncludeCals, "include-cals", false, "Include the project's relevant calibrations")
	reportCmd.Flags().StringVar(&reportFormat, "format", "table", "Output format: table, csv, json")
	_ = reportCmd.MarkFlagRequired("telescope")
	_ = reportCmd.MarkFlagRequired("date")
}

func runReport(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(svc *service.Service) error {
		rep, err := svc.NightAccounting(cmd.Context(), domain.NightInput{
			Telescope:   reportTelescope,
			UTDate:      reportDate,
			Project:     reportProject,
			IncludeCals: reportIncludeCals,
		})
		if err != nil {
			return err
		}
		return printReport(rep)
	})
}

func printReport(rep domain.AccountingReport) error {
	switch reportFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "csv":
		fmt.Println("date,project,seconds")
		for _, e := range rep.Entries {
			fmt.Printf("%s,%s,%d\n", e.Date, e.ProjectID, e.Seconds)
		}
	default: // table
		fmt.Printf("%s %s\n", rep.Telescope, rep.UTDate)
		fmt.Println("--------------------------------")
		var total int64
		for _, e := range rep.Entries {
			fmt.Printf("%-12s %-16s %s\n", e.Date, e.ProjectID, formatSeconds(e.Seconds))
			total += e.Seconds
		}
		fmt.Println("--------------------------------")
		fmt.Printf("%-29s %s\n", "Total", formatSeconds(total))
		for _, w := range rep.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
	}
	return nil
}

func formatSeconds(s int64) string {
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

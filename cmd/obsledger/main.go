package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"obsledger/internal/platform/config"
	"obsledger/internal/platform/logger"
	"obsledger/internal/platform/store"
	nightlymod "obsledger/internal/services/nightly/module"
	"obsledger/internal/services/nightly/repo"
	"obsledger/internal/services/nightly/service"
)

var rootCmd = &cobra.Command{
	Use:   "obsledger",
	Short: "Telescope night time accounting",
	Long: `obsledger reports how each telescope night's observing time divides
across science projects, calibrations, weather and unexplained gaps.`,
}

func main() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(commentCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withService opens the archive store and hands a wired nightly service to fn
func withService(ctx context.Context, fn func(*service.Service) error) error {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	logger.Init(logger.FromEnv())
	l := logger.Get()

	st, err := store.Open(ctx, store.Config{
		AppName: "obsledger",
		PG: store.PGConfig{
			Enabled:  true,
			URL:      pgCfg.MustString("DBURL"),
			MaxConns: int32(pgCfg.MayInt("MAX_CONNS", 2)),
		},
	}, store.WithLogger(*l))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(ctx); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	opts := nightlymod.FromConfig(root)
	svc := service.New(st.PG, repo.NewPG(), service.Config{
		GapThreshold: opts.GapThreshold,
		ShiftEnds:    opts.ShiftEnds,
	})
	return fn(svc)
}

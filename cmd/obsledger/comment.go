package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"obsledger/internal/services/nightly/domain"
	"obsledger/internal/services/nightly/service"
)

var (
	commentTelescope  string
	commentInstrument string
	commentAuthor     string
	commentText       string
	commentStatus     string
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Record an operator comment used to classify time gaps",
	Args:  cobra.NoArgs,
	RunE:  runComment,
}

func init() {
	commentCmd.Flags().StringVar(&commentTelescope, "telescope", "", "Telescope name, e.g. JCMT")
	commentCmd.Flags().StringVar(&commentInstrument, "instrument", "", "Instrument the comment applies to")
	commentCmd.Flags().StringVar(&commentAuthor, "author", "", "Comment author")
	commentCmd.Flags().StringVar(&commentText, "text", "", "Comment text")
	commentCmd.Flags().StringVar(&commentStatus, "status", "", "Gap classification: WEATHER, INSTRUMENT, FAULT, NEXT_PROJECT, PREV_PROJECT")
	_ = commentCmd.MarkFlagRequired("telescope")
	_ = commentCmd.MarkFlagRequired("instrument")
	_ = commentCmd.MarkFlagRequired("author")
	_ = commentCmd.MarkFlagRequired("text")
}

func runComment(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(svc *service.Service) error {
		rec, err := svc.AddComment(cmd.Context(), domain.CommentInput{
			Telescope:  commentTelescope,
			Instrument: commentInstrument,
			Author:     commentAuthor,
			Text:       commentText,
			Status:     commentStatus,
		})
		if err != nil {
			return err
		}
		fmt.Printf("recorded comment %s on %s/%s\n", rec.ID, rec.Telescope, rec.Instrument)
		return nil
	})
}

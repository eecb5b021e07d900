package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse digest postings interactively (TUI)",
	Long:  "Shows the company picker TUI, then launches the split-pane review view over postings at or above the threshold.",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().Float64("threshold", -1, "minimum score to show (default: digest.threshold)")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	threshold := a.cfg.Digest.Threshold
	if t, _ := cmd.Flags().GetFloat64("threshold"); t >= 0 {
		threshold = t
	}

	rows, err := review.RunLoader("postings", func(ctx context.Context) ([]model.ScoredPosting, error) {
		return a.store.AboveThreshold(ctx, threshold)
	})
	if err != nil {
		return fmt.Errorf("loading postings: %w", err)
	}
	if len(rows) == 0 {
		fmt.Printf("No postings scored at or above %.0f.\n", threshold)
		return nil
	}

	groups := review.GroupByCompany(rows)
	for {
		idx, err := review.RunCompanyPicker(groups)
		if err != nil {
			return err
		}
		if idx < 0 {
			return nil
		}

		quit, err := review.RunReviewTUI(groups[idx].Name, groups[idx].Rows)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

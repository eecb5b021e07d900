package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long:  "Source, classify, harvest, score and notify in one pass, then exit.",
	RunE:  runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.lock(); err != nil {
		return err
	}

	st, err := a.orchestrator.Run(ctx, nil)
	printSummary(st)
	if err != nil {
		a.logger.Error("pipeline run failed", zap.Error(err))
		return err
	}
	return nil
}

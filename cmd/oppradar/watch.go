package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline on an interval",
	Long:  "Runs one pipeline immediately, then once per schedule.interval; blocks until SIGINT/SIGTERM.",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	sched := scheduler.NewScheduler(a.orchestrator, a.cfg.Schedule.Interval, a.logger)
	if err := sched.Run(ctx); err != nil {
		a.logger.Error("scheduler error", zap.Error(err))
		return err
	}

	a.logger.Info("goodbye")
	return nil
}

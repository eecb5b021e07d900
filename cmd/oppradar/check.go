package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/board"
	"github.com/amishk599/oppradar/internal/pipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check <domain>...",
	Short: "Detect job boards and print matching postings, then exit",
	Long:  "One-shot probe: detects each domain's job board and prints the postings that pass the title filter. Does not write to the store.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := pipeline.NewFactory(cfg, nil, nil, logger)
	for _, domain := range args {
		domain = strings.ToLower(strings.TrimSpace(domain))
		desc, postings, err := f.Check(ctx, domain)
		if err != nil {
			logger.Error("check failed", zap.String("domain", domain), zap.Error(err))
			continue
		}

		fmt.Printf("%s → %s (%d matching postings)\n", domain, board.Describe(desc), len(postings))
		for _, p := range postings {
			fmt.Printf("  %-50s %-25s %s\n", p.Title, p.Location, p.URL)
		}
	}

	logger.Info("check complete")
	return nil
}

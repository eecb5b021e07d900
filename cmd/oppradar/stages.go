package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amishk599/oppradar/internal/model"
	"github.com/amishk599/oppradar/internal/pipeline"
	"github.com/amishk599/oppradar/internal/sourcing"
	"github.com/amishk599/oppradar/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [domain...]",
	Short: "Classify domains, then harvest, score and notify",
	Long: `Classifies the given domains (or the sourced candidates when none are
given) and continues through the rest of the pipeline. Use --only to stop
after classification.`,
	RunE: runClassify,
}

var harvestCmd = &cobra.Command{
	Use:   "harvest [domain...]",
	Short: "Harvest postings for stored companies, then score and notify",
	Long:  "Harvests the given company domains, or every stored company when none are given.",
	RunE:  runHarvest,
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score unscored postings, then notify",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, pipeline.StageScore, nil)
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Write today's digest and send the notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, pipeline.StageNotify, nil)
	},
}

func init() {
	for _, c := range []*cobra.Command{classifyCmd, harvestCmd, scoreCmd} {
		c.Flags().Bool("only", false, "run just this stage")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(digestCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return runRange(pipeline.StageSource, lastStage(cmd, pipeline.StageClassify), staticInput(nil))
	}
	cands := make([]model.Candidate, 0, len(args))
	for _, arg := range args {
		domain := strings.ToLower(strings.TrimSpace(arg))
		if d, ok := sourcing.ExtractDomain(domain); ok {
			domain = d
		}
		cands = append(cands, model.Candidate{Domain: domain, SourceQuery: "cli"})
	}
	return runStage(cmd, pipeline.StageClassify, cands)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	return runStageWith(cmd, pipeline.StageHarvest, func(ctx context.Context, a *app) (any, error) {
		if len(args) == 0 {
			companies, err := a.store.Companies(ctx)
			if err != nil {
				return nil, fmt.Errorf("listing companies: %w", err)
			}
			ids := make([]string, 0, len(companies))
			for _, c := range companies {
				ids = append(ids, c.ID)
			}
			return ids, nil
		}
		out := make([]model.ClassifiedCompany, 0, len(args))
		for _, domain := range args {
			c, err := a.store.CompanyByDomain(ctx, strings.ToLower(strings.TrimSpace(domain)))
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("company %s is not stored; classify it first", domain)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, model.ClassifiedCompany{CompanyID: c.ID, Domain: c.Domain})
		}
		return out, nil
	})
}

func runStage(cmd *cobra.Command, stage string, in any) error {
	return runStageWith(cmd, stage, staticInput(in))
}

// runStageWith runs from stage to the end, or only stage with --only. input
// builds the stage input once the app is up.
func runStageWith(cmd *cobra.Command, stage string, input stageInput) error {
	return runRange(stage, lastStage(cmd, stage), input)
}

type stageInput func(ctx context.Context, a *app) (any, error)

func staticInput(in any) stageInput {
	return func(context.Context, *app) (any, error) { return in, nil }
}

func lastStage(cmd *cobra.Command, stage string) string {
	if only, _ := cmd.Flags().GetBool("only"); only {
		return stage
	}
	return pipeline.StageNotify
}

func runRange(from, to string, input stageInput) error {
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

	in, err := input(ctx, a)
	if err != nil {
		return err
	}

	st, err := a.orchestrator.RunRange(ctx, from, to, in)
	printSummary(st)
	if err != nil {
		a.logger.Error("pipeline run failed", zap.Error(err))
		return err
	}
	return nil
}

// Command processor is the tournament rating recomputation CLI.
//
// Usage:
//
//	processor process
//	processor process --tournament 339 --dry-run
//	processor process --ruleset 0 --from 2023-01-01 --decay-through 2024-06-01
//	processor ranks
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tourneyrank/processor/internal/config"
	"github.com/tourneyrank/processor/internal/db"
	"github.com/tourneyrank/processor/internal/loader"
	"github.com/tourneyrank/processor/internal/messaging"
	"github.com/tourneyrank/processor/internal/pipeline"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "processor",
		Short: "Tournament rating recomputation CLI",
	}

	root.AddCommand(processCmd())
	root.AddCommand(ranksCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// process command
// --------------------------------------------------------------------------

func processCmd() *cobra.Command {
	var (
		tournamentID  int
		rulesets      []int
		from, to      string
		decayThrough  string
		checkpoint    bool
		dryRun        bool
		workers       int
		correlationID string
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Recompute ratings, ranks, and statistics from the competition record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				opts := pipeline.Options{
					DryRun:        dryRun,
					Checkpoint:    checkpoint,
					Workers:       workers,
					CorrelationID: correlationID,
					Filter: loader.Filter{
						TournamentID: tournamentID,
						Rulesets:     pipeline.Rulesets(rulesets, logger),
					},
				}
				if len(opts.Filter.Rulesets) == 0 {
					opts.Filter.Rulesets = pipeline.Rulesets(cfg.Rulesets, logger)
				}

				var err error
				if opts.Filter.From, err = parseTime(from); err != nil {
					return fmt.Errorf("parse --from: %w", err)
				}
				if opts.Filter.To, err = parseTime(to); err != nil {
					return fmt.Errorf("parse --to: %w", err)
				}
				if opts.DecayThrough, err = parseTime(decayThrough); err != nil {
					return fmt.Errorf("parse --decay-through: %w", err)
				}

				var publisher *messaging.Publisher
				if cfg.AMQPEnabled && !dryRun {
					publisher, err = messaging.Connect(cfg, logger)
					if err != nil {
						// The run is still worth doing without the broker.
						logger.Error("rabbitmq unavailable, continuing without messaging", "error", err)
					} else {
						defer publisher.Close()
					}
				}

				result, err := pipeline.New(cfg, pool, publisher, logger).Run(ctx, opts)
				if err != nil {
					return err
				}
				logger.Info("run finished",
					"summary", result.Summary(),
					"write", result.Write.Summary(),
					"rejections", result.RejectionSummary)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&tournamentID, "tournament", 0, "Restrict the run to one tournament ID")
	cmd.Flags().IntSliceVar(&rulesets, "ruleset", nil, "Ruleset codes to process (repeatable; default all)")
	cmd.Flags().StringVar(&from, "from", "", "Only matches starting at or after this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Only matches starting before this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&decayThrough, "decay-through", "", "Apply a final decay pass as of this time")
	cmd.Flags().BoolVar(&checkpoint, "checkpoint", false, "On cancellation, commit the fully-applied prefix instead of discarding the run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute everything but commit nothing")
	cmd.Flags().IntVar(&workers, "workers", 0, "Statistics worker count (default from WORKERS env)")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "Correlation ID attached to published events")
	return cmd
}

// --------------------------------------------------------------------------
// ranks command
// --------------------------------------------------------------------------

func ranksCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "ranks",
		Short: "Recompute ranks and percentiles from stored ratings without replaying",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				start := time.Now()
				result, err := pipeline.New(cfg, pool, nil, logger).RecomputeRanks(ctx, dryRun)
				if err != nil {
					return err
				}
				logger.Info("ranks recomputed",
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute ranks but commit nothing")
	return cmd
}

// run handles config loading, DB connection, and context cancellation.
func run(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

// parseTime accepts RFC3339 or a bare date. Empty input is the zero time.
func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// Package pipeline wires the full processing run: load, filter, order,
// rate, aggregate, rank, persist, announce. Each stage consumes the
// previous stage's in-memory output; nothing re-reads the store once the
// loader returns.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tourneyrank/processor/internal/config"
	"github.com/tourneyrank/processor/internal/db"
	"github.com/tourneyrank/processor/internal/domain"
	"github.com/tourneyrank/processor/internal/eligibility"
	"github.com/tourneyrank/processor/internal/loader"
	"github.com/tourneyrank/processor/internal/messaging"
	"github.com/tourneyrank/processor/internal/ranking"
	"github.com/tourneyrank/processor/internal/rating"
	"github.com/tourneyrank/processor/internal/stats"
	"github.com/tourneyrank/processor/internal/timeline"
	"github.com/tourneyrank/processor/internal/writer"
)

// Options configures one run.
type Options struct {
	Filter loader.Filter
	// DryRun computes everything but commits nothing.
	DryRun bool
	// DecayThrough, when set, applies a closing decay pass as of this
	// time after the replay. Left zero, no final decay happens and the
	// run is a pure function of the competition record.
	DecayThrough time.Time
	// Checkpoint persists the fully-applied prefix of the run when it is
	// cancelled instead of discarding everything. Checkpointed matches
	// keep their processing status and no events are published for them.
	Checkpoint    bool
	Workers       int
	CorrelationID string
}

// Result summarizes a completed run.
type Result struct {
	TournamentsProcessed int
	MatchesProcessed     int
	GamesRated           int
	PlayersRated         int
	FinalDecayCycles     int
	RejectionSummary     string
	Write                *writer.Result
	Duration             time.Duration
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"tournaments=%d matches=%d games=%d players=%d final_decay_cycles=%d duration=%s",
		r.TournamentsProcessed, r.MatchesProcessed, r.GamesRated,
		r.PlayersRated, r.FinalDecayCycles, r.Duration.Round(time.Second),
	)
}

// Pipeline holds the run collaborators. The publisher is optional; nil
// disables messaging.
type Pipeline struct {
	cfg       *config.Config
	pool      *db.Pool
	publisher *messaging.Publisher
	logger    *slog.Logger
}

func New(cfg *config.Config, pool *db.Pool, publisher *messaging.Publisher, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, pool: pool, publisher: publisher, logger: logger}
}

// Run executes the whole pipeline and returns its summary. Any stage error
// aborts the run with in-memory state discarded; the store is only touched
// by the final commit. With checkpointing enabled, cancellation during the
// replay commits the fully-applied prefix instead of discarding it.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	proj, err := loader.New(p.pool, p.logger).Load(ctx, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("load projection: %w", err)
	}

	tally := eligibility.NewTally()
	tl, report := timeline.Build(proj.Tournaments, tally, p.logger)
	p.logger.Info("timeline built",
		"games", len(tl.Entries),
		"rejections", tally.Summary(),
		"anomalies", report.Summary())

	var rulesets []domain.Ruleset
	for _, code := range opts.Filter.Rulesets {
		rulesets = append(rulesets, domain.Ruleset(code))
	}
	engine := rating.NewEngine(p.ratingConfig(), proj.Players, rulesets, p.logger)
	partial := false
	if _, err := engine.Replay(ctx, tl); err != nil {
		if !opts.Checkpoint || ctx.Err() == nil {
			return nil, fmt.Errorf("replay timeline: %w", err)
		}
		// Cancelled mid-replay with checkpointing on: keep the applied
		// prefix and persist it on a context detached from the cancel.
		partial = true
		tl.Entries = tl.Entries[:engine.Applied()]
		ctx = context.WithoutCancel(ctx)
		p.logger.Warn("run cancelled, committing checkpoint",
			"games_applied", len(tl.Entries))
	}

	var decayCycles int
	if !partial {
		decayCycles = engine.FinalDecay(opts.DecayThrough)
	}
	final := engine.Tracker().Snapshot()

	ranking.Assign(final, engine.Tracker().Countries())

	workers := opts.Workers
	if workers == 0 {
		workers = p.cfg.Workers
	}
	aggregates, err := stats.NewAggregator(workers, p.logger).Compute(ctx, tl, final)
	if err != nil {
		return nil, fmt.Errorf("aggregate statistics: %w", err)
	}

	batch := &writer.Batch{Ratings: final, Stats: aggregates, Partial: partial}
	tournamentIDs := collectScope(tl, batch)

	write, err := writer.New(p.pool, opts.DryRun, p.logger).Commit(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}

	if p.publisher != nil && !opts.DryRun && !partial {
		for _, id := range tournamentIDs {
			if err := p.publisher.PublishTournamentProcessed(ctx, id, opts.CorrelationID); err != nil {
				p.logger.Error("publish tournament processed event failed",
					"tournament_id", id, "error", err)
			}
		}
	}

	return &Result{
		TournamentsProcessed: len(tournamentIDs),
		MatchesProcessed:     len(batch.MatchIDs),
		GamesRated:           len(tl.Entries),
		// The snapshot covers the whole seeded population; the per-player
		// timeline index counts who actually competed this run.
		PlayersRated: len(tl.PlayerEntries),
		FinalDecayCycles:     decayCycles,
		RejectionSummary:     tally.Summary(),
		Write:                write,
		Duration:             time.Since(start),
	}, nil
}

// RecomputeRanks reassigns global ranks, country ranks, and percentiles
// over the full stored population without replaying any games.
func (p *Pipeline) RecomputeRanks(ctx context.Context, dryRun bool) (*writer.Result, error) {
	states, countries, err := loader.New(p.pool, p.logger).Ratings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load player ratings: %w", err)
	}
	ranking.Assign(states, countries)
	return writer.New(p.pool, dryRun, p.logger).CommitRanks(ctx, states)
}

// ratingConfig maps the environment configuration onto the rating model
// parameters.
func (p *Pipeline) ratingConfig() rating.Config {
	rc := rating.DefaultConfig()
	rc.DefaultRating = p.cfg.DefaultRating
	rc.DefaultVolatility = p.cfg.DefaultVolatility
	rc.Beta = p.cfg.Beta
	rc.Kappa = p.cfg.Kappa
	rc.RatingFloor = p.cfg.RatingFloor
	rc.VolatilityCeiling = p.cfg.DefaultVolatility
	rc.DecayDays = p.cfg.DecayDays
	rc.DecayRate = p.cfg.DecayRate
	rc.DecayMinimum = p.cfg.DecayMinimum
	rc.VolatilityGrowthRate = p.cfg.VolatilityGrowthRate
	return rc
}

// collectScope fills the batch's ID scopes from the timeline and returns
// the distinct tournament IDs in processing order.
func collectScope(tl *timeline.Timeline, batch *writer.Batch) []int {
	seenMatch := make(map[int]bool)
	seenTournament := make(map[int]bool)
	var tournamentIDs []int
	for i := range tl.Entries {
		entry := &tl.Entries[i]
		batch.GameIDs = append(batch.GameIDs, entry.Game.ID)
		if !seenMatch[entry.Match.ID] {
			seenMatch[entry.Match.ID] = true
			batch.MatchIDs = append(batch.MatchIDs, entry.Match.ID)
		}
		if !seenTournament[entry.Tournament.ID] {
			seenTournament[entry.Tournament.ID] = true
			batch.TournamentIDs = append(batch.TournamentIDs, entry.Tournament.ID)
			tournamentIDs = append(tournamentIDs, entry.Tournament.ID)
		}
	}
	return tournamentIDs
}

// Rulesets converts the configured ruleset codes for the loader filter,
// dropping anything unknown.
func Rulesets(codes []int, logger *slog.Logger) []int {
	var out []int
	for _, c := range codes {
		if _, err := domain.ParseRuleset(c); err != nil {
			logger.Warn("ignoring unknown ruleset code", "code", c)
			continue
		}
		out = append(out, c)
	}
	return out
}

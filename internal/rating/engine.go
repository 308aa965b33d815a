package rating

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/tourneyrank/processor/internal/domain"
	"github.com/tourneyrank/processor/internal/timeline"
)

// progressEvery controls how often the replay loop logs progress.
const progressEvery = 500

// Engine replays the global game timeline through the rating model. It is
// the sole owner of all player state for the duration of a run; the replay
// is strictly sequential because every update depends on the state left by
// the previous one.
type Engine struct {
	cfg     Config
	model   *PlackettLuce
	tracker *Tracker
	decayer *Decayer
	logger  *slog.Logger
	applied int
}

// NewEngine builds an engine with the full player population seeded into
// its tracker for the given rulesets (all rulesets when nil).
func NewEngine(cfg Config, players []*domain.PlayerInfo, rulesets []domain.Ruleset, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		model:   NewPlackettLuce(cfg.Beta, cfg.Kappa),
		tracker: NewTracker(cfg, players, rulesets),
		decayer: NewDecayer(cfg),
		logger:  logger,
	}
}

// Tracker exposes the engine's state tracker. Callers must not touch it
// until Replay has returned.
func (e *Engine) Tracker() *Tracker { return e.tracker }

// Applied reports how many timeline entries have been fully applied. After a
// cancelled Replay it tells the caller which prefix of the timeline the
// tracker state reflects.
func (e *Engine) Applied() int { return e.applied }

// Replay processes every timeline entry in order, mutating player states
// and appending adjustments. It honors cancellation at game boundaries: a
// game is either fully applied or not applied at all. Data anomalies skip
// the game; invariant violations abort the run, since they mean timeline
// construction is broken and downstream state would be corrupt.
func (e *Engine) Replay(ctx context.Context, tl *timeline.Timeline) ([]*domain.PlayerRating, error) {
	var lastStart time.Time
	lastGameID := 0

	for i := range tl.Entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay cancelled after %d of %d games: %w", i, len(tl.Entries), err)
		}
		entry := &tl.Entries[i]
		game := entry.Game

		if game.StartTime.Before(lastStart) {
			return nil, fmt.Errorf(
				"non-monotonic timeline: game %d starts %s before game %d at %s",
				game.ID, game.StartTime, lastGameID, lastStart)
		}
		lastStart, lastGameID = game.StartTime, game.ID

		if err := e.processGame(entry); err != nil {
			return nil, err
		}
		e.applied = i + 1

		if (i+1)%progressEvery == 0 {
			e.logger.Info("replay progress", "processed", i+1, "total", len(tl.Entries))
		}
	}

	return e.tracker.Snapshot(), nil
}

// processGame applies one game's outcome to all participants.
func (e *Engine) processGame(entry *timeline.Entry) error {
	game := entry.Game

	seen := make(map[int]bool)
	for _, team := range entry.Teams {
		teamSeen := make(map[int]bool)
		for _, s := range team.Scores {
			if teamSeen[s.PlayerID] {
				return fmt.Errorf(
					"player %d appears twice on team %s in game %d (match %d)",
					s.PlayerID, team.Team, game.ID, game.MatchID)
			}
			teamSeen[s.PlayerID] = true
			if seen[s.PlayerID] {
				return fmt.Errorf(
					"player %d appears on multiple teams in game %d (match %d)",
					s.PlayerID, game.ID, game.MatchID)
			}
			seen[s.PlayerID] = true
		}
	}

	// Decay precedes the match update so inactivity adjustments land
	// before, never after, the game that ends the inactivity.
	states := make([][]*domain.PlayerRating, len(entry.Teams))
	for ti, team := range entry.Teams {
		states[ti] = make([]*domain.PlayerRating, len(team.Scores))
		for si, s := range team.Scores {
			state := e.tracker.GetOrCreate(s.PlayerID, game.Ruleset)
			e.decayer.Apply(state, game.StartTime)
			states[ti][si] = state
		}
	}

	priors := make([][]Rating, len(states))
	for ti, team := range states {
		priors[ti] = make([]Rating, len(team))
		for si, state := range team {
			priors[ti][si] = Rating{Mu: state.Rating, Sigma: state.Volatility}
		}
	}

	ranks := teamRanks(entry, game)
	posteriors := e.model.Rate(priors, ranks)
	if posteriors == nil {
		return fmt.Errorf("rating model returned no result for game %d", game.ID)
	}

	for ti, team := range states {
		for si, state := range team {
			post := posteriors[ti][si]
			newRating := math.Max(post.Mu, e.cfg.RatingFloor)
			newVolatility := math.Min(post.Sigma, e.cfg.VolatilityCeiling)

			state.Adjustments = append(state.Adjustments, domain.RatingAdjustment{
				PlayerID:         state.PlayerID,
				Ruleset:          state.Ruleset,
				MatchID:          game.MatchID,
				Type:             domain.AdjustmentMatch,
				RatingBefore:     state.Rating,
				RatingAfter:      newRating,
				VolatilityBefore: state.Volatility,
				VolatilityAfter:  newVolatility,
				Timestamp:        game.StartTime,
			})
			state.Rating = newRating
			state.Volatility = newVolatility
			state.LastPlayed = game.StartTime
		}
	}
	return nil
}

// FinalDecay applies a closing decay pass to every activated player as of
// the given reference time. The caller supplies the time explicitly so the
// run stays a deterministic function of its inputs.
func (e *Engine) FinalDecay(asOf time.Time) int {
	if asOf.IsZero() {
		return 0
	}
	applied := 0
	for _, state := range e.tracker.Snapshot() {
		applied += e.decayer.Apply(state, asOf)
	}
	return applied
}

// teamRanks orders the entry's teams by the game's scoring criterion and
// returns competition-style ranks (1 is best; exactly equal aggregates
// share a rank).
func teamRanks(entry *timeline.Entry, game *domain.Game) []int {
	k := len(entry.Teams)
	values := make([]float64, k)
	for i, team := range entry.Teams {
		for _, s := range team.Scores {
			values[i] += s.ScoringValue(game.ScoringType, game.Ruleset)
		}
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})

	ranks := make([]int, k)
	for pos, idx := range order {
		if pos > 0 && values[idx] == values[order[pos-1]] {
			ranks[idx] = ranks[order[pos-1]]
		} else {
			ranks[idx] = pos + 1
		}
	}
	return ranks
}

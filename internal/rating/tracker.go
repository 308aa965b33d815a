package rating

import (
	"sort"

	"github.com/tourneyrank/processor/internal/domain"
)

type stateKey struct {
	playerID int
	ruleset  domain.Ruleset
}

// Tracker holds every player's mutable rating state for the duration of a
// run. The engine is its only writer; once the run completes, Snapshot
// publishes an immutable view for the aggregation stages.
type Tracker struct {
	states    map[stateKey]*domain.PlayerRating
	countries map[int]string
	cfg       Config
}

// NewTracker builds a tracker with every known player seeded up front for
// each processed ruleset. Seeds derive from external osu! rank data (or the
// configured default when no rank is known), never from a previous run's
// output, so replaying the same record always produces the same ratings
// and the rank stages see the whole population.
func NewTracker(cfg Config, players []*domain.PlayerInfo, rulesets []domain.Ruleset) *Tracker {
	if len(rulesets) == 0 {
		rulesets = domain.Rulesets
	}
	t := &Tracker{
		states:    make(map[stateKey]*domain.PlayerRating, len(players)*len(rulesets)),
		countries: make(map[int]string, len(players)),
		cfg:       cfg,
	}
	for _, p := range players {
		if p.Country != "" {
			t.countries[p.ID] = p.Country
		}
		for _, ruleset := range rulesets {
			t.states[stateKey{p.ID, ruleset}] = &domain.PlayerRating{
				PlayerID:   p.ID,
				Ruleset:    ruleset,
				Rating:     cfg.InitialRating(p.Ranks[ruleset].Rank(), ruleset),
				Volatility: cfg.DefaultVolatility,
			}
		}
	}
	return t
}

// Get returns the player's state if present.
func (t *Tracker) Get(playerID int, ruleset domain.Ruleset) (*domain.PlayerRating, bool) {
	s, ok := t.states[stateKey{playerID, ruleset}]
	return s, ok
}

// GetOrCreate returns the player's state, creating a default-seeded one for
// participants missing from the loaded player set.
func (t *Tracker) GetOrCreate(playerID int, ruleset domain.Ruleset) *domain.PlayerRating {
	key := stateKey{playerID, ruleset}
	if s, ok := t.states[key]; ok {
		return s
	}
	s := &domain.PlayerRating{
		PlayerID:   playerID,
		Ruleset:    ruleset,
		Rating:     t.cfg.DefaultRating,
		Volatility: t.cfg.DefaultVolatility,
	}
	t.states[key] = s
	return s
}

// Country returns the player's country code, empty when unknown.
func (t *Tracker) Country(playerID int) string { return t.countries[playerID] }

// Countries returns the country mapping for rank computation.
func (t *Tracker) Countries() map[int]string { return t.countries }

// Len reports the number of tracked (player, ruleset) states.
func (t *Tracker) Len() int { return len(t.states) }

// Snapshot returns all tracked states ordered by (ruleset, player ID).
// The slice is newly allocated; the states themselves are the live objects
// and must not be mutated after the run completes.
func (t *Tracker) Snapshot() []*domain.PlayerRating {
	out := make([]*domain.PlayerRating, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ruleset != out[j].Ruleset {
			return out[i].Ruleset < out[j].Ruleset
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}

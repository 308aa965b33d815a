package rating

import (
	"errors"
	"math"
	"time"

	"github.com/tourneyrank/processor/internal/domain"
)

// Decay validation outcomes. These are informational: a player failing a
// decay precondition simply receives no decay adjustments.
var (
	errNeverPlayed     = errors.New("player has no rated games")
	errPlayerActive    = errors.New("player is still active")
	errBelowDecayFloor = errors.New("rating already at or below decay floor")
)

// Decayer applies inactivity decay to player states relative to a reference
// time. Decay is a pure function of the adjustment history, never of the
// wall clock, so replays stay deterministic.
type Decayer struct {
	cfg Config
}

// NewDecayer returns a decayer with the given rating parameters.
func NewDecayer(cfg Config) *Decayer {
	return &Decayer{cfg: cfg}
}

// Apply decays the player's rating up to asOf, appending one adjustment per
// weekly cycle, and returns the number of cycles applied. Zero with a nil
// error means decay was not warranted.
func (d *Decayer) Apply(state *domain.PlayerRating, asOf time.Time) int {
	if err := d.validate(state, asOf); err != nil {
		return 0
	}

	floor := d.Floor(state.PeakRating())
	decayStart := state.LastPlayed.Add(time.Duration(d.cfg.DecayDays) * 24 * time.Hour)

	applied := 0
	for cycle := decayStart; !cycle.After(asOf); cycle = cycle.Add(d.cfg.DecayInterval) {
		newRating := math.Max(state.Rating-d.cfg.DecayRate, floor)
		if newRating == state.Rating {
			break
		}
		newVolatility := math.Min(
			math.Sqrt(state.Volatility*state.Volatility+d.cfg.VolatilityGrowthRate),
			d.cfg.VolatilityCeiling,
		)

		state.Adjustments = append(state.Adjustments, domain.RatingAdjustment{
			PlayerID:         state.PlayerID,
			Ruleset:          state.Ruleset,
			Type:             domain.AdjustmentDecay,
			RatingBefore:     state.Rating,
			RatingAfter:      newRating,
			VolatilityBefore: state.Volatility,
			VolatilityAfter:  newVolatility,
			Timestamp:        cycle,
		})
		state.Rating = newRating
		state.Volatility = newVolatility
		applied++
	}
	return applied
}

// Floor computes the player's decay floor from their peak rating. Higher
// peaks yield higher floors, so long inactivity cannot erase a strong
// competitive record.
func (d *Decayer) Floor(peakRating float64) float64 {
	return math.Max(d.cfg.DecayMinimum, 0.5*(d.cfg.DecayMinimum+peakRating))
}

func (d *Decayer) validate(state *domain.PlayerRating, asOf time.Time) error {
	if state.LastPlayed.IsZero() || len(state.Adjustments) == 0 {
		return errNeverPlayed
	}
	if asOf.Sub(state.LastPlayed) < time.Duration(d.cfg.DecayDays)*24*time.Hour {
		return errPlayerActive
	}
	if state.Rating <= d.Floor(state.PeakRating()) {
		return errBelowDecayFloor
	}
	return nil
}

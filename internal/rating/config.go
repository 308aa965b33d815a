// Package rating implements the stateful sequential rating engine: a
// Plackett-Luce team rating model replayed over the global game timeline,
// with inactivity decay applied as explicit adjustment records.
package rating

import "time"

// The rating scale is anchored by a display multiplier applied to the
// conventional (25, 25/3)-style skill scale.
const (
	Multiplier = 45.0

	DefaultRating     = 15.0 * Multiplier // 675
	DefaultVolatility = 5.0 * Multiplier  // 225

	// RatingFloor is the absolute minimum any rating may reach.
	RatingFloor = 100.0

	// DecayDays is the inactivity span after which decay cycles begin.
	DecayDays = 115
	// DecayRate is the rating lost per weekly decay cycle.
	DecayRate = 0.06 * Multiplier
	// DecayMinimum is the system-wide decay floor.
	DecayMinimum = 18.0 * Multiplier
	// VolatilityGrowthRate is added under the square root to volatility
	// on each decay cycle.
	VolatilityGrowthRate = 0.08 * Multiplier * Multiplier
)

// Config carries the rating-model priors and bounds. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	DefaultRating     float64
	DefaultVolatility float64
	Beta              float64
	Kappa             float64
	RatingFloor       float64
	// VolatilityCeiling caps volatility both after match updates and
	// during decay growth.
	VolatilityCeiling float64

	DecayDays            int
	DecayInterval        time.Duration
	DecayRate            float64
	DecayMinimum         float64
	VolatilityGrowthRate float64
}

// DefaultConfig returns the production rating parameters.
func DefaultConfig() Config {
	return Config{
		DefaultRating:     DefaultRating,
		DefaultVolatility: DefaultVolatility,
		Beta:              DefaultVolatility / 2.0,
		Kappa:             0.0001,
		RatingFloor:       RatingFloor,
		VolatilityCeiling: DefaultVolatility,

		DecayDays:            DecayDays,
		DecayInterval:        7 * 24 * time.Hour,
		DecayRate:            DecayRate,
		DecayMinimum:         DecayMinimum,
		VolatilityGrowthRate: VolatilityGrowthRate,
	}
}

package rating

import (
	"math"

	"github.com/tourneyrank/processor/internal/domain"
)

// Initial rating bounds for rank-derived seeds. Players outside the fitted
// range clamp here rather than extrapolating.
const (
	InitialRatingFloor   = 225.0
	InitialRatingCeiling = 1350.0

	initialIntercept = 18.0
	leftSlope        = 4.0
	rightSlope       = 3.0
)

// Per-ruleset log-rank distributions fitted against the osu! population.
func rankMean(ruleset domain.Ruleset) float64 {
	switch ruleset {
	case domain.RulesetTaiko:
		return 7.59
	case domain.RulesetCatch:
		return 6.75
	case domain.RulesetMania:
		return 8.18
	default:
		return 9.91
	}
}

func rankStdDev(ruleset domain.Ruleset) float64 {
	switch ruleset {
	case domain.RulesetTaiko:
		return 1.56
	case domain.RulesetCatch:
		return 1.54
	case domain.RulesetMania:
		return 1.55
	default:
		return 1.59
	}
}

// InitialRating derives a seed rating from a player's osu! global rank by
// z-scoring the log rank against the ruleset's population distribution. A
// rank of 0 means unknown and yields the configured default. Ratings are
// clamped to [InitialRatingFloor, InitialRatingCeiling].
func (c Config) InitialRating(rank int, ruleset domain.Ruleset) float64 {
	if rank <= 0 {
		return c.DefaultRating
	}

	z := (math.Log(float64(rank)) - rankMean(ruleset)) / rankStdDev(ruleset)
	slope := rightSlope
	if z > 0 {
		slope = leftSlope
	}
	val := Multiplier * (initialIntercept - slope*z)

	if val < InitialRatingFloor {
		return InitialRatingFloor
	}
	if val > InitialRatingCeiling {
		return InitialRatingCeiling
	}
	return val
}

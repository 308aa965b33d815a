package stats

import (
	"math"
	"sort"

	"github.com/tourneyrank/processor/internal/timeline"
)

// lobbyBonus scales the match-cost reward for playing many of the match's
// games rather than dropping in for one.
const lobbyBonus = 0.3

// matchCosts computes the per-player match cost over one match's rated
// games. Each score is z-normalized against its game's score distribution
// and mapped through the standard normal CDF; the per-player sum is
// combined with a participation base of 0.5 per game and the lobby bonus.
func matchCosts(entries []*timeline.Entry) map[int]float64 {
	totalGames := len(entries)
	if totalGames == 0 {
		return nil
	}

	gamesPlayed := make(map[int]int)
	normalized := make(map[int]float64)

	for _, entry := range entries {
		var values []float64
		for _, team := range entry.Teams {
			for _, s := range team.Scores {
				values = append(values, float64(s.Score))
			}
		}

		var sum float64
		for _, v := range values {
			sum += v
		}
		mean := sum / float64(len(values))
		if mean == 0 {
			continue
		}
		stdDev := sampleStdDev(values, mean)

		for _, team := range entry.Teams {
			for _, s := range team.Scores {
				gamesPlayed[s.PlayerID]++
				if stdDev == 0 {
					normalized[s.PlayerID] += 0.5
				} else {
					z := (float64(s.Score) - mean) / stdDev
					normalized[s.PlayerID] += normalCDF(z)
				}
			}
		}
	}

	costs := make(map[int]float64, len(gamesPlayed))
	for playerID, played := range gamesPlayed {
		base := 0.5 * float64(played)
		norm := normalized[playerID]

		var bonus float64
		if played == 1 {
			bonus = lobbyBonus
		} else {
			bonus = math.Sqrt(lobbyBonus * float64(played-1) / float64(totalGames))
		}
		costs[playerID] = (norm + base) / float64(played) * (1.0 + bonus)
	}
	return costs
}

// sampleStdDev is the n-1 standard deviation of values around mean.
func sampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// sortedIDs returns the map's keys in ascending order.
func sortedIDs[T any](m map[int]T) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

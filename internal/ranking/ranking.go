// Package ranking assigns global ranks, country ranks, and percentiles to
// the final rating population. Ranks are strict and total within each
// ruleset: ties on rating are broken by ascending player ID so two runs
// over the same data produce identical orderings.
package ranking

import (
	"sort"

	"github.com/tourneyrank/processor/internal/domain"
)

// Assign ranks every player state in place, grouped by ruleset. Countries
// maps player ID to country code; players with an unknown country receive a
// global rank and percentile but no country rank.
func Assign(states []*domain.PlayerRating, countries map[int]string) {
	byRuleset := make(map[domain.Ruleset][]*domain.PlayerRating)
	for _, state := range states {
		byRuleset[state.Ruleset] = append(byRuleset[state.Ruleset], state)
	}
	for _, population := range byRuleset {
		assignRuleset(population, countries)
	}
}

func assignRuleset(population []*domain.PlayerRating, countries map[int]string) {
	sort.Slice(population, func(a, b int) bool {
		if population[a].Rating != population[b].Rating {
			return population[a].Rating > population[b].Rating
		}
		return population[a].PlayerID < population[b].PlayerID
	})

	n := len(population)
	countryRanks := make(map[string]int)
	for i, state := range population {
		state.GlobalRank = i + 1
		state.Percentile = percentile(state.GlobalRank, n)

		if country := countries[state.PlayerID]; country != "" {
			countryRanks[country]++
			state.CountryRank = countryRanks[country]
		} else {
			state.CountryRank = 0
		}
	}
}

// percentile maps a 1-based rank within a population of n to [0, 1], where
// the top rank approaches 1 and the bottom rank is 0.
func percentile(rank, n int) float64 {
	if n <= 0 {
		return 0
	}
	p := float64(n-rank) / float64(n)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

package ranking

import (
	"math"
	"testing"

	"github.com/tourneyrank/processor/internal/domain"
)

func state(playerID int, ruleset domain.Ruleset, rating float64) *domain.PlayerRating {
	return &domain.PlayerRating{PlayerID: playerID, Ruleset: ruleset, Rating: rating}
}

func TestAssignThreePlayerPercentiles(t *testing.T) {
	states := []*domain.PlayerRating{
		state(1, domain.RulesetOsu, 900),
		state(2, domain.RulesetOsu, 700),
		state(3, domain.RulesetOsu, 500),
	}
	Assign(states, nil)

	want := []struct {
		playerID   int
		rank       int
		percentile float64
	}{
		{1, 1, 2.0 / 3.0},
		{2, 2, 1.0 / 3.0},
		{3, 3, 0},
	}
	for _, w := range want {
		var got *domain.PlayerRating
		for _, s := range states {
			if s.PlayerID == w.playerID {
				got = s
			}
		}
		if got.GlobalRank != w.rank {
			t.Errorf("player %d rank = %d; want %d", w.playerID, got.GlobalRank, w.rank)
		}
		if math.Abs(got.Percentile-w.percentile) > 1e-9 {
			t.Errorf("player %d percentile = %v; want %v", w.playerID, got.Percentile, w.percentile)
		}
	}
}

func TestAssignTiesBrokenByPlayerID(t *testing.T) {
	states := []*domain.PlayerRating{
		state(7, domain.RulesetOsu, 800),
		state(3, domain.RulesetOsu, 800),
		state(5, domain.RulesetOsu, 800),
	}
	Assign(states, nil)

	ranks := map[int]int{}
	for _, s := range states {
		ranks[s.PlayerID] = s.GlobalRank
	}
	if ranks[3] != 1 || ranks[5] != 2 || ranks[7] != 3 {
		t.Errorf("tied ratings must rank by ascending player ID, got %v", ranks)
	}
}

func TestAssignRankTotality(t *testing.T) {
	var states []*domain.PlayerRating
	for i := 1; i <= 20; i++ {
		states = append(states, state(i, domain.RulesetOsu, float64(1000-i%7)))
	}
	Assign(states, nil)

	seen := make(map[int]bool)
	for _, s := range states {
		if s.GlobalRank < 1 || s.GlobalRank > len(states) {
			t.Fatalf("rank %d out of range", s.GlobalRank)
		}
		if seen[s.GlobalRank] {
			t.Fatalf("rank %d assigned twice", s.GlobalRank)
		}
		seen[s.GlobalRank] = true
	}
}

func TestAssignCountryRanks(t *testing.T) {
	states := []*domain.PlayerRating{
		state(1, domain.RulesetOsu, 900),
		state(2, domain.RulesetOsu, 800),
		state(3, domain.RulesetOsu, 700),
		state(4, domain.RulesetOsu, 600),
	}
	countries := map[int]string{1: "US", 2: "KR", 3: "US", 4: "KR"}
	Assign(states, countries)

	want := map[int]int{1: 1, 2: 1, 3: 2, 4: 2}
	for _, s := range states {
		if s.CountryRank != want[s.PlayerID] {
			t.Errorf("player %d country rank = %d; want %d",
				s.PlayerID, s.CountryRank, want[s.PlayerID])
		}
	}
}

func TestAssignUnknownCountryGetsNoCountryRank(t *testing.T) {
	states := []*domain.PlayerRating{
		state(1, domain.RulesetOsu, 900),
		state(2, domain.RulesetOsu, 800),
	}
	Assign(states, map[int]string{1: "US"})

	for _, s := range states {
		if s.PlayerID == 2 && s.CountryRank != 0 {
			t.Errorf("player without a country got country rank %d", s.CountryRank)
		}
		if s.GlobalRank == 0 {
			t.Errorf("player %d missing global rank", s.PlayerID)
		}
	}
}

func TestAssignRulesetsRankedIndependently(t *testing.T) {
	states := []*domain.PlayerRating{
		state(1, domain.RulesetOsu, 500),
		state(2, domain.RulesetOsu, 900),
		state(1, domain.RulesetMania, 700),
	}
	Assign(states, nil)

	for _, s := range states {
		if s.Ruleset == domain.RulesetMania && s.GlobalRank != 1 {
			t.Errorf("mania population of one must rank 1, got %d", s.GlobalRank)
		}
	}
}

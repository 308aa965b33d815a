package rating

import (
	"testing"

	"github.com/tourneyrank/processor/internal/domain"
)

func TestInitialRatingClampsAtCeiling(t *testing.T) {
	cfg := DefaultConfig()
	for _, ruleset := range domain.Rulesets {
		if got := cfg.InitialRating(1, ruleset); got != InitialRatingCeiling {
			t.Errorf("%s rank 1 = %v; want ceiling %v", ruleset, got, InitialRatingCeiling)
		}
	}
}

func TestInitialRatingClampsAtFloor(t *testing.T) {
	cfg := DefaultConfig()
	for _, ruleset := range domain.Rulesets {
		if got := cfg.InitialRating(10_000_000, ruleset); got != InitialRatingFloor {
			t.Errorf("%s rank 10M = %v; want floor %v", ruleset, got, InitialRatingFloor)
		}
	}
}

func TestInitialRatingMonotonicInRank(t *testing.T) {
	cfg := DefaultConfig()
	prev := cfg.InitialRating(100, domain.RulesetOsu)
	for _, rank := range []int{1000, 10000, 100000, 1000000} {
		cur := cfg.InitialRating(rank, domain.RulesetOsu)
		if cur > prev {
			t.Errorf("rank %d rating %v exceeds better rank's %v", rank, cur, prev)
		}
		prev = cur
	}
}

func TestInitialRatingUnknownRankUsesDefault(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.InitialRating(0, domain.RulesetOsu); got != cfg.DefaultRating {
		t.Errorf("unknown rank = %v; want default %v", got, cfg.DefaultRating)
	}
}

func TestRulesetRankPrefersEarliest(t *testing.T) {
	r := domain.RulesetRank{GlobalRank: 5000, EarliestGlobalRank: 1200}
	if r.Rank() != 1200 {
		t.Errorf("Rank() = %d; want earliest 1200", r.Rank())
	}
	r = domain.RulesetRank{GlobalRank: 5000}
	if r.Rank() != 5000 {
		t.Errorf("Rank() = %d; want current 5000", r.Rank())
	}
}

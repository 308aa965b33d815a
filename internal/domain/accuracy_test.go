package domain

import (
	"math"
	"testing"
)

func TestAccuracy(t *testing.T) {
	cases := []struct {
		name    string
		ruleset Ruleset
		score   Score
		want    float64
	}{
		{
			name:    "osu perfect",
			ruleset: RulesetOsu,
			score:   Score{Count300: 500},
			want:    1.0,
		},
		{
			name:    "osu mixed",
			ruleset: RulesetOsu,
			score:   Score{Count300: 90, Count100: 8, Count50: 1, CountMiss: 1},
			want:    (300*90 + 100*8 + 50*1) / (300.0 * 100),
		},
		{
			name:    "osu all misses",
			ruleset: RulesetOsu,
			score:   Score{CountMiss: 10},
			want:    0,
		},
		{
			name:    "taiko halves",
			ruleset: RulesetTaiko,
			score:   Score{Count300: 50, Count100: 50},
			want:    0.75,
		},
		{
			name:    "catch droplets",
			ruleset: RulesetCatch,
			score:   Score{Count300: 80, Count100: 10, Count50: 5, CountMiss: 3, CountKatu: 2},
			want:    95.0 / 100.0,
		},
		{
			name:    "mania perfect with geki",
			ruleset: RulesetMania,
			score:   Score{Count300: 400, CountGeki: 600},
			want:    1.0,
		},
		{
			name:    "empty score",
			ruleset: RulesetOsu,
			score:   Score{},
			want:    0,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.score.Accuracy(c.ruleset)
			if math.Abs(got-c.want) > 1e-9 {
				t.Errorf("Accuracy(%s) = %v; want %v", c.ruleset, got, c.want)
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseRuleset(7); err == nil {
		t.Error("ParseRuleset(7) should fail")
	}
	if _, err := ParseVerificationStatus(9); err == nil {
		t.Error("ParseVerificationStatus(9) should fail")
	}
	if r, err := ParseRuleset(1); err != nil || r != RulesetTaiko {
		t.Errorf("ParseRuleset(1) = %v, %v; want taiko", r, err)
	}
	if v, err := ParseVerificationStatus(4); err != nil || v != VerificationVerified {
		t.Errorf("ParseVerificationStatus(4) = %v, %v; want verified", v, err)
	}
}

func TestPeakRating(t *testing.T) {
	pr := PlayerRating{Rating: 900}
	pr.Adjustments = []RatingAdjustment{
		{RatingBefore: 800, RatingAfter: 1000},
		{RatingBefore: 1000, RatingAfter: 900},
	}
	if got := pr.PeakRating(); got != 1000 {
		t.Errorf("PeakRating() = %v; want 1000", got)
	}
}

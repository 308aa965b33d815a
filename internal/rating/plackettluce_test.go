package rating

import (
	"math"
	"testing"
)

func testModel() *PlackettLuce {
	cfg := DefaultConfig()
	return NewPlackettLuce(cfg.Beta, cfg.Kappa)
}

func TestRateOneVersusOne(t *testing.T) {
	m := testModel()
	teams := [][]Rating{
		{{Mu: 1500, Sigma: 200}}, // winner
		{{Mu: 1500, Sigma: 200}}, // loser
	}
	out := m.Rate(teams, []int{1, 2})

	winner, loser := out[0][0], out[1][0]
	if winner.Mu <= 1500 {
		t.Errorf("winner mean = %v; want > 1500", winner.Mu)
	}
	if loser.Mu >= 1500 {
		t.Errorf("loser mean = %v; want < 1500", loser.Mu)
	}
	if winner.Sigma >= 200 || loser.Sigma >= 200 {
		t.Errorf("volatilities = %v, %v; want both < 200", winner.Sigma, loser.Sigma)
	}
	// The update is symmetric for equal priors.
	if math.Abs((winner.Mu-1500)-(1500-loser.Mu)) > 1e-9 {
		t.Errorf("asymmetric update: winner +%v, loser -%v", winner.Mu-1500, 1500-loser.Mu)
	}
}

func TestRateUpsetMovesMoreThanExpectedResult(t *testing.T) {
	m := testModel()
	favorite := Rating{Mu: 1800, Sigma: 200}
	underdog := Rating{Mu: 1200, Sigma: 200}

	expected := m.Rate([][]Rating{{favorite}, {underdog}}, []int{1, 2})
	upset := m.Rate([][]Rating{{favorite}, {underdog}}, []int{2, 1})

	expectedGain := expected[0][0].Mu - favorite.Mu
	upsetGain := upset[1][0].Mu - underdog.Mu
	if upsetGain <= expectedGain {
		t.Errorf("upset gain %v should exceed expected-result gain %v", upsetGain, expectedGain)
	}
}

func TestRateFreeForAllOrdering(t *testing.T) {
	m := testModel()
	teams := [][]Rating{
		{{Mu: 1000, Sigma: 100}},
		{{Mu: 1000, Sigma: 100}},
		{{Mu: 1000, Sigma: 100}},
	}
	// Team 1 places 2nd, team 2 wins, team 3 is last.
	out := m.Rate(teams, []int{2, 1, 3})

	if !(out[1][0].Mu > out[0][0].Mu && out[0][0].Mu > out[2][0].Mu) {
		t.Errorf("posterior order wrong: %v, %v, %v",
			out[1][0].Mu, out[0][0].Mu, out[2][0].Mu)
	}
}

func TestRateTeamVersusTeam(t *testing.T) {
	m := testModel()
	teams := [][]Rating{
		{{Mu: 700, Sigma: 225}, {Mu: 650, Sigma: 225}},
		{{Mu: 675, Sigma: 225}, {Mu: 675, Sigma: 225}},
	}
	out := m.Rate(teams, []int{1, 2})

	for j, r := range out[0] {
		if r.Mu <= teams[0][j].Mu {
			t.Errorf("winning player %d mean %v should rise above %v", j, r.Mu, teams[0][j].Mu)
		}
	}
	for j, r := range out[1] {
		if r.Mu >= teams[1][j].Mu {
			t.Errorf("losing player %d mean %v should fall below %v", j, r.Mu, teams[1][j].Mu)
		}
	}
}

func TestRateTieLeavesEqualPriorsUnchanged(t *testing.T) {
	m := testModel()
	teams := [][]Rating{
		{{Mu: 1000, Sigma: 150}},
		{{Mu: 1000, Sigma: 150}},
	}
	out := m.Rate(teams, []int{1, 1})

	if math.Abs(out[0][0].Mu-out[1][0].Mu) > 1e-9 {
		t.Errorf("tied equal priors diverged: %v vs %v", out[0][0].Mu, out[1][0].Mu)
	}
	if math.Abs(out[0][0].Mu-1000) > 1e-6 {
		t.Errorf("tied equal priors should hold near 1000, got %v", out[0][0].Mu)
	}
}

func TestRateDoesNotMutateInput(t *testing.T) {
	m := testModel()
	teams := [][]Rating{
		{{Mu: 1500, Sigma: 200}},
		{{Mu: 1500, Sigma: 200}},
	}
	m.Rate(teams, []int{1, 2})
	if teams[0][0].Mu != 1500 || teams[0][0].Sigma != 200 {
		t.Errorf("input mutated: %+v", teams[0][0])
	}
}

func TestRateDeterminism(t *testing.T) {
	m := testModel()
	teams := [][]Rating{
		{{Mu: 1350, Sigma: 225}, {Mu: 820, Sigma: 190}},
		{{Mu: 990, Sigma: 225}},
		{{Mu: 1100, Sigma: 50}},
	}
	first := m.Rate(teams, []int{1, 3, 2})
	second := m.Rate(teams, []int{1, 3, 2})
	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("nondeterministic result at team %d player %d", i, j)
			}
		}
	}
}

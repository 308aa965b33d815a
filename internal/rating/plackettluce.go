package rating

import "math"

// Rating is a (mean, volatility) skill estimate fed to the model.
type Rating struct {
	Mu    float64
	Sigma float64
}

// PlackettLuce implements the Bayesian approximation update for the
// Plackett-Luce ranking model from Weng & Lin, "A Bayesian Approximation
// Method for Online Ranking" (JMLR 2011), generalizing pairwise skill
// updates to multi-team, multi-player ordinal outcomes.
type PlackettLuce struct {
	Beta  float64
	Kappa float64
	// Gamma controls how quickly team volatility responds to an outcome.
	// It receives the collective deviation c, the team count, and the
	// team's variance sum.
	Gamma func(c float64, teamCount int, teamSigmaSq float64) float64
}

// NewPlackettLuce builds a model with the 1/k volatility-control gamma,
// which slows volatility drift as lobbies grow.
func NewPlackettLuce(beta, kappa float64) *PlackettLuce {
	return &PlackettLuce{
		Beta:  beta,
		Kappa: kappa,
		Gamma: func(_ float64, teamCount int, _ float64) float64 {
			return 1.0 / float64(teamCount)
		},
	}
}

// Rate computes posterior ratings for every player given the ordinal
// outcome. teams[i] holds the prior ratings of team i's players; ranks[i]
// is team i's placement (1 is best, equal values are ties). The returned
// slice mirrors the input shape. Inputs are not mutated.
func (m *PlackettLuce) Rate(teams [][]Rating, ranks []int) [][]Rating {
	k := len(teams)
	if k == 0 || len(ranks) != k {
		return nil
	}

	teamMu := make([]float64, k)
	teamSigmaSq := make([]float64, k)
	for i, team := range teams {
		for _, r := range team {
			teamMu[i] += r.Mu
			teamSigmaSq[i] += r.Sigma * r.Sigma
		}
	}

	betaSq := m.Beta * m.Beta
	var cSq float64
	for i := 0; i < k; i++ {
		cSq += teamSigmaSq[i] + betaSq
	}
	c := math.Sqrt(cSq)

	// sumQ[q] aggregates exp(mu/c) over every team placing equal to or
	// worse than team q; a[q] counts teams tied with team q.
	expMu := make([]float64, k)
	for i := 0; i < k; i++ {
		expMu[i] = math.Exp(teamMu[i] / c)
	}
	sumQ := make([]float64, k)
	a := make([]int, k)
	for q := 0; q < k; q++ {
		for s := 0; s < k; s++ {
			if ranks[s] >= ranks[q] {
				sumQ[q] += expMu[s]
			}
			if ranks[s] == ranks[q] {
				a[q]++
			}
		}
	}

	out := make([][]Rating, k)
	for i := 0; i < k; i++ {
		var omega, delta float64
		for q := 0; q < k; q++ {
			if ranks[q] > ranks[i] {
				continue
			}
			quotient := expMu[i] / sumQ[q]
			if q == i {
				omega += (1 - quotient) / float64(a[q])
			} else {
				omega += -quotient / float64(a[q])
			}
			delta += quotient * (1 - quotient) / float64(a[q])
		}

		omega *= teamSigmaSq[i] / c
		delta *= teamSigmaSq[i] / cSq
		delta *= m.Gamma(c, k, teamSigmaSq[i])

		out[i] = make([]Rating, len(teams[i]))
		for j, r := range teams[i] {
			sigmaSq := r.Sigma * r.Sigma
			mu := r.Mu + sigmaSq/teamSigmaSq[i]*omega
			sigmaScale := 1 - sigmaSq/teamSigmaSq[i]*delta
			if sigmaScale < m.Kappa {
				sigmaScale = m.Kappa
			}
			out[i][j] = Rating{
				Mu:    mu,
				Sigma: r.Sigma * math.Sqrt(sigmaScale),
			}
		}
	}
	return out
}

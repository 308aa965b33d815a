package domain

// Accuracy derives the score's accuracy in [0, 1] from its hit counts using
// the standard formula for the given ruleset.
func (s *Score) Accuracy(ruleset Ruleset) float64 {
	c50 := float64(s.Count50)
	c100 := float64(s.Count100)
	c300 := float64(s.Count300)
	miss := float64(s.CountMiss)
	katu := float64(s.CountKatu)
	geki := float64(s.CountGeki)

	switch ruleset {
	case RulesetOsu:
		total := c50 + c100 + c300 + miss
		if total == 0 {
			return 0
		}
		return (50*c50 + 100*c100 + 300*c300) / (300 * total)
	case RulesetTaiko:
		total := c100 + c300 + miss
		if total == 0 {
			return 0
		}
		return (0.5*c100 + c300) / total
	case RulesetCatch:
		// katu counts droplet misses for catch scores.
		total := c50 + c100 + c300 + miss + katu
		if total == 0 {
			return 0
		}
		return (c50 + c100 + c300) / total
	case RulesetMania:
		total := c50 + c100 + c300 + miss + katu + geki
		if total == 0 {
			return 0
		}
		return (50*c50 + 100*c100 + 200*katu + 300*(c300+geki)) / (300 * total)
	}
	return 0
}

// ScoringValue extracts the quantity a game is judged on for this score,
// according to the game's scoring type.
func (s *Score) ScoringValue(scoring ScoringType, ruleset Ruleset) float64 {
	switch scoring {
	case ScoringScore, ScoringScoreV2:
		return float64(s.Score)
	case ScoringAccuracy:
		return s.Accuracy(ruleset)
	case ScoringCombo:
		return float64(s.MaxCombo)
	}
	return float64(s.Score)
}

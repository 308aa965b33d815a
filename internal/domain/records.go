package domain

import "time"

// Tournament is the top-level grouping of matches sharing a ruleset.
type Tournament struct {
	ID                 int
	Name               string
	Ruleset            Ruleset
	VerificationStatus VerificationStatus
	Matches            []*Match
}

// Match is an ordered collection of games within a tournament time window.
// Games are kept sorted by start time ascending, ties by game ID.
type Match struct {
	ID                 int
	TournamentID       int
	Name               string
	Ruleset            Ruleset
	StartTime          time.Time
	EndTime            time.Time
	VerificationStatus VerificationStatus
	ProcessingStatus   ProcessingStatus
	Games              []*Game
}

// Game is the immutable projection of a single played map.
type Game struct {
	ID                 int
	MatchID            int
	Ruleset            Ruleset
	ScoringType        ScoringType
	TeamType           TeamType
	Mods               Mods
	StartTime          time.Time
	EndTime            time.Time
	VerificationStatus VerificationStatus
	WarningFlags       GameWarningFlags
	RejectionReason    GameRejectionReason
	Scores             []*Score
}

// Score is one player's result within a game. A player appears at most once
// per game; the rating engine treats a violation as run corruption.
type Score struct {
	ID                 int
	GameID             int
	PlayerID           int
	Team               Team
	Score              int64
	MaxCombo           int
	Placement          int
	Passed             bool
	Mods               Mods
	Count50            int
	Count100           int
	Count300           int
	CountMiss          int
	CountKatu          int
	CountGeki          int
	VerificationStatus VerificationStatus
	RejectionReason    ScoreRejectionReason
}

// PlayerInfo carries per-player inputs consumed from the read interface:
// the country code for country ranking and the osu! rank data initial
// ratings are derived from. Ratings are never seeded from the processor's
// own output, so every run is a pure function of the competition record.
type PlayerInfo struct {
	ID      int
	Country string
	Ranks   map[Ruleset]RulesetRank
}

// RulesetRank is a player's externally sourced osu! global rank per
// ruleset. EarliestGlobalRank, when known, is preferred as the initial
// rating anchor since it predates tournament play.
type RulesetRank struct {
	GlobalRank         int
	EarliestGlobalRank int
}

// Rank returns the anchor rank for initial rating derivation, 0 when the
// player has no rank data for the ruleset.
func (r RulesetRank) Rank() int {
	if r.EarliestGlobalRank != 0 {
		return r.EarliestGlobalRank
	}
	return r.GlobalRank
}

// PlayerRating is the mutable per-(player, ruleset) rating state. It is
// owned exclusively by the rating engine during a run; rank fields are
// assigned once from the final population.
type PlayerRating struct {
	PlayerID   int
	Ruleset    Ruleset
	Rating     float64
	Volatility float64

	GlobalRank  int
	CountryRank int
	Percentile  float64

	// LastPlayed is the start time of the most recent rated game, used to
	// determine decay eligibility.
	LastPlayed time.Time

	Adjustments []RatingAdjustment
}

// PeakRating returns the highest rating the player has held, considering
// both the adjustment history and the current value.
func (p *PlayerRating) PeakRating() float64 {
	peak := p.Rating
	for _, adj := range p.Adjustments {
		if adj.RatingAfter > peak {
			peak = adj.RatingAfter
		}
	}
	return peak
}

// RatingAdjustment is an immutable audit entry for one rating-affecting
// event. MatchID is zero for decay adjustments.
type RatingAdjustment struct {
	PlayerID         int
	Ruleset          Ruleset
	MatchID          int
	Type             AdjustmentType
	RatingBefore     float64
	RatingAfter      float64
	VolatilityBefore float64
	VolatilityAfter  float64
	Timestamp        time.Time
}

// RatingDelta returns the signed rating change of the adjustment.
func (a RatingAdjustment) RatingDelta() float64 { return a.RatingAfter - a.RatingBefore }

// MatchStats is the derived per-(player, match) aggregate, recomputed from
// scratch each run.
type MatchStats struct {
	PlayerID              int
	MatchID               int
	Won                   bool
	MatchCost             float64
	AverageScore          float64
	AveragePlacement      float64
	AverageMisses         float64
	AverageAccuracy       float64
	GamesPlayed           int
	GamesWon              int
	GamesLost             int
	TeammateIDs           []int
	OpponentIDs           []int
	AverageTeammateRating float64
	AverageOpponentRating float64
}

// TournamentStats is the derived per-(player, tournament) aggregate.
type TournamentStats struct {
	PlayerID           int
	TournamentID       int
	AverageRatingDelta float64
	AverageMatchCost   float64
	AverageScore       float64
	AveragePlacement   float64
	AverageMisses      float64
	AverageAccuracy    float64
	MatchesPlayed      int
	MatchesWon         int
	MatchesLost        int
	MatchWinRate       float64
	GamesPlayed        int
	GamesWon           int
	GamesLost          int
	TeammateIDs        []int
	OpponentIDs        []int
}

// GameWinRecord captures the team-level outcome of a single game.
type GameWinRecord struct {
	GameID     int
	WinnerIDs  []int
	LoserIDs   []int
	WinnerTeam Team
	LoserTeam  Team
}

// MatchWinRecord captures the team-level outcome of a whole match. The
// winner is nil when the match ended tied.
type MatchWinRecord struct {
	MatchID    int
	BlueIDs    []int
	RedIDs     []int
	BluePoints int
	RedPoints  int
	WinnerTeam *Team
	LoserTeam  *Team
}

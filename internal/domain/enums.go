// Package domain defines the in-memory projection of competition data used
// by the rating pipeline: closed enum types mirroring the persisted integer
// codes, and the immutable record structs assembled by the loader.
package domain

import "fmt"

// Ruleset is a distinct game mode. Ratings and ranks are scoped per ruleset.
type Ruleset int

const (
	RulesetOsu Ruleset = iota
	RulesetTaiko
	RulesetCatch
	RulesetMania
)

// Rulesets lists every known ruleset in stored-code order.
var Rulesets = []Ruleset{RulesetOsu, RulesetTaiko, RulesetCatch, RulesetMania}

func (r Ruleset) String() string {
	switch r {
	case RulesetOsu:
		return "osu"
	case RulesetTaiko:
		return "taiko"
	case RulesetCatch:
		return "catch"
	case RulesetMania:
		return "mania"
	}
	return fmt.Sprintf("ruleset(%d)", int(r))
}

// ParseRuleset converts a stored integer code to a Ruleset.
func ParseRuleset(v int) (Ruleset, error) {
	switch v {
	case 0, 1, 2, 3:
		return Ruleset(v), nil
	}
	return 0, fmt.Errorf("unknown ruleset code %d", v)
}

// ScoringType determines the criterion used to rank teams within a game.
type ScoringType int

const (
	ScoringScore ScoringType = iota
	ScoringAccuracy
	ScoringCombo
	ScoringScoreV2
)

func (s ScoringType) String() string {
	switch s {
	case ScoringScore:
		return "score"
	case ScoringAccuracy:
		return "accuracy"
	case ScoringCombo:
		return "combo"
	case ScoringScoreV2:
		return "scorev2"
	}
	return fmt.Sprintf("scoring(%d)", int(s))
}

// ParseScoringType converts a stored integer code to a ScoringType.
func ParseScoringType(v int) (ScoringType, error) {
	switch v {
	case 0, 1, 2, 3:
		return ScoringType(v), nil
	}
	return 0, fmt.Errorf("unknown scoring type code %d", v)
}

// TeamType determines how scores within a game group into opposing teams.
type TeamType int

const (
	TeamTypeHeadToHead TeamType = iota
	TeamTypeTagCoop
	TeamTypeTeamVs
	TeamTypeTagTeamVs
)

func (t TeamType) String() string {
	switch t {
	case TeamTypeHeadToHead:
		return "head_to_head"
	case TeamTypeTagCoop:
		return "tag_coop"
	case TeamTypeTeamVs:
		return "team_vs"
	case TeamTypeTagTeamVs:
		return "tag_team_vs"
	}
	return fmt.Sprintf("team_type(%d)", int(t))
}

// ParseTeamType converts a stored integer code to a TeamType.
func ParseTeamType(v int) (TeamType, error) {
	switch v {
	case 0, 1, 2, 3:
		return TeamType(v), nil
	}
	return 0, fmt.Errorf("unknown team type code %d", v)
}

// Team identifies which side a score belongs to in team-based games.
type Team int

const (
	TeamNone Team = iota
	TeamBlue
	TeamRed
)

func (t Team) String() string {
	switch t {
	case TeamNone:
		return "none"
	case TeamBlue:
		return "blue"
	case TeamRed:
		return "red"
	}
	return fmt.Sprintf("team(%d)", int(t))
}

// VerificationStatus is the human/automated approval gate carried by
// tournaments, matches, games, and scores. Only Verified records are
// admissible for rating computation.
type VerificationStatus int

const (
	VerificationNone VerificationStatus = iota
	VerificationPreRejected
	VerificationPreVerified
	VerificationRejected
	VerificationVerified
)

func (v VerificationStatus) String() string {
	switch v {
	case VerificationNone:
		return "none"
	case VerificationPreRejected:
		return "pre_rejected"
	case VerificationPreVerified:
		return "pre_verified"
	case VerificationRejected:
		return "rejected"
	case VerificationVerified:
		return "verified"
	}
	return fmt.Sprintf("verification(%d)", int(v))
}

// ParseVerificationStatus converts a stored integer code.
func ParseVerificationStatus(v int) (VerificationStatus, error) {
	switch v {
	case 0, 1, 2, 3, 4:
		return VerificationStatus(v), nil
	}
	return 0, fmt.Errorf("unknown verification status code %d", v)
}

// ProcessingStatus tracks how far a match has progressed through the data
// pipeline. The writer advances consumed matches to ProcessingDone.
type ProcessingStatus int

const (
	ProcessingNeedsData ProcessingStatus = iota
	ProcessingNeedsAutomationChecks
	ProcessingNeedsVerification
	ProcessingNeedsStatCalculation
	ProcessingNeedsRatingData
	ProcessingDone
)

func (p ProcessingStatus) String() string {
	switch p {
	case ProcessingNeedsData:
		return "needs_data"
	case ProcessingNeedsAutomationChecks:
		return "needs_automation_checks"
	case ProcessingNeedsVerification:
		return "needs_verification"
	case ProcessingNeedsStatCalculation:
		return "needs_stat_calculation"
	case ProcessingNeedsRatingData:
		return "needs_rating_data"
	case ProcessingDone:
		return "done"
	}
	return fmt.Sprintf("processing(%d)", int(p))
}

// AdjustmentType distinguishes the event that produced a rating adjustment.
type AdjustmentType int

const (
	AdjustmentDecay AdjustmentType = iota
	AdjustmentMatch
)

func (a AdjustmentType) String() string {
	switch a {
	case AdjustmentDecay:
		return "decay"
	case AdjustmentMatch:
		return "match"
	}
	return fmt.Sprintf("adjustment(%d)", int(a))
}

// GameWarningFlags is a bitmask of non-fatal conditions detected upstream.
// Flags listed in DisqualifyingWarnings exclude the game from rating.
type GameWarningFlags int

const (
	WarningBeatmapNotPreVerified GameWarningFlags = 1 << iota
	WarningUnexpectedTeamSize
	WarningNoEndTime
)

// DisqualifyingWarnings are the warning flags that make a game inadmissible.
const DisqualifyingWarnings = WarningBeatmapNotPreVerified | WarningUnexpectedTeamSize

// Has reports whether all bits of flag are set.
func (f GameWarningFlags) Has(flag GameWarningFlags) bool { return f&flag == flag }

// GameRejectionReason is a bitmask explaining why a game was rejected
// upstream. Any non-zero value excludes the game.
type GameRejectionReason int

const (
	GameRejectionNoScores GameRejectionReason = 1 << iota
	GameRejectionForfeit
	GameRejectionRulesetMismatch
	GameRejectionInvalidScoringType
	GameRejectionInvalidTeamType
)

// Has reports whether all bits of flag are set.
func (r GameRejectionReason) Has(flag GameRejectionReason) bool { return r&flag == flag }

// ScoreRejectionReason is a bitmask explaining why an individual score was
// rejected. A rejected score is excluded from statistics while the rest of
// its game may still be rated.
type ScoreRejectionReason int

const (
	ScoreRejectionBelowMinimum ScoreRejectionReason = 1 << iota
	ScoreRejectionInvalidMods
	ScoreRejectionRulesetMismatch
	ScoreRejectionFailed
)

// Mods is the raw bitmask of gameplay modifiers enabled for a score.
// Carried through the projection as data; the pipeline does not interpret
// individual bits beyond storage.
type Mods int

// Package eligibility decides which matches, games, and scores are
// admissible into the rating timeline. All checks are pure predicates;
// rejections are reported as reason codes and tallied, never fatal.
package eligibility

import (
	"fmt"

	"github.com/tourneyrank/processor/internal/domain"
)

// Reason identifies why a record was rejected from the timeline.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonTournamentNotVerified
	ReasonMatchNotVerified
	ReasonGameNotVerified
	ReasonGameRejected
	ReasonGameWarningFlags
	ReasonRulesetMismatch
	ReasonScoreNotVerified
	ReasonScoreRejected
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTournamentNotVerified:
		return "tournament_not_verified"
	case ReasonMatchNotVerified:
		return "match_not_verified"
	case ReasonGameNotVerified:
		return "game_not_verified"
	case ReasonGameRejected:
		return "game_rejected"
	case ReasonGameWarningFlags:
		return "game_warning_flags"
	case ReasonRulesetMismatch:
		return "ruleset_mismatch"
	case ReasonScoreNotVerified:
		return "score_not_verified"
	case ReasonScoreRejected:
		return "score_rejected"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Decision is the outcome of one eligibility check.
type Decision struct {
	Admit  bool
	Reason Reason
}

func admit() Decision          { return Decision{Admit: true} }
func reject(r Reason) Decision { return Decision{Reason: r} }

// Tally counts rejections by reason across a run.
type Tally struct {
	MatchesRejected int
	GamesRejected   int
	ScoresRejected  int
	ByReason        map[Reason]int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{ByReason: make(map[Reason]int)}
}

func (t *Tally) record(r Reason) {
	t.ByReason[r]++
}

// Summary returns a human-readable rejection summary.
func (t *Tally) Summary() string {
	return fmt.Sprintf("matches_rejected=%d games_rejected=%d scores_rejected=%d",
		t.MatchesRejected, t.GamesRejected, t.ScoresRejected)
}

// CheckMatch decides whether a match (in the context of its tournament) may
// contribute games to the timeline.
func CheckMatch(tournament *domain.Tournament, match *domain.Match) Decision {
	if d := verificationGate(tournament.VerificationStatus, ReasonTournamentNotVerified); !d.Admit {
		return d
	}
	return verificationGate(match.VerificationStatus, ReasonMatchNotVerified)
}

// CheckGame decides whether a game is admissible. The match is assumed to
// have already passed CheckMatch.
func CheckGame(match *domain.Match, game *domain.Game) Decision {
	if d := verificationGate(game.VerificationStatus, ReasonGameNotVerified); !d.Admit {
		return d
	}
	if game.RejectionReason != 0 {
		return reject(ReasonGameRejected)
	}
	if game.WarningFlags&domain.DisqualifyingWarnings != 0 {
		return reject(ReasonGameWarningFlags)
	}
	if game.Ruleset != match.Ruleset {
		return reject(ReasonRulesetMismatch)
	}
	if len(game.Scores) == 0 {
		return reject(ReasonGameRejected)
	}
	return admit()
}

// CheckScore decides whether an individual score participates in rating and
// statistics. A rejected score does not by itself invalidate its game.
func CheckScore(score *domain.Score) Decision {
	if d := verificationGate(score.VerificationStatus, ReasonScoreNotVerified); !d.Admit {
		return d
	}
	if score.RejectionReason != 0 {
		return reject(ReasonScoreRejected)
	}
	return admit()
}

// verificationGate admits only Verified records. The switch is exhaustive
// so that a new status value fails compilation here rather than silently
// passing through.
func verificationGate(status domain.VerificationStatus, r Reason) Decision {
	switch status {
	case domain.VerificationVerified:
		return admit()
	case domain.VerificationNone,
		domain.VerificationPreRejected,
		domain.VerificationPreVerified,
		domain.VerificationRejected:
		return reject(r)
	}
	return reject(r)
}

// AdmissibleScores returns the game's scores that pass CheckScore,
// recording rejections in the tally.
func AdmissibleScores(game *domain.Game, tally *Tally) []*domain.Score {
	scores := make([]*domain.Score, 0, len(game.Scores))
	for _, s := range game.Scores {
		if d := CheckScore(s); !d.Admit {
			tally.ScoresRejected++
			tally.record(d.Reason)
			continue
		}
		scores = append(scores, s)
	}
	return scores
}

// AdmissibleGames walks a tournament's matches and returns, per match, the
// games that pass all gates. Match-level rejections drop the whole match.
func AdmissibleGames(tournament *domain.Tournament, tally *Tally) map[*domain.Match][]*domain.Game {
	out := make(map[*domain.Match][]*domain.Game)
	for _, match := range tournament.Matches {
		if d := CheckMatch(tournament, match); !d.Admit {
			tally.MatchesRejected++
			tally.record(d.Reason)
			continue
		}
		var games []*domain.Game
		for _, game := range match.Games {
			if d := CheckGame(match, game); !d.Admit {
				tally.GamesRejected++
				tally.record(d.Reason)
				continue
			}
			games = append(games, game)
		}
		if len(games) > 0 {
			out[match] = games
		}
	}
	return out
}

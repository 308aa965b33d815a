package eligibility

import (
	"testing"

	"github.com/tourneyrank/processor/internal/domain"
)

func verifiedTournament() *domain.Tournament {
	return &domain.Tournament{ID: 1, Ruleset: domain.RulesetOsu, VerificationStatus: domain.VerificationVerified}
}

func verifiedMatch() *domain.Match {
	return &domain.Match{ID: 10, TournamentID: 1, Ruleset: domain.RulesetOsu, VerificationStatus: domain.VerificationVerified}
}

func verifiedGame(scores ...*domain.Score) *domain.Game {
	return &domain.Game{
		ID:                 100,
		MatchID:            10,
		Ruleset:            domain.RulesetOsu,
		VerificationStatus: domain.VerificationVerified,
		Scores:             scores,
	}
}

func verifiedScore(playerID int) *domain.Score {
	return &domain.Score{PlayerID: playerID, VerificationStatus: domain.VerificationVerified, Passed: true}
}

func TestCheckMatch(t *testing.T) {
	cases := []struct {
		name       string
		tournament domain.VerificationStatus
		match      domain.VerificationStatus
		admit      bool
		reason     Reason
	}{
		{"both verified", domain.VerificationVerified, domain.VerificationVerified, true, ReasonNone},
		{"tournament pending", domain.VerificationPreVerified, domain.VerificationVerified, false, ReasonTournamentNotVerified},
		{"match rejected", domain.VerificationVerified, domain.VerificationRejected, false, ReasonMatchNotVerified},
		{"match none", domain.VerificationVerified, domain.VerificationNone, false, ReasonMatchNotVerified},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := verifiedTournament()
			tr.VerificationStatus = c.tournament
			m := verifiedMatch()
			m.VerificationStatus = c.match
			d := CheckMatch(tr, m)
			if d.Admit != c.admit || d.Reason != c.reason {
				t.Errorf("CheckMatch = %+v; want admit=%v reason=%v", d, c.admit, c.reason)
			}
		})
	}
}

func TestCheckGame(t *testing.T) {
	t.Run("admits verified game", func(t *testing.T) {
		g := verifiedGame(verifiedScore(1), verifiedScore(2))
		if d := CheckGame(verifiedMatch(), g); !d.Admit {
			t.Errorf("expected admission, got %+v", d)
		}
	})

	t.Run("rejects forfeited game", func(t *testing.T) {
		g := verifiedGame(verifiedScore(1), verifiedScore(2))
		g.RejectionReason = domain.GameRejectionForfeit
		d := CheckGame(verifiedMatch(), g)
		if d.Admit || d.Reason != ReasonGameRejected {
			t.Errorf("expected game_rejected, got %+v", d)
		}
	})

	t.Run("rejects disqualifying warning flags", func(t *testing.T) {
		g := verifiedGame(verifiedScore(1), verifiedScore(2))
		g.WarningFlags = domain.WarningUnexpectedTeamSize
		d := CheckGame(verifiedMatch(), g)
		if d.Admit || d.Reason != ReasonGameWarningFlags {
			t.Errorf("expected game_warning_flags, got %+v", d)
		}
	})

	t.Run("no-end-time warning alone does not disqualify", func(t *testing.T) {
		g := verifiedGame(verifiedScore(1), verifiedScore(2))
		g.WarningFlags = domain.WarningNoEndTime
		if d := CheckGame(verifiedMatch(), g); !d.Admit {
			t.Errorf("expected admission, got %+v", d)
		}
	})

	t.Run("rejects ruleset mismatch", func(t *testing.T) {
		g := verifiedGame(verifiedScore(1), verifiedScore(2))
		g.Ruleset = domain.RulesetTaiko
		d := CheckGame(verifiedMatch(), g)
		if d.Admit || d.Reason != ReasonRulesetMismatch {
			t.Errorf("expected ruleset_mismatch, got %+v", d)
		}
	})

	t.Run("rejects scoreless game", func(t *testing.T) {
		g := verifiedGame()
		d := CheckGame(verifiedMatch(), g)
		if d.Admit || d.Reason != ReasonGameRejected {
			t.Errorf("expected game_rejected, got %+v", d)
		}
	})
}

func TestCheckScore(t *testing.T) {
	s := verifiedScore(1)
	if d := CheckScore(s); !d.Admit {
		t.Errorf("expected admission, got %+v", d)
	}
	s.RejectionReason = domain.ScoreRejectionBelowMinimum
	if d := CheckScore(s); d.Admit || d.Reason != ReasonScoreRejected {
		t.Errorf("expected score_rejected, got %+v", d)
	}
}

func TestAdmissibleScoresExcludesOutliers(t *testing.T) {
	good := verifiedScore(1)
	bad := verifiedScore(2)
	bad.RejectionReason = domain.ScoreRejectionInvalidMods
	g := verifiedGame(good, bad)

	tally := NewTally()
	scores := AdmissibleScores(g, tally)
	if len(scores) != 1 || scores[0].PlayerID != 1 {
		t.Fatalf("expected only player 1 admitted, got %d scores", len(scores))
	}
	if tally.ScoresRejected != 1 || tally.ByReason[ReasonScoreRejected] != 1 {
		t.Errorf("tally = %+v; want one score rejection", tally)
	}
}

func TestAdmissibleGames(t *testing.T) {
	tr := verifiedTournament()
	ok := verifiedMatch()
	ok.Games = []*domain.Game{verifiedGame(verifiedScore(1), verifiedScore(2))}

	rejected := verifiedMatch()
	rejected.ID = 11
	rejected.VerificationStatus = domain.VerificationPreVerified
	rejected.Games = []*domain.Game{verifiedGame(verifiedScore(3), verifiedScore(4))}

	tr.Matches = []*domain.Match{ok, rejected}

	tally := NewTally()
	admitted := AdmissibleGames(tr, tally)
	if len(admitted) != 1 {
		t.Fatalf("expected 1 admitted match, got %d", len(admitted))
	}
	if games := admitted[ok]; len(games) != 1 {
		t.Errorf("expected 1 admitted game for match %d", ok.ID)
	}
	if tally.MatchesRejected != 1 {
		t.Errorf("MatchesRejected = %d; want 1", tally.MatchesRejected)
	}
}

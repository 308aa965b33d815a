package stats

import (
	"context"
	"io"
	"log/slog"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/tourneyrank/processor/internal/domain"
	"github.com/tourneyrank/processor/internal/eligibility"
	"github.com/tourneyrank/processor/internal/timeline"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var baseTime = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func score(playerID int, team domain.Team, value int64, misses int) *domain.Score {
	return &domain.Score{
		PlayerID:           playerID,
		Team:               team,
		Score:              value,
		CountMiss:          misses,
		Count300:           100,
		Passed:             true,
		VerificationStatus: domain.VerificationVerified,
	}
}

func game(id int, teamType domain.TeamType, start time.Time, scores ...*domain.Score) *domain.Game {
	return &domain.Game{
		ID:                 id,
		MatchID:            1,
		Ruleset:            domain.RulesetOsu,
		ScoringType:        domain.ScoringScore,
		TeamType:           teamType,
		StartTime:          start,
		VerificationStatus: domain.VerificationVerified,
		Scores:             scores,
	}
}

func buildTimeline(t *testing.T, games ...*domain.Game) *timeline.Timeline {
	t.Helper()
	match := &domain.Match{
		ID:                 1,
		TournamentID:       10,
		Ruleset:            domain.RulesetOsu,
		VerificationStatus: domain.VerificationVerified,
		Games:              games,
	}
	tr := &domain.Tournament{
		ID:                 10,
		Ruleset:            domain.RulesetOsu,
		VerificationStatus: domain.VerificationVerified,
		Matches:            []*domain.Match{match},
	}
	tl, _ := timeline.Build([]*domain.Tournament{tr}, eligibility.NewTally(), discard)
	return tl
}

func entryPtrs(tl *timeline.Timeline) []*timeline.Entry {
	out := make([]*timeline.Entry, len(tl.Entries))
	for i := range tl.Entries {
		out[i] = &tl.Entries[i]
	}
	return out
}

func TestMatchCostsSingleGame(t *testing.T) {
	tl := buildTimeline(t,
		game(1, domain.TeamTypeHeadToHead, baseTime,
			score(1, 0, 800000, 0), score(2, 0, 400000, 0)))

	costs := matchCosts(entryPtrs(tl))
	if len(costs) != 2 {
		t.Fatalf("got %d costs; want 2", len(costs))
	}
	if costs[1] <= costs[2] {
		t.Errorf("higher scorer must cost more: %v vs %v", costs[1], costs[2])
	}
	// One game played: base 0.5 plus CDF value, times the full lobby bonus.
	for id, c := range costs {
		if c < 0.5*(1+lobbyBonus) || c > 1.5*(1+lobbyBonus) {
			t.Errorf("player %d cost %v outside single-game bounds", id, c)
		}
	}
}

func TestMatchCostsZeroVarianceGame(t *testing.T) {
	tl := buildTimeline(t,
		game(1, domain.TeamTypeHeadToHead, baseTime,
			score(1, 0, 500000, 0), score(2, 0, 500000, 0)))

	costs := matchCosts(entryPtrs(tl))
	// Identical scores contribute the neutral 0.5 each.
	if math.Abs(costs[1]-costs[2]) > 1e-12 {
		t.Errorf("equal scores must cost equally: %v vs %v", costs[1], costs[2])
	}
}

func TestMatchCostsNoGames(t *testing.T) {
	if costs := matchCosts(nil); costs != nil {
		t.Errorf("expected nil for empty match, got %v", costs)
	}
}

func finalState(playerID int, matchID int, before, after float64) *domain.PlayerRating {
	return &domain.PlayerRating{
		PlayerID: playerID,
		Ruleset:  domain.RulesetOsu,
		Rating:   after,
		Adjustments: []domain.RatingAdjustment{{
			PlayerID:     playerID,
			Ruleset:      domain.RulesetOsu,
			MatchID:      matchID,
			Type:         domain.AdjustmentMatch,
			RatingBefore: before,
			RatingAfter:  after,
		}},
	}
}

func TestComputeTeamMatch(t *testing.T) {
	games := []*domain.Game{
		game(1, domain.TeamTypeTeamVs, baseTime,
			score(1, domain.TeamBlue, 700000, 2), score(2, domain.TeamBlue, 600000, 1),
			score(3, domain.TeamRed, 500000, 4), score(4, domain.TeamRed, 400000, 3)),
		game(2, domain.TeamTypeTeamVs, baseTime.Add(5*time.Minute),
			score(1, domain.TeamBlue, 900000, 0), score(2, domain.TeamBlue, 300000, 5),
			score(3, domain.TeamRed, 500000, 2), score(4, domain.TeamRed, 200000, 6)),
	}
	tl := buildTimeline(t, games...)
	final := []*domain.PlayerRating{
		finalState(1, 1, 700, 720),
		finalState(2, 1, 650, 660),
		finalState(3, 1, 600, 580),
		finalState(4, 1, 550, 540),
	}

	agg := NewAggregator(4, discard)
	result, err := agg.Compute(context.Background(), tl, final)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.MatchStats) != 4 {
		t.Fatalf("got %d match stats rows; want 4", len(result.MatchStats))
	}
	byPlayer := make(map[int]*domain.MatchStats)
	for _, ms := range result.MatchStats {
		byPlayer[ms.PlayerID] = ms
	}

	// Blue won both games 2-0.
	for _, id := range []int{1, 2} {
		ms := byPlayer[id]
		if !ms.Won || ms.GamesWon != 2 || ms.GamesLost != 0 {
			t.Errorf("player %d: won=%v gamesWon=%d gamesLost=%d; want win 2-0",
				id, ms.Won, ms.GamesWon, ms.GamesLost)
		}
	}
	for _, id := range []int{3, 4} {
		ms := byPlayer[id]
		if ms.Won || ms.GamesWon != 0 || ms.GamesLost != 2 {
			t.Errorf("player %d: won=%v gamesWon=%d gamesLost=%d; want loss 0-2",
				id, ms.Won, ms.GamesWon, ms.GamesLost)
		}
	}

	p1 := byPlayer[1]
	if got, want := p1.TeammateIDs, []int{2}; !reflect.DeepEqual(got, want) {
		t.Errorf("player 1 teammates = %v; want %v", got, want)
	}
	if got, want := p1.OpponentIDs, []int{3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("player 1 opponents = %v; want %v", got, want)
	}
	if p1.AverageScore != 800000 {
		t.Errorf("player 1 average score = %v; want 800000", p1.AverageScore)
	}
	if p1.AverageMisses != 1 {
		t.Errorf("player 1 average misses = %v; want 1", p1.AverageMisses)
	}
	if p1.AveragePlacement != 1 {
		t.Errorf("player 1 average placement = %v; want 1", p1.AveragePlacement)
	}
	// Teammate rating entering the match comes from the adjustment history.
	if p1.AverageTeammateRating != 650 {
		t.Errorf("player 1 avg teammate rating = %v; want 650", p1.AverageTeammateRating)
	}
	if p1.AverageOpponentRating != 575 {
		t.Errorf("player 1 avg opponent rating = %v; want 575", p1.AverageOpponentRating)
	}

	if len(result.GameWinRecords) != 2 {
		t.Fatalf("got %d game win records; want 2", len(result.GameWinRecords))
	}
	for _, rec := range result.GameWinRecords {
		if rec.WinnerTeam != domain.TeamBlue || rec.LoserTeam != domain.TeamRed {
			t.Errorf("game %d: winner=%v loser=%v; want blue over red",
				rec.GameID, rec.WinnerTeam, rec.LoserTeam)
		}
		if !reflect.DeepEqual(rec.WinnerIDs, []int{1, 2}) {
			t.Errorf("game %d winners = %v; want [1 2]", rec.GameID, rec.WinnerIDs)
		}
	}

	if len(result.MatchWinRecords) != 1 {
		t.Fatalf("got %d match win records; want 1", len(result.MatchWinRecords))
	}
	mwr := result.MatchWinRecords[0]
	if mwr.BluePoints != 2 || mwr.RedPoints != 0 {
		t.Errorf("points = %d-%d; want 2-0", mwr.BluePoints, mwr.RedPoints)
	}
	if mwr.WinnerTeam == nil || *mwr.WinnerTeam != domain.TeamBlue {
		t.Errorf("winner team = %v; want blue", mwr.WinnerTeam)
	}
}

func TestComputeHeadToHeadMatch(t *testing.T) {
	games := []*domain.Game{
		game(1, domain.TeamTypeHeadToHead, baseTime,
			score(1, 0, 900000, 0), score(2, 0, 400000, 3)),
		game(2, domain.TeamTypeHeadToHead, baseTime.Add(5*time.Minute),
			score(1, 0, 300000, 4), score(2, 0, 800000, 1)),
		game(3, domain.TeamTypeHeadToHead, baseTime.Add(10*time.Minute),
			score(1, 0, 700000, 2), score(2, 0, 600000, 2)),
	}
	tl := buildTimeline(t, games...)
	final := []*domain.PlayerRating{
		finalState(1, 1, 700, 710),
		finalState(2, 1, 700, 690),
	}

	agg := NewAggregator(2, discard)
	result, err := agg.Compute(context.Background(), tl, final)
	if err != nil {
		t.Fatal(err)
	}

	byPlayer := make(map[int]*domain.MatchStats)
	for _, ms := range result.MatchStats {
		byPlayer[ms.PlayerID] = ms
	}
	if !byPlayer[1].Won || byPlayer[2].Won {
		t.Errorf("player 1 took 2 of 3 games and must win the match")
	}
	if byPlayer[1].GamesWon != 2 || byPlayer[1].GamesLost != 1 {
		t.Errorf("player 1 games = %d-%d; want 2-1",
			byPlayer[1].GamesWon, byPlayer[1].GamesLost)
	}
	if len(byPlayer[1].TeammateIDs) != 0 {
		t.Errorf("head-to-head players have no teammates, got %v", byPlayer[1].TeammateIDs)
	}
	if !reflect.DeepEqual(byPlayer[1].OpponentIDs, []int{2}) {
		t.Errorf("player 1 opponents = %v; want [2]", byPlayer[1].OpponentIDs)
	}
	// Non-team matches carry no teammate/opponent rating averages.
	if byPlayer[1].AverageTeammateRating != 0 || byPlayer[1].AverageOpponentRating != 0 {
		t.Errorf("head-to-head must not compute side rating averages")
	}

	if len(result.MatchWinRecords) != 1 {
		t.Fatalf("got %d match win records; want 1", len(result.MatchWinRecords))
	}
	mwr := result.MatchWinRecords[0]
	if !reflect.DeepEqual(mwr.BlueIDs, []int{1}) || !reflect.DeepEqual(mwr.RedIDs, []int{2}) {
		t.Errorf("1v1 record sides = %v / %v; want [1] / [2]", mwr.BlueIDs, mwr.RedIDs)
	}
	if mwr.WinnerTeam == nil || *mwr.WinnerTeam != domain.TeamBlue {
		t.Errorf("1v1 winner = %v; want blue (player 1)", mwr.WinnerTeam)
	}
}

func TestComputeTournamentRollup(t *testing.T) {
	games := []*domain.Game{
		game(1, domain.TeamTypeHeadToHead, baseTime,
			score(1, 0, 900000, 0), score(2, 0, 400000, 3)),
		game(2, domain.TeamTypeHeadToHead, baseTime.Add(5*time.Minute),
			score(1, 0, 800000, 1), score(2, 0, 500000, 2)),
	}
	tl := buildTimeline(t, games...)
	final := []*domain.PlayerRating{
		finalState(1, 1, 700, 725),
		finalState(2, 1, 700, 680),
	}

	agg := NewAggregator(1, discard)
	result, err := agg.Compute(context.Background(), tl, final)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.TournamentStats) != 2 {
		t.Fatalf("got %d tournament rows; want 2", len(result.TournamentStats))
	}
	var p1 *domain.TournamentStats
	for _, ts := range result.TournamentStats {
		if ts.PlayerID == 1 {
			p1 = ts
		}
	}
	if p1.TournamentID != 10 {
		t.Errorf("tournament id = %d; want 10", p1.TournamentID)
	}
	if p1.MatchesPlayed != 1 || p1.MatchesWon != 1 || p1.MatchWinRate != 1 {
		t.Errorf("player 1 matches = %d played %d won rate %v; want 1/1/1",
			p1.MatchesPlayed, p1.MatchesWon, p1.MatchWinRate)
	}
	if p1.AverageRatingDelta != 25 {
		t.Errorf("player 1 avg rating delta = %v; want 25", p1.AverageRatingDelta)
	}
	if p1.GamesPlayed != 2 || p1.GamesWon != 2 {
		t.Errorf("player 1 games = %d played %d won; want 2/2", p1.GamesPlayed, p1.GamesWon)
	}
	if len(p1.TeammateIDs) != 0 {
		t.Errorf("player 1 teammates = %v; want none in head-to-head", p1.TeammateIDs)
	}
	if len(p1.OpponentIDs) != 1 || p1.OpponentIDs[0] != 2 {
		t.Errorf("player 1 opponents = %v; want [2]", p1.OpponentIDs)
	}
}

func TestComputeIdempotence(t *testing.T) {
	games := []*domain.Game{
		game(1, domain.TeamTypeTeamVs, baseTime,
			score(1, domain.TeamBlue, 700000, 2), score(2, domain.TeamBlue, 600000, 1),
			score(3, domain.TeamRed, 500000, 4), score(4, domain.TeamRed, 650000, 3)),
		game(2, domain.TeamTypeTeamVs, baseTime.Add(5*time.Minute),
			score(1, domain.TeamBlue, 200000, 8), score(2, domain.TeamBlue, 300000, 5),
			score(3, domain.TeamRed, 500000, 2), score(4, domain.TeamRed, 400000, 6)),
	}
	final := []*domain.PlayerRating{
		finalState(1, 1, 700, 720),
		finalState(2, 1, 650, 660),
		finalState(3, 1, 600, 580),
		finalState(4, 1, 550, 540),
	}

	run := func() *Result {
		tl := buildTimeline(t, games...)
		result, err := NewAggregator(4, discard).Compute(context.Background(), tl, final)
		if err != nil {
			t.Fatal(err)
		}
		return result
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Error("two aggregations over identical inputs must produce identical rows")
	}
}

func TestComputeDrawnMatchHasNoWinner(t *testing.T) {
	games := []*domain.Game{
		game(1, domain.TeamTypeTeamVs, baseTime,
			score(1, domain.TeamBlue, 700000, 0), score(2, domain.TeamRed, 500000, 0)),
		game(2, domain.TeamTypeTeamVs, baseTime.Add(5*time.Minute),
			score(1, domain.TeamBlue, 400000, 0), score(2, domain.TeamRed, 600000, 0)),
	}
	tl := buildTimeline(t, games...)
	final := []*domain.PlayerRating{
		finalState(1, 1, 700, 700),
		finalState(2, 1, 700, 700),
	}

	result, err := NewAggregator(1, discard).Compute(context.Background(), tl, final)
	if err != nil {
		t.Fatal(err)
	}

	for _, ms := range result.MatchStats {
		if ms.Won {
			t.Errorf("player %d marked as winner of a drawn match", ms.PlayerID)
		}
	}
	if len(result.MatchWinRecords) != 1 {
		t.Fatalf("drawn team match still gets a win record with nil winner")
	}
	if result.MatchWinRecords[0].WinnerTeam != nil {
		t.Errorf("drawn match winner = %v; want nil", *result.MatchWinRecords[0].WinnerTeam)
	}
}

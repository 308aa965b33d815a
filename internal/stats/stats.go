// Package stats derives per-match and per-tournament player statistics from
// the final rating state and the replay timeline: match costs, placement
// and accuracy aggregates, win/loss counts, and team-level win records.
// Everything here is recomputed from scratch each run; two runs over the
// same inputs produce identical rows.
package stats

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tourneyrank/processor/internal/domain"
	"github.com/tourneyrank/processor/internal/timeline"
)

// Result is the full derived-statistics output of a run.
type Result struct {
	MatchStats      []*domain.MatchStats
	TournamentStats []*domain.TournamentStats
	GameWinRecords  []*domain.GameWinRecord
	MatchWinRecords []*domain.MatchWinRecord
}

// Aggregator computes derived statistics in parallel across matches. It
// only reads the timeline and the engine's published final state, so the
// per-match work shares no mutable state.
type Aggregator struct {
	workers int
	logger  *slog.Logger
}

// NewAggregator returns an aggregator running at most workers concurrent
// match computations.
func NewAggregator(workers int, logger *slog.Logger) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{workers: workers, logger: logger}
}

// priorKey addresses a player's rating state entering a specific match.
type priorKey struct {
	playerID int
	ruleset  domain.Ruleset
	matchID  int
}

// matchGroup is one match's slice of the global timeline.
type matchGroup struct {
	tournament *domain.Tournament
	match      *domain.Match
	entries    []*timeline.Entry
}

// Compute derives all statistics for the timeline. The final states must be
// the engine's completed snapshot: match priors and rating deltas are read
// back out of the adjustment histories.
func (a *Aggregator) Compute(ctx context.Context, tl *timeline.Timeline, final []*domain.PlayerRating) (*Result, error) {
	priors, deltas := indexAdjustments(final)
	groups := groupByMatch(tl)

	results := make([]*matchResult, len(groups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = computeMatch(group, priors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{}
	rollup := newTournamentRollup()
	for _, mr := range results {
		out.MatchStats = append(out.MatchStats, mr.stats...)
		out.GameWinRecords = append(out.GameWinRecords, mr.gameRecords...)
		if mr.winRecord != nil {
			out.MatchWinRecords = append(out.MatchWinRecords, mr.winRecord)
		}
		rollup.add(mr, deltas)
	}
	out.TournamentStats = rollup.finish()

	a.logger.Info("statistics aggregated",
		"matches", len(groups),
		"match_stats", len(out.MatchStats),
		"tournament_stats", len(out.TournamentStats),
		"game_win_records", len(out.GameWinRecords),
		"match_win_records", len(out.MatchWinRecords))
	return out, nil
}

// indexAdjustments extracts, per (player, ruleset, match), the rating
// entering the match and the total rating change across it.
func indexAdjustments(final []*domain.PlayerRating) (map[priorKey]float64, map[priorKey]float64) {
	priors := make(map[priorKey]float64)
	deltas := make(map[priorKey]float64)
	for _, state := range final {
		for _, adj := range state.Adjustments {
			if adj.Type != domain.AdjustmentMatch {
				continue
			}
			key := priorKey{state.PlayerID, state.Ruleset, adj.MatchID}
			if _, ok := priors[key]; !ok {
				priors[key] = adj.RatingBefore
			}
			deltas[key] += adj.RatingDelta()
		}
	}
	return priors, deltas
}

// groupByMatch splits the timeline into per-match slices, preserving the
// timeline's deterministic order of first appearance.
func groupByMatch(tl *timeline.Timeline) []*matchGroup {
	var groups []*matchGroup
	index := make(map[*domain.Match]*matchGroup)
	for i := range tl.Entries {
		entry := &tl.Entries[i]
		group, ok := index[entry.Match]
		if !ok {
			group = &matchGroup{tournament: entry.Tournament, match: entry.Match}
			index[entry.Match] = group
			groups = append(groups, group)
		}
		group.entries = append(group.entries, entry)
	}
	return groups
}

// playerAccum collects one player's totals across a match's games.
type playerAccum struct {
	scoreSum     float64
	placementSum float64
	missSum      float64
	accuracySum  float64
	played       int
	won          int
	lost         int
	teammates    map[int]struct{}
	opponents    map[int]struct{}
}

type matchResult struct {
	tournament *domain.Tournament
	match      *domain.Match
	stats      []*domain.MatchStats
	// matchWon and matchDecided carry the match outcome for the
	// tournament rollup, keyed by player ID.
	matchWon     map[int]bool
	matchDecided bool

	gameRecords []*domain.GameWinRecord
	winRecord   *domain.MatchWinRecord
}

func computeMatch(group *matchGroup, priors map[priorKey]float64) *matchResult {
	match := group.match
	costs := matchCosts(group.entries)
	accums := make(map[int]*playerAccum)
	accum := func(playerID int) *playerAccum {
		p, ok := accums[playerID]
		if !ok {
			p = &playerAccum{
				teammates: make(map[int]struct{}),
				opponents: make(map[int]struct{}),
			}
			accums[playerID] = p
		}
		return p
	}

	mr := &matchResult{tournament: group.tournament, match: match}

	// Side membership and points for the team-based match record.
	sideIDs := map[domain.Team]map[int]struct{}{
		domain.TeamBlue: make(map[int]struct{}),
		domain.TeamRed:  make(map[int]struct{}),
	}
	sidePoints := make(map[domain.Team]int)
	teamBasedGames := 0

	for _, entry := range group.entries {
		game := entry.Game
		if game.TeamType == domain.TeamTypeTeamVs || game.TeamType == domain.TeamTypeTagTeamVs {
			teamBasedGames++
		}

		winnerIdx := winningTeam(entry, game)
		placements := scorePlacements(entry, game)

		for ti, team := range entry.Teams {
			for _, s := range team.Scores {
				p := accum(s.PlayerID)
				p.played++
				p.scoreSum += float64(s.Score)
				p.placementSum += float64(placements[s.PlayerID])
				p.missSum += float64(s.CountMiss)
				p.accuracySum += s.Accuracy(game.Ruleset)
				if winnerIdx >= 0 {
					if ti == winnerIdx {
						p.won++
					} else {
						p.lost++
					}
				}
				for _, other := range team.Scores {
					if other.PlayerID != s.PlayerID {
						p.teammates[other.PlayerID] = struct{}{}
					}
				}
				for oi, opp := range entry.Teams {
					if oi == ti {
						continue
					}
					for _, other := range opp.Scores {
						p.opponents[other.PlayerID] = struct{}{}
					}
				}
				if set, ok := sideIDs[team.Team]; ok {
					set[s.PlayerID] = struct{}{}
				}
			}
		}

		if winnerIdx >= 0 {
			rec := gameWinRecord(entry, winnerIdx)
			mr.gameRecords = append(mr.gameRecords, rec)
			if rec.WinnerTeam == domain.TeamBlue || rec.WinnerTeam == domain.TeamRed {
				sidePoints[rec.WinnerTeam]++
			}
		}
	}

	teamBased := teamBasedGames > len(group.entries)-teamBasedGames
	mr.matchWon, mr.matchDecided, mr.winRecord = matchOutcome(match, accums, teamBased, sideIDs, sidePoints)

	for _, playerID := range sortedIDs(accums) {
		p := accums[playerID]
		n := float64(p.played)
		ms := &domain.MatchStats{
			PlayerID:         playerID,
			MatchID:          match.ID,
			Won:              mr.matchWon[playerID],
			MatchCost:        costs[playerID],
			AverageScore:     p.scoreSum / n,
			AveragePlacement: p.placementSum / n,
			AverageMisses:    p.missSum / n,
			AverageAccuracy:  p.accuracySum / n,
			GamesPlayed:      p.played,
			GamesWon:         p.won,
			GamesLost:        p.lost,
			TeammateIDs:      sortedIDs(p.teammates),
			OpponentIDs:      sortedIDs(p.opponents),
		}
		if teamBased {
			ms.AverageTeammateRating = averagePrior(ms.TeammateIDs, match, priors)
			ms.AverageOpponentRating = averagePrior(ms.OpponentIDs, match, priors)
		}
		mr.stats = append(mr.stats, ms)
	}
	return mr
}

// winningTeam returns the index of the strictly best team by the game's
// scoring criterion, or -1 when the top teams are exactly tied.
func winningTeam(entry *timeline.Entry, game *domain.Game) int {
	best, runnerUp := -1, -1
	var bestValue, runnerUpValue float64
	for i, team := range entry.Teams {
		var total float64
		for _, s := range team.Scores {
			total += s.ScoringValue(game.ScoringType, game.Ruleset)
		}
		switch {
		case best == -1 || total > bestValue:
			runnerUp, runnerUpValue = best, bestValue
			best, bestValue = i, total
		case runnerUp == -1 || total > runnerUpValue:
			runnerUp, runnerUpValue = i, total
		}
	}
	if runnerUp != -1 && bestValue == runnerUpValue {
		return -1
	}
	return best
}

// scorePlacements ranks every score in the game individually (1 is best,
// exact ties share a placement).
func scorePlacements(entry *timeline.Entry, game *domain.Game) map[int]int {
	type scored struct {
		playerID int
		value    float64
	}
	var all []scored
	for _, team := range entry.Teams {
		for _, s := range team.Scores {
			all = append(all, scored{s.PlayerID, s.ScoringValue(game.ScoringType, game.Ruleset)})
		}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].value != all[b].value {
			return all[a].value > all[b].value
		}
		return all[a].playerID < all[b].playerID
	})

	placements := make(map[int]int, len(all))
	for i, sc := range all {
		if i > 0 && sc.value == all[i-1].value {
			placements[sc.playerID] = placements[all[i-1].playerID]
		} else {
			placements[sc.playerID] = i + 1
		}
	}
	return placements
}

func gameWinRecord(entry *timeline.Entry, winnerIdx int) *domain.GameWinRecord {
	rec := &domain.GameWinRecord{
		GameID:     entry.Game.ID,
		WinnerTeam: entry.Teams[winnerIdx].Team,
		LoserTeam:  domain.TeamNone,
	}
	winners := make(map[int]struct{})
	losers := make(map[int]struct{})
	loserTeams := 0
	for i, team := range entry.Teams {
		for _, s := range team.Scores {
			if i == winnerIdx {
				winners[s.PlayerID] = struct{}{}
			} else {
				losers[s.PlayerID] = struct{}{}
			}
		}
		if i != winnerIdx {
			loserTeams++
			if loserTeams == 1 {
				rec.LoserTeam = team.Team
			} else {
				rec.LoserTeam = domain.TeamNone
			}
		}
	}
	rec.WinnerIDs = sortedIDs(winners)
	rec.LoserIDs = sortedIDs(losers)
	return rec
}

// matchOutcome decides per-player match wins and builds the match win
// record. Team matches are decided on game points per side; head-to-head
// matches award the win to the player with strictly the most game wins.
func matchOutcome(
	match *domain.Match,
	accums map[int]*playerAccum,
	teamBased bool,
	sideIDs map[domain.Team]map[int]struct{},
	sidePoints map[domain.Team]int,
) (map[int]bool, bool, *domain.MatchWinRecord) {
	won := make(map[int]bool, len(accums))

	if teamBased {
		rec := &domain.MatchWinRecord{
			MatchID:    match.ID,
			BlueIDs:    sortedIDs(sideIDs[domain.TeamBlue]),
			RedIDs:     sortedIDs(sideIDs[domain.TeamRed]),
			BluePoints: sidePoints[domain.TeamBlue],
			RedPoints:  sidePoints[domain.TeamRed],
		}
		var winner, loser domain.Team
		switch {
		case rec.BluePoints > rec.RedPoints:
			winner, loser = domain.TeamBlue, domain.TeamRed
		case rec.RedPoints > rec.BluePoints:
			winner, loser = domain.TeamRed, domain.TeamBlue
		default:
			return won, false, rec
		}
		rec.WinnerTeam, rec.LoserTeam = &winner, &loser
		for id := range sideIDs[winner] {
			won[id] = true
		}
		return won, true, rec
	}

	// Head-to-head: most individual game wins takes the match.
	best, bestWins, tied := 0, 0, false
	for _, id := range sortedIDs(accums) {
		switch w := accums[id].won; {
		case w > bestWins:
			best, bestWins, tied = id, w, false
		case w == bestWins && w > 0:
			tied = true
		}
	}
	if bestWins == 0 || tied {
		return won, false, nil
	}
	won[best] = true

	// A two-player head-to-head still gets a win record, with the lower
	// player ID recorded on the blue side.
	if len(accums) == 2 {
		ids := sortedIDs(accums)
		rec := &domain.MatchWinRecord{
			MatchID:    match.ID,
			BlueIDs:    ids[:1],
			RedIDs:     ids[1:],
			BluePoints: accums[ids[0]].won,
			RedPoints:  accums[ids[1]].won,
		}
		winner, loser := domain.TeamBlue, domain.TeamRed
		if best == ids[1] {
			winner, loser = domain.TeamRed, domain.TeamBlue
		}
		rec.WinnerTeam, rec.LoserTeam = &winner, &loser
		return won, true, rec
	}
	return won, true, nil
}

// averagePrior is the mean rating the given players carried into the match.
func averagePrior(ids []int, match *domain.Match, priors map[priorKey]float64) float64 {
	if len(ids) == 0 {
		return 0
	}
	var sum float64
	for _, id := range ids {
		sum += priors[priorKey{id, match.Ruleset, match.ID}]
	}
	return sum / float64(len(ids))
}

// tournamentRollup folds per-match results into per-(player, tournament)
// aggregates in deterministic match order.
type tournamentRollup struct {
	order []tournamentPlayerKey
	rows  map[tournamentPlayerKey]*tournamentAccum
}

type tournamentPlayerKey struct {
	tournamentID int
	playerID     int
}

type tournamentAccum struct {
	matchesPlayed   int
	matchesWon      int
	matchesLost     int
	ratingDeltaSum  float64
	matchCostSum    float64
	scoreAvgSum     float64
	placementAvgSum float64
	missAvgSum      float64
	accuracyAvgSum  float64
	gamesPlayed     int
	gamesWon        int
	gamesLost       int
	teammates       map[int]struct{}
	opponents       map[int]struct{}
}

func newTournamentRollup() *tournamentRollup {
	return &tournamentRollup{rows: make(map[tournamentPlayerKey]*tournamentAccum)}
}

func (r *tournamentRollup) add(mr *matchResult, deltas map[priorKey]float64) {
	for _, ms := range mr.stats {
		key := tournamentPlayerKey{mr.tournament.ID, ms.PlayerID}
		row, ok := r.rows[key]
		if !ok {
			row = &tournamentAccum{
				teammates: make(map[int]struct{}),
				opponents: make(map[int]struct{}),
			}
			r.rows[key] = row
			r.order = append(r.order, key)
		}

		row.matchesPlayed++
		if ms.Won {
			row.matchesWon++
		} else if mr.matchDecided {
			row.matchesLost++
		}
		row.ratingDeltaSum += deltas[priorKey{ms.PlayerID, mr.match.Ruleset, mr.match.ID}]
		row.matchCostSum += ms.MatchCost
		row.scoreAvgSum += ms.AverageScore
		row.placementAvgSum += ms.AveragePlacement
		row.missAvgSum += ms.AverageMisses
		row.accuracyAvgSum += ms.AverageAccuracy
		row.gamesPlayed += ms.GamesPlayed
		row.gamesWon += ms.GamesWon
		row.gamesLost += ms.GamesLost
		for _, id := range ms.TeammateIDs {
			row.teammates[id] = struct{}{}
		}
		for _, id := range ms.OpponentIDs {
			row.opponents[id] = struct{}{}
		}
	}
}

func (r *tournamentRollup) finish() []*domain.TournamentStats {
	sort.Slice(r.order, func(a, b int) bool {
		if r.order[a].tournamentID != r.order[b].tournamentID {
			return r.order[a].tournamentID < r.order[b].tournamentID
		}
		return r.order[a].playerID < r.order[b].playerID
	})

	out := make([]*domain.TournamentStats, 0, len(r.order))
	for _, key := range r.order {
		row := r.rows[key]
		n := float64(row.matchesPlayed)
		out = append(out, &domain.TournamentStats{
			PlayerID:           key.playerID,
			TournamentID:       key.tournamentID,
			AverageRatingDelta: row.ratingDeltaSum / n,
			AverageMatchCost:   row.matchCostSum / n,
			AverageScore:       row.scoreAvgSum / n,
			AveragePlacement:   row.placementAvgSum / n,
			AverageMisses:      row.missAvgSum / n,
			AverageAccuracy:    row.accuracyAvgSum / n,
			MatchesPlayed:      row.matchesPlayed,
			MatchesWon:         row.matchesWon,
			MatchesLost:        row.matchesLost,
			MatchWinRate:       float64(row.matchesWon) / n,
			GamesPlayed:        row.gamesPlayed,
			GamesWon:           row.gamesWon,
			GamesLost:          row.gamesLost,
			TeammateIDs:        sortedIDs(row.teammates),
			OpponentIDs:        sortedIDs(row.opponents),
		})
	}
	return out
}

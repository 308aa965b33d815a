// Package timeline orders admissible games across the whole dataset into a
// single deterministic chronological sequence. Processing order changes
// rating outcomes, so the total order must be stable: start time ascending,
// ties broken by ascending game ID.
package timeline

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/tourneyrank/processor/internal/domain"
	"github.com/tourneyrank/processor/internal/eligibility"
)

// TeamScores groups one side's admissible scores within a game.
type TeamScores struct {
	Team   domain.Team
	Scores []*domain.Score
}

// Entry is one rateable game on the global timeline, with its scores
// already partitioned into opposing teams.
type Entry struct {
	Tournament *domain.Tournament
	Match      *domain.Match
	Game       *domain.Game
	// Teams holds at least two sides, each with at least one score.
	// Head-to-head and free-for-all games produce one team per player.
	Teams []TeamScores
}

// Timeline is the fully ordered replay sequence plus per-player views used
// by downstream statistics.
type Timeline struct {
	Entries []Entry
	// PlayerEntries indexes entry positions by participating player.
	PlayerEntries map[int][]int
}

// Report tallies structural anomalies found during construction.
type Report struct {
	GamesExcluded   int
	EmptyTeams      int
	SingleTeamGames int
}

// Summary returns a human-readable anomaly summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("games_excluded=%d single_team=%d empty_team=%d",
		r.GamesExcluded, r.SingleTeamGames, r.EmptyTeams)
}

// Build filters the tournaments through the eligibility gates and assembles
// the global timeline. Structurally invalid games (fewer than two opposing
// teams, or a side with no participants) are excluded and logged, not
// treated as hard errors.
func Build(tournaments []*domain.Tournament, tally *eligibility.Tally, logger *slog.Logger) (*Timeline, *Report) {
	tl := &Timeline{PlayerEntries: make(map[int][]int)}
	report := &Report{}

	for _, tournament := range tournaments {
		admitted := eligibility.AdmissibleGames(tournament, tally)
		for match, games := range admitted {
			for _, game := range games {
				scores := eligibility.AdmissibleScores(game, tally)
				teams, ok := partitionTeams(game, scores)
				if !ok {
					report.GamesExcluded++
					if len(teams) == 1 {
						report.SingleTeamGames++
					}
					logger.Warn("excluding structurally invalid game",
						"game_id", game.ID, "match_id", match.ID, "teams", len(teams))
					continue
				}
				tl.Entries = append(tl.Entries, Entry{
					Tournament: tournament,
					Match:      match,
					Game:       game,
					Teams:      teams,
				})
			}
		}
	}

	sort.Slice(tl.Entries, func(i, j int) bool {
		a, b := tl.Entries[i].Game, tl.Entries[j].Game
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})

	for i, e := range tl.Entries {
		for _, team := range e.Teams {
			for _, s := range team.Scores {
				tl.PlayerEntries[s.PlayerID] = append(tl.PlayerEntries[s.PlayerID], i)
			}
		}
	}

	return tl, report
}

// partitionTeams groups the admitted scores into opposing sides according
// to the game's team type. Head-to-head and tag-coop games are modeled as
// free-for-all: one single-player team per score.
func partitionTeams(game *domain.Game, scores []*domain.Score) ([]TeamScores, bool) {
	if len(scores) == 0 {
		return nil, false
	}

	var teams []TeamScores
	switch game.TeamType {
	case domain.TeamTypeTeamVs, domain.TeamTypeTagTeamVs:
		byTeam := map[domain.Team][]*domain.Score{}
		for _, s := range scores {
			byTeam[s.Team] = append(byTeam[s.Team], s)
		}
		// Deterministic side order: blue, red, then unassigned.
		for _, side := range []domain.Team{domain.TeamBlue, domain.TeamRed, domain.TeamNone} {
			if members := byTeam[side]; len(members) > 0 {
				teams = append(teams, TeamScores{Team: side, Scores: members})
			}
		}
	case domain.TeamTypeHeadToHead, domain.TeamTypeTagCoop:
		for _, s := range scores {
			teams = append(teams, TeamScores{Team: domain.TeamNone, Scores: []*domain.Score{s}})
		}
	}

	if len(teams) < 2 {
		return teams, false
	}
	for _, t := range teams {
		if len(t.Scores) == 0 {
			return teams, false
		}
	}
	return teams, true
}

// Participants returns the distinct player IDs of the entry in team order.
func (e *Entry) Participants() []int {
	var ids []int
	for _, team := range e.Teams {
		for _, s := range team.Scores {
			ids = append(ids, s.PlayerID)
		}
	}
	return ids
}

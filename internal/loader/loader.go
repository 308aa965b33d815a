// Package loader reads the competition record out of Postgres and assembles
// the immutable in-memory projection the pipeline runs on. Tournament and
// player reads run concurrently; after Load returns, no stage touches the
// store again until the writer commits.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tourneyrank/processor/internal/db"
	"github.com/tourneyrank/processor/internal/domain"
)

// Filter narrows which tournaments a run consumes. Zero fields mean no
// restriction.
type Filter struct {
	Rulesets     []int
	TournamentID int
	From         time.Time
	To           time.Time
}

// Projection is the loader's complete, immutable output.
type Projection struct {
	Tournaments []*domain.Tournament
	Players     []*domain.PlayerInfo
}

type Loader struct {
	pool   *db.Pool
	logger *slog.Logger
}

func New(pool *db.Pool, logger *slog.Logger) *Loader {
	return &Loader{pool: pool, logger: logger}
}

// Load fetches tournaments and player info concurrently and assembles the
// projection.
func (l *Loader) Load(ctx context.Context, filter Filter) (*Projection, error) {
	proj := &Projection{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tournaments, err := l.loadTournaments(ctx, filter)
		if err != nil {
			return fmt.Errorf("load tournaments: %w", err)
		}
		proj.Tournaments = tournaments
		return nil
	})
	g.Go(func() error {
		players, err := l.Players(ctx)
		if err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		proj.Players = players
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	games, scores := 0, 0
	for _, t := range proj.Tournaments {
		for _, m := range t.Matches {
			games += len(m.Games)
			for _, gm := range m.Games {
				scores += len(gm.Scores)
			}
		}
	}
	l.logger.Info("projection loaded",
		"tournaments", len(proj.Tournaments),
		"games", games,
		"scores", scores,
		"players", len(proj.Players))
	return proj, nil
}

// loadTournaments streams the hierarchical select and folds the flat rows
// back into tournament -> match -> game -> score trees. Rows arrive ordered
// by (tournament, match, game, score) id, so a change in any id opens a new
// node.
func (l *Loader) loadTournaments(ctx context.Context, filter Filter) ([]*domain.Tournament, error) {
	rows, err := l.pool.Query(ctx, "load_tournaments",
		nilIfEmpty(filter.Rulesets),
		nilIfZero(filter.TournamentID),
		nilIfZeroTime(filter.From),
		nilIfZeroTime(filter.To),
		int(domain.VerificationVerified))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tournaments []*domain.Tournament
	var curTournament *domain.Tournament
	var curMatch *domain.Match
	var curGame *domain.Game
	skipped := 0

	for rows.Next() {
		var r tournamentRow
		if err := rows.Scan(
			&r.tournamentID, &r.tournamentName, &r.tournamentRuleset, &r.tournamentVerification,
			&r.matchID, &r.matchName, &r.matchStart, &r.matchEnd,
			&r.matchVerification, &r.matchProcessing,
			&r.gameID, &r.gameRuleset, &r.gameScoringType, &r.gameTeamType, &r.gameMods,
			&r.gameStart, &r.gameEnd, &r.gameVerification, &r.gameWarnings, &r.gameRejection,
			&r.scoreID, &r.scorePlayerID, &r.scoreTeam, &r.scoreScore,
			&r.scoreMaxCombo, &r.scorePlacement, &r.scorePassed, &r.scoreMods,
			&r.scoreCount50, &r.scoreCount100, &r.scoreCount300, &r.scoreCountMiss,
			&r.scoreCountKatu, &r.scoreCountGeki,
			&r.scoreVerification, &r.scoreRejection,
		); err != nil {
			return nil, fmt.Errorf("scan tournament row: %w", err)
		}

		if curTournament == nil || curTournament.ID != r.tournamentID {
			t, err := r.tournament()
			if err != nil {
				l.logger.Warn("skipping tournament with malformed codes",
					"tournament_id", r.tournamentID, "error", err)
				skipped++
				curTournament = &domain.Tournament{ID: r.tournamentID}
				continue
			}
			curTournament = t
			curMatch, curGame = nil, nil
			tournaments = append(tournaments, curTournament)
		}
		if curMatch == nil || curMatch.ID != r.matchID {
			m, err := r.match()
			if err != nil {
				l.logger.Warn("skipping match with malformed codes",
					"match_id", r.matchID, "error", err)
				skipped++
				curMatch = &domain.Match{ID: r.matchID}
				continue
			}
			curMatch = m
			curGame = nil
			curTournament.Matches = append(curTournament.Matches, curMatch)
		}
		if curGame == nil || curGame.ID != r.gameID {
			g, err := r.game()
			if err != nil {
				l.logger.Warn("skipping game with malformed codes",
					"game_id", r.gameID, "error", err)
				skipped++
				curGame = &domain.Game{ID: r.gameID}
				continue
			}
			curGame = g
			curMatch.Games = append(curMatch.Games, curGame)
		}
		s, err := r.score()
		if err != nil {
			l.logger.Warn("skipping score with malformed codes",
				"score_id", r.scoreID, "error", err)
			skipped++
			continue
		}
		curGame.Scores = append(curGame.Scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		l.logger.Warn("rows skipped during projection assembly", "count", skipped)
	}
	return pruneEmpty(tournaments), nil
}

// Players reads every player's country and osu! rank data. Initial ratings
// derive from these ranks; the processor's own output is never read back as
// a rating input.
func (l *Loader) Players(ctx context.Context) ([]*domain.PlayerInfo, error) {
	rows, err := l.pool.Query(ctx, "load_players")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*domain.PlayerInfo
	var cur *domain.PlayerInfo
	for rows.Next() {
		var (
			id           int
			country      *string
			ruleset      *int
			globalRank   *int
			earliestRank *int
		)
		if err := rows.Scan(&id, &country, &ruleset, &globalRank, &earliestRank); err != nil {
			return nil, fmt.Errorf("scan player row: %w", err)
		}
		if cur == nil || cur.ID != id {
			cur = &domain.PlayerInfo{ID: id, Ranks: make(map[domain.Ruleset]domain.RulesetRank)}
			if country != nil {
				cur.Country = *country
			}
			players = append(players, cur)
		}
		if ruleset == nil || globalRank == nil {
			continue
		}
		rs, err := domain.ParseRuleset(*ruleset)
		if err != nil {
			l.logger.Warn("skipping rank data with unknown ruleset", "player_id", id, "error", err)
			continue
		}
		rank := domain.RulesetRank{GlobalRank: *globalRank}
		if earliestRank != nil {
			rank.EarliestGlobalRank = *earliestRank
		}
		cur.Ranks[rs] = rank
	}
	return players, rows.Err()
}

// Ratings reads the stored per-(player, ruleset) rating snapshots together
// with each player's country. Used by the rank-only recompute, which
// reorders the stored population without replaying anything.
func (l *Loader) Ratings(ctx context.Context) ([]*domain.PlayerRating, map[int]string, error) {
	rows, err := l.pool.Query(ctx, "load_player_ratings")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var states []*domain.PlayerRating
	countries := make(map[int]string)
	for rows.Next() {
		var (
			playerID   int
			ruleset    int
			rating     float64
			volatility float64
			country    *string
		)
		if err := rows.Scan(&playerID, &ruleset, &rating, &volatility, &country); err != nil {
			return nil, nil, fmt.Errorf("scan rating row: %w", err)
		}
		rs, err := domain.ParseRuleset(ruleset)
		if err != nil {
			l.logger.Warn("skipping rating with unknown ruleset", "player_id", playerID, "error", err)
			continue
		}
		states = append(states, &domain.PlayerRating{
			PlayerID:   playerID,
			Ruleset:    rs,
			Rating:     rating,
			Volatility: volatility,
		})
		if country != nil {
			countries[playerID] = *country
		}
	}
	return states, countries, rows.Err()
}

// tournamentRow is one flat row of the hierarchical select.
type tournamentRow struct {
	tournamentID           int
	tournamentName         *string
	tournamentRuleset      int
	tournamentVerification int

	matchID           int
	matchName         *string
	matchStart        *time.Time
	matchEnd          *time.Time
	matchVerification int
	matchProcessing   int

	gameID           int
	gameRuleset      int
	gameScoringType  int
	gameTeamType     int
	gameMods         int
	gameStart        time.Time
	gameEnd          *time.Time
	gameVerification int
	gameWarnings     int
	gameRejection    int

	scoreID           int
	scorePlayerID     int
	scoreTeam         int
	scoreScore        int64
	scoreMaxCombo     int
	scorePlacement    int
	scorePassed       bool
	scoreMods         int
	scoreCount50      int
	scoreCount100     int
	scoreCount300     int
	scoreCountMiss    int
	scoreCountKatu    int
	scoreCountGeki    int
	scoreVerification int
	scoreRejection    int
}

func (r *tournamentRow) tournament() (*domain.Tournament, error) {
	ruleset, err := domain.ParseRuleset(r.tournamentRuleset)
	if err != nil {
		return nil, err
	}
	verification, err := domain.ParseVerificationStatus(r.tournamentVerification)
	if err != nil {
		return nil, err
	}
	t := &domain.Tournament{
		ID:                 r.tournamentID,
		Ruleset:            ruleset,
		VerificationStatus: verification,
	}
	if r.tournamentName != nil {
		t.Name = *r.tournamentName
	}
	return t, nil
}

func (r *tournamentRow) match() (*domain.Match, error) {
	ruleset, err := domain.ParseRuleset(r.tournamentRuleset)
	if err != nil {
		return nil, err
	}
	verification, err := domain.ParseVerificationStatus(r.matchVerification)
	if err != nil {
		return nil, err
	}
	m := &domain.Match{
		ID:                 r.matchID,
		TournamentID:       r.tournamentID,
		Ruleset:            ruleset,
		VerificationStatus: verification,
		ProcessingStatus:   domain.ProcessingStatus(r.matchProcessing),
	}
	if r.matchName != nil {
		m.Name = *r.matchName
	}
	if r.matchStart != nil {
		m.StartTime = *r.matchStart
	}
	if r.matchEnd != nil {
		m.EndTime = *r.matchEnd
	}
	return m, nil
}

func (r *tournamentRow) game() (*domain.Game, error) {
	ruleset, err := domain.ParseRuleset(r.gameRuleset)
	if err != nil {
		return nil, err
	}
	scoring, err := domain.ParseScoringType(r.gameScoringType)
	if err != nil {
		return nil, err
	}
	teamType, err := domain.ParseTeamType(r.gameTeamType)
	if err != nil {
		return nil, err
	}
	verification, err := domain.ParseVerificationStatus(r.gameVerification)
	if err != nil {
		return nil, err
	}
	g := &domain.Game{
		ID:                 r.gameID,
		MatchID:            r.matchID,
		Ruleset:            ruleset,
		ScoringType:        scoring,
		TeamType:           teamType,
		Mods:               domain.Mods(r.gameMods),
		StartTime:          r.gameStart,
		VerificationStatus: verification,
		WarningFlags:       domain.GameWarningFlags(r.gameWarnings),
		RejectionReason:    domain.GameRejectionReason(r.gameRejection),
	}
	if r.gameEnd != nil {
		g.EndTime = *r.gameEnd
	}
	return g, nil
}

func (r *tournamentRow) score() (*domain.Score, error) {
	verification, err := domain.ParseVerificationStatus(r.scoreVerification)
	if err != nil {
		return nil, err
	}
	if r.scoreTeam < int(domain.TeamNone) || r.scoreTeam > int(domain.TeamRed) {
		return nil, fmt.Errorf("unknown team code %d", r.scoreTeam)
	}
	return &domain.Score{
		ID:                 r.scoreID,
		GameID:             r.gameID,
		PlayerID:           r.scorePlayerID,
		Team:               domain.Team(r.scoreTeam),
		Score:              r.scoreScore,
		MaxCombo:           r.scoreMaxCombo,
		Placement:          r.scorePlacement,
		Passed:             r.scorePassed,
		Mods:               domain.Mods(r.scoreMods),
		Count50:            r.scoreCount50,
		Count100:           r.scoreCount100,
		Count300:           r.scoreCount300,
		CountMiss:          r.scoreCountMiss,
		CountKatu:          r.scoreCountKatu,
		CountGeki:          r.scoreCountGeki,
		VerificationStatus: verification,
		RejectionReason:    domain.ScoreRejectionReason(r.scoreRejection),
	}, nil
}

// pruneEmpty drops tournaments and matches that ended up with no content
// after skips.
func pruneEmpty(tournaments []*domain.Tournament) []*domain.Tournament {
	out := tournaments[:0]
	for _, t := range tournaments {
		matches := t.Matches[:0]
		for _, m := range t.Matches {
			if len(m.Games) > 0 {
				matches = append(matches, m)
			}
		}
		t.Matches = matches
		if len(t.Matches) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func nilIfEmpty(v []int) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func nilIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nilIfZeroTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v
}

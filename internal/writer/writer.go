// Package writer commits a completed run to Postgres. All writes happen in
// one transaction with replace semantics: derived rows in the run's scope
// are deleted and re-inserted, player ratings are upserted, and consumed
// matches advance to the done processing status. A failed commit leaves the
// store exactly as the run found it.
package writer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/tourneyrank/processor/internal/db"
	"github.com/tourneyrank/processor/internal/domain"
	"github.com/tourneyrank/processor/internal/stats"
)

// Batch is everything one run persists.
type Batch struct {
	Ratings       []*domain.PlayerRating
	Stats         *stats.Result
	MatchIDs      []int
	GameIDs       []int
	TournamentIDs []int
	// Partial marks a checkpoint commit from a cancelled run. Consumed
	// matches keep their processing status so a later run picks them up
	// again; replace semantics make that rerun safe.
	Partial bool
}

// Result tracks row counts from a commit.
type Result struct {
	RatingsUpserted     int
	AdjustmentsInserted int
	MatchStatsInserted  int
	TournamentStats     int
	GameWinRecords      int
	MatchWinRecords     int
	MatchesMarkedDone   int
}

// Summary returns a human-readable summary of the commit.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"ratings=%d adjustments=%d match_stats=%d tournament_stats=%d game_wins=%d match_wins=%d matches_done=%d",
		r.RatingsUpserted, r.AdjustmentsInserted, r.MatchStatsInserted,
		r.TournamentStats, r.GameWinRecords, r.MatchWinRecords,
		r.MatchesMarkedDone,
	)
}

type Writer struct {
	pool   *db.Pool
	logger *slog.Logger
	dryRun bool
}

func New(pool *db.Pool, dryRun bool, logger *slog.Logger) *Writer {
	return &Writer{pool: pool, dryRun: dryRun, logger: logger}
}

// Commit persists the batch. In dry-run mode it only logs what would be
// written.
func (w *Writer) Commit(ctx context.Context, batch *Batch) (*Result, error) {
	result := &Result{
		RatingsUpserted:     len(batch.Ratings),
		AdjustmentsInserted: countAdjustments(batch.Ratings),
		MatchStatsInserted:  len(batch.Stats.MatchStats),
		TournamentStats:     len(batch.Stats.TournamentStats),
		GameWinRecords:      len(batch.Stats.GameWinRecords),
		MatchWinRecords:     len(batch.Stats.MatchWinRecords),
	}
	if !batch.Partial {
		result.MatchesMarkedDone = len(batch.MatchIDs)
	}

	if w.dryRun {
		w.logger.Info("dry run, skipping commit", "summary", result.Summary())
		return result, nil
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := w.replaceScope(ctx, tx, batch); err != nil {
		return nil, err
	}
	if err := w.insertAdjustments(ctx, tx, batch.Ratings); err != nil {
		return nil, fmt.Errorf("insert rating adjustments: %w", err)
	}
	if err := w.insertStats(ctx, tx, batch.Stats); err != nil {
		return nil, err
	}
	if err := w.upsertRatings(ctx, tx, batch.Ratings); err != nil {
		return nil, fmt.Errorf("upsert player ratings: %w", err)
	}
	if !batch.Partial {
		if _, err := tx.Exec(ctx, "mark_matches_done", batch.MatchIDs, int(domain.ProcessingDone)); err != nil {
			return nil, fmt.Errorf("mark matches done: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	w.logger.Info("run committed", "summary", result.Summary())
	return result, nil
}

// CommitRanks upserts only the rating snapshots, leaving adjustments and
// aggregates untouched. Used when ranks and percentiles are recomputed
// without a full replay.
func (w *Writer) CommitRanks(ctx context.Context, ratings []*domain.PlayerRating) (*Result, error) {
	result := &Result{RatingsUpserted: len(ratings)}
	if w.dryRun {
		w.logger.Info("dry run, skipping rank commit", "summary", result.Summary())
		return result, nil
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := w.upsertRatings(ctx, tx, ratings); err != nil {
		return nil, fmt.Errorf("upsert player ratings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	w.logger.Info("ranks committed", "summary", result.Summary())
	return result, nil
}

// replaceScope deletes every derived row the run supersedes.
func (w *Writer) replaceScope(ctx context.Context, tx pgx.Tx, batch *Batch) error {
	playersByRuleset := make(map[domain.Ruleset][]int)
	for _, state := range batch.Ratings {
		playersByRuleset[state.Ruleset] = append(playersByRuleset[state.Ruleset], state.PlayerID)
	}
	for ruleset, playerIDs := range playersByRuleset {
		if _, err := tx.Exec(ctx, "delete_rating_adjustments", playerIDs, int(ruleset)); err != nil {
			return fmt.Errorf("delete rating adjustments: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, "delete_match_stats", batch.MatchIDs); err != nil {
		return fmt.Errorf("delete match stats: %w", err)
	}
	if _, err := tx.Exec(ctx, "delete_tournament_stats", batch.TournamentIDs); err != nil {
		return fmt.Errorf("delete tournament stats: %w", err)
	}
	if _, err := tx.Exec(ctx, "delete_game_win_records", batch.GameIDs); err != nil {
		return fmt.Errorf("delete game win records: %w", err)
	}
	if _, err := tx.Exec(ctx, "delete_match_win_records", batch.MatchIDs); err != nil {
		return fmt.Errorf("delete match win records: %w", err)
	}
	return nil
}

func (w *Writer) insertAdjustments(ctx context.Context, tx pgx.Tx, ratings []*domain.PlayerRating) error {
	var rows [][]any
	for _, state := range ratings {
		for _, adj := range state.Adjustments {
			var matchID any
			if adj.MatchID != 0 {
				matchID = adj.MatchID
			}
			rows = append(rows, []any{
				adj.PlayerID, int(adj.Ruleset), matchID, int(adj.Type),
				adj.RatingBefore, adj.RatingAfter,
				adj.VolatilityBefore, adj.VolatilityAfter,
				adj.Timestamp,
			})
		}
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"rating_adjustments"},
		[]string{
			"player_id", "ruleset", "match_id", "adjustment_type",
			"rating_before", "rating_after",
			"volatility_before", "volatility_after", "timestamp",
		},
		pgx.CopyFromRows(rows))
	return err
}

func (w *Writer) insertStats(ctx context.Context, tx pgx.Tx, result *stats.Result) error {
	matchRows := make([][]any, 0, len(result.MatchStats))
	for _, ms := range result.MatchStats {
		matchRows = append(matchRows, []any{
			ms.PlayerID, ms.MatchID, ms.Won, ms.MatchCost,
			ms.AverageScore, ms.AveragePlacement, ms.AverageMisses, ms.AverageAccuracy,
			ms.GamesPlayed, ms.GamesWon, ms.GamesLost,
			ms.TeammateIDs, ms.OpponentIDs,
			ms.AverageTeammateRating, ms.AverageOpponentRating,
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"player_match_stats"},
		[]string{
			"player_id", "match_id", "won", "match_cost",
			"average_score", "average_placement", "average_misses", "average_accuracy",
			"games_played", "games_won", "games_lost",
			"teammate_ids", "opponent_ids",
			"average_teammate_rating", "average_opponent_rating",
		},
		pgx.CopyFromRows(matchRows)); err != nil {
		return fmt.Errorf("insert match stats: %w", err)
	}

	tournamentRows := make([][]any, 0, len(result.TournamentStats))
	for _, ts := range result.TournamentStats {
		tournamentRows = append(tournamentRows, []any{
			ts.PlayerID, ts.TournamentID,
			ts.AverageRatingDelta, ts.AverageMatchCost,
			ts.AverageScore, ts.AveragePlacement, ts.AverageMisses, ts.AverageAccuracy,
			ts.MatchesPlayed, ts.MatchesWon, ts.MatchesLost, ts.MatchWinRate,
			ts.GamesPlayed, ts.GamesWon, ts.GamesLost,
			ts.TeammateIDs, ts.OpponentIDs,
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"player_tournament_stats"},
		[]string{
			"player_id", "tournament_id",
			"average_rating_delta", "average_match_cost",
			"average_score", "average_placement", "average_misses", "average_accuracy",
			"matches_played", "matches_won", "matches_lost", "match_win_rate",
			"games_played", "games_won", "games_lost",
			"teammate_ids", "opponent_ids",
		},
		pgx.CopyFromRows(tournamentRows)); err != nil {
		return fmt.Errorf("insert tournament stats: %w", err)
	}

	gameRows := make([][]any, 0, len(result.GameWinRecords))
	for _, rec := range result.GameWinRecords {
		gameRows = append(gameRows, []any{
			rec.GameID, rec.WinnerIDs, rec.LoserIDs,
			int(rec.WinnerTeam), int(rec.LoserTeam),
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"game_win_records"},
		[]string{"game_id", "winner_ids", "loser_ids", "winner_team", "loser_team"},
		pgx.CopyFromRows(gameRows)); err != nil {
		return fmt.Errorf("insert game win records: %w", err)
	}

	winRows := make([][]any, 0, len(result.MatchWinRecords))
	for _, rec := range result.MatchWinRecords {
		var winner, loser any
		if rec.WinnerTeam != nil {
			winner = int(*rec.WinnerTeam)
		}
		if rec.LoserTeam != nil {
			loser = int(*rec.LoserTeam)
		}
		winRows = append(winRows, []any{
			rec.MatchID, rec.BlueIDs, rec.RedIDs,
			rec.BluePoints, rec.RedPoints, winner, loser,
		})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"match_win_records"},
		[]string{"match_id", "blue_ids", "red_ids", "blue_points", "red_points", "winner_team", "loser_team"},
		pgx.CopyFromRows(winRows)); err != nil {
		return fmt.Errorf("insert match win records: %w", err)
	}
	return nil
}

// upsertRatings writes the final state snapshot through the prepared upsert
// in a single round-trip batch.
func (w *Writer) upsertRatings(ctx context.Context, tx pgx.Tx, ratings []*domain.PlayerRating) error {
	b := &pgx.Batch{}
	for _, state := range ratings {
		b.Queue("upsert_player_rating",
			state.PlayerID, int(state.Ruleset),
			state.Rating, state.Volatility,
			state.Percentile, state.GlobalRank, state.CountryRank)
	}
	results := tx.SendBatch(ctx, b)
	defer results.Close()
	for range ratings {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

func countAdjustments(ratings []*domain.PlayerRating) int {
	n := 0
	for _, state := range ratings {
		n += len(state.Adjustments)
	}
	return n
}

// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tourneyrank/processor/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the loader and writer
// use. Prepared statements eliminate parse overhead on the hot hierarchical
// reads.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Loader: hierarchical tournament -> match -> game -> score read.
		// Tournament and match verification are gated in SQL so only fully
		// verified containers are loaded; game and score admissibility is
		// decided by the eligibility checks, which see the raw statuses.
		"load_tournaments": `
			SELECT
				t.id AS tournament_id, t.name AS tournament_name, t.ruleset AS tournament_ruleset,
				t.verification_status AS tournament_verification_status,
				m.id AS match_id, m.name AS match_name,
				m.start_time AS match_start_time, m.end_time AS match_end_time,
				m.verification_status AS match_verification_status,
				m.processing_status AS match_processing_status,
				g.id AS game_id, g.ruleset AS game_ruleset,
				g.scoring_type AS game_scoring_type, g.team_type AS game_team_type,
				g.mods AS game_mods,
				g.start_time AS game_start_time, g.end_time AS game_end_time,
				g.verification_status AS game_verification_status,
				g.warning_flags AS game_warning_flags,
				g.rejection_reason AS game_rejection_reason,
				gs.id AS score_id, gs.player_id AS score_player_id,
				gs.team AS score_team, gs.score AS score_score,
				gs.max_combo AS score_max_combo, gs.placement AS score_placement,
				gs.passed AS score_passed, gs.mods AS score_mods,
				gs.count_50 AS score_count_50, gs.count_100 AS score_count_100,
				gs.count_300 AS score_count_300, gs.count_miss AS score_count_miss,
				gs.count_katu AS score_count_katu, gs.count_geki AS score_count_geki,
				gs.verification_status AS score_verification_status,
				gs.rejection_reason AS score_rejection_reason
			FROM tournaments t
			JOIN matches m ON m.tournament_id = t.id
			JOIN games g ON g.match_id = m.id
			JOIN game_scores gs ON gs.game_id = g.id
			WHERE t.verification_status = $5
			  AND m.verification_status = $5
			  AND ($1::int[] IS NULL OR t.ruleset = ANY($1))
			  AND ($2::int IS NULL OR t.id = $2)
			  AND ($3::timestamptz IS NULL OR m.start_time >= $3)
			  AND ($4::timestamptz IS NULL OR m.start_time < $4)
			ORDER BY t.id, m.id, g.id, gs.id`,

		// Loader: player info with externally sourced osu! rank data.
		// Initial ratings derive from these ranks, never from the
		// processor's own player_ratings output.
		"load_players": `
			SELECT p.id, p.country, prd.ruleset, prd.global_rank, prd.earliest_global_rank
			FROM players p
			LEFT JOIN player_osu_ruleset_data prd ON prd.player_id = p.id
			ORDER BY p.id, prd.ruleset`,

		// Loader: stored rating snapshots for the rank-only recompute.
		"load_player_ratings": `
			SELECT pr.player_id, pr.ruleset, pr.rating, pr.volatility, p.country
			FROM player_ratings pr
			JOIN players p ON p.id = pr.player_id
			ORDER BY pr.ruleset, pr.player_id`,

		// Writer: per-run replace scopes.
		"delete_rating_adjustments": "DELETE FROM rating_adjustments WHERE player_id = ANY($1) AND ruleset = $2",
		"delete_match_stats":        "DELETE FROM player_match_stats WHERE match_id = ANY($1)",
		"delete_tournament_stats":   "DELETE FROM player_tournament_stats WHERE tournament_id = ANY($1)",
		"delete_game_win_records":   "DELETE FROM game_win_records WHERE game_id = ANY($1)",
		"delete_match_win_records":  "DELETE FROM match_win_records WHERE match_id = ANY($1)",

		// Writer: player rating upsert keyed (player_id, ruleset).
		"upsert_player_rating": `
			INSERT INTO player_ratings
				(player_id, ruleset, rating, volatility, percentile, global_rank, country_rank)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (player_id, ruleset) DO UPDATE SET
				rating = EXCLUDED.rating,
				volatility = EXCLUDED.volatility,
				percentile = EXCLUDED.percentile,
				global_rank = EXCLUDED.global_rank,
				country_rank = EXCLUDED.country_rank`,

		// Writer: processing status advance.
		"mark_matches_done": "UPDATE matches SET processing_status = $2 WHERE id = ANY($1)",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}

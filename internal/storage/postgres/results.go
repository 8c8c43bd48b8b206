package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
)

// ResultRepository implements session.ResultRecorder on the game_results
// table.
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository creates a ResultRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// RecordResult stores a finished game. Recording the same game twice is a
// no-op.
//
// Precondition: r.GameID must be non-empty.
func (r *ResultRepository) RecordResult(ctx context.Context, res session.Result) error {
	var winner, profile *string
	if !res.Draw {
		winner = &res.WinnerID
	}
	if res.Profile != "" {
		profile = &res.Profile
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO game_results (
			game_id, channel_id,
			player_x_id, player_x_name, player_x_ai,
			player_o_id, player_o_name, player_o_ai,
			winner_id, draw, moves, profile, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (game_id) DO NOTHING`,
		res.GameID, string(res.ChannelID),
		res.PlayerX.ID, res.PlayerX.Name, res.PlayerX.AI,
		res.PlayerO.ID, res.PlayerO.Name, res.PlayerO.AI,
		winner, res.Draw, res.Moves, profile, res.StartedAt, res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("recording game %s: %w", res.GameID, err)
	}
	return nil
}

// leaderboardSQL ranks the human players of one channel. A player's name is
// the one used in their most recent game.
const leaderboardSQL = `
WITH seats AS (
	SELECT player_x_id AS player_id, player_x_name AS name, winner_id, draw, finished_at
	  FROM game_results WHERE channel_id = $1 AND NOT player_x_ai
	UNION ALL
	SELECT player_o_id, player_o_name, winner_id, draw, finished_at
	  FROM game_results WHERE channel_id = $1 AND NOT player_o_ai
)
SELECT player_id,
       (array_agg(name ORDER BY finished_at DESC))[1] AS name,
       COUNT(*) FILTER (WHERE winner_id = player_id)             AS wins,
       COUNT(*) FILTER (WHERE NOT draw AND winner_id <> player_id) AS losses,
       COUNT(*) FILTER (WHERE draw)                               AS draws
  FROM seats
 GROUP BY player_id
 ORDER BY wins DESC, draws DESC, losses ASC, name ASC
 LIMIT $2`

// Leaderboard returns the top human players of a channel.
//
// Precondition: limit must be positive.
// Postcondition: Rows are ordered by wins, then draws, then fewest losses.
func (r *ResultRepository) Leaderboard(ctx context.Context, channel chat.ChannelID, limit int) ([]session.Standing, error) {
	rows, err := r.db.Query(ctx, leaderboardSQL, string(channel), limit)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	standings, err := pgx.CollectRows(rows, pgx.RowToStructByPos[session.Standing])
	if err != nil {
		return nil, fmt.Errorf("scanning leaderboard: %w", err)
	}
	return standings, nil
}

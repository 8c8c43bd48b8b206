package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/tictactoe"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
	"github.com/cory-johannsen/tictactoe-bot/internal/storage/postgres"
	"github.com/cory-johannsen/tictactoe-bot/internal/testutil"
)

var (
	alice = tictactoe.Player{ID: "user:alice", Name: "alice"}
	bob   = tictactoe.Player{ID: "user:bob", Name: "bob"}
	bot   = tictactoe.Player{ID: "ai:easy", Name: "TicTacToe", AI: true}
)

func uniqueChannel() chat.ChannelID {
	return chat.ChannelID("text:" + uuid.NewString())
}

func result(channel chat.ChannelID, x, o tictactoe.Player, winner *tictactoe.Player, finished time.Time) session.Result {
	r := session.Result{
		GameID:     uuid.NewString(),
		ChannelID:  channel,
		PlayerX:    x,
		PlayerO:    o,
		Moves:      9,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}
	if winner == nil {
		r.Draw = true
	} else {
		r.WinnerID = winner.ID
		r.Moves = 5
	}
	if o.AI {
		r.Profile = "easy"
	}
	return r
}

func TestResultRepository_Leaderboard(t *testing.T) {
	repo := testutil.NewPool(t).Results()
	ctx := context.Background()
	ch := uniqueChannel()
	now := time.Now().UTC().Truncate(time.Second)

	for _, r := range []session.Result{
		result(ch, alice, bob, &alice, now),
		result(ch, alice, bob, &alice, now.Add(time.Second)),
		result(ch, bob, alice, nil, now.Add(2*time.Second)),
		result(ch, bob, bot, &bob, now.Add(3*time.Second)),
		result(ch, alice, bot, &bot, now.Add(4*time.Second)),
		result(uniqueChannel(), bob, alice, &bob, now),
	} {
		require.NoError(t, repo.RecordResult(ctx, r))
	}

	rows, err := repo.Leaderboard(ctx, ch, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "the bot never appears on the leaderboard")
	assert.Equal(t, session.Standing{PlayerID: "user:alice", Name: "alice", Wins: 2, Losses: 1, Draws: 1}, rows[0])
	assert.Equal(t, session.Standing{PlayerID: "user:bob", Name: "bob", Wins: 1, Losses: 2, Draws: 1}, rows[1])

	top, err := repo.Leaderboard(ctx, ch, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "user:alice", top[0].PlayerID)
}

func TestPool_Health(t *testing.T) {
	pool := testutil.NewPool(t)
	assert.NoError(t, pool.Health(context.Background(), 0))
	assert.NoError(t, pool.Health(context.Background(), time.Second))
}

func TestPool_HealthReportsMissingSchema(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)
	err := pc.Pool.Health(context.Background(), 0)
	assert.ErrorIs(t, err, postgres.ErrNotMigrated)

	pc.ApplyMigrations(t)
	assert.NoError(t, pc.Pool.Health(context.Background(), 0))
}

func TestResultRepository_EmptyChannel(t *testing.T) {
	repo := testutil.NewPool(t).Results()
	rows, err := repo.Leaderboard(context.Background(), uniqueChannel(), 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResultRepository_RecordIsIdempotent(t *testing.T) {
	repo := testutil.NewPool(t).Results()
	ctx := context.Background()
	ch := uniqueChannel()
	r := result(ch, alice, bob, &bob, time.Now())

	require.NoError(t, repo.RecordResult(ctx, r))
	require.NoError(t, repo.RecordResult(ctx, r))

	rows, err := repo.Leaderboard(ctx, ch, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Played())
	assert.Equal(t, 1, rows[1].Played())
}

func TestResultRepository_LatestNameWins(t *testing.T) {
	repo := testutil.NewPool(t).Results()
	ctx := context.Background()
	ch := uniqueChannel()
	now := time.Now().UTC()
	renamed := tictactoe.Player{ID: alice.ID, Name: "Alice"}

	require.NoError(t, repo.RecordResult(ctx, result(ch, alice, bot, nil, now)))
	require.NoError(t, repo.RecordResult(ctx, result(ch, renamed, bot, nil, now.Add(time.Minute))))

	rows, err := repo.Leaderboard(ctx, ch, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, 2, rows[0].Draws)
}

// Property: every recorded game between two humans adds exactly one
// played game to each of them, and wins equal the opponent's losses.
func TestPropertyLeaderboardBalances(t *testing.T) {
	repo := testutil.NewPool(t).Results()
	ctx := context.Background()
	rapid.Check(t, func(rt *rapid.T) {
		ch := uniqueChannel()
		outcomes := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 12).Draw(rt, "outcomes")
		now := time.Now().UTC()
		for i, o := range outcomes {
			var winner *tictactoe.Player
			switch o {
			case 1:
				winner = &alice
			case 2:
				winner = &bob
			}
			if err := repo.RecordResult(ctx, result(ch, alice, bob, winner, now.Add(time.Duration(i)*time.Second))); err != nil {
				rt.Fatalf("record: %v", err)
			}
		}
		rows, err := repo.Leaderboard(ctx, ch, 10)
		if err != nil {
			rt.Fatalf("leaderboard: %v", err)
		}
		if len(rows) != 2 {
			rt.Fatalf("got %d rows, want 2", len(rows))
		}
		for _, row := range rows {
			if row.Played() != len(outcomes) {
				rt.Fatalf("%s played %d, want %d", row.PlayerID, row.Played(), len(outcomes))
			}
		}
		if rows[0].Wins != rows[1].Losses || rows[1].Wins != rows[0].Losses {
			rt.Fatalf("wins and losses do not balance: %s", fmt.Sprint(rows))
		}
	})
}

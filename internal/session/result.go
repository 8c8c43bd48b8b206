package session

import (
	"context"
	"errors"
	"time"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/tictactoe"
)

// Result is the record of one finished game.
type Result struct {
	GameID    string
	ChannelID chat.ChannelID
	PlayerX   tictactoe.Player
	PlayerO   tictactoe.Player
	// WinnerID is empty for a draw.
	WinnerID string
	Draw     bool
	Moves    int
	// Profile names the AI profile for games against the bot.
	Profile    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Standing is one leaderboard row.
type Standing struct {
	PlayerID string
	Name     string
	Wins     int
	Losses   int
	Draws    int
}

// Played returns the number of finished games the player took part in.
func (s Standing) Played() int { return s.Wins + s.Losses + s.Draws }

// ResultRecorder stores finished games and answers leaderboard queries.
type ResultRecorder interface {
	RecordResult(ctx context.Context, r Result) error
	Leaderboard(ctx context.Context, channel chat.ChannelID, limit int) ([]Standing, error)
}

// ErrHistoryDisabled is returned by NopRecorder.Leaderboard.
var ErrHistoryDisabled = errors.New("game history is disabled")

// NopRecorder discards results. It is used when no database is configured.
type NopRecorder struct{}

// RecordResult implements ResultRecorder.
func (NopRecorder) RecordResult(context.Context, Result) error { return nil }

// Leaderboard implements ResultRecorder.
func (NopRecorder) Leaderboard(context.Context, chat.ChannelID, int) ([]Standing, error) {
	return nil, ErrHistoryDisabled
}

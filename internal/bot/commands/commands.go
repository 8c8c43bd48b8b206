// Package commands holds the chat commands of the tic-tac-toe bot.
package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/command"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/ai"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/tictactoe"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
)

// Host is the part of the bot facade that handlers use.
type Host interface {
	GetOrCreateGameChannel(channel chat.Channel) *session.GameChannel
	CommandsByCategory() map[string][]command.Command
	Prefix() string
}

// Registrar accepts handlers.
type Registrar interface {
	AddCommand(h command.Handler) error
}

// Deps are shared by all handlers.
type Deps struct {
	Host Host
	AI   *ai.Registry
	// Users resolves "@name" arguments. Duels are unavailable when nil.
	Users    chat.Directory
	Recorder session.ResultRecorder
	Logger   *zap.Logger
}

// Register adds every command to r.
//
// Precondition: deps.Host, deps.AI and deps.Logger must be non-nil.
// Postcondition: Returns the first registration error, if any.
func Register(r Registrar, deps Deps) error {
	if deps.Recorder == nil {
		deps.Recorder = session.NopRecorder{}
	}
	handlers := []command.Handler{
		&startHandler{deps: deps},
		&acceptHandler{deps: deps},
		&playHandler{deps: deps},
		&stopHandler{deps: deps},
		&statsHandler{deps: deps},
		&helpHandler{deps: deps},
	}
	for _, h := range handlers {
		if err := r.AddCommand(h); err != nil {
			return fmt.Errorf("registering %s: %w", h.Command().Name, err)
		}
	}
	return nil
}

// withGameChannel runs fn on the channel's game channel, retrying once on
// a fresh instance if fn raced with eviction.
func withGameChannel(host Host, channel chat.Channel, fn func(gc *session.GameChannel) error) error {
	err := fn(host.GetOrCreateGameChannel(channel))
	if errors.Is(err, session.ErrClosed) {
		err = fn(host.GetOrCreateGameChannel(channel))
	}
	return err
}

// userErrors are answered in the channel instead of being returned.
var userErrors = []error{
	session.ErrBusy,
	session.ErrNoGame,
	session.ErrNoChallenge,
	session.ErrNotInvited,
	session.ErrSelfChallenge,
	session.ErrChallengeAutomated,
	session.ErrNotParticipant,
	session.ErrHistoryDisabled,
	tictactoe.ErrGameOver,
	tictactoe.ErrNotYourTurn,
	tictactoe.ErrNotAPlayer,
	tictactoe.ErrCellTaken,
	tictactoe.ErrCellOutOfRange,
}

// respond turns err into a chat answer when it is the user's mistake.
//
// Postcondition: Returns nil when err is nil or was answered; otherwise
// err, possibly joined with the answer's delivery failure.
func respond(ctx context.Context, req command.Request, err error) error {
	if err == nil {
		return nil
	}
	for _, ue := range userErrors {
		if errors.Is(err, ue) {
			return answer(ctx, req, capitalize(err.Error())+".")
		}
	}
	return err
}

// answer posts text through a fresh tunnel.
func answer(ctx context.Context, req command.Request, text string) error {
	_, err := req.Tunnel().ReplyWith(ctx, chat.Text(text))
	return err
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cory-johannsen/tictactoe-bot/internal/command"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/tictactoe"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
)

type startHandler struct{ deps Deps }

func (h *startHandler) Command() command.Command {
	return command.Command{
		Name:     "start",
		Aliases:  []string{"ttt"},
		Usage:    "[difficulty|@user]",
		Help:     "Start a game against the bot, or challenge another user.",
		Category: command.CategoryGame,
	}
}

// Execute starts an AI game with the named or default profile, or opens a
// duel when the argument is a mention.
func (h *startHandler) Execute(ctx context.Context, req command.Request) error {
	arg := ""
	if len(req.Args) > 0 {
		arg = req.Args[0]
	}

	if strings.HasPrefix(arg, "@") {
		return h.challenge(ctx, req, strings.TrimPrefix(arg, "@"))
	}

	profile := h.deps.AI.Default()
	if arg != "" {
		p, ok := h.deps.AI.Get(strings.ToLower(arg))
		if !ok {
			ids := h.deps.AI.IDs()
			sort.Strings(ids)
			return answer(ctx, req, fmt.Sprintf("Unknown difficulty %q. Choose one of: %s.", arg, strings.Join(ids, ", ")))
		}
		profile = p
	}
	strategy, _ := h.deps.AI.Strategy(profile.ID)

	err := withGameChannel(h.deps.Host, req.Event.Channel, func(gc *session.GameChannel) error {
		return gc.StartAI(ctx, req.Tunnel(), profile.ID, strategy)
	})
	return respond(ctx, req, err)
}

func (h *startHandler) challenge(ctx context.Context, req command.Request, name string) error {
	if h.deps.Users == nil {
		return answer(ctx, req, "Duels are not available here.")
	}
	invitee, ok := h.deps.Users.LookupUser(name)
	if !ok {
		return answer(ctx, req, fmt.Sprintf("I don't know anyone called @%s.", name))
	}
	err := withGameChannel(h.deps.Host, req.Event.Channel, func(gc *session.GameChannel) error {
		return gc.Challenge(ctx, req.Tunnel(), invitee)
	})
	return respond(ctx, req, err)
}

type acceptHandler struct{ deps Deps }

func (h *acceptHandler) Command() command.Command {
	return command.Command{
		Name:     "accept",
		Help:     "Accept a pending challenge.",
		Category: command.CategoryGame,
	}
}

func (h *acceptHandler) Execute(ctx context.Context, req command.Request) error {
	err := withGameChannel(h.deps.Host, req.Event.Channel, func(gc *session.GameChannel) error {
		return gc.Accept(ctx, req.Event.Author)
	})
	return respond(ctx, req, err)
}

type playHandler struct{ deps Deps }

func (h *playHandler) Command() command.Command {
	return command.Command{
		Name:     "play",
		Aliases:  []string{"p"},
		Usage:    "<1-9>",
		Help:     "Place your mark on a cell, numbered left to right, top to bottom.",
		Category: command.CategoryGame,
	}
}

func (h *playHandler) Execute(ctx context.Context, req command.Request) error {
	cell, ok := parseCell(req.Args)
	if !ok {
		return answer(ctx, req, fmt.Sprintf("Usage: %s%s <1-9>", h.deps.Host.Prefix(), req.Name))
	}
	err := withGameChannel(h.deps.Host, req.Event.Channel, func(gc *session.GameChannel) error {
		_, err := gc.Play(ctx, req.Event.Author, cell)
		return err
	})
	return respond(ctx, req, err)
}

// parseCell reads a 1-based cell number.
//
// Postcondition: Returns (index 0..8, true) or (0, false).
func parseCell(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > tictactoe.Cells {
		return 0, false
	}
	return n - 1, true
}

type stopHandler struct{ deps Deps }

func (h *stopHandler) Command() command.Command {
	return command.Command{
		Name:     "stop",
		Help:     "Abandon the running game or withdraw a challenge.",
		Category: command.CategoryGame,
	}
}

func (h *stopHandler) Execute(ctx context.Context, req command.Request) error {
	err := withGameChannel(h.deps.Host, req.Event.Channel, func(gc *session.GameChannel) error {
		return gc.Cancel(ctx, req.Event.Author, "stopped by "+req.Event.Author.Name)
	})
	if err != nil {
		return respond(ctx, req, err)
	}
	return answer(ctx, req, fmt.Sprintf("Game stopped by %s.", req.Event.Author.Mention()))
}

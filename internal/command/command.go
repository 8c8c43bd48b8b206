// Package command routes inbound chat events to registered command handlers.
package command

import (
	"context"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/messaging"
)

// Categories for organizing commands in help output.
const (
	CategoryGame   = "game"
	CategoryInfo   = "info"
	CategorySystem = "system"
)

// Command describes how a handler is triggered.
type Command struct {
	// Name is the canonical trigger keyword.
	Name string
	// Aliases are alternate keywords.
	Aliases []string
	// Usage is the argument synopsis shown in help, e.g. "<1-9>".
	Usage string
	// Help is the one-line description shown in help.
	Help string
	// Category groups the command in help output.
	Category string
}

// TunnelFactory opens reply tunnels for an interaction.
type TunnelFactory interface {
	Open(author chat.Author, channel chat.Channel) messaging.Tunnel
}

// Request is what a handler receives for one matching event.
type Request struct {
	Event chat.Event
	// Name is the keyword the user typed (canonical name or alias).
	Name    string
	Args    []string
	RawArgs string
	Tunnels TunnelFactory
}

// Tunnel opens a tunnel answering the request's author in its channel.
func (r Request) Tunnel() messaging.Tunnel {
	return r.Tunnels.Open(r.Event.Author, r.Event.Channel)
}

// Handler executes one command.
type Handler interface {
	Command() Command
	Execute(ctx context.Context, req Request) error
}

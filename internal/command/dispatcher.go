package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
)

// ErrDuplicateHandler is matched by every DuplicateHandlerError.
var ErrDuplicateHandler = errors.New("duplicate command handler")

// DuplicateHandlerError reports a keyword claimed by two handlers.
type DuplicateHandlerError struct {
	Keyword  string
	Existing string
	Incoming string
}

func (e *DuplicateHandlerError) Error() string {
	return fmt.Sprintf("keyword %q of command %q already registered by %q", e.Keyword, e.Incoming, e.Existing)
}

// Is reports whether target is ErrDuplicateHandler.
func (e *DuplicateHandlerError) Is(target error) bool {
	return target == ErrDuplicateHandler
}

// Dispatcher maps command keywords to handlers.
//
// AddCommand is meant for startup; after that the tables are only read,
// so Execute is safe for concurrent use.
type Dispatcher struct {
	prefix   string
	handlers map[string]Handler // canonical name → handler
	aliases  map[string]string  // alias → canonical name
	tunnels  TunnelFactory
	logger   *zap.Logger
}

// NewDispatcher creates an empty Dispatcher.
//
// Precondition: prefix must be non-empty; tunnels and logger must be non-nil.
func NewDispatcher(prefix string, tunnels TunnelFactory, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		prefix:   prefix,
		handlers: make(map[string]Handler),
		aliases:  make(map[string]string),
		tunnels:  tunnels,
		logger:   logger,
	}
}

// Prefix returns the command prefix.
func (d *Dispatcher) Prefix() string {
	return d.prefix
}

// AddCommand registers h under its name and aliases. Keywords are matched
// case-insensitively, so they are stored lowercased.
//
// Postcondition: Returns a *DuplicateHandlerError, registering nothing,
// if any keyword of h is already taken.
func (d *Dispatcher) AddCommand(h Handler) error {
	cmd := h.Command()
	if cmd.Name == "" {
		return errors.New("command name must not be empty")
	}

	name := strings.ToLower(cmd.Name)
	aliases := make([]string, len(cmd.Aliases))
	for i, a := range cmd.Aliases {
		aliases[i] = strings.ToLower(a)
	}
	keywords := append([]string{name}, aliases...)
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		if seen[kw] {
			return &DuplicateHandlerError{Keyword: kw, Existing: cmd.Name, Incoming: cmd.Name}
		}
		seen[kw] = true
		if owner, ok := d.owner(kw); ok {
			return &DuplicateHandlerError{Keyword: kw, Existing: owner, Incoming: cmd.Name}
		}
	}

	d.handlers[name] = h
	for _, alias := range aliases {
		d.aliases[alias] = name
	}
	d.logger.Debug("command registered",
		zap.String("command", cmd.Name),
		zap.Strings("aliases", cmd.Aliases),
	)
	return nil
}

func (d *Dispatcher) owner(keyword string) (string, bool) {
	if _, ok := d.handlers[keyword]; ok {
		return keyword, true
	}
	canonical, ok := d.aliases[keyword]
	return canonical, ok
}

// Resolve looks up a handler by name or alias, ignoring case.
//
// Postcondition: Returns (handler, true) if found, or (nil, false).
func (d *Dispatcher) Resolve(keyword string) (Handler, bool) {
	canonical, ok := d.owner(strings.ToLower(keyword))
	if !ok {
		return nil, false
	}
	return d.handlers[canonical], true
}

// Execute runs the handler matching event, if any.
//
// Postcondition: Returns (false, nil) when the event carries no known
// command; otherwise (true, err) where err is the handler's error.
func (d *Dispatcher) Execute(ctx context.Context, event chat.Event) (bool, error) {
	parsed, ok := Parse(d.prefix, event.Content)
	if !ok {
		return false, nil
	}
	h, ok := d.Resolve(parsed.Command)
	if !ok {
		d.logger.Debug("unroutable command",
			zap.String("keyword", parsed.Command),
			zap.String("channel", string(event.Channel.ID)),
		)
		return false, nil
	}

	req := Request{
		Event:   event,
		Name:    parsed.Command,
		Args:    parsed.Args,
		RawArgs: parsed.RawArgs,
		Tunnels: d.tunnels,
	}
	if err := h.Execute(ctx, req); err != nil {
		return true, fmt.Errorf("command %s: %w", h.Command().Name, err)
	}
	return true, nil
}

// Commands returns all registered commands sorted by name.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.handlers))
	for _, h := range d.handlers {
		out = append(out, h.Command())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CommandsByCategory returns commands grouped by category, each group sorted by name.
func (d *Dispatcher) CommandsByCategory() map[string][]Command {
	categories := make(map[string][]Command)
	for _, cmd := range d.Commands() {
		categories[cmd.Category] = append(categories[cmd.Category], cmd)
	}
	return categories
}

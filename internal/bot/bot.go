// Package bot is the entry point for inbound chat events: it filters them,
// dispatches commands and hands out the game channel of each chat channel.
package bot

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/command"
	"github.com/cory-johannsen/tictactoe-bot/internal/messaging"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
)

// FilterResult is the verdict of Accepts on an inbound event.
type FilterResult int

const (
	// FilterForward means the event is dispatched.
	FilterForward FilterResult = iota
	// FilterAutomatedAuthor discards events written by bots.
	FilterAutomatedAuthor
	// FilterNonTextChannel discards events outside text channels.
	FilterNonTextChannel
)

// String returns the metric label of the result.
func (f FilterResult) String() string {
	switch f {
	case FilterForward:
		return "forward"
	case FilterAutomatedAuthor:
		return "automated_author"
	case FilterNonTextChannel:
		return "non_text_channel"
	default:
		return "unknown"
	}
}

// Observer receives event and command counts. It is satisfied by
// observability.Metrics.
type Observer interface {
	EventReceived(filter string)
	CommandHandled(command string, err error, elapsed time.Duration)
	HandlerPanicked()
}

type nopObserver struct{}

func (nopObserver) EventReceived(string)                        {}
func (nopObserver) CommandHandled(string, error, time.Duration) {}
func (nopObserver) HandlerPanicked()                            {}

// Options configure a Bot.
type Options struct {
	// Prefix starts every command. Defaults to "!".
	Prefix string
	// Policy selects the reply tunnel variant. Defaults to messaging.PolicyEdit.
	Policy messaging.Policy
	// Observer may be nil.
	Observer Observer
}

// Bot ties one platform, one dispatcher and one session registry together.
// It is built once at startup and passed to whatever delivers events.
type Bot struct {
	platform   chat.Platform
	tunnels    *messaging.Factory
	dispatcher *command.Dispatcher
	registry   *session.Registry
	observer   Observer
	logger     *zap.Logger
}

// New creates a Bot without commands. Register them with AddCommand.
//
// Precondition: platform, registry and logger must be non-nil.
func New(platform chat.Platform, registry *session.Registry, opts Options, logger *zap.Logger) *Bot {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.Policy == "" {
		opts.Policy = messaging.PolicyEdit
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	tunnels := messaging.NewFactory(platform, opts.Policy, logger.Named("tunnel"))
	return &Bot{
		platform:   platform,
		tunnels:    tunnels,
		dispatcher: command.NewDispatcher(opts.Prefix, tunnels, logger.Named("dispatch")),
		registry:   registry,
		observer:   opts.Observer,
		logger:     logger,
	}
}

// AddCommand registers h with the dispatcher.
//
// Postcondition: Returns an error wrapping command.ErrDuplicateHandler if
// any keyword of h is taken.
func (b *Bot) AddCommand(h command.Handler) error {
	return b.dispatcher.AddCommand(instrumented{Handler: h, observer: b.observer})
}

// CommandsByCategory returns the registered commands grouped by category,
// each group sorted by name.
func (b *Bot) CommandsByCategory() map[string][]command.Command {
	return b.dispatcher.CommandsByCategory()
}

// Prefix returns the command prefix.
func (b *Bot) Prefix() string {
	return b.dispatcher.Prefix()
}

// Platform returns the platform handle.
func (b *Bot) Platform() chat.Platform {
	return b.platform
}

// Registry returns the session registry.
func (b *Bot) Registry() *session.Registry {
	return b.registry
}

// GetOrCreateGameChannel returns the game channel of channel.
func (b *Bot) GetOrCreateGameChannel(channel chat.Channel) *session.GameChannel {
	return b.registry.GetOrCreate(channel)
}

// Accepts decides whether event is dispatched. It has no side effects.
func (b *Bot) Accepts(event chat.Event) FilterResult {
	if event.Author.Automated {
		return FilterAutomatedAuthor
	}
	if event.Channel.Kind != chat.KindText {
		return FilterNonTextChannel
	}
	return FilterForward
}

// HandleEvent filters and dispatches one inbound event. Handler errors and
// panics are logged and never reach the caller.
//
// Postcondition: Returns the filter verdict and whether a handler ran.
func (b *Bot) HandleEvent(ctx context.Context, event chat.Event) (result FilterResult, handled bool) {
	result = b.Accepts(event)
	b.observer.EventReceived(result.String())
	if result != FilterForward {
		b.logger.Debug("event filtered",
			zap.String("filter", result.String()),
			zap.String("channel", string(event.Channel.ID)),
			zap.String("author", event.Author.Name),
		)
		return result, false
	}

	defer func() {
		if r := recover(); r != nil {
			b.observer.HandlerPanicked()
			b.logger.Error("command handler panicked",
				zap.String("channel", string(event.Channel.ID)),
				zap.String("content", event.Content),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			handled = true
		}
	}()

	handled, err := b.dispatcher.Execute(ctx, event)
	if err != nil {
		b.logger.Error("command failed",
			zap.String("channel", string(event.Channel.ID)),
			zap.String("author", event.Author.Name),
			zap.Error(err),
		)
	}
	return result, handled
}

// Shutdown cancels all running games.
func (b *Bot) Shutdown() {
	b.registry.Shutdown()
}

type instrumented struct {
	command.Handler
	observer Observer
}

func (h instrumented) Execute(ctx context.Context, req command.Request) error {
	start := time.Now()
	err := h.Handler.Execute(ctx, req)
	h.observer.CommandHandled(h.Command().Name, err, time.Since(start))
	return err
}

// Package messaging provides reply tunnels: objects that remember who
// asked, where, and what the bot last answered, so the answer can be
// replaced or retracted later as one logical reply.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
)

// Tunnel binds an interaction's author and channel to a single
// last-reply slot.
type Tunnel interface {
	// Author returns the user who started the interaction.
	Author() chat.Author
	// Channel returns the channel the tunnel answers in.
	Channel() chat.Channel
	// Reply returns the most recent answer, if any.
	Reply() (chat.Message, bool)
	// ReplyWith sends answer and records it as the current reply.
	ReplyWith(ctx context.Context, answer chat.Payload) (chat.Message, error)
	// End retracts the current reply, if any, and clears the slot.
	// reason is only logged.
	End(ctx context.Context, reason string) error
}

// Policy selects how a tunnel supersedes its previous reply.
type Policy string

const (
	// PolicyEdit edits the first reply in place.
	PolicyEdit Policy = "edit"
	// PolicyResend sends a new reply and deletes the previous one.
	PolicyResend Policy = "resend"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyEdit, PolicyResend:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown reply policy %q", s)
	}
}

// Factory opens tunnels on one platform with one policy.
type Factory struct {
	platform chat.Platform
	policy   Policy
	logger   *zap.Logger
}

// NewFactory creates a Factory.
//
// Precondition: platform and logger must be non-nil; policy must be valid.
func NewFactory(platform chat.Platform, policy Policy, logger *zap.Logger) *Factory {
	return &Factory{platform: platform, policy: policy, logger: logger}
}

// Policy returns the factory's default policy.
func (f *Factory) Policy() Policy {
	return f.policy
}

// Open creates a tunnel with the factory's policy.
func (f *Factory) Open(author chat.Author, channel chat.Channel) Tunnel {
	return f.OpenWith(f.policy, author, channel)
}

// OpenWith creates a tunnel with an explicit policy. Unknown policies
// fall back to PolicyEdit.
func (f *Factory) OpenWith(policy Policy, author chat.Author, channel chat.Channel) Tunnel {
	base := newSlot(f.platform, author, channel, f.logger)
	if policy == PolicyResend {
		return &ResendTunnel{slot: base}
	}
	return &EditTunnel{slot: base}
}

// slot holds the state shared by every tunnel variant.
type slot struct {
	mu       sync.Mutex
	platform chat.Platform
	author   chat.Author
	channel  chat.Channel
	reply    *chat.Message
	logger   *zap.Logger
}

func newSlot(platform chat.Platform, author chat.Author, channel chat.Channel, logger *zap.Logger) *slot {
	return &slot{
		platform: platform,
		author:   author,
		channel:  channel,
		logger: logger.With(
			zap.String("channel", string(channel.ID)),
			zap.String("author", string(author.ID)),
		),
	}
}

func (s *slot) Author() chat.Author   { return s.author }
func (s *slot) Channel() chat.Channel { return s.channel }

func (s *slot) Reply() (chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reply == nil {
		return chat.Message{}, false
	}
	return *s.reply, true
}

// end is shared by every variant. Caller must hold s.mu.
//
// The slot is cleared when the delete succeeds or the message is already
// gone; other failures keep it so End can be retried.
func (s *slot) end(ctx context.Context, reason string) error {
	if s.reply == nil {
		s.logger.Debug("tunnel ended without reply", zap.String("reason", reason))
		return nil
	}
	prev := *s.reply
	err := s.platform.Delete(ctx, prev)
	if err != nil && !isGone(err) {
		s.logger.Warn("retracting reply failed",
			zap.String("message", string(prev.ID)),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return chat.NewDeliveryFailure("delete", prev.ChannelID, prev.ID, err)
	}
	s.reply = nil
	s.logger.Debug("tunnel ended",
		zap.String("message", string(prev.ID)),
		zap.String("reason", reason),
	)
	if err != nil {
		return chat.NewDeliveryFailure("delete", prev.ChannelID, prev.ID, err)
	}
	return nil
}

func (s *slot) send(ctx context.Context, answer chat.Payload) (chat.Message, error) {
	msg, err := s.platform.Send(ctx, s.channel.ID, answer)
	if err != nil {
		return chat.Message{}, chat.NewDeliveryFailure("send", s.channel.ID, "", err)
	}
	return msg, nil
}

func isGone(err error) bool {
	return errors.Is(err, chat.ErrUnknownMessage) || errors.Is(err, chat.ErrUnknownChannel)
}

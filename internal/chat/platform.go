package chat

import (
	"context"
	"errors"
	"fmt"
)

// Platform is the outbound half of a chat connection.
// Implementations report failures as *DeliveryFailure.
type Platform interface {
	// Send posts payload to channel and returns the accepted message.
	Send(ctx context.Context, channel ChannelID, payload Payload) (Message, error)
	// Edit replaces the content of msg and returns the updated handle.
	Edit(ctx context.Context, msg Message, payload Payload) (Message, error)
	// Delete removes msg from its channel.
	Delete(ctx context.Context, msg Message) error
}

var (
	// ErrUnknownChannel means the target channel no longer exists.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrUnknownMessage means the target message no longer exists.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrForbidden means the bot lost permission to act on the channel.
	ErrForbidden = errors.New("forbidden")
)

// DeliveryFailure reports a failed send, edit or delete.
type DeliveryFailure struct {
	Op        string
	ChannelID ChannelID
	MessageID MessageID
	Err       error
}

func (e *DeliveryFailure) Error() string {
	if e.MessageID != "" {
		return fmt.Sprintf("%s message %s in channel %s: %v", e.Op, e.MessageID, e.ChannelID, e.Err)
	}
	return fmt.Sprintf("%s in channel %s: %v", e.Op, e.ChannelID, e.Err)
}

func (e *DeliveryFailure) Unwrap() error {
	return e.Err
}

// NewDeliveryFailure wraps err as a DeliveryFailure unless it already is one.
func NewDeliveryFailure(op string, channel ChannelID, msg MessageID, err error) error {
	if err == nil {
		return nil
	}
	var df *DeliveryFailure
	if errors.As(err, &df) {
		return err
	}
	return &DeliveryFailure{Op: op, ChannelID: channel, MessageID: msg, Err: err}
}

// IsDeliveryFailure reports whether err is or wraps a DeliveryFailure.
func IsDeliveryFailure(err error) bool {
	var df *DeliveryFailure
	return errors.As(err, &df)
}

// Directory resolves user names typed in commands to authors.
type Directory interface {
	LookupUser(name string) (Author, bool)
}

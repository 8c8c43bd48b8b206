package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
)

// ResendTunnel posts every answer as a new message and deletes the one it
// replaces, keeping the latest reply at the bottom of the channel.
type ResendTunnel struct {
	*slot
}

// ReplyWith sends answer as a new message, then retracts the previous reply.
//
// Postcondition: On success Reply() returns the new message. A failed send
// leaves the previous reply in place. A failed retraction of the previous
// reply is logged; the new reply is still recorded.
func (t *ResendTunnel) ReplyWith(ctx context.Context, answer chat.Payload) (chat.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msg, err := t.send(ctx, answer)
	if err != nil {
		return chat.Message{}, err
	}

	if prev := t.reply; prev != nil {
		if err := t.platform.Delete(ctx, *prev); err != nil && !isGone(err) {
			t.logger.Warn("deleting superseded reply",
				zap.String("message", string(prev.ID)),
				zap.Error(err),
			)
		}
	}
	t.reply = &msg
	return msg, nil
}

// End deletes the latest reply, if any.
func (t *ResendTunnel) End(ctx context.Context, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.end(ctx, reason)
}

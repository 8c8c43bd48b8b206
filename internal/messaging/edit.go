package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
)

// EditTunnel sends its first answer and edits that message for every
// later answer, so the channel only ever shows one reply.
type EditTunnel struct {
	*slot
}

// ReplyWith sends or edits the tunnel's reply.
//
// Postcondition: On success Reply() returns the message carrying answer.
// On failure the previous reply is kept, unless the platform reports it
// gone, in which case the slot is cleared and the next call sends anew.
func (t *EditTunnel) ReplyWith(ctx context.Context, answer chat.Payload) (chat.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reply == nil {
		msg, err := t.send(ctx, answer)
		if err != nil {
			return chat.Message{}, err
		}
		t.reply = &msg
		return msg, nil
	}

	prev := *t.reply
	msg, err := t.platform.Edit(ctx, prev, answer)
	if err != nil {
		if isGone(err) {
			t.logger.Info("reply vanished, slot cleared", zap.String("message", string(prev.ID)))
			t.reply = nil
		}
		return chat.Message{}, chat.NewDeliveryFailure("edit", prev.ChannelID, prev.ID, err)
	}
	t.reply = &msg
	return msg, nil
}

// End deletes the edited reply, if any.
func (t *EditTunnel) End(ctx context.Context, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.end(ctx, reason)
}

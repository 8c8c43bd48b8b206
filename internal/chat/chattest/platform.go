// Package chattest provides an in-memory chat.Platform for tests.
package chattest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
)

// Op is one recorded platform call.
type Op struct {
	Kind    string // "send", "edit" or "delete"
	Channel chat.ChannelID
	Message chat.MessageID
	Payload chat.Payload
}

// Platform records every call and keeps the set of live messages so
// edits and deletes of vanished messages fail like a real platform.
type Platform struct {
	mu       sync.Mutex
	next     int
	ops      []Op
	live     map[chat.MessageID]chat.Message
	failures map[string]error
	gone     map[chat.ChannelID]bool
}

// NewPlatform returns an empty recording platform.
func NewPlatform() *Platform {
	return &Platform{
		live:     make(map[chat.MessageID]chat.Message),
		failures: make(map[string]error),
		gone:     make(map[chat.ChannelID]bool),
	}
}

// FailNext makes the next call of kind ("send", "edit", "delete") fail with err.
func (p *Platform) FailNext(kind string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[kind] = err
}

// RemoveChannel simulates a channel deleted outside the bot.
func (p *Platform) RemoveChannel(id chat.ChannelID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gone[id] = true
}

// RemoveMessage simulates a message deleted outside the bot.
func (p *Platform) RemoveMessage(id chat.MessageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.live, id)
}

func (p *Platform) takeFailure(kind string) error {
	err, ok := p.failures[kind]
	if !ok {
		return nil
	}
	delete(p.failures, kind)
	return err
}

// Send implements chat.Platform.
func (p *Platform) Send(_ context.Context, channel chat.ChannelID, payload chat.Payload) (chat.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("send"); err != nil {
		return chat.Message{}, chat.NewDeliveryFailure("send", channel, "", err)
	}
	if p.gone[channel] {
		return chat.Message{}, chat.NewDeliveryFailure("send", channel, "", chat.ErrUnknownChannel)
	}
	p.next++
	msg := chat.Message{ID: chat.MessageID(fmt.Sprintf("m%d", p.next)), ChannelID: channel, Payload: payload}
	p.live[msg.ID] = msg
	p.ops = append(p.ops, Op{Kind: "send", Channel: channel, Message: msg.ID, Payload: payload})
	return msg, nil
}

// Edit implements chat.Platform.
func (p *Platform) Edit(_ context.Context, msg chat.Message, payload chat.Payload) (chat.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("edit"); err != nil {
		return chat.Message{}, chat.NewDeliveryFailure("edit", msg.ChannelID, msg.ID, err)
	}
	if _, ok := p.live[msg.ID]; !ok {
		return chat.Message{}, chat.NewDeliveryFailure("edit", msg.ChannelID, msg.ID, chat.ErrUnknownMessage)
	}
	msg.Payload = payload
	p.live[msg.ID] = msg
	p.ops = append(p.ops, Op{Kind: "edit", Channel: msg.ChannelID, Message: msg.ID, Payload: payload})
	return msg, nil
}

// Delete implements chat.Platform.
func (p *Platform) Delete(_ context.Context, msg chat.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("delete"); err != nil {
		return chat.NewDeliveryFailure("delete", msg.ChannelID, msg.ID, err)
	}
	if _, ok := p.live[msg.ID]; !ok {
		return chat.NewDeliveryFailure("delete", msg.ChannelID, msg.ID, chat.ErrUnknownMessage)
	}
	delete(p.live, msg.ID)
	p.ops = append(p.ops, Op{Kind: "delete", Channel: msg.ChannelID, Message: msg.ID})
	return nil
}

// Ops returns a copy of the recorded calls.
func (p *Platform) Ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Op, len(p.ops))
	copy(out, p.ops)
	return out
}

// Count returns how many successful calls of kind were recorded.
func (p *Platform) Count(kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, op := range p.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Live returns the messages currently visible in channel.
func (p *Platform) Live(channel chat.ChannelID) []chat.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []chat.Message
	for _, op := range p.ops {
		if op.Kind != "send" || op.Channel != channel {
			continue
		}
		if m, ok := p.live[op.Message]; ok {
			out = append(out, m)
		}
	}
	return out
}

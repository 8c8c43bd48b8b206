package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/chat/chattest"
	"github.com/cory-johannsen/tictactoe-bot/internal/messaging"
)

// spyHandler counts invocations and keeps the last request.
type spyHandler struct {
	cmd   Command
	calls int
	last  Request
	err   error
}

func (s *spyHandler) Command() Command { return s.cmd }

func (s *spyHandler) Execute(_ context.Context, req Request) error {
	s.calls++
	s.last = req
	return s.err
}

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	tunnels := messaging.NewFactory(chattest.NewPlatform(), messaging.PolicyEdit, zap.NewNop())
	return NewDispatcher("!", tunnels, zaptest.NewLogger(t))
}

func textEvent(content string) chat.Event {
	return chat.Event{
		ID:      "e1",
		Author:  chat.Author{ID: "u1", Name: "alice"},
		Channel: chat.Channel{ID: "C1", Name: "general", Kind: chat.KindText},
		Content: content,
	}
}

func TestDispatcher_ExecuteMatchingHandler(t *testing.T) {
	d := newDispatcher(t)
	start := &spyHandler{cmd: Command{Name: "start", Aliases: []string{"ttt"}}}
	other := &spyHandler{cmd: Command{Name: "stop"}}
	require.NoError(t, d.AddCommand(start))
	require.NoError(t, d.AddCommand(other))

	matched, err := d.Execute(context.Background(), textEvent("!start @bob"))
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 1, start.calls)
	assert.Equal(t, 0, other.calls)
	assert.Equal(t, chat.ChannelID("C1"), start.last.Event.Channel.ID)
	assert.Equal(t, []string{"@bob"}, start.last.Args)
	assert.Equal(t, "start", start.last.Name)

	tun := start.last.Tunnel()
	assert.Equal(t, chat.UserID("u1"), tun.Author().ID)
	assert.Equal(t, chat.ChannelID("C1"), tun.Channel().ID)
}

func TestDispatcher_ExecuteAlias(t *testing.T) {
	d := newDispatcher(t)
	start := &spyHandler{cmd: Command{Name: "start", Aliases: []string{"ttt"}}}
	require.NoError(t, d.AddCommand(start))

	matched, err := d.Execute(context.Background(), textEvent("!TTT"))
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Equal(t, 1, start.calls)
	assert.Equal(t, "ttt", start.last.Name)
}

func TestDispatcher_UnroutableIsSilent(t *testing.T) {
	d := newDispatcher(t)
	start := &spyHandler{cmd: Command{Name: "start"}}
	require.NoError(t, d.AddCommand(start))

	for _, content := range []string{"hello", "!teleport", "!", "start", ""} {
		matched, err := d.Execute(context.Background(), textEvent(content))
		assert.NoError(t, err, content)
		assert.False(t, matched, content)
	}
	assert.Equal(t, 0, start.calls)
}

func TestDispatcher_HandlerErrorIsWrapped(t *testing.T) {
	d := newDispatcher(t)
	boom := errors.New("boom")
	require.NoError(t, d.AddCommand(&spyHandler{cmd: Command{Name: "start"}, err: boom}))

	matched, err := d.Execute(context.Background(), textEvent("!start"))
	assert.True(t, matched)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "command start")
}

func TestDispatcher_DuplicateName(t *testing.T) {
	d := newDispatcher(t)
	first := &spyHandler{cmd: Command{Name: "start"}}
	require.NoError(t, d.AddCommand(first))

	err := d.AddCommand(&spyHandler{cmd: Command{Name: "start"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateHandler)

	var dup *DuplicateHandlerError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "start", dup.Keyword)

	h, ok := d.Resolve("start")
	require.True(t, ok)
	assert.Same(t, first, h, "first registration is kept")
}

func TestDispatcher_DuplicateAlias(t *testing.T) {
	d := newDispatcher(t)
	require.NoError(t, d.AddCommand(&spyHandler{cmd: Command{Name: "play", Aliases: []string{"p"}}}))

	err := d.AddCommand(&spyHandler{cmd: Command{Name: "ping", Aliases: []string{"p"}}})
	assert.ErrorIs(t, err, ErrDuplicateHandler)
	_, ok := d.Resolve("ping")
	assert.False(t, ok, "rejected handler registers nothing")

	err = d.AddCommand(&spyHandler{cmd: Command{Name: "p"}})
	assert.ErrorIs(t, err, ErrDuplicateHandler, "name colliding with alias")

	err = d.AddCommand(&spyHandler{cmd: Command{Name: "x", Aliases: []string{"y", "y"}}})
	assert.ErrorIs(t, err, ErrDuplicateHandler, "alias repeated within one command")
}

func TestDispatcher_EmptyName(t *testing.T) {
	d := newDispatcher(t)
	assert.Error(t, d.AddCommand(&spyHandler{}))
}

func TestDispatcher_KeywordsAreCaseInsensitive(t *testing.T) {
	d := newDispatcher(t)
	start := &spyHandler{cmd: Command{Name: "Start", Aliases: []string{"TTT"}}}
	require.NoError(t, d.AddCommand(start))

	for _, content := range []string{"!start", "!START", "!ttt", "!Ttt"} {
		matched, err := d.Execute(context.Background(), textEvent(content))
		require.NoError(t, err, content)
		assert.True(t, matched, content)
	}
	assert.Equal(t, 4, start.calls)

	err := d.AddCommand(&spyHandler{cmd: Command{Name: "start"}})
	assert.ErrorIs(t, err, ErrDuplicateHandler, "names differing only in case collide")
	err = d.AddCommand(&spyHandler{cmd: Command{Name: "x", Aliases: []string{"Y", "y"}}})
	assert.ErrorIs(t, err, ErrDuplicateHandler)
}

func TestDispatcher_Commands(t *testing.T) {
	d := newDispatcher(t)
	require.NoError(t, d.AddCommand(&spyHandler{cmd: Command{Name: "stop", Category: CategoryGame}}))
	require.NoError(t, d.AddCommand(&spyHandler{cmd: Command{Name: "help", Category: CategoryInfo}}))
	require.NoError(t, d.AddCommand(&spyHandler{cmd: Command{Name: "accept", Category: CategoryGame}}))

	cmds := d.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, "accept", cmds[0].Name)
	assert.Equal(t, "help", cmds[1].Name)
	assert.Equal(t, "stop", cmds[2].Name)

	cats := d.CommandsByCategory()
	require.Len(t, cats[CategoryGame], 2)
	assert.Equal(t, "accept", cats[CategoryGame][0].Name)
	assert.Len(t, cats[CategoryInfo], 1)
}

func TestPropertyAtMostOneHandlerPerEvent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tunnels := messaging.NewFactory(chattest.NewPlatform(), messaging.PolicyEdit, zap.NewNop())
		d := NewDispatcher("!", tunnels, zap.NewNop())
		names := []string{"start", "stop", "play", "accept"}
		spies := make([]*spyHandler, len(names))
		for i, n := range names {
			spies[i] = &spyHandler{cmd: Command{Name: n}}
			if err := d.AddCommand(spies[i]); err != nil {
				rt.Fatalf("registering %s: %v", n, err)
			}
		}

		content := rapid.OneOf(
			rapid.SampledFrom([]string{"!start", "!stop 1", "!play 5", "!accept", "!nope", "hello"}),
			rapid.String(),
		).Draw(rt, "content")

		matched, err := d.Execute(context.Background(), textEvent(content))
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		total := 0
		for _, s := range spies {
			total += s.calls
		}
		if matched && total != 1 || !matched && total != 0 {
			rt.Fatalf("matched=%v but %d handlers ran for %q", matched, total, content)
		}
	})
}

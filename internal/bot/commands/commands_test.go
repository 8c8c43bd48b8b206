package commands_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/tictactoe-bot/internal/bot"
	"github.com/cory-johannsen/tictactoe-bot/internal/bot/commands"
	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/chat/chattest"
	"github.com/cory-johannsen/tictactoe-bot/internal/command"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/ai"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
)

var (
	alice   = chat.Author{ID: "u1", Name: "alice"}
	bob     = chat.Author{ID: "u2", Name: "bob"}
	general = chat.Channel{ID: "C1", Name: "general", Kind: chat.KindText}
)

type directory map[string]chat.Author

func (d directory) LookupUser(name string) (chat.Author, bool) {
	a, ok := d[name]
	return a, ok
}

type fakeRecorder struct {
	results []session.Result
	rows    []session.Standing
}

func (r *fakeRecorder) RecordResult(_ context.Context, res session.Result) error {
	r.results = append(r.results, res)
	return nil
}

func (r *fakeRecorder) Leaderboard(context.Context, chat.ChannelID, int) ([]session.Standing, error) {
	return r.rows, nil
}

type harness struct {
	t        *testing.T
	bot      *bot.Bot
	platform *chattest.Platform
}

func newHarness(t *testing.T, recorder session.ResultRecorder) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	platform := chattest.NewPlatform()
	reg := session.NewRegistry(session.NewFactory(session.Deps{
		Settings: session.Settings{BotName: "TTT", Prefix: "!", GameExpiry: time.Minute, DuelExpiry: time.Minute},
		Recorder: recorder,
		Logger:   logger,
	}), nil)
	b := bot.New(platform, reg, bot.Options{Prefix: "!"}, logger)
	aiReg, err := ai.NewRegistry(nil, nil, "", logger)
	require.NoError(t, err)
	require.NoError(t, commands.Register(b, commands.Deps{
		Host:     b,
		AI:       aiReg,
		Users:    directory{"alice": alice, "bob": bob},
		Recorder: recorder,
		Logger:   logger,
	}))
	t.Cleanup(b.Shutdown)
	return &harness{t: t, bot: b, platform: platform}
}

func (h *harness) say(author chat.Author, content string) {
	h.t.Helper()
	_, handled := h.bot.HandleEvent(context.Background(), chat.Event{
		ID: "e", Author: author, Channel: general, Content: content, ReceivedAt: time.Now(),
	})
	require.True(h.t, handled, content)
}

// last returns the text of the most recent send or edit.
func (h *harness) last() string {
	ops := h.platform.Ops()
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Kind != "delete" {
			return ops[i].Payload.String()
		}
	}
	return ""
}

func TestRegister_AllCommands(t *testing.T) {
	h := newHarness(t, nil)
	var names []string
	for _, group := range h.bot.CommandsByCategory() {
		for _, c := range group {
			names = append(names, c.Name)
		}
	}
	assert.ElementsMatch(t, []string{"accept", "help", "play", "start", "stats", "stop"}, names)

	err := commands.Register(h.bot, commands.Deps{Host: h.bot, Logger: zaptest.NewLogger(t)})
	assert.ErrorIs(t, err, command.ErrDuplicateHandler)
}

func TestStartAndPlayAgainstBot(t *testing.T) {
	rec := &fakeRecorder{}
	h := newHarness(t, rec)

	h.say(alice, "!ttt")
	assert.Contains(t, h.last(), "Turn: @alice")
	assert.Equal(t, 1, h.bot.Registry().Len())

	// Builtin AI plays the first free cell: 1, 2, 3 ...
	h.say(alice, "!p 5")
	assert.Contains(t, h.last(), " O | 2 | 3 ")
	h.say(alice, "!play 9")
	h.say(alice, "!play 3")
	require.Len(t, rec.results, 0)
	h.say(alice, "!play 7")
	assert.Contains(t, h.last(), "Result: @alice wins!")
	require.Len(t, rec.results, 1)
	assert.Equal(t, "u1", rec.results[0].WinnerID)
	assert.Equal(t, 0, h.bot.Registry().Len())
}

func TestStartTwiceIsBusy(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!start")
	h.say(bob, "!start")
	assert.Equal(t, "A game is already running in this channel.", h.last())
}

func TestStartUnknownDifficulty(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!start impossible")
	assert.Equal(t, `Unknown difficulty "impossible". Choose one of: builtin.`, h.last())
	assert.Equal(t, 0, h.bot.Registry().Len())
}

func TestDuelFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!start @bob")
	assert.Contains(t, h.last(), "@bob, @alice challenges you")

	h.say(alice, "!accept")
	assert.Equal(t, "This challenge is not for you.", h.last())

	h.say(bob, "!accept")
	assert.Contains(t, h.last(), "Turn: @alice")

	h.say(bob, "!play 1")
	assert.Equal(t, "Not your turn.", h.last())
	h.say(alice, "!play 1")
	h.say(bob, "!play 1")
	assert.Equal(t, "Cell already taken: 1.", h.last())
}

func TestDuelUnknownUser(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!start @nobody")
	assert.Equal(t, "I don't know anyone called @nobody.", h.last())
}

func TestPlayUsageAndNoGame(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!play")
	assert.Equal(t, "Usage: !play <1-9>", h.last())
	h.say(alice, "!p 10")
	assert.Equal(t, "Usage: !p <1-9>", h.last())
	h.say(alice, "!play 4")
	assert.Equal(t, "No game is running in this channel.", h.last())
	assert.Equal(t, 0, h.bot.Registry().Len())
}

func TestStopRetractsBoard(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!start")
	h.say(alice, "!stop")
	assert.Equal(t, "Game stopped by @alice.", h.last())
	assert.Equal(t, 1, h.platform.Count("delete"))
	assert.Len(t, h.platform.Live(general.ID), 1, "only the stop notice remains")
	assert.Equal(t, 0, h.bot.Registry().Len())
}

func TestStopByOutsider(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!start")
	h.say(bob, "!stop")
	assert.Equal(t, "Only players can stop this game.", h.last())
	assert.Equal(t, 1, h.bot.Registry().Len())
}

func TestStats(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!stats")
	assert.Equal(t, "Game history is disabled.", h.last())

	rec := &fakeRecorder{rows: []session.Standing{{PlayerID: "u1", Name: "alice", Wins: 3, Losses: 1}}}
	h = newHarness(t, rec)
	h.say(alice, "!stats")
	assert.Contains(t, h.last(), "== Leaderboard #general ==")
	assert.Contains(t, h.last(), "1. alice: 3W 1L 0D")
}

func TestHelp(t *testing.T) {
	h := newHarness(t, nil)
	h.say(alice, "!help")
	out := h.last()
	assert.True(t, strings.HasPrefix(out, "=== Game ==="), out)
	assert.Contains(t, out, "!play <1-9> (p)")
	assert.Contains(t, out, "=== Info ===")
	assert.Contains(t, out, "=== System ===")
}

func TestHandleHelp_UnknownCategoryLast(t *testing.T) {
	out := commands.HandleHelp(map[string][]command.Command{
		"misc":               {{Name: "zeta", Category: "misc"}},
		command.CategoryGame: {{Name: "start", Category: command.CategoryGame}},
		"":                   {{Name: "raw"}},
	}, "!")
	assert.Equal(t, "=== Game ===\n  !start                   \n=== Other ===\n  !raw                     \n=== Misc ===\n  !zeta                    ", out)
}

func TestHandleStats_Empty(t *testing.T) {
	p := commands.HandleStats(general, nil)
	assert.Equal(t, "== Leaderboard #general ==\nNo games finished here yet.", p.String())
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/command"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
)

// leaderboardSize is the number of rows stats shows.
const leaderboardSize = 10

type statsHandler struct{ deps Deps }

func (h *statsHandler) Command() command.Command {
	return command.Command{
		Name:     "stats",
		Help:     "Show this channel's leaderboard.",
		Category: command.CategoryInfo,
	}
}

func (h *statsHandler) Execute(ctx context.Context, req command.Request) error {
	rows, err := h.deps.Recorder.Leaderboard(ctx, req.Event.Channel.ID, leaderboardSize)
	if errors.Is(err, session.ErrHistoryDisabled) {
		return respond(ctx, req, err)
	}
	if err != nil {
		h.deps.Logger.Error("loading leaderboard",
			zap.String("channel", string(req.Event.Channel.ID)),
			zap.Error(err),
		)
		return answer(ctx, req, "The leaderboard is unavailable right now.")
	}
	_, err = req.Tunnel().ReplyWith(ctx, HandleStats(req.Event.Channel, rows))
	return err
}

// HandleStats renders a leaderboard.
//
// Postcondition: Returns an embed with one field per standing, in the
// given order.
func HandleStats(channel chat.Channel, rows []session.Standing) chat.Payload {
	embed := &chat.Embed{Title: "Leaderboard #" + channel.Name}
	if len(rows) == 0 {
		embed.Description = "No games finished here yet."
	}
	for i, r := range rows {
		embed.Fields = append(embed.Fields, chat.EmbedField{
			Name:  fmt.Sprintf("%d. %s", i+1, r.Name),
			Value: fmt.Sprintf("%dW %dL %dD", r.Wins, r.Losses, r.Draws),
		})
	}
	return chat.Payload{Embed: embed}
}

type helpHandler struct{ deps Deps }

func (h *helpHandler) Command() command.Command {
	return command.Command{
		Name:     "help",
		Help:     "List the available commands.",
		Category: command.CategorySystem,
	}
}

func (h *helpHandler) Execute(ctx context.Context, req command.Request) error {
	return answer(ctx, req, HandleHelp(h.deps.Host.CommandsByCategory(), h.deps.Host.Prefix()))
}

var categoryOrder = []string{command.CategoryGame, command.CategoryInfo, command.CategorySystem}

// HandleHelp lists commands grouped by category.
//
// Postcondition: Categories appear in a fixed order; unknown categories
// follow, sorted by name.
func HandleHelp(byCat map[string][]command.Command, prefix string) string {
	order := append([]string(nil), categoryOrder...)
	var extra []string
	for cat := range byCat {
		known := false
		for _, k := range categoryOrder {
			if cat == k {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	var sb strings.Builder
	for _, cat := range order {
		group := byCat[cat]
		if len(group) == 0 {
			continue
		}
		sb.WriteString("=== " + categoryTitle(cat) + " ===\n")
		for _, c := range group {
			line := prefix + c.Name
			if c.Usage != "" {
				line += " " + c.Usage
			}
			if len(c.Aliases) > 0 {
				line += " (" + strings.Join(c.Aliases, ", ") + ")"
			}
			sb.WriteString(fmt.Sprintf("  %-24s %s\n", line, c.Help))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func categoryTitle(cat string) string {
	if cat == "" {
		return "Other"
	}
	return strings.ToUpper(cat[:1]) + cat[1:]
}

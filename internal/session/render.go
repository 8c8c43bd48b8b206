package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/tictactoe"
)

const boardTitle = "Tic-Tac-Toe"

// RenderGrid draws the board as three text rows. Free cells show their
// 1-based number so players know what to type.
func RenderGrid(b tictactoe.Board) string {
	var sb strings.Builder
	for row := 0; row < tictactoe.Size; row++ {
		if row > 0 {
			sb.WriteString("---+---+---\n")
		}
		for col := 0; col < tictactoe.Size; col++ {
			i := row*tictactoe.Size + col
			if col > 0 {
				sb.WriteString("|")
			}
			sym := b[i].String()
			if b[i] == tictactoe.Empty {
				sym = strconv.Itoa(i + 1)
			}
			sb.WriteString(" " + sym + " ")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderBoard turns a game into the embed shown in the channel.
func RenderBoard(g *tictactoe.Game) chat.Payload {
	players := g.Players()
	embed := &chat.Embed{
		Title:       boardTitle,
		Description: RenderGrid(g.Board()),
		Fields: []chat.EmbedField{
			{Name: "X", Value: displayName(players[0])},
			{Name: "O", Value: displayName(players[1])},
		},
		Footer: "game " + g.ID(),
	}

	out := g.Outcome()
	switch out.State {
	case tictactoe.Won:
		embed.Fields = append(embed.Fields, chat.EmbedField{Name: "Result", Value: displayName(*out.Winner) + " wins!"})
	case tictactoe.Draw:
		embed.Fields = append(embed.Fields, chat.EmbedField{Name: "Result", Value: "It's a draw."})
	default:
		embed.Fields = append(embed.Fields, chat.EmbedField{Name: "Turn", Value: displayName(g.Current())})
	}
	return chat.Payload{Embed: embed}
}

// RenderChallenge renders a pending duel invitation.
func RenderChallenge(challenger, invitee chat.Author, prefix string, expiry time.Duration) chat.Payload {
	return chat.Payload{Embed: &chat.Embed{
		Title: boardTitle,
		Description: fmt.Sprintf("%s, %s challenges you to a duel! Type %saccept to play.",
			invitee.Mention(), challenger.Mention(), prefix),
		Footer: "expires in " + expiry.String(),
	}}
}

func displayName(p tictactoe.Player) string {
	if p.AI {
		return p.Name + " (bot)"
	}
	return "@" + p.Name
}

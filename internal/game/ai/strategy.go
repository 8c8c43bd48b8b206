package ai

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/game/tictactoe"
	"github.com/cory-johannsen/tictactoe-bot/internal/scripting"
)

// MoveFunc is the Lua global every AI script defines:
//
//	function choose_move(board, mark) -> cell
//
// board is a 9-element array of "X", "O" or "", mark is "X" or "O", and
// cell is 1-based.
const MoveFunc = "choose_move"

// Strategy picks the next cell for mark.
type Strategy interface {
	ChooseMove(ctx context.Context, board tictactoe.Board, mark tictactoe.Mark) (int, error)
}

// FirstFree plays the lowest-numbered empty cell.
type FirstFree struct{}

// ChooseMove implements Strategy.
func (FirstFree) ChooseMove(_ context.Context, board tictactoe.Board, _ tictactoe.Mark) (int, error) {
	free := board.Free()
	if len(free) == 0 {
		return 0, fmt.Errorf("no free cell")
	}
	return free[0], nil
}

// Scripted asks a Lua script for its move and falls back to another
// strategy when the script fails or answers with an illegal cell.
type Scripted struct {
	scripts  *scripting.Manager
	key      string
	fallback Strategy
	logger   *zap.Logger
}

// NewScripted creates a Scripted strategy for the script loaded under key.
//
// Precondition: scripts and logger must be non-nil; fallback must be non-nil.
func NewScripted(scripts *scripting.Manager, key string, fallback Strategy, logger *zap.Logger) *Scripted {
	return &Scripted{scripts: scripts, key: key, fallback: fallback, logger: logger}
}

// ChooseMove implements Strategy.
//
// Postcondition: Returns a free cell index in 0..8 unless the board is full.
func (s *Scripted) ChooseMove(ctx context.Context, board tictactoe.Board, mark tictactoe.Mark) (int, error) {
	cell, err := s.ask(ctx, board, mark)
	if err != nil {
		s.logger.Warn("ai script failed, using fallback",
			zap.String("profile", s.key),
			zap.Error(err),
		)
		return s.fallback.ChooseMove(ctx, board, mark)
	}
	return cell, nil
}

func (s *Scripted) ask(ctx context.Context, board tictactoe.Board, mark tictactoe.Mark) (int, error) {
	ret, err := s.scripts.CallWith(ctx, s.key, MoveFunc, func(L *lua.LState) []lua.LValue {
		cells := L.NewTable()
		for _, m := range board {
			v := ""
			if m != tictactoe.Empty {
				v = m.String()
			}
			cells.Append(lua.LString(v))
		}
		return []lua.LValue{cells, lua.LString(mark.String())}
	})
	if err != nil {
		return 0, err
	}
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("%s returned %s, want number", MoveFunc, ret.Type())
	}
	if lua.LNumber(int(n)) != n {
		return 0, fmt.Errorf("%s returned %v, want a whole number", MoveFunc, n)
	}
	cell := int(n) - 1
	if cell < 0 || cell >= tictactoe.Cells || board[cell] != tictactoe.Empty {
		return 0, fmt.Errorf("%s returned illegal cell %d", MoveFunc, int(n))
	}
	return cell, nil
}

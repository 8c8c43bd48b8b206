package tictactoe

import (
	"errors"
	"fmt"
)

var (
	// ErrGameOver is returned for moves after the game has finished.
	ErrGameOver = errors.New("game is over")
	// ErrNotYourTurn is returned when a player moves out of turn.
	ErrNotYourTurn = errors.New("not your turn")
	// ErrNotAPlayer is returned for moves by someone outside the game.
	ErrNotAPlayer = errors.New("not a player in this game")
	// ErrCellTaken is returned when the target cell is occupied.
	ErrCellTaken = errors.New("cell already taken")
	// ErrCellOutOfRange is returned for cell indices outside 0..8.
	ErrCellOutOfRange = errors.New("cell out of range")
	// ErrNothingToUndo is returned by Undo on a game without moves.
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Player is a participant. AI players are driven by the caller.
type Player struct {
	ID   string
	Name string
	AI   bool
}

// State is the phase of a game.
type State int

const (
	InProgress State = iota
	Won
	Draw
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Won:
		return "won"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// Outcome summarises the game after a move.
type Outcome struct {
	State State
	// Winner is set when State is Won.
	Winner *Player
}

// Game is one tic-tac-toe match. X always moves first. Game is not safe
// for concurrent use; callers serialize access.
type Game struct {
	id      string
	players [2]Player
	board   Board
	history []int
}

// New creates a game where first plays X and second plays O.
//
// Precondition: first.ID and second.ID must differ.
func New(id string, first, second Player) (*Game, error) {
	if first.ID == second.ID {
		return nil, fmt.Errorf("players must differ, got %q twice", first.ID)
	}
	return &Game{id: id, players: [2]Player{first, second}}, nil
}

// ID returns the game identifier.
func (g *Game) ID() string { return g.id }

// Board returns a copy of the board.
func (g *Game) Board() Board { return g.board }

// Players returns the X and O players.
func (g *Game) Players() [2]Player { return g.players }

// Moves returns how many moves were played.
func (g *Game) Moves() int { return len(g.history) }

// MarkOf returns the mark played by playerID.
//
// Postcondition: Returns (mark, true) for a participant, or (Empty, false).
func (g *Game) MarkOf(playerID string) (Mark, bool) {
	switch playerID {
	case g.players[0].ID:
		return X, true
	case g.players[1].ID:
		return O, true
	default:
		return Empty, false
	}
}

// PlayerOf returns the player owning mark.
func (g *Game) PlayerOf(m Mark) Player {
	if m == O {
		return g.players[1]
	}
	return g.players[0]
}

// Turn returns the mark expected to move next.
func (g *Game) Turn() Mark {
	if len(g.history)%2 == 0 {
		return X
	}
	return O
}

// Current returns the player expected to move next.
func (g *Game) Current() Player {
	return g.PlayerOf(g.Turn())
}

// Outcome evaluates the board.
func (g *Game) Outcome() Outcome {
	if w := g.board.Winner(); w != Empty {
		p := g.PlayerOf(w)
		return Outcome{State: Won, Winner: &p}
	}
	if g.board.Full() {
		return Outcome{State: Draw}
	}
	return Outcome{State: InProgress}
}

// Move places the mark of playerID on cell.
//
// Precondition: cell is in 0..8.
// Postcondition: On success the board holds the new mark and the new
// outcome is returned. On error the game is unchanged.
func (g *Game) Move(playerID string, cell int) (Outcome, error) {
	if g.Outcome().State != InProgress {
		return Outcome{}, ErrGameOver
	}
	mark, ok := g.MarkOf(playerID)
	if !ok {
		return Outcome{}, ErrNotAPlayer
	}
	if mark != g.Turn() {
		return Outcome{}, ErrNotYourTurn
	}
	if cell < 0 || cell >= Cells {
		return Outcome{}, fmt.Errorf("%w: %d", ErrCellOutOfRange, cell)
	}
	if g.board[cell] != Empty {
		return Outcome{}, fmt.Errorf("%w: %d", ErrCellTaken, cell+1)
	}
	g.board[cell] = mark
	g.history = append(g.history, cell)
	return g.Outcome(), nil
}

// Undo reverts the last move.
func (g *Game) Undo() error {
	if len(g.history) == 0 {
		return ErrNothingToUndo
	}
	last := g.history[len(g.history)-1]
	g.history = g.history[:len(g.history)-1]
	g.board[last] = Empty
	return nil
}

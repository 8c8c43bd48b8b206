// Package tictactoe implements the rules of a 3×3 tic-tac-toe game.
// It has no dependency on the chat layer.
package tictactoe

// Size is the side length of the board.
const Size = 3

// Cells is the number of cells on the board.
const Cells = Size * Size

// Mark is the content of a cell.
type Mark int

const (
	Empty Mark = iota
	X
	O
)

// String returns the mark's symbol, or a blank for Empty.
func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return " "
	}
}

// Opponent returns the other player's mark.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Board holds cells in row-major order, indices 0..8.
type Board [Cells]Mark

var lines = [...][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Winner returns the mark owning a complete line, or Empty.
func (b Board) Winner() Mark {
	for _, l := range lines {
		if m := b[l[0]]; m != Empty && b[l[1]] == m && b[l[2]] == m {
			return m
		}
	}
	return Empty
}

// Full reports whether no cell is empty.
func (b Board) Full() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// Free returns the indices of empty cells in ascending order.
func (b Board) Free() []int {
	out := make([]int, 0, Cells)
	for i, m := range b {
		if m == Empty {
			out = append(out, i)
		}
	}
	return out
}

// Count returns how many cells hold m.
func (b Board) Count(m Mark) int {
	n := 0
	for _, c := range b {
		if c == m {
			n++
		}
	}
	return n
}

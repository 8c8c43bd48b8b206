// Package scripting provides a sandboxed GopherLua execution environment
// for AI opponent scripts. It has no dependency on game packages; callers
// exchange plain Lua values with the scripts.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes a single
// script call may execute when no override is configured.
const DefaultInstructionLimit = 100_000

// countingContext cancels itself after Done() has been called limit
// times. GopherLua's mainLoopWithContext calls Done() once per opcode,
// which makes this an exact instruction budget.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

// Done decrements the remaining budget and fires cancel at zero.
func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// newCountingContext returns a context that cancels after limit calls to
// Done(), or earlier when parent is cancelled.
//
// Precondition: limit > 0.
func newCountingContext(parent context.Context, limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(parent)
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{
		Context:   base,
		cancel:    cancel,
		remaining: rem,
	}, cancel
}

// NewSandboxedState creates an LState with only the base, table, string
// and math libraries, without dofile, loadfile, load, collectgarbage or
// require.
//
// Postcondition: The caller owns the LState and must Close it. Each
// script execution must be bounded with Budget.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// Budget installs a fresh instruction budget of limit opcodes on L.
// The returned func removes it and must be called when the execution ends.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
func Budget(ctx context.Context, L *lua.LState, limit int) func() {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	cctx, cancel := newCountingContext(ctx, limit)
	L.SetContext(cctx)
	return func() {
		cancel()
		L.RemoveContext()
	}
}

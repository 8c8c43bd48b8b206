package scripting_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tictactoe-bot/internal/scripting"
)

func TestNewSandboxedState_UnsafeLibsNil(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	for _, name := range []string{"os", "io", "debug", "dofile", "loadfile", "load", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_SafeLibsAvailable(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	err := L.DoString(`
		local x = math.sqrt(4)
		assert(x == 2.0, "math.sqrt failed")
		local s = string.upper("hello")
		assert(s == "HELLO", "string.upper failed")
		local t = {}
		table.insert(t, 1)
		assert(#t == 1, "table.insert failed")
	`)
	assert.NoError(t, err)
}

func TestBudget_StopsRunawayScript(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	release := scripting.Budget(context.Background(), L, 10)
	defer release()
	assert.Error(t, L.DoString(`while true do end`))
}

func call(m *scripting.Manager, key, fn string, args ...lua.LValue) (lua.LValue, error) {
	return m.CallWith(context.Background(), key, fn, func(*lua.LState) []lua.LValue { return args })
}

func TestManager_CallWithBuildsTables(t *testing.T) {
	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()
	require.NoError(t, m.LoadString("k", `function size(t) return #t end`, 0))

	ret, err := m.CallWith(context.Background(), "k", "size", func(L *lua.LState) []lua.LValue {
		tbl := L.NewTable()
		tbl.Append(lua.LString("a"))
		tbl.Append(lua.LString("b"))
		return []lua.LValue{tbl}
	})
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret)
}

func TestManager_LoadAndCall(t *testing.T) {
	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()

	require.NoError(t, m.LoadString("easy", `
		function double(n) return n * 2 end
	`, 0))
	_, err := call(m, "hard", "double", lua.LNumber(1))
	assert.Error(t, err, "nothing loaded under hard")

	ret, err := call(m, "easy", "double", lua.LNumber(21))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(42), ret)
}

func TestManager_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "first.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function first() return 1 end`), 0o644))

	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()
	require.NoError(t, m.LoadFile("first", path, 0))

	ret, err := call(m, "first", "first")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(1), ret)

	assert.Error(t, m.LoadFile("missing", filepath.Join(dir, "nope.lua"), 0))
	_, err = call(m, "missing", "first")
	assert.Error(t, err)
}

func TestManager_EngineLines(t *testing.T) {
	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()
	require.NoError(t, m.LoadString("k", `
		function count() engine.log("counting"); return #engine.lines() end
	`, 0))

	ret, err := call(m, "k", "count")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(8), ret)
}

func TestManager_CallErrors(t *testing.T) {
	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()

	_, err := call(m, "absent", "f")
	assert.Error(t, err)

	require.NoError(t, m.LoadString("k", `
		function fails() error("nope") end
		function spins() while true do end end
	`, 1000))

	_, err = call(m, "k", "undefined")
	assert.Error(t, err)
	_, err = call(m, "k", "fails")
	assert.Error(t, err)
	_, err = call(m, "k", "spins")
	assert.Error(t, err)
}

func TestManager_BudgetIsPerCall(t *testing.T) {
	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()
	require.NoError(t, m.LoadString("k", `
		function work() local s = 0; for i = 1, 50 do s = s + i end; return s end
	`, 2000))

	for i := 0; i < 20; i++ {
		ret, err := call(m, "k", "work")
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, lua.LNumber(1275), ret)
	}
}

func TestManager_LoadRejectsRunawayTopLevel(t *testing.T) {
	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()
	assert.Error(t, m.LoadString("k", `while true do end`, 100))
	_, err := call(m, "k", "anything")
	assert.Error(t, err, "failed load registers nothing")
}

func TestProperty_InstructionLimitAlwaysErrors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(t, "limit")
		m := scripting.NewManager(zap.NewNop())
		defer m.Close()
		if err := m.LoadString("k", `while true do end`, limit); err == nil {
			t.Fatalf("expected error with limit=%d but got nil", limit)
		}
	})
}

type fixedSource int

func (f fixedSource) Intn(n int) int { return int(f) % n }

func TestEngineRandom_UsesSource(t *testing.T) {
	m := scripting.NewManager(zaptest.NewLogger(t))
	defer m.Close()
	m.SetRandom(fixedSource(1))
	require.NoError(t, m.LoadString("rng", `function pick(n) return engine.random(n) end`, 1000))

	got, err := call(m, "rng", "pick", lua.LNumber(3))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), got)

	_, err = call(m, "rng", "pick", lua.LNumber(0))
	assert.Error(t, err)
}

// Property: the crypto source stays in range.
func TestPropertyCryptoSourceInRange(t *testing.T) {
	src := scripting.NewCryptoSource()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 1000).Draw(rt, "n")
		if v := src.Intn(n); v < 0 || v >= n {
			rt.Fatalf("Intn(%d) = %d", n, v)
		}
	})
}

package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// winningLines lists the 1-based cell triples that complete a line.
var winningLines = [][3]int{
	{1, 2, 3}, {4, 5, 6}, {7, 8, 9},
	{1, 4, 7}, {2, 5, 8}, {3, 6, 9},
	{1, 5, 9}, {3, 5, 7},
}

// RegisterModules defines the engine global in L:
//
//	engine.log(msg)   writes msg to the bot log at debug level
//	engine.lines()    returns the winning lines as {{1,2,3}, ...}
//	engine.random(n)  returns a uniform integer in [1, n]
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState, key string) {
	engine := L.NewTable()

	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Debug("script log",
			zap.String("key", key),
			zap.String("msg", L.CheckString(1)),
		)
		return 0
	}))

	L.SetField(engine, "lines", L.NewFunction(func(L *lua.LState) int {
		out := L.NewTable()
		for _, line := range winningLines {
			t := L.NewTable()
			for _, c := range line {
				t.Append(lua.LNumber(c))
			}
			out.Append(t)
		}
		L.Push(out)
		return 1
	}))

	src := m.randomSource()
	L.SetField(engine, "random", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n <= 0 {
			L.ArgError(1, "n must be positive")
			return 0
		}
		L.Push(lua.LNumber(src.Intn(n) + 1))
		return 1
	}))

	L.SetGlobal("engine", engine)
}

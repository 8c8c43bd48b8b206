package scripting

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// vm is one sandboxed state. LStates are single-threaded, so every use
// holds mu.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed LState per script key.
// All methods are safe for concurrent use; calls into the same key are
// serialized while different keys run concurrently.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*vm
	random Source
	logger *zap.Logger
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		states: make(map[string]*vm),
		random: NewCryptoSource(),
		logger: logger,
	}
}

// LoadFile creates a VM for key, registers the engine module and executes
// the script at path. A previous VM for key is replaced.
//
// Precondition: key must be non-empty.
// Postcondition: Returns an error if the script fails to load or exceeds
// instLimit opcodes while loading.
func (m *Manager) LoadFile(key, path string, instLimit int) error {
	return m.load(key, instLimit, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString is LoadFile for inline source.
func (m *Manager) LoadString(key, src string, instLimit int) error {
	return m.load(key, instLimit, func(L *lua.LState) error { return L.DoString(src) })
}

func (m *Manager) load(key string, instLimit int, run func(*lua.LState) error) error {
	L := NewSandboxedState()
	m.RegisterModules(L, key)

	release := Budget(context.Background(), L, instLimit)
	err := run(L)
	release()
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: loading %q: %w", key, err)
	}

	m.mu.Lock()
	old := m.states[key]
	m.states[key] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("script loaded", zap.String("key", key))
	return nil
}

// CallWith invokes the global function fn in key's VM with the arguments
// build returns. build runs inside the VM so it may allocate tables.
//
// Postcondition: Returns the first return value. Returns an error if no
// VM is loaded for key, fn is not defined, the script raises an error, or
// the instruction budget is exhausted.
func (m *Manager) CallWith(ctx context.Context, key, fn string, build func(L *lua.LState) []lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.states[key]
	m.mu.RUnlock()
	if !ok {
		return lua.LNil, fmt.Errorf("scripting: no script loaded for %q", key)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	f := v.L.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		return lua.LNil, fmt.Errorf("scripting: %q does not define %s()", key, fn)
	}

	release := Budget(ctx, v.L, v.limit)
	defer release()

	if err := v.L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, build(v.L)...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("key", key),
			zap.String("fn", fn),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: calling %s in %q: %w", fn, key, err)
	}
	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.states {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
		delete(m.states, key)
	}
}

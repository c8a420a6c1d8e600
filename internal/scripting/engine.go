package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for server policy hooks.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory's policy subdirectory. A missing directory is not an error.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	if err := e.loadDir(filepath.Join(scriptsDir, "policy")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load policy scripts: %w", err)
	}
	return e, nil
}

// NewEngineFromString builds an engine from a single script body.
func NewEngineFromString(src string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load script: %w", err)
	}
	return &Engine{vm: vm, log: log}, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// ViolationContext is passed to the Lua on_violation hook.
type ViolationContext struct {
	SessionID uint64
	Player    string
	Kind      string // outcome kind, e.g. "WrongState"
	Command   string
	Opcode    int
	State     string
	Count     int // violations inside the current window, this one included
	Limit     int // configured threshold (0 = disabled)
}

// HasViolationHook reports whether a script defined on_violation.
func (e *Engine) HasViolationHook() bool {
	return e.vm.GetGlobal("on_violation") != lua.LNil
}

// OnViolation calls the Lua on_violation function. handled is false when no
// hook exists, the hook failed, or it returned something other than a
// boolean; callers then fall back to the configured threshold.
func (e *Engine) OnViolation(ctx ViolationContext) (disconnect, handled bool) {
	fn := e.vm.GetGlobal("on_violation")
	if fn == lua.LNil {
		return false, false
	}

	t := e.vm.NewTable()
	t.RawSetString("session", lua.LNumber(ctx.SessionID))
	t.RawSetString("player", lua.LString(ctx.Player))
	t.RawSetString("kind", lua.LString(ctx.Kind))
	t.RawSetString("command", lua.LString(ctx.Command))
	t.RawSetString("opcode", lua.LNumber(ctx.Opcode))
	t.RawSetString("state", lua.LString(ctx.State))
	t.RawSetString("count", lua.LNumber(ctx.Count))
	t.RawSetString("limit", lua.LNumber(ctx.Limit))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua on_violation error", zap.Error(err))
		return false, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	b, ok := result.(lua.LBool)
	if !ok {
		return false, false
	}
	return bool(b), true
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

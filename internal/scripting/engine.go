package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rockfall/arena/internal/physics"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding scoring overrides.
// Single-goroutine access only (game loop).
type Engine struct {
	vm       *lua.LState
	fallback physics.Scorer
	log      *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts under scriptsDir/scoring.
// A missing directory is not an error: every hook then falls back to the
// built-in scoring table.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.loadDir(filepath.Join(scriptsDir, "scoring")); err != nil {
		e.vm.Close()
		return nil, fmt.Errorf("load scoring scripts: %w", err)
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("BIG_ASTEROID_POINTS", lua.LNumber(physics.BigAsteroidPoints))
	vm.SetGlobal("SMALL_ASTEROID_POINTS", lua.LNumber(physics.SmallAsteroidPoints))
	vm.SetGlobal("ELIMINATION_BONUS", lua.LNumber(physics.EliminationBonus))
	return &Engine{vm: vm, fallback: physics.DefaultScorer{}, log: log}
}

func (e *Engine) Close() {
	e.vm.Close()
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
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

// LoadString evaluates src in the engine's VM.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

// AsteroidPoints calls asteroid_points({is_big=...}).
func (e *Engine) AsteroidPoints(big bool) int {
	ctx := e.vm.NewTable()
	ctx.RawSetString("is_big", lua.LBool(big))
	n, ok := e.callNumber("asteroid_points", ctx)
	if !ok {
		return e.fallback.AsteroidPoints(big)
	}
	return n
}

// KillBonus calls kill_bonus().
func (e *Engine) KillBonus() int {
	n, ok := e.callNumber("kill_bonus")
	if !ok {
		return e.fallback.KillBonus()
	}
	return n
}

// callNumber calls a global function expecting one non-negative number back.
// Reports false when the function is missing or misbehaves.
func (e *Engine) callNumber(name string, args ...lua.LValue) (int, bool) {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call failed", zap.String("fn", name), zap.Error(err))
		return 0, false
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	num, ok := ret.(lua.LNumber)
	if !ok || num < 0 {
		e.log.Error("lua returned invalid points", zap.String("fn", name), zap.String("value", ret.String()))
		return 0, false
	}
	return int(num), true
}

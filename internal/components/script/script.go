// Package script runs a Lua chunk as an entity component.
//
// The chunk sees the globals entity_id, archetype and log(msg). If it
// defines update(dt) it is called every frame; release() is called once when
// the component detaches. The VM is only touched from the update thread.
package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/observability/log"
)

const ArgConfig = "script.config"

var (
	ErrNoScript   = errors.New("script: neither path nor source configured")
	ErrScriptLoad = errors.New("script: load failed")
)

type Config struct {
	// Path is a Lua file. Source is used when Path is empty.
	Path   string `yaml:"path" toml:"path"`
	Source string `yaml:"source" toml:"source"`
}

// Enabled reports whether the config names a script.
func (c Config) Enabled() bool { return c.Path != "" || c.Source != "" }

type Component struct {
	ec.Base

	cfg    Config
	logger log.Log
	vm     *lua.LState
	calls  uint64
}

func New() *Component {
	return &Component{}
}

func (c *Component) OnAttach(e *ec.Entity, args ec.Args) error {
	if cfg, ok := ec.Value[Config](args, ArgConfig); ok {
		c.cfg = cfg
	}
	if !c.cfg.Enabled() {
		return ErrNoScript
	}
	c.logger = ec.LoggerFrom(args).With(
		log.String("component", "script"),
		log.Uint64("entity", uint64(e.ID())),
	)

	vm := lua.NewState()
	vm.SetGlobal("entity_id", lua.LNumber(e.ID()))
	vm.SetGlobal("archetype", lua.LString(e.Archetype()))
	vm.SetGlobal("log", vm.NewFunction(c.luaLog))

	var err error
	if c.cfg.Path != "" {
		err = vm.DoFile(c.cfg.Path)
	} else {
		err = vm.DoString(c.cfg.Source)
	}
	if err != nil {
		vm.Close()
		return fmt.Errorf("%w: %w", ErrScriptLoad, err)
	}
	c.vm = vm
	if c.cfg.Path != "" {
		c.logger.Debug("loaded lua script", log.String("file", c.cfg.Path))
	}
	return nil
}

func (c *Component) luaLog(L *lua.LState) int {
	c.logger.Info(L.CheckString(1), log.String("source", "lua"))
	return 0
}

func (c *Component) OnUpdate(dt float64) error {
	fn, ok := c.vm.GetGlobal("update").(*lua.LFunction)
	if !ok {
		return nil
	}
	c.calls++
	return c.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(dt))
}

func (c *Component) OnDetach() {
	if c.vm == nil {
		return
	}
	if fn, ok := c.vm.GetGlobal("release").(*lua.LFunction); ok {
		if err := c.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
			c.logger.Error("lua release error", log.Error(err))
		}
	}
	c.vm.Close()
	c.vm = nil
}

// Global returns a Lua global converted to its Go form: string, float64,
// bool or nil. Other Lua types come back as their string form.
func (c *Component) Global(name string) any {
	if c.vm == nil {
		return nil
	}
	switch v := c.vm.GetGlobal(name).(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case lua.LBool:
		return bool(v)
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}

// Calls counts update(dt) invocations.
func (c *Component) Calls() uint64 { return c.calls }

func (c *Component) Config() Config { return c.cfg }

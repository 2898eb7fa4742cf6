// Package engine is the runtime facade: it registers the built-in components
// and archetypes, builds the root entity, forwards frames to the entity
// manager and tears everything down in order.
package engine

import (
	"context"
	"fmt"
	"maps"
	"runtime/debug"
	"slices"
	"sync/atomic"
	"time"

	"github.com/zeusync/ecengine/internal/components/autopatcher"
	"github.com/zeusync/ecengine/internal/components/node"
	"github.com/zeusync/ecengine/internal/components/script"
	"github.com/zeusync/ecengine/internal/components/supersocket"
	"github.com/zeusync/ecengine/internal/components/ucenter"
	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/events/bus"
	"github.com/zeusync/ecengine/internal/core/observability/log"
)

const managerLabel = "Client"

// Registrar registers business components and archetypes before the root
// entity is built.
type Registrar func(m *ec.EntityManager) error

type options struct {
	logger     log.Log
	events     bus.EventBus
	registrars []Registrar
	args       ec.Args
}

type Option func(*options)

func WithLogger(logger log.Log) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithEventBus(events bus.EventBus) Option {
	return func(o *options) { o.events = events }
}

func WithRegistrar(r Registrar) Option {
	return func(o *options) { o.registrars = append(o.registrars, r) }
}

// WithArgs adds construction arguments for the root entity. They override the
// defaults derived from Settings.
func WithArgs(args ec.Args) Option {
	return func(o *options) {
		if o.args == nil {
			o.args = ec.Args{}
		}
		maps.Copy(o.args, args)
	}
}

type Stats struct {
	Ticks        uint64
	Faults       uint64
	UpdateErrors uint64
	Entities     int
}

// Engine owns one entity manager and its root entity.
//
// Update and Close must be called from the goroutine that drives frames.
type Engine struct {
	settings Settings
	listener Listener
	logger   log.Log

	manager *ec.EntityManager
	root    *ec.Entity
	node    *node.Component
	socket  *supersocket.Component
	sdk     *ucenter.Component

	state        atomic.Int32
	ticks        atomic.Uint64
	faults       atomic.Uint64
	updateErrors atomic.Uint64
}

// New bootstraps the engine. On success the engine is Initialized and the
// listener has seen the root entity.
func New(settings Settings, listener Listener, opts ...Option) (*Engine, error) {
	o := options{logger: log.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	settings = settings.withDefaults()

	mgrOpts := []ec.Option{ec.WithLogger(o.logger)}
	if o.events != nil {
		mgrOpts = append(mgrOpts, ec.WithEventBus(o.events))
	}

	e := &Engine{
		settings: settings,
		listener: listener,
		logger:   o.logger.With(log.String("component", "engine"), log.String("project", settings.ProjectName)),
		manager:  ec.NewEntityManager(settings.EntityCapacity, managerLabel, mgrOpts...),
	}

	if err := e.bootstrap(o); err != nil {
		e.manager.Destroy()
		e.state.Store(int32(StateClosed))
		return nil, err
	}

	e.state.Store(int32(StateInitialized))
	e.logger.Info("engine initialized",
		log.String("root", e.root.String()),
		log.Bool("supersocket", e.socket != nil),
		log.Bool("ucenter", e.sdk != nil),
	)
	return e, nil
}

func (e *Engine) bootstrap(o options) error {
	if err := registerBuiltins(e.manager, e.settings); err != nil {
		return err
	}
	for _, r := range o.registrars {
		if err := r(e.manager); err != nil {
			return fmt.Errorf("registrar: %w", err)
		}
	}
	if err := e.manager.Validate(); err != nil {
		return fmt.Errorf("validate definitions: %w", err)
	}
	e.manager.Seal()

	args := e.rootArgs(o)
	root, err := e.manager.CreateEntity(e.settings.RootEntityType, nil, args)
	if err != nil {
		return fmt.Errorf("create root entity: %w", err)
	}
	e.root = root

	if n, ok := ec.GetComponent[*node.Component](root); ok {
		e.node = n
		e.socket = n.SuperSocket()
		e.sdk = n.UCenterSDK()
	}

	if e.listener != nil {
		if err = e.initListener(root); err != nil {
			return fmt.Errorf("listener init: %w", err)
		}
	}
	return nil
}

// initListener turns a panicking Init into an error so bootstrap cleanup runs.
func (e *Engine) initListener(root *ec.Entity) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("listener init panic",
				log.Any("panic", r),
				log.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()
	return e.listener.Init(e.manager, root)
}

func registerBuiltins(m *ec.EntityManager, s Settings) error {
	regs := []error{
		ec.RegisterComponent(m, CoAutoPatcher, autopatcher.New),
		ec.RegisterComponent(m, CoNode, node.New),
		ec.RegisterComponent(m, CoSuperSocket, supersocket.New),
		ec.RegisterComponent(m, CoUCenterSDK, ucenter.New),
		ec.RegisterComponent(m, CoScript, script.New),
	}
	for _, err := range regs {
		if err != nil {
			return err
		}
	}

	defs := map[string][]string{
		EtAutoPatcher: {CoAutoPatcher},
		EtNode:        s.nodeComponents(),
		EtSuperSocket: {CoSuperSocket},
		EtUCenterSDK:  {CoUCenterSDK},
		EtScript:      {CoScript},
	}
	for name, comps := range s.Definitions {
		if _, builtin := defs[name]; builtin {
			return fmt.Errorf("%w: %s", ec.ErrDuplicateDefinition, name)
		}
		defs[name] = comps
	}

	for _, name := range slices.Sorted(maps.Keys(defs)) {
		keys := make([]ec.ComponentKey, 0, len(defs[name]))
		for _, comp := range defs[name] {
			keys = append(keys, ec.ByName(comp))
		}
		if err := m.DefineEntity(name, keys...); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) rootArgs(o options) ec.Args {
	args := ec.Args{
		ec.ArgLogger:          o.logger,
		autopatcher.ArgConfig: e.settings.AutoPatcher,
		supersocket.ArgConfig: e.settings.SuperSocket,
		ucenter.ArgConfig:     e.settings.UCenter,
		script.ArgConfig:      e.settings.Script,
	}
	maps.Copy(args, o.args)
	return args
}

// Update advances one frame. Errors and panics raised by components are
// logged and counted; they never reach the caller.
func (e *Engine) Update(elapsed float64) {
	if e == nil {
		return
	}
	switch e.State() {
	case StateClosed, StateUninitialized:
		return
	case StateInitialized:
		e.state.CompareAndSwap(int32(StateInitialized), int32(StateRunning))
	}
	e.ticks.Add(1)

	defer func() {
		if r := recover(); r != nil {
			e.faults.Add(1)
			e.logger.Error("engine update panic",
				log.Any("panic", r),
				log.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := e.manager.Update(elapsed); err != nil {
		e.updateErrors.Add(1)
		e.logger.Error("engine update failed", log.Error(err))
	}
}

// Run drives Update every tick with the measured elapsed time until ctx is
// done. It does not close the engine.
func (e *Engine) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		return ErrInvalidTick
	}
	if e.State() == StateClosed {
		return ErrClosed
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if e.State() == StateClosed {
				return ErrClosed
			}
			e.Update(now.Sub(last).Seconds())
			last = now
		}
	}
}

// Close releases the listener and then destroys every entity. Closing a nil,
// uninitialized or already closed engine is a no-op.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	switch State(e.state.Swap(int32(StateClosed))) {
	case StateInitialized, StateRunning:
	default:
		return
	}
	if e.listener != nil {
		e.release()
	}
	e.manager.Destroy()
	e.logger.Info("engine closed",
		log.Uint64("ticks", e.ticks.Load()),
		log.Uint64("faults", e.faults.Load()),
	)
}

func (e *Engine) release() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("listener release panic",
				log.Any("panic", r),
				log.String("stack", string(debug.Stack())),
			)
		}
	}()
	e.listener.Release()
}

func (e *Engine) State() State                        { return State(e.state.Load()) }
func (e *Engine) Settings() Settings                  { return e.settings }
func (e *Engine) Manager() *ec.EntityManager          { return e.manager }
func (e *Engine) Root() *ec.Entity                    { return e.root }
func (e *Engine) Node() *node.Component               { return e.node }
func (e *Engine) SuperSocket() *supersocket.Component { return e.socket }
func (e *Engine) UCenterSDK() *ucenter.Component      { return e.sdk }

func (e *Engine) AutoPatcher() *autopatcher.Component {
	if e.node == nil {
		return nil
	}
	return e.node.AutoPatcher()
}

func (e *Engine) Stats() Stats {
	stats := Stats{
		Ticks:        e.ticks.Load(),
		Faults:       e.faults.Load(),
		UpdateErrors: e.updateErrors.Load(),
	}
	if e.manager != nil {
		stats.Entities = e.manager.Len()
	}
	return stats
}

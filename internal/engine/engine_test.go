package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/ecengine/internal/components/script"
	"github.com/zeusync/ecengine/internal/components/supersocket"
	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/events/bus"
	"github.com/zeusync/ecengine/internal/core/observability/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// bomb panics on update once armed.
type bomb struct {
	ec.Base
	armed bool
}

func (b *bomb) OnUpdate(float64) error {
	if b.armed {
		panic("kaboom")
	}
	return nil
}

// ticker counts updates and can be told to fail.
type ticker struct {
	ec.Base
	count int
	fail  bool
}

func (t *ticker) OnUpdate(float64) error {
	t.count++
	if t.fail {
		return errors.New("ticker failed")
	}
	return nil
}

func registerTestComponents(m *ec.EntityManager) error {
	if err := ec.RegisterComponent(m, "Bomb", func() *bomb { return &bomb{} }); err != nil {
		return err
	}
	if err := ec.RegisterComponent(m, "Ticker", func() *ticker { return &ticker{} }); err != nil {
		return err
	}
	if err := m.DefineEntity("EtBomb", ec.ByName("Bomb")); err != nil {
		return err
	}
	return m.DefineEntity("EtTicker", ec.ByName("Ticker"))
}

func observedLogger() (log.Log, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return log.FromZap(zap.New(core)), logs
}

func TestNewBuildsRootNode(t *testing.T) {
	var gotManager *ec.EntityManager
	var gotRoot *ec.Entity
	listener := ListenerFuncs{InitFunc: func(m *ec.EntityManager, root *ec.Entity) error {
		gotManager, gotRoot = m, root
		return nil
	}}

	eng, err := New(Settings{ProjectName: "demo"}, listener)
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, StateInitialized, eng.State())
	assert.Same(t, eng.Manager(), gotManager)
	assert.Same(t, eng.Root(), gotRoot)
	assert.Equal(t, EtNode, eng.Root().Archetype())
	assert.Equal(t, []string{CoAutoPatcher, CoNode}, eng.Root().ComponentNames())
	require.NotNil(t, eng.Node())
	assert.NotNil(t, eng.AutoPatcher())
	assert.Nil(t, eng.SuperSocket())
	assert.Nil(t, eng.UCenterSDK())

	assert.True(t, eng.Manager().Components().Sealed())
	assert.Equal(t, []string{EtAutoPatcher, EtNode, EtScript, EtSuperSocket, EtUCenterSDK},
		eng.Manager().Definitions().Names())
	assert.Equal(t, "demo", eng.Settings().ProjectName)
	assert.Equal(t, 64, eng.Settings().EntityCapacity)
}

func TestSettingsToggleNodeComponents(t *testing.T) {
	eng, err := New(Settings{
		EnableSuperSocket: true,
		EnableUCenter:     true,
		Script:            script.Config{Source: `loaded = true`},
	}, nil)
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, []string{CoAutoPatcher, CoNode, CoSuperSocket, CoUCenterSDK, CoScript}, eng.Root().ComponentNames())
	require.NotNil(t, eng.SuperSocket())
	require.NotNil(t, eng.UCenterSDK())
	assert.Same(t, ec.MustComponent[*supersocket.Component](eng.Root()), eng.SuperSocket())
	assert.Equal(t, true, ec.MustComponent[*script.Component](eng.Root()).Global("loaded"))
}

func TestSettingsConfigsReachComponents(t *testing.T) {
	eng, err := New(Settings{
		EnableSuperSocket: true,
		SuperSocket:       supersocket.Config{Address: "ws://example.invalid/ws", MaxMessagesPerTick: 7},
	}, nil)
	require.NoError(t, err)
	defer eng.Close()

	cfg := eng.SuperSocket().Config()
	assert.Equal(t, "ws://example.invalid/ws", cfg.Address)
	assert.Equal(t, 7, cfg.MaxMessagesPerTick)
	assert.Equal(t, supersocket.TransportWebSocket, cfg.Transport)
}

func TestDefinitionsFromSettings(t *testing.T) {
	eng, err := New(Settings{Definitions: map[string][]string{
		"EtPeer": {CoSuperSocket, CoScript},
	}}, nil)
	require.NoError(t, err)
	defer eng.Close()

	def, ok := eng.Manager().Definitions().Lookup("EtPeer")
	require.True(t, ok)
	assert.Len(t, def.Components, 2)

	_, err = New(Settings{Definitions: map[string][]string{"EtGhost": {"Nope"}}}, nil)
	assert.ErrorIs(t, err, ec.ErrUnknownComponent)

	_, err = New(Settings{Definitions: map[string][]string{EtNode: {CoNode}}}, nil)
	assert.ErrorIs(t, err, ec.ErrDuplicateDefinition)
}

func TestCustomRootEntityType(t *testing.T) {
	eng, err := New(Settings{RootEntityType: "EtTicker"}, nil, WithRegistrar(registerTestComponents))
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, "EtTicker", eng.Root().Archetype())
	assert.Nil(t, eng.Node())
	assert.Nil(t, eng.AutoPatcher())

	_, err = New(Settings{RootEntityType: "EtMissing"}, nil)
	assert.ErrorIs(t, err, ec.ErrUnknownArchetype)
}

func TestRootConstructionFailure(t *testing.T) {
	_, err := New(Settings{RootEntityType: EtScript}, nil)
	assert.ErrorIs(t, err, ec.ErrConstructionFailure)
	assert.ErrorIs(t, err, script.ErrNoScript)
}

func TestListenerInitFailureDestroysManager(t *testing.T) {
	var mgr *ec.EntityManager
	initErr := errors.New("business init failed")
	_, err := New(Settings{}, ListenerFuncs{InitFunc: func(m *ec.EntityManager, _ *ec.Entity) error {
		mgr = m
		return initErr
	}})

	assert.ErrorIs(t, err, initErr)
	require.NotNil(t, mgr)
	assert.True(t, mgr.Destroyed())
	assert.Zero(t, mgr.Len())
}

func TestRegistriesSealedAfterBootstrap(t *testing.T) {
	var regErr error
	eng, err := New(Settings{}, ListenerFuncs{InitFunc: func(m *ec.EntityManager, _ *ec.Entity) error {
		regErr = ec.RegisterComponent(m, "Late", func() *ticker { return &ticker{} })
		return nil
	}})
	require.NoError(t, err)
	defer eng.Close()
	assert.ErrorIs(t, regErr, ec.ErrRegistrySealed)
}

func TestUpdatePanicIsRecovered(t *testing.T) {
	logger, logs := observedLogger()
	var tick *ticker
	var b *bomb
	eng, err := New(Settings{}, ListenerFuncs{InitFunc: func(m *ec.EntityManager, root *ec.Entity) error {
		te, err := m.CreateEntity("EtTicker", root, nil)
		if err != nil {
			return err
		}
		be, err := m.CreateEntity("EtBomb", root, nil)
		if err != nil {
			return err
		}
		tick, b = ec.MustComponent[*ticker](te), ec.MustComponent[*bomb](be)
		return nil
	}}, WithLogger(logger), WithRegistrar(registerTestComponents))
	require.NoError(t, err)
	defer eng.Close()

	eng.Update(0.016)
	assert.Equal(t, StateRunning, eng.State())
	assert.Equal(t, 1, tick.count)

	b.armed = true
	assert.NotPanics(t, func() { eng.Update(0.016) })
	assert.NotPanics(t, func() { eng.Update(0.016) })

	stats := eng.Stats()
	assert.Equal(t, uint64(3), stats.Ticks)
	assert.Equal(t, uint64(2), stats.Faults)
	assert.Equal(t, 3, tick.count)
	assert.Equal(t, 2, logs.FilterMessage("engine update panic").Len())

	entry := logs.FilterMessage("engine update panic").All()[0]
	assert.Equal(t, "kaboom", entry.ContextMap()["panic"])
	assert.Contains(t, entry.ContextMap()["stack"], "runtime/debug.Stack")
}

func TestUpdateErrorsAreLoggedAndSweepContinues(t *testing.T) {
	logger, logs := observedLogger()
	var first, second *ticker
	eng, err := New(Settings{}, ListenerFuncs{InitFunc: func(m *ec.EntityManager, root *ec.Entity) error {
		a, err := m.CreateEntity("EtTicker", root, nil)
		if err != nil {
			return err
		}
		b, err := m.CreateEntity("EtTicker", root, nil)
		if err != nil {
			return err
		}
		first, second = ec.MustComponent[*ticker](a), ec.MustComponent[*ticker](b)
		return nil
	}}, WithLogger(logger), WithRegistrar(registerTestComponents))
	require.NoError(t, err)
	defer eng.Close()

	first.fail = true
	eng.Update(0.016)

	assert.Equal(t, 1, first.count)
	assert.Equal(t, 1, second.count)
	assert.Equal(t, uint64(1), eng.Stats().UpdateErrors)
	assert.Zero(t, eng.Stats().Faults)
	assert.Equal(t, 1, logs.FilterMessage("engine update failed").Len())
}

func TestCloseReleasesBeforeDestroy(t *testing.T) {
	var mgr *ec.EntityManager
	entitiesAtRelease := -1
	releases := 0
	eng, err := New(Settings{}, ListenerFuncs{
		InitFunc: func(m *ec.EntityManager, _ *ec.Entity) error {
			mgr = m
			return nil
		},
		ReleaseFunc: func() {
			releases++
			entitiesAtRelease = mgr.Len()
		},
	})
	require.NoError(t, err)

	eng.Close()
	assert.Equal(t, StateClosed, eng.State())
	assert.Equal(t, 1, entitiesAtRelease)
	assert.True(t, mgr.Destroyed())

	eng.Close()
	assert.Equal(t, 1, releases)

	eng.Update(0.016)
	assert.Zero(t, eng.Stats().Ticks)
}

func TestCloseBeforeInitializedIsNoop(t *testing.T) {
	var nilEngine *Engine
	assert.NotPanics(t, nilEngine.Close)
	assert.NotPanics(t, func() { nilEngine.Update(0.1) })

	zero := &Engine{}
	assert.NotPanics(t, zero.Close)
	assert.NotPanics(t, zero.Close)
	assert.Equal(t, StateClosed, zero.State())
	assert.NotPanics(t, func() { zero.Update(0.1) })
	assert.Zero(t, zero.Stats().Ticks)
}

func TestListenerInitPanicDestroysManager(t *testing.T) {
	logger, logs := observedLogger()
	var mgr *ec.EntityManager
	var eng *Engine
	var err error
	assert.NotPanics(t, func() {
		eng, err = New(Settings{}, ListenerFuncs{InitFunc: func(m *ec.EntityManager, _ *ec.Entity) error {
			mgr = m
			panic("init boom")
		}}, WithLogger(logger))
	})

	assert.Nil(t, eng)
	assert.ErrorIs(t, err, ErrListenerPanic)
	assert.Contains(t, err.Error(), "init boom")
	require.NotNil(t, mgr)
	assert.True(t, mgr.Destroyed())
	assert.Zero(t, mgr.Len())
	assert.Equal(t, 1, logs.FilterMessage("listener init panic").Len())
}

func TestReleasePanicStillDestroys(t *testing.T) {
	logger, logs := observedLogger()
	eng, err := New(Settings{}, ListenerFuncs{ReleaseFunc: func() { panic("release boom") }}, WithLogger(logger))
	require.NoError(t, err)

	assert.NotPanics(t, eng.Close)
	assert.True(t, eng.Manager().Destroyed())
	assert.Equal(t, 1, logs.FilterMessage("listener release panic").Len())
}

func TestLifecycleEventsReachCustomBus(t *testing.T) {
	events := bus.New()
	var created []string
	_, err := events.Subscribe(ec.EventEntityCreated, func(ev bus.Event) error {
		created = append(created, ev.Data().(*ec.Entity).Archetype())
		return nil
	})
	require.NoError(t, err)

	eng, err := New(Settings{}, nil, WithEventBus(events))
	require.NoError(t, err)
	defer eng.Close()
	assert.Equal(t, []string{EtNode}, created)
}

func TestRun(t *testing.T) {
	eng, err := New(Settings{}, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, eng.Run(context.Background(), 0), ErrInvalidTick)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, eng.Run(ctx, 5*time.Millisecond))
	assert.Positive(t, eng.Stats().Ticks)
	assert.Positive(t, eng.Node().Uptime())

	eng.Close()
	assert.ErrorIs(t, eng.Run(context.Background(), time.Millisecond), ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initialized", StateInitialized.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestWithArgsOverridesSettings(t *testing.T) {
	eng, err := New(Settings{Script: script.Config{Source: `origin = "settings"`}}, nil,
		WithArgs(ec.Args{script.ArgConfig: script.Config{Source: `origin = "args"`}}))
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, "args", ec.MustComponent[*script.Component](eng.Root()).Global("origin"))
}

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/ecengine/internal/config"
	"github.com/zeusync/ecengine/internal/core/events/bus"
	"github.com/zeusync/ecengine/internal/core/observability/log"
	"github.com/zeusync/ecengine/internal/engine"
)

// ConfigPath is the configuration file the runtime boots from.
type ConfigPath string

// Runtime is everything a host needs to drive the engine.
type Runtime struct {
	Config *config.Config
	Logger log.Log
	Engine *engine.Engine
}

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideEventBus,
	ProvideEngine,
	wire.Struct(new(Runtime), "*"),
)

func ProvideConfig(path ConfigPath) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(string(path))
}

func ProvideLogger(cfg *config.Config) (*log.Logger, func(), error) {
	logger, err := log.NewWithConfig(cfg.LoggerConfig())
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideEngine(cfg *config.Config, logger log.Log, events bus.EventBus, listener engine.Listener) (*engine.Engine, func(), error) {
	eng, err := engine.New(cfg.EngineSettings(), listener,
		engine.WithLogger(logger),
		engine.WithEventBus(events),
	)
	if err != nil {
		return nil, nil, err
	}
	return eng, eng.Close, nil
}

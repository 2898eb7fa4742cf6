package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"
	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/observability/log"
	"github.com/zeusync/ecengine/internal/engine"
	"github.com/zeusync/ecengine/internal/injector"
)

// host is the business listener of the standalone node.
type host struct {
	root   *ec.Entity
	logger log.Log
}

func (h *host) Init(_ *ec.EntityManager, root *ec.Entity) error {
	h.root = root
	return nil
}

func (h *host) Release() {
	if h.logger != nil {
		h.logger.Info("releasing host", log.String("root", h.root.String()))
	}
}

// start connects the network session, if one is configured.
func (h *host) start(eng *engine.Engine, logger log.Log) {
	h.logger = logger.With(log.String("component", "host"))
	h.logger.Info("root entity ready",
		log.String("root", h.root.String()),
		log.Any("components", h.root.ComponentNames()),
	)

	socket := eng.SuperSocket()
	if socket == nil || socket.Config().Address == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), socket.Config().DialTimeout)
	defer cancel()
	if err := socket.Connect(ctx); err != nil {
		h.logger.Warn("supersocket connect failed", log.Error(err))
	}
}

func main() {
	configPath := flag.String("config", "", "path to a .yaml or .toml config file")
	profileMode := flag.String("profile", "", "enable profiling: cpu or mem")
	profileDir := flag.String("profile-dir", ".", "directory for profile output")
	flag.Parse()

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*profileDir), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath(*profileDir), profile.NoShutdownHook).Stop()
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q\n", *profileMode)
		os.Exit(2)
	}

	h := &host{}
	rt, cleanup, err := injector.InitializeRuntime(injector.ConfigPath(*configPath), h)
	if err != nil {
		fmt.Println("Error starting engine:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h.start(rt.Engine, rt.Logger)

	tick := rt.Config.Engine.TickRate
	rt.Logger.Info("engine running", log.Duration("tick", tick))
	if err = rt.Engine.Run(ctx, tick); err != nil {
		rt.Logger.Error("engine run stopped", log.Error(err))
	}

	stats := rt.Engine.Stats()
	rt.Logger.Info("engine stopping",
		log.Uint64("ticks", stats.Ticks),
		log.Uint64("faults", stats.Faults),
		log.Uint64("update_errors", stats.UpdateErrors),
	)
}

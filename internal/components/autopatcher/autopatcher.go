// Package autopatcher verifies local files against a patch manifest. Checks
// run in the background; reports are delivered on the update thread.
package autopatcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/observability/log"
)

const ArgConfig = "autopatcher.config"

type CompleteHandler func(report Report, err error)

type checkResult struct {
	report  Report
	err     error
	elapsed time.Duration
}

type Component struct {
	ec.Base

	cfg    Config
	logger log.Log

	results  chan checkResult
	cancel   context.CancelFunc
	handlers []CompleteHandler
	last     *Report
	detached bool
}

func New() *Component {
	return &Component{cfg: DefaultConfig()}
}

func (c *Component) OnAttach(e *ec.Entity, args ec.Args) error {
	if cfg, ok := ec.Value[Config](args, ArgConfig); ok {
		c.cfg = cfg
	}
	if c.cfg.Workers <= 0 {
		c.cfg.Workers = DefaultConfig().Workers
	}
	if c.cfg.RootDir == "" && c.cfg.ManifestPath != "" {
		c.cfg.RootDir = filepath.Dir(c.cfg.ManifestPath)
	}
	c.logger = ec.LoggerFrom(args).With(
		log.String("component", "autopatcher"),
		log.Uint64("entity", uint64(e.ID())),
	)
	c.results = make(chan checkResult, 1)
	return nil
}

// OnComplete registers a handler for every finished check.
func (c *Component) OnComplete(h CompleteHandler) {
	c.handlers = append(c.handlers, h)
}

// Check starts a verification pass.
func (c *Component) Check() error {
	switch {
	case c.detached:
		return ErrDetached
	case c.cfg.ManifestPath == "":
		return ErrNoManifest
	case c.cancel != nil:
		return ErrCheckInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	cfg, results := c.cfg, c.results

	go func() {
		start := time.Now()
		res := checkResult{}
		m, err := LoadManifest(cfg.ManifestPath)
		if err == nil {
			res.report, err = Verify(ctx, cfg.RootDir, m, cfg.Workers)
		}
		res.err = err
		res.elapsed = time.Since(start)
		results <- res
	}()

	c.logger.Debug("patch check started", log.String("manifest", cfg.ManifestPath))
	return nil
}

func (c *Component) OnUpdate(float64) error {
	select {
	case res := <-c.results:
		c.complete(res)
	default:
	}
	return nil
}

func (c *Component) complete(res checkResult) {
	c.cancel()
	c.cancel = nil

	if res.err != nil {
		c.logger.Warn("patch check failed", log.Error(res.err))
	} else {
		report := res.report
		c.last = &report
		c.logger.Info("patch check finished",
			log.String("version", report.Version),
			log.Int("checked", report.Checked),
			log.Int("stale", len(report.Stale)),
			log.Int("missing", len(report.Missing)),
			log.Duration("elapsed", res.elapsed),
		)
	}
	for _, h := range c.handlers {
		h(res.report, res.err)
	}
}

// Checking reports whether a check is in flight.
func (c *Component) Checking() bool { return c.cancel != nil }

// LastReport returns the most recent successful report.
func (c *Component) LastReport() (Report, bool) {
	if c.last == nil {
		return Report{}, false
	}
	return *c.last, true
}

func (c *Component) Config() Config { return c.cfg }

func (c *Component) OnDetach() {
	c.detached = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.handlers = nil
}

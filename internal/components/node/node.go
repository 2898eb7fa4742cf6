// Package node implements the root component of the engine entity. It
// resolves the well-known sibling components once, at attach time.
package node

import (
	"fmt"
	"time"

	"github.com/zeusync/ecengine/internal/components/autopatcher"
	"github.com/zeusync/ecengine/internal/components/supersocket"
	"github.com/zeusync/ecengine/internal/components/ucenter"
	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/observability/log"
)

type Component struct {
	ec.Base

	logger log.Log

	patcher *autopatcher.Component
	socket  *supersocket.Component
	sdk     *ucenter.Component

	checkPending bool
	frames       uint64
	uptime       float64
}

func New() *Component {
	return &Component{}
}

func (c *Component) OnAttach(e *ec.Entity, args ec.Args) error {
	c.logger = ec.LoggerFrom(args).With(
		log.String("component", "node"),
		log.Uint64("entity", uint64(e.ID())),
	)

	// Siblings are optional; a missing one leaves its accessor nil.
	c.patcher, _ = ec.GetComponent[*autopatcher.Component](e)
	c.socket, _ = ec.GetComponent[*supersocket.Component](e)
	c.sdk, _ = ec.GetComponent[*ucenter.Component](e)

	// Siblings may attach after the node, so the check starts on the first frame.
	c.checkPending = c.patcher != nil

	c.logger.Debug("node attached",
		log.Bool("autopatcher", c.patcher != nil),
		log.Bool("supersocket", c.socket != nil),
		log.Bool("ucenter", c.sdk != nil),
	)
	return nil
}

func (c *Component) OnUpdate(dt float64) error {
	c.frames++
	c.uptime += dt

	if c.checkPending {
		c.checkPending = false
		if c.patcher.Config().CheckOnStart {
			if err := c.patcher.Check(); err != nil {
				return fmt.Errorf("start patch check: %w", err)
			}
		}
	}
	return nil
}

func (c *Component) OnDetach() {
	c.logger.Info("node detached", log.Uint64("frames", c.frames), log.Duration("uptime", c.Uptime()))
}

func (c *Component) AutoPatcher() *autopatcher.Component { return c.patcher }
func (c *Component) SuperSocket() *supersocket.Component { return c.socket }
func (c *Component) UCenterSDK() *ucenter.Component      { return c.sdk }

// Frames is the number of updates the node has received.
func (c *Component) Frames() uint64 { return c.frames }

// Uptime is the sum of elapsed time passed to OnUpdate.
func (c *Component) Uptime() time.Duration {
	return time.Duration(c.uptime * float64(time.Second))
}

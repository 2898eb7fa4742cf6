// Package supersocket implements the network session component. Frames read
// by a background goroutine are queued and handed to handlers on the update
// thread during OnUpdate, so game code never sees network goroutines.
package supersocket

import (
	"context"
	"fmt"

	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/observability/log"
)

const (
	// ArgConfig carries a Config through ec.Args.
	ArgConfig = "supersocket.config"
	// ArgDialer overrides the transport dialer, mostly for tests.
	ArgDialer = "supersocket.dialer"
)

type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

type (
	MessageHandler    func(data []byte)
	DisconnectHandler func(err error)
)

type Component struct {
	ec.Base

	cfg    Config
	dialer Dialer
	logger log.Log

	state   State
	conn    Conn
	inbound chan []byte
	readErr chan error
	stop    chan struct{}

	onMessage    []MessageHandler
	onDisconnect []DisconnectHandler

	received uint64
	sent     uint64
}

func New() *Component {
	return &Component{cfg: DefaultConfig()}
}

func (c *Component) OnAttach(e *ec.Entity, args ec.Args) error {
	if cfg, ok := ec.Value[Config](args, ArgConfig); ok {
		c.cfg = cfg
	}
	c.cfg = c.cfg.withDefaults()
	c.logger = ec.LoggerFrom(args).With(
		log.String("component", "supersocket"),
		log.Uint64("entity", uint64(e.ID())),
	)

	if d, ok := ec.Value[Dialer](args, ArgDialer); ok && d != nil {
		c.dialer = d
		return nil
	}
	d, err := NewDialer(c.cfg)
	if err != nil {
		return err
	}
	c.dialer = d
	return nil
}

// Connect dials the configured address and starts the reader goroutine.
func (c *Component) Connect(ctx context.Context) error {
	switch c.state {
	case StateConnected, StateConnecting:
		return ErrAlreadyConnected
	case StateClosed:
		return ErrClosed
	}
	if c.cfg.Address == "" {
		return ErrNoAddress
	}

	c.state = StateConnecting
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx, c.cfg.Address)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("dial %s over %s: %w", c.cfg.Address, c.cfg.Transport, err)
	}

	c.conn = conn
	c.inbound = make(chan []byte, c.cfg.InboundBuffer)
	c.readErr = make(chan error, 1)
	c.stop = make(chan struct{})
	c.state = StateConnected
	go readLoop(conn, c.inbound, c.readErr, c.stop)

	c.logger.Info("session connected",
		log.String("address", c.cfg.Address),
		log.String("transport", c.cfg.Transport),
	)
	return nil
}

func readLoop(conn Conn, inbound chan<- []byte, readErr chan<- error, stop <-chan struct{}) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case inbound <- data:
		case <-stop:
			return
		}
	}
}

// OnUpdate delivers up to MaxMessagesPerTick queued frames, then reports a
// lost connection once the queue has drained.
func (c *Component) OnUpdate(float64) error {
	if c.state != StateConnected {
		return nil
	}
	for n := 0; n < c.cfg.MaxMessagesPerTick; n++ {
		select {
		case data := <-c.inbound:
			c.deliver(data)
			if c.state != StateConnected {
				return nil
			}
			continue
		default:
		}

		select {
		case err := <-c.readErr:
			// the reader queued everything it read before reporting
			c.drainInbound()
			c.dropConnection(err)
		default:
		}
		return nil
	}
	return nil
}

func (c *Component) deliver(data []byte) {
	c.received++
	for _, h := range c.onMessage {
		h(data)
	}
}

func (c *Component) drainInbound() {
	for {
		select {
		case data := <-c.inbound:
			c.deliver(data)
		default:
			return
		}
	}
}

func (c *Component) dropConnection(err error) {
	c.teardown()
	c.state = StateDisconnected
	c.logger.Warn("session lost", log.Error(err))
	for _, h := range c.onDisconnect {
		h(err)
	}
}

func (c *Component) teardown() error {
	if c.conn == nil {
		return nil
	}
	close(c.stop)
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Send writes one frame. It must be called from the update thread.
func (c *Component) Send(data []byte) error {
	if c.state != StateConnected {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	c.sent++
	return nil
}

// Disconnect closes the connection; Connect may be called again afterwards.
// Frames still queued are dropped.
func (c *Component) Disconnect() error {
	if c.state != StateConnected {
		return nil
	}
	err := c.teardown()
	c.state = StateDisconnected
	c.logger.Info("session disconnected")
	return err
}

func (c *Component) OnDetach() {
	if err := c.Disconnect(); err != nil {
		c.logger.Warn("session close failed", log.Error(err))
	}
	c.state = StateClosed
}

func (c *Component) OnMessage(h MessageHandler)       { c.onMessage = append(c.onMessage, h) }
func (c *Component) OnDisconnect(h DisconnectHandler) { c.onDisconnect = append(c.onDisconnect, h) }

func (c *Component) State() State     { return c.state }
func (c *Component) Config() Config   { return c.cfg }
func (c *Component) Received() uint64 { return c.received }
func (c *Component) Sent() uint64     { return c.sent }

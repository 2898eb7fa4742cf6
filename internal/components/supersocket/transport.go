package supersocket

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/quic-go/quic-go"
)

// Conn is a message-oriented connection. ReadMessage is called from a single
// reader goroutine; WriteMessage and Close from the update thread.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens a Conn to address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// NewDialer returns the dialer for cfg.Transport.
func NewDialer(cfg Config) (Dialer, error) {
	cfg = cfg.withDefaults()
	switch cfg.Transport {
	case TransportWebSocket, "ws":
		return &wsDialer{
			dialer: &websocket.Dialer{
				HandshakeTimeout: cfg.DialTimeout,
				ReadBufferSize:   4096,
				WriteBufferSize:  4096,
			},
			maxFrame: int64(cfg.MaxFrameSize),
		}, nil
	case TransportQUIC:
		return &quicDialer{
			tlsConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify,
				NextProtos:         []string{cfg.ALPN},
			},
			quicConfig: &quic.Config{
				KeepAlivePeriod: cfg.KeepAlive,
				MaxIdleTimeout:  4 * cfg.KeepAlive,
			},
			maxFrame: cfg.MaxFrameSize,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}

type wsDialer struct {
	dialer   *websocket.Dialer
	maxFrame int64
}

func (d *wsDialer) Dial(ctx context.Context, address string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(d.maxFrame)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() error {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

type quicDialer struct {
	tlsConfig  *tls.Config
	quicConfig *quic.Config
	maxFrame   int
}

func (d *quicDialer) Dial(ctx context.Context, address string) (Conn, error) {
	conn, err := quic.DialAddr(ctx, address, d.tlsConfig, d.quicConfig)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &framedConn{
		rw:       stream,
		maxFrame: d.maxFrame,
		closeFn: func() error {
			_ = stream.Close()
			return conn.CloseWithError(0, "session closed")
		},
	}, nil
}

// framedConn carries messages over a byte stream as 4-byte big-endian
// length-prefixed frames.
type framedConn struct {
	rw       io.ReadWriter
	maxFrame int
	closeFn  func() error
}

func (c *framedConn) ReadMessage() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(c.rw, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if c.maxFrame > 0 && int(size) > c.maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(c.rw, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *framedConn) WriteMessage(data []byte) error {
	if c.maxFrame > 0 && len(data) > c.maxFrame {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	_, err := c.rw.Write(frame)
	return err
}

func (c *framedConn) Close() error {
	if c.closeFn == nil {
		return nil
	}
	return c.closeFn()
}

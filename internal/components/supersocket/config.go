package supersocket

import "time"

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

// Config describes how the session reaches its server.
type Config struct {
	Transport          string        `yaml:"transport" toml:"transport"`
	Address            string        `yaml:"address" toml:"address"`
	DialTimeout        time.Duration `yaml:"dial_timeout" toml:"dial_timeout"`
	InboundBuffer      int           `yaml:"inbound_buffer" toml:"inbound_buffer"`
	MaxMessagesPerTick int           `yaml:"max_messages_per_tick" toml:"max_messages_per_tick"`
	MaxFrameSize       int           `yaml:"max_frame_size" toml:"max_frame_size"`
	KeepAlive          time.Duration `yaml:"keep_alive" toml:"keep_alive"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
	ALPN               string        `yaml:"alpn" toml:"alpn"`
}

func DefaultConfig() Config {
	return Config{
		Transport:          TransportWebSocket,
		DialTimeout:        10 * time.Second,
		InboundBuffer:      256,
		MaxMessagesPerTick: 64,
		MaxFrameSize:       1 << 20, // 1MB
		KeepAlive:          15 * time.Second,
		ALPN:               "ecengine-supersocket",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Transport == "" {
		c.Transport = d.Transport
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.InboundBuffer <= 0 {
		c.InboundBuffer = d.InboundBuffer
	}
	if c.MaxMessagesPerTick <= 0 {
		c.MaxMessagesPerTick = d.MaxMessagesPerTick
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = d.KeepAlive
	}
	if c.ALPN == "" {
		c.ALPN = d.ALPN
	}
	return c
}

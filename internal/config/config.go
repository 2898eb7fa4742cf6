// Package config loads engine configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/zeusync/ecengine/internal/components/autopatcher"
	"github.com/zeusync/ecengine/internal/components/script"
	"github.com/zeusync/ecengine/internal/components/supersocket"
	"github.com/zeusync/ecengine/internal/components/ucenter"
	"github.com/zeusync/ecengine/internal/core/observability/log"
	"github.com/zeusync/ecengine/internal/engine"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported file format")
	ErrInvalidConfig     = errors.New("config: invalid configuration")
)

type Config struct {
	Engine      EngineConfig        `yaml:"engine" toml:"engine"`
	Logging     LoggingConfig       `yaml:"logging" toml:"logging"`
	SuperSocket supersocket.Config  `yaml:"supersocket" toml:"supersocket"`
	UCenter     ucenter.Config      `yaml:"ucenter" toml:"ucenter"`
	AutoPatcher autopatcher.Config  `yaml:"autopatcher" toml:"autopatcher"`
	Script      script.Config       `yaml:"script" toml:"script"`
	Definitions map[string][]string `yaml:"definitions" toml:"definitions"`
}

type EngineConfig struct {
	ProjectName       string        `yaml:"project_name" toml:"project_name"`
	RootEntityType    string        `yaml:"root_entity_type" toml:"root_entity_type"`
	EntityCapacity    int           `yaml:"entity_capacity" toml:"entity_capacity"`
	TickRate          time.Duration `yaml:"tick_rate" toml:"tick_rate"`
	EnableSuperSocket bool          `yaml:"enable_supersocket" toml:"enable_supersocket"`
	EnableUCenter     bool          `yaml:"enable_ucenter" toml:"enable_ucenter"`
}

type LoggingConfig struct {
	Level       string   `yaml:"level" toml:"level"`
	Format      string   `yaml:"format" toml:"format"` // "json" or "console"
	OutputPaths []string `yaml:"output_paths" toml:"output_paths"`
}

func Default() *Config {
	s := engine.DefaultSettings()
	return &Config{
		Engine: EngineConfig{
			ProjectName:    s.ProjectName,
			RootEntityType: s.RootEntityType,
			EntityCapacity: s.EntityCapacity,
			TickRate:       33 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		SuperSocket: s.SuperSocket,
		UCenter:     s.UCenter,
		AutoPatcher: s.AutoPatcher,
	}
}

// Load reads path over Default and validates the result. The format follows
// the file extension: .yaml, .yml or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the given format ("yaml", "yml" or "toml").
func Parse(data []byte, format string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Engine.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: engine.tick_rate must be positive", ErrInvalidConfig))
	}
	if c.Engine.EntityCapacity < 0 {
		errs = append(errs, fmt.Errorf("%w: engine.entity_capacity must not be negative", ErrInvalidConfig))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown logging.level %q", ErrInvalidConfig, c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown logging.format %q", ErrInvalidConfig, c.Logging.Format))
	}
	if c.Engine.EnableSuperSocket {
		switch c.SuperSocket.Transport {
		case "", supersocket.TransportWebSocket, "ws", supersocket.TransportQUIC:
		default:
			errs = append(errs, fmt.Errorf("%w: unknown supersocket.transport %q", ErrInvalidConfig, c.SuperSocket.Transport))
		}
	}
	for name, comps := range c.Definitions {
		if len(comps) == 0 {
			errs = append(errs, fmt.Errorf("%w: definition %q has no components", ErrInvalidConfig, name))
		}
	}
	return errors.Join(errs...)
}

// EngineSettings converts the file layout into engine settings.
func (c *Config) EngineSettings() engine.Settings {
	return engine.Settings{
		ProjectName:       c.Engine.ProjectName,
		RootEntityType:    c.Engine.RootEntityType,
		EntityCapacity:    c.Engine.EntityCapacity,
		EnableSuperSocket: c.Engine.EnableSuperSocket,
		EnableUCenter:     c.Engine.EnableUCenter,
		SuperSocket:       c.SuperSocket,
		UCenter:           c.UCenter,
		AutoPatcher:       c.AutoPatcher,
		Script:            c.Script,
		Definitions:       c.Definitions,
	}
}

func (c *Config) LoggerConfig() log.Config {
	return log.Config{
		Level:       log.ParseLevel(c.Logging.Level),
		Encoding:    c.Logging.Format,
		OutputPaths: c.Logging.OutputPaths,
	}
}

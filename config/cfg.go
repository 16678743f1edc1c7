package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"resimages/resimg"
)

type (
	ViewportConfig struct {
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
		Type   string `yaml:"type,omitempty"`
		Scheme string `yaml:"scheme,omitempty"`
	}

	ServerConfig struct {
		Addr       string        `yaml:"addr"`
		SitesDir   string        `yaml:"sites_dir"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		MaxBodyKB  int           `yaml:"max_body_kb"`
	}

	Config struct {
		Version  int            `yaml:"version"`
		Selector string         `yaml:"selector"`
		Images   resimg.Options `yaml:"images"`
		// Viewport is assumed when a request or command does not describe one.
		Viewport ViewportConfig `yaml:"viewport"`
		Server   ServerConfig   `yaml:"server"`
		Logging  LoggingConfig  `yaml:"logging"`
	}
)

// Default returns the built-in configuration every file is superimposed on.
func Default() *Config {
	return &Config{
		Version:  1,
		Selector: resimg.DefaultSelector,
		Images: resimg.Options{
			Attribute: resimg.DefaultAttribute,
			Layouts:   resimg.DefaultLayouts(),
			Fluid:     resimg.FluidOptions{Edge: resimg.DefaultFluidEdge},
		},
		Viewport: ViewportConfig{Width: 1024, Height: 768},
		Server: ServerConfig{
			Addr:       ":8081",
			SitesDir:   "config/sites",
			SessionTTL: 30 * time.Minute,
			MaxBodyKB:  2048,
		},
		Logging: LoggingConfig{
			ConsoleLogger: LoggerConfig{Level: "normal"},
			FileLogger:    LoggerConfig{Level: "none"},
		},
	}
}

func unmarshalConfig(data []byte, cfg *Config) (*Config, error) {
	// only fields we defined are accepted
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration file at path on top of Default.
// An empty path returns the defaults.
func LoadConfiguration(path string) (*Config, error) {
	cfg := Default()
	if len(path) == 0 {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return unmarshalConfig(data, cfg)
}

// Validate checks values the decoder cannot.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported configuration version %d", c.Version)
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("invalid default viewport %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	if _, err := resimg.NewSettings(c.Images); err != nil {
		return fmt.Errorf("invalid images configuration: %w", err)
	}
	for _, lc := range []LoggerConfig{c.Logging.ConsoleLogger, c.Logging.FileLogger} {
		switch lc.Level {
		case "", "none", "normal", "debug":
		default:
			return fmt.Errorf("invalid logging level %q", lc.Level)
		}
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("invalid session ttl %s", c.Server.SessionTTL)
	}
	return nil
}

// ApplyEnv lets the environment override server settings.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("RESIMAGES_ADDR")); v != "" {
		c.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Server.Addr = ":" + v
	}
	if v := strings.TrimSpace(os.Getenv("RESIMAGES_SITES_DIR")); v != "" {
		c.Server.SitesDir = v
	}
}

// Settings builds the resolver settings for the configured images section.
func (c *Config) Settings() (*resimg.Settings, error) {
	return resimg.NewSettings(c.Images)
}

// DefaultViewport converts the configured viewport.
func (c *Config) DefaultViewport() resimg.Viewport {
	return resimg.Viewport{
		Width:  c.Viewport.Width,
		Height: c.Viewport.Height,
		Type:   c.Viewport.Type,
		Scheme: c.Viewport.Scheme,
	}
}

// Dump returns the configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("unable to encode configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("unable to encode configuration: %w", err)
	}
	return buf.Bytes(), nil
}

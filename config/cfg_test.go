package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resimages/resimg"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if len(cfg.Images.Layouts) != 3 {
		t.Errorf("expected default layouts, got %d", len(cfg.Images.Layouts))
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	path := writeConfig(t, `version: 1
selector: img.responsive
images:
  attribute: data-original
  layout:
    - name: phone
      media: "(max-width: 479px)"
      width: 480
    - name: any
      media: all
      width: -1
  fluid:
    mode: true
viewport:
  width: 390
  height: 844
server:
  addr: ":9090"
  session_ttl: 5m
logging:
  console:
    level: debug
`)
	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Selector != "img.responsive" {
		t.Errorf("Selector = %q", cfg.Selector)
	}
	if cfg.Images.Attribute != "data-original" {
		t.Errorf("Attribute = %q", cfg.Images.Attribute)
	}
	if len(cfg.Images.Layouts) != 2 || cfg.Images.Layouts[1].Width != resimg.Original {
		t.Errorf("unexpected layouts %+v", cfg.Images.Layouts)
	}
	if !cfg.Images.Fluid.Mode || cfg.Images.Fluid.Edge != resimg.DefaultFluidEdge {
		t.Errorf("fluid = %+v, want mode with default edge kept", cfg.Images.Fluid)
	}
	if cfg.Viewport.Width != 390 || cfg.Server.Addr != ":9090" || cfg.Server.SessionTTL != 5*time.Minute {
		t.Errorf("unexpected viewport/server %+v %+v", cfg.Viewport, cfg.Server)
	}
	// untouched sections keep defaults
	if cfg.Server.MaxBodyKB != 2048 {
		t.Errorf("MaxBodyKB = %d, want default", cfg.Server.MaxBodyKB)
	}
	s, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if s.Layouts[0].Name != "PHONE" {
		t.Errorf("layout name = %q, want PHONE", s.Layouts[0].Name)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "version: 1\nbogus: true\n", "failed to decode"},
		{"version", "version: 2\n", "version"},
		{"viewport", "version: 1\nviewport:\n  width: 0\n", "viewport"},
		{"duplicate layout", "version: 1\nimages:\n  layout:\n    - {name: a, media: all, width: 1}\n    - {name: A, media: all, width: 2}\n", "duplicate"},
		{"log level", "version: 1\nlogging:\n  console:\n    level: loud\n", "logging level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfiguration(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("LoadConfiguration() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfiguration_MissingFile(t *testing.T) {
	if _, err := LoadConfiguration(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDumpRoundTrip(t *testing.T) {
	data, err := Dump(Default())
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	cfg, err := LoadConfiguration(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("reloading dumped configuration: %v", err)
	}
	if cfg.Server.SessionTTL != 30*time.Minute || len(cfg.Images.Layouts) != 3 {
		t.Fatalf("dumped configuration lost values: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RESIMAGES_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "")
	t.Setenv("RESIMAGES_SITES_DIR", "/etc/resimages/sites")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Server.Addr != "127.0.0.1:7000" || cfg.Server.SitesDir != "/etc/resimages/sites" {
		t.Fatalf("ApplyEnv() = %+v", cfg.Server)
	}
	t.Setenv("PORT", "8099")
	cfg.ApplyEnv()
	if cfg.Server.Addr != ":8099" {
		t.Fatalf("PORT override = %q", cfg.Server.Addr)
	}
}

func TestLoggingPrepare(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "resimages.log")
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "debug", Destination: dest},
	}
	log, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Debug("hello from test")
	_ = log.Sync()
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("log file missing entry: %q", data)
	}

	conf.FileLogger.Destination = ""
	if _, err := conf.Prepare(); err == nil {
		t.Fatal("expected error for file logger without destination")
	}
}

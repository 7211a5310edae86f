package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTmpConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write tmp config: %v", err)
	}
	return p
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `
server:
  network:
    listen: "0.0.0.0:7777"
  world:
    map: "maps/airport"
    game_name: "Airport DM"
  log:
    level: "debug"
    format: "json"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network.Listen != "0.0.0.0:7777" {
		t.Errorf("Network.Listen = %q, want 0.0.0.0:7777", cfg.Network.Listen)
	}
	if cfg.World.Map != "maps/airport" {
		t.Errorf("World.Map = %q, want maps/airport", cfg.World.Map)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeTmpConfig(t, `server: {}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network.Listen != ":7777" {
		t.Errorf("expected default listen address, got %q", cfg.Network.Listen)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("expected default log format text, got %q", cfg.Log.Format)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	_, err := Load(writeTmpConfig(t, `
server:
  log:
    level: "verbose"
`))
	if err == nil {
		t.Fatalf("expected validation error for invalid log level")
	}
}

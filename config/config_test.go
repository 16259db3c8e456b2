package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "middleman.yaml")
	content := `
port: 8080
patterns_dir: /srv/patterns
tick: 2s
max_ticks: 30
browser:
  remote: ws://chrome:9222
  headless: false
  block_types: [image]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.PatternsDir != "/srv/patterns" {
		t.Errorf("PatternsDir = %q", cfg.PatternsDir)
	}
	if cfg.Tick != 2*time.Second {
		t.Errorf("Tick = %v", cfg.Tick)
	}
	if cfg.MaxTicks != 30 {
		t.Errorf("MaxTicks = %d", cfg.MaxTicks)
	}
	if cfg.Browser.Remote != "ws://chrome:9222" {
		t.Errorf("Remote = %q", cfg.Browser.Remote)
	}
	if cfg.Browser.HeadlessOrDefault() {
		t.Error("explicit headless: false was ignored")
	}
	if len(cfg.Browser.BlockTypes) != 1 || cfg.Browser.BlockTypes[0] != "image" {
		t.Errorf("BlockTypes = %v", cfg.Browser.BlockTypes)
	}
	// Unset fields still get defaults.
	if cfg.DenylistPath != "denylist.txt" {
		t.Errorf("DenylistPath = %q", cfg.DenylistPath)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
}

func TestLoadFile_MissingIsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.Port != def.Port || cfg.Tick != def.Tick || cfg.MaxTicks != def.MaxTicks {
		t.Errorf("got %+v, want defaults %+v", cfg, def)
	}
	if !cfg.Browser.HeadlessOrDefault() {
		t.Error("headless must default to true")
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

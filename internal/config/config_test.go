package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempora", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:7433" || cfg.HorizonDays != 14 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config perms = %o, want 600", perm)
	}
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: 0.0.0.0:9000\ntimezone: Europe/Berlin\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
	if cfg.SolidifyCron == "" || cfg.HorizonDays <= 0 || cfg.DBPath == "" {
		t.Fatalf("missing fields not normalized: %+v", cfg)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Fatalf("location = %v", loc)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLocationRejectsUnknownZone(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	if _, err := cfg.Location(); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

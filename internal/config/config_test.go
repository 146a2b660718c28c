package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DBFile != "simulations.json" {
		t.Errorf("expected db file simulations.json, got %s", cfg.DBFile)
	}
	if cfg.ListLimit <= 0 {
		t.Error("list limit should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odeviz.yaml")

	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/odeviz"
	cfg.Log.Level = "debug"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.DataDir != "/var/lib/odeviz" {
		t.Errorf("expected data dir /var/lib/odeviz, got %s", loaded.DataDir)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", loaded.Log.Level)
	}
	if loaded.RecentLimit != DefaultRecentLimit {
		t.Errorf("expected recent limit %d, got %d", DefaultRecentLimit, loaded.RecentLimit)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBFile = ""
	cfg.Defaults.TMax = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()

	got := cfg.DBPath("/opt/app")
	if got != filepath.Join("/opt/app", "data", "simulations.json") {
		t.Errorf("unexpected relative path %s", got)
	}

	cfg.DataDir = "/srv/sims"
	got = cfg.DBPath("/opt/app")
	if got != filepath.Join("/srv/sims", "simulations.json") {
		t.Errorf("unexpected absolute path %s", got)
	}
}

func TestGetPreset(t *testing.T) {
	p := GetPreset("damped", "light")
	if p == nil {
		t.Fatal("expected preset, got nil")
	}
	if p.Params["beta"] != 0.05 {
		t.Errorf("expected beta 0.05, got %f", p.Params["beta"])
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if GetPreset("damped", "nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if GetPreset("nonexistent", "light") != nil {
		t.Error("expected nil for nonexistent type")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("damped")
	if len(presets) != 3 || presets[0] != "critical" {
		t.Errorf("expected sorted damped presets, got %v", presets)
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent type")
	}
}

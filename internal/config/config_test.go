package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != "hvcs" || cfg.Node != "hvcs" || cfg.Bus != "vio" {
		t.Errorf("defaults = %s/%s/%s", cfg.Driver, cfg.Node, cfg.Bus)
	}
	if cfg.Systool != "systool" {
		t.Errorf("systool = %q", cfg.Systool)
	}
	if cfg.DevDir != "/dev" {
		t.Errorf("dev dir = %q", cfg.DevDir)
	}
	if cfg.Snapshot.Dir != "/tmp/ibmsupt" || cfg.Snapshot.Output != "snap.tar.gz" {
		t.Errorf("snapshot = %+v", cfg.Snapshot)
	}
	if !cfg.CheckPlatform() {
		t.Error("platform check should default to on")
	}
}

func TestLoadFileWithBackfill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `driver: hvcs2
node: hvcs2
platform_check: false
snapshot:
  dir: /var/tmp/supt
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != "hvcs2" || cfg.Node != "hvcs2" {
		t.Errorf("driver/node = %s/%s", cfg.Driver, cfg.Node)
	}
	// Unset keys fall back to defaults.
	if cfg.Bus != "vio" || cfg.Systool != "systool" {
		t.Errorf("bus/systool = %s/%s", cfg.Bus, cfg.Systool)
	}
	if cfg.Snapshot.Dir != "/var/tmp/supt" {
		t.Errorf("snapshot dir = %q", cfg.Snapshot.Dir)
	}
	if cfg.Snapshot.Output != "snap.tar.gz" {
		t.Errorf("snapshot output = %q", cfg.Snapshot.Output)
	}
	if cfg.CheckPlatform() {
		t.Error("platform check should be off")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("driver: [unclosed"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestDecoderEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RTAS_EVENT_DECODE", "/opt/decode")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Decoder != "/opt/decode" {
		t.Errorf("decoder = %q, want env override", cfg.Decoder)
	}
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for unreadable explicit config path")
	}
}

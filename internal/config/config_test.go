package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Discovery.Group != "239.0.0.1" || cfg.Discovery.Port != 50000 {
		t.Fatalf("unexpected multicast defaults: %+v", cfg.Discovery)
	}
	if cfg.Discovery.HelloPeriod != 2*time.Second {
		t.Fatalf("HelloPeriod = %v, want 2s", cfg.Discovery.HelloPeriod)
	}
	if cfg.Discovery.GossipStaleness != 15*time.Second {
		t.Fatalf("GossipStaleness = %v, want 15s", cfg.Discovery.GossipStaleness)
	}
	if cfg.Discovery.CleanerThreshold != 60*time.Second {
		t.Fatalf("CleanerThreshold = %v, want 60s", cfg.Discovery.CleanerThreshold)
	}
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discovery.Port != 50000 {
		t.Fatalf("expected default port, got %d", cfg.Discovery.Port)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peer.toml")
	content := `
[discovery]
gossip_enabled = false

[ui]
mode = "termbox"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discovery.GossipEnabled {
		t.Fatal("gossip_enabled should have been overridden to false")
	}
	if cfg.UI.Mode != "termbox" {
		t.Fatalf("UI.Mode = %q, want termbox", cfg.UI.Mode)
	}
	// untouched fields keep their defaults
	if cfg.Discovery.Port != 50000 {
		t.Fatalf("Port = %d, want unchanged default 50000", cfg.Discovery.Port)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error decoding a malformed config file")
	}
}

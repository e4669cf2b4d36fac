package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Address() != "0.0.0.0:34551" {
		t.Errorf("default address = %q", c.Address())
	}
	if c.Metrics.Enabled {
		t.Error("metrics should default to disabled")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "room.ini")
	body := "[Server]\nIP = 127.0.0.1\nPort = 9001\nBacklog = 16\n\n[Metrics]\nEnabled = true\nListenAddress = 127.0.0.1:9100\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Address() != "127.0.0.1:9001" {
		t.Errorf("address = %q", c.Address())
	}
	if c.Server.Backlog != 16 {
		t.Errorf("backlog = %d, want 16", c.Server.Backlog)
	}
	if !c.Metrics.Enabled || c.Metrics.ListenAddress != "127.0.0.1:9100" {
		t.Errorf("metrics = %+v", c.Metrics)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.ini")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadConfigBadPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "room.ini")
	os.WriteFile(path, []byte("[Server]\nPort = not-a-number\n"), 0o644)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}

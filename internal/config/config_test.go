package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8090" {
		t.Errorf("unexpected addr: %q", cfg.Server.Addr)
	}
	if cfg.Server.RequestTTL.Std() != 30*time.Second {
		t.Errorf("unexpected request ttl: %v", cfg.Server.RequestTTL.Std())
	}
	if cfg.Node.CoordinatorURL != "ws://localhost:8090/ws" {
		t.Errorf("unexpected coordinator url: %q", cfg.Node.CoordinatorURL)
	}
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9000"
  request_ttl: 45s
  heartbeat_timeout: 120
node:
  device_name: "test-box"
  stun_servers:
    - stun:stun.example.com:3478
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("unexpected addr: %q", cfg.Server.Addr)
	}
	if cfg.Server.RequestTTL.Std() != 45*time.Second {
		t.Errorf("duration string not parsed: %v", cfg.Server.RequestTTL.Std())
	}
	if cfg.Server.HeartbeatTimeout.Std() != 120*time.Second {
		t.Errorf("bare seconds not parsed: %v", cfg.Server.HeartbeatTimeout.Std())
	}
	// Fields absent from the file keep their defaults.
	if cfg.Server.SignalingTTL.Std() != 60*time.Second {
		t.Errorf("default signaling ttl lost: %v", cfg.Server.SignalingTTL.Std())
	}
	if cfg.Node.DeviceName != "test-box" {
		t.Errorf("unexpected device name: %q", cfg.Node.DeviceName)
	}
	if len(cfg.Node.STUNServers) != 1 || cfg.Node.STUNServers[0] != "stun:stun.example.com:3478" {
		t.Errorf("unexpected stun servers: %v", cfg.Node.STUNServers)
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  request_ttl: \"soon\"\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for an unparseable duration")
	}
}

package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("MPCAT_DEVICE", "tcp:10.0.0.5:23")
	t.Setenv("MPCAT_BAUD", "9600")
	t.Setenv("MPCAT_PASSWORD", "hunter2")
	t.Setenv("MPCAT_TIMEOUT", "30")
	t.Setenv("MPCAT_CHUNK_SIZE", "512")
	t.Setenv("MPCAT_NO_RETRY", "true")
	t.Setenv("MPCAT_VERBOSE", "2")

	cfg := &Config{Device: "/dev/ttyACM0", Baud: DefaultBaudRate}
	LoadFromEnv(cfg)

	if cfg.Device != "tcp:10.0.0.5:23" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.Baud != 9600 {
		t.Errorf("Baud = %d", cfg.Baud)
	}
	if cfg.Password != "hunter2" {
		t.Errorf("Password = %q", cfg.Password)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.ChunkSize != 512 {
		t.Errorf("ChunkSize = %d", cfg.ChunkSize)
	}
	if !cfg.NoRetry {
		t.Error("NoRetry not set")
	}
	if cfg.Verbose != 2 {
		t.Errorf("Verbose = %d", cfg.Verbose)
	}
}

func TestLoadFromEnv_EmptyKeepsDefaults(t *testing.T) {
	t.Setenv("MPCAT_DEVICE", "")
	t.Setenv("MPCAT_BAUD", "")

	cfg := &Config{Device: "/dev/ttyACM0", Baud: DefaultBaudRate}
	LoadFromEnv(cfg)

	if cfg.Device != "/dev/ttyACM0" {
		t.Errorf("Device = %q, want default kept", cfg.Device)
	}
	if cfg.Baud != DefaultBaudRate {
		t.Errorf("Baud = %d, want default kept", cfg.Baud)
	}
}

func TestLoadFromEnv_BadNumbersIgnored(t *testing.T) {
	t.Setenv("MPCAT_BAUD", "fast")
	t.Setenv("MPCAT_CHUNK_SIZE", "-8")

	cfg := &Config{Baud: DefaultBaudRate, ChunkSize: DefaultHexChunkSize}
	LoadFromEnv(cfg)

	if cfg.Baud != DefaultBaudRate {
		t.Errorf("Baud = %d, want default kept", cfg.Baud)
	}
	if cfg.ChunkSize != DefaultHexChunkSize {
		t.Errorf("ChunkSize = %d, want default kept", cfg.ChunkSize)
	}
}

func TestLoadFromEnv_Tunnel(t *testing.T) {
	t.Setenv("MPCAT_TUNNEL", "admin@bastion:2222")
	t.Setenv("MPCAT_SSH_KEY", "/home/u/.ssh/id_ed25519")
	t.Setenv("MPCAT_SSH_AGENT", "yes")
	t.Setenv("MPCAT_STRICT_HOSTKEY", "1")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.TunnelSpec != "admin@bastion:2222" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.SSHKeyPath != "/home/u/.ssh/id_ed25519" {
		t.Errorf("SSHKeyPath = %q", cfg.SSHKeyPath)
	}
	if !cfg.UseSSHAgent {
		t.Error("UseSSHAgent not set")
	}
	if !cfg.StrictHostKey {
		t.Error("StrictHostKey not set")
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"0", false},
		{"no", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Setenv("MPCAT_TEST_BOOL", tt.value)
		if got := envBool("MPCAT_TEST_BOOL"); got != tt.want {
			t.Errorf("envBool(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the MPCAT_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("MPCAT_DEVICE"); v != "" {
		cfg.Device = v
	}
	if v := envInt("MPCAT_BAUD"); v > 0 {
		cfg.Baud = v
	}
	if v := os.Getenv("MPCAT_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := envInt("MPCAT_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := envInt("MPCAT_CHUNK_SIZE"); v > 0 {
		cfg.ChunkSize = v
	}
	if envBool("MPCAT_NO_RETRY") {
		cfg.NoRetry = true
	}

	// SSH tunnel
	if v := os.Getenv("MPCAT_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("MPCAT_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("MPCAT_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("MPCAT_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("MPCAT_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("MPCAT_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("MPCAT_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

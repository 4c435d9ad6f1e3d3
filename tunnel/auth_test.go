package tunnel

import (
	"testing"
)

func TestBuildAuthMethods_MissingKeyFile(t *testing.T) {
	cfg := &SSHConfig{KeyPath: "/nonexistent/id_ed25519"}
	if _, err := BuildAuthMethods(cfg); err == nil {
		t.Error("missing key file accepted")
	}
}

func TestHostKeyCallback_Insecure(t *testing.T) {
	cb, err := hostKeyCallback(&SSHConfig{StrictHostKey: false})
	if err != nil {
		t.Fatalf("hostKeyCallback: %v", err)
	}
	if cb == nil {
		t.Error("nil callback")
	}
}

func TestHostKeyCallback_StrictMissingFile(t *testing.T) {
	cfg := &SSHConfig{
		StrictHostKey: true,
		KnownHosts:    "/nonexistent/known_hosts",
	}
	if _, err := hostKeyCallback(cfg); err == nil {
		t.Error("missing known_hosts accepted")
	}
}

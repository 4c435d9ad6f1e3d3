// Package tunnel reaches network-attached boards that sit behind an
// SSH bastion (a lab gateway in front of an ESP32's TCP REPL, for
// example).  It provides a Dialer the TCP transport can route through.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"mpcat/config"
	"mpcat/util"
)

// SSHConfig holds everything needed to dial an SSH bastion.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// FromConfig lifts the tunnel fields out of the session config.
func FromConfig(cfg *config.Config) *SSHConfig {
	return &SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   cfg.Timeout,
	}
}

// SSHTunnel is a [mpcat/internal/transport.Dialer] that forwards
// device connections through an SSH bastion with ssh.Client.Dial.
type SSHTunnel struct {
	config *SSHConfig
	logger *util.Logger
	mu     sync.RWMutex
	client *ssh.Client
}

// NewSSHTunnel creates a tunnel that connects lazily on first Dial.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = config.DefaultSSHPort
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = config.DefaultConnTimeout
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

// connect dials the bastion and completes the handshake.
func (t *SSHTunnel) connect(ctx context.Context) (*ssh.Client, error) {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	authMethods, err := BuildAuthMethods(t.config)
	if err != nil {
		return nil, fmt.Errorf("ssh auth %s:%d: %w", t.config.Host, t.config.Port, err)
	}
	hkCallback, err := hostKeyCallback(t.config)
	if err != nil {
		return nil, fmt.Errorf("ssh hostkey %s:%d: %w", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := net.JoinHostPort(t.config.Host, fmt.Sprint(t.config.Port))
	t.logger.Debug("tunnel: dialing bastion %s as %s", addr, t.config.User)

	// Use a context-aware TCP dial so callers can cancel.
	var dialer net.Dialer
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial bastion %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	client = ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return client, nil
}

// Dial forwards a device connection through the bastion, establishing
// the SSH session on first use.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if network != "tcp" {
		return nil, errors.New("only tcp devices can be tunnelled")
	}
	client, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("tunnel: dialing device %s", address)
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("tunnel dial %s: %w", address, err)
	}
	return conn, nil
}

// Close shuts down the SSH session, if one was established.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

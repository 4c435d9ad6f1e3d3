// Package transport provides the byte-stream endpoints mpcat can open
// to a MicroPython board: a local serial port, a raw TCP REPL, or a
// WebREPL websocket.  Transports handle the "how" of byte movement,
// independent of the prompt protocol spoken over them (which is the
// device engine's job).
package transport

import (
	"context"
	"fmt"
	"net"

	"mpcat/config"
	ncerr "mpcat/internal/errors"
	"mpcat/util"
)

// Transport is an open, order-preserving byte pipe to a device.
//
// Read may return (0, nil) when no data arrived within the transport's
// internal poll interval; callers treat that as "nothing yet", which
// lets a draining loop observe its stop flag without a forced abort.
// Read returns io.EOF when the stream has ended for good.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error

	// Disconnects delivers at most one asynchronous notification that
	// the link was lost outside of a deliberate Close.
	Disconnects() <-chan error
}

// Dialer opens outbound network connections.  Implementations include
// the plain net dialer and an SSH-tunnelled dialer that routes traffic
// through a bastion host.
type Dialer interface {
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}

// NetDialer is the plain, tunnel-free Dialer.
type NetDialer struct {
	net.Dialer
}

func (d *NetDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	return d.DialContext(ctx, network, address)
}

func (d *NetDialer) Close() error { return nil }

// Open opens the transport described by cfg.Device.  The dialer is
// used for network schemes only and may be nil for serial devices.
// An unrecognized spec fails with [ncerr.ErrTransportUnsupported].
func Open(ctx context.Context, cfg *config.Config, dialer Dialer, logger *util.Logger) (Transport, error) {
	switch cfg.DeviceScheme() {
	case config.SchemeSerial:
		return OpenSerial(cfg.Device, cfg.Baud, logger)
	case config.SchemeTCP:
		addr, err := cfg.TCPAddress()
		if err != nil {
			return nil, err
		}
		return OpenTCP(ctx, addr, dialer, cfg.Timeout, logger)
	case config.SchemeWebREPL:
		return OpenWebREPL(ctx, cfg.Device, cfg.Password, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ncerr.ErrTransportUnsupported, cfg.Device)
	}
}

// notifyLost delivers err on ch without blocking; only the first
// notification is kept.
func notifyLost(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

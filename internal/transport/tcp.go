package transport

import (
	"context"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"mpcat/config"
	ncerr "mpcat/internal/errors"
	"mpcat/util"
)

// TCP is a raw TCP REPL link (e.g. an ESP32 running the telnet REPL),
// optionally reached through an SSH tunnel's dialer.
type TCP struct {
	addr    string
	conn    net.Conn
	logger  *util.Logger
	lost    chan error
	closing atomic.Bool
}

// OpenTCP dials addr through the given dialer.
func OpenTCP(ctx context.Context, addr string, dialer Dialer, timeout time.Duration, logger *util.Logger) (*TCP, error) {
	if dialer == nil {
		dialer = &NetDialer{net.Dialer{Timeout: timeout}}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := dialer.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.WrapConn("open", "tcp:"+addr, err)
	}

	logger.Verbose("tcp: connected to %s", conn.RemoteAddr())
	return &TCP{
		addr:   addr,
		conn:   conn,
		logger: logger,
		lost:   make(chan error, 1),
	}, nil
}

// Read polls the connection with a short deadline so a draining loop
// can observe its stop flag; a deadline miss surfaces as (0, nil).
func (t *TCP) Read(p []byte) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(config.TransportPollInterval)); err != nil {
		return 0, t.readFailed(err)
	}
	n, err := t.conn.Read(p)
	if err == nil {
		return n, nil
	}
	if os.IsTimeout(err) {
		return n, nil
	}
	return n, t.readFailed(err)
}

// readFailed maps any terminal read error to io.EOF, signalling the
// loss once unless the close was deliberate.
func (t *TCP) readFailed(err error) error {
	if !t.closing.Load() {
		notifyLost(t.lost, ncerr.WrapConn("read", "tcp:"+t.addr, err))
	}
	return io.EOF
}

func (t *TCP) Write(p []byte) (int, error) {
	n, err := t.conn.Write(p)
	if err != nil {
		return n, ncerr.WrapConn("write", "tcp:"+t.addr, err)
	}
	return n, nil
}

func (t *TCP) Close() error {
	t.closing.Store(true)
	return t.conn.Close()
}

func (t *TCP) Disconnects() <-chan error { return t.lost }

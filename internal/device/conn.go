package device

import (
	"context"
	"fmt"
	"sync"

	"mpcat/config"
	ncerr "mpcat/internal/errors"
	"mpcat/internal/metrics"
	"mpcat/internal/transport"
	"mpcat/util"
)

// State tracks the connection lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Opener opens the configured transport.  Injecting it keeps the
// engine independent of which link (serial, TCP, WebREPL) it runs on.
type Opener func(ctx context.Context) (transport.Transport, error)

// DataHook observes every received chunk, in order.  Purely
// observational; it must not block for long.
type DataHook func(data []byte)

// Conn owns one device connection: the transport handle, the shared
// receive buffer, and the single background reader draining one into
// the other.  All command traffic (SendLine, ExecuteRaw, transfers)
// is serialized on one writer lock, because each command cycle assumes
// it alone is interpreting the next prompt boundary.
type Conn struct {
	cfg     *config.Config
	open    Opener
	logger  *util.Logger
	metrics *metrics.Collector

	mu         sync.Mutex // guards state, tr, stop, readerDone
	state      State
	tr         transport.Transport
	stop       chan struct{}
	readerDone chan struct{}

	writeMu sync.Mutex // serializes command cycles and raw writes

	hookMu sync.Mutex
	hook   DataHook

	buffer *Buffer
}

// New creates a disconnected Conn.  A nil metrics collector is valid.
func New(cfg *config.Config, open Opener, logger *util.Logger, m *metrics.Collector) *Conn {
	return &Conn{
		cfg:     cfg,
		open:    open,
		logger:  logger,
		metrics: m,
		buffer:  NewBuffer(config.BufferMaxChunks, config.BufferKeepChunks),
	}
}

// Buffer exposes the shared receive buffer for consumers.
func (c *Conn) Buffer() *Buffer { return c.buffer }

// OnData installs the live-display hook.  Pass nil to remove it.
func (c *Conn) OnData(hook DataHook) {
	c.hookMu.Lock()
	c.hook = hook
	c.hookMu.Unlock()
}

func (c *Conn) dataHook() DataHook {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	return c.hook
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether commands can currently be sent.
func (c *Conn) IsConnected() bool { return c.State() == Connected }

// Connect opens the transport and starts the background reader.
//
// The boolean result distinguishes "the operator backed out" (false,
// nil) from a genuine failure (false, err).  On success it returns
// (true, nil).
func (c *Conn) Connect(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return false, fmt.Errorf("connect: already %s", c.state)
	}
	c.state = Connecting
	c.mu.Unlock()

	tr, err := c.open(ctx)
	if err != nil {
		c.setState(Disconnected)
		if ncerr.IsCanceled(err) {
			c.logger.Verbose("connect canceled by user")
			return false, nil
		}
		return false, err
	}

	c.mu.Lock()
	c.tr = tr
	c.stop = make(chan struct{})
	c.readerDone = make(chan struct{})
	c.state = Connected
	c.mu.Unlock()

	go c.readLoop(tr, c.stop, c.readerDone)
	go c.watchLoss(tr, c.stop)

	c.logger.Verbose("connected to %s", c.cfg.Device)
	return true, nil
}

// Disconnect stops the background reader, closes the transport, and
// clears the receive buffer.  The ordering matters: the transport is
// released only after the reader loop has observed the stop flag (or
// exited on stream end).
func (c *Conn) Disconnect() error {
	return c.teardown(true)
}

// teardown is shared between deliberate disconnects and unexpected
// loss.  closeTransport is false when the link is already invalid;
// we never attempt to close handles the transport has invalidated.
func (c *Conn) teardown(closeTransport bool) error {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return nil
	}
	c.state = Disconnecting
	tr := c.tr
	stop := c.stop
	done := c.readerDone
	c.mu.Unlock()

	close(stop)
	<-done

	var err error
	if closeTransport {
		err = tr.Close()
	}

	c.buffer.Clear()

	c.mu.Lock()
	c.tr = nil
	c.state = Disconnected
	c.mu.Unlock()

	c.logger.Verbose("disconnected from %s", c.cfg.Device)
	return err
}

// watchLoss waits for the transport's unexpected-loss notification and
// cleans up without touching the dead handle.
func (c *Conn) watchLoss(tr transport.Transport, stop chan struct{}) {
	select {
	case <-stop:
	case err, ok := <-tr.Disconnects():
		if !ok {
			return
		}
		c.logger.Warn("connection lost: %v", err)
		c.metrics.ErrorOccurred(err)
		if terr := c.teardown(false); terr != nil {
			c.logger.Debug("cleanup after loss: %v", terr)
		}
	}
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// write sends raw bytes to the transport.  Callers must hold writeMu
// or otherwise guarantee exclusive command access.
func (c *Conn) write(p []byte) error {
	c.mu.Lock()
	tr := c.tr
	connected := c.state == Connected
	c.mu.Unlock()

	if !connected || tr == nil {
		return ncerr.ErrNotConnected
	}
	n, err := tr.Write(p)
	c.metrics.BytesSent(int64(n))
	if err != nil {
		return err
	}
	return nil
}

// Write passes raw bytes through to the device.  Used by the
// interactive terminal, which bypasses the prompt cycle entirely.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

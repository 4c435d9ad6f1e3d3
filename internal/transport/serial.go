package transport

import (
	"io"
	"sync/atomic"

	"go.bug.st/serial"

	"mpcat/config"
	ncerr "mpcat/internal/errors"
	"mpcat/util"
)

// Serial is a local serial port opened with the REPL framing: the
// configured baud rate, 8 data bits, 1 stop bit, no parity.
type Serial struct {
	path    string
	port    serial.Port
	logger  *util.Logger
	lost    chan error
	closing atomic.Bool
}

// OpenSerial opens path at the given baud rate.  The port is given a
// short read timeout so that Read returns (0, nil) periodically and
// the background reader can observe its stop flag.
func OpenSerial(path string, baud int, logger *util.Logger) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, ncerr.WrapConn("open", path, err)
	}
	if err := port.SetReadTimeout(config.TransportPollInterval); err != nil {
		port.Close()
		return nil, ncerr.WrapConn("open", path, err)
	}

	logger.Verbose("serial: opened %s at %d baud (8N1)", path, baud)
	return &Serial{
		path:   path,
		port:   port,
		logger: logger,
		lost:   make(chan error, 1),
	}, nil
}

// Read reads the next chunk.  A poll timeout surfaces as (0, nil).
// A dead port (unplugged board, closed handle) surfaces as io.EOF
// after the disconnect notification fires.
func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err == nil {
		return n, nil
	}
	if s.closing.Load() {
		return n, io.EOF
	}

	var pe *serial.PortError
	if ncerr.As(err, &pe) {
		// The port is gone; this read can never succeed again.
		notifyLost(s.lost, ncerr.WrapConn("read", s.path, err))
		return n, io.EOF
	}
	return n, err
}

func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, ncerr.WrapConn("write", s.path, err)
	}
	return n, nil
}

// Close closes the port.  Subsequent reads return io.EOF rather than
// reporting an unexpected disconnect.
func (s *Serial) Close() error {
	s.closing.Store(true)
	return s.port.Close()
}

func (s *Serial) Disconnects() <-chan error { return s.lost }

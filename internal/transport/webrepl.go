package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"mpcat/config"
	ncerr "mpcat/internal/errors"
	"mpcat/util"
)

// WebREPL is a websocket link to MicroPython's WebREPL daemon.  The
// daemon speaks the same line-oriented REPL as the serial port once
// the password handshake is done.
type WebREPL struct {
	url     string
	ws      *websocket.Conn
	logger  *util.Logger
	frames  chan []byte
	lost    chan error
	done    chan struct{}
	pending []byte // frame bytes not yet consumed by Read
	closing atomic.Bool
}

// OpenWebREPL dials url and completes the password login.  An empty
// password is prompted for interactively; declining the prompt cancels
// the open with [ncerr.ErrOpenCanceled] rather than failing it.
func OpenWebREPL(ctx context.Context, url, password string, timeout time.Duration, logger *util.Logger) (*WebREPL, error) {
	if password == "" {
		var err error
		password, err = promptPassword(url)
		if err != nil {
			return nil, err
		}
	}
	if timeout == 0 {
		timeout = config.DefaultConnTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, ncerr.WrapConn("open", url, err)
	}

	w := &WebREPL{
		url:    url,
		ws:     ws,
		logger: logger,
		frames: make(chan []byte, 64),
		lost:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go w.pump()

	if err := w.login(password, timeout); err != nil {
		w.Close()
		return nil, err
	}

	logger.Verbose("webrepl: connected to %s", url)
	return w, nil
}

// pump drains websocket frames into the frames channel.  It is the
// only goroutine that reads from the websocket.
func (w *WebREPL) pump() {
	defer close(w.done)
	for {
		_, data, err := w.ws.ReadMessage()
		if err != nil {
			if !w.closing.Load() {
				notifyLost(w.lost, ncerr.WrapConn("read", w.url, err))
			}
			return
		}
		select {
		case w.frames <- data:
		case <-time.After(time.Second):
			// Receiver has stalled for a full second; drop the frame
			// rather than deadlock the websocket read loop.
			w.logger.Warn("webrepl: dropped %d-byte frame (slow reader)", len(data))
		}
	}
}

// login answers the "Password:" challenge and waits for the banner.
func (w *WebREPL) login(password string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	if err := w.expect("Password:", deadline); err != nil {
		return ncerr.WrapConn("login", w.url, err)
	}
	if _, err := w.Write([]byte(password + "\r")); err != nil {
		return err
	}

	var seen bytes.Buffer
	for time.Now().Before(deadline) {
		data := w.readSome(deadline)
		seen.Write(data)
		switch {
		case bytes.Contains(seen.Bytes(), []byte("WebREPL connected")):
			return nil
		case bytes.Contains(seen.Bytes(), []byte("Access denied")):
			return ncerr.WrapConn("login", w.url, fmt.Errorf("access denied (wrong password)"))
		}
	}
	return ncerr.WrapConn("login", w.url, fmt.Errorf("no banner before deadline"))
}

// expect consumes frames until needle appears or the deadline passes.
func (w *WebREPL) expect(needle string, deadline time.Time) error {
	var seen bytes.Buffer
	for time.Now().Before(deadline) {
		seen.Write(w.readSome(deadline))
		if bytes.Contains(seen.Bytes(), []byte(needle)) {
			return nil
		}
	}
	return fmt.Errorf("expected %q before deadline", needle)
}

// readSome returns the next frame, buffered leftovers first, or nil
// after one poll interval.
func (w *WebREPL) readSome(deadline time.Time) []byte {
	if len(w.pending) > 0 {
		out := w.pending
		w.pending = nil
		return out
	}
	wait := config.TransportPollInterval
	if until := time.Until(deadline); until < wait {
		wait = until
	}
	if wait <= 0 {
		return nil
	}
	select {
	case data := <-w.frames:
		return data
	case <-w.done:
		return nil
	case <-time.After(wait):
		return nil
	}
}

// Read hands out buffered frame bytes; with nothing pending it waits
// one poll interval and returns (0, nil), matching the Transport
// polling contract.
func (w *WebREPL) Read(p []byte) (int, error) {
	if len(w.pending) == 0 {
		select {
		case data := <-w.frames:
			w.pending = data
		case <-w.done:
			return 0, io.EOF
		case <-time.After(config.TransportPollInterval):
			return 0, nil
		}
	}
	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *WebREPL) Write(p []byte) (int, error) {
	if err := w.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, ncerr.WrapConn("write", w.url, err)
	}
	return len(p), nil
}

func (w *WebREPL) Close() error {
	w.closing.Store(true)
	return w.ws.Close()
}

func (w *WebREPL) Disconnects() <-chan error { return w.lost }

// promptPassword asks the operator for the WebREPL password.  An empty
// answer, a non-interactive stdin, or a read failure count as the
// operator backing out.
func promptPassword(url string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w: no password given and stdin is not a terminal", ncerr.ErrOpenCanceled)
	}
	fmt.Fprintf(os.Stderr, "WebREPL password for %s: ", url)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil || len(strings.TrimSpace(string(pass))) == 0 {
		return "", ncerr.ErrOpenCanceled
	}
	return string(pass), nil
}

// Package replterm attaches the local terminal to a device connection
// for interactive REPL use.  It contains no protocol logic: keystrokes
// go straight to the transport, received chunks go straight to stdout
// via the connection's live-display hook.
package replterm

import (
	"bytes"
	"context"
	"io"
	"os"

	"golang.org/x/term"

	"mpcat/internal/device"
	"mpcat/util"
)

// detachByte ends the interactive session (Ctrl-]).
const detachByte = 0x1d

// Terminal bridges stdin/stdout with a connected device.
type Terminal struct {
	Conn   *device.Conn
	Logger *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (t *Terminal) stdin() io.Reader {
	if t.Stdin != nil {
		return t.Stdin
	}
	return os.Stdin
}

func (t *Terminal) stdout() io.Writer {
	if t.Stdout != nil {
		return t.Stdout
	}
	return os.Stdout
}

// Run bridges until Ctrl-], stdin EOF, or context cancellation.  When
// stdin is a real terminal it is switched to raw mode so control bytes
// (including Ctrl-C, which belongs to the device) pass through.
func (t *Terminal) Run(ctx context.Context) error {
	t.Logger.Info("entering REPL - press Ctrl-] to detach")

	stdout := t.stdout()
	t.Conn.OnData(func(b []byte) {
		stdout.Write(b) //nolint:errcheck
	})
	defer t.Conn.OnData(nil)

	if f, ok := t.stdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		old, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			return err
		}
		defer term.Restore(int(f.Fd()), old) //nolint:errcheck
	}

	// Nudge the device so the operator sees a prompt immediately.
	if _, err := t.Conn.Write([]byte("\r")); err != nil {
		return err
	}

	in := t.stdin()
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := in.Read(buf)
		if n > 0 {
			if i := bytes.IndexByte(buf[:n], detachByte); i >= 0 {
				if i > 0 {
					t.Conn.Write(buf[:i]) //nolint:errcheck
				}
				return nil
			}
			if _, werr := t.Conn.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

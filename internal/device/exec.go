package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mpcat/config"
	ncerr "mpcat/internal/errors"
	"mpcat/internal/retry"
)

const (
	// interruptByte aborts a running remote program (Ctrl-C).
	interruptByte = 0x03

	// BlankLineToken marks a line that must be sent as an actually
	// empty line instead of being skipped; blank lines are how the
	// interpreter closes an open block.  A Python comment, so a
	// sentinel that leaks through unmapped is inert on the device.
	BlankLineToken = "#__blankline__"

	// execPrefix marks lines that trigger remote execution of
	// accumulated state.  Re-sending one would re-run side effects,
	// so these are never retried.
	execPrefix = "exec("

	// tracebackMarker appears in a response when the interpreter
	// raised an exception.
	tracebackMarker = "Traceback"
)

// Interrupt aborts any running remote program (two interrupt bytes,
// spaced apart) and waits until the interpreter answers with a prompt.
// Failure to see a prompt afterwards means the device is gone.
func (c *Conn) Interrupt() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.interruptLocked()
}

func (c *Conn) interruptLocked() error {
	consumer := c.buffer.NewConsumer()
	defer consumer.Close()

	if err := c.write([]byte{interruptByte}); err != nil {
		return err
	}
	time.Sleep(config.InterruptSpacing)
	if err := c.write([]byte{interruptByte}); err != nil {
		return err
	}

	if _, err := c.scan(consumer); err != nil {
		return fmt.Errorf("interrupt: %w", err)
	}
	return nil
}

// ExecuteRaw interrupts the device, then sends code line by line
// through the prompt cycle, returning the concatenated responses.
//
// With retry enabled, a line whose response contains the remote
// exception marker is re-sent up to the attempt budget; exec lines
// and all lines with retry disabled are single-shot, and a nil-result
// response fails the whole call.
func (c *Conn) ExecuteRaw(ctx context.Context, code string, retryEnabled bool) (string, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.interruptLocked(); err != nil {
		return "", err
	}

	var out strings.Builder
	for _, line := range splitLines(code) {
		resp, err := c.execLine(ctx, line, retryEnabled)
		if err != nil {
			return "", err
		}
		out.WriteString(resp)
	}
	return out.String(), nil
}

// splitLines normalizes the payload's terminators, drops blank lines,
// and maps the blank-line sentinel to an intentionally empty line.
func splitLines(code string) []string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(code, "\n") {
		if line == BlankLineToken {
			lines = append(lines, "")
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func (c *Conn) execLine(ctx context.Context, line string, retryEnabled bool) (string, error) {
	if !retryEnabled || strings.HasPrefix(line, execPrefix) {
		resp, err := c.sendLineLocked(line)
		if err != nil {
			return "", fmt.Errorf("line %q: %w", line, err)
		}
		return resp, nil
	}

	b := &retry.Backoff{
		Delay:       config.LineRetryDelay,
		MaxAttempts: config.MaxLineAttempts,
	}
	var resp string
	err := b.Do(ctx, func(attempt int) error {
		if attempt > 1 {
			c.metrics.LineRetried()
			c.logger.Verbose("retrying line %q (attempt %d/%d)",
				line, attempt, config.MaxLineAttempts)
		}
		r, err := c.sendLineLocked(line)
		if err != nil {
			if ncerr.Is(err, ncerr.ErrDeviceUnresponsive) {
				return err
			}
			return retry.Permanent(err)
		}
		if strings.Contains(r, tracebackMarker) {
			return &ncerr.RemoteError{Line: line, Response: r}
		}
		resp = r
		return nil
	})
	if err != nil {
		c.metrics.ErrorOccurred(err)
		return "", fmt.Errorf("line %q: %w", line, err)
	}
	return resp, nil
}

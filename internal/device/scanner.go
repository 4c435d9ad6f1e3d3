package device

import (
	"fmt"
	"strings"

	"mpcat/config"
	ncerr "mpcat/internal/errors"
)

// Reserved protocol tokens of the remote interpreter.
const (
	// LineTerm is the interpreter's line terminator.
	LineTerm = "\r\n"

	// promptMarker and continuationMarker end a response: the
	// interpreter is ready for more input, or expects the rest of a
	// multi-line statement.
	promptMarker       = ">>>"
	continuationMarker = "..."
)

// phase is the prompt scanner's position within one request/response
// cycle.
type phase int

const (
	// phaseEchoWait: accumulating until the echo of the sent line has
	// been consumed (terminated by LineTerm).
	phaseEchoWait phase = iota
	// phaseAccumulating: collecting output, watching the trimmed tail
	// for a prompt marker.
	phaseAccumulating
	// phasePromptSeen: terminal; one full response has been captured.
	phasePromptSeen
)

func (p phase) String() string {
	switch p {
	case phaseEchoWait:
		return "echo-wait"
	case phaseAccumulating:
		return "accumulating"
	case phasePromptSeen:
		return "prompt-seen"
	default:
		return "unknown"
	}
}

// scanSession is the ephemeral per-call state of one prompt scan.
type scanSession struct {
	phase   phase
	pending string // partial text held back (echo so far, or a tail
	// that might be the start of a prompt marker)
	echo    string
	output  strings.Builder
	empties int // consecutive empty polls
}

// feed advances the state machine with newly polled text.
func (s *scanSession) feed(text string) {
	if s.phase == phaseEchoWait {
		s.pending += text
		i := strings.Index(s.pending, LineTerm)
		if i < 0 {
			return
		}
		// Everything before the terminator is the remote echoing our
		// input; record it but keep it out of the response.
		s.echo = s.pending[:i]
		rest := s.pending[i+len(LineTerm):]
		s.pending = ""
		s.phase = phaseAccumulating
		if rest == "" {
			return
		}
		text = rest
	}

	s.pending += text
	trimmed := strings.TrimRight(s.pending, " \t\r\n")
	switch {
	case strings.HasSuffix(trimmed, promptMarker),
		strings.HasSuffix(trimmed, continuationMarker):
		s.output.WriteString(trimmed[:len(trimmed)-len(promptMarker)])
		s.pending = ""
		s.phase = phasePromptSeen
	case strings.HasSuffix(trimmed, ">"), strings.HasSuffix(trimmed, "."):
		// Could be the first character of a prompt marker split across
		// chunks; hold everything back until more data decides it.
	default:
		s.output.WriteString(s.pending)
		s.pending = ""
	}
}

// scan drives a consumer through one response: echo, data, prompt.
// After two consecutive empty polls the device is declared
// unresponsive; that failure is distinct from an empty-but-successful
// response.
func (c *Conn) scan(consumer *Consumer) (string, error) {
	s := &scanSession{}
	for s.phase != phasePromptSeen {
		data := consumer.ReadWithTimeout(c.cfg.ReadTimeout)
		if len(data) == 0 {
			s.empties++
			if s.empties >= config.MaxEmptyPolls {
				return "", fmt.Errorf("no prompt after %d polls (phase %s): %w",
					s.empties, s.phase, ncerr.ErrDeviceUnresponsive)
			}
			continue
		}
		s.empties = 0
		s.feed(string(data))
	}
	if s.echo != "" {
		c.logger.Debug("echo: %q", s.echo)
	}
	return s.output.String(), nil
}

// SendLine writes one line (with the protocol terminator appended) and
// scans the resulting response up to the next prompt.  The consumer is
// registered before the write so no byte of the reply can be missed,
// and is always released on exit.
func (c *Conn) SendLine(line string) (string, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sendLineLocked(line)
}

func (c *Conn) sendLineLocked(line string) (string, error) {
	consumer := c.buffer.NewConsumer()
	defer consumer.Close()

	if err := c.write([]byte(line + LineTerm)); err != nil {
		return "", err
	}
	c.metrics.CommandSent()

	return c.scan(consumer)
}

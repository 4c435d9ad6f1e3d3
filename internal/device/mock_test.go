package device

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"mpcat/config"
	"mpcat/internal/metrics"
	"mpcat/internal/transport"
	"mpcat/util"
)

// mockTransport scripts a prompt-driven remote interpreter: every
// written line is echoed back, followed by the queued response body
// and a fresh prompt.  Read polls like the real transports do,
// returning (0, nil) when no data is pending.
type mockTransport struct {
	mu        sync.Mutex
	incoming  bytes.Buffer
	responses map[string][]string
	writes    []string
	intr      int
	silent    bool // swallow writes without answering
	closed    bool
	lost      chan error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		responses: make(map[string][]string),
		lost:      make(chan error, 1),
	}
}

// respond queues response bodies for a line, consumed in FIFO order.
// Bodies should carry their own "\r\n" terminators; the echo and the
// trailing prompt are added automatically.
func (m *mockTransport) respond(line string, bodies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[line] = append(m.responses[line], bodies...)
}

// feed injects raw bytes as if the device had sent them unprompted.
func (m *mockTransport) feed(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incoming.WriteString(s)
}

func (m *mockTransport) writtenLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func (m *mockTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.EOF
	}
	if m.incoming.Len() == 0 {
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n, _ := m.incoming.Read(p)
	m.mu.Unlock()
	return n, nil
}

func (m *mockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 1 && p[0] == interruptByte {
		m.writes = append(m.writes, "<intr>")
		m.intr++
		// A real board answers the second interrupt of a pair with a
		// fresh prompt.
		if m.intr%2 == 0 && !m.silent {
			m.incoming.WriteString("\r\nKeyboardInterrupt\r\n>>> ")
		}
		return 1, nil
	}

	line := strings.TrimSuffix(string(p), LineTerm)
	m.writes = append(m.writes, line)
	if m.silent {
		return len(p), nil
	}

	body := ""
	if q := m.responses[line]; len(q) > 0 {
		body = q[0]
		m.responses[line] = q[1:]
	}
	m.incoming.WriteString(line + LineTerm + body + ">>> ")
	return len(p), nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) Disconnects() <-chan error { return m.lost }

var _ transport.Transport = (*mockTransport)(nil)

// newTestConn connects a Conn to the given mock and registers cleanup.
func newTestConn(t *testing.T, m *mockTransport) *Conn {
	t.Helper()

	cfg := &config.Config{
		Device:      "mock",
		ReadTimeout: 50 * time.Millisecond,
	}
	open := func(ctx context.Context) (transport.Transport, error) {
		return m, nil
	}
	c := New(cfg, open, util.NewLogger(0), metrics.New())

	ok, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !ok {
		t.Fatal("Connect reported canceled")
	}
	t.Cleanup(func() { c.Disconnect() })
	return c
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

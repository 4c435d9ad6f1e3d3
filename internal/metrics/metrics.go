// Package metrics provides lightweight counters for tracking runtime
// statistics of an mpcat session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a device session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	chunksReceived atomic.Int64
	commandsSent   atomic.Int64
	lineRetries    atomic.Int64
	uploads        atomic.Int64
	downloads      atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── I/O metrics ──────────────────────────────────────────────────────

// ChunkReceived records one chunk of n bytes drained from the transport.
func (c *Collector) ChunkReceived(n int64) {
	if c == nil {
		return
	}
	c.chunksReceived.Add(1)
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the transport.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// ── Command metrics ──────────────────────────────────────────────────

// CommandSent records one line sent through the prompt cycle.
func (c *Collector) CommandSent() {
	if c == nil {
		return
	}
	c.commandsSent.Add(1)
}

// LineRetried records one extra attempt for a line during raw exec.
func (c *Collector) LineRetried() {
	if c == nil {
		return
	}
	c.lineRetries.Add(1)
}

// UploadDone records one completed upload.
func (c *Collector) UploadDone() {
	if c == nil {
		return
	}
	c.uploads.Add(1)
}

// DownloadDone records one completed download.
func (c *Collector) DownloadDone() {
	if c == nil {
		return
	}
	c.downloads.Add(1)
}

// ErrorOccurred records an error with its message for diagnostics.
func (c *Collector) ErrorOccurred(err error) {
	if c == nil || err == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = err.Error()
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Uptime         time.Duration
	BytesIn        int64
	BytesOut       int64
	ChunksReceived int64
	CommandsSent   int64
	LineRetries    int64
	Uploads        int64
	Downloads      int64
	Errors         int64
	LastError      string
}

// Snapshot returns a consistent copy of the current counters.
// A nil Collector returns the zero Snapshot.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	last := c.lastErrorMsg
	start := c.startTime
	c.mu.RUnlock()

	return Snapshot{
		Uptime:         time.Since(start),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		ChunksReceived: c.chunksReceived.Load(),
		CommandsSent:   c.commandsSent.Load(),
		LineRetries:    c.lineRetries.Load(),
		Uploads:        c.uploads.Load(),
		Downloads:      c.downloads.Load(),
		Errors:         c.errorsTotal.Load(),
		LastError:      last,
	}
}

// String renders the snapshot as a single human-readable line.
func (s Snapshot) String() string {
	out := fmt.Sprintf(
		"up %s, in %dB/%d chunks, out %dB, %d commands, %d retries, %d up, %d down",
		s.Uptime.Round(time.Millisecond), s.BytesIn, s.ChunksReceived,
		s.BytesOut, s.CommandsSent, s.LineRetries, s.Uploads, s.Downloads)
	if s.Errors > 0 {
		out += fmt.Sprintf(", %d errors (last: %s)", s.Errors, s.LastError)
	}
	return out
}

// Package device implements the REPL protocol engine: the connection
// lifecycle, a background reader draining the transport into a shared
// buffer, prompt scanning, a retrying raw executor, and the raw write
// path used by the interactive terminal.
package device

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"

	"mpcat/config"
)

// Chunk is one unit of data captured from the transport in a single
// reader iteration.  Immutable once appended.
type Chunk struct {
	Data []byte
	When time.Time
}

// Buffer is the shared receive buffer: an append-only, time-ordered
// sequence of chunks with bounded retention, observed by any number of
// consumers.  One mutex covers both the chunks and every consumer
// cursor, so retention truncation is atomic with respect to cursor
// reads, so no consumer can ever observe a cursor that points at
// discarded history.
type Buffer struct {
	mu        sync.Mutex
	chunks    []Chunk
	consumers map[string]*Consumer
	maxLen    int // truncation trigger
	keepLen   int // chunks surviving a truncation
}

// NewBuffer creates a buffer with the retention policy of maxLen
// entries truncating down to the keepLen most recent.
func NewBuffer(maxLen, keepLen int) *Buffer {
	if maxLen <= 0 {
		maxLen = config.BufferMaxChunks
	}
	if keepLen <= 0 || keepLen > maxLen {
		keepLen = config.BufferKeepChunks
	}
	return &Buffer{
		consumers: make(map[string]*Consumer),
		maxLen:    maxLen,
		keepLen:   keepLen,
	}
}

// Append records one received chunk, stamping it with the capture
// time, and applies the retention policy.
func (b *Buffer) Append(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, Chunk{Data: data, When: time.Now()})

	if len(b.chunks) <= b.maxLen {
		return
	}
	removed := len(b.chunks) - b.keepLen
	b.chunks = append([]Chunk(nil), b.chunks[removed:]...)
	for _, c := range b.consumers {
		c.cursor -= removed
		if c.cursor < 0 {
			c.cursor = 0
		}
	}
}

// Len returns the current number of retained chunks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Clear drops all retained chunks and deregisters every consumer.
// Called on disconnect.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.consumers = make(map[string]*Consumer)
}

// ── Consumers ────────────────────────────────────────────────────────

// Consumer is a cursor into the buffer.  It only ever observes the
// buffer; consumers never mutate it, so any number may coexist.
type Consumer struct {
	id     string
	buf    *Buffer
	cursor int
}

// NewConsumer registers a consumer with a generated id.  Its cursor
// starts at the current buffer length: consumers only see data that
// arrives after their creation.
func (b *Buffer) NewConsumer() *Consumer {
	return b.ConsumerWithID(uuid.NewString())
}

// ConsumerWithID registers a consumer under the given id, replacing
// any previous registration with that id.
func (b *Buffer) ConsumerWithID(id string) *Consumer {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &Consumer{id: id, buf: b, cursor: len(b.chunks)}
	b.consumers[id] = c
	return c
}

// ID returns the consumer's registry key.
func (c *Consumer) ID() string { return c.id }

// ReadNew returns everything between the cursor and the current
// buffer length, concatenated, and advances the cursor.  Non-blocking;
// returns nil when nothing new has arrived.
func (c *Consumer) ReadNew() []byte {
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	return c.readNewLocked()
}

func (c *Consumer) readNewLocked() []byte {
	if c.cursor >= len(c.buf.chunks) {
		return nil
	}
	var out bytes.Buffer
	for _, ch := range c.buf.chunks[c.cursor:] {
		out.Write(ch.Data)
	}
	c.cursor = len(c.buf.chunks)
	return out.Bytes()
}

// ReadWithTimeout polls for new data at a fixed granularity, returning
// it as soon as any arrives.  It returns nil if the full timeout
// elapses with nothing new.  A non-positive timeout uses the default.
func (c *Consumer) ReadWithTimeout(timeout time.Duration) []byte {
	if timeout <= 0 {
		timeout = config.DefaultReadTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		c.buf.mu.Lock()
		data := c.readNewLocked()
		c.buf.mu.Unlock()
		if len(data) > 0 {
			return data
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		time.Sleep(config.ConsumerPollInterval)
	}
}

// Reset advances the cursor to the current buffer length, discarding
// unseen history.
func (c *Consumer) Reset() {
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	c.cursor = len(c.buf.chunks)
}

// Close deregisters the consumer.  It must run on every exit path,
// including failures; callers defer it immediately after creation.
func (c *Consumer) Close() {
	c.buf.mu.Lock()
	defer c.buf.mu.Unlock()
	delete(c.buf.consumers, c.id)
}

// cursorOf reports a consumer's cursor; test hook for the retention
// invariant.
func (b *Buffer) cursorOf(id string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.consumers[id]
	if !ok {
		return 0, false
	}
	return c.cursor, true
}

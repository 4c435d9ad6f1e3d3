package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults and protocol constants live here so they are
// easy to audit and reuse across CLI flags, env loading, and the
// device engine.

const (
	// DefaultBaudRate matches the MicroPython USB-CDC REPL.  The
	// framing is always 8 data bits, 1 stop bit, no parity.
	DefaultBaudRate = 115200

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultWebREPLPort is MicroPython's WebREPL listen port.
	DefaultWebREPLPort = 8266

	// DefaultConnTimeout is the transport open / SSH handshake timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultReadTimeout is how long one prompt-scanner poll waits for
	// new data before counting as empty.
	DefaultReadTimeout = 200 * time.Millisecond

	// ConsumerPollInterval is the granularity of consumer timeout polls.
	ConsumerPollInterval = 10 * time.Millisecond

	// TransportPollInterval bounds a single blocking transport read so
	// the background reader can observe its stop flag.
	TransportPollInterval = 100 * time.Millisecond

	// ReadRetryDelay is the pause after a transient transport read
	// error before the background reader tries again.
	ReadRetryDelay = 100 * time.Millisecond

	// InterruptSpacing is the gap between the two interrupt bytes sent
	// to abort a running remote program.
	InterruptSpacing = 300 * time.Millisecond

	// BufferMaxChunks is the receive-buffer length that triggers
	// truncation; BufferKeepChunks is how many recent chunks survive.
	BufferMaxChunks  = 10000
	BufferKeepChunks = 5000

	// MaxEmptyPolls is how many consecutive empty scanner polls are
	// tolerated before the device is declared unresponsive.
	MaxEmptyPolls = 2

	// MaxLineAttempts is the per-line retry budget during raw
	// execution; LineRetryDelay spaces the attempts.
	MaxLineAttempts = 3
	LineRetryDelay  = 100 * time.Millisecond

	// DefaultHexChunkSize is the number of hex characters per transfer
	// script chunk.  Uploads split payloads at half this size (in
	// bytes, one byte is two hex characters) as a safety margin
	// against receive-buffer overruns on constrained boards.
	DefaultHexChunkSize = 1024
)

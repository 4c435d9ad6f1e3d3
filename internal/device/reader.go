package device

import (
	"io"
	"time"

	"mpcat/config"
	"mpcat/internal/transport"
	"mpcat/util"
)

// readLoop is the single background reader: the only code that reads
// from the transport while connected.  Every received chunk is
// appended to the shared buffer and forwarded to the live-display
// hook.  Transient read errors are retried after a fixed delay; the
// loop only ends on stream end or when the stop flag is raised.
func (c *Conn) readLoop(tr transport.Transport, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	bufp := util.GetBuf()
	defer util.PutBuf(bufp)
	buf := *bufp

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := tr.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			c.buffer.Append(chunk)
			c.metrics.ChunkReceived(int64(n))
			if hook := c.dataHook(); hook != nil {
				hook(chunk)
			}
		}

		switch {
		case err == nil:
			// Includes the (0, nil) poll-timeout case; loop again so
			// the stop flag is checked between iterations.
		case err == io.EOF:
			c.logger.Debug("reader: stream ended")
			return
		default:
			// Recoverable hiccup: wait briefly and keep draining.
			c.logger.Debug("reader: transient read error: %v", err)
			select {
			case <-stop:
				return
			case <-time.After(config.ReadRetryDelay):
			}
		}
	}
}

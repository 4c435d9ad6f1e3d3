// Package transfer moves arbitrary byte payloads over the text-only
// REPL channel.  Payloads are hex-encoded into a bootstrap script the
// interpreter itself executes to rebuild the bytes on the device, in
// memory or into a file.
package transfer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"mpcat/config"
	"mpcat/internal/device"
)

// Encoder builds hex bootstrap scripts.  The zero value uses the
// default chunk size.
type Encoder struct {
	// ChunkSize is the number of hex characters per script chunk.
	ChunkSize int
}

func (e *Encoder) chunkSize() int {
	if e.ChunkSize > 0 {
		return e.ChunkSize
	}
	return config.DefaultHexChunkSize
}

// Encode renders payload as a script for the raw executor.  With an
// empty dest the reconstructed bytes are decoded and executed in
// place; otherwise they are written to the named file, appending when
// append mode is set.  Every phase releases its temporaries so the
// device's memory use stays bounded by one chunk plus the payload.
func (e *Encoder) Encode(payload []byte, dest string, appendMode bool) string {
	h := hex.EncodeToString(payload)
	size := e.chunkSize()

	var b strings.Builder

	// Preamble: a same-length byte buffer and a running offset.
	fmt.Fprintf(&b, "b=bytearray(%d)\n", len(payload))
	b.WriteString("o=0\n")

	for start := 0; start < len(h); start += size {
		end := start + size
		if end > len(h) {
			end = len(h)
		}
		fmt.Fprintf(&b, "h='%s'\n", h[start:end])
		// Single-line for loop; the interpreter holds it open with a
		// continuation prompt until the blank line closes the block.
		b.WriteString("for i in range(0,len(h),2): b[o+i//2]=int(h[i:i+2],16)\n")
		b.WriteString(device.BlankLineToken + "\n")
		b.WriteString("o+=len(h)//2;print('#',end='');del h\n")
	}

	if dest == "" {
		b.WriteString("exec(b.decode())\n")
		b.WriteString("del b;del o\n")
		return b.String()
	}

	mode := "wb"
	if appendMode {
		mode = "ab"
	}
	fmt.Fprintf(&b, "f=open('%s','%s')\n", dest, mode)
	b.WriteString("f.write(b)\n")
	b.WriteString("f.close()\n")
	b.WriteString("del f;del b;del o\n")
	return b.String()
}

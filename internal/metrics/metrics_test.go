package metrics

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestCollector_Counters(t *testing.T) {
	c := New()

	c.ChunkReceived(100)
	c.ChunkReceived(24)
	c.BytesSent(50)
	c.CommandSent()
	c.CommandSent()
	c.LineRetried()
	c.UploadDone()
	c.DownloadDone()

	s := c.Snapshot()
	if s.BytesIn != 124 {
		t.Errorf("BytesIn = %d, want 124", s.BytesIn)
	}
	if s.ChunksReceived != 2 {
		t.Errorf("ChunksReceived = %d, want 2", s.ChunksReceived)
	}
	if s.BytesOut != 50 {
		t.Errorf("BytesOut = %d, want 50", s.BytesOut)
	}
	if s.CommandsSent != 2 {
		t.Errorf("CommandsSent = %d, want 2", s.CommandsSent)
	}
	if s.LineRetries != 1 {
		t.Errorf("LineRetries = %d, want 1", s.LineRetries)
	}
	if s.Uploads != 1 || s.Downloads != 1 {
		t.Errorf("transfers = %d/%d, want 1/1", s.Uploads, s.Downloads)
	}
}

func TestCollector_Errors(t *testing.T) {
	c := New()

	c.ErrorOccurred(fmt.Errorf("first"))
	c.ErrorOccurred(fmt.Errorf("second"))
	c.ErrorOccurred(nil) // ignored

	s := c.Snapshot()
	if s.Errors != 2 {
		t.Errorf("Errors = %d, want 2", s.Errors)
	}
	if s.LastError != "second" {
		t.Errorf("LastError = %q, want %q", s.LastError, "second")
	}
}

func TestCollector_NilReceiver(t *testing.T) {
	var c *Collector

	// None of these may panic.
	c.ChunkReceived(1)
	c.BytesSent(1)
	c.CommandSent()
	c.LineRetried()
	c.UploadDone()
	c.DownloadDone()
	c.ErrorOccurred(fmt.Errorf("ignored"))

	s := c.Snapshot()
	if s.BytesIn != 0 || s.Errors != 0 {
		t.Errorf("nil collector accumulated state: %+v", s)
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.ChunkReceived(1)
				c.CommandSent()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.ChunksReceived != 1000 {
		t.Errorf("ChunksReceived = %d, want 1000", s.ChunksReceived)
	}
	if s.CommandsSent != 1000 {
		t.Errorf("CommandsSent = %d, want 1000", s.CommandsSent)
	}
}

func TestSnapshot_String(t *testing.T) {
	c := New()
	c.ChunkReceived(10)
	c.CommandSent()

	out := c.Snapshot().String()
	if !strings.Contains(out, "1 commands") {
		t.Errorf("String() = %q, missing command count", out)
	}
	if strings.Contains(out, "errors") {
		t.Errorf("String() = %q, mentions errors with none recorded", out)
	}

	c.ErrorOccurred(fmt.Errorf("boom"))
	out = c.Snapshot().String()
	if !strings.Contains(out, "boom") {
		t.Errorf("String() = %q, missing last error", out)
	}
}

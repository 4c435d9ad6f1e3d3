package transfer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	ncerr "mpcat/internal/errors"
	"mpcat/util"
)

// fakeRunner records every script and line it is handed and answers
// from configurable hooks.
type fakeRunner struct {
	scripts []string
	lines   []string

	execResp func(code string) (string, error)
	lineResp func(line string) (string, error)
}

func (f *fakeRunner) ExecuteRaw(_ context.Context, code string, _ bool) (string, error) {
	f.scripts = append(f.scripts, code)
	if f.execResp != nil {
		return f.execResp(code)
	}
	return "", nil
}

func (f *fakeRunner) SendLine(line string) (string, error) {
	f.lines = append(f.lines, line)
	if f.lineResp != nil {
		return f.lineResp(line)
	}
	return "", nil
}

func newTestFiles(r Runner) *Files {
	return &Files{Runner: r, Logger: util.NewLogger(0)}
}

func TestUpload_ChunkCount(t *testing.T) {
	tests := []struct {
		name       string
		payloadLen int
		chunkHex   int // encoder chunk size in hex chars
		wantChunks int // ceil(payloadLen / (chunkHex/2))
	}{
		{"fits in one", 4, 8, 1},
		{"exact boundary", 8, 8, 2},
		{"one byte over", 9, 8, 3},
		{"default sizing", 1500, 1024, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			f := newTestFiles(r)
			f.Encoder.ChunkSize = tt.chunkHex

			payload := make([]byte, tt.payloadLen)
			for i := range payload {
				payload[i] = byte('a' + i%26)
			}
			if err := f.Upload(context.Background(), payload, "data.bin"); err != nil {
				t.Fatalf("Upload: %v", err)
			}

			if got := len(r.scripts); got != tt.wantChunks {
				t.Errorf("%d bytes at %d hex chars: %d scripts, want %d",
					tt.payloadLen, tt.chunkHex, got, tt.wantChunks)
			}
		})
	}
}

func TestUpload_FirstChunkTruncatesRestAppend(t *testing.T) {
	r := &fakeRunner{}
	f := newTestFiles(r)
	f.Encoder.ChunkSize = 8 // 4 payload bytes per chunk

	if err := f.Upload(context.Background(), []byte("0123456789"), "data.bin"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(r.scripts) != 3 {
		t.Fatalf("got %d scripts, want 3", len(r.scripts))
	}

	if !strings.Contains(r.scripts[0], "'wb'") {
		t.Error("first chunk does not truncate the target")
	}
	for i, s := range r.scripts[1:] {
		if !strings.Contains(s, "'ab'") {
			t.Errorf("chunk %d does not append", i+2)
		}
	}
}

func TestUpload_FilenameDirective(t *testing.T) {
	r := &fakeRunner{}
	f := newTestFiles(r)

	code := []byte("# filename: boot.py\nprint('hi')\n")
	if err := f.Upload(context.Background(), code, "ignored.py"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if !strings.Contains(r.scripts[0], "open('boot.py'") {
		t.Errorf("directive ignored; script:\n%s", r.scripts[0])
	}
}

func TestUpload_RequiresFilename(t *testing.T) {
	f := newTestFiles(&fakeRunner{})
	if err := f.Upload(context.Background(), []byte("x=1"), ""); err == nil {
		t.Error("Upload with no target succeeded")
	}
}

func TestUpload_ChunkFailureAborts(t *testing.T) {
	r := &fakeRunner{}
	fail := fmt.Errorf("device reset")
	r.execResp = func(code string) (string, error) {
		if len(r.scripts) == 2 {
			return "", fail
		}
		return "", nil
	}
	f := newTestFiles(r)
	f.Encoder.ChunkSize = 8

	err := f.Upload(context.Background(), []byte("0123456789ab"), "data.bin")
	if err == nil {
		t.Fatal("Upload succeeded past a failing chunk")
	}
	if !strings.Contains(err.Error(), "chunk 2/3") {
		t.Errorf("error = %v, want chunk position", err)
	}
	if len(r.scripts) != 2 {
		t.Errorf("%d scripts sent after failure, want 2", len(r.scripts))
	}
}

func TestDownload_HappyPath(t *testing.T) {
	r := &fakeRunner{}
	r.lineResp = func(line string) (string, error) {
		return beginMarker + "\r\nline one\r\nline two\r\n" + endMarker + "\r\n", nil
	}
	f := newTestFiles(r)

	got, err := f.Download(context.Background(), "main.py")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if want := "line one\nline two\n"; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}

	// Probe, then read; the dump goes over SendLine.
	if len(r.scripts) != 2 {
		t.Fatalf("%d scripts, want probe + read", len(r.scripts))
	}
	if !strings.Contains(r.scripts[0], "except:") {
		t.Errorf("probe missing except branch:\n%s", r.scripts[0])
	}
	if !strings.Contains(r.scripts[1], "c=f.read()") {
		t.Errorf("read script:\n%s", r.scripts[1])
	}
	if len(r.lines) != 1 || !strings.Contains(r.lines[0], beginMarker) {
		t.Errorf("dump lines = %q", r.lines)
	}
}

func TestDownload_MissingFile(t *testing.T) {
	r := &fakeRunner{}
	r.execResp = func(code string) (string, error) {
		if strings.Contains(code, "except:") {
			return missingMarker + "\r\n", nil
		}
		return "", nil
	}
	f := newTestFiles(r)

	_, err := f.Download(context.Background(), "nope.py")
	if !ncerr.Is(err, ncerr.ErrFileNotFound) {
		t.Errorf("error = %v, want ErrFileNotFound", err)
	}
	// The probe must be the only script; no read attempt follows.
	if len(r.scripts) != 1 {
		t.Errorf("%d scripts after missing probe, want 1", len(r.scripts))
	}
}

func TestDownload_TruncatedResponse(t *testing.T) {
	r := &fakeRunner{}
	r.lineResp = func(line string) (string, error) {
		return beginMarker + "\r\npartial content", nil
	}
	f := newTestFiles(r)

	_, err := f.Download(context.Background(), "main.py")
	if !ncerr.Is(err, ncerr.ErrTransferIncomplete) {
		t.Errorf("error = %v, want ErrTransferIncomplete", err)
	}
}

func TestDownload_EmptyFile(t *testing.T) {
	r := &fakeRunner{}
	r.lineResp = func(line string) (string, error) {
		return beginMarker + "\r\n" + endMarker + "\r\n", nil
	}
	f := newTestFiles(r)

	got, err := f.Download(context.Background(), "empty.py")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got != "" {
		t.Errorf("content = %q, want empty", got)
	}
}

func TestExtractBetween(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"clean", "B\r\nhello\r\nE", "hello\r\n", false},
		{"noise around", "junk B\r\ncontent E trailing", "content ", false},
		{"missing begin", "content E", "", true},
		{"missing end", "B\r\ncontent", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractBetween(tt.in, "B", "E")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("extractBetween = %q, want %q", got, tt.want)
			}
		})
	}
}

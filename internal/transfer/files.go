package transfer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mpcat/internal/device"
	ncerr "mpcat/internal/errors"
	"mpcat/internal/metrics"
	"mpcat/util"
)

// Download content delimiters.  Chosen so they cannot occur in REPL
// noise around the printed file body.
const (
	beginMarker = "###FILE_BEGIN###"
	endMarker   = "###FILE_END###"

	// missingMarker is printed by the existence probe's except branch.
	missingMarker = "###FILE_MISSING###"
)

// filenameDirective matches the leading comment that overrides the
// upload target, e.g. "# filename: boot.py".
var filenameDirective = regexp.MustCompile(`^#\s*filename:\s*(\S+)`)

// Runner is the slice of the device engine the transfer layer drives.
// *device.Conn satisfies it.
type Runner interface {
	ExecuteRaw(ctx context.Context, code string, retryEnabled bool) (string, error)
	SendLine(line string) (string, error)
}

// Files uploads and downloads device files over the REPL channel.
type Files struct {
	Runner  Runner
	Encoder Encoder
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// New returns a Files orchestrator with the default encoder.
func New(r Runner, logger *util.Logger, m *metrics.Collector) *Files {
	return &Files{Runner: r, Logger: logger, Metrics: m}
}

// uploadChunkSize is the payload bytes per upload chunk: half the
// encoder chunk size, a safety margin against receive-buffer overruns
// on small boards.
func (f *Files) uploadChunkSize() int {
	return f.Encoder.chunkSize() / 2
}

// Upload writes code to filename on the device, chunk by chunk.  A
// leading "# filename:" directive in the payload overrides the
// argument.  Each chunk is encoded as its own bootstrap script and
// executed with retry enabled; any chunk failing fails the call.
func (f *Files) Upload(ctx context.Context, code []byte, filename string) error {
	if m := filenameDirective.FindSubmatch(code); m != nil {
		filename = string(m[1])
		f.Logger.Verbose("upload: filename directive overrides target: %s", filename)
	}
	if filename == "" {
		return fmt.Errorf("upload: a target filename is required")
	}

	size := f.uploadChunkSize()
	total := (len(code) + size - 1) / size
	f.Logger.Verbose("upload: %d bytes to %s in %d chunk(s)", len(code), filename, total)

	for i := 0; i < total; i++ {
		end := (i + 1) * size
		if end > len(code) {
			end = len(code)
		}
		part := code[i*size : end]

		script := f.Encoder.Encode(part, filename, i > 0)
		if _, err := f.Runner.ExecuteRaw(ctx, script, true); err != nil {
			f.Metrics.ErrorOccurred(err)
			return fmt.Errorf("upload %s: chunk %d/%d: %w", filename, i+1, total, err)
		}
		f.Logger.Progress("#")
	}
	if total > 0 {
		f.Logger.Progress("\n")
	}

	f.Metrics.UploadDone()
	return nil
}

// Download reads filename from the device and returns its content with
// line terminators normalized to "\n".
func (f *Files) Download(ctx context.Context, filename string) (string, error) {
	// Existence probe: try-open on the device, catch decides.
	probe := strings.Join([]string{
		fmt.Sprintf("try: f=open('%s','rb'); f.close()", filename),
		fmt.Sprintf("except: print('%s')", missingMarker),
		device.BlankLineToken,
	}, "\n")
	out, err := f.Runner.ExecuteRaw(ctx, probe, false)
	if err != nil {
		return "", fmt.Errorf("download %s: probe: %w", filename, err)
	}
	if strings.Contains(out, missingMarker) {
		return "", fmt.Errorf("download %s: %w", filename, ncerr.ErrFileNotFound)
	}

	// Read the whole file into a remote variable.
	read := strings.Join([]string{
		fmt.Sprintf("f=open('%s','rb')", filename),
		"c=f.read()",
		"f.close()",
	}, "\n")
	if _, err := f.Runner.ExecuteRaw(ctx, read, false); err != nil {
		return "", fmt.Errorf("download %s: read: %w", filename, err)
	}

	// Print the content between the delimiters and drop temporaries.
	dump := fmt.Sprintf("print('%s');print(c.decode(),end='');print('%s');del c;del f",
		beginMarker, endMarker)
	out, err = f.Runner.SendLine(dump)
	if err != nil {
		return "", fmt.Errorf("download %s: dump: %w", filename, err)
	}

	content, err := extractBetween(out, beginMarker, endMarker)
	if err != nil {
		f.Metrics.ErrorOccurred(err)
		return "", fmt.Errorf("download %s: %w", filename, err)
	}

	f.Metrics.DownloadDone()
	return normalizeNewlines(content), nil
}

// extractBetween pulls the substring between the two delimiters,
// failing with ErrTransferIncomplete when either is absent.
func extractBetween(s, begin, end string) (string, error) {
	i := strings.Index(s, begin)
	if i < 0 {
		return "", fmt.Errorf("begin delimiter missing: %w", ncerr.ErrTransferIncomplete)
	}
	rest := s[i+len(begin):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", fmt.Errorf("end delimiter missing: %w", ncerr.ErrTransferIncomplete)
	}
	// The delimiter is printed on its own line; drop that terminator.
	return strings.TrimPrefix(rest[:j], "\r\n"), nil
}

// normalizeNewlines rewrites remote line terminators as "\n".  The
// tool settles on "\n" for every host rather than os-specific output;
// the editors and diff tools this feeds all accept it.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

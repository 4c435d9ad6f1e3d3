package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mpcat/config"
	"mpcat/internal/replterm"
	"mpcat/util"
)

// ── repl ─────────────────────────────────────────────────────────────

// ReplMode attaches an interactive terminal to the device.
type ReplMode struct {
	Config *config.Config
	Logger *util.Logger
}

func (m *ReplMode) Run(ctx context.Context) error {
	sess, err := dial(ctx, m.Config, m.Logger)
	if err != nil || sess == nil {
		return err
	}
	defer sess.close()

	t := &replterm.Terminal{Conn: sess.conn, Logger: m.Logger}
	return t.Run(ctx)
}

// ── run / exec ───────────────────────────────────────────────────────

// RunMode executes a local file on the device.
type RunMode struct {
	Config *config.Config
	Logger *util.Logger
	Path   string

	// Stdout defaults to os.Stdout; override in tests.
	Stdout io.Writer
}

func (m *RunMode) Run(ctx context.Context) error {
	code, err := os.ReadFile(m.Path)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	sess, err := dial(ctx, m.Config, m.Logger)
	if err != nil || sess == nil {
		return err
	}
	defer sess.close()

	out, err := sess.conn.ExecuteRaw(ctx, string(code), !m.Config.NoRetry)
	if err != nil {
		return fmt.Errorf("run %s: %w", m.Path, err)
	}
	writeOutput(stdoutOr(m.Stdout), out)
	return nil
}

// ExecMode executes an inline snippet on the device.
type ExecMode struct {
	Config *config.Config
	Logger *util.Logger
	Code   string

	Stdout io.Writer
}

func (m *ExecMode) Run(ctx context.Context) error {
	sess, err := dial(ctx, m.Config, m.Logger)
	if err != nil || sess == nil {
		return err
	}
	defer sess.close()

	out, err := sess.conn.ExecuteRaw(ctx, m.Code, !m.Config.NoRetry)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	writeOutput(stdoutOr(m.Stdout), out)
	return nil
}

// ── put / get ────────────────────────────────────────────────────────

// PutMode uploads a local file to the device.
type PutMode struct {
	Config     *config.Config
	Logger     *util.Logger
	LocalPath  string
	RemotePath string // defaults to the local basename
}

func (m *PutMode) Run(ctx context.Context) error {
	code, err := os.ReadFile(m.LocalPath)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	remote := m.RemotePath
	if remote == "" {
		remote = filepath.Base(m.LocalPath)
	}

	sess, err := dial(ctx, m.Config, m.Logger)
	if err != nil || sess == nil {
		return err
	}
	defer sess.close()

	if err := sess.files.Upload(ctx, code, remote); err != nil {
		return err
	}
	m.Logger.Info("put %s -> %s (%d bytes)", m.LocalPath, remote, len(code))
	return nil
}

// GetMode downloads a device file to a local path, or stdout when no
// path is given.
type GetMode struct {
	Config     *config.Config
	Logger     *util.Logger
	RemotePath string
	LocalPath  string

	Stdout io.Writer
}

func (m *GetMode) Run(ctx context.Context) error {
	sess, err := dial(ctx, m.Config, m.Logger)
	if err != nil || sess == nil {
		return err
	}
	defer sess.close()

	content, err := sess.files.Download(ctx, m.RemotePath)
	if err != nil {
		return err
	}

	if m.LocalPath == "" {
		writeOutput(stdoutOr(m.Stdout), content)
		return nil
	}
	if err := os.WriteFile(m.LocalPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("get: %w", err)
	}
	m.Logger.Info("get %s -> %s (%d bytes)", m.RemotePath, m.LocalPath, len(content))
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func stdoutOr(w io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return os.Stdout
}

// writeOutput prints device output with a trailing newline unless it
// already has one (or is empty).
func writeOutput(w io.Writer, out string) {
	if out == "" {
		return
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	io.WriteString(w, out)
}

// Package cmd wires up the CLI flags and dispatches to the device core.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"mpcat/config"
	"mpcat/internal/core"
	"mpcat/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X mpcat/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the appropriate mpcat action.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{
		Baud:        config.DefaultBaudRate,
		ChunkSize:   config.DefaultHexChunkSize,
		ReadTimeout: config.DefaultReadTimeout,
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("mpcat", flag.ContinueOnError)

	// ── device ───────────────────────────────────────────────────
	fs.StringVarP(&cfg.Device, "device", "d", cfg.Device,
		"Device: serial path, tcp:host:port, or ws://host:8266")
	fs.IntVarP(&cfg.Baud, "baud", "b", cfg.Baud, "Serial baud rate")
	fs.StringVar(&cfg.Password, "password", cfg.Password, "WebREPL password")

	var timeoutSec int
	fs.IntVarP(&timeoutSec, "timeout", "w", 0, "Connect timeout in seconds")

	// ── protocol ─────────────────────────────────────────────────
	fs.IntVar(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize,
		"Transfer chunk size in hex characters")
	fs.BoolVar(&cfg.NoRetry, "no-retry", cfg.NoRetry,
		"Disable per-line retry during raw execution")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec,
		"Reach a tcp: device via SSH bastion [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("mpcat %s\n", version)
		return nil
	}

	if timeoutSec > 0 {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}

	// ── positional arguments ─────────────────────────────────────
	remaining := fs.Args()
	if len(remaining) > 0 {
		cfg.Action = remaining[0]
		cfg.Args = remaining[1:]
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `mpcat - MicroPython REPL and file-transfer tool v%s

Talks to a board's interactive interpreter over serial, TCP, or WebREPL.

Usage:
  mpcat -d <device> repl                      Interactive REPL (Ctrl-] detaches)
  mpcat -d <device> run <file.py>             Run a local file on the device
  mpcat -d <device> exec '<code>'             Run an inline snippet
  mpcat -d <device> put <local> [remote]      Upload a file
  mpcat -d <device> get <remote> [local]      Download a file

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  mpcat -d /dev/ttyACM0 repl                  USB serial REPL
  mpcat -d /dev/ttyACM0 put main.py           Upload main.py
  mpcat -d tcp:192.168.4.1:23 run blink.py    Telnet REPL on the LAN
  mpcat -d tcp:10.0.0.7:23 -T lab@bastion repl  Board behind an SSH bastion
  mpcat -d ws://192.168.4.1:8266 get boot.py  WebREPL download
`)
}

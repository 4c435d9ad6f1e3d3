package core

import (
	"context"
	"fmt"

	"mpcat/config"
	"mpcat/internal/device"
	"mpcat/internal/metrics"
	"mpcat/internal/transfer"
	"mpcat/internal/transport"
	"mpcat/tunnel"
	"mpcat/util"
)

// Build constructs the Mode for the configured action.  This is the
// single dispatch point between the CLI and the engine.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	switch cfg.Action {
	case "repl":
		return &ReplMode{Config: cfg, Logger: logger}, nil
	case "run":
		return &RunMode{Config: cfg, Logger: logger, Path: cfg.Args[0]}, nil
	case "exec":
		return &ExecMode{Config: cfg, Logger: logger, Code: cfg.Args[0]}, nil
	case "put":
		m := &PutMode{Config: cfg, Logger: logger, LocalPath: cfg.Args[0]}
		if len(cfg.Args) > 1 {
			m.RemotePath = cfg.Args[1]
		}
		return m, nil
	case "get":
		m := &GetMode{Config: cfg, Logger: logger, RemotePath: cfg.Args[0]}
		if len(cfg.Args) > 1 {
			m.LocalPath = cfg.Args[1]
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown action %q", cfg.Action)
	}
}

// ── shared session plumbing ──────────────────────────────────────────

// session binds one connected device with the transfer layer and the
// resources that must be torn down with it.
type session struct {
	conn    *device.Conn
	files   *transfer.Files
	dialer  transport.Dialer
	metrics *metrics.Collector
	logger  *util.Logger
	cfg     *config.Config
}

// dial connects to the configured device.  A (nil, nil) result means
// the operator backed out of the open; callers treat it as a no-op.
func dial(ctx context.Context, cfg *config.Config, logger *util.Logger) (*session, error) {
	var dialer transport.Dialer
	if cfg.TunnelEnabled {
		dialer = tunnel.NewSSHTunnel(tunnel.FromConfig(cfg), logger)
	}

	m := metrics.New()
	opener := func(ctx context.Context) (transport.Transport, error) {
		return transport.Open(ctx, cfg, dialer, logger)
	}

	conn := device.New(cfg, opener, logger, m)
	ok, err := conn.Connect(ctx)
	if err != nil {
		if dialer != nil {
			dialer.Close()
		}
		return nil, err
	}
	if !ok {
		if dialer != nil {
			dialer.Close()
		}
		return nil, nil
	}

	return &session{
		conn:    conn,
		files:   newFiles(conn, cfg, logger, m),
		dialer:  dialer,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// newFiles builds the transfer orchestrator with the session's chunk
// sizing applied to the encoder.
func newFiles(r transfer.Runner, cfg *config.Config, logger *util.Logger, m *metrics.Collector) *transfer.Files {
	f := transfer.New(r, logger, m)
	f.Encoder.ChunkSize = cfg.ChunkSize
	return f
}

// close disconnects and reports session counters at high verbosity.
func (s *session) close() {
	if err := s.conn.Disconnect(); err != nil {
		s.logger.Debug("disconnect: %v", err)
	}
	if s.dialer != nil {
		if err := s.dialer.Close(); err != nil {
			s.logger.Debug("tunnel close: %v", err)
		}
	}
	s.logger.Verbose("session: %s", s.metrics.Snapshot())
}

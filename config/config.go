// Package config defines the runtime configuration for mpcat and
// provides helpers for parsing device and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "mpcat/internal/errors"
)

// Scheme identifies the kind of transport a device spec refers to.
type Scheme int

const (
	// SchemeSerial is a local serial port (e.g. /dev/ttyACM0, COM3).
	SchemeSerial Scheme = iota
	// SchemeTCP is a raw TCP REPL (e.g. tcp:192.168.4.1:23).
	SchemeTCP
	// SchemeWebREPL is a WebREPL websocket (e.g. ws://192.168.4.1:8266).
	SchemeWebREPL
	// SchemeUnknown is a spec no transport can open.
	SchemeUnknown
)

func (s Scheme) String() string {
	switch s {
	case SchemeSerial:
		return "serial"
	case SchemeTCP:
		return "tcp"
	case SchemeWebREPL:
		return "webrepl"
	default:
		return "unknown"
	}
}

// Config holds every tuneable for a single mpcat session.
type Config struct {
	// ── Device ───────────────────────────────────────────────────────
	Device   string // serial path, tcp:host:port, or ws://host:port
	Baud     int
	Password string // WebREPL password (prompted when empty)
	Timeout  time.Duration

	// ── Protocol tuning ──────────────────────────────────────────────
	ChunkSize   int           // hex characters per transfer chunk
	ReadTimeout time.Duration // prompt-scanner poll budget
	NoRetry     bool          // disable per-line retry in raw exec

	// ── SSH tunnel (TCP devices behind a bastion) ────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Action ───────────────────────────────────────────────────────
	Action string   // repl, run, exec, put, get
	Args   []string // action arguments

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// ── Device-spec parsing ──────────────────────────────────────────────

// DeviceScheme classifies the Device field.  Anything that is not a
// recognized network spec is treated as a serial port path.
func (c *Config) DeviceScheme() Scheme {
	switch {
	case c.Device == "":
		return SchemeUnknown
	case strings.HasPrefix(c.Device, "ws://"), strings.HasPrefix(c.Device, "wss://"):
		return SchemeWebREPL
	case strings.HasPrefix(c.Device, "tcp:"):
		return SchemeTCP
	case strings.Contains(c.Device, "://"):
		return SchemeUnknown
	default:
		return SchemeSerial
	}
}

// TCPAddress returns the host:port part of a tcp: device spec.
func (c *Config) TCPAddress() (string, error) {
	addr := strings.TrimPrefix(c.Device, "tcp:")
	host, port, ok := strings.Cut(addr, ":")
	if !ok || host == "" {
		return "", fmt.Errorf("invalid device spec %q - expected tcp:host:port", c.Device)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid port in device spec %q", c.Device)
	}
	return addr, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q - expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// actionArity maps every action to its min and max argument count.
var actionArity = map[string][2]int{
	"repl": {0, 0},
	"run":  {1, 1},
	"exec": {1, 1},
	"put":  {1, 2},
	"get":  {1, 2},
}

// Validate checks that the configuration is internally consistent.
// Every failure is a *errors.ConfigError naming the offending field and,
// where one helps, carrying a hint for the user.
func (c *Config) Validate() error {
	if c.Action == "" {
		return &ncerr.ConfigError{
			Field:   "action",
			Message: "an action is required",
			Hint:    "one of repl, run, exec, put, get (use --help for usage)",
		}
	}
	arity, ok := actionArity[c.Action]
	if !ok {
		return &ncerr.ConfigError{
			Field:   "action",
			Value:   c.Action,
			Message: "unknown action",
			Hint:    "one of repl, run, exec, put, get",
		}
	}
	if n := len(c.Args); n < arity[0] || n > arity[1] {
		return &ncerr.ConfigError{
			Field: "action",
			Value: c.Action,
			Message: fmt.Sprintf("takes %d to %d argument(s), got %d",
				arity[0], arity[1], n),
		}
	}

	if c.Device == "" {
		return &ncerr.ConfigError{
			Field:   "device",
			Message: "a device is required",
			Hint:    "use -d /dev/ttyACM0, -d tcp:host:port, or -d ws://host:8266",
		}
	}
	if c.DeviceScheme() == SchemeTCP {
		if _, err := c.TCPAddress(); err != nil {
			return &ncerr.ConfigError{
				Field:   "device",
				Value:   c.Device,
				Message: "expected tcp:host:port",
			}
		}
	}

	if c.Baud <= 0 {
		return &ncerr.ConfigError{
			Field:   "baud",
			Value:   c.Baud,
			Message: "baud rate must be positive",
			Hint:    "common rates are 9600 and 115200",
		}
	}
	if c.ChunkSize <= 0 || c.ChunkSize%2 != 0 {
		return &ncerr.ConfigError{
			Field:   "chunk-size",
			Value:   c.ChunkSize,
			Message: "chunk size must be a positive even number of hex characters",
		}
	}

	if c.TunnelEnabled {
		if c.DeviceScheme() != SchemeTCP {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Message: "-T only applies to tcp: devices (serial and WebREPL links cannot be tunnelled)",
			}
		}
		if c.TunnelHost == "" {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Message: "tunnel host is required",
				Hint:    "use -T [user@]host[:port]",
			}
		}
	}

	return nil
}

package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/imodctl/internal/protocol"
)

// Framing selects how a response is delimited on the wire.
type Framing string

const (
	// FramingSingleRead takes whatever one read of ReadBufferSize bytes
	// returns. Responses larger than the buffer are truncated.
	FramingSingleRead Framing = "single"
	// FramingDelimited terminates requests and responses with Delimiter.
	FramingDelimited Framing = "delimited"
)

// Config defines viewer session defaults.
type Config struct {
	Host string
	// Port 0 picks a free port with FindFreePort. Bind paces the retries
	// when that port is taken before it can be bound.
	Port int
	Bind BackoffConfig

	// Zero timeouts disable the deadline.
	AcceptTimeout time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration

	// Delimiter ends each frame under FramingDelimited. It must be a byte the
	// markup encoder never emits; NUL is the default.
	ReadBufferSize   int
	Framing          Framing
	Delimiter        byte
	MaxResponseBytes int

	// Indent is the markup indentation step for SendCommand.
	Indent string

	// InheritEnv passes this process's environment through to the viewer.
	// Env entries (KEY=VALUE) are appended after it.
	InheritEnv bool
	Env        []string
	// Args are passed to the viewer before --hostAddress.
	Args []string
}

// DefaultConfig matches the viewer's historical behaviour plus explicit
// deadlines.
func DefaultConfig() Config {
	return Config{
		Host:             "127.0.0.1",
		Bind:             DefaultBackoffConfig(),
		AcceptTimeout:    60 * time.Second,
		ReadTimeout:      120 * time.Second,
		WriteTimeout:     15 * time.Second,
		ReadBufferSize:   1024,
		Framing:          FramingSingleRead,
		Delimiter:        0,
		MaxResponseBytes: 1 << 20,
		Indent:           "  ",
		InheritEnv:       true,
	}
}

func (c Config) Validate() error {
	invalid := func(reason string) error {
		return &protocol.ValueError{Op: "session config", Reason: reason, Err: protocol.ErrInvalidArgument}
	}
	if strings.TrimSpace(c.Host) == "" {
		return invalid("host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return invalid(fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Bind.Attempts < 0 || c.Bind.InitialDelay < 0 || c.Bind.MaxDelay < 0 {
		return invalid("bind backoff must not be negative")
	}
	if c.AcceptTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return invalid("timeouts must not be negative")
	}
	if c.ReadBufferSize <= 0 {
		return invalid("read buffer size must be positive")
	}
	switch c.Framing {
	case FramingSingleRead:
	case FramingDelimited:
		if c.MaxResponseBytes <= 0 {
			return invalid("max response bytes must be positive")
		}
		if c.Delimiter == '\n' || c.Delimiter == '\r' || strings.IndexByte(c.Indent, c.Delimiter) >= 0 {
			return invalid(fmt.Sprintf("delimiter %q collides with markup whitespace", c.Delimiter))
		}
	default:
		return invalid(fmt.Sprintf("unknown framing %q", c.Framing))
	}
	for _, kv := range c.Env {
		if !strings.Contains(kv, "=") {
			return invalid(fmt.Sprintf("env entry %q is not KEY=VALUE", kv))
		}
	}
	return nil
}

// environ is the environment handed to the viewer process.
func (c Config) environ() []string {
	// Non-nil: a nil Cmd.Env would inherit everything.
	env := []string{}
	if c.InheritEnv {
		env = append(env, os.Environ()...)
	}
	return append(env, c.Env...)
}

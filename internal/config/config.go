package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/imodctl/internal/protocol/session"
)

var ErrMissingExecutable = errors.New("viewer config missing executable")

// ViewerConfig is everything viewerctl needs to launch and drive a viewer.
type ViewerConfig struct {
	Executable  string
	MetricsAddr string
	Session     session.Config
}

// viewer.toml key mapping to ViewerConfig.
type fileConfig struct {
	Executable       string   `toml:"executable"`
	MetricsAddr      string   `toml:"metrics_addr"`
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	AcceptTimeout    string   `toml:"accept_timeout"`
	ReadTimeout      string   `toml:"read_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	ReadBufferSize   int      `toml:"read_buffer_size"`
	Framing          string   `toml:"framing"`
	Delimiter        string   `toml:"delimiter"`
	MaxResponseBytes int      `toml:"max_response_bytes"`
	Indent           string   `toml:"indent"`
	InheritEnv       bool     `toml:"inherit_env"`
	Env              []string `toml:"env"`
	Args             []string `toml:"args"`
	BindAttempts     int      `toml:"bind_attempts"`
}

func DefaultViewerConfig() ViewerConfig {
	return ViewerConfig{Session: session.DefaultConfig()}
}

// LoadViewerConfig decodes path and validates the result.
func LoadViewerConfig(path string) (ViewerConfig, error) {
	cfg, err := DecodeViewerConfig(path)
	if err != nil {
		return ViewerConfig{}, err
	}
	if err := ValidateViewerConfig(cfg); err != nil {
		return ViewerConfig{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// DecodeViewerConfig overlays the keys present in path onto the defaults
// without validating, so callers can apply flag overrides first.
func DecodeViewerConfig(path string) (ViewerConfig, error) {
	cfg := DefaultViewerConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ViewerConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ViewerConfig{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("executable") {
		cfg.Executable = strings.TrimSpace(raw.Executable)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("host") {
		cfg.Session.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Session.Port = raw.Port
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"accept_timeout", raw.AcceptTimeout, &cfg.Session.AcceptTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.Session.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Session.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return ViewerConfig{}, fmt.Errorf("config parse failed (%s): %s: %w", path, d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("read_buffer_size") {
		cfg.Session.ReadBufferSize = raw.ReadBufferSize
	}
	if meta.IsDefined("framing") {
		cfg.Session.Framing = session.Framing(strings.ToLower(strings.TrimSpace(raw.Framing)))
	}
	if meta.IsDefined("delimiter") {
		if len(raw.Delimiter) != 1 {
			return ViewerConfig{}, fmt.Errorf("config parse failed (%s): delimiter must be one byte, got %q", path, raw.Delimiter)
		}
		cfg.Session.Delimiter = raw.Delimiter[0]
	}
	if meta.IsDefined("max_response_bytes") {
		cfg.Session.MaxResponseBytes = raw.MaxResponseBytes
	}
	if meta.IsDefined("indent") {
		cfg.Session.Indent = raw.Indent
	}
	if meta.IsDefined("inherit_env") {
		cfg.Session.InheritEnv = raw.InheritEnv
	}
	if meta.IsDefined("env") {
		cfg.Session.Env = raw.Env
	}
	if meta.IsDefined("args") {
		cfg.Session.Args = raw.Args
	}
	if meta.IsDefined("bind_attempts") {
		cfg.Session.Bind.Attempts = raw.BindAttempts
	}
	return cfg, nil
}

func ValidateViewerConfig(cfg ViewerConfig) error {
	if strings.TrimSpace(cfg.Executable) == "" {
		return ErrMissingExecutable
	}
	return cfg.Session.Validate()
}

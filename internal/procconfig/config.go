// Package procconfig loads the process-level configuration: the HTTP
// listener address, the template document path, the default sandbox image,
// and the audit log destination. This is a separate concern and a separate
// format (TOML, via pelletier/go-toml/v2) from the YAML template
// configuration document that internal/runner/config loads, mirroring how
// the teacher keeps its own TOML runner config decoupled from other
// subsystems.
package procconfig

import (
	"errors"
	"fmt"

	"github.com/luiscnext/secure-terminal-execution-server/internal/common"
	"github.com/luiscnext/secure-terminal-execution-server/internal/safefileio"
	"github.com/pelletier/go-toml/v2"
)

// Errors returned while loading or validating process configuration.
var (
	ErrListenAddrEmpty   = errors.New("server.listen_addr must not be empty")
	ErrTemplatePathEmpty = errors.New("templates.path must not be empty")
	ErrInvalidLogLevel   = errors.New("logging.level must be one of debug, info, warn, error")
)

// defaultReloadIntervalSeconds mirrors the teacher's own default, applied when a process
// config omits server.reload_interval_seconds.
const defaultReloadIntervalSeconds = 30

// Config is the root of the process configuration document.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Templates TemplatesConfig `toml:"templates"`
	Logging   LoggingConfig   `toml:"logging"`
	Audit     AuditConfig     `toml:"audit"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	ListenAddr            string `toml:"listen_addr"`
	ReloadIntervalSeconds int    `toml:"reload_interval_seconds"`
}

// TemplatesConfig locates the YAML template document and names the default
// sandbox image a template falls back to when it declares no override.
type TemplatesConfig struct {
	Path                string `toml:"path"`
	DefaultSandboxImage string `toml:"default_sandbox_image"`
}

// LoggingConfig controls the process-wide structured logger.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// AuditConfig names where audit records are written, independent of the
// process's own application log.
type AuditConfig struct {
	LogPath string `toml:"log_path"`
}

// Load reads and parses path as the process TOML configuration, applies
// defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := safefileio.SafeReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read process config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse process config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ReloadIntervalSeconds == 0 {
		cfg.Server.ReloadIntervalSeconds = defaultReloadIntervalSeconds
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Templates.DefaultSandboxImage == "" {
		cfg.Templates.DefaultSandboxImage = "distroless/base"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.ListenAddr == "" {
		return ErrListenAddrEmpty
	}
	if cfg.Templates.Path == "" {
		return ErrTemplatePathEmpty
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	timeout := cfg.Server.ReloadIntervalSeconds
	if err := common.ValidateTimeout(&timeout, "server.reload_interval_seconds"); err != nil {
		return err
	}

	return nil
}

package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a new ConfigBuilder with defaults and a log
// directory under dir. The resulting configuration is valid.
func NewTestConfig(dir string) *ConfigBuilder {
	cfg := base()
	cfg.Logging.LogDir = dir
	ApplyDefaults(cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithBaseURL sets the upstream base URL.
func (b *ConfigBuilder) WithBaseURL(u string) *ConfigBuilder {
	b.cfg.Upstream.BaseURL = u
	return b
}

// WithPort sets the listen port.
func (b *ConfigBuilder) WithPort(port int) *ConfigBuilder {
	b.cfg.Server.Port = port
	return b
}

// WithLogLevel sets the diagnostics level.
func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Server.LogLevel = level
	return b
}

// WithRetention sets segment retention.
func (b *ConfigBuilder) WithRetention(maxSegments int, maxAge time.Duration, schedule string) *ConfigBuilder {
	b.cfg.Logging.Retention = RetentionConfig{MaxSegments: maxSegments, MaxAge: maxAge, Schedule: schedule}
	return b
}

// WithIndex enables the entry index.
func (b *ConfigBuilder) WithIndex(backend, driver string) *ConfigBuilder {
	b.cfg.Logging.Index.Enabled = true
	b.cfg.Logging.Index.Backend = backend
	b.cfg.Logging.Index.Driver = driver
	return b
}

package config

import "time"

// Config is the root configuration structure for PromptLens.
// Files written for earlier releases (TOML sections [upstream], [logging]
// and [server]) load unchanged.
type Config struct {
	// Server contains the listen address and HTTP server limits.
	Server ServerConfig `yaml:"server" toml:"server"`

	// Upstream describes the OpenAI-compatible endpoint requests are forwarded to.
	Upstream UpstreamConfig `yaml:"upstream" toml:"upstream"`

	// Logging controls the JSONL log of prompts and responses.
	Logging LoggingConfig `yaml:"logging" toml:"logging"`

	// Telemetry contains operator-facing metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`

	// PIDFile is written at startup and removed on exit.
	// Default: <logging.log_dir>/plens.pid
	PIDFile string `yaml:"pid_file" toml:"pid_file"`
}

// ServerConfig contains configuration for the HTTP listener.
type ServerConfig struct {
	// Host is the bind address.
	// Default: "127.0.0.1"
	Host string `yaml:"host" toml:"host"`

	// Port is the bind port.
	// Default: 8000
	Port int `yaml:"port" toml:"port"`

	// LogLevel is the minimum level of operator diagnostics.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// LogFormat controls the diagnostics output format.
	// Options: "json", "text"
	// Default: "json"
	LogFormat string `yaml:"log_format" toml:"log_format"`

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" toml:"read_header_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. In-flight streams are cut
	// after it elapses.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	// MaxBodyBytes limits request bodies. Zero means unlimited.
	// Default: 32MiB
	MaxBodyBytes ByteSize `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// UpstreamConfig contains configuration for the upstream endpoint.
type UpstreamConfig struct {
	// BaseURL is the http(s) URL request paths are appended to.
	// A trailing slash is removed.
	// Default: "http://127.0.0.1:4000"
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// TimeoutS is the connect, response header and idle read timeout in seconds.
	// Default: 60
	TimeoutS float64 `yaml:"timeout_s" toml:"timeout_s"`

	// VerifySSL enables TLS certificate verification.
	// Default: true
	VerifySSL bool `yaml:"verify_ssl" toml:"verify_ssl"`

	// Headers are added to every forwarded request unless the client sent the
	// same header.
	Headers map[string]string `yaml:"headers" toml:"headers"`
}

// Timeout returns TimeoutS as a duration.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutS * float64(time.Second))
}

// LoggingConfig contains configuration for the JSONL log.
type LoggingConfig struct {
	// LogDir is the directory holding log segments. A leading ~ is expanded.
	// Default: "~/.promptlens/logs"
	LogDir string `yaml:"log_dir" toml:"log_dir"`

	// Filename is the name of the active log file.
	// Default: "promptlens.jsonl"
	Filename string `yaml:"filename" toml:"filename"`

	// MaxFileBytes rotates the active file before it would exceed this size.
	// Zero disables rotation.
	// Default: 50MiB
	MaxFileBytes ByteSize `yaml:"max_file_bytes" toml:"max_file_bytes"`

	// MaxPromptBytes bounds the serialized content stored per entry.
	// Default: 256KiB
	MaxPromptBytes ByteSize `yaml:"max_prompt_bytes" toml:"max_prompt_bytes"`

	// IncludeRequestID adds a "request_id" field to every entry.
	// Default: false
	IncludeRequestID bool `yaml:"include_request_id" toml:"include_request_id"`

	// Watch reopens the active file when another process moves it.
	// Default: true
	Watch bool `yaml:"watch" toml:"watch"`

	// Retention controls pruning of rotated segments.
	Retention RetentionConfig `yaml:"retention" toml:"retention"`

	// Index controls the request id index of log entries.
	Index IndexConfig `yaml:"index" toml:"index"`
}

// RetentionConfig contains configuration for segment pruning.
type RetentionConfig struct {
	// MaxSegments is the number of rotated segments to keep. 0 keeps all.
	MaxSegments int `yaml:"max_segments" toml:"max_segments"`

	// MaxAge removes rotated segments older than this. 0 disables it.
	MaxAge time.Duration `yaml:"max_age" toml:"max_age"`

	// Schedule is a cron expression for pruning runs.
	// Default: "0 3 * * *" (daily at 3 AM)
	Schedule string `yaml:"schedule" toml:"schedule"`
}

// IndexConfig contains configuration for the entry index.
type IndexConfig struct {
	// Enabled turns indexing on.
	// Default: false
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Backend selects the store.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend" toml:"backend"`

	// Driver is the database/sql driver for the sqlite backend.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver" toml:"driver"`

	// Path is the database file.
	// Default: <log_dir>/index.db
	Path string `yaml:"path" toml:"path"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Path is the HTTP path of the Prometheus endpoint. It is served by
	// PromptLens itself and never forwarded.
	// Default: "/_promptlens/metrics"
	Path string `yaml:"path" toml:"path"`

	// HealthPath is the HTTP path of the liveness endpoint.
	// Default: "/_promptlens/health"
	HealthPath string `yaml:"health_path" toml:"health_path"`

	// Namespace is the metric name prefix.
	// Default: "promptlens"
	Namespace string `yaml:"namespace" toml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets" toml:"request_duration_buckets"`
}

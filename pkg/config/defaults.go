package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8000
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMaxBodyBytes      = ByteSize(32 << 20)

	// Upstream defaults
	DefaultBaseURL   = "http://127.0.0.1:4000"
	DefaultTimeoutS  = 60.0
	DefaultVerifySSL = true

	// Logging defaults
	DefaultLogDir         = "~/.promptlens/logs"
	DefaultFilename       = "promptlens.jsonl"
	DefaultMaxFileBytes   = ByteSize(50 << 20)
	DefaultMaxPromptBytes = ByteSize(256 << 10)
	MinPromptBytes        = ByteSize(2) // an encoded empty string
	DefaultWatch          = true
	DefaultRetentionCron  = "0 3 * * *"
	DefaultIndexBackend   = "sqlite"
	DefaultIndexDriver    = "sqlite"
	DefaultIndexFilename  = "index.db"
	DefaultPIDFilename    = "plens.pid"

	// Telemetry defaults
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/_promptlens/metrics"
	DefaultHealthPath       = "/_promptlens/health"
	DefaultMetricsNamespace = "promptlens"
)

// DefaultRequestDurationBuckets are the request duration histogram buckets in seconds.
var DefaultRequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Default returns a configuration holding every default value.
func Default() *Config {
	cfg := base()
	ApplyDefaults(cfg)
	return cfg
}

// base holds the defaults ApplyDefaults cannot infer from a zero value.
// Files are decoded on top of it.
func base() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			VerifySSL: DefaultVerifySSL,
		},
		Logging: LoggingConfig{
			MaxFileBytes:   DefaultMaxFileBytes,
			MaxPromptBytes: DefaultMaxPromptBytes,
			Watch:          DefaultWatch,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
}

// ApplyDefaults sets defaults for fields that have zero values and
// normalizes paths and URLs. It is idempotent.
//
// Zero is a meaningful value for the byte limits and booleans, so those
// are not touched.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = DefaultLogFormat
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Upstream defaults
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultBaseURL
	}
	cfg.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Upstream.BaseURL), "/")
	if cfg.Upstream.TimeoutS == 0 {
		cfg.Upstream.TimeoutS = DefaultTimeoutS
	}

	// Logging defaults
	if cfg.Logging.LogDir == "" {
		cfg.Logging.LogDir = DefaultLogDir
	}
	cfg.Logging.LogDir = ExpandHome(cfg.Logging.LogDir)
	if cfg.Logging.Filename == "" {
		cfg.Logging.Filename = DefaultFilename
	}
	if cfg.Logging.Retention.Schedule == "" {
		cfg.Logging.Retention.Schedule = DefaultRetentionCron
	}
	if cfg.Logging.Index.Backend == "" {
		cfg.Logging.Index.Backend = DefaultIndexBackend
	}
	if cfg.Logging.Index.Driver == "" {
		cfg.Logging.Index.Driver = DefaultIndexDriver
	}
	if cfg.Logging.Index.Path == "" {
		cfg.Logging.Index.Path = filepath.Join(cfg.Logging.LogDir, DefaultIndexFilename)
	}
	cfg.Logging.Index.Path = ExpandHome(cfg.Logging.Index.Path)

	if cfg.PIDFile == "" {
		cfg.PIDFile = filepath.Join(cfg.Logging.LogDir, DefaultPIDFilename)
	}
	cfg.PIDFile = ExpandHome(cfg.PIDFile)

	// Telemetry defaults
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.HealthPath == "" {
		cfg.Telemetry.Metrics.HealthPath = DefaultHealthPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
}

// ExpandHome replaces a leading "~" with the current user's home directory.
// The path is returned unchanged when the home directory is unknown.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

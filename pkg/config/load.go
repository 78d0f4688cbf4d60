package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "PROMPTLENS_"

// LoadConfig loads configuration from a TOML or YAML file at the specified
// path. It applies default values, validates the configuration, and returns
// any errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg := base()
	if err := DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides. An empty path loads defaults only.
//
// The loading sequence is:
// 1. Start from the default values
// 2. Decode the file, if any
// 3. Apply environment variable overrides
// 4. Apply remaining defaults and validate
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Prepare(path)
	if err != nil {
		return nil, err
	}
	if err := Finalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Prepare returns the configuration from path (if non-empty) with environment
// overrides applied, before derived defaults are filled in. Callers apply
// command line flags to it and then call Finalize.
func Prepare(path string) (*Config, error) {
	cfg := base()
	if path != "" {
		if err := DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults and validates cfg.
func Finalize(cfg *Config) error {
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// DecodeFile decodes the file at path into cfg. The format is chosen by
// extension: ".toml", ".yaml" or ".yml".
func DecodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported configuration format %q for %q (use .toml, .yaml or .yml)", ext, path)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to cfg.
// Variables use the format PROMPTLENS_SECTION_FIELD, for example
// PROMPTLENS_UPSTREAM_BASE_URL. A value that does not parse is an error.
func ApplyEnvOverrides(cfg *Config) error {
	var errs []FieldError
	env := func(name string) (string, bool) {
		return os.LookupEnv(EnvPrefix + name)
	}
	bad := func(name, val string, err error) {
		errs = append(errs, FieldError{Field: EnvPrefix + name, Message: fmt.Sprintf("invalid value %q: %v", val, err)})
	}

	str := func(name string, dst *string) {
		if val, ok := env(name); ok {
			*dst = val
		}
	}
	integer := func(name string, dst *int) {
		if val, ok := env(name); ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				bad(name, val, err)
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if val, ok := env(name); ok {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				bad(name, val, err)
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if val, ok := env(name); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				bad(name, val, err)
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if val, ok := env(name); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				bad(name, val, err)
				return
			}
			*dst = d
		}
	}
	size := func(name string, dst *ByteSize) {
		if val, ok := env(name); ok {
			b, err := ParseByteSize(val)
			if err != nil {
				bad(name, val, err)
				return
			}
			*dst = b
		}
	}

	// Server overrides
	str("SERVER_HOST", &cfg.Server.Host)
	integer("SERVER_PORT", &cfg.Server.Port)
	str("SERVER_LOG_LEVEL", &cfg.Server.LogLevel)
	str("SERVER_LOG_FORMAT", &cfg.Server.LogFormat)
	duration("SERVER_READ_HEADER_TIMEOUT", &cfg.Server.ReadHeaderTimeout)
	duration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	size("SERVER_MAX_BODY_BYTES", &cfg.Server.MaxBodyBytes)

	// Upstream overrides
	str("UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	float("UPSTREAM_TIMEOUT_S", &cfg.Upstream.TimeoutS)
	boolean("UPSTREAM_VERIFY_SSL", &cfg.Upstream.VerifySSL)

	// Logging overrides
	str("LOGGING_LOG_DIR", &cfg.Logging.LogDir)
	str("LOGGING_FILENAME", &cfg.Logging.Filename)
	size("LOGGING_MAX_FILE_BYTES", &cfg.Logging.MaxFileBytes)
	size("LOGGING_MAX_PROMPT_BYTES", &cfg.Logging.MaxPromptBytes)
	boolean("LOGGING_INCLUDE_REQUEST_ID", &cfg.Logging.IncludeRequestID)
	boolean("LOGGING_WATCH", &cfg.Logging.Watch)
	integer("LOGGING_RETENTION_MAX_SEGMENTS", &cfg.Logging.Retention.MaxSegments)
	duration("LOGGING_RETENTION_MAX_AGE", &cfg.Logging.Retention.MaxAge)
	str("LOGGING_RETENTION_SCHEDULE", &cfg.Logging.Retention.Schedule)
	boolean("LOGGING_INDEX_ENABLED", &cfg.Logging.Index.Enabled)
	str("LOGGING_INDEX_BACKEND", &cfg.Logging.Index.Backend)
	str("LOGGING_INDEX_DRIVER", &cfg.Logging.Index.Driver)
	str("LOGGING_INDEX_PATH", &cfg.Logging.Index.Path)

	// Telemetry overrides
	boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	str("TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)

	str("PID_FILE", &cfg.PIDFile)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

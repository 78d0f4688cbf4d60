package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "upstream.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.Host == "" {
		errs = append(errs, FieldError{
			Field:   "server.host",
			Message: "host is required",
		})
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", cfg.Port),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, FieldError{
			Field:   "server.log_level",
			Message: fmt.Sprintf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.LogFormat)] {
		errs = append(errs, FieldError{
			Field:   "server.log_format",
			Message: fmt.Sprintf("invalid log format %q: must be 'json' or 'text'", cfg.LogFormat),
		})
	}

	if cfg.ReadHeaderTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_header_timeout",
			Message: "read header timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_body_bytes",
			Message: "max body bytes must be non-negative",
		})
	}

	return errs
}

// validateUpstream validates upstream configuration.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: fmt.Sprintf("base_url must be a full http(s) URL, e.g. %s (got %q)", DefaultBaseURL, cfg.BaseURL),
		})
	} else if u.RawQuery != "" || u.Fragment != "" {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: "base_url must not contain a query or fragment",
		})
	}

	if cfg.TimeoutS <= 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.timeout_s",
			Message: "timeout must be positive",
		})
	}

	for name := range cfg.Headers {
		if name == "" || strings.ContainsAny(name, " \t\r\n:") {
			errs = append(errs, FieldError{
				Field:   "upstream.headers",
				Message: fmt.Sprintf("invalid header name %q", name),
			})
		}
	}

	return errs
}

// validateLogging validates JSONL log configuration.
func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	if cfg.LogDir == "" {
		errs = append(errs, FieldError{
			Field:   "logging.log_dir",
			Message: "log directory is required",
		})
	}
	if cfg.Filename == "" || cfg.Filename != filepath.Base(cfg.Filename) || cfg.Filename == "." || cfg.Filename == ".." {
		errs = append(errs, FieldError{
			Field:   "logging.filename",
			Message: fmt.Sprintf("filename %q must be a plain file name", cfg.Filename),
		})
	}
	if cfg.MaxFileBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "logging.max_file_bytes",
			Message: "max file bytes must be non-negative",
		})
	}
	if cfg.MaxPromptBytes < MinPromptBytes {
		errs = append(errs, FieldError{
			Field:   "logging.max_prompt_bytes",
			Message: fmt.Sprintf("max prompt bytes must be at least %d", MinPromptBytes),
		})
	}

	if cfg.Retention.MaxSegments < 0 {
		errs = append(errs, FieldError{
			Field:   "logging.retention.max_segments",
			Message: "max segments must be non-negative",
		})
	}
	if cfg.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "logging.retention.max_age",
			Message: "max age must be non-negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "logging.retention.schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.Schedule, err),
		})
	}

	if cfg.Index.Enabled {
		switch cfg.Index.Backend {
		case "memory":
		case "sqlite":
			if cfg.Index.Driver != "sqlite" && cfg.Index.Driver != "sqlite3" {
				errs = append(errs, FieldError{
					Field:   "logging.index.driver",
					Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.Index.Driver),
				})
			}
			if cfg.Index.Path == "" {
				errs = append(errs, FieldError{
					Field:   "logging.index.path",
					Message: "index path is required for the sqlite backend",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "logging.index.backend",
				Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Index.Backend),
			})
		}
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	paths := []struct{ field, value string }{
		{"telemetry.metrics.health_path", cfg.Metrics.HealthPath},
		{"telemetry.metrics.path", cfg.Metrics.Path},
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.value, "/") {
			errs = append(errs, FieldError{
				Field:   p.field,
				Message: fmt.Sprintf("path %q must start with '/'", p.value),
			})
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Path == cfg.Metrics.HealthPath {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics and health paths must differ",
		})
	}

	for i, b := range cfg.Metrics.RequestDurationBuckets {
		if b <= 0 || (i > 0 && b <= cfg.Metrics.RequestDurationBuckets[i-1]) {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.request_duration_buckets",
				Message: "buckets must be positive and increasing",
			})
			break
		}
	}

	return errs
}

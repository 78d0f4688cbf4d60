// Package config provides configuration management for PromptLens.
//
// Configuration is read from a TOML or YAML file, chosen by extension,
// with environment variable overrides. Command line flags are applied by
// the caller between Prepare and Finalize.
//
// # Configuration Loading
//
//  1. From a file only:
//     cfg, err := config.LoadConfig("promptlens.toml")
//
//  2. From a file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("promptlens.yaml")
//
//  3. With flags applied on top:
//     cfg, err := config.Prepare(path)
//     cfg.Server.Port = port
//     err = config.Finalize(cfg)
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PROMPTLENS_SECTION_FIELD:
//
//   - PROMPTLENS_UPSTREAM_BASE_URL overrides upstream.base_url
//   - PROMPTLENS_LOGGING_MAX_FILE_BYTES overrides logging.max_file_bytes
//   - PROMPTLENS_SERVER_LOG_LEVEL overrides server.log_level
//
// # Configuration Precedence
//
// Later sources override earlier ones:
//
//  1. Default values (defined in defaults.go)
//  2. Values from the configuration file
//  3. Environment variable overrides
//  4. Command line flags
//
// Paths derived from logging.log_dir (the PID file and the index database)
// are resolved last, so they follow a log directory set by any source.
//
// # Example Configuration
//
//	[upstream]
//	base_url = "https://api.openai.com/v1"
//	timeout_s = 60
//	verify_ssl = true
//
//	[upstream.headers]
//	Authorization = "Bearer sk-..."
//
//	[logging]
//	log_dir = "~/.promptlens/logs"
//	max_file_bytes = "50MiB"
//	max_prompt_bytes = 262144
//
//	[server]
//	log_level = "info"
package config

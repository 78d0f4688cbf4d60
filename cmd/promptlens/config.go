package main

import (
	"os"

	"github.com/spf13/cobra"

	"promptlens-dev/promptlens/pkg/cli"
	"promptlens-dev/promptlens/pkg/config"
)

// defaultConfigNames are looked up in the working directory when --config
// is not given.
var defaultConfigNames = []string{"promptlens.toml", "promptlens.yaml", "promptlens.yml"}

func defaultConfigPath() string {
	for _, name := range defaultConfigNames {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name
		}
	}
	return ""
}

// loadConfig resolves the configuration from defaults, the config file,
// PROMPTLENS_* environment variables and command line flags, in that order.
// It returns the file that was loaded, or "".
//
// With requireUpstream, running on defaults alone is refused: the upstream
// has to come from a file, the environment or --llm-endpoint.
func loadConfig(cmd *cobra.Command, requireUpstream bool) (*config.Config, string, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigPath()
	}
	if requireUpstream && path == "" && !cmd.Flags().Changed("llm-endpoint") {
		if _, ok := os.LookupEnv(config.EnvPrefix + "UPSTREAM_BASE_URL"); !ok {
			return nil, "", cli.NewConfigError("", "Provide --config or --llm-endpoint (or create ./promptlens.toml).")
		}
	}

	cfg, err := config.Prepare(path)
	if err != nil {
		return nil, "", cli.WrapConfigError("failed to load configuration", err)
	}
	applyFlags(cmd, cfg)
	if err := config.Finalize(cfg); err != nil {
		return nil, "", cli.WrapConfigError("invalid configuration", err)
	}
	return cfg, path, nil
}

// applyFlags copies explicitly set flags into cfg. Flags a command does not
// define are never reported as changed.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("log-dir") {
		cfg.Logging.LogDir = logDir
	}
	if flags.Changed("log-level") {
		cfg.Server.LogLevel = logLevel
	}
	if flags.Changed("host") {
		cfg.Server.Host = runFlags.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = runFlags.port
	}
	if flags.Changed("llm-endpoint") {
		cfg.Upstream.BaseURL = runFlags.llmEndpoint
	}
	if flags.Changed("timeout") {
		cfg.Upstream.TimeoutS = runFlags.timeoutS
	}
	if flags.Changed("max-log-file-bytes") {
		cfg.Logging.MaxFileBytes = runFlags.maxLogFileBytes
	}
	if flags.Changed("max-prompt-bytes") {
		cfg.Logging.MaxPromptBytes = runFlags.maxPromptBytes
	}
	if flags.Changed("pid-file") {
		cfg.PIDFile = runFlags.pidFile
	}
}

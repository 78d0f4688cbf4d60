package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promptlens-dev/promptlens/pkg/config"
)

var (
	// Global flags
	cfgFile  string
	logDir   string
	logLevel string
)

// Proxy flags that override the config file.
var runFlags struct {
	host            string
	port            int
	llmEndpoint     string
	timeoutS        float64
	maxLogFileBytes config.ByteSize
	maxPromptBytes  config.ByteSize
	pidFile         string
}

var rootCmd = &cobra.Command{
	Use:   "promptlens",
	Short: "PromptLens - OpenAI-compatible HTTP proxy for logging LLM interactions",
	Long: `PromptLens forwards every request to an OpenAI-compatible endpoint unchanged
and records the user input and the model response, including tool calls, as
JSON lines. Streaming responses are relayed as they arrive.

Examples:
  # Run with upstream endpoint
  promptlens --llm-endpoint http://127.0.0.1:4000 --port 8080

  # Use config file
  promptlens --config ./promptlens.toml

  # Custom log directory
  promptlens --llm-endpoint http://localhost:4000 --log-dir ./logs`,
	Version:       Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runProxy,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to TOML or YAML config file (default ./promptlens.toml if present)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "directory to write JSONL logs (default ~/.promptlens/logs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "diagnostics level (debug, info, warn, error)")

	flags := rootCmd.Flags()
	flags.StringVar(&runFlags.host, "host", config.DefaultHost, "bind host")
	flags.IntVar(&runFlags.port, "port", config.DefaultPort, "bind port")
	flags.StringVar(&runFlags.llmEndpoint, "llm-endpoint", "", "upstream OpenAI-compatible base URL (overrides config)")
	flags.Float64Var(&runFlags.timeoutS, "timeout", 0, "upstream request timeout in seconds (overrides config)")
	flags.Var(&runFlags.maxLogFileBytes, "max-log-file-bytes", "rotate logs when the file would exceed this size, e.g. 50MiB (overrides config)")
	flags.Var(&runFlags.maxPromptBytes, "max-prompt-bytes", "max bytes of content stored per log entry (overrides config)")
	flags.StringVar(&runFlags.pidFile, "pid-file", "", "PID file path (default <log-dir>/plens.pid)")
}

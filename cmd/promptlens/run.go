package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"promptlens-dev/promptlens/pkg/cli"
	"promptlens-dev/promptlens/pkg/telemetry/logging"
)

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	logger, err := setupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	a.printBanner(out, source)

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	if err := a.Run(ctx, out); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

func setupLogging(level, format string) (*slog.Logger, error) {
	logger, err := logging.Setup(logging.Config{
		Level:  level,
		Format: format,
		Redact: true,
	})
	if err != nil {
		return nil, cli.WrapConfigError("invalid logging configuration", err)
	}
	return logger, nil
}

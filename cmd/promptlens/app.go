package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/dustin/go-humanize"

	"promptlens-dev/promptlens/pkg/cli"
	"promptlens-dev/promptlens/pkg/config"
	"promptlens-dev/promptlens/pkg/index"
	"promptlens-dev/promptlens/pkg/jsonl"
	"promptlens-dev/promptlens/pkg/proxy"
	"promptlens-dev/promptlens/pkg/record"
	"promptlens-dev/promptlens/pkg/server"
	"promptlens-dev/promptlens/pkg/telemetry/health"
	"promptlens-dev/promptlens/pkg/telemetry/logging"
	"promptlens-dev/promptlens/pkg/telemetry/metrics"
)

// app holds the running components of the proxy.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	pid      *cli.PIDFile
	metrics  *metrics.Collector
	store    index.Store
	writer   *jsonl.Writer
	pruner   *jsonl.Pruner
	upstream *proxy.Upstream
	health   *health.Checker
	server   *server.Server
}

// newApp wires every component from cfg. On error, whatever was already
// opened is closed again.
func newApp(cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.pid, err = cli.AcquirePIDFile(cfg.PIDFile)
	if err != nil {
		return nil, err
	}

	a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	var recorder *index.Recorder
	if cfg.Logging.Index.Enabled {
		a.store, err = openStore(cfg.Logging.Index)
		if err != nil {
			return nil, err
		}
		recorder = index.NewRecorder(a.store, logging.GetRequestID)
	}

	writerCfg := jsonl.Config{
		Dir:          cfg.Logging.LogDir,
		Filename:     cfg.Logging.Filename,
		MaxFileBytes: int64(cfg.Logging.MaxFileBytes),
		Watch:        cfg.Logging.Watch,
		OnRotate: func(active, rotated string) {
			if recorder != nil {
				recorder.Rotated(active, rotated)
			}
			a.metrics.RecordRotation()
		},
		Logger: logger.With("component", "jsonl"),
	}
	if recorder != nil {
		writerCfg.OnAppend = recorder.Appended
	}
	a.writer, err = jsonl.Open(writerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	a.pruner = jsonl.NewPruner(a.writer.Path(), jsonl.RetentionConfig{
		MaxSegments: cfg.Logging.Retention.MaxSegments,
		MaxAge:      cfg.Logging.Retention.MaxAge,
		Schedule:    cfg.Logging.Retention.Schedule,
	})
	a.pruner.OnRemove = func(segment string) {
		if recorder != nil {
			recorder.Removed(segment)
		}
		a.metrics.RecordPruned(1)
	}

	a.upstream, err = proxy.NewUpstream(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	handler, err := proxy.NewHandler(proxy.Options{
		Upstream:     a.upstream,
		Writer:       a.writer,
		Builder:      record.NewBuilder(cfg.Logging.MaxPromptBytes.Int(), cfg.Logging.IncludeRequestID),
		Metrics:      a.metrics,
		Logger:       logger.With("component", "proxy"),
		MaxBodyBytes: int64(cfg.Server.MaxBodyBytes),
	})
	if err != nil {
		return nil, err
	}

	a.health = health.New(Version, 0)
	a.health.RegisterCheck("log", func(ctx context.Context) error {
		_, err := os.Stat(a.writer.Path())
		return err
	})
	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		a.health.RegisterCheck("index", p.Ping)
	}

	a.server, err = server.New(server.Options{
		Server:         cfg.Server,
		Metrics:        cfg.Telemetry.Metrics,
		Proxy:          handler,
		Health:         a.health.Handler(),
		MetricsHandler: a.metrics.Handler(),
		Logger:         logger.With("component", "server"),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Run listens, starts the retention schedule and serves until ctx is
// cancelled. The startup banner is written to out once the port is bound.
func (a *app) Run(ctx context.Context, out io.Writer) error {
	ln, err := net.Listen("tcp", a.server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr(), err)
	}
	if err := a.pruner.Start(ctx); err != nil {
		ln.Close()
		return err
	}

	a.printListening(out, ln.Addr().String())

	err = a.server.Serve(ctx, ln)
	fmt.Fprintln(out, "✓ Server stopped")
	return err
}

// Close releases every component in reverse start order.
func (a *app) Close() error {
	var errs []error
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.upstream != nil {
		a.upstream.Close()
	}
	if a.writer != nil {
		errs = append(errs, a.writer.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.pid != nil {
		errs = append(errs, a.pid.Release())
	}
	return errors.Join(errs...)
}

func (a *app) printBanner(out io.Writer, source string) {
	cfg := a.cfg
	fmt.Fprintf(out, "PromptLens v%s\n", Version)
	if source != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", source)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")
	fmt.Fprintf(out, "✓ Upstream: %s (timeout %gs)\n", cfg.Upstream.BaseURL, cfg.Upstream.TimeoutS)

	rotate := "rotation disabled"
	if cfg.Logging.MaxFileBytes > 0 {
		rotate = "rotating at " + humanize.IBytes(uint64(cfg.Logging.MaxFileBytes))
	}
	fmt.Fprintf(out, "✓ Logging to %s (%s)\n", a.writer.Path(), rotate)

	if cfg.Logging.Index.Enabled {
		fmt.Fprintf(out, "✓ Entry index: %s\n", cfg.Logging.Index.Path)
	}
	if cfg.Logging.Retention.MaxSegments > 0 || cfg.Logging.Retention.MaxAge > 0 {
		fmt.Fprintf(out, "✓ Log retention scheduled (%s)\n", cfg.Logging.Retention.Schedule)
	}
}

func (a *app) printListening(out io.Writer, addr string) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Server listening on %s\n", addr)
	fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", addr, a.cfg.Telemetry.Metrics.HealthPath)
	if a.cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, a.cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}

// openStore opens the configured index backend.
func openStore(cfg config.IndexConfig) (index.Store, error) {
	switch cfg.Backend {
	case "memory":
		return index.NewMemoryStore(), nil
	case "sqlite":
		sqliteCfg := index.DefaultSQLiteConfig(cfg.Path)
		sqliteCfg.Driver = cfg.Driver
		return index.NewSQLiteStore(sqliteCfg)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}

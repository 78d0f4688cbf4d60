package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"promptlens-dev/promptlens/pkg/cli"
	"promptlens-dev/promptlens/pkg/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the entry index",
}

var rebuildFlags struct {
	quiet bool
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the entry index from the log segments",
	Long: `Rebuild the entry index by scanning the active log file and every rotated
segment. Existing locations of those files are replaced. Lines without a
request_id (logging.include_request_id disabled) cannot be indexed.

Stop the proxy first: lines appended during a rebuild may be indexed twice.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

func init() {
	indexRebuildCmd.Flags().BoolVarP(&rebuildFlags.quiet, "quiet", "q", false, "do not show progress")
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	if cfg.Logging.Index.Backend != "sqlite" {
		return cli.NewConfigError("logging.index.backend", "rebuild requires the sqlite backend")
	}

	store, err := openStore(cfg.Logging.Index)
	if err != nil {
		return cli.NewCommandError("index rebuild", err)
	}
	defer store.Close()

	var progress index.Progress
	var reporter cli.ProgressReporter
	if !rebuildFlags.quiet {
		reporter = cli.NewProgressReporter(cmd.ErrOrStderr())
		started := false
		progress = func(done, total int64) {
			if !started {
				reporter.Start(total)
				started = true
			}
			reporter.Update(done)
		}
	}

	path := filepath.Join(cfg.Logging.LogDir, cfg.Logging.Filename)
	stats, err := index.Rebuild(cmd.Context(), store, path, progress)
	if reporter != nil {
		if err != nil {
			reporter.Error(err)
		} else {
			reporter.Finish()
		}
	}
	if err != nil {
		return cli.NewCommandError("index rebuild", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Indexed %s entries from %d files (%s lines skipped)\n",
		humanize.Comma(int64(stats.Indexed)), stats.Segments, humanize.Comma(int64(stats.Skipped)))
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Index written to %s\n", cfg.Logging.Index.Path)
	return nil
}

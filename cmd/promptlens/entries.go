package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"promptlens-dev/promptlens/pkg/cli"
	"promptlens-dev/promptlens/pkg/config"
	"promptlens-dev/promptlens/pkg/index"
)

// formatLines prints the logged lines as they are stored.
const formatLines = "lines"

var entriesFlags struct {
	requestID string
	tail      int
	format    string
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Show logged entries",
	Long: `Show log entries found through the entry index.

The index is written while the proxy runs with logging.index.enabled and the
sqlite backend, and can be rebuilt from existing segments with
"promptlens index rebuild".

Examples:
  # Both entries of one request
  promptlens entries --request-id 0b7e6a52-93c4-4a1f-9f7e-3c5a0d6f1e2b

  # Locations of the last 50 entries as CSV
  promptlens entries --tail 50 --format csv`,
	Args: cobra.NoArgs,
	RunE: runEntries,
}

func init() {
	rootCmd.AddCommand(entriesCmd)

	entriesCmd.Flags().StringVar(&entriesFlags.requestID, "request-id", "", "show the entries of this request")
	entriesCmd.Flags().IntVar(&entriesFlags.tail, "tail", 20, "show the most recent entries")
	entriesCmd.Flags().StringVarP(&entriesFlags.format, "format", "f", formatLines, "output format (lines, text, json, csv)")
}

func runEntries(cmd *cobra.Command, args []string) error {
	format := entriesFlags.format
	if format != formatLines {
		f, err := cli.ParseOutputFormat(format)
		if err != nil {
			return cli.NewConfigError("format", err.Error())
		}
		format = string(f)
	}
	if entriesFlags.requestID == "" && entriesFlags.tail <= 0 {
		return cli.NewConfigError("tail", "must be positive")
	}

	cfg, _, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}
	store, err := openReadStore(cfg.Logging.Index)
	if err != nil {
		return cli.NewCommandError("entries", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	var locs []index.Location
	if entriesFlags.requestID != "" {
		locs, err = store.Lookup(ctx, entriesFlags.requestID)
	} else {
		locs, err = store.Recent(ctx, entriesFlags.tail)
		// oldest first, like tail
		for i, j := 0, len(locs)-1; i < j; i, j = i+1, j-1 {
			locs[i], locs[j] = locs[j], locs[i]
		}
	}
	if err != nil {
		return cli.NewCommandError("entries", err)
	}

	return writeEntries(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Logging.LogDir, locs, format)
}

// openReadStore opens an existing sqlite index. The memory backend only
// lives inside a running proxy.
func openReadStore(cfg config.IndexConfig) (index.Store, error) {
	if cfg.Backend != "sqlite" {
		return nil, fmt.Errorf("the %s index backend cannot be read from another process", cfg.Backend)
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no entry index at %s (enable logging.index.enabled or run 'promptlens index rebuild')", cfg.Path)
		}
		return nil, err
	}
	return openStore(cfg)
}

// entryView is one location with its logged line, for JSON output.
type entryView struct {
	RequestID string          `json:"request_id"`
	Kind      string          `json:"kind"`
	Type      string          `json:"type"`
	Segment   string          `json:"segment"`
	Offset    int64           `json:"offset"`
	Length    int             `json:"length"`
	Truncated bool            `json:"truncated"`
	Timestamp string          `json:"timestamp"`
	Entry     json.RawMessage `json:"entry,omitempty"`
}

// locationTable renders locations as text or CSV rows.
type locationTable []index.Location

func (t locationTable) Header() []string {
	return []string{"timestamp", "request_id", "kind", "type", "truncated", "segment", "offset", "length"}
}

func (t locationTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, l := range t {
		rows = append(rows, []string{
			l.Timestamp,
			l.RequestID,
			l.Kind,
			l.Type,
			strconv.FormatBool(l.Truncated),
			l.Segment,
			strconv.FormatInt(l.Offset, 10),
			strconv.Itoa(l.Length),
		})
	}
	return rows
}

// writeEntries prints locs in format. Lines that cannot be read, usually
// because their segment was pruned, are reported on errOut and skipped.
func writeEntries(out, errOut io.Writer, dir string, locs []index.Location, format string) error {
	read := func(loc index.Location) []byte {
		line, err := index.ReadLine(dir, loc)
		if err != nil {
			fmt.Fprintf(errOut, "warning: %v\n", err)
			return nil
		}
		return line
	}

	switch format {
	case formatLines:
		for _, loc := range locs {
			if line := read(loc); line != nil {
				if _, err := out.Write(line); err != nil {
					return err
				}
			}
		}
		return nil

	case string(cli.FormatJSON):
		views := make([]entryView, 0, len(locs))
		for _, loc := range locs {
			v := entryView{
				RequestID: loc.RequestID,
				Kind:      loc.Kind,
				Type:      loc.Type,
				Segment:   loc.Segment,
				Offset:    loc.Offset,
				Length:    loc.Length,
				Truncated: loc.Truncated,
				Timestamp: loc.Timestamp,
			}
			if line := read(loc); line != nil && json.Valid(line) {
				v.Entry = line
			}
			views = append(views, v)
		}
		return cli.NewFormatter(cli.FormatJSON).FormatTo(out, views)

	default:
		return cli.NewFormatter(cli.OutputFormat(format)).FormatTo(out, locationTable(locs))
	}
}

/*
Package cli provides command-line helpers for the promptlens command.

Output Formatting:

The entries command prints tables as text, JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, locations); err != nil {
		return err
	}

Values implementing Table are rendered as aligned columns (text) or rows
(CSV); the JSON formatter encodes the value as is.

Progress Reporting:

Long scans such as an index rebuild report bytes processed:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(totalBytes)
	progress.Update(done)
	progress.Finish()

PID File:

AcquirePIDFile refuses to start when the file names a live process and
replaces stale files. Release removes the file only if it still holds the
current pid.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()

A second signal exits immediately.
*/
package cli

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrAlreadyRunning is matched by errors.Is when the PID file belongs to a
// live process.
var ErrAlreadyRunning = errors.New("process already running")

// PIDFile records the running process id. It refuses to start over a PID
// file held by a live process and replaces stale ones.
type PIDFile struct {
	path string
	pid  int
}

// AcquirePIDFile writes the current pid to path, creating parent directories.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create PID file directory: %w", err)
	}

	if existing, ok := readPID(path); ok && processRunning(existing) {
		return nil, fmt.Errorf("%w: PID file exists and process appears running (pid=%d): %s",
			ErrAlreadyRunning, existing, path)
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}
	return &PIDFile{path: path, pid: pid}, nil
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Release removes the PID file if it still holds this process id.
func (p *PIDFile) Release() error {
	if p == nil {
		return nil
	}
	if pid, ok := readPID(p.path); ok && pid != p.pid {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

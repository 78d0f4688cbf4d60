package index

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadLine reads the log line at loc from the segment stored in dir.
// The trailing newline is included.
func ReadLine(dir string, loc Location) ([]byte, error) {
	if loc.Segment == "" || filepath.Base(loc.Segment) != loc.Segment {
		return nil, fmt.Errorf("invalid segment name %q", loc.Segment)
	}

	f, err := os.Open(filepath.Join(dir, loc.Segment))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, loc.Length)
	if _, err := f.ReadAt(buf, loc.Offset); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read %s at %d: %w", loc.Segment, loc.Offset, err)
	}
	return buf, nil
}

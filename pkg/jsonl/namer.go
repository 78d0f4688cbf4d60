package jsonl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Namer returns the path an active file is renamed to on rotation.
type Namer func(active string, now time.Time) string

// rotatedLayout is the timestamp embedded in rotated segment names.
const rotatedLayout = "20060102-150405"

// TimestampNamer names rotated segments <stem>-YYYYmmdd-HHMMSS<ext> in the
// directory of the active file, appending -1, -2, ... when that name is taken.
func TimestampNamer(active string, now time.Time) string {
	dir := filepath.Dir(active)
	stem, ext := splitName(filepath.Base(active))
	base := stem + "-" + now.Format(rotatedLayout)

	candidate := filepath.Join(dir, base+ext)
	for n := 1; exists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, n, ext))
	}
	return candidate
}

// splitName splits a file name into its stem and extension.
// "promptlens.jsonl" yields "promptlens" and ".jsonl".
func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// isSegmentOf reports whether name looks like a segment rotated from active.
func isSegmentOf(name, active string) bool {
	if name == active {
		return false
	}
	stem, ext := splitName(active)
	rest, ok := strings.CutPrefix(name, stem+"-")
	if !ok || !strings.HasSuffix(rest, ext) || len(rest) < len(rotatedLayout) {
		return false
	}
	_, err := time.Parse(rotatedLayout, rest[:len(rotatedLayout)])
	return err == nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

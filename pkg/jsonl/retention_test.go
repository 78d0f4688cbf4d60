package jsonl

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func writeSegment(t *testing.T, dir, name string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func remaining(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestPruner_MaxSegments(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeSegment(t, dir, "promptlens.jsonl", now.Add(-100*time.Hour))
	writeSegment(t, dir, "promptlens-20250101-000000.jsonl", now.Add(-3*time.Hour))
	writeSegment(t, dir, "promptlens-20250102-000000.jsonl", now.Add(-2*time.Hour))
	writeSegment(t, dir, "promptlens-20250103-000000.jsonl", now.Add(-1*time.Hour))
	writeSegment(t, dir, "unrelated.txt", now.Add(-100*time.Hour))

	pruner := NewPruner(filepath.Join(dir, "promptlens.jsonl"), RetentionConfig{MaxSegments: 2})

	var removed []string
	pruner.OnRemove = func(segment string) { removed = append(removed, segment) }

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d segments, want 1", deleted)
	}
	if len(removed) != 1 || removed[0] != "promptlens-20250101-000000.jsonl" {
		t.Errorf("OnRemove calls = %v", removed)
	}

	want := []string{
		"promptlens-20250102-000000.jsonl",
		"promptlens-20250103-000000.jsonl",
		"promptlens.jsonl",
		"unrelated.txt",
	}
	got := remaining(t, dir)
	if len(got) != len(want) {
		t.Fatalf("remaining = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("remaining[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPruner_MaxAge(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeSegment(t, dir, "promptlens.jsonl", now.Add(-30*24*time.Hour))
	writeSegment(t, dir, "promptlens-20250101-000000.jsonl", now.Add(-10*24*time.Hour))
	writeSegment(t, dir, "promptlens-20250120-000000.jsonl", now.Add(-1*time.Hour))

	pruner := NewPruner(filepath.Join(dir, "promptlens.jsonl"), RetentionConfig{MaxAge: 7 * 24 * time.Hour})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d, want 1", deleted)
	}

	if _, err := os.Stat(filepath.Join(dir, "promptlens.jsonl")); err != nil {
		t.Errorf("active file was pruned: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "promptlens-20250101-000000.jsonl")); !os.IsNotExist(err) {
		t.Errorf("old segment still present: %v", err)
	}
}

func TestPruner_Disabled(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, "promptlens-20250101-000000.jsonl", time.Now().Add(-1000*time.Hour))

	pruner := NewPruner(filepath.Join(dir, "promptlens.jsonl"), RetentionConfig{})
	deleted, err := pruner.Prune(context.Background())
	if err != nil || deleted != 0 {
		t.Errorf("Prune() = %d, %v; want 0, nil", deleted, err)
	}
	if err := pruner.Start(context.Background()); err != nil {
		t.Errorf("Start() without schedule = %v", err)
	}
	if pruner.NextRun() != nil {
		t.Error("NextRun() should be nil when not scheduled")
	}
}

func TestPruner_Schedule(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner := NewPruner(filepath.Join(dir, "promptlens.jsonl"), RetentionConfig{
		MaxSegments: 1,
		Schedule:    "0 3 * * *",
	})
	if err := pruner.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer pruner.Stop()

	next := pruner.NextRun()
	if next == nil {
		t.Fatal("NextRun() = nil after Start")
	}
	if next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("NextRun() = %v, want 03:00", next)
	}
	if err := pruner.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestPruner_InvalidSchedule(t *testing.T) {
	pruner := NewPruner(filepath.Join(t.TempDir(), "promptlens.jsonl"), RetentionConfig{
		MaxSegments: 1,
		Schedule:    "not a schedule",
	})
	if err := pruner.Start(context.Background()); err == nil {
		t.Error("Start() with invalid schedule should fail")
	}
}

func TestSegments_Order(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeSegment(t, dir, "promptlens-20250101-000000.jsonl", now.Add(-2*time.Hour))
	writeSegment(t, dir, "promptlens-20250101-000000-1.jsonl", now.Add(-time.Hour))

	segments, err := Segments(filepath.Join(dir, "promptlens.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 2 || segments[0].Name != "promptlens-20250101-000000-1.jsonl" {
		t.Errorf("Segments() = %+v, want newest first", segments)
	}
}

// Package index maps request ids to the log lines written for them.
//
// The JSON lines themselves stay the source of truth; the index only stores
// where each line lives (segment, byte offset, length) so a call can be
// found again without scanning every segment. Locations recorded while a
// segment is the active file are renamed when the writer rotates it.
//
// Two backends are provided: an in-process MemoryStore and a SQLiteStore,
// which works with either the pure-Go modernc.org/sqlite driver ("sqlite")
// or the cgo github.com/mattn/go-sqlite3 driver ("sqlite3").
package index

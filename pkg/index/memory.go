package index

import (
	"context"
	"sync"
)

// MemoryStore keeps locations in memory. It is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	locs   []Location
	byID   map[string][]int
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string][]int)}
}

func (m *MemoryStore) Record(ctx context.Context, locs []Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &StoreError{Backend: "memory", Op: "record", Err: errClosed}
	}
	for _, loc := range locs {
		m.byID[loc.RequestID] = append(m.byID[loc.RequestID], len(m.locs))
		m.locs = append(m.locs, loc)
	}
	return nil
}

func (m *MemoryStore) Lookup(ctx context.Context, requestID string) ([]Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	positions := m.byID[requestID]
	if len(positions) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Location, 0, len(positions))
	for _, p := range positions {
		out = append(out, m.locs[p])
	}
	return out, nil
}

func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Location
	for i := len(m.locs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.locs[i].Segment != "" {
			out = append(out, m.locs[i])
		}
	}
	return out, nil
}

func (m *MemoryStore) RenameSegment(ctx context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.locs {
		if m.locs[i].Segment == from {
			m.locs[i].Segment = to
		}
	}
	return nil
}

// DropSegment clears the segment of dropped locations so that positions
// held in byID stay valid; such locations are skipped by Lookup and Recent.
func (m *MemoryStore) DropSegment(ctx context.Context, segment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, positions := range m.byID {
		kept := positions[:0]
		for _, p := range positions {
			if m.locs[p].Segment == segment {
				m.locs[p].Segment = ""
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			delete(m.byID, id)
		} else {
			m.byID[id] = kept
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

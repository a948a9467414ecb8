package diag

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory diagnostics store, the default for tests
// and short-lived runs. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]Record // runID -> records in append order
	closed bool
}

// NewMemoryStore creates a new in-memory diagnostics store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string][]Record)}
}

// Append implements Store.
func (m *MemoryStore) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	m.runs[rec.RunID] = append(m.runs[rec.RunID], rec)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	recs := m.runs[runID]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

// ListFrame implements Store.
func (m *MemoryStore) ListFrame(runID string, frame uint64) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	var out []Record
	for _, rec := range m.runs[runID] {
		if rec.Frame == frame {
			out = append(out, rec)
		}
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.runs = nil
	return nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/homework-watcher/internal/homework"
)

// StatusStore provides an in-memory status table for development/testing.
type StatusStore struct {
	mu       sync.RWMutex
	rows     map[string]homework.Record
	upserts  int
	failName string
	failErr  error
}

// NewStatusStore constructs a StatusStore, optionally seeded with rows.
func NewStatusStore(seed ...homework.Record) *StatusStore {
	s := &StatusStore{rows: make(map[string]homework.Record)}
	for _, rec := range seed {
		s.rows[rec.HomeworkName] = rec
	}
	return s
}

// Snapshot returns the homework name to status mapping.
func (s *StatusStore) Snapshot(_ context.Context) (homework.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(homework.Snapshot, len(s.rows))
	for name, rec := range s.rows {
		snap[name] = rec.Status
	}
	return snap, nil
}

// Upsert stores rec keyed by its homework name. The API id is kept as data and may
// be zero when the payload omits it.
func (s *StatusStore) Upsert(_ context.Context, rec homework.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil && (s.failName == "" || s.failName == rec.HomeworkName) {
		return &homework.PersistenceError{HomeworkName: rec.HomeworkName, Err: s.failErr}
	}
	s.rows[rec.HomeworkName] = rec
	s.upserts++
	return nil
}

// Records returns a copy of every stored row ordered by homework name.
func (s *StatusStore) Records() []homework.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]homework.Record, 0, len(s.rows))
	for _, rec := range s.rows {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HomeworkName < out[j].HomeworkName })
	return out
}

// Upserts returns how many writes succeeded.
func (s *StatusStore) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

// FailUpsert makes writes for the named homework (all writes when name is empty)
// return err. A nil err clears the failure.
func (s *StatusStore) FailUpsert(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failName = name
	s.failErr = err
}

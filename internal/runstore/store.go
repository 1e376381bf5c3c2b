// Package runstore provides an ephemeral, thread-safe, in-memory archive of
// completed pipeline runs.
//
// The store keeps the final payload and execution trace of each run keyed by
// run ID. It is created fresh per process and is not persistent; sink modules
// that need durable storage write elsewhere (see modules/sqlitesink).
package runstore

import (
	"context"
	"sync"
	"time"

	"github.com/vk/signalgridgo/internal/model"
)

// Record is a single archived run.
type Record struct {
	RunID      string
	SignalID   string
	Pipeline   string
	Payload    map[string]any
	Trace      []model.ExecutionTraceEntry
	ArchivedAt time.Time
}

// Store is an in-memory run archive using sync.Map, so sink handlers on
// concurrent runs never contend on a global lock.
type Store struct {
	records sync.Map // Key: run ID string, Value: *Record
	order   sync.Map // Key: int insertion index, Value: run ID string
	next    int64
	mu      sync.Mutex
}

// New creates a new, empty run archive.
func New() *Store {
	return &Store{}
}

// Put archives a run record. The payload and trace are deep-copied on the way
// in so later mutation by the caller cannot corrupt the archive.
func (s *Store) Put(ctx context.Context, rec Record) error {
	rec.Payload = model.CopyPayload(rec.Payload)
	rec.Trace = append([]model.ExecutionTraceEntry(nil), rec.Trace...)
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now()
	}

	s.mu.Lock()
	idx := s.next
	s.next++
	s.mu.Unlock()

	s.records.Store(rec.RunID, &rec)
	s.order.Store(idx, rec.RunID)
	return nil
}

// Get retrieves an archived run by its ID. The second return value reports
// whether the run was found.
func (s *Store) Get(ctx context.Context, runID string) (*Record, bool) {
	v, ok := s.records.Load(runID)
	if !ok {
		return nil, false
	}
	rec := v.(*Record)
	out := *rec
	out.Payload = model.CopyPayload(rec.Payload)
	out.Trace = append([]model.ExecutionTraceEntry(nil), rec.Trace...)
	return &out, true
}

// RunIDs returns the IDs of all archived runs in insertion order.
func (s *Store) RunIDs(ctx context.Context) []string {
	s.mu.Lock()
	n := s.next
	s.mu.Unlock()

	ids := make([]string, 0, n)
	for i := int64(0); i < n; i++ {
		if v, ok := s.order.Load(i); ok {
			ids = append(ids, v.(string))
		}
	}
	return ids
}

// Len reports the number of archived runs.
func (s *Store) Len() int {
	count := 0
	s.records.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

package progressstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/lessonpage/internal/progress"
)

type recordKey struct {
	userID, lessonID string
}

// MemoryStore keeps records in a map. Used in tests and single-process runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[recordKey]Record
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[recordKey]Record)}
}

// Apply merges ev under the store lock.
func (s *MemoryStore) Apply(_ context.Context, ev progress.Event) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := recordKey{ev.UserID, ev.LessonID}
	cur, ok := s.records[k]
	if !ok {
		cur = Record{UserID: ev.UserID, LessonID: ev.LessonID}
	}
	cur = merge(cur, ev, time.Now().UTC())
	s.records[k] = cur
	return cur, nil
}

func (s *MemoryStore) Get(_ context.Context, userID, lessonID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey{userID, lessonID}]
	return rec, ok, nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for k, rec := range s.records {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

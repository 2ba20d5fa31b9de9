package viewer

import (
	"context"
	"sync"
	"time"
)

// Store is a thread-safe in-memory view registry with TTL eviction.
type Store struct {
	mu    sync.Mutex
	views map[string]*View
	ttl   time.Duration
}

// NewStore returns an empty registry that evicts views idle longer than ttl.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		views: make(map[string]*View),
		ttl:   ttl,
	}
}

// Put registers v under its ID.
func (s *Store) Put(v *View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v.ID] = v
}

// Get returns the view with id, or nil.
func (s *Store) Get(id string) *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views[id]
}

// Delete closes and removes a view. It reports whether the view existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	v, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if ok {
		v.Close()
	}
	return ok
}

// Len returns the number of open views.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// Cleanup closes and removes views idle longer than the TTL. It returns the
// number evicted.
func (s *Store) Cleanup() int {
	now := time.Now()
	var expired []*View

	s.mu.Lock()
	for id, v := range s.views {
		if now.Sub(v.lastTouched()) > s.ttl {
			expired = append(expired, v)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()

	for _, v := range expired {
		v.Close()
	}
	return len(expired)
}

// CloseAll closes every view, used at shutdown.
func (s *Store) CloseAll() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*View)
	s.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
}

// Start runs Cleanup every interval until ctx is done.
func (s *Store) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

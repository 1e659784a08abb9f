package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps parked sessions and the broadcast log in process. Use it
// for single-instance deployments.
type MemoryStore struct {
	mu     sync.Mutex
	parked map[string]time.Time
	log    []Record
	opts   Options
	now    func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemoryStore creates a MemoryStore with a background sweep of expired sessions.
func NewMemoryStore(opts Options) *MemoryStore {
	s := &MemoryStore{
		parked:      make(map[string]time.Time),
		opts:        opts,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go s.cleanup(time.Minute)
	return s
}

func (s *MemoryStore) Park(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parked[id] = s.now().Add(s.opts.Window)
	return nil
}

func (s *MemoryStore) Claim(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.parked[id]
	if !ok {
		return false, nil
	}
	delete(s.parked, id)
	return !s.now().After(deadline), nil
}

func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Records normally arrive in order; keep the log sorted if they do not.
	i := sort.Search(len(s.log), func(i int) bool { return s.log[i].Offset >= rec.Offset })
	switch {
	case i < len(s.log) && s.log[i].Offset == rec.Offset:
		s.log[i] = rec
	case i == len(s.log):
		s.log = append(s.log, rec)
	default:
		s.log = append(s.log, Record{})
		copy(s.log[i+1:], s.log[i:])
		s.log[i] = rec
	}

	if extra := len(s.log) - s.opts.maxFrames(); extra > 0 {
		s.log = append(s.log[:0:0], s.log[extra:]...)
	}
	return nil
}

func (s *MemoryStore) Since(ctx context.Context, after int64) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.log), func(i int) bool { return s.log[i].Offset > after })
	out := make([]Record, len(s.log)-i)
	copy(out, s.log[i:])
	return out, nil
}

// Len returns the number of parked sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parked)
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, deadline := range s.parked {
		if now.After(deadline) {
			delete(s.parked, id)
		}
	}
}

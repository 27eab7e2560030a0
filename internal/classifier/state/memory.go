package state

import (
	"context"
	"sync"
	"time"
)

// MemorySlot is a process-local model slot.
type MemorySlot struct {
	mu      sync.Mutex
	id      string
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySlot returns an empty slot. A zero ttl keeps values until cleared.
func NewMemorySlot(ttl time.Duration) *MemorySlot {
	return &MemorySlot{ttl: ttl, now: time.Now}
}

func (s *MemorySlot) Get(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		return "", false, nil
	}
	if !s.expires.IsZero() && !s.now().Before(s.expires) {
		s.id = ""
		return "", false, nil
	}
	return s.id, true, nil
}

func (s *MemorySlot) Set(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.id = id
	s.expires = time.Time{}
	if s.ttl > 0 {
		s.expires = s.now().Add(s.ttl)
	}
	return nil
}

func (s *MemorySlot) CompareAndClear(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" || s.id != id {
		return false, nil
	}
	s.id = ""
	s.expires = time.Time{}
	return true, nil
}

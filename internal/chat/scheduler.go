package chat

import (
	"sync"
	"time"
)

// KeyedScheduler runs callbacks once after a delay, with at most one pending
// task per key. It backs the media-batch flush: the first photo of a group
// schedules the flush, later photos of the same group see a pending task and
// only append. Safe for concurrent use.
type KeyedScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewKeyedScheduler returns an empty scheduler.
func NewKeyedScheduler() *KeyedScheduler {
	return &KeyedScheduler{timers: make(map[string]*time.Timer)}
}

// Schedule registers fn to run once after d, unless a task for key is
// already pending. It reports whether the task was registered. The key is
// released right before fn runs, so fn may re-schedule under the same key.
func (s *KeyedScheduler) Schedule(key string, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[key]; ok {
		return false
	}
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
	return true
}

// Cancel stops the pending task for key, if any, and reports whether one was
// cancelled. A task whose timer already fired is not cancellable.
func (s *KeyedScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return false
	}
	delete(s.timers, key)
	return t.Stop()
}

// Pending reports whether a task for key is currently scheduled.
func (s *KeyedScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

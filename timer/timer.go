// Package timer implements the agent's single cooperative scheduler for
// one-shot, cancellable callbacks: order lock expiry and transaction-log
// reaping. Both are separate named registries over the same primitive.
package timer

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// Service is a keyed registry of one-shot timers. Schedule and Cancel are
// idempotent: scheduling over an existing key replaces it, and cancelling an
// absent key is a no-op.
type Service struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	log    log.Logger
}

// New returns an empty timer registry.
func New(name string) *Service {
	return &Service{
		timers: make(map[string]*time.Timer),
		log:    log.New("component", "timer", "registry", name),
	}
}

// Schedule arranges for callback to run after delay, under key. Any timer
// already registered under key is cancelled first, so at most one timer is
// ever live per key — the invariant spec §4.2 requires for order locks.
func (s *Service) Schedule(key string, delay time.Duration, callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		s.log.Debug("timer fired", "key", key)
		callback()
	})
}

// Cancel stops and removes the timer registered under key, if any.
func (s *Service) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[key]; ok {
		existing.Stop()
		delete(s.timers, key)
	}
}

// Pending reports whether a timer is currently registered under key.
func (s *Service) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

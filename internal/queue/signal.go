package queue

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// FlushSignal is a manual-reset event. Once signaled it stays signaled until Clear is called,
// and every Wait that overlaps the signaled state returns true.
type FlushSignal struct {
	clock clock.Clock

	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// NewFlushSignal creates an unsignaled FlushSignal. A nil clock means the wall clock.
func NewFlushSignal(clk clock.Clock) *FlushSignal {
	if clk == nil {
		clk = clock.New()
	}
	return &FlushSignal{
		clock: clk,
		ch:    make(chan struct{}),
	}
}

// Signal sets the signal and wakes all waiters. Signaling twice is a no-op.
func (s *FlushSignal) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set {
		return
	}
	s.set = true
	close(s.ch)
}

// Clear resets the signal to unsignaled.
func (s *FlushSignal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

// IsSet reports whether the signal is currently set.
func (s *FlushSignal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait blocks until the signal is set or timeout elapses, and reports whether it was signaled.
func (s *FlushSignal) Wait(timeout time.Duration) bool {
	s.mu.Lock()
	if s.set {
		s.mu.Unlock()
		return true
	}
	ch := s.ch
	s.mu.Unlock()

	if timeout <= 0 {
		return false
	}

	timer := s.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

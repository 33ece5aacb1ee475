package syncer

import (
	"sync"
	"sync/atomic"
)

// Stopper carries a stop request from a signal handler to the run loop.
// Request is safe to call from any goroutine, any number of times.
type Stopper struct {
	requested atomic.Bool
	once      sync.Once
	done      chan struct{}
}

// NewStopper returns a Stopper with no pending request.
func NewStopper() *Stopper {
	return &Stopper{done: make(chan struct{})}
}

// Request asks the loop to stop after the in-flight item.
func (s *Stopper) Request() {
	s.requested.Store(true)
	s.once.Do(func() { close(s.done) })
}

// Requested reports whether Request has been called.
func (s *Stopper) Requested() bool {
	return s.requested.Load()
}

// Done is closed once Request has been called.
func (s *Stopper) Done() <-chan struct{} {
	return s.done
}

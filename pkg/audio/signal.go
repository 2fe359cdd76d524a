package audio

import "time"

// Signal is a bounded-wait wake primitive built on a single-slot channel.
// Notify never blocks, even if nobody is waiting; Wait returns as soon as
// a notification arrives or the timeout elapses, whichever is first.
//
// This is the consumer worker's only blocking point: it alternates
// between a non-blocking Queue.TryDequeue and a bounded Wait on this
// signal, so it never spins and never blocks the realtime callback that
// calls Notify.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a new signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify wakes a pending Wait, if any. Non-blocking.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Notify is called or timeout elapses.
func (s *Signal) Wait(timeout time.Duration) {
	select {
	case <-s.ch:
	case <-time.After(timeout):
	}
}

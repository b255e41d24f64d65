package runtime

import "github.com/infrasonar/rapp/internal/metrics"

// Gate is the process-wide mutual-exclusion primitive that serializes every
// mutating runtime-CLI invocation (version probe, pull, up, prune, log-view
// start). It is advisory for rejection: the control protocol dispatcher
// calls Held to decide whether to reply BUSY, without ever queuing —
// requesters are told to retry rather than waiting in line.
//
// Implemented as a size-1 channel semaphore.
type Gate struct {
	ch chan struct{}
}

// NewGate returns a ready-to-use, unheld Gate.
func NewGate() *Gate {
	return &Gate{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is held by the caller.
func (g *Gate) Acquire() {
	g.ch <- struct{}{}
	metrics.MutationGateHeld.Set(1)
}

// Release frees the gate. Must only be called by the holder.
func (g *Gate) Release() {
	<-g.ch
	metrics.MutationGateHeld.Set(0)
}

// TryAcquire attempts to acquire the gate without blocking. Returns true and
// holds the gate on success; the caller must Release it.
func (g *Gate) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		metrics.MutationGateHeld.Set(1)
		return true
	default:
		return false
	}
}

// Held reports whether the gate is currently held, without acquiring it.
// Used by the protocol dispatcher's non-blocking BUSY check.
func (g *Gate) Held() bool {
	if g.TryAcquire() {
		g.Release()
		return false
	}
	return true
}

// WithGate acquires the gate, runs fn, and releases it even if fn panics.
func (g *Gate) WithGate(fn func()) {
	g.Acquire()
	defer g.Release()
	fn()
}

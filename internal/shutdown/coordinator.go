// Package shutdown provides the one-way Running -> ShuttingDown switch
// shared by the producer, the writer and the session.
package shutdown

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Reason classifies what ended a capture session.
type Reason int

const (
	// ReasonNone means shutdown has not been requested
	ReasonNone Reason = iota
	// ReasonInterrupt indicates an operator stop (signal or context cancel)
	ReasonInterrupt
	// ReasonOverflow indicates the device reported a FIFO overflow
	ReasonOverflow
	// ReasonSinkFault indicates a write error or short write
	ReasonSinkFault
	// ReasonSourceFault indicates the source read loop failed
	ReasonSourceFault
	// ReasonSourceDone indicates a finite source was exhausted
	ReasonSourceDone
)

// String returns a human-readable representation of the reason
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonInterrupt:
		return "interrupt"
	case ReasonOverflow:
		return "fifo_overflow"
	case ReasonSinkFault:
		return "sink_fault"
	case ReasonSourceFault:
		return "source_fault"
	case ReasonSourceDone:
		return "source_done"
	default:
		return "unknown"
	}
}

// Fatal reports whether the reason ends the session with an error.
func (r Reason) Fatal() bool {
	switch r {
	case ReasonOverflow, ReasonSinkFault, ReasonSourceFault:
		return true
	default:
		return false
	}
}

// Coordinator holds the session's shutdown flag.
//
// The flag transitions false -> true exactly once; later requests are
// no-ops and never overwrite the first reason. Requested is a single atomic
// load so both loops can check it every iteration.
type Coordinator struct {
	requested atomic.Bool
	done      chan struct{}

	mu     sync.Mutex
	reason Reason
	err    error
	hooks  []func()
	fired  bool
}

// New creates a coordinator in the Running state.
func New() *Coordinator {
	return &Coordinator{done: make(chan struct{})}
}

// Request transitions to ShuttingDown. Returns true only for the call that
// performed the transition; that call also runs the registered hooks.
func (c *Coordinator) Request(reason Reason, err error) bool {
	if !c.requested.CompareAndSwap(false, true) {
		slog.Debug("shutdown: already requested, ignoring",
			"reason", reason.String(),
			"first_reason", c.Reason().String(),
		)
		return false
	}

	c.mu.Lock()
	c.reason = reason
	c.err = err
	hooks := c.hooks
	c.hooks = nil
	c.fired = true
	c.mu.Unlock()

	close(c.done)

	if err != nil {
		slog.Warn("shutdown: requested", "reason", reason.String(), "error", err)
	} else {
		slog.Info("shutdown: requested", "reason", reason.String())
	}

	for _, fn := range hooks {
		fn()
	}
	return true
}

// Requested reports whether shutdown has been requested.
func (c *Coordinator) Requested() bool {
	return c.requested.Load()
}

// Done returns a channel closed on the transition.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Reason returns the first requested reason, ReasonNone while running.
func (c *Coordinator) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Err returns the error attached to the first request, if any.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// OnShutdown registers fn to run once on the transition. If the transition
// already happened fn runs immediately on the caller's goroutine.
func (c *Coordinator) OnShutdown(fn func()) {
	c.mu.Lock()
	if !c.fired {
		c.hooks = append(c.hooks, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

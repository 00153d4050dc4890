// Package stream defines the contract between a raw byte source and the
// capture pipeline: a per-block callback plus periodic progress.
package stream

import (
	"context"
	"time"
)

// Flow tells the source whether to keep reading.
type Flow int

const (
	// FlowContinue keeps the read loop running
	FlowContinue Flow = iota
	// FlowStop ends the read loop; the source returns nil from Stream
	FlowStop
)

// String returns a human-readable representation of the flow value
func (f Flow) String() string {
	switch f {
	case FlowContinue:
		return "continue"
	case FlowStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Progress is the periodic throughput snapshot computed by the source.
// Rates are in bytes per second.
type Progress struct {
	Elapsed     time.Duration
	TotalBytes  uint64
	CurrentRate float64
	TotalRate   float64
}

// Func is invoked synchronously by the source's read loop for every
// delivered block. progress is nil except once per reporting interval.
// block is only valid for the duration of the call.
type Func func(block []byte, progress *Progress) Flow

// Source delivers raw byte blocks until the callback returns FlowStop, the
// context is cancelled, the source is exhausted (nil error) or a read fails.
type Source interface {
	Stream(ctx context.Context, fn Func) error
	Close() error
}

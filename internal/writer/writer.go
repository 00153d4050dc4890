// Package writer drains the handoff channel into the output sink on a
// dedicated goroutine.
package writer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/pmiettinen/piksi-sample-grabber/internal/shutdown"
)

// DefaultSliceSize is the number of bytes popped and written per iteration.
const DefaultSliceSize = 50

// ErrShortWrite is reported when the sink accepts fewer bytes than offered.
var ErrShortWrite = errors.New("writer: short write")

// Popper is the consumer side of the handoff channel.
type Popper interface {
	// Pop blocks for data and returns 0 only once shutdown is set and the
	// channel is drained.
	Pop(dst []byte) int
}

// Requester raises the session shutdown.
type Requester interface {
	Request(reason shutdown.Reason, err error) bool
}

// Worker copies slices from a Popper to an io.Writer.
//
// Lifecycle:
//   - Run loops until Pop reports the channel drained after shutdown
//   - Any write error or short write is fatal: Run requests shutdown with
//     ReasonSinkFault and returns without retrying
//
// The sink is owned by the worker while Run executes.
type Worker struct {
	src   Popper
	sink  io.Writer
	coord Requester
	slice []byte

	written atomic.Uint64
	slices  atomic.Uint64
	err     atomic.Pointer[error]
}

// New creates a worker. sliceSize <= 0 selects DefaultSliceSize.
func New(src Popper, sink io.Writer, coord Requester, sliceSize int) *Worker {
	if sliceSize <= 0 {
		sliceSize = DefaultSliceSize
	}
	return &Worker{
		src:   src,
		sink:  sink,
		coord: coord,
		slice: make([]byte, sliceSize),
	}
}

// Run drains the channel. Call it on its own goroutine.
func (w *Worker) Run() {
	slog.Debug("writer: started", "slice_bytes", len(w.slice))

	for {
		n := w.src.Pop(w.slice)
		if n == 0 {
			slog.Debug("writer: channel drained, exiting",
				"bytes_written", w.written.Load(),
			)
			return
		}

		m, err := w.sink.Write(w.slice[:n])
		w.written.Add(uint64(m))
		w.slices.Add(1)

		if err == nil && m != n {
			err = fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, m, n)
		}
		if err != nil {
			err = fmt.Errorf("writer: sink write failed: %w", err)
			w.err.Store(&err)
			slog.Error("writer: sink fault, stopping",
				"error", err,
				"bytes_written", w.written.Load(),
			)
			w.coord.Request(shutdown.ReasonSinkFault, err)
			return
		}
	}
}

// Err returns the fatal write error, if any.
func (w *Worker) Err() error {
	if p := w.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Written returns the number of bytes accepted by the sink.
func (w *Worker) Written() uint64 {
	return w.written.Load()
}

// Slices returns the number of write calls issued.
func (w *Worker) Slices() uint64 {
	return w.slices.Load()
}

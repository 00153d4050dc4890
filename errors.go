package samplegrabber

import (
	"errors"
	"fmt"

	"github.com/pmiettinen/piksi-sample-grabber/internal/handoff"
	"github.com/pmiettinen/piksi-sample-grabber/internal/writer"
)

var (
	// ErrFIFOOverflow indicates the FPGA reported a FIFO overflow: samples
	// after this point are not contiguous.
	ErrFIFOOverflow = errors.New("samplegrabber: FPGA FIFO overflow")

	// ErrShortWrite indicates the sink accepted fewer bytes than offered.
	ErrShortWrite = writer.ErrShortWrite

	// ErrCancelled indicates a bounded push was abandoned on shutdown.
	ErrCancelled = handoff.ErrCancelled

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("samplegrabber: session already started")
)

// Fault is the terminal error of a session that did not end cleanly.
type Fault struct {
	Reason Reason
	Err    error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("samplegrabber: session ended: %s", f.Reason)
	}
	return fmt.Sprintf("samplegrabber: session ended: %s: %v", f.Reason, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

package samplegrabber

import (
	"io"

	"github.com/pmiettinen/piksi-sample-grabber/internal/stream"
)

// Source delivers raw device bytes to a StreamFunc.
//
// Stream blocks until the callback returns FlowStop (return nil), ctx is
// cancelled, the input is exhausted (return nil) or a read fails (return
// the error). Implementations: internal/ftdi (live device) and
// internal/replay (recorded dump).
//
// The caller that opened a Source closes it; Run does not.
type Source = stream.Source

// Sink receives decoded samples, one int8 per byte. Run hands it to the
// writer goroutine and closes it after the channel has drained.
type Sink interface {
	io.Writer
	io.Closer
}

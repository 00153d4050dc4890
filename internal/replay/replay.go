// Package replay streams a previously captured raw device dump through the
// same callback contract as the live FTDI source.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pmiettinen/piksi-sample-grabber/internal/stream"
)

// DefaultBlockSize matches a typical libusb transfer.
const DefaultBlockSize = 16384

// Source reads raw device bytes from an io.Reader in fixed-size blocks.
// The last block may be shorter. Stream returns nil at end of input.
type Source struct {
	name      string
	r         io.Reader
	closer    io.Closer
	blockSize int
	meter     *stream.Meter
}

// New wraps r. blockSize <= 0 selects DefaultBlockSize; interval is the
// progress reporting period.
func New(r io.Reader, blockSize int, interval time.Duration) *Source {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	s := &Source{
		name:      "reader",
		r:         r,
		blockSize: blockSize,
		meter:     stream.NewMeter(interval),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Open streams the file at path; "-" reads standard input.
func Open(path string, blockSize int, interval time.Duration) (*Source, error) {
	if path == "-" {
		s := New(os.Stdin, blockSize, interval)
		s.name = "stdin"
		s.closer = nil
		return s, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open input: %w", err)
	}
	s := New(f, blockSize, interval)
	s.name = path
	return s, nil
}

// Stream implements stream.Source.
func (s *Source) Stream(ctx context.Context, fn stream.Func) error {
	buf := make([]byte, s.blockSize)
	s.meter.Start()

	slog.Info("replay: streaming", "input", s.name, "block_bytes", s.blockSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			if fn(buf[:n], s.meter.Add(n)) == stream.FlowStop {
				return nil
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			slog.Info("replay: end of input",
				"input", s.name,
				"total_bytes", s.meter.TotalBytes(),
			)
			return nil
		default:
			return fmt.Errorf("replay: read %s: %w", s.name, err)
		}
	}
}

// Close releases the underlying file.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

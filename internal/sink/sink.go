// Package sink provides the output destinations for decoded samples.
//
// Every sink receives signed 8-bit samples, one per byte, in capture order.
// Sinks are owned by the writer goroutine and are not safe for concurrent use.
package sink

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultBufferSize matches the 64 KiB stdio buffer of the classic capture tool.
const DefaultBufferSize = 1 << 16

// DefaultSampleRate is the MAX2769 sample clock on Piksi (16.368 MHz).
const DefaultSampleRate = 16368000

// ErrUnknownFormat is returned by Open for an unsupported format name.
var ErrUnknownFormat = errors.New("sink: unknown format")

// Format selects the on-disk representation.
type Format int

const (
	// FormatRaw writes one int8 per byte, no header
	FormatRaw Format = iota
	// FormatWAV wraps the samples in an 8-bit mono PCM WAV container
	FormatWAV
)

// String returns the format name used in configuration
func (f Format) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatWAV:
		return "wav"
	default:
		return "unknown"
	}
}

// ParseFormat converts a configuration value into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raw", "bin":
		return FormatRaw, nil
	case "wav":
		return FormatWAV, nil
	default:
		return FormatRaw, fmt.Errorf("%w: %q (valid: raw, wav)", ErrUnknownFormat, s)
	}
}

// Options configures Open.
type Options struct {
	Format     Format
	BufferSize int // Raw and WAV write buffering, bytes/samples
	SampleRate int // WAV header only
}

// Open creates the sink for path. An empty path yields a Discard sink so the
// pipeline still runs for statistics.
func Open(path string, opts Options) (io.WriteCloser, error) {
	if path == "" {
		return &Discard{}, nil
	}

	switch opts.Format {
	case FormatRaw:
		return OpenRaw(path, opts.BufferSize)
	case FormatWAV:
		return OpenWAV(path, opts.SampleRate, opts.BufferSize)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, opts.Format)
	}
}

// Discard counts and drops samples.
type Discard struct {
	n uint64
}

// Write implements io.Writer.
func (d *Discard) Write(p []byte) (int, error) {
	d.n += uint64(len(p))
	return len(p), nil
}

// Close implements io.Closer.
func (d *Discard) Close() error { return nil }

// Count returns the number of bytes discarded.
func (d *Discard) Count() uint64 { return d.n }

package sink

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth    = 8
	wavChannels    = 1
	wavFormatPCM   = 1
	unsignedOffset = 128
)

// WAV stores samples as 8-bit unsigned mono PCM, so the capture can be
// opened directly by audio and SDR tooling. 8-bit PCM is unsigned, so each
// int8 sample is offset by 128.
//
// The RIFF size fields are 32-bit: captures beyond 4 GiB need FormatRaw.
type WAV struct {
	path string
	f    *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
	size int

	wroteHeader bool
}

// OpenWAV creates path with a WAV header for sampleRate (<= 0 selects
// DefaultSampleRate). bufSamples <= 0 selects DefaultBufferSize.
func OpenWAV(path string, sampleRate, bufSamples int) (*WAV, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if bufSamples <= 0 {
		bufSamples = DefaultBufferSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open wav output: %w", err)
	}

	return &WAV{
		path: path,
		f:    f,
		enc:  wav.NewEncoder(f, sampleRate, wavBitDepth, wavChannels, wavFormatPCM),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: wavChannels, SampleRate: sampleRate},
			Data:           make([]int, 0, bufSamples),
			SourceBitDepth: wavBitDepth,
		},
		size: bufSamples,
	}, nil
}

// Write implements io.Writer. Samples are batched and encoded once the
// buffer fills. On an encode error the count covers the samples taken into
// the batch so far.
func (w *WAV) Write(p []byte) (int, error) {
	for i, b := range p {
		w.buf.Data = append(w.buf.Data, int(int8(b))+unsignedOffset)
		if len(w.buf.Data) == w.size {
			if err := w.flush(); err != nil {
				return i + 1, err
			}
		}
	}
	return len(p), nil
}

func (w *WAV) flush() error {
	// The encoder emits its header on the first Write, even an empty one
	if len(w.buf.Data) == 0 && w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("sink: encode wav: %w", err)
	}
	w.buf.Data = w.buf.Data[:0]
	return nil
}

// Close encodes buffered samples, finalizes the header and closes the file.
func (w *WAV) Close() error {
	flushErr := w.flush()
	encErr := w.enc.Close()
	if encErr != nil {
		encErr = fmt.Errorf("sink: finalize wav header: %w", encErr)
	}
	closeErr := w.f.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("sink: close %s: %w", w.path, closeErr)
	}
	return errors.Join(flushErr, encErr, closeErr)
}

// Path returns the output file path.
func (w *WAV) Path() string {
	return w.path
}

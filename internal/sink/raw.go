package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
)

// Raw is a buffered file of int8 samples with no framing.
type Raw struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

// OpenRaw creates (or truncates) path. bufSize <= 0 selects DefaultBufferSize.
func OpenRaw(path string, bufSize int) (*Raw, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open raw output: %w", err)
	}

	return &Raw{
		path: path,
		f:    f,
		w:    bufio.NewWriterSize(f, bufSize),
	}, nil
}

// Write implements io.Writer.
func (r *Raw) Write(p []byte) (int, error) {
	return r.w.Write(p)
}

// Close flushes buffered samples and closes the file.
func (r *Raw) Close() error {
	flushErr := r.w.Flush()
	if flushErr != nil {
		flushErr = fmt.Errorf("sink: flush %s: %w", r.path, flushErr)
	}
	closeErr := r.f.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("sink: close %s: %w", r.path, closeErr)
	}
	return errors.Join(flushErr, closeErr)
}

// Path returns the output file path.
func (r *Raw) Path() string {
	return r.path
}

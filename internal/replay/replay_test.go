package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pmiettinen/piksi-sample-grabber/internal/stream"
)

func TestStream_BlocksAndEOF(t *testing.T) {
	input := make([]byte, 10)
	for i := range input {
		input[i] = byte(i)
	}
	src := New(bytes.NewReader(input), 4, time.Hour)

	var sizes []int
	var got []byte
	err := src.Stream(context.Background(), func(block []byte, p *stream.Progress) stream.Flow {
		sizes = append(sizes, len(block))
		got = append(got, block...)
		return stream.FlowContinue
	})

	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(sizes) != 3 || sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Errorf("block sizes = %v, want [4 4 2]", sizes)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("data = %v, want %v", got, input)
	}
}

func TestStream_StopsOnFlowStop(t *testing.T) {
	src := New(bytes.NewReader(make([]byte, 100)), 10, time.Hour)

	calls := 0
	err := src.Stream(context.Background(), func(block []byte, p *stream.Progress) stream.Flow {
		calls++
		if calls == 3 {
			return stream.FlowStop
		}
		return stream.FlowContinue
	})

	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("callback calls = %d, want 3", calls)
	}
}

func TestStream_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := New(bytes.NewReader(make([]byte, 100)), 10, time.Hour)
	err := src.Stream(ctx, func(block []byte, p *stream.Progress) stream.Flow {
		t.Fatal("callback invoked after cancel")
		return stream.FlowStop
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Stream() error = %v, want context.Canceled", err)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("usb transfer error") }

func TestStream_ReadError(t *testing.T) {
	src := New(io.MultiReader(bytes.NewReader([]byte{1, 2}), failingReader{}), 4, time.Hour)
	err := src.Stream(context.Background(), func(block []byte, p *stream.Progress) stream.Flow {
		return stream.FlowContinue
	})
	if err == nil {
		t.Fatal("Stream() error = nil, want read error")
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.bin")
	if err := os.WriteFile(path, []byte{0xE1, 0x01, 0x1D}, 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path, 0, time.Second)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	total := 0
	src.Stream(context.Background(), func(block []byte, p *stream.Progress) stream.Flow {
		total += len(block)
		return stream.FlowContinue
	})
	if total != 3 {
		t.Errorf("streamed %d bytes, want 3", total)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin"), 0, time.Second); err == nil {
		t.Error("Open(missing) succeeded")
	}
}

package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatRaw, false},
		{"raw", FormatRaw, false},
		{"RAW", FormatRaw, false},
		{"wav", FormatWAV, false},
		{"flac", FormatRaw, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOpen_EmptyPathDiscards(t *testing.T) {
	s, err := Open("", Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	d, ok := s.(*Discard)
	if !ok {
		t.Fatalf("Open(\"\") = %T, want *Discard", s)
	}
	d.Write(make([]byte, 100))
	if d.Count() != 100 {
		t.Errorf("Count() = %d, want 100", d.Count())
	}
}

func TestRaw_WriteFlushOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.bin")
	r, err := OpenRaw(path, 0)
	if err != nil {
		t.Fatalf("OpenRaw() error = %v", err)
	}

	samples := []byte{byte(0xF9), 1, 3, byte(0xFB)}
	if _, err := r.Write(samples); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Buffered: nothing on disk yet
	if info, _ := os.Stat(path); info.Size() != 0 {
		t.Errorf("file size before Close = %d, want 0", info.Size())
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, samples) {
		t.Errorf("file = %v, want %v", got, samples)
	}
}

func TestRaw_OpenFailure(t *testing.T) {
	_, err := OpenRaw(filepath.Join(t.TempDir(), "missing", "out.bin"), 0)
	if err == nil {
		t.Fatal("OpenRaw() into missing directory succeeded")
	}
}

func TestWAV_HeaderAndSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.wav")
	w, err := OpenWAV(path, 4096000, 3)
	if err != nil {
		t.Fatalf("OpenWAV() error = %v", err)
	}

	int8s := []int8{-7, 1, 1, 1, 7, -1, -3}
	in := make([]byte, len(int8s))
	for i, s := range int8s {
		in[i] = byte(s)
	}
	if n, err := w.Write(in); err != nil || n != len(in) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		t.Fatal("encoded file is not a valid WAV")
	}
	if dec.SampleRate != 4096000 {
		t.Errorf("SampleRate = %d, want 4096000", dec.SampleRate)
	}
	if dec.BitDepth != 8 {
		t.Errorf("BitDepth = %d, want 8", dec.BitDepth)
	}
	if dec.NumChans != 1 {
		t.Errorf("NumChans = %d, want 1", dec.NumChans)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tail := raw[len(raw)-len(int8s):]
	for i, s := range int8s {
		if want := byte(int(s) + 128); tail[i] != want {
			t.Errorf("pcm[%d] = %d, want %d", i, tail[i], want)
		}
	}
}

func TestWAV_WriteErrorReportsConsumed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	w, err := OpenWAV(path, 0, 4)
	if err != nil {
		t.Fatalf("OpenWAV() error = %v", err)
	}
	// Encoder output fails from here on
	w.f.Close()

	n, err := w.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	if err == nil {
		t.Fatal("Write() error = nil, want encode error")
	}
	if n != 4 {
		t.Errorf("Write() = %d, want 4 samples taken before the failed batch", n)
	}
}

package decode

import (
	"errors"
	"testing"
)

func TestPair_AllCodes(t *testing.T) {
	want := []int8{1, 3, 5, 7, -1, -3, -5, -7}

	for code := 0; code < 8; code++ {
		for other := 0; other < 8; other++ {
			b := byte(code<<5 | other<<2 | 0x01)
			s0, s1 := Pair(b)
			if s0 != want[code] {
				t.Errorf("Pair(0x%02X) sample0 = %d, want %d", b, s0, want[code])
			}
			if s1 != want[other] {
				t.Errorf("Pair(0x%02X) sample1 = %d, want %d", b, s1, want[other])
			}
		}
	}
}

func TestOverflow(t *testing.T) {
	tests := []struct {
		b    byte
		want bool
	}{
		{0x01, false},
		{0x00, true},
		{0xE0, true},
		{0xE1, false},
		{0x02, true},
		{0xFF, false},
	}

	for _, tt := range tests {
		if got := Overflow(tt.b); got != tt.want {
			t.Errorf("Overflow(0x%02X) = %v, want %v", tt.b, got, tt.want)
		}
	}
}

func TestBlock(t *testing.T) {
	tests := []struct {
		name          string
		src           []byte
		want          []int8
		wantOverflows int
		wantFirst     int
	}{
		{
			name:      "empty block",
			src:       nil,
			want:      []int8{},
			wantFirst: -1,
		},
		{
			name:          "0xE0 decodes and flags overflow",
			src:           []byte{0xE0},
			want:          []int8{-7, 1},
			wantOverflows: 1,
			wantFirst:     0,
		},
		{
			name:      "0x01 is clean",
			src:       []byte{0x01},
			want:      []int8{1, 1},
			wantFirst: -1,
		},
		{
			name:          "0x00 is flagged",
			src:           []byte{0x00},
			want:          []int8{1, 1},
			wantOverflows: 1,
			wantFirst:     0,
		},
		{
			name:          "two flagged bytes",
			src:           []byte{0xE2, 0x02},
			want:          []int8{-7, 1, 1, 1},
			wantOverflows: 2,
			wantFirst:     0,
		},
		{
			name:          "overflow mid block keeps later bytes",
			src:           []byte{0x25, 0x49, 0x90, 0xFD},
			want:          []int8{3, 3, 5, 5, -1, -1, -7, -7},
			wantOverflows: 1,
			wantFirst:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, len(tt.src)*SamplesPerByte)
			res, err := Block(dst, tt.src)
			if err != nil {
				t.Fatalf("Block() error = %v", err)
			}

			if res.Samples != len(tt.src)*SamplesPerByte {
				t.Errorf("Samples = %d, want %d", res.Samples, len(tt.src)*SamplesPerByte)
			}
			if res.Overflows != tt.wantOverflows {
				t.Errorf("Overflows = %d, want %d", res.Overflows, tt.wantOverflows)
			}
			if res.FirstOverflow != tt.wantFirst {
				t.Errorf("FirstOverflow = %d, want %d", res.FirstOverflow, tt.wantFirst)
			}

			for i, w := range tt.want {
				if got := int8(dst[i]); got != w {
					t.Errorf("sample[%d] = %d, want %d", i, got, w)
				}
			}
		})
	}
}

func TestBlock_LengthInvariant(t *testing.T) {
	src := make([]byte, 256)
	for i := range src {
		src[i] = byte(i)
	}

	for _, n := range []int{0, 1, 7, 64, 256} {
		dst := make([]byte, n*SamplesPerByte)
		res, err := Block(dst, src[:n])
		if err != nil {
			t.Fatalf("Block(len=%d) error = %v", n, err)
		}
		if res.Samples != 2*n {
			t.Errorf("Block(len=%d) Samples = %d, want %d", n, res.Samples, 2*n)
		}
	}
}

func TestBlock_ShortBuffer(t *testing.T) {
	dst := []byte{0x7F, 0x7F, 0x7F}
	_, err := Block(dst, []byte{0x01, 0x01})
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("Block() error = %v, want ErrShortBuffer", err)
	}
	for i, b := range dst {
		if b != 0x7F {
			t.Errorf("dst[%d] modified to 0x%02X on short buffer", i, b)
		}
	}
}

func TestAppend(t *testing.T) {
	prefix := []byte{9}
	out, res := Append(prefix, []byte{0xE1, 0x90})

	want := []byte{9, byte(0xF9), 1, byte(0xFF), byte(0xFF)}
	if string(out) != string(want) {
		t.Errorf("Append() = %v, want %v", out, want)
	}
	if res.Samples != 4 || res.Overflows != 1 || res.FirstOverflow != 1 {
		t.Errorf("Result = %+v, want 4 samples, 1 overflow at 1", res)
	}

	// Reuses capacity without reallocating
	buf := make([]byte, 0, 8)
	out, _ = Append(buf, []byte{0x01, 0x01})
	if len(out) != 4 || &out[0] != &buf[:1][0] {
		t.Errorf("Append() did not decode in place: len=%d", len(out))
	}

	out, res = Append(nil, nil)
	if len(out) != 0 || res.FirstOverflow != -1 {
		t.Errorf("Append(nil, nil) = %v, %+v", out, res)
	}
}

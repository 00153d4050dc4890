// Package decode converts MAX2769 sign-magnitude bytes into signed samples.
//
// Byte layout as delivered by the FPGA FIFO:
//
//	[7:5] sample 0 (sign, msb mag, lsb mag)
//	[4:2] sample 1 (sign, msb mag, lsb mag)
//	[1]   unused
//	[0]   FIFO error flag, active low
package decode

import "errors"

// SamplesPerByte is the number of decoded samples produced by one raw byte.
const SamplesPerByte = 2

// ErrShortBuffer is returned when the destination cannot hold 2*len(src) samples.
var ErrShortBuffer = errors.New("decode: destination buffer too short")

// signMag maps a 3-bit sign-magnitude code to its signed value.
// Codes 4..7 carry the sign bit, so the mapping is not a plain bit transform.
var signMag = [8]int8{1, 3, 5, 7, -1, -3, -5, -7}

// Result summarizes one decoded block.
type Result struct {
	Samples       int // Samples written to dst
	Overflows     int // Bytes with the FIFO error flag asserted
	FirstOverflow int // Index in src of the first flagged byte, -1 if none
}

// Overflow reports whether b carries the FIFO overflow flag (bit 0 low).
func Overflow(b byte) bool {
	return b&0x01 == 0
}

// Pair returns the two samples packed in b.
func Pair(b byte) (int8, int8) {
	return signMag[(b>>5)&0x07], signMag[(b>>2)&0x07]
}

// Block decodes every byte of src into dst, two samples per byte, and reports
// flagged bytes. Decoding continues past a flagged byte so the block is
// delivered whole. Samples are stored as the two's complement byte of the int8.
func Block(dst, src []byte) (Result, error) {
	if len(dst) < len(src)*SamplesPerByte {
		return Result{FirstOverflow: -1}, ErrShortBuffer
	}
	return decodeInto(dst, src), nil
}

// Append decodes src onto the end of dst, growing it when needed, and
// returns the extended slice.
func Append(dst, src []byte) ([]byte, Result) {
	n := len(dst)
	need := n + len(src)*SamplesPerByte
	if cap(dst) < need {
		grown := make([]byte, n, need)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:need]
	return dst, decodeInto(dst[n:], src)
}

func decodeInto(dst, src []byte) Result {
	res := Result{FirstOverflow: -1}
	for i, b := range src {
		if b&0x01 == 0 {
			if res.Overflows == 0 {
				res.FirstOverflow = i
			}
			res.Overflows++
		}
		dst[2*i] = byte(signMag[(b>>5)&0x07])
		dst[2*i+1] = byte(signMag[(b>>2)&0x07])
	}
	res.Samples = len(src) * SamplesPerByte
	return res
}

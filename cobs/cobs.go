// Package cobs implements Consistent Overhead Byte Stuffing, the
// byte-level framing used by the binary payload engine (spec.md §4.1) to
// eliminate a chosen sentinel byte from an arbitrary payload so it can be
// terminated externally by a single occurrence of that sentinel.
//
// Grounded on the reference encoder/decoder in the original note-c
// implementation (n_cobs.c): the loop structure here is the same
// zero-triggers-a-block-break, 0xFF-triggers-a-block-break automaton, only
// expressed over Go slices instead of raw pointer arithmetic.
package cobs

import "errors"

// ErrBadFraming is returned by Decode/DecodeInPlace when a code byte
// declares a block length that would read past the end of the input.
var ErrBadFraming = errors.New("cobs: code byte points past end of input")

// maxBlock is the largest number of data bytes a single COBS code byte can
// describe (code value 0xFF means "254 non-zero bytes follow").
const maxBlock = 254

// Encode returns data encoded with COBS, using s as the byte eliminated
// from the output (XORed into every emitted byte so it cannot appear).
// The trailing end-of-packet sentinel is NOT included; callers append a
// single literal s byte at the transport layer.
func Encode(data []byte, s byte) []byte {
	out := make([]byte, 0, EncodedMaxLen(len(data)))
	out = append(out, 0) // placeholder for the first code byte
	codeIdx := 0
	code := byte(1)
	for _, ch := range data {
		if ch != 0 {
			out = append(out, ch^s)
			code++
		}
		if ch == 0 || code == 0xFF {
			out[codeIdx] = code ^ s
			code = 1
			codeIdx = len(out)
			out = append(out, 0) // placeholder for the next code byte
		}
	}
	out[codeIdx] = code ^ s
	return out
}

// EncodedLen returns the exact number of bytes Encode(data, s) would
// produce, without running the full encode.
func EncodedLen(data []byte, s byte) int {
	_ = s // the sentinel value does not affect the length, only the XOR
	n := 1
	code := byte(1)
	for _, ch := range data {
		if ch != 0 {
			n++
			code++
		}
		if ch == 0 || code == 0xFF {
			code = 1
			n++
		}
	}
	return n
}

// EncodedMaxLen returns the tight upper bound on the number of bytes
// required to COBS-encode n bytes, including the trailing sentinel. The
// worst case is achieved by an all-nonzero input: every run of exactly
// maxBlock bytes costs two code bytes (a leading 0xFF and a trailing empty
// block), which is why this is n + 2 + n/maxBlock rather than the naive
// n + ceil(n/maxBlock) + 1 that underestimates at exact multiples of 254.
func EncodedMaxLen(n int) int {
	return n + 2 + n/maxBlock
}

// GuaranteedFit returns the largest n such that EncodedMaxLen(n) <= cap.
// Used to size a buffer backwards from an available capacity.
//
// A naive cap-(2+cap/maxBlock) shortcut is off by one near multiples of
// maxBlock, because floor(n/maxBlock) and floor(cap/maxBlock) disagree
// exactly at those boundaries; this walks the true inverse of
// EncodedMaxLen instead (see the referenced Blues forum thread on the
// original off-by-one: discuss.blues.com/t/cobs-off-by-one-error...).
func GuaranteedFit(cap int) int {
	if cap < 2 {
		return 0
	}
	n := cap - 2 - cap/maxBlock
	if n < 0 {
		n = 0
	}
	for n > 0 && EncodedMaxLen(n) > cap {
		n--
	}
	for EncodedMaxLen(n+1) <= cap {
		n++
	}
	return n
}

// DecodeInPlace reverses a COBS-encoded span, overwriting the leading
// portion of buf with the decoded bytes (the decoded length is always <=
// the encoded length, so this never reads a byte it has not already
// consumed). It returns the decoded length. Decoding stops at the first
// literal zero code byte or when buf is exhausted.
func DecodeInPlace(buf []byte, s byte) (int, error) {
	n := len(buf)
	r, w := 0, 0
	prevCode := byte(0xFF) // sentinel meaning "no block closed yet"
	for r < n {
		code := buf[r] ^ s
		r++
		if code == 0 {
			break
		}
		if prevCode != 0xFF {
			// A non-maximal block is always followed by an implied zero
			// byte that COBS elided from the wire form.
			buf[w] = 0
			w++
		}
		blockLen := int(code) - 1
		if r+blockLen > n {
			return w, ErrBadFraming
		}
		for i := 0; i < blockLen; i++ {
			buf[w] = buf[r] ^ s
			w++
			r++
		}
		prevCode = code
	}
	return w, nil
}

// Decode reverses a COBS-encoded span into a freshly allocated slice,
// leaving data untouched.
func Decode(data []byte, s byte) ([]byte, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	n, err := DecodeInPlace(buf, s)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

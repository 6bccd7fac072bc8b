package cobs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodedMaxLen(t *testing.T) {
	cases := []struct {
		n, want int
	}{
		{0, 2},
		{1, 3},
		{6, 8},
		{253, 255},
		{254, 257}, // exact multiple of 254: two code bytes, not one
		{255, 258},
		{508, 512}, // two full blocks: three code bytes
		{65536, 65796},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EncodedMaxLen(c.n), "n=%d", c.n)
	}
}

func TestGuaranteedFit(t *testing.T) {
	cases := []struct {
		cap, want int
	}{
		{0, 0},
		{8, 6},
		{65796, 65536},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, GuaranteedFit(c.cap), "cap=%d", c.cap)
	}
}

func TestGuaranteedFitRoundTrip(t *testing.T) {
	for _, cap := range []int{3, 8, 255, 256, 257, 510, 511, 512, 65536, 65796, 262144} {
		n := GuaranteedFit(cap)
		assert.LessOrEqual(t, EncodedMaxLen(n), cap, "cap=%d n=%d", cap, n)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0},
		{0, 0, 0},
		{1, 2, 3},
		[]byte("Hello Blues!"),
		bytes.Repeat([]byte{0xAA}, 254),
		bytes.Repeat([]byte{0xAA}, 255),
		bytes.Repeat([]byte{0xAA}, 508),
		append([]byte{0x00, 0x00}, bytes.Repeat([]byte{1, 2, 3, 0}, 100)...),
	}
	for _, sentinel := range []byte{0, '\n'} {
		for _, in := range cases {
			enc := Encode(in, sentinel)
			assert.LessOrEqual(t, len(enc)+1, EncodedMaxLen(len(in)))
			assert.NotContains(t, enc, sentinel, "encoded output must not contain the sentinel")

			out, err := Decode(enc, sentinel)
			require.NoError(t, err)
			if len(in) == 0 {
				assert.Empty(t, out)
			} else {
				assert.Equal(t, in, out)
			}
		}
	}
}

func TestEncodedLenMatchesEncode(t *testing.T) {
	in := []byte("the quick brown fox jumps over the lazy dog")
	assert.Equal(t, len(Encode(in, 0)), EncodedLen(in, 0))
}

func TestDecodeBadFraming(t *testing.T) {
	// code byte 5 claims a 4-byte block but only 2 bytes remain.
	bad := []byte{5, 0x41, 0x42}
	_, err := Decode(bad, 0)
	assert.ErrorIs(t, err, ErrBadFraming)
}

func TestDecodeStopsAtZeroCode(t *testing.T) {
	// A literal zero code byte (after XOR) terminates decoding early, even
	// if more bytes remain in the span.
	buf := []byte{2, 0x41, 0x00, 0x99}
	n, err := DecodeInPlace(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), buf[:n])
}

package binpay_test

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/notelink"
	"github.com/ardnew/notelink/binpay"
	"github.com/ardnew/notelink/cobs"
	"github.com/ardnew/notelink/hal/simhal"
	"github.com/ardnew/notelink/jobj"
	"github.com/ardnew/notelink/transport/serial"
)

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// newStoreFixture wires a Store to a simhal Device whose routes model
// card.binary/.put/.get closely enough to exercise the offset,
// capacity, and MD5-gate logic end to end. card.binary.put arms
// ExpectRawLine to decode the COBS payload line that follows the JSON
// control line and append it to stored, matching binpay's own
// two-line-out wire shape; card.binary.get answers a single JSON
// request with a status line plus a raw COBS-encoded frame via
// QueueRaw, matching the two-line-in shape.
func newStoreFixture(t *testing.T, max int) (*binpay.Store, *[]byte) {
	t.Helper()
	stored := make([]byte, 0)
	var dev *simhal.Device

	routes := map[string]func(*jobj.J) *jobj.J{
		"card.binary": func(req *jobj.J) *jobj.J {
			if jobj.GetBool(req, "delete") {
				stored = stored[:0]
				return jobj.NewObject()
			}
			return jobj.Objectf("length:%d max:%d", len(stored), max)
		},
		"card.binary.put": func(req *jobj.J) *jobj.J {
			dev.ExpectRawLine(func(raw []byte) *jobj.J {
				decoded, err := cobs.Decode(raw, '\n')
				if err != nil {
					return jobj.Objectf("err:%s", "cobs decode failed {bad-bin}")
				}
				stored = append(stored, decoded...)
				return jobj.Objectf("status:%s", md5Hex(stored))
			})
			return nil
		},
		"card.binary.get": func(req *jobj.J) *jobj.J {
			offset := int(jobj.GetInt(req, "offset"))
			length := int(jobj.GetInt(req, "length"))
			if offset < 0 || length < 0 || offset+length > len(stored) {
				return jobj.Objectf("err:%s", "card.binary.get: out of range {io-bad}")
			}
			chunk := stored[offset : offset+length]
			dev.QueueRaw([]byte(jobj.Print(jobj.Objectf("status:%s", md5Hex(chunk)))))
			dev.QueueRaw(cobs.Encode(chunk, '\n'))
			return nil
		},
	}
	dev = simhal.NewDevice(simhal.JSONHandler(routes))
	ctx := notelink.New(serial.New(dev), dev)
	return binpay.New(ctx), &stored
}

// newMismatchFixture builds a put route that always reports a wrong
// digest, to exercise binpay's MD5 gate on the transmit side (spec.md
// §8 Testable Property #9 / E2E Scenario E5).
func newMismatchFixture(t *testing.T, max int) *binpay.Store {
	t.Helper()
	var dev *simhal.Device
	routes := map[string]func(*jobj.J) *jobj.J{
		"card.binary": func(req *jobj.J) *jobj.J {
			return jobj.Objectf("length:%d max:%d", 0, max)
		},
		"card.binary.put": func(req *jobj.J) *jobj.J {
			dev.ExpectRawLine(func(raw []byte) *jobj.J {
				return jobj.Objectf("status:%s", "deadbeefdeadbeefdeadbeefdeadbeef")
			})
			return nil
		},
	}
	dev = simhal.NewDevice(simhal.JSONHandler(routes))
	ctx := notelink.New(serial.New(dev), dev)
	return binpay.New(ctx)
}

// newReceiveMismatchFixture answers card.binary.get with a status line
// whose digest never matches the payload, exercising the MD5 gate on
// the receive side.
func newReceiveMismatchFixture(t *testing.T, data []byte) *binpay.Store {
	t.Helper()
	var dev *simhal.Device
	routes := map[string]func(*jobj.J) *jobj.J{
		"card.binary": func(req *jobj.J) *jobj.J {
			return jobj.Objectf("length:%d max:%d", len(data), 1<<20)
		},
		"card.binary.get": func(req *jobj.J) *jobj.J {
			dev.QueueRaw([]byte(jobj.Print(jobj.Objectf("status:%s", "00000000000000000000000000000000"))))
			dev.QueueRaw(cobs.Encode(data, '\n'))
			return nil
		},
	}
	dev = simhal.NewDevice(simhal.JSONHandler(routes))
	ctx := notelink.New(serial.New(dev), dev)
	return binpay.New(ctx)
}

func TestStoreDecodedLength(t *testing.T) {
	store, stored := newStoreFixture(t, 1024)
	*stored = append(*stored, []byte("abc")...)
	n, err := store.StoreDecodedLength()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTransmitRejectsNonAppendOffset(t *testing.T) {
	store, _ := newStoreFixture(t, 1024)
	err := store.Transmit([]byte("hello"), 5)
	require.Error(t, err)
}

func TestTransmitRejectsOverCapacity(t *testing.T) {
	store, _ := newStoreFixture(t, 2)
	err := store.Transmit([]byte("hello world"), 0)
	require.Error(t, err)
}

func TestReceiveRejectsBufferTooSmall(t *testing.T) {
	store, _ := newStoreFixture(t, 1024)
	buf := make([]byte, 1)
	_, err := store.Receive(buf, 0, 100)
	require.Error(t, err)
}

func TestReceiveBufferSizingMatchesCOBSWorstCase(t *testing.T) {
	// cobs.EncodedMaxLen(length)+1 is exactly the contract Receive
	// checks against; a buffer one byte short must be rejected.
	length := 300
	need := cobs.EncodedMaxLen(length) + 1
	store, _ := newStoreFixture(t, 1<<20)
	_, err := store.Receive(make([]byte, need-1), 0, length)
	require.Error(t, err)
}

func TestTransmitSucceeds(t *testing.T) {
	store, stored := newStoreFixture(t, 1024)
	err := store.Transmit([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), *stored)
}

func TestTransmitAppendsAtNonZeroOffset(t *testing.T) {
	store, stored := newStoreFixture(t, 1024)
	require.NoError(t, store.Transmit([]byte("hello"), 0))
	require.NoError(t, store.Transmit([]byte(" world"), 5))
	assert.Equal(t, []byte("hello world"), *stored)
}

func TestTransmitDetectsMD5Mismatch(t *testing.T) {
	store := newMismatchFixture(t, 1024)
	err := store.Transmit([]byte("hello"), 0)
	require.Error(t, err)
}

func TestReceiveRoundTrip(t *testing.T) {
	store, stored := newStoreFixture(t, 1024)
	*stored = append(*stored, []byte("abcdef")...)
	buf := make([]byte, cobs.EncodedMaxLen(len(*stored))+1)
	n, err := store.Receive(buf, 0, len(*stored))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(buf[:n]))
}

func TestReceiveDetectsMD5Mismatch(t *testing.T) {
	store := newReceiveMismatchFixture(t, []byte("xyz"))
	buf := make([]byte, cobs.EncodedMaxLen(3)+1)
	_, err := store.Receive(buf, 0, 3)
	require.Error(t, err)
}

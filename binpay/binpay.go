// Package binpay implements the binary payload engine (spec.md §4.7):
// a length-prefixed, COBS-encoded transfer of opaque binary data to
// and from the device's content-addressed binary store, with MD5
// integrity verification on every transfer.
//
// Grounded on spec.md §6's choice of '\n' as the COBS end-of-packet
// sentinel for the binary wire layer: the encoded stream can never
// contain a literal newline, so transmitting or receiving a COBS frame
// is just one more line-delimited Transmit/Receive call on the same
// notelink.Transport used for ordinary JSON requests — no separate
// binary transport capability is needed.
package binpay

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/ardnew/notelink"
	"github.com/ardnew/notelink/cobs"
	"github.com/ardnew/notelink/jobj"
)

// cobsSentinel is the end-of-packet byte COBS eliminates from the
// encoded binary stream (spec.md §6).
const cobsSentinel = '\n'

// Store is the host-side handle to the device's binary payload store
// (spec.md §3): a byte sequence of current length L, a maximum
// capacity M, and an MD5 digest the device reports after each
// transfer. mirror tracks the cumulative content the host believes is
// stored, so Transmit can verify the device's reported digest against
// the full content rather than just the newly appended bytes.
type Store struct {
	ctx    *notelink.Context
	mirror []byte
}

// New returns a Store layered on ctx's transport and device lock.
func New(ctx *notelink.Context) *Store {
	return &Store{ctx: ctx}
}

// query issues a bare card.binary request and returns the device's
// reported (length, max).
func (s *Store) query() (length, max int, err error) {
	resp := s.ctx.Transaction(jobj.Objectf("req:%s", "card.binary"))
	if errStr := jobj.GetString(resp, "err"); errStr != "" {
		return 0, 0, notelink.ProtocolFault(errStr)
	}
	return int(jobj.GetInt(resp, "length")), int(jobj.GetInt(resp, "max")), nil
}

// StoreDecodedLength reports the device's currently stored decoded
// byte length (spec.md §4.7 "store-decoded-length").
func (s *Store) StoreDecodedLength() (int, error) {
	length, _, err := s.query()
	return length, err
}

// Reset clears the device's binary payload store (spec.md §4.7:
// card.binary with delete=true) and forgets the host-side mirror.
func (s *Store) Reset() error {
	resp := s.ctx.Transaction(jobj.Objectf("req:%s delete:%b", "card.binary", 1))
	if errStr := jobj.GetString(resp, "err"); errStr != "" {
		return notelink.ProtocolFault(errStr)
	}
	s.mirror = nil
	return nil
}

// Transmit appends data at offset (spec.md §4.7: append-only, offset
// must equal the device's current stored length, and
// length+encoded_size(data) must not exceed max). data is never
// mutated — cobs.Encode allocates a fresh buffer, so a failed transfer
// always leaves the caller's original bytes untouched (spec.md §9 Open
// Questions: retries re-encode from the pristine input).
func (s *Store) Transmit(data []byte, offset int) error {
	length, max, err := s.query()
	if err != nil {
		return err
	}
	if offset != length {
		return notelink.LogicFault(fmt.Sprintf(
			"binpay: offset %d != store length %d (append-only)", offset, length))
	}

	encoded := cobs.Encode(data, cobsSentinel)
	if length+len(encoded) > max {
		return notelink.LogicFault(fmt.Sprintf(
			"binpay: transfer of %d encoded bytes at offset %d exceeds device capacity %d", len(encoded), offset, max))
	}

	cumulative := append(append([]byte(nil), s.mirror...), data...)
	wantMD5 := md5Hex(cumulative)

	req := jobj.Objectf("req:%s cobs:%d", "card.binary.put", len(encoded))
	if offset != 0 {
		jobj.AddItemToObject(req, "offset", jobj.NewInt(int64(offset)))
	}
	if err := s.ctx.Transport().Transmit([]byte(jobj.Print(req) + "\n")); err != nil {
		return notelink.IOFault(err)
	}
	if err := s.ctx.Transport().Transmit(append(encoded, '\n')); err != nil {
		return notelink.IOFault(err)
	}

	raw, err := s.ctx.Transport().Receive(s.ctx.Timeout())
	if err != nil {
		return notelink.IOFault(err)
	}
	resp, perr := jobj.Parse(string(raw))
	if perr != nil {
		return notelink.ParseFault(perr)
	}
	if errStr := jobj.GetString(resp, "err"); errStr != "" {
		return notelink.ProtocolFault(errStr)
	}

	gotMD5 := jobj.GetString(resp, "status")
	if gotMD5 != wantMD5 {
		return notelink.BadBinFault(fmt.Errorf(
			"md5 mismatch: device reported %s, host computed %s", gotMD5, wantMD5))
	}
	s.mirror = cumulative
	return nil
}

// Receive reads length decoded bytes starting at offset into buf
// (spec.md §4.7 receive) and returns the number of bytes written. buf
// must be at least cobs.EncodedMaxLen(length)+1 bytes, the "+1" for
// the trailing newline slot the parser's buffer convention reserves;
// otherwise BufferTooSmall (LogicFault) is returned without touching
// the transport.
func (s *Store) Receive(buf []byte, offset, length int) (int, error) {
	need := cobs.EncodedMaxLen(length) + 1
	if len(buf) < need {
		return 0, notelink.LogicFault(fmt.Sprintf(
			"binpay: buffer too small: have %d, need %d", len(buf), need))
	}

	req := jobj.Objectf("req:%s offset:%d length:%d", "card.binary.get", offset, length)
	if err := s.ctx.Transport().Transmit([]byte(jobj.Print(req) + "\n")); err != nil {
		return 0, notelink.IOFault(err)
	}

	statusLine, err := s.ctx.Transport().Receive(s.ctx.Timeout())
	if err != nil {
		return 0, notelink.IOFault(err)
	}
	resp, perr := jobj.Parse(string(statusLine))
	if perr != nil {
		return 0, notelink.ParseFault(perr)
	}
	if errStr := jobj.GetString(resp, "err"); errStr != "" {
		return 0, notelink.ProtocolFault(errStr)
	}
	wantMD5 := jobj.GetString(resp, "status")

	encoded, err := s.ctx.Transport().Receive(s.ctx.Timeout())
	if err != nil {
		return 0, notelink.IOFault(err)
	}
	n := copy(buf, encoded)
	decoded, derr := cobs.DecodeInPlace(buf[:n], cobsSentinel)
	if derr != nil {
		return 0, notelink.BadBinFault(derr)
	}

	gotMD5 := md5Hex(buf[:decoded])
	if gotMD5 != wantMD5 {
		return 0, notelink.BadBinFault(fmt.Errorf(
			"md5 mismatch: device reported %s, host computed %s", wantMD5, gotMD5))
	}
	return decoded, nil
}

// ReceiveAll queries the device's stored length and reads the entire
// store into buf (spec.md §4.7 "receive-all").
func (s *Store) ReceiveAll(buf []byte) (int, error) {
	length, _, err := s.query()
	if err != nil {
		return 0, err
	}
	return s.Receive(buf, 0, length)
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

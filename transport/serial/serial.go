// Package serial implements the UART/USB-serial transport (spec.md
// §4.4), grounded on the original n_serial.c: a segment-paced writer
// and a byte-at-a-time reader with a dynamically growing line buffer,
// plus the newline resync reset protocol.
package serial

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardnew/notelink"
	"github.com/ardnew/notelink/internal/clock"
)

// Bindings is the platform hook table a concrete serial/USB-serial
// driver must provide. It embeds notelink.Clock because pacing and
// timeout accounting both run off the same millisecond source the rest
// of the engine uses.
type Bindings interface {
	notelink.Clock

	// Transmit writes data to the wire. flush is true on the final
	// segment of a request, hinting the driver to push any internal
	// buffering immediately.
	Transmit(data []byte, flush bool) error

	// Available reports whether at least one received byte is ready.
	Available() bool

	// ReceiveByte returns the next received byte. Only called when
	// Available reports true.
	ReceiveByte() byte
}

// ErrNotResponding is returned by Reset when no attempt within the
// retry budget observes the drain criterion (spec.md §4.4).
var ErrNotResponding = errors.New("serial: notecard not responding")

// TimeoutError reports a Receive deadline expiry, satisfying the
// engine's timeoutError convention so it classifies as {io-timeout}
// rather than a generic {io} fault.
type TimeoutError struct{ Op string }

func (e *TimeoutError) Error() string { return fmt.Sprintf("serial: %s timed out", e.Op) }
func (e *TimeoutError) Timeout() bool { return true }

const (
	// defaultSegmentLen stands in for the platform-tuned
	// CARD_REQUEST_SEGMENT_MAX_LEN of the original firmware: the
	// largest chunk written before a pacing delay is inserted.
	defaultSegmentLen = 250
	// defaultSegmentDelayMs stands in for CARD_REQUEST_SEGMENT_DELAY_MS.
	defaultSegmentDelayMs = 250
	// interByteTimeoutMs bounds the gap between two bytes of the same
	// response line once the first byte has arrived.
	interByteTimeoutMs = 1000
	// resetRetries and resetDelayMs are n_serial.c's reset-protocol
	// retry budget and per-attempt settle delay.
	resetRetries  = 10
	resetDelayMs  = 500
	resetDrainMs  = 500
	pollIntervalMs = 1
)

// Transport implements notelink.Transport over a Bindings.
type Transport struct {
	b              Bindings
	segmentLen     int
	segmentDelayMs uint32
	turbo          bool
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithSegment overrides the write-segment length and inter-segment
// pacing delay.
func WithSegment(length int, delayMs uint32) Option {
	return func(t *Transport) { t.segmentLen, t.segmentDelayMs = length, delayMs }
}

// WithTurbo disables inter-segment pacing entirely, for high-speed
// USB-CDC links that don't need it (spec.md §4.4 "turbo mode").
func WithTurbo(turbo bool) Option {
	return func(t *Transport) { t.turbo = turbo }
}

// New returns a Transport wrapping b.
func New(b Bindings, opts ...Option) *Transport {
	t := &Transport{
		b:              b,
		segmentLen:     defaultSegmentLen,
		segmentDelayMs: defaultSegmentDelayMs,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transmit writes req (already LF-terminated) in segmentLen-sized
// chunks, pacing between all but the final chunk unless turbo mode is
// enabled (spec.md §4.4).
func (t *Transport) Transmit(req []byte) error {
	pos := 0
	for pos < len(req) {
		end := pos + t.segmentLen
		final := end >= len(req)
		if final {
			end = len(req)
		}
		if err := t.b.Transmit(req[pos:end], final); err != nil {
			return err
		}
		pos = end
		if !final && !t.turbo {
			t.b.DelayMs(t.segmentDelayMs)
		}
	}
	return nil
}

// Receive reads one newline-terminated line within timeout, waiting up
// to timeout for the first byte and up to interByteTimeoutMs between
// subsequent bytes (spec.md §4.4's dual-timeout receive loop). The
// fixed-size buffer-with-manual-growth of n_serial.c is replaced here
// by an ordinary growing Go slice; the externally observable behavior
// (newline termination, dual timeouts) is unchanged.
func (t *Transport) Receive(timeout time.Duration) ([]byte, error) {
	start := t.b.GetMs()
	for !t.b.Available() {
		if clock.Expired(start, t.b.GetMs(), uint32(timeout.Milliseconds())) {
			return nil, &TimeoutError{Op: "waiting for first byte"}
		}
		t.b.DelayMs(pollIntervalMs)
	}

	buf := make([]byte, 0, 256)
	lastByte := t.b.GetMs()
	for {
		if !t.b.Available() {
			if clock.Expired(lastByte, t.b.GetMs(), interByteTimeoutMs) {
				return nil, &TimeoutError{Op: "waiting between bytes"}
			}
			t.b.DelayMs(pollIntervalMs)
			continue
		}
		ch := t.b.ReceiveByte()
		lastByte = t.b.GetMs()
		if ch == '\n' {
			return buf, nil
		}
		buf = append(buf, ch)
	}
}

// Reset runs the newline resync protocol: transmit a bare LF,
// drain whatever arrives over a resetDrainMs window, and succeed only
// if at least one byte arrived and none of them were printable — the
// signature of a card flushing its own pending newline-terminated
// noise rather than echoing real JSON (spec.md §4.4, grounded on
// n_serial.c's serialNoteReset). Retries up to resetRetries times.
func (t *Transport) Reset() error {
	for attempt := 0; attempt < resetRetries; attempt++ {
		if err := t.b.Transmit([]byte{'\n'}, true); err != nil {
			t.b.DelayMs(resetDelayMs)
			continue
		}
		somethingFound, printableFound := t.drain(resetDrainMs)
		if somethingFound && !printableFound {
			return nil
		}
		t.b.DelayMs(resetDelayMs)
	}
	return ErrNotResponding
}

// drain consumes every byte that arrives within windowMs, reporting
// whether anything arrived at all and whether any byte was printable
// (>= ' ').
func (t *Transport) drain(windowMs uint32) (somethingFound, printableFound bool) {
	start := t.b.GetMs()
	for !clock.Expired(start, t.b.GetMs(), windowMs) {
		if !t.b.Available() {
			t.b.DelayMs(pollIntervalMs)
			continue
		}
		ch := t.b.ReceiveByte()
		somethingFound = true
		if ch >= ' ' {
			printableFound = true
		}
	}
	return somethingFound, printableFound
}

package notelink

import (
	"time"

	"github.com/ardnew/notelink/jobj"
)

// Transport is the capability trait spec.md §9's Design Notes call for
// in place of the original function-pointer hook table: a single
// interface covering reset/transmit/receive with timeout knobs
// injected per call, satisfied independently by transport/serial and
// transport/i2c (and, for tests, hal/simhal).
type Transport interface {
	// Reset resynchronizes the link (spec.md §4.4/§4.5 reset protocol).
	Reset() error

	// Transmit writes req, which must already end in a single LF, using
	// this transport's chunking/pacing discipline.
	Transmit(req []byte) error

	// Receive reads a single newline-terminated response within
	// timeout, growing its internal buffer as needed, and returns the
	// response with the trailing newline stripped.
	Receive(timeout time.Duration) ([]byte, error)
}

// TimeoutOverrider is an optional capability a Transport may satisfy to
// apply its own domain-specific override on top of the timeout the
// engine already derived from the request document (spec.md §4.5: I2C
// extends any "web.*" request to 90s, or to an explicit "seconds"
// field, because the device-side web relay can run far longer than a
// local transaction). Transports that don't need this, such as serial,
// simply don't implement it.
type TimeoutOverrider interface {
	OverrideTimeout(req *jobj.J, timeout time.Duration) time.Duration
}

// The COBS-framed binary payload engine (binpay) reuses this same
// Transport: a card.binary.put/get exchange is just one or two
// additional newline-terminated lines over the link (spec.md §6's
// binary payload wire layer chooses '\n' as the COBS sentinel
// specifically so the encoded stream can share the ordinary
// line-delimited Transmit/Receive calls used for JSON).

// Package i2c implements the I2C transport (spec.md §4.5), grounded on
// the original n_i2c.c: chunked writes, a zero-length "query" read that
// reports how many bytes the device has queued, and a drain-based reset
// protocol. It also applies the web.* request timeout override spec.md
// §4.5 calls for, via notelink.TimeoutOverrider.
package i2c

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ardnew/notelink"
	"github.com/ardnew/notelink/internal/clock"
	"github.com/ardnew/notelink/jobj"
)

// Bindings is the platform hook table a concrete I2C driver must
// provide, addressed implicitly (the driver already knows which bus
// address the card lives at).
type Bindings interface {
	notelink.Clock

	// Transmit writes data in a single I2C transaction.
	Transmit(data []byte) error

	// Receive reads up to len(buf) bytes into buf, returning the number
	// of bytes actually written and how many more bytes the device
	// still has queued after this read. A zero-length buf is the
	// "query" form: it writes nothing and returns (0, available).
	Receive(buf []byte) (n, available int, err error)
}

// ErrNotResponding is returned by Reset when no attempt within the
// retry budget observes the drain criterion.
var ErrNotResponding = errors.New("i2c: notecard not responding")

// TimeoutError reports a Receive deadline expiry.
type TimeoutError struct{ Op string }

func (e *TimeoutError) Error() string { return fmt.Sprintf("i2c: %s timed out", e.Op) }
func (e *TimeoutError) Timeout() bool { return true }

const (
	// defaultMaxChunk and hardMaxChunk bound a single I2C read/write:
	// spec.md §4.5 "no larger than configured per-transaction maximum
	// (default 30, hard-capped at 127)".
	defaultMaxChunk = 30
	hardMaxChunk    = 127

	pacingDelayMs = 6
	pollDelayMs   = 50

	webTimeout = 90 * time.Second

	resetRetries = 3
)

// Transport implements notelink.Transport over a Bindings.
type Transport struct {
	b        Bindings
	maxChunk int
	turbo    bool
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithMaxChunk overrides the per-transaction chunk size, still clamped
// to hardMaxChunk.
func WithMaxChunk(n int) Option {
	return func(t *Transport) { t.maxChunk = n }
}

// WithTurbo disables the 6ms/50ms pacing delays for buses fast enough
// not to need them.
func WithTurbo(turbo bool) Option {
	return func(t *Transport) { t.turbo = turbo }
}

// New returns a Transport wrapping b.
func New(b Bindings, opts ...Option) *Transport {
	t := &Transport{b: b, maxChunk: defaultMaxChunk}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) chunk() int {
	if t.maxChunk <= 0 || t.maxChunk > hardMaxChunk {
		return hardMaxChunk
	}
	return t.maxChunk
}

func (t *Transport) pace(ms uint32) {
	if !t.turbo {
		t.b.DelayMs(ms)
	}
}

// Transmit writes req (already LF-terminated) in chunk-sized pieces,
// pacing before every chunk unless turbo mode is enabled (spec.md
// §4.5).
func (t *Transport) Transmit(req []byte) error {
	chunk := t.chunk()
	for pos := 0; pos < len(req); {
		t.pace(pacingDelayMs)
		end := pos + chunk
		if end > len(req) {
			end = len(req)
		}
		if err := t.b.Transmit(req[pos:end]); err != nil {
			return err
		}
		pos = end
	}
	return nil
}

// query issues a zero-length read to learn how many bytes the device
// currently has queued, without consuming any of them.
func (t *Transport) query() (int, error) {
	_, available, err := t.b.Receive(nil)
	if err != nil {
		return 0, err
	}
	return available, nil
}

// Receive reads one newline-terminated response within timeout,
// growing its buffer chunk by chunk as the device reports more data
// available (spec.md §4.5, grounded on n_i2c.c's
// i2cNoteTransaction receive loop: query for available, read up to
// chunk bytes, repeat until a newline has been seen and available
// reaches zero).
func (t *Transport) Receive(timeout time.Duration) ([]byte, error) {
	chunk := t.chunk()
	start := t.b.GetMs()

	available, err := t.query()
	if err != nil {
		return nil, err
	}
	for available == 0 {
		if clock.Expired(start, t.b.GetMs(), uint32(timeout.Milliseconds())) {
			return nil, &TimeoutError{Op: "waiting for data"}
		}
		t.pace(pollDelayMs)
		available, err = t.query()
		if err != nil {
			return nil, err
		}
	}

	buf := make([]byte, 0, chunk)
	sawNewline := false
	for {
		readLen := available
		if readLen > chunk {
			readLen = chunk
		}
		t.pace(pacingDelayMs)
		tmp := make([]byte, readLen)
		n, avail, err := t.b.Receive(tmp)
		if err != nil {
			return nil, err
		}
		buf = append(buf, tmp[:n]...)
		available = avail
		if len(buf) > 0 && buf[len(buf)-1] == '\n' {
			sawNewline = true
		}

		if available > 0 {
			continue
		}
		if sawNewline {
			break
		}
		if clock.Expired(start, t.b.GetMs(), uint32(timeout.Milliseconds())) {
			return nil, &TimeoutError{Op: "waiting for newline"}
		}
		t.pace(pollDelayMs)
		available, err = t.query()
		if err != nil {
			return nil, err
		}
	}
	return buf[:len(buf)-1], nil
}

// Reset transmits a bare LF, then drains chunks until the device
// reports zero bytes available, up to resetRetries times on a
// transport error. Success uses the same "something arrived, nothing
// printable" criterion as transport/serial (spec.md §4.5, grounded on
// n_i2c.c's i2cNoteReset drain loop).
func (t *Transport) Reset() error {
	for attempt := 0; attempt < resetRetries; attempt++ {
		if err := t.b.Transmit([]byte{'\n'}); err != nil {
			continue
		}
		somethingFound, printableFound, err := t.drain()
		if err != nil {
			continue
		}
		if somethingFound && !printableFound {
			return nil
		}
	}
	return ErrNotResponding
}

func (t *Transport) drain() (somethingFound, printableFound bool, err error) {
	chunk := t.chunk()
	available, err := t.query()
	if err != nil {
		return false, false, err
	}
	for available > 0 {
		readLen := available
		if readLen > chunk {
			readLen = chunk
		}
		tmp := make([]byte, readLen)
		n, avail, err := t.b.Receive(tmp)
		if err != nil {
			return somethingFound, printableFound, err
		}
		if n > 0 {
			somethingFound = true
		}
		for _, c := range tmp[:n] {
			if c >= ' ' {
				printableFound = true
			}
		}
		available = avail
	}
	return somethingFound, printableFound, nil
}

// OverrideTimeout implements notelink.TimeoutOverrider: for a request
// whose "req" or "cmd" names a web.* endpoint, an explicit "seconds"
// field is used as-is; otherwise the timeout is raised to webTimeout
// if it is shorter (spec.md §4.5: "the device-side web relay can run
// far longer than a local transaction").
func (t *Transport) OverrideTimeout(req *jobj.J, timeout time.Duration) time.Duration {
	name := jobj.GetString(req, "req")
	if name == "" {
		name = jobj.GetString(req, "cmd")
	}
	if !strings.Contains(name, "web.") {
		return timeout
	}
	if jobj.IsPresent(req, "seconds") {
		return time.Duration(jobj.GetInt(req, "seconds")) * time.Second
	}
	if timeout < webTimeout {
		return webTimeout
	}
	return timeout
}

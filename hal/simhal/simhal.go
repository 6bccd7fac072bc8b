// Package simhal is an in-memory simulated Notecard, adapted from the
// teacher's host/hal/fifo named-pipe simulator: where fifo.HostHAL
// shuttles USB SETUP/DATA messages across named pipes to a real
// external device process, Device shuttles newline-delimited JSON
// lines across in-memory queues to a handler function running in the
// same process. It satisfies notelink.Bindings plus the
// transport/serial and transport/i2c Bindings interfaces, so the same
// simulated card can back either transport in tests and in
// cmd/notelinkctl's -sim mode. ExpectRawLine/QueueRaw let a route
// handler step outside the one-JSON-line-in, one-JSON-line-out default
// for multi-line exchanges such as binpay's binary payload transfers.
package simhal

import (
	"strings"
	"sync"

	"github.com/ardnew/notelink/jobj"
)

// Handler answers one request line (a parsed JSON document) with a
// response document. A nil return means "no reply" (spec.md §4.6 "cmd"
// documents are fire-and-forget).
type Handler func(req *jobj.J) *jobj.J

// Device is a simulated Notecard: a pair of byte queues (toDevice,
// toHost) bridged by Handler, plus the clock and mutex bindings
// notelink.Bindings requires.
type Device struct {
	mu sync.Mutex

	clockMs uint32

	toDevice []byte
	toHost   []byte

	handler Handler
	rawNext func(line []byte) *jobj.J

	busMu, deviceMu sync.Mutex

	resetScript []bool // queued Reset() outcomes for fault-injection tests; true = succeed
}

// NewDevice returns a Device that answers every request with handler.
func NewDevice(handler Handler) *Device {
	return &Device{handler: handler}
}

// --- notelink.Clock ---

// GetMs returns the simulated clock, advanced only by DelayMs: there is
// no wall-clock sleep, so tests run at full speed regardless of how
// many virtual milliseconds a transport waits.
func (d *Device) GetMs() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clockMs
}

// DelayMs advances the simulated clock by ms without actually
// sleeping.
func (d *Device) DelayMs(ms uint32) {
	d.mu.Lock()
	d.clockMs += ms
	d.mu.Unlock()
}

// --- notelink.Mutexes ---

func (d *Device) LockBus()      { d.busMu.Lock() }
func (d *Device) UnlockBus()    { d.busMu.Unlock() }
func (d *Device) LockDevice()   { d.deviceMu.Lock() }
func (d *Device) UnlockDevice() { d.deviceMu.Unlock() }

// --- shared line protocol ---

// feed appends data to the inbound queue, and for every complete
// newline-terminated line it contains, invokes handler and queues the
// JSON-printed response (LF-terminated) for the host to read back.
func (d *Device) feed(data []byte) {
	d.mu.Lock()
	d.toDevice = append(d.toDevice, data...)
	for {
		i := indexByte(d.toDevice, '\n')
		if i < 0 {
			break
		}
		line := d.toDevice[:i]
		d.toDevice = d.toDevice[i+1:]
		d.respond(line)
	}
	d.mu.Unlock()
}

// respond parses line as a request document and, if handler returns a
// non-nil response, appends its printed form to the outbound queue. An
// empty line is the reset ping both transports send (serial and i2c
// each send a bare "\n", which splits into one empty line),
// answered per the scripted reset outcome instead of as JSON. Called
// with d.mu held.
func (d *Device) respond(line []byte) {
	if d.rawNext != nil {
		consumer := d.rawNext
		d.rawNext = nil
		resp := consumer(line)
		if resp != nil {
			d.toHost = append(d.toHost, []byte(jobj.Print(resp))...)
			d.toHost = append(d.toHost, '\n')
		}
		return
	}
	if len(line) == 0 {
		if d.nextResetOutcome() {
			d.toHost = append(d.toHost, 0x00, 0x01) // non-printable drain noise
		}
		return
	}
	req, err := jobj.Parse(string(line))
	if err != nil {
		d.toHost = append(d.toHost, []byte(`{"err":"bad json {io}"}`)...)
		d.toHost = append(d.toHost, '\n')
		return
	}
	resp := d.handler(req)
	if resp == nil {
		return
	}
	d.toHost = append(d.toHost, []byte(jobj.Print(resp))...)
	d.toHost = append(d.toHost, '\n')
}

// ExpectRawLine arms the device to hand its next received line to
// consumer verbatim instead of parsing it as JSON, and to queue
// whatever consumer returns as the response. Models a multi-line
// request such as binpay's card.binary.put (a JSON control line
// describing a COBS payload, followed immediately by the raw encoded
// payload line itself, answered with a single status response once
// both have arrived). Must only be called from within a route
// handler's own dispatch, which already runs with the device's
// internal state exclusively owned by the calling goroutine.
func (d *Device) ExpectRawLine(consumer func(line []byte) *jobj.J) {
	d.rawNext = consumer
}

// QueueRaw appends line plus a trailing newline directly to the
// outbound queue, bypassing the JSON response path. Lets a route
// handler emit more than one response line for a single request, e.g.
// binpay's card.binary.get status-line-then-raw-COBS-frame shape.
// Same calling-context restriction as ExpectRawLine.
func (d *Device) QueueRaw(line []byte) {
	d.toHost = append(d.toHost, line...)
	d.toHost = append(d.toHost, '\n')
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// QueueResetOutcome pre-seeds the outcome of the next N reset pings
// (one per empty line the device receives): true values make the
// simulated drain criterion succeed (something arrived, nothing
// printable), false leaves the queue empty so that reset attempt
// fails and retries. Used to test the engine's bounded retry and
// reset-latch behavior deterministically.
func (d *Device) QueueResetOutcome(outcomes ...bool) {
	d.mu.Lock()
	d.resetScript = append(d.resetScript, outcomes...)
	d.mu.Unlock()
}

// nextResetOutcome pops the next scripted reset outcome. Called with
// d.mu held (from respond, via feed).
func (d *Device) nextResetOutcome() bool {
	if len(d.resetScript) == 0 {
		return true // default: reset always succeeds
	}
	ok := d.resetScript[0]
	d.resetScript = d.resetScript[1:]
	return ok
}

// --- transport/serial.Bindings ---

func (d *Device) Transmit(data []byte, flush bool) error {
	d.feed(data)
	return nil
}

func (d *Device) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.toHost) > 0
}

func (d *Device) ReceiveByte() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.toHost[0]
	d.toHost = d.toHost[1:]
	return b
}

// i2cTransmit and i2cReceive give the simulated device an I2C-flavored
// view of the same queues, letting one Device back either transport in
// tests without modeling two physically distinct wires. They are
// unexported because their signatures collide with the serial-shaped
// Transmit/Receive above; I2C callers go through the AsI2C() adapter.
func (d *Device) i2cTransmit(data []byte) error {
	d.feed(data)
	return nil
}

func (d *Device) i2cReceive(buf []byte) (n, available int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n = copy(buf, d.toHost)
	d.toHost = d.toHost[n:]
	return n, len(d.toHost), nil
}

// I2C is a view of Device satisfying transport/i2c.Bindings. Device's
// own Transmit/Available/ReceiveByte already satisfy
// transport/serial.Bindings directly; I2C's distinct Transmit/Receive
// signatures need this adapter rather than colliding method names on
// Device itself.
type I2C struct{ *Device }

func (i I2C) Transmit(data []byte) error                { return i.Device.i2cTransmit(data) }
func (i I2C) Receive(buf []byte) (int, int, error)       { return i.Device.i2cReceive(buf) }

// AsI2C returns an I2C adapter over d for use with transport/i2c.New.
func (d *Device) AsI2C() I2C { return I2C{d} }

// JSONHandler builds a Handler dispatching on the request's "req"
// field by exact-match lookup in routes, defaulting to an
// "unrecognized request" protocol error for anything else — a minimal
// stand-in for the device firmware's own request router, sufficient
// for exercising the host-side engine end to end.
func JSONHandler(routes map[string]func(req *jobj.J) *jobj.J) Handler {
	return func(req *jobj.J) *jobj.J {
		name := jobj.GetString(req, "req")
		if name == "" {
			return nil // "cmd" documents get no reply
		}
		if fn, ok := routes[name]; ok {
			return fn(req)
		}
		return jobj.Objectf("err:%s", "unrecognized request {io-bad} req:"+strings.TrimSpace(name))
	}
}

// Package serialio is the real UART/USB-serial binding for
// transport/serial, backed by go.bug.st/serial, adopted fresh from the
// retrieved example pack (adibhanna/modbus-go, ZaparooProject/go-pn532,
// toitlang/jaguar, and EdgxCloud-EdgeFlow all use it for the same
// "open a named serial port, blocking read/write against an attached
// microcontroller" purpose) — the teacher's own go.mod has no
// third-party requires at all.
package serialio

import (
	"time"

	"go.bug.st/serial"

	"github.com/ardnew/notelink/internal/clock"
)

// Port adapts a go.bug.st/serial.Port into transport/serial.Bindings.
// It owns a small read-ahead byte buffer because the serial package's
// Read is blocking-with-timeout rather than poll-then-read, so
// Available/ReceiveByte are synthesized from whatever the last Read
// call returned.
type Port struct {
	port serial.Port

	pending []byte
}

// Config is the subset of serial.Mode this package exposes; BaudRate
// is mandatory, the framing fields default to the card's documented
// 8N1 if left zero.
type Config struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

// Open opens portName at the given configuration and returns a Port
// ready to use as a transport/serial.Bindings.
func Open(portName string, cfg Config) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	// A short poll timeout turns Read into the poll-then-consume
	// primitive Available/ReceiveByte need, instead of blocking
	// indefinitely for a full buffer's worth of data.
	if err := p.SetReadTimeout(10 * time.Millisecond); err != nil {
		p.Close()
		return nil, err
	}
	return &Port{port: p}, nil
}

// Close releases the underlying serial port.
func (p *Port) Close() error { return p.port.Close() }

// GetMs returns a monotonic millisecond clock derived from
// time.Now(), satisfying notelink.Clock.
func (p *Port) GetMs() uint32 { return uint32(time.Now().UnixMilli()) }

// DelayMs blocks the calling goroutine for ms milliseconds.
func (p *Port) DelayMs(ms uint32) { time.Sleep(time.Duration(ms) * time.Millisecond) }

// Transmit writes data to the port. flush is accepted for interface
// compatibility; go.bug.st/serial has no separate flush call, writes
// go straight to the OS driver.
func (p *Port) Transmit(data []byte, flush bool) error {
	_, err := p.port.Write(data)
	return err
}

// fill reads whatever is immediately available into p.pending, a
// no-op if the short read timeout expires with nothing to read.
func (p *Port) fill() {
	buf := make([]byte, 256)
	n, err := p.port.Read(buf)
	if err != nil || n == 0 {
		return
	}
	p.pending = append(p.pending, buf[:n]...)
}

// Available reports whether at least one byte is ready to read,
// polling the underlying port once if the local buffer is empty.
func (p *Port) Available() bool {
	if len(p.pending) == 0 {
		p.fill()
	}
	return len(p.pending) > 0
}

// ReceiveByte returns the next buffered byte. Only called after
// Available reports true.
func (p *Port) ReceiveByte() byte {
	b := p.pending[0]
	p.pending = p.pending[1:]
	return b
}

// Port satisfies notelink.Clock (an alias of clock.Source) structurally.
var _ clock.Source = (*Port)(nil)

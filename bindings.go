// Package notelink implements the host-side transport and transaction
// core for a cellular/Wi-Fi IoT companion module: a framed
// request/response transaction engine running over a pluggable I2C or
// UART transport, plus the COBS-framed binary payload side channel
// (cobs, binpay) and the JSON object model used to build requests and
// read responses (jobj).
//
// Grounded on the teacher's host.Host: an explicit handle constructed
// with New(...), guarding its mutable state behind accessor methods,
// rather than the package-level singleton the original C library used
// (spec.md §9 Design Notes, "Global state").
package notelink

import (
	"github.com/ardnew/notelink/internal/clock"
	"github.com/ardnew/notelink/jobj"
)

// Clock is the monotonic time source the engine polls against
// (spec.md §6: get-ms/delay-ms). internal/clock.Source is reused
// directly; Bindings embeds it so a single binding value satisfies
// both roles.
type Clock = clock.Source

// Mutexes is the pair of platform locks the engine serializes against
// (spec.md §6: lock-bus/unlock-bus, lock-device/unlock-device). Lock
// order is always device then bus (spec.md §5); the engine never
// acquires device while holding bus.
type Mutexes interface {
	LockBus()
	UnlockBus()
	LockDevice()
	UnlockDevice()
}

// DebugSink is the optional platform debug-output hook (spec.md §6).
// When a Bindings value also implements DebugSink, New registers it
// with logx.SetSink, which passes it the message text of every logx
// Debug/Info/Warn/Error call.
type DebugSink interface {
	DebugOutput(line string)
}

// TransactionHooks is the optional platform readiness gate bracketing
// each transaction (spec.md §6: transaction-start/transaction-stop).
type TransactionHooks interface {
	// TransactionStart may block up to timeoutMs waiting for the device
	// to become ready; it returns false on timeout.
	TransactionStart(timeoutMs uint32) bool
	TransactionStop()
}

// UserAgent is the optional diagnostic object merged into outgoing
// hub.set requests that carry a product field (spec.md §4.6 step 3).
type UserAgent interface {
	UserAgent() *jobj.J
}

// Bindings is the fixed set of platform operations the engine
// consumes (spec.md §6). Clock and Mutexes are mandatory; DebugSink,
// TransactionHooks, and UserAgent are optional capabilities the engine
// discovers with a type assertion, so a minimal Bindings
// implementation need only satisfy Clock and Mutexes.
//
// Platform malloc/free is not part of this interface: Go's allocator
// and garbage collector already provide the "heap that may fail
// gracefully, and free(nil) is a no-op" contract spec.md §6 describes,
// so there is no binding to realize (see DESIGN.md).
type Bindings interface {
	Clock
	Mutexes
}

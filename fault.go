package notelink

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ardnew/notelink/jobj"
)

// Kind classifies a Fault (spec.md §7, and the Design Notes' "Error as
// algebraic type" redesign: a sum type in place of the legacy
// error-string-with-embedded-tag convention).
type Kind int

// Fault kinds.
const (
	KindIO        Kind = iota // transport I/O failure
	KindIOTimeout             // transport I/O timed out
	KindIOBad                 // protocol violation detected by the transport
	KindBadBin                // binary-payload MD5 mismatch
	KindMem                   // allocation failure
	KindParse                 // host-side response parse failure
	KindProtocol              // device-returned err, surfaced verbatim
	KindLogic                 // precondition violation (not retry-eligible, no latch)
)

// tag returns the brace-wrapped fault tag embedded in Error() for wire
// compatibility with consumers that substring-match on it (spec.md §6
// "Error string convention"). Kinds with no corresponding wire tag
// return "".
func (k Kind) tag() string {
	switch k {
	case KindIO:
		return "{io}"
	case KindIOTimeout:
		return "{io-timeout}"
	case KindIOBad:
		return "{io-bad}"
	case KindBadBin:
		return "{bad-bin}"
	case KindMem:
		return "{mem}"
	default:
		return ""
	}
}

// latchesReset reports whether a Fault of this kind sets
// reset-required (spec.md §7: transport I/O and host-side parse
// failures latch; allocation, protocol, and logic faults do not).
func (k Kind) latchesReset() bool {
	switch k {
	case KindIO, KindIOTimeout, KindIOBad, KindParse:
		return true
	default:
		return false
	}
}

// Fault is the engine's internal error type (spec.md §7, §9 "Error as
// algebraic type"). It carries an optional wrapped cause via
// github.com/pkg/errors so internal failures keep a stack trace up to
// the point they cross the JSON wire boundary, where Error() renders
// the legacy brace-tag-in-string form.
type Fault struct {
	Kind    Kind
	Message string
	Cause   error
}

// newFault wraps cause (if non-nil) with github.com/pkg/errors so the
// allocation site is recorded, and returns a Fault carrying it.
func newFault(kind Kind, message string, cause error) *Fault {
	if cause != nil {
		cause = errors.Wrap(cause, message)
	}
	return &Fault{Kind: kind, Message: message, Cause: cause}
}

// IOFault reports a transport transmit/receive failure.
func IOFault(cause error) *Fault { return newFault(KindIO, "transport error", cause) }

// IOTimeoutFault reports a transport operation that exceeded its
// deadline.
func IOTimeoutFault(cause error) *Fault {
	return newFault(KindIOTimeout, "transport timeout", cause)
}

// IOBadFault reports a transport-level protocol violation (malformed
// framing, reset negotiation failure).
func IOBadFault(cause error) *Fault { return newFault(KindIOBad, "transport protocol error", cause) }

// BadBinFault reports a binary-payload MD5 mismatch.
func BadBinFault(cause error) *Fault { return newFault(KindBadBin, "binary payload corrupt", cause) }

// MemFault reports an allocation failure.
func MemFault() *Fault { return newFault(KindMem, "allocation failed", nil) }

// ParseFault reports a host-side JSON parse failure on the device's
// response (spec.md §4.6 step 7's fixed synthesized message).
func ParseFault(cause error) *Fault {
	return newFault(KindParse, "unrecognized response from card", cause)
}

// ProtocolFault wraps a device-returned err string, surfaced verbatim
// (spec.md §7: "Protocol... surfaced verbatim").
func ProtocolFault(message string) *Fault {
	return &Fault{Kind: KindProtocol, Message: message}
}

// LogicFault reports a precondition violation local to the host (e.g.
// a non-append binary offset, a too-small receive buffer). It is
// returned as a plain error, never latches reset, and is not
// retry-eligible.
func LogicFault(message string) *Fault {
	return &Fault{Kind: KindLogic, Message: message}
}

// Error renders f in the legacy "message {tag}" form so existing
// substring-match consumers (strings.Contains(err.Error(), "{io}"))
// keep working across the Go rewrite.
func (f *Fault) Error() string {
	tag := f.Kind.tag()
	switch {
	case f.Cause != nil && tag != "":
		return fmt.Sprintf("%s: %v %s", f.Message, f.Cause, tag)
	case f.Cause != nil:
		return fmt.Sprintf("%s: %v", f.Message, f.Cause)
	case tag != "":
		return fmt.Sprintf("%s %s", f.Message, tag)
	default:
		return f.Message
	}
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (f *Fault) Unwrap() error { return f.Cause }

// LatchesReset reports whether this fault requires the next
// transaction to re-run the transport reset protocol.
func (f *Fault) LatchesReset() bool { return f.Kind.latchesReset() }

// ToResponse synthesizes the `{"err":..., "id":..., "src":"note-c"}`
// object spec.md §4.6 step 6 / §7 mandates for every failed
// transaction. id is omitted from the result if empty. The literal
// "note-c" source tag is kept verbatim: it is a wire-compatibility
// constant, not a description of this implementation.
func (f *Fault) ToResponse(id string) *jobj.J {
	resp := jobj.NewObject()
	jobj.AddItemToObject(resp, "err", jobj.NewString(f.Error()))
	if id != "" {
		jobj.AddItemToObject(resp, "id", jobj.NewString(id))
	}
	jobj.AddItemToObject(resp, "src", jobj.NewString("note-c"))
	return resp
}

// IsIOFault reports whether a device-returned error string signals a
// recoverable transport fault (spec.md §3: response documents carrying
// an err containing "{io}").
func IsIOFault(errStr string) bool { return strings.Contains(errStr, "{io}") }

// IsBadBinFault reports whether a device-returned error string signals
// binary-payload corruption (spec.md §3: "{bad-bin}").
func IsBadBinFault(errStr string) bool { return strings.Contains(errStr, "{bad-bin}") }

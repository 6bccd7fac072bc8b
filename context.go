package notelink

import (
	"sync/atomic"
	"time"

	"github.com/ardnew/notelink/jobj"
	"github.com/ardnew/notelink/logx"
)

// Default tuning constants (spec.md §4.6/§8).
const (
	DefaultTimeout     = 10 * time.Second
	DefaultWebTimeout  = 90 * time.Second
	DefaultIORetries   = 3
	DefaultBadBinTries = 3
)

// Context is the explicit handle for one device connection (spec.md
// §3's "transaction context", made an explicit value per the Design
// Notes' "Global state" resolution instead of a package-level
// singleton). Grounded on the teacher's host.Host: an explicit
// constructor plus accessor methods guard all mutable fields, in place
// of a zero-initialized static struct.
type Context struct {
	transport Transport
	bindings  Bindings

	debugSink DebugSink
	hooks     TransactionHooks
	agent     UserAgent

	defaultTimeout time.Duration
	ioRetries      int
	badBinRetries  int
	crcEnabled     bool

	crcSeq uint32 // atomic, monotonically increasing wire CRC sequence id

	// resetRequired is read, cleared and (on reset failure) re-latched
	// by ensureReset before the device mutex is taken, so a latched
	// reset runs ahead of the lock; transactionBody re-latches it while
	// holding the device mutex.
	resetRequired bool
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithTimeout overrides the default inter-transaction timeout used
// when a request specifies neither "seconds" nor "milliseconds".
func WithTimeout(d time.Duration) Option {
	return func(c *Context) { c.defaultTimeout = d }
}

// WithRetries overrides the retry bounds for {io} and {bad-bin}
// faults respectively (spec.md §4.6 step 8).
func WithRetries(ioRetries, badBinRetries int) Option {
	return func(c *Context) { c.ioRetries, c.badBinRetries = ioRetries, badBinRetries }
}

// WithCRC enables the optional wire CRC sequence validation of spec.md
// §4.6 step 9.
func WithCRC(enabled bool) Option {
	return func(c *Context) { c.crcEnabled = enabled }
}

// New constructs a Context bound to transport for wire I/O and
// bindings for clock/mutex/optional capabilities. reset-required
// starts true: the first transaction always resyncs the link before
// proceeding (spec.md §4.6 state: "reset-required (boolean, initially
// true)").
func New(transport Transport, bindings Bindings, opts ...Option) *Context {
	c := &Context{
		transport:      transport,
		bindings:       bindings,
		defaultTimeout: DefaultTimeout,
		ioRetries:      DefaultIORetries,
		badBinRetries:  DefaultBadBinTries,
		resetRequired:  true,
	}
	if sink, ok := bindings.(DebugSink); ok {
		c.debugSink = sink
		logx.SetSink(sink.DebugOutput)
	}
	if hooks, ok := bindings.(TransactionHooks); ok {
		c.hooks = hooks
	}
	if agent, ok := bindings.(UserAgent); ok {
		c.agent = agent
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transport returns the transport this Context was constructed with.
func (c *Context) Transport() Transport { return c.transport }

// Timeout returns the default inter-transaction timeout, used by
// binpay for its own request/response round trips.
func (c *Context) Timeout() time.Duration { return c.defaultTimeout }

// ResetRequired reports whether the next transaction will re-run the
// transport reset protocol before proceeding.
func (c *Context) ResetRequired() bool { return c.resetRequired }

// nextCRC returns the next monotonically increasing CRC sequence id
// (spec.md §4.6 step 9).
func (c *Context) nextCRC() uint32 { return atomic.AddUint32(&c.crcSeq, 1) }

// mergeUserAgent merges the optional platform user-agent object into
// req, consuming a fresh copy each call (spec.md §4.6 step 3: "If the
// request is a hub.set carrying a product field, merge a
// platform-supplied user-agent object").
func (c *Context) mergeUserAgent(req *jobj.J) {
	if c.agent == nil {
		return
	}
	if jobj.GetString(req, "req") != "hub.set" || !jobj.IsPresent(req, "product") {
		return
	}
	ua := c.agent.UserAgent()
	if ua == nil {
		return
	}
	jobj.Merge(req, ua)
}

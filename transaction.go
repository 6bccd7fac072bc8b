package notelink

import (
	"strings"
	"time"

	"github.com/ardnew/notelink/jobj"
	"github.com/ardnew/notelink/logx"
)

// timeoutError is satisfied by transport errors that can distinguish
// a deadline expiry from any other I/O failure, mirroring net.Error's
// Timeout() convention.
type timeoutError interface {
	Timeout() bool
}

// classifyIOErr turns a transport error into the appropriately kinded
// Fault (spec.md §7: "io" vs "io-timeout").
func classifyIOErr(err error) *Fault {
	if te, ok := err.(timeoutError); ok && te.Timeout() {
		return IOTimeoutFault(err)
	}
	return IOFault(err)
}

// retryBackoff returns the delay before io-fault retry attempt n
// (1-based): attempt*250 ms, so N retries wait 125*N*(N+1) ms in
// total, without a separate configuration knob.
func retryBackoff(attempt int) uint32 { return uint32(attempt) * 250 }

// Transaction runs one request/response exchange with the device
// (spec.md §4.6). req must be a well-formed request document (spec.md
// §3): exactly one of "req" or "cmd" at the top level, optionally
// "id", "seconds"/"milliseconds", "crc" (engine-managed, never set by
// the caller). The return value is always non-nil: on success, the
// parsed device response; on any failure, a synthesized
// {"err":...,"id":...,"src":"note-c"} object (spec.md §7).
func (c *Context) Transaction(req *jobj.J) *jobj.J {
	if req == nil {
		return LogicFault("nil request").ToResponse("")
	}
	id := jobj.GetString(req, "id")

	if err := c.ensureReset(); err != nil {
		return IOFault(err).ToResponse(id)
	}

	c.bindings.LockDevice()
	defer c.bindings.UnlockDevice()

	stop, ready := c.startTransaction()
	if !ready {
		return IOTimeoutFault(nil).ToResponse(id)
	}
	if stop != nil {
		defer stop()
	}

	return c.transactionBody(req, id)
}

// TransactionJSON is the request-response-json variant: raw is one or
// more newline-delimited JSON request documents (a missing trailing
// newline is appended). The device lock and transaction-start hook are
// acquired once for the whole pipeline, not per document (spec.md §9
// Open Questions: "Implementations should acquire per pipeline to
// preserve ordering"). Returns the newline-delimited concatenation of
// each document's raw JSON response.
func (c *Context) TransactionJSON(raw string) (string, error) {
	if !strings.HasSuffix(raw, "\n") {
		raw += "\n"
	}
	docs := strings.Split(strings.TrimSuffix(raw, "\n"), "\n")

	if err := c.ensureReset(); err != nil {
		return "", IOFault(err)
	}

	c.bindings.LockDevice()
	defer c.bindings.UnlockDevice()

	stop, ready := c.startTransaction()
	if !ready {
		return "", IOTimeoutFault(nil)
	}
	if stop != nil {
		defer stop()
	}

	var sb strings.Builder
	for _, doc := range docs {
		if doc == "" {
			continue
		}
		req, err := jobj.Parse(doc)
		var resp *jobj.J
		if err != nil {
			resp = ParseFault(err).ToResponse("")
		} else {
			resp = c.transactionBody(req, jobj.GetString(req, "id"))
		}
		sb.WriteString(jobj.Print(resp))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// ensureReset runs the transport reset protocol iff reset-required is
// latched, clearing the latch first and re-latching it on failure
// (spec.md §4.6 step 1). Called before the device lock is acquired.
func (c *Context) ensureReset() error {
	if !c.resetRequired {
		return nil
	}
	c.resetRequired = false
	if err := c.transport.Reset(); err != nil {
		c.resetRequired = true
		return err
	}
	return nil
}

// startTransaction acquires the optional transaction-start hook,
// returning a stop function to defer and whether the device reported
// ready within the default timeout (spec.md §4.6 step 2). If no hooks
// are registered, it always reports ready with a nil stop function.
func (c *Context) startTransaction() (stop func(), ready bool) {
	if c.hooks == nil {
		return nil, true
	}
	timeoutMs := uint32(c.defaultTimeout.Milliseconds())
	if !c.hooks.TransactionStart(timeoutMs) {
		return nil, false
	}
	return c.hooks.TransactionStop, true
}

// transactionBody runs steps 3-10 of spec.md §4.6, assuming the device
// mutex and transaction-start hook are already held.
func (c *Context) transactionBody(req *jobj.J, id string) *jobj.J {
	c.mergeUserAgent(req)
	timeout := c.requestTimeout(req)
	if ov, ok := c.transport.(TimeoutOverrider); ok {
		timeout = ov.OverrideTimeout(req, timeout)
	}

	if !jobj.IsPresent(req, "req") {
		// A "cmd" document (or malformed input with neither discriminant)
		// is fire-and-forget: transmit only, synthesize an empty success
		// object (spec.md §4.6 step 5).
		if err := c.transmitRequest(req); err != nil {
			c.resetRequired = true
			return IOFault(err).ToResponse(id)
		}
		return jobj.NewObject()
	}

	ioAttempts, badBinAttempts := 0, 0
	for {
		resp, fault := c.attemptOnce(req, timeout)
		if fault != nil {
			if fault.LatchesReset() {
				c.resetRequired = true
			}
			return fault.ToResponse(id)
		}

		errStr := jobj.GetString(resp, "err")
		switch {
		case errStr != "" && IsIOFault(errStr) && ioAttempts < c.ioRetries:
			ioAttempts++
			logx.Debug(logx.ComponentTransaction, "retrying after io fault", "attempt", ioAttempts)
			c.bindings.DelayMs(retryBackoff(ioAttempts))
		case errStr != "" && IsBadBinFault(errStr) && badBinAttempts < c.badBinRetries:
			badBinAttempts++
			logx.Debug(logx.ComponentTransaction, "retrying after bad-bin fault", "attempt", badBinAttempts)
		default:
			return resp
		}
	}
}

// attemptOnce performs steps 6, 7, and 9 of spec.md §4.6 once: the
// transport round trip, response parse, and optional CRC check. A
// non-nil Fault here always means the caller should stop retrying and
// return immediately — only a successfully parsed response's "err"
// field (checked by the caller) is subject to the bounded retry of
// step 8.
func (c *Context) attemptOnce(req *jobj.J, timeout time.Duration) (*jobj.J, *Fault) {
	var wantCRC int64
	if c.crcEnabled {
		wantCRC = int64(c.nextCRC())
		jobj.AddItemToObject(req, "crc", jobj.NewInt(wantCRC))
	}

	if err := c.transmitRequest(req); err != nil {
		return nil, classifyIOErr(err)
	}

	raw, err := c.transport.Receive(timeout)
	if err != nil {
		return nil, classifyIOErr(err)
	}

	resp, perr := jobj.Parse(string(raw))
	if perr != nil {
		return nil, ParseFault(perr)
	}

	if c.crcEnabled && jobj.IsPresent(resp, "crc") {
		if jobj.GetInt(resp, "crc") != wantCRC {
			jobj.AddItemToObject(resp, "err", jobj.NewString("crc mismatch {io}"))
		}
	}

	return resp, nil
}

// transmitRequest serializes req to compact JSON terminated by a
// single LF and hands it to the transport (spec.md §6 wire format:
// "newline-delimited JSON... CRLF is rejected; only LF").
func (c *Context) transmitRequest(req *jobj.J) error {
	return c.transport.Transmit([]byte(jobj.Print(req) + "\n"))
}

// requestTimeout derives the transport timeout for req (spec.md §4.6
// step 4): an explicit "milliseconds" field wins, then "seconds" * 1000,
// then the Context default. transport/i2c applies its own web.*
// override on top of whatever this returns.
func (c *Context) requestTimeout(req *jobj.J) time.Duration {
	switch {
	case jobj.IsPresent(req, "milliseconds"):
		return time.Duration(jobj.GetInt(req, "milliseconds")) * time.Millisecond
	case jobj.IsPresent(req, "seconds"):
		return time.Duration(jobj.GetInt(req, "seconds")) * time.Second
	default:
		return c.defaultTimeout
	}
}

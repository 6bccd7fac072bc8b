package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBindings is an in-memory Bindings for exercising Transport
// without any real hardware, modeled as two queues: a to-device write
// log and a from-device read queue fed by the test.
type fakeBindings struct {
	ms      uint32
	written []byte
	inbox   []byte
	txErr   error
}

func (f *fakeBindings) GetMs() uint32     { return f.ms }
func (f *fakeBindings) DelayMs(ms uint32) { f.ms += ms }

func (f *fakeBindings) Transmit(data []byte, flush bool) error {
	if f.txErr != nil {
		return f.txErr
	}
	f.written = append(f.written, data...)
	return nil
}

func (f *fakeBindings) Available() bool { return len(f.inbox) > 0 }

func (f *fakeBindings) ReceiveByte() byte {
	b := f.inbox[0]
	f.inbox = f.inbox[1:]
	return b
}

func TestTransmitSegments(t *testing.T) {
	b := &fakeBindings{}
	tr := New(b, WithSegment(4, 10))
	require.NoError(t, tr.Transmit([]byte("hello world\n")))
	assert.Equal(t, "hello world\n", string(b.written))
	assert.True(t, b.ms > 0, "pacing delay should advance the clock between segments")
}

func TestTransmitTurboSkipsPacing(t *testing.T) {
	b := &fakeBindings{}
	tr := New(b, WithSegment(4, 10), WithTurbo(true))
	require.NoError(t, tr.Transmit([]byte("hello world\n")))
	assert.Equal(t, uint32(0), b.ms)
}

func TestReceiveStopsAtNewline(t *testing.T) {
	b := &fakeBindings{inbox: []byte("hi\nextra")}
	tr := New(b)
	got, err := tr.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
	assert.Equal(t, "extra", string(b.inbox))
}

func TestReceiveFirstByteTimeout(t *testing.T) {
	b := &fakeBindings{}
	tr := New(b)
	_, err := tr.Receive(5 * time.Millisecond)
	require.Error(t, err)
	var te *TimeoutError
	assert.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout())
}

func TestResetSucceedsOnNonPrintableDrain(t *testing.T) {
	b := &fakeBindings{inbox: []byte{0x00, 0x01}}
	tr := New(b)
	require.NoError(t, tr.Reset())
}

func TestResetFailsOnPrintableDrain(t *testing.T) {
	b := &fakeBindings{inbox: []byte("{\"err\":\"oops\"}")}
	tr := New(b)
	err := tr.Reset()
	assert.ErrorIs(t, err, ErrNotResponding)
}

func TestResetFailsWhenNothingArrives(t *testing.T) {
	b := &fakeBindings{}
	tr := New(b)
	err := tr.Reset()
	assert.ErrorIs(t, err, ErrNotResponding)
}

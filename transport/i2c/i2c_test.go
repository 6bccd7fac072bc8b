package i2c

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/notelink/jobj"
)

// fakeBindings models an I2C device as a queue of pending bytes,
// reporting "available" as whatever remains in that queue after each
// read (including the zero-length query form).
type fakeBindings struct {
	ms      uint32
	written []byte
	pending []byte
	rxErr   error
}

func (f *fakeBindings) GetMs() uint32     { return f.ms }
func (f *fakeBindings) DelayMs(ms uint32) { f.ms += ms }

func (f *fakeBindings) Transmit(data []byte) error {
	f.written = append(f.written, data...)
	return nil
}

func (f *fakeBindings) Receive(buf []byte) (int, int, error) {
	if f.rxErr != nil {
		return 0, 0, f.rxErr
	}
	n := copy(buf, f.pending)
	f.pending = f.pending[n:]
	return n, len(f.pending), nil
}

func TestTransmitChunks(t *testing.T) {
	b := &fakeBindings{}
	tr := New(b, WithMaxChunk(4))
	require.NoError(t, tr.Transmit([]byte("hello world\n")))
	assert.Equal(t, "hello world\n", string(b.written))
}

func TestMaxChunkClampedToHardCap(t *testing.T) {
	tr := New(&fakeBindings{}, WithMaxChunk(1000))
	assert.Equal(t, hardMaxChunk, tr.chunk())
}

func TestReceiveAssemblesAcrossChunks(t *testing.T) {
	b := &fakeBindings{pending: []byte("response\n")}
	tr := New(b, WithMaxChunk(3))
	got, err := tr.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "response", string(got))
}

func TestReceiveTimesOutWhenNothingQueued(t *testing.T) {
	b := &fakeBindings{}
	tr := New(b)
	_, err := tr.Receive(5 * time.Millisecond)
	require.Error(t, err)
	var te *TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestResetSucceedsOnNonPrintableDrain(t *testing.T) {
	b := &fakeBindings{pending: []byte{0x00, 0x01, 0x02}}
	tr := New(b)
	require.NoError(t, tr.Reset())
}

func TestResetFailsOnPrintableDrain(t *testing.T) {
	b := &fakeBindings{pending: []byte("noise")}
	tr := New(b)
	assert.ErrorIs(t, tr.Reset(), ErrNotResponding)
}

func TestOverrideTimeoutAppliesWebDefault(t *testing.T) {
	tr := New(&fakeBindings{})
	req := jobj.Objectf("req:%s", "web.post")
	got := tr.OverrideTimeout(req, 10*time.Second)
	assert.Equal(t, webTimeout, got)
}

func TestOverrideTimeoutHonorsExplicitSeconds(t *testing.T) {
	tr := New(&fakeBindings{})
	req := jobj.Objectf("req:%s seconds:%d", "web.post", 5)
	got := tr.OverrideTimeout(req, 10*time.Second)
	assert.Equal(t, 5*time.Second, got)
}

func TestOverrideTimeoutLeavesNonWebAlone(t *testing.T) {
	tr := New(&fakeBindings{})
	req := jobj.Objectf("req:%s", "note.add")
	got := tr.OverrideTimeout(req, 10*time.Second)
	assert.Equal(t, 10*time.Second, got)
}

package registry

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/barmux/internal/detect"
)

type fakeHandle struct {
	pid int
	bytes.Buffer
}

func (f *fakeHandle) PID() int { return f.pid }

func TestRegister_OneLivePerSlot(t *testing.T) {
	r := New([]string{"a", "b"}, 0)
	_, err := r.Register(0, &fakeHandle{pid: 1})
	require.NoError(t, err)
	_, err = r.Register(0, &fakeHandle{pid: 2})
	assert.ErrorIs(t, err, ErrSlotLive)
	_, err = r.Register(5, &fakeHandle{pid: 3})
	assert.ErrorIs(t, err, ErrSlotRange)

	_, err = r.NewGeneration()
	assert.ErrorIs(t, err, ErrSlotLive)
	r.DeregisterAll()
	g1, err := r.NewGeneration()
	require.NoError(t, err)
	g2, err := r.NewGeneration()
	require.NoError(t, err)
	assert.NotEqual(t, g1, g2)
	assert.Equal(t, g2, r.Generation())
}

func TestStatuses_FollowSlotOrder(t *testing.T) {
	r := New([]string{"battery-monitor", "volume-status"}, 0)
	_, _ = r.Register(0, &fakeHandle{pid: 10})
	_, _ = r.Register(1, &fakeHandle{pid: 11})

	// the second command speaks first
	r.Write(1, []byte("{\"version\":1}\n[\n[{\"full_text\":\"Vol 50%\"}]\n"))
	assert.Equal(t, []string{`{"full_text":"Vol 50%"}`}, r.Statuses())

	r.Write(0, []byte("Battery 80%\n"))
	assert.Equal(t, []string{`{"full_text":"Battery 80%"}`, `{"full_text":"Vol 50%"}`}, r.Statuses())
}

func TestWrite_PlainBlankLineClearsText(t *testing.T) {
	r := New([]string{"busy-indicator"}, 0)
	_, _ = r.Register(0, &fakeHandle{pid: 1})
	r.Write(0, []byte("Busy\n"))
	assert.Equal(t, []string{`{"full_text":"Busy"}`}, r.Statuses())

	r.Write(0, []byte("\n"))
	assert.Equal(t, []string{`{"full_text":""}`}, r.Statuses())
}

func TestWrite_PartialLineRetainedAndFlushed(t *testing.T) {
	r := New([]string{"a"}, 0)
	_, _ = r.Register(0, &fakeHandle{pid: 1})
	assert.Empty(t, r.Write(0, []byte("Batt")))
	assert.Empty(t, r.Statuses())

	res, ok := r.Flush(0)
	require.True(t, ok)
	assert.Equal(t, detect.Plain, res.To)
	assert.Equal(t, []string{`{"full_text":"Batt"}`}, r.Statuses())
}

func TestDeregister_ClearsStateKeepsSlot(t *testing.T) {
	r := New([]string{"a", "b"}, 0)
	h := &fakeHandle{pid: 7}
	_, _ = r.Register(0, h)
	r.Write(0, []byte("{\"version\":1,\"click_events\":true}\n[\n[{\"full_text\":\"x\"}]\n"))
	s := r.Get(0)
	require.True(t, s.SupportsEvents())
	require.Equal(t, detect.Structured, s.FormatState())

	got := r.Deregister(0)
	assert.Same(t, h, got)
	assert.False(t, s.Live())
	assert.Empty(t, s.Status())
	assert.Equal(t, detect.Unclassified, s.FormatState())
	assert.False(t, s.SupportsEvents())
	assert.Equal(t, 2, r.Len())
	assert.Nil(t, r.Deregister(0))

	// output for a dead slot is ignored
	assert.Nil(t, r.Write(0, []byte("late\n")))
	assert.Empty(t, r.Statuses())
}

func TestEventTargets(t *testing.T) {
	r := New([]string{"a", "b", "c"}, 0)
	for i := 0; i < 3; i++ {
		_, _ = r.Register(i, &fakeHandle{pid: i + 1})
	}
	r.Write(0, []byte("{\"version\":1}\n"))
	r.Write(1, []byte("{\"version\":1,\"click_events\":true}\n"))
	r.Write(2, []byte("plain\n"))

	targets := r.EventTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, 1, targets[0].Slot)
	assert.Equal(t, 3, r.LiveCount())
}

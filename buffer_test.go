package otrace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferAppendCommitRoundTrip(t *testing.T) {
	buf := newGoroutineBuffer(1, 4)
	ev, slot, overwrote := buf.append()
	require.False(t, overwrote)
	ev.setName("hello")
	buf.commit(slot)
	assert.Equal(t, uint32(1), buf.committed[slot].Load())
	assert.Equal(t, "hello", buf.events[slot].nameString())
}

func TestBufferWrapSetsWrappedAndOverwrote(t *testing.T) {
	buf := newGoroutineBuffer(1, 2)

	ev0, slot0, ov0 := buf.append()
	ev0.setName("a")
	buf.commit(slot0)
	assert.False(t, ov0)

	ev1, slot1, ov1 := buf.append()
	ev1.setName("b")
	buf.commit(slot1)
	assert.False(t, ov1)
	assert.True(t, buf.wrapped.Load(), "wrapped must be set once head cycles back to 0")

	// Third append reuses slot 0, which still holds the committed "a".
	ev2, slot2, ov2 := buf.append()
	ev2.setName("c")
	assert.Equal(t, slot0, slot2)
	assert.True(t, ov2, "reserving a still-committed slot after wraparound must report an overwrite")
	buf.commit(slot2)
}

func TestBufferAppendClearsCommitBeforeFill(t *testing.T) {
	buf := newGoroutineBuffer(1, 1) // single slot: every append reuses slot 0
	_, slot, _ := buf.append()
	buf.commit(slot)
	require.Equal(t, uint32(1), buf.committed[slot].Load())

	_, slot2, overwrote := buf.append()
	require.Equal(t, slot, slot2)
	assert.True(t, overwrote)
	assert.Equal(t, uint32(0), buf.committed[slot].Load(), "commit flag must be cleared on reservation, before the caller fills the slot")
}

func TestBufferResetClearsDynamicFields(t *testing.T) {
	buf := newGoroutineBuffer(1, 1) // single slot: the second append reuses slot 0
	ev, slot, _ := buf.append()
	ev.setName("x")
	ev.setCat("y")
	ev.Dur = 42
	ev.FlowID = 7
	ev.ArgC = 2
	buf.commit(slot)

	ev2, slot2, _ := buf.append()
	require.Equal(t, slot, slot2)
	assert.Equal(t, uint64(0), ev2.Dur)
	assert.Equal(t, uint64(0), ev2.FlowID)
	assert.Equal(t, uint8(0), ev2.ArgC)
}

func TestBufferThreadNameAndSortIndex(t *testing.T) {
	buf := newGoroutineBuffer(1, 2)
	assert.Equal(t, "", buf.getThreadName())
	buf.setThreadName("worker-1")
	assert.Equal(t, "worker-1", buf.getThreadName())

	assert.False(t, buf.sortIndexSet.Load())
	buf.setThreadSortIndex(5)
	assert.True(t, buf.sortIndexSet.Load())
	assert.Equal(t, int64(5), buf.sortIndex.Load())
}

func TestBufferPendingColorConsumedOnce(t *testing.T) {
	buf := newGoroutineBuffer(1, 2)
	buf.pendingColor = "red"
	ev, _, _ := buf.append()
	assert.Equal(t, "red", ev.colorString())
	assert.Equal(t, "", buf.pendingColor)

	ev2, _, _ := buf.append()
	assert.Equal(t, "", ev2.colorString())
}

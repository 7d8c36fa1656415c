package buffer

import (
	"bytes"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestInstanceBufferGrowth(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	ib, err := NewInstanceBuffer(d, 16, 2, WithLabel("instances"))
	require.NoError(t, err)
	assert.Equal(t, uint64(32), ib.Size())

	var changed []gpu.Buffer
	ib.OnBufferChanged(func(buf gpu.Buffer) { changed = append(changed, buf) })
	old := ib.Buffer()

	require.NoError(t, ib.SetCapacity(2))
	require.NoError(t, ib.SetCapacity(1))
	assert.Empty(t, changed, "shrinking or same capacity is a no-op")
	assert.Equal(t, uint64(0), ib.Generation())

	require.NoError(t, ib.SetCapacity(4))
	require.Len(t, changed, 1)
	assert.Same(t, ib.Buffer(), changed[0])
	assert.NotSame(t, old, ib.Buffer())
	assert.Equal(t, 4, ib.Capacity())
	assert.Equal(t, uint64(64), ib.Size())
	assert.Equal(t, uint64(1), ib.Generation())
	assert.Equal(t, 1, d.LiveBuffers(), "the old device buffer is destroyed")

	ib.Destroy()
	assert.Equal(t, 0, d.LiveBuffers())
}

func TestInstanceBufferGrowthFailure(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	ib, err := NewInstanceBuffer(d, 16, 2)
	require.NoError(t, err)
	old := ib.Buffer()

	d.FailAllocations(1)
	err = ib.SetCapacity(8)
	assert.ErrorIs(t, err, gpu.ErrResource)
	assert.Equal(t, 2, ib.Capacity())
	assert.Same(t, old, ib.Buffer())
	assert.Equal(t, uint64(0), ib.Generation())
}

func TestInstanceBufferRejectsBadSizes(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	_, err := NewInstanceBuffer(d, 6, 2)
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)
	_, err = NewInstanceBuffer(d, 16, 0)
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)
}

func TestStagingPoolRequiresEightByteRecords(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	assert.Panics(t, func() { _, _ = NewStagingPool(d, 12, 4) })
	assert.NotPanics(t, func() { _, _ = NewStagingPool(d, 16, 4) })
}

func TestStagingPoolWriteValidation(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewStagingPool(d, 8, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, p.WriteRecord(0, record(1, 4)), gpu.ErrSizeMismatch)
	assert.ErrorIs(t, p.WriteRecord(2, record(1, 8)), gpu.ErrOutOfRange)
	assert.ErrorIs(t, p.WriteRecord(-1, record(1, 8)), gpu.ErrOutOfRange)
	assert.Equal(t, StagingStats{}, p.Stats(), "rejected writes allocate nothing")
}

func TestStagingPoolFlushAndReuse(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewStagingPool(d, 8, 2, WithLabel("models"))
	require.NoError(t, err)

	require.NoError(t, p.WriteRecord(1, record(7, 8)))
	require.NoError(t, p.WriteRecord(0, record(3, 8)))
	assert.Equal(t, StagingStats{Pending: 1, Created: 1}, p.Stats(), "writes in one frame share a buffer")

	require.NoError(t, p.PreRender())
	assert.Equal(t, StagingStats{InFlight: 1, Created: 1}, p.Stats())
	assert.Equal(t, append(record(3, 8), record(7, 8)...), d.Contents(p.Buffer()))

	require.NoError(t, p.PreRender(), "nothing pending")
	assert.Equal(t, 1, d.Submits())

	d.Poll(false)
	assert.Equal(t, StagingStats{Free: 1, Created: 1}, p.Stats())

	require.NoError(t, p.WriteRecord(0, record(9, 8)))
	assert.Equal(t, StagingStats{Pending: 1, Created: 1}, p.Stats(), "the free buffer is reused")
}

func TestStagingPoolOutOfOrderResolution(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewStagingPool(d, 8, 2)
	require.NoError(t, err)

	// Frame 1 and 2 each flush a buffer; neither map has resolved yet.
	require.NoError(t, p.WriteRecord(0, record(1, 8)))
	require.NoError(t, p.PreRender())
	require.NoError(t, p.WriteRecord(0, record(2, 8)))
	assert.Equal(t, 2, p.Stats().Created, "an in-flight buffer is never reused")
	require.NoError(t, p.PreRender())
	assert.Equal(t, StagingStats{InFlight: 2, Created: 2}, p.Stats())

	// The second buffer resolves first and is the only one available.
	require.True(t, d.ResolveMap(1))
	assert.Equal(t, StagingStats{Free: 1, InFlight: 1, Created: 2}, p.Stats())

	require.NoError(t, p.WriteRecord(1, record(3, 8)))
	assert.Equal(t, StagingStats{Pending: 1, InFlight: 1, Created: 2}, p.Stats())
	require.NoError(t, p.PreRender())
	assert.Equal(t, record(3, 8), d.Contents(p.Buffer())[8:16])

	d.Poll(false)
	assert.Equal(t, StagingStats{Free: 2, Created: 2}, p.Stats())
	assert.Equal(t, 3, d.LiveBuffers())
}

func TestStagingPoolFlushCarriesUnchangedRecords(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewStagingPool(d, 8, 2)
	require.NoError(t, err)

	require.NoError(t, p.WriteRecord(0, record(1, 8)))
	require.NoError(t, p.WriteRecord(1, record(2, 8)))
	require.NoError(t, p.PreRender())

	// The first buffer is still in flight, so this frame writes into a fresh one.
	require.NoError(t, p.WriteRecord(0, record(3, 8)))
	require.NoError(t, p.PreRender())
	assert.Equal(t, append(record(3, 8), record(2, 8)...), d.Contents(p.Buffer()))

	// A recycled buffer holds an older frame; only record 1 changes here.
	d.Poll(false)
	require.NoError(t, p.WriteRecord(1, record(4, 8)))
	require.NoError(t, p.PreRender())
	assert.Equal(t, append(record(3, 8), record(4, 8)...), d.Contents(p.Buffer()))
	assert.Equal(t, 2, p.Stats().Created)

	// Records survive growth in the CPU copy.
	require.NoError(t, p.SetCapacity(3))
	require.NoError(t, p.WriteRecord(2, record(5, 8)))
	require.NoError(t, p.PreRender())
	assert.Equal(t, append(append(record(3, 8), record(4, 8)...), record(5, 8)...), d.Contents(p.Buffer()))
}

func TestStagingPoolSubmitDeliveringCallbacks(t *testing.T) {
	d := gpu.NewHeadlessDevice(gpu.WithHeadlessPollOnSubmit())
	p, err := NewStagingPool(d, 8, 1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, p.WriteRecord(0, record(1, 8)))
		assert.NoError(t, p.PreRender())
		assert.NoError(t, p.WriteRecord(0, record(2, 8)))
		assert.NoError(t, p.PreRender())
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PreRender did not return")
	}

	// The first buffer's remap was delivered by the second submit.
	assert.Equal(t, StagingStats{Free: 1, InFlight: 1, Created: 2}, p.Stats())
	assert.Equal(t, record(2, 8), d.Contents(p.Buffer()))
}

func TestStagingPoolGrowthDiscardsStaleBuffers(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewStagingPool(d, 8, 2)
	require.NoError(t, err)

	require.NoError(t, p.WriteRecord(0, record(1, 8)))
	require.NoError(t, p.PreRender())
	require.NoError(t, p.WriteRecord(1, record(2, 8)))
	require.Equal(t, StagingStats{Pending: 1, InFlight: 1, Created: 2}, p.Stats())

	require.NoError(t, p.SetCapacity(4))
	assert.Equal(t, StagingStats{InFlight: 1, Created: 2}, p.Stats(), "pending buffer dropped on growth")

	d.Poll(false)
	assert.Equal(t, StagingStats{Created: 2}, p.Stats(), "in-flight buffer of the old size is destroyed")
	assert.Equal(t, 1, d.LiveBuffers())

	require.NoError(t, p.WriteRecord(3, record(4, 8)))
	require.NoError(t, p.PreRender())
	assert.Equal(t, record(4, 8), d.Contents(p.Buffer())[24:32])
}

func TestStagingPoolFailedMapIsNotReused(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewStagingPool(d, 8, 1)
	require.NoError(t, err)

	require.NoError(t, p.WriteRecord(0, record(1, 8)))
	require.NoError(t, p.PreRender())
	require.True(t, d.ResolveMapWithStatus(0, gpu.MapStatusError))
	assert.Equal(t, StagingStats{Created: 1}, p.Stats())
	assert.Equal(t, 1, d.LiveBuffers())
}

func TestStagingPoolDestroy(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewStagingPool(d, 8, 1)
	require.NoError(t, err)

	require.NoError(t, p.WriteRecord(0, record(1, 8)))
	require.NoError(t, p.PreRender())
	require.NoError(t, p.WriteRecord(0, record(2, 8)))

	p.Destroy()
	assert.Equal(t, 1, d.LiveBuffers(), "only the in-flight buffer survives until its map resolves")
	d.Poll(false)
	assert.Equal(t, 0, d.LiveBuffers())
	assert.ErrorIs(t, p.WriteRecord(0, record(3, 8)), gpu.ErrInvalidState)
}

func TestStagingStateTransitions(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	buf, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "s", Size: 8, Usage: gpu.BufferUsageMapWrite})
	require.NoError(t, err)
	sb := &stagingBuffer{buffer: buf}

	assert.ErrorIs(t, sb.transition(StagingStateRemapping), gpu.ErrInvalidState)
	require.NoError(t, sb.transition(StagingStateCopyPending))
	assert.ErrorIs(t, sb.transition(StagingStateWritable), gpu.ErrInvalidState, "no writes once copied")
	require.NoError(t, sb.transition(StagingStateRemapping))
	require.NoError(t, sb.transition(StagingStateWritable))

	sb.destroy()
	assert.Equal(t, StagingStateDestroyed, sb.state)
	assert.ErrorIs(t, sb.transition(StagingStateWritable), gpu.ErrInvalidState)
	assert.Equal(t, "destroyed", sb.state.String())
}

func TestBasicWriter(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	w, err := NewBasicWriter(d, 4, 2)
	require.NoError(t, err)

	require.NoError(t, w.WriteRecord(1, []byte{1, 2, 3, 4}))
	require.NoError(t, w.PreRender())
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, d.Contents(w.Buffer()))
	assert.ErrorIs(t, w.WriteRecord(2, []byte{1, 2, 3, 4}), gpu.ErrOutOfRange)
	assert.ErrorIs(t, w.WriteRecord(0, []byte{1, 2}), gpu.ErrSizeMismatch)
	assert.Equal(t, 0, d.Submits())
}

func TestUniformBuffer(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	u, err := NewUniformBuffer(d, 16, WithLabel("camera"))
	require.NoError(t, err)

	assert.ErrorIs(t, u.Write(record(1, 8)), gpu.ErrSizeMismatch)
	require.NoError(t, u.Write(record(5, 16)))
	assert.Equal(t, record(5, 16), d.Contents(u.Buffer()))

	_, err = NewUniformBuffer(d, 6)
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)
}

func TestUniformPool(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	u, err := NewUniformPool(d, 16)
	require.NoError(t, err)
	pool := u.(*uniformPool)

	require.NoError(t, u.Write(record(1, 16)))
	assert.Equal(t, record(1, 16), d.Contents(u.Buffer()))
	require.NoError(t, u.Write(record(2, 16)))
	assert.Equal(t, record(2, 16), d.Contents(u.Buffer()))
	assert.Equal(t, 3, d.LiveBuffers(), "second write allocates while the first buffer is in flight")

	d.Poll(false)
	assert.Equal(t, 2, pool.Free())

	require.NoError(t, u.Write(record(3, 16)))
	assert.Equal(t, 1, pool.Free())
	assert.Equal(t, 3, d.LiveBuffers())

	u.Destroy()
	d.Poll(false)
	assert.Equal(t, 0, d.LiveBuffers())
}

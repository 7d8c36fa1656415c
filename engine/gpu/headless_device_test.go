package gpu

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadlessCopyOnSubmit(t *testing.T) {
	d := NewHeadlessDevice()

	src, err := d.CreateBufferInit("src", BufferUsageCopySrc, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	dst, err := d.CreateBuffer(&BufferDescriptor{Label: "dst", Size: 8, Usage: BufferUsageCopyDst})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder("copy")
	require.NoError(t, err)
	require.NoError(t, enc.CopyBufferToBuffer(src, 0, dst, 4, 4))
	cb, err := enc.Finish()
	require.NoError(t, err)

	assert.Equal(t, make([]byte, 8), d.Contents(dst), "copies run on submit")
	require.NoError(t, d.Queue().Submit(cb))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, d.Contents(dst))
	assert.Equal(t, 1, d.Submits())
}

func TestHeadlessSubmitReportsErrors(t *testing.T) {
	d := NewHeadlessDevice()
	var reported error
	d.SetErrorHandler(func(err error) { reported = err })

	src, _ := d.CreateBufferInit("src", BufferUsageCopySrc, []byte{1, 2, 3, 4})
	dst, _ := d.CreateBuffer(&BufferDescriptor{Label: "dst", Size: 4, Usage: BufferUsageCopyDst})
	enc, _ := d.CreateCommandEncoder("copy")
	require.NoError(t, enc.CopyBufferToBuffer(src, 0, dst, 0, 4))
	cb, _ := enc.Finish()

	dst.Destroy()
	err := d.Queue().Submit(cb)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResource))
	assert.Equal(t, err, reported)
}

func TestHeadlessMapLifecycle(t *testing.T) {
	d := NewHeadlessDevice()
	buf, err := d.CreateBuffer(&BufferDescriptor{Label: "staging", Size: 16, Usage: BufferUsageMapWrite | BufferUsageCopySrc, MappedAtCreation: true})
	require.NoError(t, err)
	assert.Equal(t, MapStateMapped, buf.MapState())

	view, err := buf.MappedRange(0, 16)
	require.NoError(t, err)
	view[0] = 7
	require.NoError(t, buf.Unmap())

	_, err = buf.MappedRange(0, 16)
	assert.ErrorIs(t, err, ErrInvalidState)

	var got []MapStatus
	require.NoError(t, buf.MapAsync(MapModeWrite, 0, 16, func(s MapStatus) { got = append(got, s) }))
	assert.Equal(t, MapStatePending, buf.MapState())
	assert.ErrorIs(t, buf.MapAsync(MapModeWrite, 0, 16, func(MapStatus) {}), ErrInvalidState)
	assert.ErrorIs(t, buf.MapAsync(MapModeRead, 0, 16, func(MapStatus) {}), ErrInvalidState)

	d.Poll(false)
	assert.Equal(t, []MapStatus{MapStatusSuccess}, got)
	assert.Equal(t, MapStateMapped, buf.MapState())
	assert.Equal(t, byte(7), d.Contents(buf)[0])
}

func TestHeadlessResolveOutOfOrder(t *testing.T) {
	d := NewHeadlessDevice()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		buf, err := d.CreateBuffer(&BufferDescriptor{Label: name, Size: 8, Usage: BufferUsageMapWrite})
		require.NoError(t, err)
		require.NoError(t, buf.MapAsync(MapModeWrite, 0, 8, func(MapStatus) { order = append(order, name) }))
	}

	require.Equal(t, 3, d.PendingMaps())
	assert.True(t, d.ResolveMap(2))
	assert.True(t, d.ResolveMap(0))
	assert.True(t, d.ResolveMap(0))
	assert.False(t, d.ResolveMap(0))
	assert.Equal(t, []string{"c", "a", "b"}, order)
}

func TestHeadlessResolveDestroyed(t *testing.T) {
	d := NewHeadlessDevice()
	buf, _ := d.CreateBuffer(&BufferDescriptor{Label: "gone", Size: 8, Usage: BufferUsageMapWrite})
	var status MapStatus = -1
	require.NoError(t, buf.MapAsync(MapModeWrite, 0, 8, func(s MapStatus) { status = s }))

	buf.Destroy()
	assert.Equal(t, 0, d.LiveBuffers())
	d.Poll(true)
	assert.Equal(t, MapStatusDestroyed, status)
}

func TestHeadlessPollSkipsRequestsFromCallbacks(t *testing.T) {
	d := NewHeadlessDevice()
	buf, _ := d.CreateBuffer(&BufferDescriptor{Label: "loop", Size: 8, Usage: BufferUsageMapWrite})

	var remap func(MapStatus)
	calls := 0
	remap = func(MapStatus) {
		calls++
		require.NoError(t, buf.Unmap())
		require.NoError(t, buf.MapAsync(MapModeWrite, 0, 8, remap))
	}
	require.NoError(t, buf.MapAsync(MapModeWrite, 0, 8, remap))

	d.Poll(false)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, d.PendingMaps())
}

func TestHeadlessPollOnSubmit(t *testing.T) {
	d := NewHeadlessDevice(WithHeadlessPollOnSubmit())
	buf, _ := d.CreateBuffer(&BufferDescriptor{Label: "staging", Size: 8, Usage: BufferUsageMapWrite})
	delivered := false
	require.NoError(t, buf.MapAsync(MapModeWrite, 0, 8, func(MapStatus) { delivered = true }))

	enc, err := d.CreateCommandEncoder("empty")
	require.NoError(t, err)
	cb, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Queue().Submit(cb))
	assert.True(t, delivered)
	assert.Equal(t, MapStateMapped, buf.MapState())
}

func TestHeadlessAllocationFailure(t *testing.T) {
	d := NewHeadlessDevice()
	d.FailAllocations(1)

	_, err := d.CreateBuffer(&BufferDescriptor{Label: "a", Size: 8, Usage: BufferUsageVertex})
	assert.ErrorIs(t, err, ErrResource)

	_, err = d.CreateBuffer(&BufferDescriptor{Label: "b", Size: 8, Usage: BufferUsageVertex})
	assert.NoError(t, err)
	assert.Equal(t, 1, d.LiveBuffers())
}

func TestHeadlessTimestamps(t *testing.T) {
	d := NewHeadlessDevice(WithHeadlessFeatures(FeatureTimestampQuery))
	qs, err := d.CreateQuerySet("timing", 2)
	require.NoError(t, err)
	resolve, err := d.CreateBuffer(&BufferDescriptor{Label: "resolve", Size: 16, Usage: BufferUsageQueryResolve | BufferUsageCopySrc})
	require.NoError(t, err)

	enc, _ := d.CreateCommandEncoder("frame")
	pass, err := enc.BeginRenderPass(&RenderPassDescriptor{Label: "main", Timestamps: &TimestampWrites{QuerySet: qs, BeginIndex: 0, EndIndex: 1}})
	require.NoError(t, err)
	require.NoError(t, pass.End())
	require.NoError(t, enc.ResolveQuerySet(qs, 0, 2, resolve, 0))
	cb, _ := enc.Finish()
	require.NoError(t, d.Queue().Submit(cb))

	data := d.Contents(resolve)
	t0 := binary.LittleEndian.Uint64(data[0:])
	t1 := binary.LittleEndian.Uint64(data[8:])
	assert.Equal(t, uint64(HeadlessTimestampDelta), t1-t0)
}

func TestHeadlessQuerySetRequiresFeature(t *testing.T) {
	d := NewHeadlessDevice()
	_, err := d.CreateQuerySet("timing", 2)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestHeadlessDrawRecords(t *testing.T) {
	d := NewHeadlessDevice()
	vb, _ := d.CreateBuffer(&BufferDescriptor{Label: "vertices", Size: 36, Usage: BufferUsageVertex})
	ib, _ := d.CreateBuffer(&BufferDescriptor{Label: "indices", Size: 12, Usage: BufferUsageIndex})
	pipeline, err := d.CreateRenderPipeline(&RenderPipelineDescriptor{Label: "flat", ShaderSource: "@vertex fn vs_main() {}"})
	require.NoError(t, err)
	layout, _ := d.CreateBindGroupLayout(&BindGroupLayoutDescriptor{Label: "camera layout"})
	bg, err := d.CreateBindGroup(&BindGroupDescriptor{Label: "camera", Layout: layout})
	require.NoError(t, err)

	enc, _ := d.CreateCommandEncoder("frame")
	pass, _ := enc.BeginRenderPass(&RenderPassDescriptor{Label: "main"})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg)
	pass.SetVertexBuffer(0, vb)
	pass.SetIndexBuffer(ib, IndexFormatUint32)
	pass.DrawIndexed(3, 2, 0, 0, 0)
	require.NoError(t, pass.End())
	assert.Error(t, pass.End())
	cb, _ := enc.Finish()
	require.NoError(t, d.Queue().Submit(cb))

	draws := d.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, DrawRecord{
		Pass:          "main",
		Pipeline:      "flat",
		BindGroups:    map[uint32]string{0: "camera"},
		VertexBuffer:  "vertices",
		IndexBuffer:   "indices",
		IndexFormat:   IndexFormatUint32,
		Indexed:       true,
		Count:         3,
		InstanceCount: 2,
	}, draws[0])
}

func TestHeadlessSurface(t *testing.T) {
	s := NewHeadlessSurface(800, 600)
	_, err := s.AcquireView()
	require.NoError(t, err)
	_, err = s.AcquireView()
	assert.ErrorIs(t, err, ErrInvalidState)

	s.Present()
	assert.Equal(t, 1, s.Presented())

	assert.ErrorIs(t, s.Configure(0, 10), ErrOutOfRange)
	require.NoError(t, s.Configure(1024, 768))
	w, h := s.Size()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}

func TestParseBackendType(t *testing.T) {
	b, err := ParseBackendType("headless")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeHeadless, b)
	assert.Equal(t, "headless", b.String())

	b, err = ParseBackendType("")
	require.NoError(t, err)
	assert.Equal(t, BackendTypeWGPU, b)

	_, err = ParseBackendType("vulkan")
	assert.Error(t, err)
}

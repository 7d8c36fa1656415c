package bind_group_provider

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayout(t *testing.T, d gpu.Device) gpu.BindGroupLayout {
	t.Helper()
	layout, err := d.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "instances layout",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex, Type: gpu.BindingTypeReadOnlyStorage},
		},
	})
	require.NoError(t, err)
	return layout
}

func TestRegenerateIfStale(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	ib, err := buffer.NewInstanceBuffer(d, 16, 2)
	require.NoError(t, err)

	p, err := NewBindGroupProvider("instances", d, newLayout(t, d), WithBuffer(0, ib))
	require.NoError(t, err)
	first := p.BindGroup()
	assert.Equal(t, []gpu.Buffer{ib.Buffer()}, d.BoundBuffers(first))

	regenerated, err := p.RegenerateIfStale()
	require.NoError(t, err)
	assert.False(t, regenerated)

	require.NoError(t, ib.SetCapacity(4))
	assert.True(t, p.Stale())
	regenerated, err = p.RegenerateIfStale()
	require.NoError(t, err)
	assert.True(t, regenerated)
	assert.False(t, p.Stale())
	assert.Equal(t, 1, p.Regenerations())
	assert.Equal(t, []gpu.Buffer{ib.Buffer()}, d.BoundBuffers(p.BindGroup()))
	assert.Same(t, ib.Buffer(), p.Buffer(0))
}

func TestStaticBufferNeverStale(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	u, err := buffer.NewUniformBuffer(d, 64)
	require.NoError(t, err)

	p, err := NewBindGroupProvider("camera", d, newLayout(t, d), WithBuffer(0, StaticBuffer(u.Buffer())))
	require.NoError(t, err)
	assert.False(t, p.Stale())
	assert.Nil(t, p.Buffer(1))
}

func TestRegenerateFailureKeepsBindGroup(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	u, err := buffer.NewUniformBuffer(d, 16)
	require.NoError(t, err)
	p, err := NewBindGroupProvider("camera", d, newLayout(t, d), WithBuffer(0, u))
	require.NoError(t, err)
	before := p.BindGroup()

	u.Destroy()
	err = p.Regenerate()
	assert.ErrorIs(t, err, gpu.ErrResource)
	assert.Same(t, before, p.BindGroup())
}

func TestBufferWriteApply(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	u, err := buffer.NewUniformBuffer(d, 8)
	require.NoError(t, err)
	p, err := NewBindGroupProvider("camera", d, newLayout(t, d), WithBuffer(0, u))
	require.NoError(t, err)

	require.NoError(t, BufferWrite{Provider: p, Binding: 0, Offset: 4, Data: []byte{1, 2, 3, 4}}.Apply(d.Queue()))
	assert.Equal(t, []byte{0, 0, 0, 0, 1, 2, 3, 4}, d.Contents(u.Buffer()))

	err = BufferWrite{Provider: p, Binding: 3, Data: []byte{1}}.Apply(d.Queue())
	assert.ErrorIs(t, err, gpu.ErrNotFound)
}

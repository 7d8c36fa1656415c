package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	p, err := NewPipeline("basic", d, "@vertex fn vs_main() {}",
		WithBindGroupLayout(gpu.BindGroupLayoutDescriptor{
			Entries: []gpu.BindGroupLayoutEntry{{Binding: 0, Visibility: gpu.ShaderStageVertex, Type: gpu.BindingTypeUniform}},
		}),
		WithBindGroupLayout(gpu.BindGroupLayoutDescriptor{Label: "instances"}),
		WithCullMode(gpu.CullModeNone),
	)
	require.NoError(t, err)

	assert.Equal(t, "basic", p.Key())
	assert.Equal(t, "basic", p.RenderPipeline().Label())
	require.Len(t, p.BindGroupLayouts(), 2)
	assert.Equal(t, "basic group 0", p.BindGroupLayout(0).Label())
	assert.Equal(t, "instances", p.BindGroupLayout(1).Label())
	assert.Nil(t, p.BindGroupLayout(2))
	assert.Equal(t, gpu.CullModeNone, p.CullMode())
	assert.Equal(t, gpu.TopologyTriangleList, p.Topology())
	assert.True(t, p.DepthTestEnabled())

	p.Release()
	assert.Nil(t, p.RenderPipeline())
}

func TestNewPipelineWithoutShader(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	_, err := NewPipeline("empty", d, "")
	assert.ErrorIs(t, err, gpu.ErrResource)
}

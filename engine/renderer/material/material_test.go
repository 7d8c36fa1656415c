package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestGPUMaterialLayout(t *testing.T) {
	g := GPUMaterial{Albedo: [4]float32{0.1, 0.2, 0.3, 1}, Fresnel: [3]float32{0.5, 0.6, 0.7}, Roughness: 0.25}
	assert.Equal(t, GPUMaterialSize, g.Size())
	b := g.Marshal()
	require.Len(t, b, GPUMaterialSize)
	assert.Equal(t, float32(0.3), f32At(b, 8))
	assert.Equal(t, float32(0.5), f32At(b, 16))
	assert.Equal(t, float32(0.25), f32At(b, 28))
}

func TestMaterialGroupGrowthRewrites(t *testing.T) {
	d := gpu.NewHeadlessDevice()
	g, err := NewMaterialGroup(d, WithInitialCapacity(1))
	require.NoError(t, err)

	i, err := g.AddMaterial(NewMaterial("red", WithAlbedo([4]float32{1, 0, 0, 1})))
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	first := g.Buffer().Buffer()

	i, err = g.AddMaterial(NewMaterial("rough", WithRoughness(0.75)))
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.NotSame(t, first, g.Buffer().Buffer())
	assert.Equal(t, 2, g.Buffer().Capacity())
	assert.Equal(t, uint64(1), g.Buffer().Generation())

	contents := d.Contents(g.Buffer().Buffer())
	assert.Equal(t, float32(1), f32At(contents, 0))
	assert.Equal(t, float32(0.75), f32At(contents, GPUMaterialSize+28))

	_, err = g.AddMaterial(NewMaterial("red"))
	assert.ErrorIs(t, err, gpu.ErrDuplicate)
	assert.Equal(t, 1, g.IndexOf("rough"))
	assert.Equal(t, "red", g.MaterialAt(0).Name())
}

func TestMaterialGroupSetAndRemove(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	d := gpu.NewHeadlessDevice()
	g, err := NewMaterialGroup(d, WithGroupLogger(zap.New(core)))
	require.NoError(t, err)
	_, err = g.AddMaterial(NewMaterial("a"))
	require.NoError(t, err)

	require.NoError(t, g.SetMaterial(NewMaterial("a", WithRoughness(0.1))))
	assert.Equal(t, float32(0.1), f32At(d.Contents(g.Buffer().Buffer()), 28))
	assert.ErrorIs(t, g.SetMaterial(NewMaterial("b")), gpu.ErrNotFound)

	assert.ErrorIs(t, g.RemoveMaterial("a"), gpu.ErrUnsupported)
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, 1, g.Len())

	g.Destroy()
	assert.Equal(t, 0, d.LiveBuffers())
}

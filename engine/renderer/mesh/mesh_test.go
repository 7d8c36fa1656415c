package mesh

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMesh(t *testing.T) {
	m, err := NewMesh("tri", make([]float32, 9), 3, WithIndices16([]uint16{0, 1, 2}))
	require.NoError(t, err)
	assert.Equal(t, 3, m.VertexCount())
	assert.Equal(t, 3, m.IndexCount())
	assert.Equal(t, gpu.IndexFormatUint16, m.IndexFormat())
	assert.Len(t, m.VertexBytes(nil), 36)
	assert.Equal(t, []byte{0, 0, 1, 0, 2, 0}, m.IndexBytes(nil))

	plain, err := NewMesh("points", []float32{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, gpu.IndexFormatNone, plain.IndexFormat())
	assert.Equal(t, 0, plain.IndexCount())
}

func TestNewMeshValidation(t *testing.T) {
	_, err := NewMesh("bad stride", make([]float32, 10), 3)
	assert.ErrorIs(t, err, gpu.ErrSizeMismatch)

	_, err = NewMesh("zero stride", nil, 0)
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)

	_, err = NewMesh("bad index", make([]float32, 6), 3, WithIndices32([]uint32{0, 2}))
	assert.ErrorIs(t, err, gpu.ErrOutOfRange)

	_, err = NewMesh("both", make([]float32, 6), 3, WithIndices16([]uint16{0}), WithIndices32([]uint32{1}))
	assert.ErrorIs(t, err, gpu.ErrIndexFormatMismatch)
}

func TestDescriptorIndexed(t *testing.T) {
	assert.False(t, Descriptor{VertexCount: 3}.Indexed())
	assert.True(t, Descriptor{VertexCount: 3, IndexCount: 3}.Indexed())
}

package game_object

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// ModelDataSource is the WGSL definition of ModelData.
//
//go:embed assets/model_data.wgsl
var ModelDataSource string

// ModelData is the per-instance record of a scene object.
// Layout (80 bytes, std430 aligned):
//
//	struct ModelData {
//	    model: mat4x4<f32>,
//	    materialIndex: u32,
//	    // 12 bytes of padding
//	}
type ModelData struct {
	Model         mgl32.Mat4 // offset 0: column-major model matrix (64 bytes)
	MaterialIndex uint32     // offset 64: index into the material storage buffer (4 bytes)
	_             [3]uint32  // offset 68: padding to a 16-byte multiple (12 bytes)
}

// ModelDataSize is the byte size of one ModelData record.
const ModelDataSize = 80

// Size returns the size of the ModelData struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (m *ModelData) Size() int {
	return int(unsafe.Sizeof(*m))
}

// Marshal serializes the ModelData into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload.
func (m *ModelData) Marshal() []byte {
	buf := make([]byte, ModelDataSize)
	for i, v := range m.Model {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[64:68], m.MaterialIndex)
	return buf
}

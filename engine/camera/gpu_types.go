package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraUniformSource is the WGSL definition of CameraUniform.
//
//go:embed assets/camera_uniform.wgsl
var CameraUniformSource string

// CameraUniformSize is the byte size of CameraUniform on the GPU.
const CameraUniformSize = 80

// CameraUniform is the GPU-aligned representation of the camera uniform buffer.
//
//	struct CameraUniform {
//	    view_proj: mat4x4<f32>,  // offset  0
//	    position:  vec3<f32>,    // offset 64
//	}                            // 80 bytes
type CameraUniform struct {
	ViewProj mgl32.Mat4
	Position mgl32.Vec3
	_        float32
}

// Size returns the size of the CameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *CameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the CameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *CameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.ViewProj[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.Position[i]))
	}
	return buf
}

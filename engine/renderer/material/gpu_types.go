package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUMaterialSource is the WGSL definition of the Material struct matching GPUMaterial.
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUMaterial is the storage-buffer record of one material.
// Layout (32 bytes, std430 aligned):
//
//	struct Material {
//	    albedo: vec4<f32>,
//	    fresnel: vec3<f32>,
//	    roughness: f32,
//	}
type GPUMaterial struct {
	Albedo    [4]float32 // offset 0: RGBA albedo (16 bytes)
	Fresnel   [3]float32 // offset 16: F0 reflectance (12 bytes)
	Roughness float32    // offset 28: packed into the vec3 tail (4 bytes)
}

// GPUMaterialSize is the byte size of one GPUMaterial record.
const GPUMaterialSize = 32

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, GPUMaterialSize)
	for i, v := range g.Albedo {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for i, v := range g.Fresnel {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Roughness))
	return buf
}

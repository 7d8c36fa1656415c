package material

// material is the implementation of the Material interface.
type material struct {
	name      string
	albedo    [4]float32
	fresnel   [3]float32
	roughness float32
}

// Material describes the surface parameters of one entry in a MaterialGroup.
// Materials are immutable; replace one with MaterialGroup.SetMaterial to change it.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Albedo retrieves the RGBA base color of the material.
	//
	// Returns:
	//   - [4]float32: the albedo
	Albedo() [4]float32

	// Fresnel retrieves the reflectance at normal incidence.
	//
	// Returns:
	//   - [3]float32: the RGB reflectance
	Fresnel() [3]float32

	// Roughness retrieves the roughness factor, 0 for a mirror and 1 for fully rough.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// GPU returns the storage-buffer record of the material.
	//
	// Returns:
	//   - GPUMaterial: the record
	GPU() GPUMaterial
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
// Defaults are white albedo, a dielectric fresnel of 0.04 and roughness 1.
//
// Parameters:
//   - name: the material name, unique within a MaterialGroup
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(name string, options ...MaterialBuilderOption) Material {
	m := &material{
		name:      name,
		albedo:    [4]float32{1, 1, 1, 1},
		fresnel:   [3]float32{0.04, 0.04, 0.04},
		roughness: 1.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Albedo() [4]float32 {
	return m.albedo
}

func (m *material) Fresnel() [3]float32 {
	return m.fresnel
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) GPU() GPUMaterial {
	return GPUMaterial{Albedo: m.albedo, Fresnel: m.fresnel, Roughness: m.roughness}
}

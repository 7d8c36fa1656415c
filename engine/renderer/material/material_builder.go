package material

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithAlbedo is an option builder that sets the RGBA base color of the material.
//
// Parameters:
//   - color: the albedo as RGBA float32 values
//
// Returns:
//   - MaterialBuilderOption: a function that applies the albedo option to a material
func WithAlbedo(color [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.albedo = color
	}
}

// WithFresnel is an option builder that sets the reflectance at normal incidence.
//
// Parameters:
//   - f0: the RGB reflectance
//
// Returns:
//   - MaterialBuilderOption: a function that applies the fresnel option to a material
func WithFresnel(f0 [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.fresnel = f0
	}
}

// WithRoughness is an option builder that sets the roughness factor of the material.
//
// Parameters:
//   - roughness: the roughness factor (0.0 = smooth, 1.0 = fully rough)
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

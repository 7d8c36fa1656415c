package shader

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotated = `//@oxy:include camera
//@oxy:group 0 0 uniform camera camera
//@oxy:group 1 0 storage_read models array<model_data>
//@oxy:group 2 0 storage_read materials array<material>

@vertex
fn vs_main(@builtin(instance_index) i: u32) -> @builtin(position) vec4<f32> {
    return camera.view_proj * models[i].model * vec4<f32>(0.0, 0.0, 0.0, 1.0);
}`

func TestProcessExpandsAnnotations(t *testing.T) {
	p := NewPreProcessor()
	out, err := p.Process(annotated)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "struct CameraUniform"), "struct included once")
	assert.Contains(t, out, "struct ModelData")
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> camera: CameraUniform;")
	assert.Contains(t, out, "@group(1) @binding(0) var<storage, read> models: array<ModelData>;")
	assert.Contains(t, out, "@group(2) @binding(0) var<storage, read> materials: array<Material>;")
	assert.NotContains(t, out, annotationPrefix)
	assert.Contains(t, out, "fn vs_main")

	decls := p.Declarations()
	require.Len(t, decls, 3)
	assert.Equal(t, "models", decls[1].VarName)
	assert.True(t, decls[1].Array)
	assert.Equal(t, 4, decls[2].Line)
}

func TestLayoutsFromDeclarations(t *testing.T) {
	p := NewPreProcessor()
	_, err := p.Process("//@oxy:group 0 1 storage_read_write out array<model_data>\n//@oxy:group 0 0 uniform camera camera\n//@oxy:group 2 0 storage_read m array<material>")
	require.NoError(t, err)

	layouts := p.Layouts("objects", gpu.ShaderStageVertex)
	require.Len(t, layouts, 3)
	assert.Equal(t, "objects group 1", layouts[1].Label)
	assert.Empty(t, layouts[1].Entries)
	assert.Equal(t, []gpu.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gpu.ShaderStageVertex, Type: gpu.BindingTypeUniform},
		{Binding: 1, Visibility: gpu.ShaderStageVertex, Type: gpu.BindingTypeStorage},
	}, layouts[0].Entries)
	assert.Equal(t, gpu.BindingTypeReadOnlyStorage, layouts[2].Entries[0].Type)

	_, err = p.Process("fn main() {}")
	require.NoError(t, err)
	assert.Nil(t, p.Layouts("objects", gpu.ShaderStageVertex))
}

func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		is     error
		msg    string
	}{
		{name: "unknown struct", source: "//@oxy:include light", is: gpu.ErrNotFound},
		{name: "reused slot", source: "//@oxy:group 0 0 uniform a camera\n//@oxy:group 0 0 uniform b camera", is: gpu.ErrDuplicate},
		{name: "unknown type", source: "//@oxy:shadow 0", msg: "unknown @oxy annotation type"},
		{name: "bad group", source: "//@oxy:group x 0 uniform a camera", msg: "invalid group number"},
		{name: "bad address space", source: "//@oxy:group 0 0 private a camera", msg: "unknown address space"},
		{name: "uniform array", source: "//@oxy:group 0 0 uniform a array<camera>", msg: "runtime-sized array"},
		{name: "empty", source: "  //@oxy:", msg: "line 1: empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreProcessor().Process(tt.source)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	p := NewPreProcessor()
	require.NoError(t, p.Register("tint", "Tint", "struct Tint {\n    color: vec4<f32>,\n}\n"))
	assert.ErrorIs(t, p.Register("camera", "CameraUniform", ""), gpu.ErrDuplicate)

	out, err := p.Process("//@oxy:group 3 2 uniform tint tint")
	require.NoError(t, err)
	assert.Equal(t, "struct Tint {\n    color: vec4<f32>,\n}\n@group(3) @binding(2) var<uniform> tint: Tint;", out)

	// Plain comments are left untouched.
	out, err = p.Process("// see @oxy docs")
	require.NoError(t, err)
	assert.Equal(t, "// see @oxy docs", out)
}

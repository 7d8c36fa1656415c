// pre_processor.go implements the Oxy WGSL shader pre-processor. It replaces @oxy:
// annotations with registered struct sources or generated binding declarations, and derives
// the bind group layouts of the processed module from the declarations it emitted.
package shader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/camera"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/game_object"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/material"
)

// Struct keys registered by NewPreProcessor.
const (
	StructCamera    = "camera"
	StructModelData = "model_data"
	StructMaterial  = "material"
)

// registryEntry pairs a WGSL struct source with its WGSL type name.
type registryEntry struct {
	source   string
	typeName string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	structs      map[string]registryEntry
	declarations []Annotation
}

// PreProcessor processes WGSL source containing @oxy: annotations.
type PreProcessor interface {
	// Register adds a struct that include and group annotations can name.
	//
	// Parameters:
	//   - key: the annotation argument naming the struct
	//   - typeName: the WGSL type name declared by source
	//   - source: the WGSL struct definition
	//
	// Returns:
	//   - error: gpu.ErrDuplicate if key is taken
	Register(key, typeName, source string) error

	// Process replaces every annotation with its WGSL output. Each struct is included at most
	// once, and a group annotation includes its struct if no earlier include did. The
	// declarations list is reset at the start of each call.
	//
	// Parameters:
	//   - source: the annotated WGSL source
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error naming the line of a malformed annotation, gpu.ErrNotFound for an
	//     unknown struct, or gpu.ErrDuplicate for a reused group/binding pair
	Process(source string) (string, error)

	// Declarations returns the group annotations of the most recent Process call, in source
	// order.
	//
	// Returns:
	//   - []Annotation: the declarations
	Declarations() []Annotation

	// Layouts derives one bind group layout descriptor per group from 0 to the highest declared
	// group, in group order. Groups without declarations get an empty layout.
	//
	// Parameters:
	//   - label: the label prefix of each descriptor
	//   - visibility: the shader stages every binding is visible to
	//
	// Returns:
	//   - []gpu.BindGroupLayoutDescriptor: the descriptors, nil if nothing was declared
	Layouts(label string, visibility gpu.ShaderStage) []gpu.BindGroupLayoutDescriptor
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's GPU structs registered under
// StructCamera, StructModelData and StructMaterial.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		structs: map[string]registryEntry{
			StructCamera:    {source: camera.CameraUniformSource, typeName: "CameraUniform"},
			StructModelData: {source: game_object.ModelDataSource, typeName: "ModelData"},
			StructMaterial:  {source: material.GPUMaterialSource, typeName: "Material"},
		},
	}
}

func (p *preProcessor) Register(key, typeName, source string) error {
	if _, ok := p.structs[key]; ok {
		return fmt.Errorf("shader: struct %q: %w", key, gpu.ErrDuplicate)
	}
	p.structs[key] = registryEntry{source: source, typeName: typeName}
	return nil
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[string]bool)
	bound := make(map[[2]uint32]int)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		entry, ok := p.structs[a.Struct]
		if !ok {
			return "", fmt.Errorf("line %d: struct %q: %w", a.Line, a.Struct, gpu.ErrNotFound)
		}
		if !included[a.Struct] {
			out = append(out, strings.TrimRight(entry.source, "\n"))
			included[a.Struct] = true
		}
		if a.Type == AnnotationTypeInclude {
			continue
		}

		slot := [2]uint32{a.Group, a.Binding}
		if prev, ok := bound[slot]; ok {
			return "", fmt.Errorf("line %d: group %d binding %d already declared on line %d: %w",
				a.Line, a.Group, a.Binding, prev, gpu.ErrDuplicate)
		}
		bound[slot] = a.Line

		wgslType := entry.typeName
		if a.Array {
			wgslType = fmt.Sprintf("array<%s>", entry.typeName)
		}
		out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
			a.Group, a.Binding, addressSpaces[a.AddressSpace].wgsl, a.VarName, wgslType))
		p.declarations = append(p.declarations, *a)
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) Layouts(label string, visibility gpu.ShaderStage) []gpu.BindGroupLayoutDescriptor {
	if len(p.declarations) == 0 {
		return nil
	}
	var maxGroup uint32
	for _, d := range p.declarations {
		maxGroup = max(maxGroup, d.Group)
	}
	out := make([]gpu.BindGroupLayoutDescriptor, maxGroup+1)
	for i := range out {
		out[i].Label = fmt.Sprintf("%s group %d", label, i)
	}
	for _, d := range p.declarations {
		out[d.Group].Entries = append(out[d.Group].Entries, gpu.BindGroupLayoutEntry{
			Binding:    d.Binding,
			Visibility: visibility,
			Type:       addressSpaces[d.AddressSpace].binding,
		})
	}
	for i := range out {
		sort.Slice(out[i].Entries, func(a, b int) bool {
			return out[i].Entries[a].Binding < out[i].Entries[b].Binding
		})
	}
	return out
}

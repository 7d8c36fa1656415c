// annotations.go defines the annotation types and parser for the Oxy WGSL shader
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that drive
// struct injection and bind group declaration.
//
//	//@oxy:include <struct_type>
//	//@oxy:group <group> <binding> <address_space> <var_name> <struct_type|array<struct_type>>
package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects the WGSL source of a registered struct at the annotation site.
	//
	// Example: //@oxy:include camera
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a @group/@binding variable declaration and records it
	// in the declarations list, from which bind group layouts are derived.
	//
	// Example: //@oxy:group 1 0 storage_read models array<model_data>
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// AddressSpace is the address space argument of a group annotation.
type AddressSpace string

const (
	AddressSpaceUniform          AddressSpace = "uniform"
	AddressSpaceStorageRead      AddressSpace = "storage_read"
	AddressSpaceStorageReadWrite AddressSpace = "storage_read_write"
)

// addressSpaces maps each address space to its WGSL var<> syntax and layout binding type.
var addressSpaces = map[AddressSpace]struct {
	wgsl    string
	binding gpu.BindingType
}{
	AddressSpaceUniform:          {"var<uniform>", gpu.BindingTypeUniform},
	AddressSpaceStorageRead:      {"var<storage, read>", gpu.BindingTypeReadOnlyStorage},
	AddressSpaceStorageReadWrite: {"var<storage, read_write>", gpu.BindingTypeStorage},
}

// Annotation is a single parsed @oxy: annotation.
type Annotation struct {
	Type AnnotationType

	// Struct is the registered struct key of an include, or the element key of a group type.
	Struct string
	// Array is set for group annotations typed array<Struct>.
	Array bool

	// The remaining fields are set for group annotations only.
	AddressSpace AddressSpace
	VarName      string
	Group        uint32
	Binding      uint32

	// Line is the 1-based source line, for error reporting.
	Line int
}

// parseAnnotation parses one source line.
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Struct: args[1], Line: lineNum}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires five arguments (group, binding, address space, var name, type)", lineNum)
		}
		group, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %v", lineNum, args[1], err)
		}
		binding, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q: %v", lineNum, args[2], err)
		}
		space := AddressSpace(args[3])
		if _, ok := addressSpaces[space]; !ok {
			return nil, fmt.Errorf("line %d: unknown address space %q", lineNum, args[3])
		}
		a := &Annotation{
			Type:         AnnotationTypeBindingGroup,
			Struct:       args[5],
			AddressSpace: space,
			VarName:      args[4],
			Group:        uint32(group),
			Binding:      uint32(binding),
			Line:         lineNum,
		}
		if inner, ok := strings.CutPrefix(args[5], "array<"); ok {
			a.Struct = strings.TrimSuffix(inner, ">")
			a.Array = true
			if space == AddressSpaceUniform {
				return nil, fmt.Errorf("line %d: runtime-sized array in uniform address space", lineNum)
			}
		}
		return a, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

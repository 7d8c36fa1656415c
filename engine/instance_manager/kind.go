package instance_manager

import "fmt"

// Kind tags the logical object type an InstanceManager serves. Every object of one Kind shares one
// instance buffer and one RenderItem.
type Kind int

const (
	KindCube Kind = iota
	KindSphere
	KindTerrain
	KindLight
)

func (k Kind) String() string {
	switch k {
	case KindCube:
		return "Cube"
	case KindSphere:
		return "Sphere"
	case KindTerrain:
		return "Terrain"
	case KindLight:
		return "Light"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

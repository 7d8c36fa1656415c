package game_object

import "github.com/go-gl/mathgl/mgl32"

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithID sets the ID of the GameObject.
//
// Parameters:
//   - id: unique identifier for the GameObject
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the ID
func WithID(id uint64) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.id = id
	}
}

// WithEnabled sets whether the physics callback of the GameObject runs.
//
// Parameters:
//   - enabled: false to freeze the object
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithPosition sets the initial position of the GameObject.
//
// Parameters:
//   - x: the x position
//   - y: the y position
//   - z: the z position
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the initial position
func WithPosition(x, y, z float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.position = mgl32.Vec3{x, y, z}
	}
}

// WithScale sets the initial scale of the GameObject.
//
// Parameters:
//   - sx: the x scale factor
//   - sy: the y scale factor
//   - sz: the z scale factor
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the initial scale
func WithScale(sx, sy, sz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.scaling = mgl32.Vec3{sx, sy, sz}
	}
}

// WithRotation sets the initial rotation of the GameObject.
//
// Parameters:
//   - axis: the rotation axis
//   - angle: the angle in radians
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the initial rotation
func WithRotation(axis mgl32.Vec3, angle float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotationAxis = axis
		obj.rotationAngle = angle
	}
}

// WithMaterial names the material the Scene resolves into the object's material index.
//
// Parameters:
//   - name: the material name
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the material
func WithMaterial(name string) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.materialName = name
	}
}

// WithPhysics sets the per-frame physics callback. It may run on a worker goroutine and must only
// touch the object it is given.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the physics callback
func WithPhysics(fn func(obj GameObject, deltaTime float32)) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.physics = fn
	}
}

// WithChildren attaches children whose transforms are relative to the object.
//
// Parameters:
//   - children: the child objects
//
// Returns:
//   - GameObjectBuilderOption: functional option to add the children
func WithChildren(children ...GameObject) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.children = append(obj.children, children...)
	}
}

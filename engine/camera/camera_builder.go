package camera

import (
	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraBuilderOption is a functional option for configuring a Camera.
type CameraBuilderOption func(*cameraImpl)

// WithLookAt sets the eye position and look-at target.
//
// Parameters:
//   - position: the eye position
//   - target: the look-at target
//
// Returns:
//   - CameraBuilderOption: functional option to set the view
func WithLookAt(position, target mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position, c.target = position, target
	}
}

// WithFov sets the vertical field of view.
//
// Parameters:
//   - degrees: the field of view in degrees
//
// Returns:
//   - CameraBuilderOption: functional option to set the field of view
func WithFov(degrees float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = mgl32.DegToRad(degrees)
	}
}

// WithAspect sets the initial aspect ratio.
//
// Parameters:
//   - aspect: width / height
//
// Returns:
//   - CameraBuilderOption: functional option to set the aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if aspect > 0 {
			c.aspect = aspect
		}
	}
}

// WithClip sets the near and far clipping planes.
//
// Parameters:
//   - near: near plane distance
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the clipping planes
func WithClip(near, far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near, c.far = near, far
	}
}

// WithUniform makes the camera own a uniform buffer on device.
//
// Parameters:
//   - device: the GPU device
//   - label: the buffer label, "camera" if empty
//
// Returns:
//   - CameraBuilderOption: functional option to create the uniform buffer
func WithUniform(device gpu.Device, label string) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.device = device
		c.label = common.Coalesce(label, "camera")
	}
}

package camera

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/buffer"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	label    string
	position mgl32.Vec3
	target   mgl32.Vec3
	up       mgl32.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	view     mgl32.Mat4
	proj     mgl32.Mat4
	viewProj mgl32.Mat4

	device  gpu.Device
	uniform buffer.UniformBuffer
	dirty   bool
}

// Camera is a fixed perspective view. It owns an optional uniform buffer holding CameraUniform,
// rewritten by Write whenever the view changed.
type Camera interface {
	// Position returns the eye position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Target returns the point the camera looks at.
	//
	// Returns:
	//   - mgl32.Vec3: the look-at target
	Target() mgl32.Vec3

	// SetLookAt moves the camera.
	//
	// Parameters:
	//   - position: the eye position
	//   - target: the look-at target
	SetLookAt(position, target mgl32.Vec3)

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// SetAspect sets the aspect ratio. Non-positive values are ignored.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// ViewProjection returns the combined view-projection matrix.
	//
	// Returns:
	//   - mgl32.Mat4: projection * view
	ViewProjection() mgl32.Mat4

	// Uniform returns the current GPU representation of the camera.
	//
	// Returns:
	//   - CameraUniform: the uniform data
	Uniform() CameraUniform

	// Buffer returns the uniform buffer, nil when the camera was built without a device.
	//
	// Returns:
	//   - buffer.UniformBuffer: the camera uniform buffer or nil
	Buffer() buffer.UniformBuffer

	// Write uploads the uniform when the view changed since the last write.
	//
	// Returns:
	//   - bool: true if the buffer was written
	//   - error: a resource error from the upload
	Write() (bool, error)

	// Destroy releases the uniform buffer.
	Destroy()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at (0, 0, 5) looking at the origin with a 45 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
//   - error: an error if the uniform buffer could not be created
func NewCamera(options ...CameraBuilderOption) (Camera, error) {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: mgl32.Vec3{0, 0, 5},
		up:       mgl32.Vec3{0, 1, 0},
		fov:      mgl32.DegToRad(45),
		aspect:   1,
		near:     0.1,
		far:      100,
		dirty:    true,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()

	if c.device != nil {
		u, err := buffer.NewUniformBuffer(c.device, CameraUniformSize, buffer.WithLabel(c.label))
		if err != nil {
			return nil, fmt.Errorf("camera: %w", err)
		}
		c.uniform = u
	}
	return c, nil
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) Target() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *cameraImpl) SetLookAt(position, target mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position, c.target = position, target
	c.updateMatrices()
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 || aspect == c.aspect {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) ViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProj
}

func (c *cameraImpl) Uniform() CameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CameraUniform{ViewProj: c.viewProj, Position: c.position}
}

func (c *cameraImpl) Buffer() buffer.UniformBuffer {
	return c.uniform
}

func (c *cameraImpl) Write() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uniform == nil || !c.dirty {
		return false, nil
	}
	u := CameraUniform{ViewProj: c.viewProj, Position: c.position}
	if err := c.uniform.Write(u.Marshal()); err != nil {
		return false, fmt.Errorf("camera: %w", err)
	}
	c.dirty = false
	return true, nil
}

func (c *cameraImpl) Destroy() {
	if c.uniform != nil {
		c.uniform.Destroy()
	}
}

// updateMatrices recomputes view, projection and view-projection. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	c.view = mgl32.LookAtV(c.position, c.target, c.up)
	c.proj = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	c.viewProj = c.proj.Mul4(c.view)
	c.dirty = true
}

package buffer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// UniformBuffer is a fixed-size uniform buffer rewritten as a whole.
type UniformBuffer interface {
	// Buffer returns the device buffer.
	//
	// Returns:
	//   - gpu.Buffer: the uniform buffer
	Buffer() gpu.Buffer

	// Size returns the byte size of the buffer.
	//
	// Returns:
	//   - uint64: the size
	Size() uint64

	// Generation is always 0; uniform buffers never reallocate.
	//
	// Returns:
	//   - uint64: 0
	Generation() uint64

	// Write replaces the buffer contents.
	//
	// Parameters:
	//   - data: exactly Size() bytes
	//
	// Returns:
	//   - error: gpu.ErrSizeMismatch on a wrong size, or a resource error
	Write(data []byte) error

	// Destroy releases the device buffer and any staging buffers.
	Destroy()
}

type basicUniform struct {
	device gpu.Device
	label  string
	buffer gpu.Buffer
	size   uint64
}

var _ UniformBuffer = &basicUniform{}

// NewUniformBuffer creates a uniform buffer written with Queue.WriteBuffer.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - size: the buffer size in bytes, a positive multiple of 4
//   - options: functional options; WithLabel applies, WithUsage is ignored
//
// Returns:
//   - UniformBuffer: the buffer
//   - error: gpu.ErrOutOfRange for a bad size, or an error wrapping gpu.ErrResource
func NewUniformBuffer(device gpu.Device, size int, options ...BufferBuilderOption) (UniformBuffer, error) {
	if device == nil {
		panic("buffer: NewUniformBuffer requires a non-nil Device")
	}
	cfg := newBufferConfig(options)
	buf, err := createUniform(device, cfg.label, size)
	if err != nil {
		return nil, err
	}
	return &basicUniform{device: device, label: cfg.label, buffer: buf, size: uint64(size)}, nil
}

func createUniform(device gpu.Device, label string, size int) (gpu.Buffer, error) {
	if size <= 0 || size%4 != 0 {
		return nil, fmt.Errorf("uniform buffer %q: size %d must be a positive multiple of 4: %w", label, size, gpu.ErrOutOfRange)
	}
	buf, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform buffer %q: %w", label, err)
	}
	return buf, nil
}

func (u *basicUniform) Buffer() gpu.Buffer { return u.buffer }
func (u *basicUniform) Size() uint64       { return u.size }
func (u *basicUniform) Generation() uint64 { return 0 }

func (u *basicUniform) Write(data []byte) error {
	if uint64(len(data)) != u.size {
		return fmt.Errorf("uniform buffer %q: write of %d bytes, want %d: %w", u.label, len(data), u.size, gpu.ErrSizeMismatch)
	}
	if err := u.device.Queue().WriteBuffer(u.buffer, 0, data); err != nil {
		return fmt.Errorf("uniform buffer %q: %w", u.label, err)
	}
	return nil
}

func (u *basicUniform) Destroy() {
	if u.buffer != nil {
		u.buffer.Destroy()
		u.buffer = nil
	}
}

// uniformPool writes through pooled staging buffers. Every Write takes a mapped buffer, copies the
// data in, submits a copy and remaps the buffer for reuse.
type uniformPool struct {
	mu *sync.Mutex

	device    gpu.Device
	label     string
	buffer    gpu.Buffer
	size      uint64
	free      []*stagingBuffer
	inFlight  int
	destroyed bool
}

var _ UniformBuffer = &uniformPool{}

// NewUniformPool creates a uniform buffer written through a pool of staging buffers.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - size: the buffer size in bytes, a positive multiple of 4
//   - options: functional options; WithLabel applies
//
// Returns:
//   - UniformBuffer: the buffer
//   - error: gpu.ErrOutOfRange for a bad size, or an error wrapping gpu.ErrResource
func NewUniformPool(device gpu.Device, size int, options ...BufferBuilderOption) (UniformBuffer, error) {
	if device == nil {
		panic("buffer: NewUniformPool requires a non-nil Device")
	}
	cfg := newBufferConfig(options)
	buf, err := createUniform(device, cfg.label, size)
	if err != nil {
		return nil, err
	}
	return &uniformPool{mu: &sync.Mutex{}, device: device, label: cfg.label, buffer: buf, size: uint64(size)}, nil
}

func (u *uniformPool) Buffer() gpu.Buffer { return u.buffer }
func (u *uniformPool) Size() uint64       { return u.size }
func (u *uniformPool) Generation() uint64 { return 0 }

func (u *uniformPool) Write(data []byte) error {
	if uint64(len(data)) != u.size {
		return fmt.Errorf("uniform buffer %q: write of %d bytes, want %d: %w", u.label, len(data), u.size, gpu.ErrSizeMismatch)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.destroyed {
		return fmt.Errorf("uniform buffer %q is destroyed: %w", u.label, gpu.ErrInvalidState)
	}

	sb, err := u.acquire()
	if err != nil {
		return err
	}
	view, err := sb.buffer.MappedRange(0, u.size)
	if err != nil {
		sb.destroy()
		return fmt.Errorf("uniform buffer %q: %w", u.label, err)
	}
	copy(view, data)

	if err := sb.buffer.Unmap(); err != nil {
		sb.destroy()
		return fmt.Errorf("uniform buffer %q: %w", u.label, err)
	}
	if err := sb.transition(StagingStateCopyPending); err != nil {
		sb.destroy()
		return err
	}
	if err := u.submitCopy(sb); err != nil {
		sb.destroy()
		return err
	}
	if err := sb.transition(StagingStateRemapping); err != nil {
		sb.destroy()
		return err
	}

	u.inFlight++
	err = sb.buffer.MapAsync(gpu.MapModeWrite, 0, u.size, func(status gpu.MapStatus) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.inFlight--
		if u.destroyed || status != gpu.MapStatusSuccess || sb.transition(StagingStateWritable) != nil {
			sb.destroy()
			return
		}
		u.free = append(u.free, sb)
	})
	if err != nil {
		u.inFlight--
		sb.destroy()
		return fmt.Errorf("uniform buffer %q: remap: %w", u.label, err)
	}
	return nil
}

func (u *uniformPool) acquire() (*stagingBuffer, error) {
	if n := len(u.free); n > 0 {
		sb := u.free[n-1]
		u.free = u.free[:n-1]
		return sb, nil
	}
	buf, err := u.device.CreateBuffer(&gpu.BufferDescriptor{
		Label:            fmt.Sprintf("Pool Buffer for %s", u.label),
		Size:             u.size,
		Usage:            gpu.BufferUsageMapWrite | gpu.BufferUsageCopySrc,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("uniform buffer %q: %w", u.label, err)
	}
	return &stagingBuffer{buffer: buf, state: StagingStateWritable}, nil
}

func (u *uniformPool) submitCopy(sb *stagingBuffer) error {
	encoder, err := u.device.CreateCommandEncoder(fmt.Sprintf("Uniform Copy for %s", u.label))
	if err != nil {
		return err
	}
	defer encoder.Release()
	if err := encoder.CopyBufferToBuffer(sb.buffer, 0, u.buffer, 0, u.size); err != nil {
		return fmt.Errorf("uniform buffer %q: copy: %w", u.label, err)
	}
	cb, err := encoder.Finish()
	if err != nil {
		return err
	}
	defer cb.Release()
	return u.device.Queue().Submit(cb)
}

// Free returns the number of staging buffers ready for reuse.
func (u *uniformPool) Free() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.free)
}

func (u *uniformPool) Destroy() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.destroyed = true
	for _, sb := range u.free {
		sb.destroy()
	}
	u.free = nil
	if u.buffer != nil {
		u.buffer.Destroy()
		u.buffer = nil
	}
}

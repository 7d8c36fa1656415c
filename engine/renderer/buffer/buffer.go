package buffer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/logger"
	"go.uber.org/zap"
)

// DefaultInstanceUsage is the usage of instance storage buffers: bindable as storage, stepped as
// per-instance vertex data, and writable from the queue or a staging copy.
const DefaultInstanceUsage = gpu.BufferUsageStorage | gpu.BufferUsageVertex | gpu.BufferUsageCopyDst

// InstanceBuffer is a device buffer holding a fixed-size record per instance whose capacity can only grow.
// Growing destroys the device buffer and allocates a new one; contents are not preserved.
// Every reallocation bumps Generation and notifies the observers registered with OnBufferChanged,
// so anything holding the old buffer (bind groups, staging copies) can tell it is stale.
type InstanceBuffer interface {
	// Buffer returns the current device buffer.
	//
	// Returns:
	//   - gpu.Buffer: the device buffer, replaced on every growth
	Buffer() gpu.Buffer

	// Label returns the debug label of the device buffer.
	//
	// Returns:
	//   - string: the label
	Label() string

	// BytesPerRecord returns the size of one instance record.
	//
	// Returns:
	//   - int: bytes per record
	BytesPerRecord() int

	// Capacity returns the number of records the current device buffer can hold.
	//
	// Returns:
	//   - int: the capacity in records
	Capacity() int

	// Size returns the byte size of the current device buffer.
	//
	// Returns:
	//   - uint64: BytesPerRecord * Capacity
	Size() uint64

	// Generation returns a counter incremented every time the device buffer is replaced.
	//
	// Returns:
	//   - uint64: the generation
	Generation() uint64

	// SetCapacity grows the buffer to hold capacity records. A capacity at or below the current
	// one is a no-op. On growth the old buffer is destroyed, a new one is allocated, the generation
	// is incremented and every observer is called once with the new buffer.
	//
	// Parameters:
	//   - capacity: the requested capacity in records
	//
	// Returns:
	//   - error: an error wrapping gpu.ErrResource if allocation fails
	SetCapacity(capacity int) error

	// OnBufferChanged registers an observer called after every reallocation.
	//
	// Parameters:
	//   - fn: the observer, called with the new device buffer
	OnBufferChanged(fn func(buf gpu.Buffer))

	// Destroy releases the device buffer. The InstanceBuffer must not be used afterwards.
	Destroy()
}

// Writer is an InstanceBuffer that accepts per-record writes and flushes them to the device
// before the draw that reads them.
type Writer interface {
	InstanceBuffer

	// WriteRecord writes one record at a record index.
	//
	// Parameters:
	//   - index: the record index, in [0, Capacity())
	//   - data: exactly BytesPerRecord() bytes
	//
	// Returns:
	//   - error: gpu.ErrSizeMismatch or gpu.ErrOutOfRange on bad arguments, or a resource error
	WriteRecord(index int, data []byte) error

	// PreRender flushes writes accumulated since the last call. It never blocks on the GPU.
	//
	// Returns:
	//   - error: a resource error if the flush could not be encoded or submitted
	PreRender() error
}

type instanceBuffer struct {
	mu *sync.Mutex

	device         gpu.Device
	log            *zap.Logger
	label          string
	usage          gpu.BufferUsage
	bytesPerRecord int
	capacity       int
	buffer         gpu.Buffer
	generation     uint64
	observers      []func(gpu.Buffer)
}

var _ InstanceBuffer = &instanceBuffer{}

// NewInstanceBuffer allocates a device buffer for capacity records of bytesPerRecord bytes.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - bytesPerRecord: the record size in bytes, must be positive and a multiple of 4
//   - capacity: the initial capacity in records, must be positive
//   - options: functional options such as WithLabel or WithUsage
//
// Returns:
//   - InstanceBuffer: the buffer
//   - error: gpu.ErrOutOfRange for bad sizes, or an error wrapping gpu.ErrResource
func NewInstanceBuffer(device gpu.Device, bytesPerRecord, capacity int, options ...BufferBuilderOption) (InstanceBuffer, error) {
	if device == nil {
		panic("buffer: NewInstanceBuffer requires a non-nil Device")
	}
	cfg := newBufferConfig(options)
	return newInstanceBuffer(device, bytesPerRecord, capacity, cfg)
}

func newInstanceBuffer(device gpu.Device, bytesPerRecord, capacity int, cfg *bufferConfig) (*instanceBuffer, error) {
	if bytesPerRecord <= 0 || bytesPerRecord%4 != 0 {
		return nil, fmt.Errorf("instance buffer %q: bytes per record %d must be a positive multiple of 4: %w", cfg.label, bytesPerRecord, gpu.ErrOutOfRange)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("instance buffer %q: capacity %d must be positive: %w", cfg.label, capacity, gpu.ErrOutOfRange)
	}

	b := &instanceBuffer{
		mu:             &sync.Mutex{},
		device:         device,
		log:            logger.Or(cfg.logger),
		label:          cfg.label,
		usage:          cfg.usage,
		bytesPerRecord: bytesPerRecord,
	}
	buf, err := b.allocate(capacity)
	if err != nil {
		return nil, err
	}
	b.buffer = buf
	b.capacity = capacity
	return b, nil
}

func (b *instanceBuffer) allocate(capacity int) (gpu.Buffer, error) {
	buf, err := b.device.CreateBuffer(&gpu.BufferDescriptor{
		Label: b.label,
		Size:  uint64(b.bytesPerRecord) * uint64(capacity),
		Usage: b.usage,
	})
	if err != nil {
		return nil, fmt.Errorf("instance buffer %q: allocate %d records: %w", b.label, capacity, err)
	}
	return buf, nil
}

func (b *instanceBuffer) Buffer() gpu.Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer
}

func (b *instanceBuffer) Label() string {
	return b.label
}

func (b *instanceBuffer) BytesPerRecord() int {
	return b.bytesPerRecord
}

func (b *instanceBuffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

func (b *instanceBuffer) Size() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(b.bytesPerRecord) * uint64(b.capacity)
}

func (b *instanceBuffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}

func (b *instanceBuffer) SetCapacity(capacity int) error {
	b.mu.Lock()
	if capacity <= b.capacity {
		b.mu.Unlock()
		return nil
	}

	buf, err := b.allocate(capacity)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if b.buffer != nil {
		b.buffer.Destroy()
	}
	b.buffer = buf
	b.capacity = capacity
	b.generation++
	observers := append([]func(gpu.Buffer){}, b.observers...)
	gen := b.generation
	b.mu.Unlock()

	b.log.Debug("instance buffer grown",
		zap.String("buffer", b.label),
		zap.Int("capacity", capacity),
		zap.Uint64("generation", gen),
	)
	// Observers may call back into the buffer, so they run without the lock.
	for _, fn := range observers {
		fn(buf)
	}
	return nil
}

func (b *instanceBuffer) OnBufferChanged(fn func(buf gpu.Buffer)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

func (b *instanceBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buffer != nil {
		b.buffer.Destroy()
		b.buffer = nil
	}
	b.observers = nil
}

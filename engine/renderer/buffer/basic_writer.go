package buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

type basicWriter struct {
	*instanceBuffer
}

var _ Writer = &basicWriter{}

// NewBasicWriter creates an InstanceBuffer whose records are written directly with Queue.WriteBuffer.
// PreRender is a no-op; writes are ordered before any later submit by the queue itself.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - bytesPerRecord: the record size in bytes, a positive multiple of 4
//   - capacity: the initial capacity in records
//   - options: functional options such as WithLabel or WithUsage
//
// Returns:
//   - Writer: the writer
//   - error: gpu.ErrOutOfRange for bad sizes, or an error wrapping gpu.ErrResource
func NewBasicWriter(device gpu.Device, bytesPerRecord, capacity int, options ...BufferBuilderOption) (Writer, error) {
	if device == nil {
		panic("buffer: NewBasicWriter requires a non-nil Device")
	}
	ib, err := newInstanceBuffer(device, bytesPerRecord, capacity, newBufferConfig(options))
	if err != nil {
		return nil, err
	}
	return &basicWriter{instanceBuffer: ib}, nil
}

func (w *basicWriter) WriteRecord(index int, data []byte) error {
	if len(data) != w.bytesPerRecord {
		return fmt.Errorf("buffer %q: record of %d bytes, want %d: %w", w.label, len(data), w.bytesPerRecord, gpu.ErrSizeMismatch)
	}
	capacity := w.Capacity()
	if index < 0 || index >= capacity {
		return fmt.Errorf("buffer %q: record %d outside capacity %d: %w", w.label, index, capacity, gpu.ErrOutOfRange)
	}
	if err := w.device.Queue().WriteBuffer(w.Buffer(), uint64(index*w.bytesPerRecord), data); err != nil {
		return fmt.Errorf("buffer %q: record %d: %w", w.label, index, err)
	}
	return nil
}

func (w *basicWriter) PreRender() error {
	return nil
}

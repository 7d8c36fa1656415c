package bind_group_provider

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// BufferWrite describes a single GPU buffer write operation targeting a specific binding
// on a BindGroupProvider at a given byte offset.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  uint32
	Offset   uint64
	Data     []byte
}

// Apply writes the data into the buffer currently bound at the target binding.
//
// Parameters:
//   - queue: the queue to write through
//
// Returns:
//   - error: gpu.ErrNotFound if the binding holds no buffer, or the queue error
func (w BufferWrite) Apply(queue gpu.Queue) error {
	buf := w.Provider.Buffer(w.Binding)
	if buf == nil {
		return fmt.Errorf("bind group %q: binding %d: %w", w.Provider.Label(), w.Binding, gpu.ErrNotFound)
	}
	return queue.WriteBuffer(buf, w.Offset, w.Data)
}

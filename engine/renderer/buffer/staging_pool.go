package buffer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"go.uber.org/zap"
)

// StagingStats is a snapshot of the buffers owned by a StagingPool.
type StagingStats struct {
	// Free is the number of mapped buffers ready for reuse.
	Free int
	// Pending is 1 while writes for the current frame are accumulating.
	Pending int
	// InFlight is the number of buffers copied to the device and waiting for their map to resolve.
	InFlight int
	// Created counts every staging buffer allocated over the pool's lifetime.
	Created int
}

// StagingPool is a Writer that writes records into mapped staging buffers and copies them to the
// device buffer once per frame. Staging buffers are recycled through a free list once their
// write map resolves; a buffer sized for an older generation of the device buffer is destroyed
// instead of reused. The pool keeps a CPU copy of every record and fills a staging buffer from it
// when the buffer becomes pending, so the full-range copy never carries stale records.
type StagingPool interface {
	Writer

	// Stats returns the current free, pending and in-flight buffer counts.
	//
	// Returns:
	//   - StagingStats: the snapshot
	Stats() StagingStats
}

type stagingPool struct {
	*instanceBuffer

	poolMu    *sync.Mutex
	shadow    []byte
	free      []*stagingBuffer
	pending   *stagingBuffer
	inFlight  map[*stagingBuffer]struct{}
	created   int
	destroyed bool
}

var _ StagingPool = &stagingPool{}

// NewStagingPool creates the device buffer and an empty staging pool in front of it.
// It panics if bytesPerRecord is not a multiple of 8, the alignment required for mapped ranges.
//
// Parameters:
//   - device: the GPU device, must not be nil
//   - bytesPerRecord: the record size in bytes, a multiple of 8
//   - capacity: the initial capacity in records
//   - options: functional options such as WithLabel or WithLogger
//
// Returns:
//   - StagingPool: the pool
//   - error: gpu.ErrOutOfRange for bad sizes, or an error wrapping gpu.ErrResource
func NewStagingPool(device gpu.Device, bytesPerRecord, capacity int, options ...BufferBuilderOption) (StagingPool, error) {
	if device == nil {
		panic("buffer: NewStagingPool requires a non-nil Device")
	}
	if bytesPerRecord%8 != 0 {
		panic(fmt.Sprintf("buffer: NewStagingPool requires bytesPerRecord to be a multiple of 8, got %d", bytesPerRecord))
	}

	ib, err := newInstanceBuffer(device, bytesPerRecord, capacity, newBufferConfig(options))
	if err != nil {
		return nil, err
	}
	p := &stagingPool{
		instanceBuffer: ib,
		poolMu:         &sync.Mutex{},
		shadow:         make([]byte, ib.Size()),
		inFlight:       make(map[*stagingBuffer]struct{}),
	}
	ib.OnBufferChanged(p.onBufferChanged)
	return p, nil
}

func (p *stagingPool) WriteRecord(index int, data []byte) error {
	if len(data) != p.bytesPerRecord {
		return fmt.Errorf("staging pool %q: record of %d bytes, want %d: %w", p.label, len(data), p.bytesPerRecord, gpu.ErrSizeMismatch)
	}
	capacity := p.Capacity()
	if index < 0 || index >= capacity {
		return fmt.Errorf("staging pool %q: record %d outside capacity %d: %w", p.label, index, capacity, gpu.ErrOutOfRange)
	}

	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	if p.destroyed {
		return fmt.Errorf("staging pool %q is destroyed: %w", p.label, gpu.ErrInvalidState)
	}

	offset := uint64(index * p.bytesPerRecord)
	copy(p.shadow[offset:], data)

	sb, err := p.acquire()
	if err != nil {
		return err
	}
	view, err := sb.buffer.MappedRange(offset, uint64(p.bytesPerRecord))
	if err != nil {
		return fmt.Errorf("staging pool %q: record %d: %w", p.label, index, err)
	}
	copy(view, data)
	return nil
}

// acquire returns the pending buffer, taking one from the free list or allocating one if needed.
// A buffer that becomes pending is filled with every record. Callers hold poolMu.
func (p *stagingPool) acquire() (*stagingBuffer, error) {
	if p.pending != nil {
		return p.pending, nil
	}
	var sb *stagingBuffer
	if n := len(p.free); n > 0 {
		sb = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		var err error
		if sb, err = p.create(); err != nil {
			return nil, err
		}
	}

	view, err := sb.buffer.MappedRange(0, uint64(len(p.shadow)))
	if err != nil {
		sb.destroy()
		return nil, fmt.Errorf("staging pool %q: fill: %w", p.label, err)
	}
	copy(view, p.shadow)
	p.pending = sb
	return sb, nil
}

func (p *stagingPool) create() (*stagingBuffer, error) {
	buf, err := p.device.CreateBuffer(&gpu.BufferDescriptor{
		Label:            fmt.Sprintf("Pool Buffer for %s", p.label),
		Size:             p.Size(),
		Usage:            gpu.BufferUsageMapWrite | gpu.BufferUsageCopySrc,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("staging pool %q: %w", p.label, err)
	}
	p.created++
	return &stagingBuffer{buffer: buf, state: StagingStateWritable, generation: p.Generation()}, nil
}

// PreRender flushes the pending buffer. poolMu is released before the queue submit and the map
// request, since either may deliver map callbacks that take it.
func (p *stagingPool) PreRender() error {
	p.poolMu.Lock()
	sb := p.pending
	p.pending = nil
	p.poolMu.Unlock()
	if sb == nil {
		return nil
	}

	if err := sb.buffer.Unmap(); err != nil {
		sb.destroy()
		return fmt.Errorf("staging pool %q: unmap: %w", p.label, err)
	}
	if err := sb.transition(StagingStateCopyPending); err != nil {
		sb.destroy()
		return err
	}
	if err := p.submitCopy(sb); err != nil {
		sb.destroy()
		return err
	}
	if err := sb.transition(StagingStateRemapping); err != nil {
		sb.destroy()
		return err
	}

	p.poolMu.Lock()
	if p.destroyed {
		p.poolMu.Unlock()
		sb.destroy()
		return nil
	}
	p.inFlight[sb] = struct{}{}
	p.poolMu.Unlock()

	err := sb.buffer.MapAsync(gpu.MapModeWrite, 0, sb.buffer.Size(), func(status gpu.MapStatus) {
		p.onRemapped(sb, status)
	})
	if err != nil {
		p.poolMu.Lock()
		delete(p.inFlight, sb)
		sb.destroy()
		p.poolMu.Unlock()
		return fmt.Errorf("staging pool %q: remap: %w", p.label, err)
	}
	return nil
}

func (p *stagingPool) submitCopy(sb *stagingBuffer) error {
	encoder, err := p.device.CreateCommandEncoder(fmt.Sprintf("Staging Copy for %s", p.label))
	if err != nil {
		return fmt.Errorf("staging pool %q: %w", p.label, err)
	}
	defer encoder.Release()

	if err := encoder.CopyBufferToBuffer(sb.buffer, 0, p.Buffer(), 0, min(sb.buffer.Size(), p.Size())); err != nil {
		return fmt.Errorf("staging pool %q: copy: %w", p.label, err)
	}
	cb, err := encoder.Finish()
	if err != nil {
		return fmt.Errorf("staging pool %q: %w", p.label, err)
	}
	defer cb.Release()
	if err := p.device.Queue().Submit(cb); err != nil {
		return fmt.Errorf("staging pool %q: submit: %w", p.label, err)
	}
	return nil
}

// onRemapped is the map callback of an in-flight buffer. The buffer returns to the free list only
// if the map succeeded and the device buffer has not been reallocated since it was sized.
func (p *stagingPool) onRemapped(sb *stagingBuffer, status gpu.MapStatus) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	delete(p.inFlight, sb)
	if sb.state != StagingStateRemapping {
		return
	}
	if p.destroyed || status != gpu.MapStatusSuccess || sb.generation != p.Generation() {
		p.log.Debug("staging buffer discarded",
			zap.String("buffer", sb.buffer.Label()),
			zap.Stringer("status", status),
			zap.Uint64("generation", sb.generation),
		)
		sb.destroy()
		return
	}
	if err := sb.transition(StagingStateWritable); err != nil {
		sb.destroy()
		return
	}
	p.free = append(p.free, sb)
}

// onBufferChanged drops every buffer sized for the previous device buffer and grows the record
// copy. Buffers still in flight are dropped by onRemapped when their map resolves.
func (p *stagingPool) onBufferChanged(buf gpu.Buffer) {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()

	if size := int(buf.Size()); size > len(p.shadow) {
		grown := make([]byte, size)
		copy(grown, p.shadow)
		p.shadow = grown
	}

	for _, sb := range p.free {
		sb.destroy()
	}
	p.free = nil
	if p.pending != nil {
		p.pending.destroy()
		p.pending = nil
	}
}

func (p *stagingPool) Stats() StagingStats {
	p.poolMu.Lock()
	defer p.poolMu.Unlock()
	s := StagingStats{Free: len(p.free), InFlight: len(p.inFlight), Created: p.created}
	if p.pending != nil {
		s.Pending = 1
	}
	return s
}

func (p *stagingPool) Destroy() {
	p.poolMu.Lock()
	p.destroyed = true
	for _, sb := range p.free {
		sb.destroy()
	}
	p.free = nil
	if p.pending != nil {
		p.pending.destroy()
		p.pending = nil
	}
	p.poolMu.Unlock()

	p.instanceBuffer.Destroy()
}

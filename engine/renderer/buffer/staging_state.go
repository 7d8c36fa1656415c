package buffer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
)

// StagingState is the lifecycle state of one pooled staging buffer.
//
//	Writable -> CopyPending -> Remapping -> Writable
//	    any live state -> Destroyed
type StagingState int

const (
	// StagingStateWritable buffers are mapped for writing and sit in the free list or are the pending buffer.
	StagingStateWritable StagingState = iota
	// StagingStateCopyPending buffers are unmapped with a copy into the device buffer submitted.
	StagingStateCopyPending
	// StagingStateRemapping buffers wait for their write map to resolve.
	StagingStateRemapping
	// StagingStateDestroyed buffers are released and never reused.
	StagingStateDestroyed
)

func (s StagingState) String() string {
	switch s {
	case StagingStateWritable:
		return "writable"
	case StagingStateCopyPending:
		return "copy-pending"
	case StagingStateRemapping:
		return "remapping"
	case StagingStateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("StagingState(%d)", int(s))
	}
}

// stagingBuffer is one MapWrite|CopySrc buffer owned by a pool.
type stagingBuffer struct {
	buffer gpu.Buffer
	state  StagingState
	// generation is the device buffer generation the buffer was sized for.
	generation uint64
}

func (s *stagingBuffer) transition(to StagingState) error {
	ok := false
	switch s.state {
	case StagingStateWritable:
		ok = to == StagingStateCopyPending || to == StagingStateDestroyed
	case StagingStateCopyPending:
		ok = to == StagingStateRemapping || to == StagingStateDestroyed
	case StagingStateRemapping:
		ok = to == StagingStateWritable || to == StagingStateDestroyed
	}
	if !ok {
		return fmt.Errorf("staging buffer %q: %s -> %s: %w", s.buffer.Label(), s.state, to, gpu.ErrInvalidState)
	}
	s.state = to
	return nil
}

// destroy moves the buffer to Destroyed and releases it. Destroying twice is a no-op.
func (s *stagingBuffer) destroy() {
	if s.state == StagingStateDestroyed {
		return
	}
	s.state = StagingStateDestroyed
	s.buffer.Destroy()
}

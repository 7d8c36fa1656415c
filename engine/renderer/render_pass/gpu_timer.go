package render_pass

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"go.uber.org/zap"
)

// timestampBytes is two resolved 64-bit timestamps: pass begin and pass end.
const timestampBytes = 16

// gpuTimer measures the GPU duration of one render pass with a pair of timestamp queries.
// The resolve buffer receives the queries every frame; the result buffer is copied into only
// while it is unmapped, so a slow readback skips frames instead of stalling.
type gpuTimer struct {
	querySet gpu.QuerySet
	resolve  gpu.Buffer
	result   gpu.Buffer

	// copied is set when this frame's encoder copied into the result buffer.
	copied bool
}

func newGPUTimer(device gpu.Device, label string) (*gpuTimer, error) {
	if !device.HasFeature(gpu.FeatureTimestampQuery) {
		return nil, fmt.Errorf("render pass %q: timestamp queries: %w", label, gpu.ErrUnsupported)
	}
	qs, err := device.CreateQuerySet(label+" timestamps", 2)
	if err != nil {
		return nil, fmt.Errorf("render pass %q: %w", label, err)
	}
	resolve, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label: label + " timestamp resolve",
		Size:  timestampBytes,
		Usage: gpu.BufferUsageQueryResolve | gpu.BufferUsageCopySrc,
	})
	if err != nil {
		qs.Release()
		return nil, fmt.Errorf("render pass %q: %w", label, err)
	}
	result, err := device.CreateBuffer(&gpu.BufferDescriptor{
		Label: label + " timestamp result",
		Size:  timestampBytes,
		Usage: gpu.BufferUsageCopyDst | gpu.BufferUsageMapRead,
	})
	if err != nil {
		resolve.Destroy()
		qs.Release()
		return nil, fmt.Errorf("render pass %q: %w", label, err)
	}
	return &gpuTimer{querySet: qs, resolve: resolve, result: result}, nil
}

func (t *gpuTimer) writes() *gpu.TimestampWrites {
	return &gpu.TimestampWrites{QuerySet: t.querySet, BeginIndex: 0, EndIndex: 1}
}

// encodeResolve records the query resolve and, when the result buffer is free, the copy into it.
func (t *gpuTimer) encodeResolve(encoder gpu.CommandEncoder) error {
	t.copied = false
	if err := encoder.ResolveQuerySet(t.querySet, 0, 2, t.resolve, 0); err != nil {
		return err
	}
	if t.result.MapState() != gpu.MapStateUnmapped {
		return nil
	}
	if err := encoder.CopyBufferToBuffer(t.resolve, 0, t.result, 0, timestampBytes); err != nil {
		return err
	}
	t.copied = true
	return nil
}

// readback maps the result buffer after submission. The callback runs from a later Device.Poll.
func (t *gpuTimer) readback(log *zap.Logger, done func(time.Duration)) error {
	if !t.copied {
		return nil
	}
	t.copied = false
	result := t.result
	return result.MapAsync(gpu.MapModeRead, 0, timestampBytes, func(status gpu.MapStatus) {
		if status != gpu.MapStatusSuccess {
			log.Debug("timestamp readback skipped", zap.Stringer("status", status))
			return
		}
		data, err := result.MappedRange(0, timestampBytes)
		if err != nil {
			log.Debug("timestamp readback failed", zap.Error(err))
			return
		}
		t0 := binary.LittleEndian.Uint64(data[0:8])
		t1 := binary.LittleEndian.Uint64(data[8:16])
		_ = result.Unmap()
		if t1 >= t0 {
			done(time.Duration(t1 - t0))
		}
	})
}

func (t *gpuTimer) release() {
	t.result.Destroy()
	t.resolve.Destroy()
	t.querySet.Release()
}

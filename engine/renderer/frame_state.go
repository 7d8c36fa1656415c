package renderer

import "fmt"

// FrameState is the position of the Renderer in its per-frame cycle.
type FrameState int

const (
	// FrameStateIdle is between frames. Update is allowed.
	FrameStateIdle FrameState = iota

	// FrameStateUpdating is set by Update and held until Render starts.
	FrameStateUpdating

	// FrameStateEncoding is set while render passes are being encoded.
	FrameStateEncoding

	// FrameStateSubmitted is set once the frame's command buffer is submitted.
	FrameStateSubmitted

	// FrameStateResolving is set while passes request their timestamp readbacks.
	FrameStateResolving
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "idle"
	case FrameStateUpdating:
		return "updating"
	case FrameStateEncoding:
		return "encoding"
	case FrameStateSubmitted:
		return "submitted"
	case FrameStateResolving:
		return "resolving"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

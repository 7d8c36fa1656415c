package gpu

import "errors"

// Configuration errors are programmer mistakes reported at the call site.
var (
	ErrIndexFormatMismatch = errors.New("incompatible index formats")
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate name")
	ErrSizeMismatch        = errors.New("size mismatch")
	ErrOutOfRange          = errors.New("out of range")
	ErrFrameState          = errors.New("invalid frame state")
	ErrUnsupported         = errors.New("unsupported operation")
	ErrInvalidState        = errors.New("invalid resource state")
)

// Resource errors are fatal for the session.
var (
	ErrResource   = errors.New("gpu resource error")
	ErrDeviceLost = errors.New("gpu device lost")
)

package buffer

import (
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"go.uber.org/zap"
)

// bufferConfig collects the options shared by every buffer type in this package.
type bufferConfig struct {
	label  string
	usage  gpu.BufferUsage
	logger *zap.Logger
}

// BufferBuilderOption is a functional option used to configure a buffer during construction.
type BufferBuilderOption func(*bufferConfig)

func newBufferConfig(options []BufferBuilderOption) *bufferConfig {
	cfg := &bufferConfig{
		label: "(unlabeled)",
		usage: DefaultInstanceUsage,
	}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

// WithLabel sets the debug label of the device buffer. Staging buffers derive their labels from it.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - BufferBuilderOption: a function that sets the label
func WithLabel(label string) BufferBuilderOption {
	return func(c *bufferConfig) {
		c.label = label
	}
}

// WithUsage replaces the usage flags of the device buffer. CopyDst is always added.
//
// Parameters:
//   - usage: the buffer usage flags
//
// Returns:
//   - BufferBuilderOption: a function that sets the usage
func WithUsage(usage gpu.BufferUsage) BufferBuilderOption {
	return func(c *bufferConfig) {
		c.usage = usage | gpu.BufferUsageCopyDst
	}
}

// WithLogger sets the logger used for lifecycle and warning messages.
//
// Parameters:
//   - l: the zap logger, nil selects the process logger
//
// Returns:
//   - BufferBuilderOption: a function that sets the logger
func WithLogger(l *zap.Logger) BufferBuilderOption {
	return func(c *bufferConfig) {
		c.logger = l
	}
}

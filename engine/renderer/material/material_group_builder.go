package material

import "go.uber.org/zap"

// MaterialGroupBuilderOption is a function that configures a MaterialGroup during construction.
type MaterialGroupBuilderOption func(*materialGroup)

// WithInitialCapacity sets the number of material records allocated up front. Defaults to 8.
//
// Parameters:
//   - n: the capacity, at least 1
//
// Returns:
//   - MaterialGroupBuilderOption: a function that applies the capacity to a material group
func WithInitialCapacity(n int) MaterialGroupBuilderOption {
	return func(g *materialGroup) {
		if n > 0 {
			g.capacity = n
		}
	}
}

// WithGroupLabel sets the label of the material storage buffer.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - MaterialGroupBuilderOption: a function that applies the label to a material group
func WithGroupLabel(label string) MaterialGroupBuilderOption {
	return func(g *materialGroup) {
		g.label = label
	}
}

// WithGroupLogger sets the logger used for unsupported operations.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - MaterialGroupBuilderOption: a function that applies the logger to a material group
func WithGroupLogger(l *zap.Logger) MaterialGroupBuilderOption {
	return func(g *materialGroup) {
		g.log = l
	}
}

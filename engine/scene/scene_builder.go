package scene

import (
	"github.com/Carmen-Shannon/oxy-sandbox/engine/instance_manager"
	"go.uber.org/zap"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithKind binds a Kind at construction, as BindKind does.
//
// Parameters:
//   - kind: the object type
//   - binding: the mesh and bind group used for the Kind
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithKind(kind instance_manager.Kind, binding KindBinding) SceneBuilderOption {
	return func(s *scene) {
		s.bindings[kind] = binding
	}
}

// WithPhysicsWorkers sets the number of worker goroutines used for the physics step.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of physics workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPhysicsWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.physicsWorkers = n
	}
}

// WithLogger sets the logger of the scene and its instance managers.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLogger(l *zap.Logger) SceneBuilderOption {
	return func(s *scene) {
		s.log = l
	}
}

package render_pass

import "github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"

// LayerBuilderOption is a functional option for configuring a Layer via NewLayer.
// Options that can fail return the error, which NewLayer passes on.
type LayerBuilderOption func(*layer) error

// WithLayerBindGroup adds a bind group set after the layer's pipeline.
//
// Parameters:
//   - group: the bind group index
//   - provider: the bind group provider
//
// Returns:
//   - LayerBuilderOption: a function that adds the bind group to a layer
func WithLayerBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) LayerBuilderOption {
	return func(l *layer) error {
		return l.bindGroups.add(group, provider)
	}
}

// WithLayerMeshGroups adds mesh groups, looked up by name in the layer's source.
//
// Parameters:
//   - names: the mesh group names, in draw order
//
// Returns:
//   - LayerBuilderOption: a function that adds the mesh groups to a layer
func WithLayerMeshGroups(names ...string) LayerBuilderOption {
	return func(l *layer) error {
		for _, name := range names {
			if err := l.addMeshGroup(name); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithLayerUpdate installs the layer's per-frame update hook.
//
// Parameters:
//   - fn: the hook
//
// Returns:
//   - LayerBuilderOption: a function that applies the hook to a layer
func WithLayerUpdate(fn func(l Layer, deltaTime float32) error) LayerBuilderOption {
	return func(l *layer) error {
		l.update = fn
		return nil
	}
}

package render_item

import "github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"

// RenderItemBuilderOption is a functional option for configuring a RenderItem via NewRenderItem.
type RenderItemBuilderOption func(*renderItem)

// WithInstanceCount sets the number of instances drawn.
//
// Parameters:
//   - n: the instance count
//
// Returns:
//   - RenderItemBuilderOption: a function that applies the instance count to a render item
func WithInstanceCount(n uint32) RenderItemBuilderOption {
	return func(r *renderItem) {
		r.instanceCount = n
	}
}

// WithStartInstance sets the first instance index passed to the draw.
//
// Parameters:
//   - n: the first instance
//
// Returns:
//   - RenderItemBuilderOption: a function that applies the start instance to a render item
func WithStartInstance(n uint32) RenderItemBuilderOption {
	return func(r *renderItem) {
		r.startInstance = n
	}
}

// WithActive sets whether the item is drawn.
//
// Parameters:
//   - active: whether the item is drawn
//
// Returns:
//   - RenderItemBuilderOption: a function that applies the active flag to a render item
func WithActive(active bool) RenderItemBuilderOption {
	return func(r *renderItem) {
		r.active = active
	}
}

// WithBindGroup binds a provider at a group index before the draw.
//
// Parameters:
//   - group: the bind group index
//   - provider: the bind group provider
//
// Returns:
//   - RenderItemBuilderOption: a function that adds the bind group to a render item
func WithBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) RenderItemBuilderOption {
	return func(r *renderItem) {
		r.setBindGroup(group, provider)
	}
}

// WithUpdate installs the per-frame update hook.
//
// Parameters:
//   - fn: the hook
//
// Returns:
//   - RenderItemBuilderOption: a function that applies the hook to a render item
func WithUpdate(fn func(item RenderItem, deltaTime float32) error) RenderItemBuilderOption {
	return func(r *renderItem) {
		r.update = fn
	}
}

// WithPreRender installs the hook run immediately before the draw is encoded.
//
// Parameters:
//   - fn: the hook
//
// Returns:
//   - RenderItemBuilderOption: a function that applies the hook to a render item
func WithPreRender(fn func() error) RenderItemBuilderOption {
	return func(r *renderItem) {
		r.preRender = fn
	}
}

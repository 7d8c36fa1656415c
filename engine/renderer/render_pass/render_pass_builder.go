package render_pass

import (
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
	"go.uber.org/zap"
)

// RenderPassBuilderOption is a functional option for configuring a RenderPass via NewRenderPass.
type RenderPassBuilderOption func(*renderPass) error

// WithPassBindGroup adds a bind group set once at the start of the pass.
//
// Parameters:
//   - group: the bind group index
//   - provider: the bind group provider
//
// Returns:
//   - RenderPassBuilderOption: a function that adds the bind group to a render pass
func WithPassBindGroup(group uint32, provider bind_group_provider.BindGroupProvider) RenderPassBuilderOption {
	return func(p *renderPass) error {
		return p.bindGroups.add(group, provider)
	}
}

// WithLayers appends layers in render order.
//
// Parameters:
//   - layers: the layers
//
// Returns:
//   - RenderPassBuilderOption: a function that adds the layers to a render pass
func WithLayers(layers ...Layer) RenderPassBuilderOption {
	return func(p *renderPass) error {
		for _, l := range layers {
			if err := p.addLayer(l); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithLogger sets the logger used for timing messages.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - RenderPassBuilderOption: a function that applies the logger to a render pass
func WithLogger(l *zap.Logger) RenderPassBuilderOption {
	return func(p *renderPass) error {
		p.log = l
		return nil
	}
}

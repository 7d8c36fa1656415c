package render_pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-sandbox/common"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/gpu"
	"github.com/Carmen-Shannon/oxy-sandbox/engine/renderer/bind_group_provider"
)

// boundProvider is a bind group provider and the group index it is set at.
type boundProvider struct {
	group    uint32
	provider bind_group_provider.BindGroupProvider
}

// bindGroupSet is the ordered, label-keyed collection of bind groups shared by passes and layers.
type bindGroupSet struct {
	owner string
	items *common.Lookup[boundProvider]
}

func newBindGroupSet(owner string) *bindGroupSet {
	return &bindGroupSet{owner: owner, items: common.NewLookup[boundProvider]()}
}

func (s *bindGroupSet) add(group uint32, provider bind_group_provider.BindGroupProvider) error {
	if provider == nil {
		return fmt.Errorf("%s: nil bind group provider at group %d: %w", s.owner, group, gpu.ErrInvalidState)
	}
	if !s.items.Add(provider.Label(), boundProvider{group: group, provider: provider}) {
		return fmt.Errorf("%s: bind group %q: %w", s.owner, provider.Label(), gpu.ErrDuplicate)
	}
	return nil
}

func (s *bindGroupSet) get(name string) bind_group_provider.BindGroupProvider {
	bp, ok := s.items.Get(name)
	if !ok {
		return nil
	}
	return bp.provider
}

func (s *bindGroupSet) at(i int) bind_group_provider.BindGroupProvider {
	bp, ok := s.items.At(i)
	if !ok {
		return nil
	}
	return bp.provider
}

func (s *bindGroupSet) remove(name string) error {
	if _, ok := s.items.Remove(name); !ok {
		return fmt.Errorf("%s: bind group %q: %w", s.owner, name, gpu.ErrNotFound)
	}
	return nil
}

// apply regenerates stale providers and sets every bind group on the pass.
func (s *bindGroupSet) apply(pass gpu.RenderPassEncoder) error {
	for _, bp := range s.items.Items() {
		if _, err := bp.provider.RegenerateIfStale(); err != nil {
			return fmt.Errorf("%s: %w", s.owner, err)
		}
		pass.SetBindGroup(bp.group, bp.provider.BindGroup())
	}
	return nil
}

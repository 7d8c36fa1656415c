package instance_manager

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

type registry struct {
	mu       *sync.Mutex
	managers map[Kind]InstanceManager
}

// Registry holds at most one InstanceManager per Kind. It is owned by a Scene and passed to the
// objects that need a manager for their Kind.
type Registry interface {
	// Get returns the manager of a Kind.
	//
	// Parameters:
	//   - kind: the object type
	//
	// Returns:
	//   - InstanceManager: the manager, or nil
	Get(kind Kind) InstanceManager

	// GetOrCreate returns the manager of a Kind, creating it with factory if there is none.
	//
	// Parameters:
	//   - kind: the object type
	//   - factory: builds the manager on first use
	//
	// Returns:
	//   - InstanceManager: the manager
	//   - error: the factory's error
	GetOrCreate(kind Kind, factory func() (InstanceManager, error)) (InstanceManager, error)

	// Remove forgets the manager of a Kind without destroying it. Used after the manager reports
	// teardown.
	//
	// Parameters:
	//   - kind: the object type
	//
	// Returns:
	//   - bool: true if a manager was registered
	Remove(kind Kind) bool

	// Kinds returns the registered kinds in ascending order.
	//
	// Returns:
	//   - []Kind: the kinds
	Kinds() []Kind

	// Destroy destroys every manager and empties the registry.
	//
	// Returns:
	//   - error: the combined errors of every manager
	Destroy() error
}

var _ Registry = &registry{}

// NewRegistry creates an empty Registry.
//
// Returns:
//   - Registry: the registry
func NewRegistry() Registry {
	return &registry{
		mu:       &sync.Mutex{},
		managers: make(map[Kind]InstanceManager),
	}
}

func (r *registry) Get(kind Kind) InstanceManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managers[kind]
}

func (r *registry) GetOrCreate(kind Kind, factory func() (InstanceManager, error)) (InstanceManager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[kind]; ok {
		return m, nil
	}
	m, err := factory()
	if err != nil {
		return nil, fmt.Errorf("registry: create %s manager: %w", kind, err)
	}
	r.managers[kind] = m
	return m, nil
}

func (r *registry) Remove(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.managers[kind]; !ok {
		return false
	}
	delete(r.managers, kind)
	return true
}

func (r *registry) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, 0, len(r.managers))
	for k := range r.managers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (r *registry) Destroy() error {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[Kind]InstanceManager)
	r.mu.Unlock()

	var err error
	for _, m := range managers {
		err = multierr.Append(err, m.Destroy())
	}
	return err
}

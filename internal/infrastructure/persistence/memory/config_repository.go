package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

// ConfigurationRepository is the in-memory multi-collection typed store.
type ConfigurationRepository struct {
	aspects   *collection[domain.Aspect]
	defs      *collection[domain.WorkflowDefinition]
	instances *collection[domain.WorkflowInstance]
}

// NewConfigurationRepository creates the configuration store with the
// built-in aspects pre-merged into the aspects collection.
func NewConfigurationRepository() *ConfigurationRepository {
	return &ConfigurationRepository{
		aspects:   newCollection(domain.BuiltinAspects()),
		defs:      newCollection[domain.WorkflowDefinition](nil),
		instances: newCollection[domain.WorkflowInstance](nil),
	}
}

func (r *ConfigurationRepository) Aspects() repository.Collection[domain.Aspect] {
	return r.aspects
}

func (r *ConfigurationRepository) WorkflowDefinitions() repository.Collection[domain.WorkflowDefinition] {
	return r.defs
}

func (r *ConfigurationRepository) WorkflowInstances() repository.Collection[domain.WorkflowInstance] {
	return r.instances
}

// collection is one typed collection: stored items per tenant plus the
// built-ins merged into reads. Reserved uuids reject Save and Delete.
type collection[T repository.Identifiable] struct {
	mu       sync.RWMutex
	builtins map[string]T
	items    map[string]map[string]T
}

func newCollection[T repository.Identifiable](builtins []T) *collection[T] {
	byID := make(map[string]T, len(builtins))
	for _, b := range builtins {
		byID[b.ID()] = b
	}
	return &collection[T]{
		builtins: byID,
		items:    make(map[string]map[string]T),
	}
}

func (c *collection[T]) Save(ctx context.Context, tenant string, item T) error {
	if domain.IsBuiltinUUID(item.ID()) {
		return apperrors.NewBadRequest(fmt.Sprintf("uuid %q is reserved", item.ID()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items[tenant] == nil {
		c.items[tenant] = make(map[string]T)
	}
	c.items[tenant][item.ID()] = item
	return nil
}

func (c *collection[T]) Get(ctx context.Context, tenant, uuid string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if item, ok := c.builtins[uuid]; ok {
		return item, nil
	}
	if item, ok := c.items[tenant][uuid]; ok {
		return item, nil
	}
	var zero T
	return zero, apperrors.NewNotFound(fmt.Sprintf("item %q not found", uuid))
}

func (c *collection[T]) List(ctx context.Context, tenant string) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.builtins)+len(c.items[tenant]))
	for _, item := range c.builtins {
		out = append(out, item)
	}
	for _, item := range c.items[tenant] {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (c *collection[T]) Delete(ctx context.Context, tenant, uuid string) error {
	if domain.IsBuiltinUUID(uuid) {
		return apperrors.NewBadRequest(fmt.Sprintf("uuid %q is reserved", uuid))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[tenant][uuid]; !ok {
		return apperrors.NewNotFound(fmt.Sprintf("item %q not found", uuid))
	}
	delete(c.items[tenant], uuid)
	return nil
}

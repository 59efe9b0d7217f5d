package softdelete

import "fmt"

// Registry maps entity types to their controllers.
// Register everything during setup; the registry is not safe for concurrent writes.
type Registry struct {
	controllers []*Controller
	byType      map[string]*Controller
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		controllers: []*Controller{},
		byType:      make(map[string]*Controller),
	}
}

// Register adds a controller, replacing any earlier one for the same type.
func (r *Registry) Register(c *Controller) {
	if prev, ok := r.byType[c.EntityType()]; ok {
		for i, existing := range r.controllers {
			if existing == prev {
				r.controllers[i] = c
				break
			}
		}
	} else {
		r.controllers = append(r.controllers, c)
	}
	r.byType[c.EntityType()] = c
}

// Lookup returns the controller for entityType.
func (r *Registry) Lookup(entityType string) (*Controller, error) {
	c, ok := r.byType[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, entityType)
	}
	return c, nil
}

// Has returns true if a controller is registered for entityType.
func (r *Registry) Has(entityType string) bool {
	_, ok := r.byType[entityType]
	return ok
}

// Controllers returns all registered controllers in registration order.
func (r *Registry) Controllers() []*Controller {
	return r.controllers
}

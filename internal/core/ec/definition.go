package ec

import (
	"fmt"
)

// Definition is an archetype: a named, ordered list of component types.
// Declaration order is attach order and update order.
type Definition struct {
	Name       string
	Components []ComponentKey
}

// DefinitionRegistry maps archetype names to definitions.
type DefinitionRegistry struct {
	defs   map[string]*Definition
	order  []string
	sealed bool
}

func NewDefinitionRegistry() *DefinitionRegistry {
	return &DefinitionRegistry{defs: make(map[string]*Definition)}
}

// Register records def. Component types are resolved lazily, when the
// archetype is instantiated or the manager is validated.
func (r *DefinitionRegistry) Register(def Definition) error {
	if r.sealed {
		return fmt.Errorf("%w: definition %q", ErrRegistrySealed, def.Name)
	}
	if def.Name == "" {
		return fmt.Errorf("%w: empty archetype name", ErrInvalidDefinition)
	}
	if _, ok := r.defs[def.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateDefinition, def.Name)
	}
	seen := make(map[ComponentKey]struct{}, len(def.Components))
	for _, key := range def.Components {
		if key.IsZero() {
			return fmt.Errorf("%w: %q lists an empty component key", ErrInvalidDefinition, def.Name)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q lists %s twice", ErrInvalidDefinition, def.Name, key)
		}
		seen[key] = struct{}{}
	}

	stored := &Definition{
		Name:       def.Name,
		Components: append([]ComponentKey(nil), def.Components...),
	}
	r.defs[def.Name] = stored
	r.order = append(r.order, def.Name)
	return nil
}

// Lookup returns a copy of the named definition.
func (r *DefinitionRegistry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	if !ok {
		return Definition{}, false
	}
	return Definition{Name: def.Name, Components: append([]ComponentKey(nil), def.Components...)}, true
}

// Names lists archetypes in registration order.
func (r *DefinitionRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *DefinitionRegistry) Len() int { return len(r.defs) }

func (r *DefinitionRegistry) Seal() { r.sealed = true }

// Instantiate builds an entity of the named archetype inside m.
func (r *DefinitionRegistry) Instantiate(archetype string, m *EntityManager, parent *Entity, args Args) (*Entity, error) {
	def, ok := r.defs[archetype]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchetype, archetype)
	}
	return m.build(def, parent, args)
}

package ec

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

type componentEntry struct {
	name    string
	typ     reflect.Type
	factory func() (Component, error)
}

// construct runs the factory, converting a panic or a nil result into an error.
func (c *componentEntry) construct() (comp Component, err error) {
	defer func() {
		if r := recover(); r != nil {
			comp, err = nil, panicError{value: r}
		}
	}()
	comp, err = c.factory()
	if err == nil && isNilComponent(comp) {
		err = errors.New("factory returned nil")
	}
	return comp, err
}

func isNilComponent(c Component) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// ComponentRegistry maps component types to construction recipes. It is
// written during startup and read-only afterwards; it holds no lock.
type ComponentRegistry struct {
	byType map[reflect.Type]*componentEntry
	byName map[string]*componentEntry
	sealed bool
}

func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		byType: make(map[reflect.Type]*componentEntry),
		byName: make(map[string]*componentEntry),
	}
}

// Register records factory as the recipe for component type T. An empty name
// defaults to the Go type name. Registering a type or a name twice fails with
// ErrDuplicateComponent.
func Register[T Component](r *ComponentRegistry, name string, factory func() T) error {
	if factory == nil {
		return fmt.Errorf("register %s: nil factory", reflect.TypeFor[T]())
	}
	return RegisterFunc(r, name, func() (T, error) { return factory(), nil })
}

// RegisterFunc is Register for factories that can fail. A factory error
// surfaces from CreateEntity as a *ConstructionError.
func RegisterFunc[T Component](r *ComponentRegistry, name string, factory func() (T, error)) error {
	typ := reflect.TypeFor[T]()
	if factory == nil {
		return fmt.Errorf("register %s: nil factory", typ)
	}
	if name == "" {
		name = typ.String()
	}
	return r.add(&componentEntry{
		name: name,
		typ:  typ,
		factory: func() (Component, error) {
			c, err := factory()
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	})
}

func (r *ComponentRegistry) add(entry *componentEntry) error {
	if r.sealed {
		return fmt.Errorf("%w: component %s", ErrRegistrySealed, entry.name)
	}
	if prev, ok := r.byType[entry.typ]; ok {
		return fmt.Errorf("%w: type %s (as %q)", ErrDuplicateComponent, entry.typ, prev.name)
	}
	if prev, ok := r.byName[entry.name]; ok {
		return fmt.Errorf("%w: name %q (type %s)", ErrDuplicateComponent, entry.name, prev.typ)
	}
	r.byType[entry.typ] = entry
	r.byName[entry.name] = entry
	return nil
}

func (r *ComponentRegistry) lookup(key ComponentKey) (*componentEntry, bool) {
	if key.typ != nil {
		entry, ok := r.byType[key.typ]
		return entry, ok
	}
	entry, ok := r.byName[key.name]
	return entry, ok
}

// Has reports whether key resolves to a registered component.
func (r *ComponentRegistry) Has(key ComponentKey) bool {
	_, ok := r.lookup(key)
	return ok
}

// Names lists registered component names in sorted order.
func (r *ComponentRegistry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ComponentRegistry) Len() int { return len(r.byType) }

// Seal rejects any further registration.
func (r *ComponentRegistry) Seal() { r.sealed = true }

func (r *ComponentRegistry) Sealed() bool { return r.sealed }

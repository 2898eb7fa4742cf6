package ec

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// EntityID is allocated by the owning manager and never reused.
type EntityID uint64

type slot struct {
	name      string
	typ       reflect.Type
	component Component
}

// Entity is an identity owning a fixed set of components. Its component set
// does not change after construction.
type Entity struct {
	id        EntityID
	guid      uuid.UUID
	archetype string
	manager   *EntityManager

	parent   *Entity
	children []*Entity

	components []slot
	index      map[reflect.Type]Component
	alive      bool
}

func (e *Entity) ID() EntityID            { return e.id }
func (e *Entity) GUID() uuid.UUID         { return e.guid }
func (e *Entity) Archetype() string       { return e.archetype }
func (e *Entity) Manager() *EntityManager { return e.manager }
func (e *Entity) Parent() *Entity         { return e.parent }

// Alive reports whether the entity is still in its manager's live set.
func (e *Entity) Alive() bool { return e.alive }

// Children returns a snapshot of the entities parented to e.
func (e *Entity) Children() []*Entity {
	return append([]*Entity(nil), e.children...)
}

// Components returns the components in declaration order.
func (e *Entity) Components() []Component {
	out := make([]Component, len(e.components))
	for i, s := range e.components {
		out[i] = s.component
	}
	return out
}

// ComponentNames returns registered component names in declaration order.
func (e *Entity) ComponentNames() []string {
	out := make([]string, len(e.components))
	for i, s := range e.components {
		out[i] = s.name
	}
	return out
}

// Component looks up a component by key. Absence is not an error.
func (e *Entity) Component(key ComponentKey) (Component, bool) {
	for _, s := range e.components {
		if (key.typ != nil && s.typ == key.typ) || (key.typ == nil && s.name == key.name) {
			return s.component, true
		}
	}
	return nil, false
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s#%d", e.archetype, e.id)
}

func (e *Entity) removeChild(child *Entity) {
	for i, c := range e.children {
		if c == child {
			e.children = append(e.children[:i:i], e.children[i+1:]...)
			return
		}
	}
}

// GetComponent returns the component of type T carried by e. When T is an
// interface type and no component was registered under it, the first
// component in declaration order implementing T is returned. A nil entity or
// a missing component yields false.
func GetComponent[T any](e *Entity) (T, bool) {
	var zero T
	if e == nil {
		return zero, false
	}
	typ := reflect.TypeFor[T]()
	if c, ok := e.index[typ]; ok {
		if v, ok := c.(T); ok {
			return v, true
		}
	}
	if typ.Kind() == reflect.Interface {
		for _, s := range e.components {
			if v, ok := s.component.(T); ok {
				return v, true
			}
		}
	}
	return zero, false
}

// HasComponent reports whether e carries a component of type T.
func HasComponent[T any](e *Entity) bool {
	_, ok := GetComponent[T](e)
	return ok
}

// MustComponent is GetComponent for components an archetype is known to carry.
// It panics when the component is absent.
func MustComponent[T any](e *Entity) T {
	c, ok := GetComponent[T](e)
	if !ok {
		panic(fmt.Sprintf("entity %v has no %s component", e, reflect.TypeFor[T]()))
	}
	return c
}

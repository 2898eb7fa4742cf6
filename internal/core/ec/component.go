package ec

import (
	"reflect"

	"github.com/zeusync/ecengine/internal/core/observability/log"
)

// Component is a unit of behaviour attached to exactly one entity.
//
// Construction is two-phase: the registered factory allocates the component,
// then OnAttach runs once every sibling of the entity has been allocated, so
// siblings can be resolved with GetComponent regardless of declaration order.
// OnUpdate runs once per frame sweep; OnDetach runs when the entity is
// destroyed, in reverse declaration order.
type Component interface {
	OnAttach(e *Entity, args Args) error
	OnUpdate(dt float64) error
	OnDetach()
}

// Base carries the back-reference to the owning entity. Embed it to get no-op
// lifecycle hooks and the Entity accessor.
type Base struct {
	entity *Entity
}

func (b *Base) bindEntity(e *Entity) { b.entity = e }

// Entity returns the owning entity. The reference is for lookups only.
func (b *Base) Entity() *Entity { return b.entity }

func (b *Base) OnAttach(*Entity, Args) error { return nil }
func (b *Base) OnUpdate(float64) error       { return nil }
func (b *Base) OnDetach()                    {}

type entityBinder interface {
	bindEntity(e *Entity)
}

// Args carries construction arguments through to every component's OnAttach.
type Args map[string]any

// ArgLogger is the Args key under which hosts pass a log.Log to components.
const ArgLogger = "ec.logger"

// LoggerFrom returns the logger passed in args, or a no-op logger.
func LoggerFrom(args Args) log.Log {
	if l, ok := Value[log.Log](args, ArgLogger); ok && l != nil {
		return l
	}
	return log.NewNop()
}

// Value returns the argument stored under key if it has type T.
func Value[T any](a Args, key string) (T, bool) {
	var zero T
	raw, ok := a[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// ComponentKey identifies a component type either by its Go type or by the
// name it was registered under.
type ComponentKey struct {
	typ  reflect.Type
	name string
}

// TypeOf returns the key of component type T.
func TypeOf[T Component]() ComponentKey {
	return ComponentKey{typ: reflect.TypeFor[T]()}
}

// ByName returns the key of the component registered under name.
func ByName(name string) ComponentKey {
	return ComponentKey{name: name}
}

func (k ComponentKey) IsZero() bool {
	return k.typ == nil && k.name == ""
}

func (k ComponentKey) String() string {
	if k.name != "" {
		return k.name
	}
	if k.typ != nil {
		return k.typ.String()
	}
	return "<none>"
}

package ec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/zeusync/ecengine/internal/core/events/bus"
	"github.com/zeusync/ecengine/internal/core/observability/log"
)

// Lifecycle event types published on the manager's event bus. The event data
// is the *Entity (or the *EntityManager for EventManagerDestroyed).
const (
	EventEntityCreated    = "entity.created"
	EventEntityDestroyed  = "entity.destroyed"
	EventManagerDestroyed = "manager.destroyed"
)

type Option func(*EntityManager)

func WithLogger(logger log.Log) Option {
	return func(m *EntityManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithEventBus(events bus.EventBus) Option {
	return func(m *EntityManager) {
		if events != nil {
			m.events = events
		}
	}
}

// EntityManager owns the registries and every live entity, and drives the
// per-frame sweep.
//
// It is not safe for concurrent use. Creation, destruction and Update must
// all happen on the thread that drives the frame clock; hosts that receive
// work on other goroutines marshal it onto that thread.
type EntityManager struct {
	label       string
	components  *ComponentRegistry
	definitions *DefinitionRegistry

	// live entities in creation order
	entities []*Entity
	byID     map[EntityID]*Entity
	lastID   EntityID

	destroyed bool

	logger log.Log
	events bus.EventBus
}

// NewEntityManager creates a manager sized for capacity entities.
func NewEntityManager(capacity int, label string, opts ...Option) *EntityManager {
	if capacity < 0 {
		capacity = 0
	}
	m := &EntityManager{
		label:       label,
		components:  NewComponentRegistry(),
		definitions: NewDefinitionRegistry(),
		entities:    make([]*Entity, 0, capacity),
		byID:        make(map[EntityID]*Entity, capacity),
		logger:      log.NewNop(),
		events:      bus.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(log.String("manager", label))
	return m
}

func (m *EntityManager) Label() string                    { return m.label }
func (m *EntityManager) Components() *ComponentRegistry   { return m.components }
func (m *EntityManager) Definitions() *DefinitionRegistry { return m.definitions }
func (m *EntityManager) Events() bus.EventBus             { return m.events }
func (m *EntityManager) Destroyed() bool                  { return m.destroyed }

// RegisterComponent registers component type T with m's component registry.
func RegisterComponent[T Component](m *EntityManager, name string, factory func() T) error {
	return Register(m.components, name, factory)
}

// RegisterComponentFunc registers a fallible factory for component type T.
func RegisterComponentFunc[T Component](m *EntityManager, name string, factory func() (T, error)) error {
	return RegisterFunc(m.components, name, factory)
}

// DefineEntity registers an archetype with the given ordered component list.
func (m *EntityManager) DefineEntity(archetype string, components ...ComponentKey) error {
	return m.definitions.Register(Definition{Name: archetype, Components: components})
}

// Seal freezes both registries.
func (m *EntityManager) Seal() {
	m.components.Seal()
	m.definitions.Seal()
}

// Validate resolves every archetype against the component registry and
// reports every reference to an unregistered component.
func (m *EntityManager) Validate() error {
	var errs []error
	for _, name := range m.definitions.order {
		if _, err := m.resolve(m.definitions.defs[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateEntity builds an entity of the given archetype, optionally parented to
// parent, and adds it to the live set. Args are handed to every component's
// OnAttach. On any failure no entity is left live.
func (m *EntityManager) CreateEntity(archetype string, parent *Entity, args Args) (*Entity, error) {
	if m.destroyed {
		return nil, ErrManagerDestroyed
	}
	return m.definitions.Instantiate(archetype, m, parent, args)
}

func (m *EntityManager) resolve(def *Definition) ([]*componentEntry, error) {
	entries := make([]*componentEntry, 0, len(def.Components))
	seen := make(map[reflect.Type]struct{}, len(def.Components))
	for _, key := range def.Components {
		entry, ok := m.components.lookup(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s (archetype %q)", ErrUnknownComponent, key, def.Name)
		}
		if _, dup := seen[entry.typ]; dup {
			return nil, fmt.Errorf("%w: %q resolves %s twice", ErrInvalidDefinition, def.Name, entry.name)
		}
		seen[entry.typ] = struct{}{}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *EntityManager) build(def *Definition, parent *Entity, args Args) (*Entity, error) {
	if m.destroyed {
		return nil, ErrManagerDestroyed
	}
	if parent != nil && (parent.manager != m || !parent.alive) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParent, parent)
	}
	entries, err := m.resolve(def)
	if err != nil {
		return nil, err
	}

	m.lastID++
	e := &Entity{
		id:         m.lastID,
		guid:       uuid.New(),
		archetype:  def.Name,
		manager:    m,
		components: make([]slot, 0, len(entries)),
		index:      make(map[reflect.Type]Component, len(entries)),
	}

	// Allocate every shell first so OnAttach can see all siblings.
	for _, entry := range entries {
		c, err := entry.construct()
		if err != nil {
			return nil, &ConstructionError{Archetype: def.Name, Component: entry.name, Err: err}
		}
		e.components = append(e.components, slot{name: entry.name, typ: entry.typ, component: c})
		e.index[entry.typ] = c
		if dyn := reflect.TypeOf(c); dyn != entry.typ {
			if _, taken := e.index[dyn]; !taken {
				e.index[dyn] = c
			}
		}
	}

	for i, s := range e.components {
		if b, ok := s.component.(entityBinder); ok {
			b.bindEntity(e)
		}
		if err := attach(s.component, e, args); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.detach(e, e.components[j])
			}
			return nil, &ConstructionError{Archetype: def.Name, Component: s.name, Err: err}
		}
	}

	e.alive = true
	if parent != nil {
		e.parent = parent
		parent.children = append(parent.children, e)
	}
	m.entities = append(m.entities, e)
	m.byID[e.id] = e

	m.logger.Debug("entity created",
		log.Uint64("entity", uint64(e.id)),
		log.String("archetype", e.archetype),
		log.Int("components", len(e.components)),
	)
	m.publish(EventEntityCreated, e)
	return e, nil
}

func attach(c Component, e *Entity, args Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return c.OnAttach(e, args)
}

// detach runs OnDetach, logging instead of propagating a panic so teardown
// always completes.
func (m *EntityManager) detach(e *Entity, s slot) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("component detach panicked",
				log.Uint64("entity", uint64(e.id)),
				log.String("component", s.name),
				log.Any("panic", r),
			)
		}
	}()
	s.component.OnDetach()
}

// Entity returns the live entity with the given id.
func (m *EntityManager) Entity(id EntityID) (*Entity, bool) {
	e, ok := m.byID[id]
	return e, ok
}

// Entities returns a snapshot of live entities in creation order.
func (m *EntityManager) Entities() []*Entity {
	return append([]*Entity(nil), m.entities...)
}

// Len reports the number of live entities.
func (m *EntityManager) Len() int { return len(m.entities) }

// DestroyEntity detaches e's components in reverse order and removes it from
// the live set. Children are orphaned, not destroyed.
func (m *EntityManager) DestroyEntity(e *Entity) error {
	if e == nil || e.manager != m || !e.alive {
		return fmt.Errorf("%w: %v", ErrEntityNotAlive, e)
	}
	m.destroyEntity(e)
	return nil
}

func (m *EntityManager) destroyEntity(e *Entity) {
	e.alive = false
	for i := len(e.components) - 1; i >= 0; i-- {
		m.detach(e, e.components[i])
	}

	if e.parent != nil {
		e.parent.removeChild(e)
		e.parent = nil
	}
	for _, child := range e.children {
		child.parent = nil
	}
	e.children = nil

	for i, live := range m.entities {
		if live == e {
			m.entities = append(m.entities[:i:i], m.entities[i+1:]...)
			break
		}
	}
	delete(m.byID, e.id)

	m.logger.Debug("entity destroyed",
		log.Uint64("entity", uint64(e.id)),
		log.String("archetype", e.archetype),
	)
	m.publish(EventEntityDestroyed, e)
}

// Update runs one synchronous sweep: every live entity in creation order,
// every component in declaration order, each receiving dt.
//
// A component returning an error does not stop the sweep; every such error
// is wrapped in *UpdateError and the joined result is returned. A panic is
// not recovered here and aborts the rest of the sweep; the caller owns that
// boundary.
func (m *EntityManager) Update(dt float64) error {
	if m.destroyed {
		return ErrManagerDestroyed
	}
	// Nested calls take their own snapshot.
	sweep := append([]*Entity(nil), m.entities...)

	var errs []error
	for _, e := range sweep {
		for _, s := range e.components {
			// a component may destroy its own entity mid-sweep
			if !e.alive {
				break
			}
			if err := s.component.OnUpdate(dt); err != nil {
				errs = append(errs, &UpdateError{
					Entity:    e.id,
					Archetype: e.archetype,
					Component: s.name,
					Err:       err,
				})
			}
		}
	}
	return errors.Join(errs...)
}

// Destroy destroys every live entity, newest first, and marks the manager as
// destroyed. Calling it again is a no-op.
func (m *EntityManager) Destroy() {
	if m.destroyed {
		return
	}
	m.destroyed = true

	count := len(m.entities)
	live := append([]*Entity(nil), m.entities...)
	for i := len(live) - 1; i >= 0; i-- {
		if live[i].alive {
			m.destroyEntity(live[i])
		}
	}
	m.entities = nil
	clear(m.byID)

	m.logger.Info("entity manager destroyed", log.Int("entities", count))
	if err := m.events.Publish(bus.NewEvent(EventManagerDestroyed, m.label, m, nil)); err != nil {
		m.logger.Warn("lifecycle handler failed", log.String("event", EventManagerDestroyed), log.Error(err))
	}
}

func (m *EntityManager) publish(eventType string, e *Entity) {
	if err := m.events.Publish(bus.NewEvent(eventType, m.label, e, nil)); err != nil {
		m.logger.Warn("lifecycle handler failed",
			log.String("event", eventType),
			log.Uint64("entity", uint64(e.id)),
			log.Error(err),
		)
	}
}

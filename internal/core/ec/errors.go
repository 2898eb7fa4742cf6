package ec

import (
	"errors"
	"fmt"
)

var (
	// Registry errors

	ErrUnknownArchetype    = errors.New("unknown archetype")
	ErrUnknownComponent    = errors.New("unknown component")
	ErrDuplicateComponent  = errors.New("component already registered")
	ErrDuplicateDefinition = errors.New("entity definition already registered")
	ErrRegistrySealed      = errors.New("registry is sealed")
	ErrInvalidDefinition   = errors.New("invalid entity definition")

	// Lifecycle errors

	ErrConstructionFailure = errors.New("component construction failed")
	ErrUpdateFailure       = errors.New("component update failed")
	ErrManagerDestroyed    = errors.New("entity manager destroyed")
	ErrInvalidParent       = errors.New("invalid parent entity")
	ErrEntityNotAlive      = errors.New("entity is not alive")
)

// ConstructionError reports a component that failed while an entity was being
// built. The entity is never made live when this is returned.
type ConstructionError struct {
	Archetype string
	Component string
	Err       error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct %s/%s: %v", e.Archetype, e.Component, e.Err)
}

func (e *ConstructionError) Unwrap() []error {
	return []error{ErrConstructionFailure, e.Err}
}

// UpdateError reports a component whose OnUpdate returned an error during a sweep.
type UpdateError struct {
	Entity    EntityID
	Archetype string
	Component string
	Err       error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update entity %d (%s) component %s: %v", e.Entity, e.Archetype, e.Component, e.Err)
}

func (e *UpdateError) Unwrap() []error {
	return []error{ErrUpdateFailure, e.Err}
}

// panicError turns a recovered panic value into an error.
type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (p panicError) Unwrap() error {
	if err, ok := p.value.(error); ok {
		return err
	}
	return nil
}

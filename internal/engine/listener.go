package engine

import "github.com/zeusync/ecengine/internal/core/ec"

// Listener is the business layer's hook into the engine lifecycle.
type Listener interface {
	// Init runs once the root entity is live. An error aborts engine
	// construction.
	Init(manager *ec.EntityManager, root *ec.Entity) error
	// Release runs at the start of Close, before any entity is destroyed.
	Release()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	InitFunc    func(manager *ec.EntityManager, root *ec.Entity) error
	ReleaseFunc func()
}

func (l ListenerFuncs) Init(manager *ec.EntityManager, root *ec.Entity) error {
	if l.InitFunc == nil {
		return nil
	}
	return l.InitFunc(manager, root)
}

func (l ListenerFuncs) Release() {
	if l.ReleaseFunc != nil {
		l.ReleaseFunc()
	}
}

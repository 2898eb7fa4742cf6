//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/ecengine/internal/engine"
)

func InitializeRuntime(path ConfigPath, listener engine.Listener) (*Runtime, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}

package engine

import (
	"maps"

	"github.com/zeusync/ecengine/internal/components/autopatcher"
	"github.com/zeusync/ecengine/internal/components/script"
	"github.com/zeusync/ecengine/internal/components/supersocket"
	"github.com/zeusync/ecengine/internal/components/ucenter"
)

// Registered names of the built-in components.
const (
	CoAutoPatcher = "AutoPatcher"
	CoNode        = "Node"
	CoSuperSocket = "SuperSocket"
	CoUCenterSDK  = "UCenterSDK"
	CoScript      = "Script"
)

// Built-in archetypes.
const (
	EtAutoPatcher = "EtAutoPatcher"
	EtNode        = "EtNode"
	EtSuperSocket = "EtSuperSocket"
	EtUCenterSDK  = "EtUCenterSDK"
	EtScript      = "EtScript"
)

// Settings is copied into the engine at construction and never changes after.
type Settings struct {
	ProjectName string
	// RootEntityType is the archetype of the root entity. Defaults to EtNode.
	RootEntityType string
	EntityCapacity int

	EnableSuperSocket bool
	EnableUCenter     bool

	SuperSocket supersocket.Config
	UCenter     ucenter.Config
	AutoPatcher autopatcher.Config
	Script      script.Config

	// Definitions declares extra archetypes by registered component name.
	Definitions map[string][]string
}

func DefaultSettings() Settings {
	return Settings{
		ProjectName:    "ecengine",
		RootEntityType: EtNode,
		EntityCapacity: 64,
		SuperSocket:    supersocket.DefaultConfig(),
		UCenter:        ucenter.DefaultConfig(),
		AutoPatcher:    autopatcher.DefaultConfig(),
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.ProjectName == "" {
		s.ProjectName = d.ProjectName
	}
	if s.RootEntityType == "" {
		s.RootEntityType = d.RootEntityType
	}
	if s.EntityCapacity <= 0 {
		s.EntityCapacity = d.EntityCapacity
	}
	s.Definitions = maps.Clone(s.Definitions)
	return s
}

// nodeComponents lists the components of EtNode in declared order.
func (s Settings) nodeComponents() []string {
	names := []string{CoAutoPatcher, CoNode}
	if s.EnableSuperSocket {
		names = append(names, CoSuperSocket)
	}
	if s.EnableUCenter {
		names = append(names, CoUCenterSDK)
	}
	if s.Script.Enabled() {
		names = append(names, CoScript)
	}
	return names
}

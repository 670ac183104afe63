package app

import (
	"github.com/vk/blockflow/blocks/std"
	"github.com/vk/blockflow/internal/registry"
)

// coreModules is the definitive list of all block libraries that are
// compiled into the blockflow binary.
var coreModules = []registry.Module{
	std.Module{},
}

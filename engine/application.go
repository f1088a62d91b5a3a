package engine

import (
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer"
	"github.com/spaghettifunk/cadence/engine/renderer/vulkan"
)

// Resources are the engine objects handed to the game once the renderer is up.
type Resources struct {
	Config *core.Config
	// Device creates and destroys descriptor set layouts and writes sets.
	Device vulkan.DescriptorDevice
	// Descriptors holds sets that outlive a frame, keyed by owner.
	Descriptors *vulkan.DescriptorCache
	Renderer    *renderer.System
	Events      *core.EventBus
}

package engine

import (
	"github.com/spaghettifunk/cadence/engine/renderer/vulkan"
)

type Game struct {
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func(resources *Resources) error
type Update func(deltaTime float64) error

// Render records one frame into an open render pass. descriptors is the
// allocator of the current frame slot; its sets live until the slot comes
// around again.
type Render func(cb *vulkan.VulkanCommandBuffer, descriptors *vulkan.DescriptorAllocatorGrowable, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error

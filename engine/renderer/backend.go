package renderer

import "github.com/spaghettifunk/cadence/engine/renderer/vulkan"

// Backend is the frame contract the renderer front-end drives.
type Backend interface {
	// BeginFrame returns nil and no error when the frame must be skipped.
	BeginFrame() (*vulkan.VulkanCommandBuffer, error)
	BeginRendering(cb *vulkan.VulkanCommandBuffer)
	EndRendering(cb *vulkan.VulkanCommandBuffer)
	EndFrame() error
	Resized(width, height uint32)
	SetPresentModePreference(preferMailbox bool)
	FrameDescriptors() *vulkan.DescriptorAllocatorGrowable
	WaitIdle() error
	Shutdown() error
}

var _ Backend = (*vulkan.VulkanRenderer)(nil)

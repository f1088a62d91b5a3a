package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Window is the part of the platform window the renderer depends on.
type Window interface {
	// FramebufferSize returns the drawable size in pixels. A minimized
	// window reports zero on at least one axis.
	FramebufferSize() (width, height uint32)
	ShouldClose() bool
	// WaitEvents blocks until at least one window event has been processed.
	WaitEvents()
}

type SwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// Submission describes a single graphics queue submit for one frame slot.
// The signal semaphore and fence fire once every command in the buffer
// has retired.
type Submission struct {
	CommandBuffer vk.CommandBuffer
	Wait          vk.Semaphore
	WaitStage     vk.PipelineStageFlags
	Signal        vk.Semaphore
	Fence         vk.Fence
}

type SyncDevice interface {
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result
	ResetFence(fence vk.Fence) error
	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	WaitIdle() error
}

type CommandDevice interface {
	AllocateCommandBuffer(primary bool) (vk.CommandBuffer, error)
	FreeCommandBuffer(cb vk.CommandBuffer)
	ResetCommandBuffer(cb vk.CommandBuffer) error
	BeginCommandBuffer(cb vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error
	EndCommandBuffer(cb vk.CommandBuffer) error
	Submit(s Submission) error
	// SubmitAndWait submits on the graphics queue without a fence and waits
	// for the queue to go idle.
	SubmitAndWait(cb vk.CommandBuffer) error
}

type PresentDevice interface {
	QuerySwapchainSupport() (*SwapchainSupportInfo, error)
	Surface() vk.Surface
	QueueFamilyIndices() (graphics, present uint32)
	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	DestroySwapchain(swapchain vk.Swapchain)
	GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, signal vk.Semaphore) (uint32, vk.Result)
	Present(swapchain vk.Swapchain, imageIndex uint32, wait vk.Semaphore) vk.Result
}

type DescriptorDevice interface {
	CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	ResetDescriptorPool(pool vk.DescriptorPool) error
	// AllocateDescriptorSet returns the raw result so pool exhaustion can be
	// told apart from other failures.
	AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result)
	CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)
}

type RenderDevice interface {
	DepthFormat() vk.Format
	CreateImage(config ImageConfig) (*VulkanImage, error)
	DestroyImage(image *VulkanImage)
	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(pass vk.RenderPass)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)
	CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport)
	CmdSetScissor(cb vk.CommandBuffer, scissor vk.Rect2D)
	CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(cb vk.CommandBuffer)
}

// Device is everything the frame loop needs from a logical device.
// VulkanContext is the production implementation.
type Device interface {
	SyncDevice
	CommandDevice
	PresentDevice
	DescriptorDevice
	RenderDevice
}

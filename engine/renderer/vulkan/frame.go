package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

// FrameData is one in-flight frame slot. At most one submission per slot is
// outstanding: the CPU waits on InFlightFence before touching the command
// buffer or the per-frame descriptors again.
type FrameData struct {
	CommandBuffer *VulkanCommandBuffer
	// Signaled by the presentation engine when the acquired image is writable.
	ImageAvailableSemaphore vk.Semaphore
	// Signaled by the graphics queue when the slot's work has retired.
	RenderFinishedSemaphore vk.Semaphore
	InFlightFence           *VulkanFence
	// Descriptors whose lifetime is a single frame. Reset after the fence wait.
	Descriptors *DescriptorAllocatorGrowable
}

func newFrameData(device Device, descriptorConfig DescriptorAllocatorConfig, ratios []PoolSizeRatio) (*FrameData, error) {
	frame := &FrameData{}

	cb, err := NewVulkanCommandBuffer(device, true)
	if err != nil {
		return nil, err
	}
	frame.CommandBuffer = cb

	if frame.ImageAvailableSemaphore, err = device.CreateSemaphore(); err != nil {
		frame.destroy(device)
		err = errors.Wrap(err, "failed to create semaphore on image available")
		core.LogError(err.Error())
		return nil, err
	}
	if frame.RenderFinishedSemaphore, err = device.CreateSemaphore(); err != nil {
		frame.destroy(device)
		err = errors.Wrap(err, "failed to create semaphore on queue complete")
		core.LogError(err.Error())
		return nil, err
	}

	// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
	// This will prevent the application from waiting indefinitely for the first frame to render since it
	// cannot be rendered until a frame is "rendered" before it.
	if frame.InFlightFence, err = NewFence(device, true); err != nil {
		frame.destroy(device)
		return nil, err
	}

	if frame.Descriptors, err = NewDescriptorAllocator(device, descriptorConfig, ratios); err != nil {
		frame.destroy(device)
		return nil, err
	}
	return frame, nil
}

// destroy releases whatever was created, in reverse order.
func (f *FrameData) destroy(device Device) {
	if f.Descriptors != nil {
		f.Descriptors.DestroyPools()
		f.Descriptors = nil
	}
	if f.InFlightFence != nil {
		f.InFlightFence.Destroy(device)
		f.InFlightFence = nil
	}
	if f.RenderFinishedSemaphore != nil {
		device.DestroySemaphore(f.RenderFinishedSemaphore)
		f.RenderFinishedSemaphore = nil
	}
	if f.ImageAvailableSemaphore != nil {
		device.DestroySemaphore(f.ImageAvailableSemaphore)
		f.ImageAvailableSemaphore = nil
	}
	if f.CommandBuffer != nil {
		f.CommandBuffer.Free(device)
		f.CommandBuffer = nil
	}
}

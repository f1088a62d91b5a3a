package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

type ImageConfig struct {
	Width       uint32
	Height      uint32
	Format      vk.Format
	Tiling      vk.ImageTiling
	Usage       vk.ImageUsageFlags
	MemoryFlags vk.MemoryPropertyFlags
	CreateView  bool
	ViewAspect  vk.ImageAspectFlags
}

// DepthImageConfig describes the depth attachment matching a swapchain extent.
func DepthImageConfig(extent vk.Extent2D, format vk.Format) ImageConfig {
	return ImageConfig{
		Width:       extent.Width,
		Height:      extent.Height,
		Format:      format,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		CreateView:  true,
		ViewAspect:  vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	}
}

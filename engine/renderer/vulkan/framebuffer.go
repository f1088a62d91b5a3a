package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(device RenderDevice, renderpass *VulkanRenderpass, width uint32, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	// Take a copy of the attachments, they are owned elsewhere.
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	handle, err := device.CreateFramebuffer(&framebufferCreateInfo)
	if err != nil {
		err = errors.Wrap(err, "failed to create framebuffer")
		core.LogError(err.Error())
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(device RenderDevice) {
	if vfb.Handle != nil {
		device.DestroyFramebuffer(vfb.Handle)
	}
	vfb.Attachments = nil
	vfb.Handle = nil
	vfb.Renderpass = nil
}

package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

type VulkanRenderpass struct {
	Handle      vk.RenderPass
	ColorFormat vk.Format
	DepthFormat vk.Format
	X, Y, W, H  float32
	R, G, B, A  float32
	Depth       float32
	Stencil     uint32
}

type RenderpassConfig struct {
	ColorFormat vk.Format
	DepthFormat vk.Format
	ClearColor  [4]float32
	Depth       float32
	Stencil     uint32
}

// RenderpassCreate builds the single-subpass pass used for on-screen
// rendering: one color attachment presented at the end and one depth
// attachment.
func RenderpassCreate(device RenderDevice, config RenderpassConfig, extent vk.Extent2D) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		ColorFormat: config.ColorFormat,
		DepthFormat: config.DepthFormat,
		W:           float32(extent.Width),
		H:           float32(extent.Height),
		R:           config.ClearColor[0],
		G:           config.ClearColor[1],
		B:           config.ClearColor[2],
		A:           config.ClearColor[3],
		Depth:       config.Depth,
		Stencil:     config.Stencil,
	}

	attachmentDescriptions := []vk.AttachmentDescription{
		// Color attachment
		{
			Format:         config.ColorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
			FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
		},
		// Depth attachment
		{
			Format:         config.DepthFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}
	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorAttachmentReference,
		PDepthStencilAttachment: &depthAttachmentReference,
	}

	// The color attachment may only be written once the acquired image is
	// released by the presentation engine.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	handle, err := device.CreateRenderPass(&renderpassCreateInfo)
	if err != nil {
		err = errors.Wrap(err, "failed to create render pass")
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass.Handle = handle
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) Destroy(device RenderDevice) {
	if vr.Handle != nil {
		device.DestroyRenderPass(vr.Handle)
		vr.Handle = nil
	}
}

// SetExtent updates the render area used by the next Begin.
func (vr *VulkanRenderpass) SetExtent(extent vk.Extent2D) {
	vr.X = 0
	vr.Y = 0
	vr.W = float32(extent.Width)
	vr.H = float32(extent.Height)
}

func (vr *VulkanRenderpass) Begin(device RenderDevice, commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{vr.R, vr.G, vr.B, vr.A})
	clearValues[1].SetDepthStencil(vr.Depth, vr.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{
				X: int32(vr.X),
				Y: int32(vr.Y),
			},
			Extent: vk.Extent2D{
				Width:  uint32(vr.W),
				Height: uint32(vr.H),
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	device.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(device RenderDevice, commandBuffer *VulkanCommandBuffer) {
	device.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}

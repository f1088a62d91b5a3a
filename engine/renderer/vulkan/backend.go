package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

type RendererConfig struct {
	FramesInFlight uint32
	FenceTimeoutNs uint64
	PreferMailbox  bool
	ClearColor     [4]float32
	// Sizing of the per-frame descriptor allocators.
	FrameDescriptors DescriptorAllocatorConfig
	DescriptorRatios []PoolSizeRatio
}

// RendererConfigFrom converts the engine configuration.
func RendererConfigFrom(cfg *core.Config) (RendererConfig, error) {
	ratios, err := PoolSizeRatiosFromConfig(cfg.Descriptors.Ratios)
	if err != nil {
		return RendererConfig{}, err
	}
	return RendererConfig{
		FramesInFlight:   cfg.Renderer.FramesInFlight,
		FenceTimeoutNs:   cfg.Renderer.FenceTimeoutMS * 1_000_000,
		PreferMailbox:    cfg.Renderer.PreferMailbox,
		ClearColor:       cfg.Renderer.ClearColor,
		FrameDescriptors: DescriptorAllocatorConfigFrom(cfg.Descriptors),
		DescriptorRatios: ratios,
	}, nil
}

// VulkanRenderer drives the acquire, record, submit and present cycle over a
// fixed number of frame slots and rebuilds the swapchain when the surface
// changes.
type VulkanRenderer struct {
	device Device
	window Window
	config RendererConfig

	swapchain    *Swapchain
	depth        *VulkanImage
	renderpass   *VulkanRenderpass
	framebuffers []*VulkanFramebuffer
	frames       []*FrameData

	// Fence of the slot that last rendered into each swapchain image. Owned
	// by the frame slots.
	imagesInFlight []*VulkanFence

	currentFrame uint32
	imageIndex   uint32
	frameNumber  uint64
	frameStarted bool

	// Current generation of framebuffer size. If it does not match
	// framebufferSizeLastGeneration, the swapchain is rebuilt.
	framebufferSizeGeneration     uint64
	framebufferSizeLastGeneration uint64
	// Set by an out-of-date acquire, a failed rebuild or a config change.
	recreatePending bool
	// Set by a suboptimal acquire; handled after present.
	recreateAfterPresent bool
	recreations          uint64
}

func NewVulkanRenderer(device Device, window Window, config RendererConfig) (*VulkanRenderer, error) {
	if config.FramesInFlight == 0 {
		return nil, errors.Wrap(core.ErrInvalidConfig, "at least one frame in flight is required")
	}
	if config.FenceTimeoutNs == 0 {
		config.FenceTimeoutNs = DefaultFenceTimeoutNs
	}

	vr := &VulkanRenderer{
		device: device,
		window: window,
		config: config,
	}

	if err := vr.waitForDrawableExtent(); err != nil {
		return nil, err
	}

	// Swapchain
	sc, err := NewSwapchain(device, window, SwapchainConfig{PreferMailbox: config.PreferMailbox}, nil)
	if err != nil {
		return nil, err
	}
	vr.swapchain = sc

	if err := vr.createDepthAttachment(); err != nil {
		vr.Shutdown()
		return nil, err
	}

	rp, err := RenderpassCreate(device, RenderpassConfig{
		ColorFormat: sc.ImageFormat().Format,
		DepthFormat: device.DepthFormat(),
		ClearColor:  config.ClearColor,
		Depth:       1.0,
		Stencil:     0,
	}, sc.Extent())
	if err != nil {
		vr.Shutdown()
		return nil, err
	}
	vr.renderpass = rp

	// Swapchain framebuffers.
	if err := vr.regenerateFramebuffers(); err != nil {
		vr.Shutdown()
		return nil, err
	}

	// Frame slots: command buffer, sync objects and per-frame descriptors.
	vr.frames = make([]*FrameData, 0, config.FramesInFlight)
	for i := uint32(0); i < config.FramesInFlight; i++ {
		frame, err := newFrameData(device, config.FrameDescriptors, config.DescriptorRatios)
		if err != nil {
			vr.Shutdown()
			return nil, err
		}
		vr.frames = append(vr.frames, frame)
	}
	vr.imagesInFlight = make([]*VulkanFence, sc.ImageCount())

	core.LogInfo("Vulkan renderer initialized with %d frames in flight.", config.FramesInFlight)
	return vr, nil
}

// Resized records that the window framebuffer changed size. The swapchain is
// rebuilt at the next frame boundary using the size the window reports then.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.framebufferSizeGeneration++
	core.LogDebug("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.framebufferSizeGeneration)
}

// SetPresentModePreference toggles mailbox presentation. A change takes
// effect through a swapchain rebuild before the next frame.
func (vr *VulkanRenderer) SetPresentModePreference(preferMailbox bool) {
	if vr.config.PreferMailbox == preferMailbox {
		return
	}
	vr.config.PreferMailbox = preferMailbox
	vr.recreatePending = true
}

// BeginFrame waits for the current slot to retire, acquires a swapchain image
// and starts recording. A nil command buffer with a nil error means the
// surface was out of date: the swapchain has been rebuilt and the caller must
// skip this frame.
func (vr *VulkanRenderer) BeginFrame() (*VulkanCommandBuffer, error) {
	if vr.frameStarted {
		return nil, errors.New("BeginFrame called twice without EndFrame")
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if vr.recreatePending || vr.framebufferSizeGeneration != vr.framebufferSizeLastGeneration {
		if err := vr.recreateSwapchain(); err != nil {
			return nil, err
		}
	}

	frame := vr.frames[vr.currentFrame]

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	if err := frame.InFlightFence.Wait(vr.device, vr.config.FenceTimeoutNs); err != nil {
		return nil, err
	}

	// Nothing submitted from this slot is pending anymore.
	if err := frame.Descriptors.ResetPools(); err != nil {
		return nil, err
	}

	// Acquire the next image from the swap chain. Pass along the semaphore that should signaled when this completes.
	// This same semaphore will later be waited on by the queue submission to ensure this image is available.
	imageIndex, result := vr.swapchain.AcquireNextImage(acquireTimeoutNs, frame.ImageAvailableSemaphore)
	switch result {
	case vk.Success:
	case vk.Suboptimal:
		vr.recreateAfterPresent = true
	case vk.ErrorOutOfDate:
		// Trigger swapchain recreation, then boot out of the render loop.
		core.LogDebug("swapchain out of date on acquire, skipping frame %d", vr.frameNumber)
		if err := vr.recreateSwapchain(); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		err := errors.Newf("failed to acquire swapchain image: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return nil, err
	}
	vr.imageIndex = imageIndex

	// Make sure the previous frame is not using this image (i.e. its fence is being waited on)
	if f := vr.imagesInFlight[imageIndex]; f != nil && f != frame.InFlightFence {
		if err := f.Wait(vr.device, vr.config.FenceTimeoutNs); err != nil {
			return nil, err
		}
	}
	// Mark the image fence as in-use by this frame.
	vr.imagesInFlight[imageIndex] = frame.InFlightFence

	// Reset the fence only once a submission is certain to follow.
	if err := frame.InFlightFence.Reset(vr.device); err != nil {
		return nil, err
	}

	// Begin recording commands.
	cb := frame.CommandBuffer
	if err := cb.Reset(vr.device); err != nil {
		return nil, err
	}
	if err := cb.Begin(vr.device, true, false, false); err != nil {
		return nil, err
	}

	vr.frameStarted = true
	return cb, nil
}

// BeginRendering sets the dynamic viewport and scissor to the swapchain
// extent and begins the main render pass on the acquired image.
func (vr *VulkanRenderer) BeginRendering(cb *VulkanCommandBuffer) {
	extent := vr.swapchain.Extent()

	// Dynamic state
	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	vr.device.CmdSetViewport(cb.Handle, viewport)
	vr.device.CmdSetScissor(cb.Handle, scissor)

	vr.renderpass.Begin(vr.device, cb, vr.framebuffers[vr.imageIndex].Handle)
}

func (vr *VulkanRenderer) EndRendering(cb *VulkanCommandBuffer) {
	vr.renderpass.End(vr.device, cb)
}

// EndFrame submits the recorded commands and presents the image. The frame
// slot advances whatever the outcome so pacing is kept on rebuild cycles.
// An error from End or Submit is fatal: the slot's fence was already reset
// and nothing will signal it, so the next lap on that slot would only time
// out.
func (vr *VulkanRenderer) EndFrame() error {
	if !vr.frameStarted {
		return errors.WithStack(core.ErrFrameNotStarted)
	}
	vr.frameStarted = false

	frame := vr.frames[vr.currentFrame]
	defer vr.advance()

	cb := frame.CommandBuffer
	if err := cb.End(vr.device); err != nil {
		return err
	}

	// Wait semaphore ensures that the operation cannot begin until the image is available.
	// VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT prevents subsequent colour attachment
	// writes from executing until the semaphore signals (i.e. one frame is presented at a time)
	if err := vr.device.Submit(Submission{
		CommandBuffer: cb.Handle,
		Wait:          frame.ImageAvailableSemaphore,
		WaitStage:     vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		Signal:        frame.RenderFinishedSemaphore,
		Fence:         frame.InFlightFence.Handle,
	}); err != nil {
		err = errors.Wrap(err, "vkQueueSubmit failed")
		core.LogError(err.Error())
		return err
	}
	cb.UpdateSubmitted()

	// Give the image back to the swapchain.
	result := vr.swapchain.Present(vr.imageIndex, frame.RenderFinishedSemaphore)
	resized := vr.framebufferSizeGeneration != vr.framebufferSizeLastGeneration

	switch {
	case result == vk.ErrorOutOfDate || result == vk.Suboptimal || vr.recreateAfterPresent || resized:
		// Swapchain is out of date, suboptimal or a framebuffer resize has occurred. Trigger swapchain recreation.
		return vr.recreateSwapchain()
	case result != vk.Success:
		err := errors.Newf("failed to present swap chain image: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return err
	}
	return nil
}

// FrameDescriptors is the descriptor allocator of the current slot. Sets
// drawn from it are valid until the slot comes around again.
func (vr *VulkanRenderer) FrameDescriptors() *DescriptorAllocatorGrowable {
	return vr.frames[vr.currentFrame].Descriptors
}

func (vr *VulkanRenderer) Swapchain() *Swapchain         { return vr.swapchain }
func (vr *VulkanRenderer) CurrentFrame() uint32          { return vr.currentFrame }
func (vr *VulkanRenderer) FrameNumber() uint64           { return vr.frameNumber }
func (vr *VulkanRenderer) ImageIndex() uint32            { return vr.imageIndex }
func (vr *VulkanRenderer) Recreations() uint64           { return vr.recreations }
func (vr *VulkanRenderer) RecreatePending() bool         { return vr.recreatePending }
func (vr *VulkanRenderer) FramesInFlight() uint32        { return uint32(len(vr.frames)) }
func (vr *VulkanRenderer) Renderpass() *VulkanRenderpass { return vr.renderpass }

// WaitIdle blocks until the device has finished all submitted work.
func (vr *VulkanRenderer) WaitIdle() error {
	return vr.device.WaitIdle()
}

// Shutdown destroys everything the renderer created, in the opposite order
// of creation. The device itself is owned by the caller.
func (vr *VulkanRenderer) Shutdown() error {
	var waitErr error
	if err := vr.device.WaitIdle(); err != nil {
		waitErr = errors.Wrap(err, "device wait idle on shutdown")
		core.LogError(waitErr.Error())
	}

	// Sync objects, command buffers and per-frame descriptors.
	for _, frame := range vr.frames {
		frame.destroy(vr.device)
	}
	vr.frames = nil
	vr.imagesInFlight = nil

	vr.destroyFramebuffers()

	if vr.renderpass != nil {
		vr.renderpass.Destroy(vr.device)
		vr.renderpass = nil
	}
	vr.destroyDepthAttachment()

	if vr.swapchain != nil {
		vr.swapchain.Destroy()
		vr.swapchain = nil
	}
	return waitErr
}

func (vr *VulkanRenderer) advance() {
	// Increment (and loop) the index.
	vr.currentFrame = (vr.currentFrame + 1) % uint32(len(vr.frames))
	vr.frameNumber++
}

// waitForDrawableExtent polls window events while the window reports a zero
// sized framebuffer, as it does when minimized.
func (vr *VulkanRenderer) waitForDrawableExtent() error {
	for {
		width, height := vr.window.FramebufferSize()
		if width != 0 && height != 0 {
			return nil
		}
		if vr.window.ShouldClose() {
			return errors.WithStack(core.ErrWindowClosed)
		}
		vr.window.WaitEvents()
	}
}

func (vr *VulkanRenderer) recreateSwapchain() (err error) {
	defer func() {
		// Retried at the next frame boundary.
		if err != nil {
			vr.recreatePending = true
		}
	}()

	// Detect if the window is too small to be drawn to
	if err := vr.waitForDrawableExtent(); err != nil {
		return err
	}

	// Wait for any operations to complete.
	if err := vr.device.WaitIdle(); err != nil {
		err = errors.Wrap(err, "device wait idle before swapchain recreation")
		core.LogError(err.Error())
		return err
	}

	// Extent dependent resources go first, they reference the old views.
	vr.destroyFramebuffers()
	vr.destroyDepthAttachment()

	old := vr.swapchain
	sc, err := NewSwapchain(vr.device, vr.window, SwapchainConfig{PreferMailbox: vr.config.PreferMailbox}, old)
	if err != nil {
		return err
	}
	vr.swapchain = sc

	if !sc.CompareSwapFormats(old) {
		core.LogWarn("swapchain format changed on recreation: format %d/%d, color space %d/%d, present mode %d/%d",
			old.ImageFormat().Format, sc.ImageFormat().Format,
			old.ImageFormat().ColorSpace, sc.ImageFormat().ColorSpace,
			old.PresentMode(), sc.PresentMode())
		if err := vr.rebuildRenderpassIfNeeded(); err != nil {
			return err
		}
	}

	if err := vr.createDepthAttachment(); err != nil {
		return err
	}
	vr.renderpass.SetExtent(sc.Extent())
	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}

	// Clear these out, the image indices belong to the old chain.
	vr.imagesInFlight = make([]*VulkanFence, sc.ImageCount())

	// Update framebuffer size generation.
	vr.framebufferSizeLastGeneration = vr.framebufferSizeGeneration
	vr.recreatePending = false
	vr.recreateAfterPresent = false
	vr.recreations++
	return nil
}

// rebuildRenderpassIfNeeded recreates the main render pass when the color
// attachment format no longer matches the swapchain.
func (vr *VulkanRenderer) rebuildRenderpassIfNeeded() error {
	format := vr.swapchain.ImageFormat().Format
	if vr.renderpass.ColorFormat == format {
		return nil
	}
	rp, err := RenderpassCreate(vr.device, RenderpassConfig{
		ColorFormat: format,
		DepthFormat: vr.renderpass.DepthFormat,
		ClearColor:  [4]float32{vr.renderpass.R, vr.renderpass.G, vr.renderpass.B, vr.renderpass.A},
		Depth:       vr.renderpass.Depth,
		Stencil:     vr.renderpass.Stencil,
	}, vr.swapchain.Extent())
	if err != nil {
		return err
	}
	vr.renderpass.Destroy(vr.device)
	vr.renderpass = rp
	return nil
}

func (vr *VulkanRenderer) createDepthAttachment() error {
	depth, err := vr.device.CreateImage(DepthImageConfig(vr.swapchain.Extent(), vr.device.DepthFormat()))
	if err != nil {
		err = errors.Wrap(err, "failed to create depth attachment")
		core.LogError(err.Error())
		return err
	}
	vr.depth = depth
	return nil
}

func (vr *VulkanRenderer) destroyDepthAttachment() {
	if vr.depth != nil {
		vr.device.DestroyImage(vr.depth)
		vr.depth = nil
	}
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	extent := vr.swapchain.Extent()
	views := vr.swapchain.Views()
	vr.framebuffers = make([]*VulkanFramebuffer, 0, len(views))
	for _, view := range views {
		attachments := []vk.ImageView{
			view,
			vr.depth.View,
		}
		fb, err := FramebufferCreate(vr.device, vr.renderpass, extent.Width, extent.Height, attachments)
		if err != nil {
			return err
		}
		vr.framebuffers = append(vr.framebuffers, fb)
	}
	return nil
}

func (vr *VulkanRenderer) destroyFramebuffers() {
	for _, fb := range vr.framebuffers {
		fb.Destroy(vr.device)
	}
	vr.framebuffers = nil
}

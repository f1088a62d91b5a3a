package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/cadence/engine/core"
)

type SwapchainConfig struct {
	PreferMailbox bool
}

// Swapchain owns the presentable images of a surface and one view per image.
type Swapchain struct {
	id          uuid.UUID
	device      PresentDevice
	handle      vk.Swapchain
	imageFormat vk.SurfaceFormat
	presentMode vk.PresentMode
	extent      vk.Extent2D
	images      []vk.Image
	views       []vk.ImageView
	// Set once the chain was offered as OldSwapchain. A retired chain can no
	// longer be acquired from or offered again, only destroyed.
	retired bool
}

// NewSwapchain negotiates format, present mode and extent against the current
// surface capabilities and creates a chain for them. When predecessor is not
// nil the new chain is created with it as the old swapchain and the
// predecessor is destroyed once the new images are retrieved. The create call
// retires the predecessor even when it fails, so a failed attempt leaves it
// retired and later attempts create from scratch.
func NewSwapchain(device PresentDevice, window Window, config SwapchainConfig, predecessor *Swapchain) (*Swapchain, error) {
	support, err := device.QuerySwapchainSupport()
	if err != nil {
		err = errors.Wrap(err, "failed to query swapchain support")
		core.LogError(err.Error())
		return nil, err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		err := errors.New("surface reports no formats or present modes")
		core.LogError(err.Error())
		return nil, err
	}

	width, height := window.FramebufferSize()
	swapchain := &Swapchain{
		id:          uuid.New(),
		device:      device,
		imageFormat: ChooseSurfaceFormat(support.Formats),
		presentMode: ChoosePresentMode(support.PresentModes, config.PreferMailbox),
		extent:      ChooseExtent(support.Capabilities, width, height),
	}
	if swapchain.extent.Width == 0 || swapchain.extent.Height == 0 {
		err := errors.Newf("refusing to create a %dx%d swapchain", swapchain.extent.Width, swapchain.extent.Height)
		core.LogError(err.Error())
		return nil, err
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          device.Surface(),
		MinImageCount:    ChooseImageCount(support.Capabilities),
		ImageFormat:      swapchain.imageFormat.Format,
		ImageColorSpace:  swapchain.imageFormat.ColorSpace,
		ImageExtent:      swapchain.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.presentMode,
		Clipped:          vk.True,
	}

	// Setup the queue family indices
	graphics, present := device.QueueFamilyIndices()
	if graphics != present {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{graphics, present}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if predecessor != nil && !predecessor.retired {
		swapchainCreateInfo.OldSwapchain = predecessor.handle
	}

	handle, err := device.CreateSwapchain(&swapchainCreateInfo)
	if predecessor != nil {
		predecessor.retired = true
	}
	if err != nil {
		err = errors.Wrap(err, "failed to create swapchain")
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.handle = handle

	images, err := device.GetSwapchainImages(handle)
	if err != nil {
		err = errors.Wrap(err, "failed to get swapchain images")
		core.LogError(err.Error())
		device.DestroySwapchain(handle)
		return nil, err
	}
	swapchain.images = images

	// The presentation engine has handed over the old images by now.
	if predecessor != nil {
		core.LogDebug("retiring swapchain %s", predecessor.id)
		predecessor.Destroy()
	}

	// Views
	swapchain.views = make([]vk.ImageView, 0, len(images))
	for _, image := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.imageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}

		view, err := device.CreateImageView(&viewInfo)
		if err != nil {
			err = errors.Wrap(err, "failed to create swapchain image view")
			core.LogError(err.Error())
			swapchain.Destroy()
			return nil, err
		}
		swapchain.views = append(swapchain.views, view)
	}

	core.LogInfo("Swapchain %s created: %dx%d, %d images, format %d, present mode %d.",
		swapchain.id, swapchain.extent.Width, swapchain.extent.Height, len(images),
		swapchain.imageFormat.Format, swapchain.presentMode)

	return swapchain, nil
}

// AcquireNextImage returns the raw status alongside the index. Out-of-date
// and suboptimal results are left to the caller to handle.
func (s *Swapchain) AcquireNextImage(timeoutNs uint64, signal vk.Semaphore) (uint32, vk.Result) {
	return s.device.AcquireNextImage(s.handle, timeoutNs, signal)
}

// Present queues the image for presentation once wait is signaled.
func (s *Swapchain) Present(imageIndex uint32, wait vk.Semaphore) vk.Result {
	return s.device.Present(s.handle, imageIndex, wait)
}

// CompareSwapFormats reports whether other presents with the same format,
// color space and present mode.
func (s *Swapchain) CompareSwapFormats(other *Swapchain) bool {
	if other == nil {
		return false
	}
	return s.imageFormat.Format == other.imageFormat.Format &&
		s.imageFormat.ColorSpace == other.imageFormat.ColorSpace &&
		s.presentMode == other.presentMode
}

// Destroy releases the views before the chain. The images themselves are
// owned by the chain.
func (s *Swapchain) Destroy() {
	for _, view := range s.views {
		s.device.DestroyImageView(view)
	}
	s.views = nil
	s.images = nil

	if s.handle != nil {
		s.device.DestroySwapchain(s.handle)
		s.handle = nil
	}
}

func (s *Swapchain) ID() uuid.UUID                 { return s.id }
func (s *Swapchain) Handle() vk.Swapchain          { return s.handle }
func (s *Swapchain) Extent() vk.Extent2D           { return s.extent }
func (s *Swapchain) ImageFormat() vk.SurfaceFormat { return s.imageFormat }
func (s *Swapchain) PresentMode() vk.PresentMode   { return s.presentMode }
func (s *Swapchain) Images() []vk.Image            { return s.images }
func (s *Swapchain) Views() []vk.ImageView         { return s.views }
func (s *Swapchain) ImageCount() uint32            { return uint32(len(s.images)) }
func (s *Swapchain) Retired() bool                 { return s.retired }

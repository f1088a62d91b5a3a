package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
	"golang.org/x/exp/constraints"
)

// Reported by the surface when the extent follows the swapchain instead of
// the window.
const extentAuto uint32 = math.MaxUint32

// ChooseSurfaceFormat prefers B8G8R8A8_UNORM with the sRGB non-linear color
// space and otherwise falls back to the first candidate. candidates must not
// be empty; an empty list yields the zero format.
func ChooseSurfaceFormat(candidates []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range candidates {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Unorm &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	if len(candidates) == 0 {
		return vk.SurfaceFormat{}
	}
	return candidates[0]
}

// ChoosePresentMode picks mailbox when it is offered and allowed, FIFO
// otherwise. FIFO is the only mode every implementation must support.
func ChoosePresentMode(candidates []vk.PresentMode, preferMailbox bool) vk.PresentMode {
	if preferMailbox {
		for _, mode := range candidates {
			if mode == vk.PresentModeMailbox {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent uses the surface's current extent unless it is the auto
// sentinel, in which case the framebuffer size is clamped to the surface
// bounds.
func ChooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != extentAuto {
		return caps.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	min := caps.MinImageExtent
	max := caps.MaxImageExtent
	return vk.Extent2D{
		Width:  Clamp(width, min.Width, max.Width),
		Height: Clamp(height, min.Height, max.Height),
	}
}

// ChooseImageCount asks for one image above the minimum, capped by the
// maximum when the surface declares one.
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}
	return imageCount
}

func Clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

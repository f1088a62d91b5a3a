package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	tests := []struct {
		name       string
		candidates []vk.SurfaceFormat
		want       vk.SurfaceFormat
	}{
		{"preferred present", []vk.SurfaceFormat{other, preferred}, preferred},
		{"fallback to first", []vk.SurfaceFormat{other}, other},
		{"empty", nil, vk.SurfaceFormat{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChooseSurfaceFormat(tt.candidates))
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate, vk.PresentModeMailbox}
	withoutMailbox := []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo}

	assert.Equal(t, vk.PresentModeMailbox, ChoosePresentMode(withMailbox, true))
	assert.Equal(t, vk.PresentModeFifo, ChoosePresentMode(withMailbox, false))
	assert.Equal(t, vk.PresentModeFifo, ChoosePresentMode(withoutMailbox, true))
	assert.Equal(t, vk.PresentModeFifo, ChoosePresentMode(nil, true))
}

func TestChooseExtent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: extentAuto, Height: extentAuto},
		MinImageExtent: vk.Extent2D{Width: 16, Height: 16},
		MaxImageExtent: vk.Extent2D{Width: 2048, Height: 1024},
	}

	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, ChooseExtent(caps, 800, 600))
	assert.Equal(t, vk.Extent2D{Width: 2048, Height: 1024}, ChooseExtent(caps, 4000, 3000))
	assert.Equal(t, vk.Extent2D{Width: 16, Height: 16}, ChooseExtent(caps, 1, 2))

	// A fixed current extent wins over the window size.
	caps.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, ChooseExtent(caps, 800, 600))
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), ChooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, uint32(3), ChooseImageCount(vk.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 3}))
	// Zero max means no limit.
	assert.Equal(t, uint32(5), ChooseImageCount(vk.SurfaceCapabilities{MinImageCount: 4, MaxImageCount: 0}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(5, 0, 10))
	assert.Equal(t, 0, Clamp(-3, 0, 10))
	assert.Equal(t, 10, Clamp(42, 0, 10))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}

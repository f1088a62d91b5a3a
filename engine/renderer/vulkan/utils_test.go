package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate, false))
	assert.Contains(t, VulkanResultString(vk.ErrorOutOfDate, true), "VK_ERROR_OUT_OF_DATE_KHR ")
}

func TestVulkanSafeStrings(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "VK_LAYER\x00", VulkanSafeString("VK_LAYER"))
	assert.Equal(t, "VK_LAYER\x00", VulkanSafeString("VK_LAYER\x00"))
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings([]string{"a", "b\x00"}))

	assert.Equal(t, 3, FindFirstZeroInByteArray([]byte{'a', 'b', 'c', 0, 'd'}))
}

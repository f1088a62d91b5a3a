package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFenceSignaledSkipsDeviceWait(t *testing.T) {
	device := newFakeDevice()
	fence, err := NewFence(device, true)
	require.NoError(t, err)

	require.NoError(t, fence.Wait(device, DefaultFenceTimeoutNs))
	assert.Empty(t, device.eventsMatching("wait"))

	require.NoError(t, fence.Reset(device))
	assert.False(t, fence.IsSignaled)

	require.NoError(t, fence.Wait(device, DefaultFenceTimeoutNs))
	assert.True(t, fence.IsSignaled)
	assert.Len(t, device.eventsMatching("wait:"), 1)

	fence.Destroy(device)
	assert.True(t, fence.Handle == nil)
	assert.Equal(t, 0, device.live["fence"])
}

func TestFenceResetOnlyWhenSignaled(t *testing.T) {
	device := newFakeDevice()
	fence, err := NewFence(device, false)
	require.NoError(t, err)

	require.NoError(t, fence.Reset(device))
	assert.Empty(t, device.eventsMatching("reset"))
}

func TestFenceWaitFailures(t *testing.T) {
	tests := []struct {
		result vk.Result
		target error
	}{
		{vk.Timeout, core.ErrFenceTimeout},
		{vk.ErrorDeviceLost, core.ErrDeviceLost},
	}
	for _, tt := range tests {
		t.Run(VulkanResultString(tt.result, false), func(t *testing.T) {
			device := newFakeDevice()
			device.waitResult = tt.result
			fence, err := NewFence(device, false)
			require.NoError(t, err)

			err = fence.Wait(device, 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target))
			assert.False(t, fence.IsSignaled)
		})
	}

	device := newFakeDevice()
	device.waitResult = vk.ErrorOutOfHostMemory
	fence, err := NewFence(device, false)
	require.NoError(t, err)
	err = fence.Wait(device, 10)
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrFenceTimeout))
}

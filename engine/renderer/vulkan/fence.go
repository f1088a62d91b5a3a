package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(device SyncDevice, createSignaled bool) (*VulkanFence, error) {
	handle, err := device.CreateFence(createSignaled)
	if err != nil {
		err = errors.Wrap(err, "failed to create fence")
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanFence{
		Handle: handle,
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}, nil
}

func (vf *VulkanFence) Destroy(device SyncDevice) {
	if vf.Handle != nil {
		device.DestroyFence(vf.Handle)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled or timeoutNs elapses. A timeout
// returns core.ErrFenceTimeout and a lost device core.ErrDeviceLost; neither
// is retryable.
func (vf *VulkanFence) Wait(device SyncDevice, timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}

	result := device.WaitForFence(vf.Handle, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogError("vk_fence_wait - Timed out after %d ns", timeoutNs)
		return errors.Wrapf(core.ErrFenceTimeout, "waited %d ns", timeoutNs)
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return errors.WithStack(core.ErrDeviceLost)
	default:
		err := errors.Newf("vk_fence_wait - %s", VulkanResultString(result, false))
		core.LogError(err.Error())
		return err
	}
}

func (vf *VulkanFence) Reset(device SyncDevice) error {
	if vf.IsSignaled {
		if err := device.ResetFence(vf.Handle); err != nil {
			err = errors.Wrap(err, "failed to reset fence")
			core.LogError(err.Error())
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}

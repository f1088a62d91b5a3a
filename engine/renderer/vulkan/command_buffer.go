package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_IN_RENDER_PASS:
		return "in_render_pass"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording_ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	default:
		return "not_allocated"
	}
}

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(device CommandDevice, isPrimary bool) (*VulkanCommandBuffer, error) {
	handle, err := device.AllocateCommandBuffer(isPrimary)
	if err != nil {
		err = errors.Wrap(err, "failed to allocate command buffer")
		core.LogError(err.Error())
		return nil, err
	}
	return &VulkanCommandBuffer{
		Handle: handle,
		State:  COMMAND_BUFFER_STATE_READY,
	}, nil
}

func (v *VulkanCommandBuffer) Free(device CommandDevice) {
	if v.Handle != nil {
		device.FreeCommandBuffer(v.Handle)
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(device CommandDevice, isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := device.BeginCommandBuffer(v.Handle, flags); err != nil {
		err = errors.Wrap(err, "failed to begin command buffer")
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End(device CommandDevice) error {
	if err := device.EndCommandBuffer(v.Handle); err != nil {
		err = errors.Wrap(err, "failed to end command buffer")
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset returns the buffer to the initial state so it can be recorded again.
func (v *VulkanCommandBuffer) Reset(device CommandDevice) error {
	if err := device.ResetCommandBuffer(v.Handle); err != nil {
		err = errors.Wrap(err, "failed to reset command buffer")
		core.LogError(err.Error())
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

/**
 * Allocates and begins recording a one-time command buffer.
 */
func AllocateAndBeginSingleUse(device CommandDevice) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(device, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(device, true, false, false); err != nil {
		cb.Free(device)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(device CommandDevice) error {
	defer v.Free(device)

	if err := v.End(device); err != nil {
		return err
	}
	if err := device.SubmitAndWait(v.Handle); err != nil {
		err = errors.Wrap(err, "failed to submit single use command buffer")
		core.LogError(err.Error())
		return err
	}
	return nil
}

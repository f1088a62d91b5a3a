package vulkan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBufferLifecycle(t *testing.T) {
	device := newFakeDevice()
	cb, err := NewVulkanCommandBuffer(device, true)
	require.NoError(t, err)
	assert.Equal(t, COMMAND_BUFFER_STATE_READY, cb.State)

	require.NoError(t, cb.Begin(device, true, false, false))
	assert.Equal(t, "recording", cb.State.String())
	require.NoError(t, cb.End(device))
	assert.Equal(t, COMMAND_BUFFER_STATE_RECORDING_ENDED, cb.State)
	cb.UpdateSubmitted()
	require.NoError(t, cb.Reset(device))
	assert.Equal(t, COMMAND_BUFFER_STATE_READY, cb.State)

	cb.Free(device)
	assert.Equal(t, COMMAND_BUFFER_STATE_NOT_ALLOCATED, cb.State)
	assert.Equal(t, 0, device.live["command_buffer"])
}

func TestSingleUseCommandBuffer(t *testing.T) {
	device := newFakeDevice()
	cb, err := AllocateAndBeginSingleUse(device)
	require.NoError(t, err)
	require.NoError(t, cb.EndSingleUse(device))

	assert.Equal(t, []string{"begin", "end", "submit_and_wait"}, device.events)
	assert.Equal(t, 0, device.live["command_buffer"])
}

func TestLockPoolSerializesQueueCalls(t *testing.T) {
	pool := NewVulkanLockPool()
	pool.SetQueueFamily(0)

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.SafeQueueCall(0, func() error {
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				inside--
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Unregistered families fall back to the shared queue lock.
	called := false
	require.NoError(t, pool.SafeQueueCall(7, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/cadence/engine/renderer/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	calls      []string
	skip       bool
	beginErr   error
	endErr     error
	width      uint32
	height     uint32
	preferMail bool
}

func (b *fakeBackend) BeginFrame() (*vulkan.VulkanCommandBuffer, error) {
	b.calls = append(b.calls, "begin_frame")
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	if b.skip {
		return nil, nil
	}
	return &vulkan.VulkanCommandBuffer{}, nil
}

func (b *fakeBackend) BeginRendering(cb *vulkan.VulkanCommandBuffer) {
	b.calls = append(b.calls, "begin_rendering")
}

func (b *fakeBackend) EndRendering(cb *vulkan.VulkanCommandBuffer) {
	b.calls = append(b.calls, "end_rendering")
}

func (b *fakeBackend) EndFrame() error {
	b.calls = append(b.calls, "end_frame")
	return b.endErr
}

func (b *fakeBackend) Resized(width, height uint32) {
	b.width, b.height = width, height
}

func (b *fakeBackend) SetPresentModePreference(preferMailbox bool) {
	b.preferMail = preferMailbox
}

func (b *fakeBackend) FrameDescriptors() *vulkan.DescriptorAllocatorGrowable {
	return nil
}

func (b *fakeBackend) WaitIdle() error { return nil }

func (b *fakeBackend) Shutdown() error {
	b.calls = append(b.calls, "shutdown")
	return nil
}

func TestDrawFrameOrder(t *testing.T) {
	backend := &fakeBackend{}
	system := NewSystem(backend)

	err := system.DrawFrame(func(cb *vulkan.VulkanCommandBuffer, _ *vulkan.DescriptorAllocatorGrowable) error {
		require.NotNil(t, cb)
		backend.calls = append(backend.calls, "render")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"begin_frame", "begin_rendering", "render", "end_rendering", "end_frame"}, backend.calls)
}

func TestDrawFrameSkip(t *testing.T) {
	backend := &fakeBackend{skip: true}
	system := NewSystem(backend)

	rendered := false
	require.NoError(t, system.DrawFrame(func(*vulkan.VulkanCommandBuffer, *vulkan.DescriptorAllocatorGrowable) error {
		rendered = true
		return nil
	}))
	assert.False(t, rendered)
	assert.Equal(t, []string{"begin_frame"}, backend.calls)
	assert.Equal(t, uint64(1), system.Metrics().Skipped())
}

func TestDrawFrameErrors(t *testing.T) {
	backend := &fakeBackend{beginErr: errors.New("fence timeout")}
	system := NewSystem(backend)
	assert.Error(t, system.DrawFrame(func(*vulkan.VulkanCommandBuffer, *vulkan.DescriptorAllocatorGrowable) error { return nil }))

	// A failed recording still ends the frame.
	backend = &fakeBackend{}
	system = NewSystem(backend)
	recordErr := errors.New("bad draw")
	err := system.DrawFrame(func(*vulkan.VulkanCommandBuffer, *vulkan.DescriptorAllocatorGrowable) error { return recordErr })
	assert.True(t, errors.Is(err, recordErr))
	assert.Contains(t, backend.calls, "end_frame")
}

func TestSystemForwardsControl(t *testing.T) {
	backend := &fakeBackend{}
	system := NewSystem(backend)

	system.OnResize(640, 480)
	system.SetPresentModePreference(true)
	require.NoError(t, system.Shutdown())

	assert.Equal(t, uint32(640), backend.width)
	assert.Equal(t, uint32(480), backend.height)
	assert.True(t, backend.preferMail)
	assert.Equal(t, []string{"shutdown"}, backend.calls)
}

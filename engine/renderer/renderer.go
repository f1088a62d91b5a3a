package renderer

import (
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/vulkan"
)

// RenderFunc records the draw commands of one frame into cb. The render pass
// is already open.
type RenderFunc func(cb *vulkan.VulkanCommandBuffer, descriptors *vulkan.DescriptorAllocatorGrowable) error

type System struct {
	backend Backend
	metrics *core.Metrics
	clock   *core.Clock
}

func NewSystem(backend Backend) *System {
	return &System{
		backend: backend,
		metrics: core.NewMetrics(),
		clock:   core.NewClock(),
	}
}

// DrawFrame runs one full frame. A frame the backend asks to skip is not an
// error.
func (s *System) DrawFrame(render RenderFunc) error {
	s.clock.Start()

	cb, err := s.backend.BeginFrame()
	if err != nil {
		core.LogError("BeginFrame failed: %s", err)
		return err
	}
	if cb == nil {
		s.metrics.FrameSkipped()
		return nil
	}

	s.backend.BeginRendering(cb)
	renderErr := render(cb, s.backend.FrameDescriptors())
	s.backend.EndRendering(cb)

	// A failed render still ends the frame, so the slot's fence gets its
	// submission. A failed EndFrame leaves the slot unsignaled and callers
	// must stop drawing.
	if err := s.backend.EndFrame(); err != nil {
		core.LogError("EndFrame failed. Application shutting down...")
		return err
	}
	if renderErr != nil {
		core.LogError("frame recording failed: %s", renderErr)
		return renderErr
	}

	s.clock.Update()
	s.metrics.Update(s.clock.Elapsed())
	return nil
}

func (s *System) OnResize(width, height uint32) {
	s.backend.Resized(width, height)
}

func (s *System) SetPresentModePreference(preferMailbox bool) {
	s.backend.SetPresentModePreference(preferMailbox)
}

func (s *System) Metrics() *core.Metrics {
	return s.metrics
}

func (s *System) WaitIdle() error {
	return s.backend.WaitIdle()
}

func (s *System) Shutdown() error {
	return s.backend.Shutdown()
}

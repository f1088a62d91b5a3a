package testbed

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/cadence/engine"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/renderer/vulkan"
)

// Number of transient sets drawn per frame, standing in for per-object data.
const objectsPerFrame = 8

type TestGame struct {
	*engine.Game
}

type gameState struct {
	resources *engine.Resources

	materialLayout vk.DescriptorSetLayout
	objectLayout   vk.DescriptorSetLayout
	material       uuid.UUID

	width  uint32
	height uint32

	elapsed     float64
	lastReport  float64
	setsPerTick int
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{
				material: uuid.New(),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(resources *engine.Resources) error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.state()
	state.resources = resources

	builder := &vulkan.DescriptorLayoutBuilder{}
	layout, err := builder.
		AddBinding(0, vk.DescriptorTypeUniformBuffer).
		AddBinding(1, vk.DescriptorTypeCombinedImageSampler).
		Build(resources.Device, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit))
	if err != nil {
		return errors.Wrap(err, "failed to build material layout")
	}
	state.materialLayout = layout

	builder.Clear()
	layout, err = builder.
		AddBinding(0, vk.DescriptorTypeUniformBuffer).
		Build(resources.Device, vk.ShaderStageFlags(vk.ShaderStageVertexBit))
	if err != nil {
		return errors.Wrap(err, "failed to build object layout")
	}
	state.objectLayout = layout

	if _, err := resources.Descriptors.Acquire(state.material, state.materialLayout); err != nil {
		return err
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	state.elapsed += deltaTime
	if state.elapsed-state.lastReport >= 5 {
		state.lastReport = state.elapsed
		fps, frameMS := state.resources.Renderer.Metrics().Frame()
		core.LogInfo("%.1f fps, %.2f ms/frame, %d sets per frame", fps, frameMS, state.setsPerTick)
		core.LogDebug("persistent descriptors: %s", state.resources.Descriptors.Allocator().BuildStatsString(false))
	}
	return nil
}

func (g *TestGame) Render(cb *vulkan.VulkanCommandBuffer, descriptors *vulkan.DescriptorAllocatorGrowable, deltaTime float64) error {
	state := g.state()

	// Material sets persist across frames, object sets are rebuilt every frame.
	if _, err := state.resources.Descriptors.Acquire(state.material, state.materialLayout); err != nil {
		return err
	}
	state.setsPerTick = 0
	for i := 0; i < objectsPerFrame; i++ {
		if _, err := descriptors.AllocateDescriptor(state.objectLayout); err != nil {
			return err
		}
		state.setsPerTick++
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	if state.resources == nil {
		return nil
	}
	state.resources.Descriptors.Release(state.material)
	if state.objectLayout != nil {
		state.resources.Device.DestroyDescriptorSetLayout(state.objectLayout)
		state.objectLayout = nil
	}
	if state.materialLayout != nil {
		state.resources.Device.DestroyDescriptorSetLayout(state.materialLayout)
		state.materialLayout = nil
	}
	return nil
}

package platform

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type Platform struct {
	Window *glfw.Window

	events    *core.EventBus
	minimized bool
}

func New(events *core.EventBus) *Platform {
	return &Platform{
		events: events,
	}
}

func (p *Platform) Startup(cfg core.WindowConfig) error {
	if err := glfw.Init(); err != nil {
		err = errors.Wrap(err, "failed to initialize glfw")
		core.LogError("%s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		err := errors.New("glfw reports no Vulkan loader")
		core.LogError("%s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		err = errors.Wrap(err, "failed to create window")
		core.LogError("%s", err)
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetIconifyCallback(p.iconifyCallback)
	p.Window.SetFocusCallback(p.focusCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(cfg.PosX), int(cfg.PosY))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events without blocking.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

func (p *Platform) GetTime() float64 {
	return glfw.GetTime()
}

// FramebufferSize is the drawable size in pixels, zero while minimized.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	width, height := p.Window.GetFramebufferSize()
	return uint32(width), uint32(height)
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

// Wake unblocks a pending WaitEvents. Safe to call from any goroutine.
func (p *Platform) Wake() {
	glfw.PostEmptyEvent()
}

func (p *Platform) GetInstanceProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "vulkan surface creation failed")
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{
			WindowWidth:  uint32(width),
			WindowHeight: uint32(height),
		},
	})
}

func (p *Platform) iconifyCallback(w *glfw.Window, iconified bool) {
	if iconified == p.minimized {
		return
	}
	p.minimized = iconified
	code := core.EVENT_CODE_RESTORED
	if iconified {
		code = core.EVENT_CODE_MINIMIZED
	}
	p.events.Fire(core.EventContext{Type: code})
}

func (p *Platform) focusCallback(w *glfw.Window, focused bool) {
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_FOCUS_CHANGED,
		Data: &core.SystemEvent{Focused: focused},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

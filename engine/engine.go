package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/spaghettifunk/cadence/engine/platform"
	"github.com/spaghettifunk/cadence/engine/renderer"
	"github.com/spaghettifunk/cadence/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	isRunning    bool
	isSuspended  bool
	width        uint32
	height       uint32

	events      *core.EventBus
	platform    *platform.Platform
	context     *vulkan.VulkanContext
	renderer    *renderer.System
	descriptors *vulkan.DescriptorCache

	clock    *core.Clock
	lastTime float64

	// Latest configuration reloaded from disk, applied between frames.
	configCh chan *core.Config
}

func New(g *Game, config *core.Config) (*Engine, error) {
	if g == nil || g.FnRender == nil {
		return nil, errors.Wrap(core.ErrInvalidConfig, "a game with a render function is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	events := core.NewEventBus()
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       config,
		width:        config.Window.Width,
		height:       config.Window.Height,
		events:       events,
		platform:     platform.New(events),
		clock:        core.NewClock(),
		configCh:     make(chan *core.Config, 1),
	}, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return errors.Newf("engine cannot be initialized in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	core.SetLogLevel(e.config.Log.Level)

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_MINIMIZED, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESTORED, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.platform.Startup(e.config.Window); err != nil {
		return err
	}

	ctx, err := vulkan.NewVulkanContext(e.platform, vulkan.ContextConfig{
		ApplicationName: e.config.Window.Title,
		Validation:      e.config.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	e.context = ctx

	rendererConfig, err := vulkan.RendererConfigFrom(e.config)
	if err != nil {
		return err
	}
	backend, err := vulkan.NewVulkanRenderer(ctx, e.platform, rendererConfig)
	if err != nil {
		return err
	}
	e.renderer = renderer.NewSystem(backend)

	persistent, err := vulkan.NewDescriptorAllocator(ctx, rendererConfig.FrameDescriptors, rendererConfig.DescriptorRatios)
	if err != nil {
		return err
	}
	e.descriptors = vulkan.NewDescriptorCache(persistent)

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(&Resources{
			Config:      e.config,
			Device:      ctx,
			Descriptors: e.descriptors,
			Renderer:    e.renderer,
			Events:      e.events,
		}); err != nil {
			return err
		}
	}
	width, height := e.platform.FramebufferSize()
	e.width, e.height = width, height
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop on the calling goroutine, which must be the main
// thread. It returns when the window closes, a quit event fires or ctx is
// done.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.Newf("engine cannot run in stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		select {
		case <-ctx.Done():
			core.LogInfo("context cancelled, leaving the frame loop")
			e.isRunning = false
			continue
		case cfg := <-e.configCh:
			e.applyConfig(cfg)
		default:
		}

		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning = false
			continue
		}

		if e.isSuspended {
			// Block until the window comes back instead of spinning.
			e.platform.WaitEvents()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				return err
			}
		}

		err := e.renderer.DrawFrame(func(cb *vulkan.VulkanCommandBuffer, descriptors *vulkan.DescriptorAllocatorGrowable) error {
			return e.gameInstance.FnRender(cb, descriptors, delta)
		})
		if errors.Is(err, core.ErrWindowClosed) {
			e.isRunning = false
			continue
		}
		if err != nil {
			return err
		}

		e.lastTime = currentTime
	}

	fps, frameMS := e.renderer.Metrics().Frame()
	core.LogInfo("frame loop stopped: %.1f fps, %.2f ms/frame, %d skipped", fps, frameMS, e.renderer.Metrics().Skipped())
	return e.renderer.WaitIdle()
}

// ApplyConfig queues a reloaded configuration for the frame loop. Only the
// newest pending configuration is kept. Safe to call from any goroutine.
func (e *Engine) ApplyConfig(cfg *core.Config) {
	select {
	case e.configCh <- cfg:
	default:
		select {
		case <-e.configCh:
		default:
		}
		e.configCh <- cfg
	}
	e.platform.Wake()
}

// Wake interrupts a suspended frame loop so it can observe cancellation.
func (e *Engine) Wake() {
	e.platform.Wake()
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var errs error
	if e.renderer != nil {
		errs = errors.CombineErrors(errs, e.renderer.WaitIdle())
	}
	if e.gameInstance.FnShutdown != nil {
		errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown())
	}
	if e.descriptors != nil {
		e.descriptors.Destroy()
	}
	if e.renderer != nil {
		errs = errors.CombineErrors(errs, e.renderer.Shutdown())
	}
	if e.context != nil {
		e.context.Destroy()
	}
	errs = errors.CombineErrors(errs, e.platform.Shutdown())
	e.events.Shutdown()
	return errs
}

// GetFramebufferSize returns the width and height (in this order) of the
// last known framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) applyConfig(cfg *core.Config) {
	core.SetLogLevel(cfg.Log.Level)
	if cfg.Renderer.PreferMailbox != e.config.Renderer.PreferMailbox {
		e.renderer.SetPresentModePreference(cfg.Renderer.PreferMailbox)
	}
	if cfg.Renderer.FramesInFlight != e.config.Renderer.FramesInFlight {
		core.LogWarn("renderer.frames_in_flight changed to %d, restart to apply", cfg.Renderer.FramesInFlight)
	}
	e.config = cfg
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_CONFIG_RELOADED, Data: cfg})
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	case core.EVENT_CODE_MINIMIZED:
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
	case core.EVENT_CODE_RESTORED:
		if e.isSuspended {
			core.LogInfo("Window restored, resuming application.")
			e.isSuspended = false
		}
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	width := se.WindowWidth
	height := se.WindowHeight
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// A zero-sized framebuffer is handled as a minimize.
	if width == 0 || height == 0 {
		e.isSuspended = true
		return false
	}
	e.isSuspended = false
	e.renderer.OnResize(width, height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize failed: %s", err)
		}
	}
	return false
}

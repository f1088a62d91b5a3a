package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * width  = data.WindowWidth
	 * height = data.WindowHeight
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The window was iconified or restored.
	EVENT_CODE_MINIMIZED SystemEventCode = 0x09
	EVENT_CODE_RESTORED  SystemEventCode = 0x0A

	// The window gained or lost focus.
	/* Context usage:
	 * focused = data.Focused
	 */
	EVENT_CODE_FOCUS_CHANGED SystemEventCode = 0x0B

	// Configuration file was reloaded from disk.
	EVENT_CODE_CONFIG_RELOADED SystemEventCode = 0x0C

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
	Focused      bool
}

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches window and engine events to registered listeners.
// Listeners are invoked synchronously on the goroutine calling Fire.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listener combos will not be registered again and will cause this to return false.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code `%d`", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the listener for the given code. Returns false when no
// matching registration exists.
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func (b *EventBus) Fire(ctx EventContext) bool {
	b.mu.RLock()
	events := append([]*registeredEvent(nil), b.registered[ctx.Type]...)
	b.mu.RUnlock()

	for _, e := range events {
		if e.callback(ctx) {
			return true
		}
	}
	return false
}

func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = make(map[SystemEventCode][]*registeredEvent)
}

package vulkan

import "sync"

type LockGroup string

const (
	CommandPoolManagement LockGroup = "command_pool_management"
	QueueManagement       LockGroup = "queue_management"
)

// VulkanLockPool serializes access to externally synchronized Vulkan objects:
// one mutex per lock group and one per queue family.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the maps

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

// Get or create the mutex for a specific group
func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

// SafeQueueCall runs fn while holding the mutex of the queue family. Families
// that were never registered fall back to the QueueManagement group.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	vs.mu.Lock()
	l, exists := vs.queueMutexes[queueFamilyIndex]
	vs.mu.Unlock()
	if !exists {
		return vs.SafeCall(QueueManagement, fn)
	}

	l.Lock()
	defer l.Unlock()

	return fn()
}

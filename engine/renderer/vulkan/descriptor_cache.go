package vulkan

import (
	"github.com/dolthub/swiss"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
)

// DescriptorCache hands out one long-lived descriptor set per owner, such as
// a material or a mesh node. Sets are allocated on first request and reused
// across frames until the owner releases them or the cache is reset.
type DescriptorCache struct {
	allocator *DescriptorAllocatorGrowable
	sets      *swiss.Map[uuid.UUID, vk.DescriptorSet]
}

func NewDescriptorCache(allocator *DescriptorAllocatorGrowable) *DescriptorCache {
	return &DescriptorCache{
		allocator: allocator,
		sets:      swiss.NewMap[uuid.UUID, vk.DescriptorSet](64),
	}
}

// Acquire returns the set cached for owner, allocating it from layout the
// first time.
func (c *DescriptorCache) Acquire(owner uuid.UUID, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	if set, ok := c.sets.Get(owner); ok {
		return set, nil
	}
	set, err := c.allocator.AllocateDescriptor(layout)
	if err != nil {
		return nil, err
	}
	c.sets.Put(owner, set)
	return set, nil
}

// Release forgets the set of owner. The set's storage is reclaimed on the
// next Reset.
func (c *DescriptorCache) Release(owner uuid.UUID) bool {
	return c.sets.Delete(owner)
}

func (c *DescriptorCache) Len() int {
	return c.sets.Count()
}

// Reset recycles every pool and drops all cached sets. The same GPU idle
// precondition as DescriptorAllocatorGrowable.ResetPools applies.
func (c *DescriptorCache) Reset() error {
	if err := c.allocator.ResetPools(); err != nil {
		return err
	}
	c.sets.Clear()
	return nil
}

func (c *DescriptorCache) Allocator() *DescriptorAllocatorGrowable {
	return c.allocator
}

func (c *DescriptorCache) Destroy() {
	c.sets.Clear()
	c.allocator.DestroyPools()
}

package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spaghettifunk/cadence/engine/core"
)

const (
	DefaultMaxSetsPerPool uint32  = 4096
	DefaultGrowthFactor   float32 = 1.5
)

// PoolSizeRatio declares how many descriptors of Type each set needs on
// average. A pool of N sets reserves N*Ratio descriptors of that type.
type PoolSizeRatio struct {
	Type  vk.DescriptorType
	Ratio float32
}

type DescriptorAllocatorConfig struct {
	// Capacity of the first pool.
	InitialSets uint32
	// Ceiling for the capacity of any later pool.
	MaxSetsPerPool uint32
	// Multiplier applied to the capacity after each pool creation.
	GrowthFactor float32
}

// DescriptorAllocatorGrowable hands out descriptor sets from a list of pools,
// creating larger pools as earlier ones fill up. Descriptor pools cannot be
// resized once created, so exhaustion is handled by moving on to a new pool.
//
// The allocator is not safe for concurrent use.
type DescriptorAllocatorGrowable struct {
	device      DescriptorDevice
	ratios      []PoolSizeRatio
	maxSets     uint32
	growth      float32
	setsPerPool uint32

	readyPools []vk.DescriptorPool
	fullPools  []vk.DescriptorPool

	poolsCreated uint64
	setsServed   uint64
}

func NewDescriptorAllocator(device DescriptorDevice, config DescriptorAllocatorConfig, ratios []PoolSizeRatio) (*DescriptorAllocatorGrowable, error) {
	if len(ratios) == 0 {
		return nil, errors.New("descriptor allocator needs at least one pool size ratio")
	}
	if config.InitialSets == 0 {
		return nil, errors.New("descriptor allocator needs a non-zero initial set count")
	}
	if config.MaxSetsPerPool == 0 {
		config.MaxSetsPerPool = DefaultMaxSetsPerPool
	}
	if config.GrowthFactor < 1 {
		config.GrowthFactor = DefaultGrowthFactor
	}

	return &DescriptorAllocatorGrowable{
		device:      device,
		ratios:      append([]PoolSizeRatio(nil), ratios...),
		maxSets:     config.MaxSetsPerPool,
		growth:      config.GrowthFactor,
		setsPerPool: min(config.InitialSets, config.MaxSetsPerPool),
	}, nil
}

// AllocateDescriptor returns a set for layout. Running out of pool space is
// recovered by retrying once in another pool; any other failure, or a
// second exhaustion, is returned wrapped in core.ErrDescriptorAllocation.
func (da *DescriptorAllocatorGrowable) AllocateDescriptor(layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	pool, err := da.getPool()
	if err != nil {
		return nil, err
	}

	set, result := da.device.AllocateDescriptorSet(pool, layout)
	if isPoolExhausted(result) {
		da.fullPools = append(da.fullPools, pool)

		pool, err = da.getPool()
		if err != nil {
			return nil, err
		}
		set, result = da.device.AllocateDescriptorSet(pool, layout)
	}

	if result != vk.Success {
		// The pool is still usable for smaller requests unless it ran dry.
		if isPoolExhausted(result) {
			da.fullPools = append(da.fullPools, pool)
		} else {
			da.readyPools = append(da.readyPools, pool)
		}
		err := errors.Wrapf(core.ErrDescriptorAllocation, "vkAllocateDescriptorSets: %s", VulkanResultString(result, false))
		core.LogError(err.Error())
		return nil, err
	}

	da.readyPools = append(da.readyPools, pool)
	da.setsServed++
	return set, nil
}

// ResetPools recycles every pool back into the ready list. Sets handed out
// earlier become invalid.
//
// The caller must guarantee that no submitted command buffer still
// references a set from this allocator, typically by waiting on the fences
// of every frame in flight.
func (da *DescriptorAllocatorGrowable) ResetPools() error {
	for _, pool := range da.readyPools {
		if err := da.device.ResetDescriptorPool(pool); err != nil {
			return errors.Wrap(err, "failed to reset descriptor pool")
		}
	}
	for i, pool := range da.fullPools {
		if err := da.device.ResetDescriptorPool(pool); err != nil {
			// Pools moved so far are ready now. Each pool lives in exactly
			// one list.
			da.fullPools = append(da.fullPools[:0], da.fullPools[i:]...)
			return errors.Wrap(err, "failed to reset descriptor pool")
		}
		da.readyPools = append(da.readyPools, pool)
	}
	da.fullPools = da.fullPools[:0]
	return nil
}

// DestroyPools destroys every pool, ready and full.
func (da *DescriptorAllocatorGrowable) DestroyPools() {
	for _, pool := range da.readyPools {
		da.device.DestroyDescriptorPool(pool)
	}
	for _, pool := range da.fullPools {
		da.device.DestroyDescriptorPool(pool)
	}
	da.readyPools = nil
	da.fullPools = nil
}

func (da *DescriptorAllocatorGrowable) ReadyCount() int     { return len(da.readyPools) }
func (da *DescriptorAllocatorGrowable) FullCount() int      { return len(da.fullPools) }
func (da *DescriptorAllocatorGrowable) PoolCount() int      { return len(da.readyPools) + len(da.fullPools) }
func (da *DescriptorAllocatorGrowable) SetsPerPool() uint32 { return da.setsPerPool }

// BuildStatsString renders the allocator state as JSON.
func (da *DescriptorAllocatorGrowable) BuildStatsString(detailed bool) string {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	obj.Name("Pools").Int(da.PoolCount())
	obj.Name("ReadyPools").Int(len(da.readyPools))
	obj.Name("FullPools").Int(len(da.fullPools))
	obj.Name("PoolsCreated").Int(int(da.poolsCreated))
	obj.Name("SetsServed").Int(int(da.setsServed))
	obj.Name("NextSetsPerPool").Int(int(da.setsPerPool))
	obj.Name("MaxSetsPerPool").Int(int(da.maxSets))

	if detailed {
		ratios := obj.Name("Ratios").Array()
		for _, r := range da.ratios {
			o := ratios.Object()
			o.Name("Type").Int(int(r.Type))
			o.Name("Ratio").Float64(float64(r.Ratio))
			o.End()
		}
		ratios.End()
	}
	obj.End()

	return string(writer.Bytes())
}

// getPool pops a ready pool, or creates a new one at the current capacity
// and grows the capacity for the next creation.
func (da *DescriptorAllocatorGrowable) getPool() (vk.DescriptorPool, error) {
	if n := len(da.readyPools); n > 0 {
		pool := da.readyPools[n-1]
		da.readyPools = da.readyPools[:n-1]
		return pool, nil
	}

	pool, err := da.createPool(da.setsPerPool)
	if err != nil {
		return nil, err
	}

	next := uint32(float32(da.setsPerPool) * da.growth)
	if da.growth > 1 && next <= da.setsPerPool {
		// Small capacities would otherwise truncate back to themselves.
		next = da.setsPerPool + 1
	}
	if next > da.maxSets {
		next = da.maxSets
	}
	da.setsPerPool = next
	return pool, nil
}

func (da *DescriptorAllocatorGrowable) createPool(setCount uint32) (vk.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, 0, len(da.ratios))
	for _, r := range da.ratios {
		count := uint32(r.Ratio * float32(setCount))
		if count == 0 {
			count = 1
		}
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            r.Type,
			DescriptorCount: count,
		})
	}

	pool, err := da.device.CreateDescriptorPool(setCount, sizes)
	if err != nil {
		err = errors.Wrapf(err, "failed to create descriptor pool for %d sets", setCount)
		core.LogError(err.Error())
		return nil, err
	}
	da.poolsCreated++
	core.LogDebug("descriptor pool created with capacity %d", setCount)
	return pool, nil
}

func isPoolExhausted(result vk.Result) bool {
	return result == vk.ErrorOutOfPoolMemory || result == vk.ErrorFragmentedPool
}

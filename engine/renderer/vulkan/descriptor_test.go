package vulkan

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRatios = []PoolSizeRatio{
	{Type: vk.DescriptorTypeUniformBuffer, Ratio: 1},
	{Type: vk.DescriptorTypeCombinedImageSampler, Ratio: 2},
	{Type: vk.DescriptorTypeStorageBuffer, Ratio: 0.5},
}

func newTestAllocator(t *testing.T, device *fakeDevice, initial, max uint32, growth float32) *DescriptorAllocatorGrowable {
	t.Helper()
	da, err := NewDescriptorAllocator(device, DescriptorAllocatorConfig{
		InitialSets:    initial,
		MaxSetsPerPool: max,
		GrowthFactor:   growth,
	}, testRatios)
	require.NoError(t, err)
	return da
}

func testLayout() vk.DescriptorSetLayout {
	return vk.DescriptorSetLayout(newHandle())
}

func TestDescriptorAllocatorLazyCreation(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 4, 4096, 1.5)

	assert.Equal(t, 0, da.PoolCount())
	assert.Empty(t, device.eventsMatching("create_pool"))

	_, err := da.AllocateDescriptor(testLayout())
	require.NoError(t, err)
	assert.Equal(t, []string{"create_pool:4"}, device.eventsMatching("create_pool"))
	assert.Equal(t, uint32(6), da.SetsPerPool())
}

func TestDescriptorAllocatorPoolSizes(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 4, 4096, 1.5)

	_, err := da.AllocateDescriptor(testLayout())
	require.NoError(t, err)

	pool := device.pools[device.poolOrder[0]]
	assert.Equal(t, []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: 4},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 8},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 2},
	}, pool.sizes)
}

func TestDescriptorAllocatorGrowthIsCapped(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 4, 10, 2)

	// Each pool holds its capacity; fill four pools.
	for i := 0; i < 4+8+10+10; i++ {
		_, err := da.AllocateDescriptor(testLayout())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"create_pool:4", "create_pool:8", "create_pool:10", "create_pool:10"},
		device.eventsMatching("create_pool"))
	assert.Equal(t, uint32(10), da.SetsPerPool())
}

func TestDescriptorAllocatorSmallCapacityStillGrows(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 1, 4096, 1.5)

	for i := 0; i < 3; i++ {
		_, err := da.AllocateDescriptor(testLayout())
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"create_pool:1", "create_pool:2"}, device.eventsMatching("create_pool"))
}

func TestDescriptorAllocatorRetriesOnceOnExhaustion(t *testing.T) {
	for _, result := range []vk.Result{vk.ErrorOutOfPoolMemory, vk.ErrorFragmentedPool} {
		t.Run(VulkanResultString(result, false), func(t *testing.T) {
			device := newFakeDevice()
			da := newTestAllocator(t, device, 4, 4096, 1.5)
			device.allocResults = []vk.Result{result}

			set, err := da.AllocateDescriptor(testLayout())
			require.NoError(t, err)
			assert.True(t, set != nil)
			assert.Equal(t, 1, da.FullCount())
			assert.Equal(t, 1, da.ReadyCount())
			assert.Equal(t, 2, da.PoolCount())
		})
	}
}

func TestDescriptorAllocatorDoubleFailure(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 4, 4096, 1.5)
	device.allocResults = []vk.Result{vk.ErrorOutOfPoolMemory, vk.ErrorOutOfPoolMemory}

	_, err := da.AllocateDescriptor(testLayout())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDescriptorAllocation))
	assert.Equal(t, 2, da.FullCount())
	assert.Equal(t, 0, da.ReadyCount())
}

func TestDescriptorAllocatorNonExhaustionFailureKeepsPoolReady(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 4, 4096, 1.5)
	device.allocResults = []vk.Result{vk.ErrorOutOfHostMemory}

	_, err := da.AllocateDescriptor(testLayout())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDescriptorAllocation))
	assert.Equal(t, 1, da.ReadyCount())
	assert.Equal(t, 0, da.FullCount())
}

func TestDescriptorAllocatorPoolCreationFailure(t *testing.T) {
	device := newFakeDevice()
	device.createPoolErr = errors.New("out of device memory")
	da := newTestAllocator(t, device, 4, 4096, 1.5)

	_, err := da.AllocateDescriptor(testLayout())
	require.Error(t, err)
	assert.Equal(t, 0, da.PoolCount())
}

func TestDescriptorAllocatorResetRecyclesPools(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 4, 4096, 1.5)
	layout := testLayout()

	// The fifth allocation overflows the first pool of four.
	for i := 0; i < 5; i++ {
		_, err := da.AllocateDescriptor(layout)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"create_pool:4", "create_pool:6"}, device.eventsMatching("create_pool"))
	assert.Equal(t, 1, da.FullCount())
	assert.Equal(t, 1, da.ReadyCount())

	require.NoError(t, da.ResetPools())
	assert.Equal(t, 0, da.FullCount())
	assert.Equal(t, 2, da.ReadyCount())

	// Capacity of 4+6 is back; no third pool is needed for another five.
	for i := 0; i < 5; i++ {
		_, err := da.AllocateDescriptor(layout)
		require.NoError(t, err)
	}
	assert.Len(t, device.eventsMatching("create_pool"), 2)
	assert.Equal(t, 2, da.PoolCount())

	da.DestroyPools()
	assert.Equal(t, 0, da.PoolCount())
	assert.Equal(t, 0, device.live["descriptor_pool"])
}

func TestDescriptorAllocatorPartialResetFailure(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 1, 4096, 2)
	layout := testLayout()

	for da.FullCount() < 2 {
		_, err := da.AllocateDescriptor(layout)
		require.NoError(t, err)
	}
	require.Len(t, device.poolOrder, 3)
	assert.Equal(t, 1, da.ReadyCount())

	// The first full pool resets, the second one fails.
	device.failReset = device.poolOrder[1]
	require.Error(t, da.ResetPools())
	assert.Equal(t, 1, da.FullCount())
	assert.Equal(t, 2, da.ReadyCount())
	assert.Equal(t, 3, da.PoolCount())

	da.DestroyPools()
	for i, pool := range device.poolOrder {
		assert.Equal(t, 1, device.poolDestroys[pool], "pool %d", i)
	}
	assert.Equal(t, 0, device.live["descriptor_pool"])
}

func TestDescriptorAllocatorRejectsBadConfig(t *testing.T) {
	device := newFakeDevice()
	_, err := NewDescriptorAllocator(device, DescriptorAllocatorConfig{InitialSets: 4}, nil)
	assert.Error(t, err)

	_, err = NewDescriptorAllocator(device, DescriptorAllocatorConfig{}, testRatios)
	assert.Error(t, err)

	da, err := NewDescriptorAllocator(device, DescriptorAllocatorConfig{InitialSets: 8000}, testRatios)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSetsPerPool, da.SetsPerPool())
}

func TestDescriptorAllocatorStats(t *testing.T) {
	device := newFakeDevice()
	da := newTestAllocator(t, device, 4, 4096, 1.5)
	for i := 0; i < 5; i++ {
		_, err := da.AllocateDescriptor(testLayout())
		require.NoError(t, err)
	}

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(da.BuildStatsString(false)), &stats))
	assert.Equal(t, float64(2), stats["Pools"])
	assert.Equal(t, float64(1), stats["FullPools"])
	assert.Equal(t, float64(5), stats["SetsServed"])
	assert.Equal(t, float64(9), stats["NextSetsPerPool"])
	assert.NotContains(t, stats, "Ratios")

	require.NoError(t, json.Unmarshal([]byte(da.BuildStatsString(true)), &stats))
	assert.Len(t, stats["Ratios"], 3)
}

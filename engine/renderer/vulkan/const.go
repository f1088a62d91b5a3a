package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

// Fence waits use a large but finite timeout so a hung GPU is detected.
const DefaultFenceTimeoutNs uint64 = 1_000_000_000

// Swapchain acquisition never times out on its own; the fence wait before it
// bounds the frame.
const acquireTimeoutNs uint64 = math.MaxUint64

var descriptorTypeNames = map[string]vk.DescriptorType{
	"sampler":                vk.DescriptorTypeSampler,
	"combined_image_sampler": vk.DescriptorTypeCombinedImageSampler,
	"sampled_image":          vk.DescriptorTypeSampledImage,
	"storage_image":          vk.DescriptorTypeStorageImage,
	"uniform_buffer":         vk.DescriptorTypeUniformBuffer,
	"storage_buffer":         vk.DescriptorTypeStorageBuffer,
	"uniform_buffer_dynamic": vk.DescriptorTypeUniformBufferDynamic,
	"storage_buffer_dynamic": vk.DescriptorTypeStorageBufferDynamic,
	"input_attachment":       vk.DescriptorTypeInputAttachment,
}

// PoolSizeRatiosFromConfig maps configured descriptor ratios to Vulkan types.
func PoolSizeRatiosFromConfig(ratios []core.DescriptorRatio) ([]PoolSizeRatio, error) {
	out := make([]PoolSizeRatio, 0, len(ratios))
	for _, r := range ratios {
		t, ok := descriptorTypeNames[r.Type]
		if !ok {
			return nil, errors.Wrapf(core.ErrInvalidConfig, "unknown descriptor type `%s`", r.Type)
		}
		out = append(out, PoolSizeRatio{Type: t, Ratio: r.Ratio})
	}
	return out, nil
}

// DescriptorAllocatorConfigFrom converts the descriptor section of the engine
// configuration.
func DescriptorAllocatorConfigFrom(cfg core.DescriptorConfig) DescriptorAllocatorConfig {
	return DescriptorAllocatorConfig{
		InitialSets:    cfg.InitialSets,
		MaxSetsPerPool: cfg.MaxSetsPerPool,
		GrowthFactor:   cfg.GrowthFactor,
	}
}

package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

// DescriptorLayoutBuilder collects bindings for a descriptor set layout.
type DescriptorLayoutBuilder struct {
	bindings []vk.DescriptorSetLayoutBinding
}

func (b *DescriptorLayoutBuilder) AddBinding(binding uint32, descriptorType vk.DescriptorType) *DescriptorLayoutBuilder {
	b.bindings = append(b.bindings, vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  descriptorType,
		DescriptorCount: 1,
	})
	return b
}

func (b *DescriptorLayoutBuilder) Clear() {
	b.bindings = b.bindings[:0]
}

// Build creates the layout with every binding visible to stages.
func (b *DescriptorLayoutBuilder) Build(device DescriptorDevice, stages vk.ShaderStageFlags) (vk.DescriptorSetLayout, error) {
	if len(b.bindings) == 0 {
		return nil, errors.New("descriptor set layout has no bindings")
	}
	bindings := make([]vk.DescriptorSetLayoutBinding, len(b.bindings))
	for i, binding := range b.bindings {
		binding.StageFlags |= stages
		bindings[i] = binding
	}

	layout, err := device.CreateDescriptorSetLayout(bindings)
	if err != nil {
		err = errors.Wrap(err, "failed to create descriptor set layout")
		core.LogError(err.Error())
		return nil, err
	}
	return layout, nil
}

// DescriptorWriter batches image and buffer writes and applies them to a set
// in a single update.
type DescriptorWriter struct {
	imageInfos  [][]vk.DescriptorImageInfo
	bufferInfos [][]vk.DescriptorBufferInfo
	writes      []vk.WriteDescriptorSet
}

func (w *DescriptorWriter) WriteImage(binding uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout, descriptorType vk.DescriptorType) {
	info := []vk.DescriptorImageInfo{{
		Sampler:     sampler,
		ImageView:   view,
		ImageLayout: layout,
	}}
	w.imageInfos = append(w.imageInfos, info)
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PImageInfo:      info,
	})
}

func (w *DescriptorWriter) WriteBuffer(binding uint32, buffer vk.Buffer, size, offset vk.DeviceSize, descriptorType vk.DescriptorType) {
	info := []vk.DescriptorBufferInfo{{
		Buffer: buffer,
		Offset: offset,
		Range:  size,
	}}
	w.bufferInfos = append(w.bufferInfos, info)
	w.writes = append(w.writes, vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PBufferInfo:     info,
	})
}

func (w *DescriptorWriter) Clear() {
	w.imageInfos = nil
	w.bufferInfos = nil
	w.writes = nil
}

// Len is the number of pending writes.
func (w *DescriptorWriter) Len() int {
	return len(w.writes)
}

// UpdateSet points every pending write at set and submits them.
func (w *DescriptorWriter) UpdateSet(device DescriptorDevice, set vk.DescriptorSet) {
	if len(w.writes) == 0 {
		return
	}
	writes := make([]vk.WriteDescriptorSet, len(w.writes))
	for i, write := range w.writes {
		write.DstSet = set
		writes[i] = write
	}
	device.UpdateDescriptorSets(writes)
}

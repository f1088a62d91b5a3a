package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type layoutRecorder struct {
	*fakeDevice
	bindings []vk.DescriptorSetLayoutBinding
	writes   []vk.WriteDescriptorSet
}

func (r *layoutRecorder) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	r.bindings = bindings
	return r.fakeDevice.CreateDescriptorSetLayout(bindings)
}

func (r *layoutRecorder) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	r.writes = writes
	r.fakeDevice.UpdateDescriptorSets(writes)
}

func TestDescriptorLayoutBuilder(t *testing.T) {
	device := &layoutRecorder{fakeDevice: newFakeDevice()}

	var builder DescriptorLayoutBuilder
	_, err := builder.Build(device, vk.ShaderStageFlags(vk.ShaderStageVertexBit))
	require.Error(t, err)

	builder.
		AddBinding(0, vk.DescriptorTypeUniformBuffer).
		AddBinding(1, vk.DescriptorTypeCombinedImageSampler)

	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	layout, err := builder.Build(device, stages)
	require.NoError(t, err)
	assert.True(t, layout != nil)

	require.Len(t, device.bindings, 2)
	for i, binding := range device.bindings {
		assert.Equal(t, uint32(i), binding.Binding)
		assert.Equal(t, uint32(1), binding.DescriptorCount)
		assert.Equal(t, stages, binding.StageFlags)
	}
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, device.bindings[1].DescriptorType)

	builder.Clear()
	_, err = builder.Build(device, stages)
	assert.Error(t, err)
}

func TestDescriptorWriterUpdateSet(t *testing.T) {
	device := &layoutRecorder{fakeDevice: newFakeDevice()}
	set := vk.DescriptorSet(newHandle())

	var writer DescriptorWriter
	writer.UpdateSet(device, set)
	assert.Nil(t, device.writes)

	buffer := vk.Buffer(newHandle())
	view := vk.ImageView(newHandle())
	sampler := vk.Sampler(newHandle())
	writer.WriteBuffer(0, buffer, 256, 64, vk.DescriptorTypeUniformBuffer)
	writer.WriteImage(1, view, sampler, vk.ImageLayoutShaderReadOnlyOptimal, vk.DescriptorTypeCombinedImageSampler)
	assert.Equal(t, 2, writer.Len())

	writer.UpdateSet(device, set)
	require.Len(t, device.writes, 2)
	for _, w := range device.writes {
		assert.True(t, sameHandle(set, w.DstSet))
	}
	assert.Equal(t, vk.DeviceSize(256), device.writes[0].PBufferInfo[0].Range)
	assert.Equal(t, vk.DeviceSize(64), device.writes[0].PBufferInfo[0].Offset)
	assert.True(t, sameHandle(view, device.writes[1].PImageInfo[0].ImageView))
	assert.Equal(t, []string{"update_sets:2"}, device.eventsMatching("update_sets"))

	writer.Clear()
	assert.Equal(t, 0, writer.Len())
}

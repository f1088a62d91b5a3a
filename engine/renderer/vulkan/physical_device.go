package vulkan

import (
	"runtime"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
)

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
}

// Family indices are -1 until a matching family is found.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

type VulkanPhysicalDevice struct {
	Handle     vk.PhysicalDevice
	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
	Queues     VulkanPhysicalDeviceQueueFamilyInfo
}

func selectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*VulkanPhysicalDevice, error) {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, nil); res != vk.Success {
		return nil, errors.Newf("failed to enumerate physical devices: %s", VulkanResultString(res, true))
	}
	if physicalDeviceCount == 0 {
		err := errors.New("no devices which support Vulkan were found")
		core.LogError(err.Error())
		return nil, err
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return nil, errors.Newf("failed to enumerate physical devices: %s", VulkanResultString(res, true))
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DiscreteGPU:          true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}

	// Prefer a discrete GPU but settle for anything that can present.
	for _, discrete := range []bool{requirements.DiscreteGPU, false} {
		requirements.DiscreteGPU = discrete
		for _, pd := range physicalDevices {
			selected, ok := physicalDeviceMeetsRequirements(pd, surface, &requirements)
			if ok {
				logPhysicalDevice(selected)
				return selected, nil
			}
		}
		if !discrete {
			break
		}
	}

	err := errors.New("no physical devices were found which meet the requirements")
	core.LogError(err.Error())
	return nil, err
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, requirements *VulkanPhysicalDeviceRequirements) (*VulkanPhysicalDevice, bool) {
	out := &VulkanPhysicalDevice{
		Handle: device,
		Queues: VulkanPhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1},
	}
	vk.GetPhysicalDeviceProperties(device, &out.Properties)
	out.Properties.Deref()
	vk.GetPhysicalDeviceFeatures(device, &out.Features)
	out.Features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(device, &out.Memory)
	out.Memory.Deref()

	name := vk.ToString(out.Properties.DeviceName[:])

	// Discrete GPU?
	if requirements.DiscreteGPU && out.Properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("Device '%s' is not a discrete GPU, and one is required. Skipping.", name)
		return nil, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()

		// Graphics queue?
		graphics := vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0
		if graphics && out.Queues.GraphicsFamilyIndex < 0 {
			out.Queues.GraphicsFamilyIndex = int32(i)
		}

		// Present queue?
		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return nil, false
		}
		if supportsPresent == vk.True {
			// A family doing both avoids concurrent sharing on the swapchain.
			if out.Queues.PresentFamilyIndex < 0 || (graphics && out.Queues.GraphicsFamilyIndex == int32(i)) {
				out.Queues.PresentFamilyIndex = int32(i)
			}
		}
	}

	core.LogDebug("Graphics | Present | Name")
	core.LogDebug("       %t |       %t | %s",
		out.Queues.GraphicsFamilyIndex >= 0,
		out.Queues.PresentFamilyIndex >= 0,
		name)

	if requirements.Graphics && out.Queues.GraphicsFamilyIndex < 0 {
		return nil, false
	}
	if requirements.Present && out.Queues.PresentFamilyIndex < 0 {
		return nil, false
	}

	// Query swapchain support.
	support, err := querySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogDebug("Required swapchain support not present, skipping device.")
		return nil, false
	}

	// Device extensions.
	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensionNames(device)
		if err != nil {
			return nil, false
		}
		for _, required := range requirements.DeviceExtensionNames {
			if _, ok := available[required]; !ok {
				core.LogDebug("Required extension not found: '%s', skipping device.", required)
				return nil, false
			}
		}
	}
	return out, true
}

func deviceExtensionNames(device vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil, errors.Newf("failed to enumerate device extensions: %s", VulkanResultString(res, true))
	}
	properties := make([]vk.ExtensionProperties, count)
	if count > 0 {
		if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, properties); res != vk.Success {
			return nil, errors.Newf("failed to enumerate device extensions: %s", VulkanResultString(res, true))
		}
	}
	names := make(map[string]struct{}, count)
	for i := range properties {
		properties[i].Deref()
		end := FindFirstZeroInByteArray(properties[i].ExtensionName[:])
		names[vk.ToString(properties[i].ExtensionName[:end+1])] = struct{}{}
	}
	return names, nil
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (*SwapchainSupportInfo, error) {
	support := &SwapchainSupportInfo{}

	// Surface capabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &support.Capabilities); res != vk.Success {
		return nil, errors.Newf("failed to get surface capabilities: %s", VulkanResultString(res, true))
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	// Surface formats
	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		return nil, errors.Newf("failed to get surface formats: %s", VulkanResultString(res, true))
	}
	if formatCount != 0 {
		support.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, support.Formats); res != vk.Success {
			return nil, errors.Newf("failed to get surface formats: %s", VulkanResultString(res, true))
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	// Present modes
	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, nil); res != vk.Success {
		return nil, errors.Newf("failed to get surface present modes: %s", VulkanResultString(res, true))
	}
	if presentModeCount != 0 {
		support.PresentModes = make([]vk.PresentMode, presentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &presentModeCount, support.PresentModes); res != vk.Success {
			return nil, errors.Newf("failed to get surface present modes: %s", VulkanResultString(res, true))
		}
	}
	return support, nil
}

func detectDepthFormat(device vk.PhysicalDevice) (vk.Format, bool) {
	// Format candidates
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device, candidate, &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			return candidate, true
		}
	}
	return vk.FormatUndefined, false
}

func logPhysicalDevice(pd *VulkanPhysicalDevice) {
	core.LogInfo("Selected device: '%s'.", vk.ToString(pd.Properties.DeviceName[:]))
	// GPU type, etc.
	switch pd.Properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(pd.Properties.DriverVersion).Major(),
		vk.Version(pd.Properties.DriverVersion).Minor(),
		vk.Version(pd.Properties.DriverVersion).Patch(),
	)
	// Vulkan API version.
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(pd.Properties.ApiVersion).Major(),
		vk.Version(pd.Properties.ApiVersion).Minor(),
		vk.Version(pd.Properties.ApiVersion).Patch(),
	)

	// Memory information
	for j := uint32(0); j < pd.Memory.MemoryHeapCount; j++ {
		pd.Memory.MemoryHeaps[j].Deref()
		memorySizeGib := float64(pd.Memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(pd.Memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

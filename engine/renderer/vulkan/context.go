package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/cadence/engine/core"
	"golang.org/x/exp/slices"
)

// SurfaceSource is the platform side of context creation: the loader entry
// point, the instance extensions the window system needs, and the surface.
type SurfaceSource interface {
	GetInstanceProcAddress() unsafe.Pointer
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
}

type ContextConfig struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and the debug report
	// callback.
	Validation bool
}

// VulkanContext owns the instance, surface, logical device and queues. It is
// the production Device.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	surface        vk.Surface
	debugMessenger vk.DebugReportCallback

	physical      *VulkanPhysicalDevice
	LogicalDevice vk.Device

	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	graphicsCommandPool vk.CommandPool
	depthFormat         vk.Format

	locks *VulkanLockPool
}

func NewVulkanContext(source SurfaceSource, config ContextConfig) (*VulkanContext, error) {
	procAddr := source.GetInstanceProcAddress()
	if procAddr == nil {
		err := errors.New("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		err = errors.Wrap(err, "failed to initialize vk")
		core.LogError(err.Error())
		return nil, err
	}

	vc := &VulkanContext{
		// TODO: custom allocator.
		Allocator: nil,
		locks:     NewVulkanLockPool(),
	}

	if err := vc.createInstance(source, config); err != nil {
		return nil, err
	}

	// Debugger
	if config.Validation {
		if err := vc.createDebugger(); err != nil {
			vc.Destroy()
			return nil, err
		}
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := source.CreateSurface(vc.Instance)
	if err != nil {
		vc.Destroy()
		err = errors.Wrap(err, "failed to create platform surface")
		core.LogError(err.Error())
		return nil, err
	}
	vc.surface = surface
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := vc.createDevice(); err != nil {
		vc.Destroy()
		return nil, err
	}
	return vc, nil
}

func (vc *VulkanContext) createInstance(source SurfaceSource, config ContextConfig) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(config.ApplicationName),
		PEngineName:        VulkanSafeString("Cadence Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	for _, ext := range source.RequiredInstanceExtensions() {
		if !slices.Contains(requiredExtensions, ext) {
			requiredExtensions = append(requiredExtensions, ext)
		}
	}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if config.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogDebug("Required extensions: %v", requiredExtensions)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers.
	requiredValidationLayerNames := []string{}
	if config.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}

		available, err := instanceLayerNames()
		if err != nil {
			return err
		}
		// Verify all required layers are available.
		for _, name := range requiredValidationLayerNames {
			if !slices.Contains(available, name) {
				err := errors.Newf("required validation layer is missing: %s", name)
				core.LogError(err.Error())
				return err
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance); res != vk.Success {
		err := errors.Newf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func instanceLayerNames() ([]string, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return nil, errors.Newf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return nil, errors.Newf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
	}
	names := make([]string, 0, count)
	for i := range layers {
		layers[i].Deref()
		end := FindFirstZeroInByteArray(layers[i].LayerName[:])
		names = append(names, vk.ToString(layers[i].LayerName[:end+1]))
	}
	return names, nil
}

func (vc *VulkanContext) createDebugger() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, vc.Allocator, &dbg)); err != nil {
		err = errors.Wrap(err, "vk.CreateDebugReportCallback failed")
		core.LogError(err.Error())
		return err
	}
	vc.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (vc *VulkanContext) createDevice() error {
	pd, err := selectPhysicalDevice(vc.Instance, vc.surface)
	if err != nil {
		return err
	}
	vc.physical = pd

	depthFormat, ok := detectDepthFormat(pd.Handle)
	if !ok {
		err := errors.New("failed to find a supported depth format")
		core.LogError(err.Error())
		return err
	}
	vc.depthFormat = depthFormat

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(pd.Queues.GraphicsFamilyIndex)}
	if pd.Queues.PresentFamilyIndex != pd.Queues.GraphicsFamilyIndex {
		indices = append(indices, uint32(pd.Queues.PresentFamilyIndex))
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	available, err := deviceExtensionNames(pd.Handle)
	if err != nil {
		return err
	}
	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if _, ok := available["VK_KHR_portability_subset"]; ok {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if res := vk.CreateDevice(pd.Handle, &deviceCreateInfo, vc.Allocator, &device); res != vk.Success {
		err := errors.Newf("failed to create logical device: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	vc.LogicalDevice = device
	core.LogInfo("Logical device created.")

	// Get queues.
	var graphicsQueue, presentQueue vk.Queue
	vk.GetDeviceQueue(device, uint32(pd.Queues.GraphicsFamilyIndex), 0, &graphicsQueue)
	vk.GetDeviceQueue(device, uint32(pd.Queues.PresentFamilyIndex), 0, &presentQueue)
	vc.graphicsQueue = graphicsQueue
	vc.presentQueue = presentQueue
	vc.locks.SetQueueFamily(uint32(pd.Queues.GraphicsFamilyIndex))
	vc.locks.SetQueueFamily(uint32(pd.Queues.PresentFamilyIndex))
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(pd.Queues.GraphicsFamilyIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device, &poolCreateInfo, vc.Allocator, &pool); res != vk.Success {
		err := errors.Newf("failed to create graphics command pool: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	vc.graphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")
	return nil
}

// Destroy tears down everything in reverse creation order. Resources created
// through the context must already be destroyed.
func (vc *VulkanContext) Destroy() {
	if vc.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.LogicalDevice)

		core.LogDebug("Destroying command pools...")
		if vc.graphicsCommandPool != nil {
			vk.DestroyCommandPool(vc.LogicalDevice, vc.graphicsCommandPool, vc.Allocator)
			vc.graphicsCommandPool = nil
		}
		vc.graphicsQueue = nil
		vc.presentQueue = nil

		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(vc.LogicalDevice, vc.Allocator)
		vc.LogicalDevice = nil
	}
	// Physical devices are not destroyed.
	vc.physical = nil

	if vc.surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vc.Instance, vc.surface, vc.Allocator)
		vc.surface = vk.NullSurface
	}
	if vc.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugMessenger, vc.Allocator)
		vc.debugMessenger = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	memoryProperties := vc.physical.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// Sync

func (vc *VulkanContext) CreateFence(signaled bool) (vk.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(vc.LogicalDevice, &info, vc.Allocator, &fence)); err != nil {
		return nil, errors.Wrap(err, "vkCreateFence")
	}
	return fence, nil
}

func (vc *VulkanContext) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(vc.LogicalDevice, fence, vc.Allocator)
}

func (vc *VulkanContext) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(vc.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNs)
}

func (vc *VulkanContext) ResetFence(fence vk.Fence) error {
	if err := vk.Error(vk.ResetFences(vc.LogicalDevice, 1, []vk.Fence{fence})); err != nil {
		return errors.Wrap(err, "vkResetFences")
	}
	return nil
}

func (vc *VulkanContext) CreateSemaphore() (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	var semaphore vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(vc.LogicalDevice, &info, vc.Allocator, &semaphore)); err != nil {
		return nil, errors.Wrap(err, "vkCreateSemaphore")
	}
	return semaphore, nil
}

func (vc *VulkanContext) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(vc.LogicalDevice, semaphore, vc.Allocator)
}

func (vc *VulkanContext) WaitIdle() error {
	if err := vk.Error(vk.DeviceWaitIdle(vc.LogicalDevice)); err != nil {
		if errors.Is(err, vk.Error(vk.ErrorDeviceLost)) {
			return errors.WithStack(core.ErrDeviceLost)
		}
		return errors.Wrap(err, "vkDeviceWaitIdle")
	}
	return nil
}

// Commands

func (vc *VulkanContext) AllocateCommandBuffer(primary bool) (vk.CommandBuffer, error) {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        vc.graphicsCommandPool,
		Level:              vk.CommandBufferLevelSecondary,
		CommandBufferCount: 1,
	}
	if primary {
		info.Level = vk.CommandBufferLevelPrimary
	}
	buffers := make([]vk.CommandBuffer, 1)
	err := vc.locks.SafeCall(CommandPoolManagement, func() error {
		return vk.Error(vk.AllocateCommandBuffers(vc.LogicalDevice, &info, buffers))
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkAllocateCommandBuffers")
	}
	return buffers[0], nil
}

func (vc *VulkanContext) FreeCommandBuffer(cb vk.CommandBuffer) {
	_ = vc.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(vc.LogicalDevice, vc.graphicsCommandPool, 1, []vk.CommandBuffer{cb})
		return nil
	})
}

func (vc *VulkanContext) ResetCommandBuffer(cb vk.CommandBuffer) error {
	if err := vk.Error(vk.ResetCommandBuffer(cb, 0)); err != nil {
		return errors.Wrap(err, "vkResetCommandBuffer")
	}
	return nil
}

func (vc *VulkanContext) BeginCommandBuffer(cb vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	if err := vk.Error(vk.BeginCommandBuffer(cb, &info)); err != nil {
		return errors.Wrap(err, "vkBeginCommandBuffer")
	}
	return nil
}

func (vc *VulkanContext) EndCommandBuffer(cb vk.CommandBuffer) error {
	if err := vk.Error(vk.EndCommandBuffer(cb)); err != nil {
		return errors.Wrap(err, "vkEndCommandBuffer")
	}
	return nil
}

func (vc *VulkanContext) Submit(s Submission) error {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{s.CommandBuffer},
	}
	if s.Wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{s.Wait}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{s.WaitStage}
	}
	if s.Signal != nil {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{s.Signal}
	}
	err := vc.locks.SafeQueueCall(uint32(vc.physical.Queues.GraphicsFamilyIndex), func() error {
		return vk.Error(vk.QueueSubmit(vc.graphicsQueue, 1, []vk.SubmitInfo{info}, s.Fence))
	})
	if err != nil {
		if errors.Is(err, vk.Error(vk.ErrorDeviceLost)) {
			return errors.WithStack(core.ErrDeviceLost)
		}
		return err
	}
	return nil
}

func (vc *VulkanContext) SubmitAndWait(cb vk.CommandBuffer) error {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	return vc.locks.SafeQueueCall(uint32(vc.physical.Queues.GraphicsFamilyIndex), func() error {
		if err := vk.Error(vk.QueueSubmit(vc.graphicsQueue, 1, []vk.SubmitInfo{info}, vk.NullFence)); err != nil {
			return errors.Wrap(err, "vkQueueSubmit")
		}
		// Wait for it to finish
		if err := vk.Error(vk.QueueWaitIdle(vc.graphicsQueue)); err != nil {
			return errors.Wrap(err, "vkQueueWaitIdle")
		}
		return nil
	})
}

// Presentation

func (vc *VulkanContext) QuerySwapchainSupport() (*SwapchainSupportInfo, error) {
	return querySwapchainSupport(vc.physical.Handle, vc.surface)
}

func (vc *VulkanContext) Surface() vk.Surface {
	return vc.surface
}

func (vc *VulkanContext) QueueFamilyIndices() (graphics, present uint32) {
	return uint32(vc.physical.Queues.GraphicsFamilyIndex), uint32(vc.physical.Queues.PresentFamilyIndex)
}

func (vc *VulkanContext) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(vc.LogicalDevice, info, vc.Allocator, &swapchain)); err != nil {
		return vk.NullSwapchain, errors.Wrap(err, "vkCreateSwapchainKHR")
	}
	return swapchain, nil
}

func (vc *VulkanContext) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(vc.LogicalDevice, swapchain, vc.Allocator)
}

func (vc *VulkanContext) GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	if err := vk.Error(vk.GetSwapchainImages(vc.LogicalDevice, swapchain, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vkGetSwapchainImagesKHR")
	}
	images := make([]vk.Image, count)
	if err := vk.Error(vk.GetSwapchainImages(vc.LogicalDevice, swapchain, &count, images)); err != nil {
		return nil, errors.Wrap(err, "vkGetSwapchainImagesKHR")
	}
	return images, nil
}

func (vc *VulkanContext) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(vc.LogicalDevice, info, vc.Allocator, &view)); err != nil {
		return nil, errors.Wrap(err, "vkCreateImageView")
	}
	return view, nil
}

func (vc *VulkanContext) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(vc.LogicalDevice, view, vc.Allocator)
}

func (vc *VulkanContext) AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, signal vk.Semaphore) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(vc.LogicalDevice, swapchain, timeoutNs, signal, vk.NullFence, &imageIndex)
	return imageIndex, res
}

func (vc *VulkanContext) Present(swapchain vk.Swapchain, imageIndex uint32, wait vk.Semaphore) vk.Result {
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain},
		PImageIndices:      []uint32{imageIndex},
	}
	var res vk.Result
	_ = vc.locks.SafeQueueCall(uint32(vc.physical.Queues.PresentFamilyIndex), func() error {
		res = vk.QueuePresent(vc.presentQueue, &info)
		return nil
	})
	return res
}

// Descriptors

func (vc *VulkanContext) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (vk.DescriptorPool, error) {
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(vc.LogicalDevice, &info, vc.Allocator, &pool)); err != nil {
		return nil, errors.Wrap(err, "vkCreateDescriptorPool")
	}
	return pool, nil
}

func (vc *VulkanContext) DestroyDescriptorPool(pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(vc.LogicalDevice, pool, vc.Allocator)
}

func (vc *VulkanContext) ResetDescriptorPool(pool vk.DescriptorPool) error {
	if err := vk.Error(vk.ResetDescriptorPool(vc.LogicalDevice, pool, 0)); err != nil {
		return errors.Wrap(err, "vkResetDescriptorPool")
	}
	return nil
}

func (vc *VulkanContext) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	res := vk.AllocateDescriptorSets(vc.LogicalDevice, &info, &set)
	return set, res
}

func (vc *VulkanContext) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(vc.LogicalDevice, &info, vc.Allocator, &layout)); err != nil {
		return nil, errors.Wrap(err, "vkCreateDescriptorSetLayout")
	}
	return layout, nil
}

func (vc *VulkanContext) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(vc.LogicalDevice, layout, vc.Allocator)
}

func (vc *VulkanContext) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(vc.LogicalDevice, uint32(len(writes)), writes, 0, nil)
}

// Render targets

func (vc *VulkanContext) DepthFormat() vk.Format {
	return vc.depthFormat
}

func (vc *VulkanContext) CreateImage(config ImageConfig) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:  config.Width,
		Height: config.Height,
		Format: config.Format,
	}

	// Creation info.
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  config.Width,
			Height: config.Height,
			Depth:  1, // TODO: Support configurable depth.
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        config.Format,
		Tiling:        config.Tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         config.Usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	if err := vk.Error(vk.CreateImage(vc.LogicalDevice, &imageCreateInfo, vc.Allocator, &image.Handle)); err != nil {
		return nil, errors.Wrap(err, "vkCreateImage")
	}

	// Query memory requirements.
	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vc.LogicalDevice, image.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := vc.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(config.MemoryFlags))
	if memoryType == -1 {
		vc.DestroyImage(image)
		return nil, errors.New("required memory type not found, image not valid")
	}

	// Allocate memory
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if err := vk.Error(vk.AllocateMemory(vc.LogicalDevice, &allocateInfo, vc.Allocator, &image.Memory)); err != nil {
		vc.DestroyImage(image)
		return nil, errors.Wrap(err, "vkAllocateMemory")
	}

	// Bind the memory
	if err := vk.Error(vk.BindImageMemory(vc.LogicalDevice, image.Handle, image.Memory, 0)); err != nil {
		vc.DestroyImage(image)
		return nil, errors.Wrap(err, "vkBindImageMemory")
	}

	// Create view
	if config.CreateView {
		viewCreateInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image.Handle,
			ViewType: vk.ImageViewType2d,
			Format:   config.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     config.ViewAspect,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		view, err := vc.CreateImageView(&viewCreateInfo)
		if err != nil {
			vc.DestroyImage(image)
			return nil, err
		}
		image.View = view
	}
	return image, nil
}

func (vc *VulkanContext) DestroyImage(image *VulkanImage) {
	if image.View != nil {
		vk.DestroyImageView(vc.LogicalDevice, image.View, vc.Allocator)
		image.View = nil
	}
	if image.Memory != nil {
		vk.FreeMemory(vc.LogicalDevice, image.Memory, vc.Allocator)
		image.Memory = nil
	}
	if image.Handle != nil {
		vk.DestroyImage(vc.LogicalDevice, image.Handle, vc.Allocator)
		image.Handle = nil
	}
}

func (vc *VulkanContext) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var pass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(vc.LogicalDevice, info, vc.Allocator, &pass)); err != nil {
		return nil, errors.Wrap(err, "vkCreateRenderPass")
	}
	return pass, nil
}

func (vc *VulkanContext) DestroyRenderPass(pass vk.RenderPass) {
	vk.DestroyRenderPass(vc.LogicalDevice, pass, vc.Allocator)
}

func (vc *VulkanContext) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	if err := vk.Error(vk.CreateFramebuffer(vc.LogicalDevice, info, vc.Allocator, &framebuffer)); err != nil {
		return nil, errors.Wrap(err, "vkCreateFramebuffer")
	}
	return framebuffer, nil
}

func (vc *VulkanContext) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(vc.LogicalDevice, framebuffer, vc.Allocator)
}

func (vc *VulkanContext) CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})
}

func (vc *VulkanContext) CmdSetScissor(cb vk.CommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})
}

func (vc *VulkanContext) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(cb, info, vk.SubpassContentsInline)
}

func (vc *VulkanContext) CmdEndRenderPass(cb vk.CommandBuffer) {
	vk.CmdEndRenderPass(cb)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

var _ Device = (*VulkanContext)(nil)

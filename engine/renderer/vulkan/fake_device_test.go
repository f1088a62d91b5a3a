package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

// Vulkan handles are pointers to C types, so the fake must never hand out
// Go heap addresses for them. A counter gives unique, non-nil values the
// garbage collector ignores.
var handleSeq uintptr

func newHandle() unsafe.Pointer {
	handleSeq += 8
	return unsafe.Pointer(handleSeq)
}

// sameHandle compares two handles without reflection. testify's reflective
// equality panics on not-in-heap pointers.
func sameHandle[T comparable](a, b T) bool { return a == b }

type fakeFence struct {
	id       int
	signaled bool
}

type fakePool struct {
	maxSets uint32
	used    uint32
	sizes   []vk.DescriptorPoolSize
}

type fakeSwapchain struct {
	info   vk.SwapchainCreateInfo
	images []vk.Image
}

// fakeDevice records the calls the frame loop makes and simulates the
// parts of device behaviour the loop depends on: fences signal when waited
// on, descriptor pools hold maxSets sets, acquire cycles through images.
type fakeDevice struct {
	events []string
	live   map[string]int

	fences     map[vk.Fence]*fakeFence
	pools      map[vk.DescriptorPool]*fakePool
	poolOrder  []vk.DescriptorPool
	swapchains map[vk.Swapchain]*fakeSwapchain
	chainOrder []vk.Swapchain

	surface        vk.Surface
	support        SwapchainSupportInfo
	graphicsFamily uint32
	presentFamily  uint32

	acquireResults []vk.Result
	presentResults []vk.Result
	allocResults   []vk.Result
	waitResult     vk.Result
	nextImage      uint32

	submissions           []Submission
	fenceSignaledAtSubmit bool
	createPoolErr         error
	submitErr             error
	// Failures returned by the next CreateSwapchain calls, in order.
	createSwapchainErrs []error
	// OldSwapchain of every CreateSwapchain call, including failed ones.
	oldSwapchains []vk.Swapchain
	// Fails ResetDescriptorPool for this pool.
	failReset vk.DescriptorPool
	// Destroy calls per pool, to catch double destroys.
	poolDestroys map[vk.DescriptorPool]int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		live:         map[string]int{},
		surface:      vk.Surface(newHandle()),
		fences:       map[vk.Fence]*fakeFence{},
		pools:        map[vk.DescriptorPool]*fakePool{},
		swapchains:   map[vk.Swapchain]*fakeSwapchain{},
		poolDestroys: map[vk.DescriptorPool]int{},
		support: SwapchainSupportInfo{
			Capabilities: vk.SurfaceCapabilities{
				MinImageCount:    2,
				MaxImageCount:    8,
				CurrentExtent:    vk.Extent2D{Width: extentAuto, Height: extentAuto},
				MinImageExtent:   vk.Extent2D{Width: 1, Height: 1},
				MaxImageExtent:   vk.Extent2D{Width: 4096, Height: 4096},
				CurrentTransform: vk.SurfaceTransformIdentityBit,
			},
			Formats: []vk.SurfaceFormat{
				{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
				{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		},
		waitResult: vk.Success,
	}
}

func (d *fakeDevice) record(format string, args ...interface{}) {
	d.events = append(d.events, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) fenceID(fence vk.Fence) int {
	if f, ok := d.fences[fence]; ok {
		return f.id
	}
	return -1
}

// eventsMatching returns the recorded events that start with prefix.
func (d *fakeDevice) eventsMatching(prefix string) []string {
	var out []string
	for _, e := range d.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

func (d *fakeDevice) indexOf(event string, from int) int {
	for i := from; i < len(d.events); i++ {
		if d.events[i] == event {
			return i
		}
	}
	return -1
}

func (d *fakeDevice) liveObjects() int {
	total := 0
	for _, n := range d.live {
		total += n
	}
	return total
}

// SyncDevice

func (d *fakeDevice) CreateFence(signaled bool) (vk.Fence, error) {
	fence := vk.Fence(newHandle())
	d.fences[fence] = &fakeFence{id: len(d.fences), signaled: signaled}
	d.live["fence"]++
	return fence, nil
}

func (d *fakeDevice) DestroyFence(fence vk.Fence) {
	delete(d.fences, fence)
	d.live["fence"]--
}

// WaitForFence completes the outstanding work instantly unless a failure is
// injected through waitResult.
func (d *fakeDevice) WaitForFence(fence vk.Fence, timeoutNs uint64) vk.Result {
	d.record("wait:%d", d.fenceID(fence))
	if d.waitResult != vk.Success {
		return d.waitResult
	}
	d.fences[fence].signaled = true
	return vk.Success
}

func (d *fakeDevice) ResetFence(fence vk.Fence) error {
	d.record("reset:%d", d.fenceID(fence))
	d.fences[fence].signaled = false
	return nil
}

func (d *fakeDevice) CreateSemaphore() (vk.Semaphore, error) {
	d.live["semaphore"]++
	return vk.Semaphore(newHandle()), nil
}

func (d *fakeDevice) DestroySemaphore(semaphore vk.Semaphore) {
	d.live["semaphore"]--
}

func (d *fakeDevice) WaitIdle() error {
	d.record("wait_idle")
	for _, f := range d.fences {
		f.signaled = true
	}
	return nil
}

// CommandDevice

func (d *fakeDevice) AllocateCommandBuffer(primary bool) (vk.CommandBuffer, error) {
	d.live["command_buffer"]++
	return vk.CommandBuffer(newHandle()), nil
}

func (d *fakeDevice) FreeCommandBuffer(cb vk.CommandBuffer) {
	d.live["command_buffer"]--
}

func (d *fakeDevice) ResetCommandBuffer(cb vk.CommandBuffer) error {
	return nil
}

func (d *fakeDevice) BeginCommandBuffer(cb vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	d.record("begin")
	return nil
}

func (d *fakeDevice) EndCommandBuffer(cb vk.CommandBuffer) error {
	d.record("end")
	return nil
}

func (d *fakeDevice) Submit(s Submission) error {
	d.record("submit:%d", d.fenceID(s.Fence))
	if f, ok := d.fences[s.Fence]; ok && f.signaled {
		d.fenceSignaledAtSubmit = true
	}
	if d.submitErr != nil {
		return d.submitErr
	}
	d.submissions = append(d.submissions, s)
	return nil
}

func (d *fakeDevice) SubmitAndWait(cb vk.CommandBuffer) error {
	d.record("submit_and_wait")
	return nil
}

// PresentDevice

func (d *fakeDevice) QuerySwapchainSupport() (*SwapchainSupportInfo, error) {
	support := d.support
	return &support, nil
}

func (d *fakeDevice) Surface() vk.Surface {
	return d.surface
}

func (d *fakeDevice) QueueFamilyIndices() (graphics, present uint32) {
	return d.graphicsFamily, d.presentFamily
}

func (d *fakeDevice) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	d.oldSwapchains = append(d.oldSwapchains, info.OldSwapchain)
	if len(d.createSwapchainErrs) > 0 {
		err := d.createSwapchainErrs[0]
		d.createSwapchainErrs = d.createSwapchainErrs[1:]
		if err != nil {
			d.record("create_swapchain_failed")
			return vk.NullSwapchain, err
		}
	}
	handle := vk.Swapchain(newHandle())
	sc := &fakeSwapchain{info: *info}
	for i := uint32(0); i < info.MinImageCount; i++ {
		sc.images = append(sc.images, vk.Image(newHandle()))
	}
	d.swapchains[handle] = sc
	d.chainOrder = append(d.chainOrder, handle)
	d.live["swapchain"]++
	d.record("create_swapchain:%d", len(d.chainOrder)-1)
	return handle, nil
}

func (d *fakeDevice) chainIndex(handle vk.Swapchain) int {
	for i, h := range d.chainOrder {
		if h == handle {
			return i
		}
	}
	return -1
}

func (d *fakeDevice) DestroySwapchain(swapchain vk.Swapchain) {
	d.record("destroy_swapchain:%d", d.chainIndex(swapchain))
	delete(d.swapchains, swapchain)
	d.live["swapchain"]--
}

func (d *fakeDevice) GetSwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	sc, ok := d.swapchains[swapchain]
	if !ok {
		return nil, errors.New("unknown swapchain")
	}
	return sc.images, nil
}

func (d *fakeDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	d.live["image_view"]++
	return vk.ImageView(newHandle()), nil
}

func (d *fakeDevice) DestroyImageView(view vk.ImageView) {
	d.record("destroy_view")
	d.live["image_view"]--
}

func (d *fakeDevice) AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, signal vk.Semaphore) (uint32, vk.Result) {
	d.record("acquire")
	result := vk.Success
	if len(d.acquireResults) > 0 {
		result = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
		if result != vk.Success && result != vk.Suboptimal {
			return 0, result
		}
	}
	images := uint32(len(d.swapchains[swapchain].images))
	index := d.nextImage % images
	d.nextImage++
	return index, result
}

func (d *fakeDevice) Present(swapchain vk.Swapchain, imageIndex uint32, wait vk.Semaphore) vk.Result {
	d.record("present:%d", imageIndex)
	if len(d.presentResults) > 0 {
		result := d.presentResults[0]
		d.presentResults = d.presentResults[1:]
		return result
	}
	return vk.Success
}

// DescriptorDevice

func (d *fakeDevice) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (vk.DescriptorPool, error) {
	if d.createPoolErr != nil {
		return nil, d.createPoolErr
	}
	pool := vk.DescriptorPool(newHandle())
	d.pools[pool] = &fakePool{maxSets: maxSets, sizes: sizes}
	d.poolOrder = append(d.poolOrder, pool)
	d.live["descriptor_pool"]++
	d.record("create_pool:%d", maxSets)
	return pool, nil
}

func (d *fakeDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	d.poolDestroys[pool]++
	delete(d.pools, pool)
	d.live["descriptor_pool"]--
}

func (d *fakeDevice) ResetDescriptorPool(pool vk.DescriptorPool) error {
	if d.failReset != nil && pool == d.failReset {
		return errors.New("reset descriptor pool failed")
	}
	d.pools[pool].used = 0
	return nil
}

func (d *fakeDevice) AllocateDescriptorSet(pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	if len(d.allocResults) > 0 {
		result := d.allocResults[0]
		d.allocResults = d.allocResults[1:]
		if result != vk.Success {
			return nil, result
		}
	}
	p := d.pools[pool]
	if p.used >= p.maxSets {
		return nil, vk.ErrorOutOfPoolMemory
	}
	p.used++
	return vk.DescriptorSet(newHandle()), vk.Success
}

func (d *fakeDevice) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	d.live["descriptor_set_layout"]++
	return vk.DescriptorSetLayout(newHandle()), nil
}

func (d *fakeDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	d.live["descriptor_set_layout"]--
}

func (d *fakeDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	d.record("update_sets:%d", len(writes))
}

// RenderDevice

func (d *fakeDevice) DepthFormat() vk.Format {
	return vk.FormatD32Sfloat
}

func (d *fakeDevice) CreateImage(config ImageConfig) (*VulkanImage, error) {
	d.live["image"]++
	image := &VulkanImage{
		Handle: vk.Image(newHandle()),
		Memory: vk.DeviceMemory(newHandle()),
		Width:  config.Width,
		Height: config.Height,
		Format: config.Format,
	}
	if config.CreateView {
		image.View = vk.ImageView(newHandle())
	}
	return image, nil
}

func (d *fakeDevice) DestroyImage(image *VulkanImage) {
	d.live["image"]--
}

func (d *fakeDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	d.live["render_pass"]++
	d.record("create_render_pass")
	return vk.RenderPass(newHandle()), nil
}

func (d *fakeDevice) DestroyRenderPass(pass vk.RenderPass) {
	d.live["render_pass"]--
}

func (d *fakeDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	d.live["framebuffer"]++
	return vk.Framebuffer(newHandle()), nil
}

func (d *fakeDevice) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	d.live["framebuffer"]--
}

func (d *fakeDevice) CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport) {
	d.record("viewport:%dx%d", int(viewport.Width), int(viewport.Height))
}

func (d *fakeDevice) CmdSetScissor(cb vk.CommandBuffer, scissor vk.Rect2D) {}

func (d *fakeDevice) CmdBeginRenderPass(cb vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	d.record("begin_render_pass")
}

func (d *fakeDevice) CmdEndRenderPass(cb vk.CommandBuffer) {
	d.record("end_render_pass")
}

var _ Device = (*fakeDevice)(nil)

// fakeWindow reports framebuffer sizes from a script. The last size repeats
// once the script runs out.
type fakeWindow struct {
	sizes  [][2]uint32
	calls  int
	waits  int
	closed bool
}

func newFakeWindow(sizes ...[2]uint32) *fakeWindow {
	if len(sizes) == 0 {
		sizes = [][2]uint32{{800, 600}}
	}
	return &fakeWindow{sizes: sizes}
}

func (w *fakeWindow) FramebufferSize() (uint32, uint32) {
	i := w.calls
	if i >= len(w.sizes) {
		i = len(w.sizes) - 1
	}
	w.calls++
	return w.sizes[i][0], w.sizes[i][1]
}

func (w *fakeWindow) ShouldClose() bool { return w.closed }

func (w *fakeWindow) WaitEvents() { w.waits++ }

// resize replaces the script with a single size.
func (w *fakeWindow) resize(width, height uint32) {
	w.sizes = [][2]uint32{{width, height}}
	w.calls = 0
}

// Package driver is the command surface the renderer core issues its graphics
// API calls through. vkdriver implements it over Vulkan; recorder implements
// it in memory so the frame lifecycle can be exercised without a GPU.
package driver

import "errors"

// Result codes a caller is expected to branch on. Every other failure is
// reported as an opaque error.
var (
	ErrOutOfDate           = errors.New("driver: swapchain out of date")
	ErrSuboptimal          = errors.New("driver: swapchain suboptimal")
	ErrTimeout             = errors.New("driver: wait timed out")
	ErrNotReady            = errors.New("driver: not ready")
	ErrDeviceLost          = errors.New("driver: device lost")
	ErrExtensionNotPresent = errors.New("driver: extension not present")
	ErrFeatureNotPresent   = errors.New("driver: feature not present")
	ErrLayerNotPresent     = errors.New("driver: layer not present")
	ErrInitialization      = errors.New("driver: initialization failed")
)

// Loader is the process-wide entry point used before an Instance exists.
type Loader interface {
	InstanceExtensions() ([]string, error)
	InstanceLayers() ([]string, error)
	CreateInstance(desc InstanceDesc) (Instance, error)
}

// Instance is a connection to the installed driver.
type Instance interface {
	PhysicalDevices() ([]PhysicalDeviceInfo, error)

	SurfaceSupport(pd PhysicalDevice, family uint32, surface Surface) (bool, error)
	SurfaceCapabilities(pd PhysicalDevice, surface Surface) (SurfaceCapabilities, error)
	SurfaceFormats(pd PhysicalDevice, surface Surface) ([]SurfaceFormat, error)
	PresentModes(pd PhysicalDevice, surface Surface) ([]PresentMode, error)
	DestroySurface(surface Surface)

	CreateDevice(desc DeviceDesc) (Device, error)

	// Destroy releases the debug callback and the instance.
	Destroy()
}

// Device is a logical device with a single queue family.
type Device interface {
	GetQueue(family, index uint32) Queue
	DeviceWaitIdle() error

	AllocateMemory(size uint64, typeIndex uint32) (Memory, error)
	FreeMemory(mem Memory)
	// MapMemory returns a host view over [offset, offset+size). The slice
	// stays valid until UnmapMemory or FreeMemory.
	MapMemory(mem Memory, offset, size uint64) ([]byte, error)
	UnmapMemory(mem Memory)

	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)
	DestroyBuffer(buf Buffer)
	BufferMemoryRequirements(buf Buffer) MemoryRequirements
	BindBufferMemory(buf Buffer, mem Memory, offset uint64) error

	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)
	WaitForFences(fences []Fence, waitAll bool, timeout uint64) error
	ResetFences(fences []Fence) error

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(s Semaphore)

	CreateCommandPool(family uint32, resettable bool) (CommandPool, error)
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffers(pool CommandPool, count uint32) ([]CommandBuffer, error)
	FreeCommandBuffers(pool CommandPool, cmds []CommandBuffer)

	ResetCommandBuffer(cmd CommandBuffer) error
	BeginCommandBuffer(cmd CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(cmd CommandBuffer) error

	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, regions []BufferCopy)
	CmdPipelineBarrier(cmd CommandBuffer, barriers []ImageBarrier)
	CmdBeginRendering(cmd CommandBuffer, info RenderingInfo)
	CmdEndRendering(cmd CommandBuffer)
	CmdSetViewport(cmd CommandBuffer, viewports []Viewport)
	CmdSetScissor(cmd CommandBuffer, scissors []Rect2D)
	CmdBindGraphicsPipeline(cmd CommandBuffer, p Pipeline)
	CmdBindDescriptorSets(cmd CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet)
	CmdPushConstants(cmd CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	CmdDraw(cmd CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)

	QueueSubmit(q Queue, submits []SubmitInfo, fence Fence) error
	// QueuePresent may return ErrOutOfDate or ErrSuboptimal.
	QueuePresent(q Queue, info PresentInfo) error

	CreateSwapchain(info SwapchainCreateInfo) (Swapchain, error)
	DestroySwapchain(sc Swapchain)
	SwapchainImages(sc Swapchain) ([]Image, error)
	// AcquireNextImage may return ErrOutOfDate, ErrSuboptimal or ErrTimeout.
	AcquireNextImage(sc Swapchain, timeout uint64, signal Semaphore) (uint32, error)

	CreateImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(v ImageView)

	CreateDescriptorSetLayout(desc DescriptorSetLayoutDesc) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)
	CreateDescriptorPool(desc DescriptorPoolDesc) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)
	CreatePipelineLayout(desc PipelineLayoutDesc) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)
	CreateGraphicsPipeline(desc GraphicsPipelineDesc) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	Destroy()
}

package driver

import (
	"math"
	"time"
)

// Handles are opaque to the core. Zero is the null handle for every kind.
type (
	PhysicalDevice      uint64
	Surface             uint64
	Queue               uint64
	Buffer              uint64
	Memory              uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Fence               uint64
	Semaphore           uint64
	Image               uint64
	ImageView           uint64
	Swapchain           uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
)

// Infinite is the timeout value that never expires.
const Infinite uint64 = math.MaxUint64

// Timeout converts a configured duration to a driver timeout.
// Durations <= 0 mean wait forever.
func Timeout(d time.Duration) uint64 {
	if d <= 0 {
		return Infinite
	}
	return uint64(d.Nanoseconds())
}

// WholeSize binds a buffer from its offset to the end.
const WholeSize uint64 = math.MaxUint64

// RemainingMipLevels and RemainingArrayLayers select the rest of a subresource.
const (
	RemainingMipLevels   uint32 = math.MaxUint32
	RemainingArrayLayers uint32 = math.MaxUint32
)

// QueueFamilyIgnored leaves ownership untouched in a barrier.
const QueueFamilyIgnored uint32 = math.MaxUint32

// Enumerations carry the Vulkan numeric values so the real driver can cast them.

type DeviceType uint32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 0x1
	QueueCompute  QueueFlags = 0x2
	QueueTransfer QueueFlags = 0x4
)

type MemoryPropertyFlags uint32

const (
	MemoryDeviceLocal  MemoryPropertyFlags = 0x1
	MemoryHostVisible  MemoryPropertyFlags = 0x2
	MemoryHostCoherent MemoryPropertyFlags = 0x4
	MemoryHostCached   MemoryPropertyFlags = 0x8
)

type BufferUsage uint32

const (
	BufferUsageTransferSrc         BufferUsage = 0x1
	BufferUsageTransferDst         BufferUsage = 0x2
	BufferUsageUniformBuffer       BufferUsage = 0x10
	BufferUsageStorageBuffer       BufferUsage = 0x20
	BufferUsageIndexBuffer         BufferUsage = 0x40
	BufferUsageVertexBuffer        BufferUsage = 0x80
	BufferUsageShaderDeviceAddress BufferUsage = 0x20000
)

type ImageUsage uint32

const (
	ImageUsageTransferDst     ImageUsage = 0x2
	ImageUsageColorAttachment ImageUsage = 0x10
)

type ShaderStage uint32

const (
	ShaderStageVertex      ShaderStage = 0x1
	ShaderStageFragment    ShaderStage = 0x10
	ShaderStageCompute     ShaderStage = 0x20
	ShaderStageAllGraphics ShaderStage = 0x1f
	ShaderStageAll         ShaderStage = 0x7fffffff
)

type Format uint32

const (
	FormatUndefined     Format = 0
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
)

type ColorSpace uint32

const ColorSpaceSRGBNonlinear ColorSpace = 0

type PresentMode uint32

const (
	PresentModeImmediate PresentMode = iota
	PresentModeMailbox
	PresentModeFifo
	PresentModeFifoRelaxed
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFifo:
		return "fifo"
	case PresentModeFifoRelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

type ImageLayout uint32

const (
	ImageLayoutUndefined              ImageLayout = 0
	ImageLayoutGeneral                ImageLayout = 1
	ImageLayoutColorAttachmentOptimal ImageLayout = 2
	ImageLayoutPresentSrc             ImageLayout = 1000001002
)

type AccessFlags uint32

const (
	AccessNone                 AccessFlags = 0
	AccessColorAttachmentRead  AccessFlags = 0x80
	AccessColorAttachmentWrite AccessFlags = 0x100
	AccessTransferWrite        AccessFlags = 0x1000
	AccessMemoryRead           AccessFlags = 0x8000
)

type PipelineStage uint32

const (
	PipelineStageTopOfPipe             PipelineStage = 0x1
	PipelineStageFragmentShader        PipelineStage = 0x80
	PipelineStageColorAttachmentOutput PipelineStage = 0x400
	PipelineStageTransfer              PipelineStage = 0x1000
	PipelineStageBottomOfPipe          PipelineStage = 0x2000
)

type ImageAspect uint32

const ImageAspectColor ImageAspect = 0x1

type LoadOp uint32

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp uint32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

type DescriptorType uint32

const (
	DescriptorTypeUniformBuffer DescriptorType = 6
	DescriptorTypeStorageBuffer DescriptorType = 7
)

type DescriptorBindingFlags uint32

const (
	DescriptorBindingUpdateAfterBind          DescriptorBindingFlags = 0x1
	DescriptorBindingUpdateUnusedWhilePending DescriptorBindingFlags = 0x2
	DescriptorBindingPartiallyBound           DescriptorBindingFlags = 0x4
)

type DescriptorSetLayoutFlags uint32

const DescriptorSetLayoutUpdateAfterBindPool DescriptorSetLayoutFlags = 0x2

type DescriptorPoolFlags uint32

const (
	DescriptorPoolFreeDescriptorSet DescriptorPoolFlags = 0x1
	DescriptorPoolUpdateAfterBind   DescriptorPoolFlags = 0x2
)

type PrimitiveTopology uint32

const (
	TopologyPointList     PrimitiveTopology = 0
	TopologyLineList      PrimitiveTopology = 1
	TopologyTriangleList  PrimitiveTopology = 3
	TopologyTriangleStrip PrimitiveTopology = 4
)

type CullMode uint32

const (
	CullModeNone  CullMode = 0
	CullModeFront CullMode = 1
	CullModeBack  CullMode = 2
)

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type DynamicState uint32

const (
	DynamicStateViewport DynamicState = 0
	DynamicStateScissor  DynamicState = 1
)

type ColorComponent uint32

const (
	ColorComponentR    ColorComponent = 0x1
	ColorComponentG    ColorComponent = 0x2
	ColorComponentB    ColorComponent = 0x4
	ColorComponentA    ColorComponent = 0x8
	ColorComponentRGBA                = ColorComponentR | ColorComponentG | ColorComponentB | ColorComponentA
)

type SurfaceTransform uint32

const SurfaceTransformIdentity SurfaceTransform = 0x1

type CompositeAlpha uint32

const (
	CompositeAlphaOpaque         CompositeAlpha = 0x1
	CompositeAlphaPreMultiplied  CompositeAlpha = 0x2
	CompositeAlphaPostMultiplied CompositeAlpha = 0x4
	CompositeAlphaInherit        CompositeAlpha = 0x8
)

type DebugSeverity uint32

const (
	DebugSeverityVerbose DebugSeverity = iota
	DebugSeverityInfo
	DebugSeverityWarning
	DebugSeverityError
)

type Extent2D struct {
	Width, Height uint32
}

type Offset2D struct {
	X, Y int32
}

type Rect2D struct {
	Offset Offset2D
	Extent Extent2D
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type QueueFamily struct {
	Index uint32
	Flags QueueFlags
	Count uint32
}

type MemoryType struct {
	Flags     MemoryPropertyFlags
	HeapIndex uint32
}

type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

type Limits struct {
	MinStorageBufferOffsetAlignment uint64
	NonCoherentAtomSize             uint64
	BufferImageGranularity          uint64
	MaxPushConstantsSize            uint32
}

// Features is the named set of optional device capabilities. The same struct
// describes what a physical device supports and what a logical device enables.
type Features struct {
	DynamicRendering bool

	ScalarBlockLayout bool

	DescriptorIndexing                            bool
	DescriptorBindingPartiallyBound               bool
	DescriptorBindingStorageBufferUpdateAfterBind bool
	DescriptorBindingUpdateUnusedWhilePending     bool
	RuntimeDescriptorArray                        bool

	ImagelessFramebuffer bool
	ShaderFloat16        bool
	ShaderInt8           bool
	BufferDeviceAddress  bool
	VulkanMemoryModel    bool
}

// Intersect keeps only the features present in both sets.
func (f Features) Intersect(o Features) Features {
	return Features{
		DynamicRendering:  f.DynamicRendering && o.DynamicRendering,
		ScalarBlockLayout: f.ScalarBlockLayout && o.ScalarBlockLayout,

		DescriptorIndexing:                            f.DescriptorIndexing && o.DescriptorIndexing,
		DescriptorBindingPartiallyBound:               f.DescriptorBindingPartiallyBound && o.DescriptorBindingPartiallyBound,
		DescriptorBindingStorageBufferUpdateAfterBind: f.DescriptorBindingStorageBufferUpdateAfterBind && o.DescriptorBindingStorageBufferUpdateAfterBind,
		DescriptorBindingUpdateUnusedWhilePending:     f.DescriptorBindingUpdateUnusedWhilePending && o.DescriptorBindingUpdateUnusedWhilePending,
		RuntimeDescriptorArray:                        f.RuntimeDescriptorArray && o.RuntimeDescriptorArray,

		ImagelessFramebuffer: f.ImagelessFramebuffer && o.ImagelessFramebuffer,
		ShaderFloat16:        f.ShaderFloat16 && o.ShaderFloat16,
		ShaderInt8:           f.ShaderInt8 && o.ShaderInt8,
		BufferDeviceAddress:  f.BufferDeviceAddress && o.BufferDeviceAddress,
		VulkanMemoryModel:    f.VulkanMemoryModel && o.VulkanMemoryModel,
	}
}

// PhysicalDeviceInfo is an immutable snapshot of one adapter.
type PhysicalDeviceInfo struct {
	Handle        PhysicalDevice
	Name          string
	Type          DeviceType
	APIVersion    uint32
	DriverVersion uint32
	VendorID      uint32
	DeviceID      uint32
	QueueFamilies []QueueFamily
	MemoryTypes   []MemoryType
	MemoryHeaps   []MemoryHeap
	Limits        Limits
	Extensions    []string
	Features      Features
}

type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent2D
	MinImageExtent          Extent2D
	MaxImageExtent          Extent2D
	CurrentTransform        SurfaceTransform
	SupportedTransforms     SurfaceTransform
	SupportedCompositeAlpha CompositeAlpha
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type DebugMessage struct {
	Severity    DebugSeverity
	Performance bool
	Prefix      string
	Code        int32
	Text        string
}

// DebugCallback receives validation messages. It must not block.
type DebugCallback func(DebugMessage)

type InstanceDesc struct {
	AppName    string
	EngineName string
	APIVersion uint32
	Extensions []string
	Layers     []string
	Debug      DebugCallback
}

type DeviceDesc struct {
	Physical    PhysicalDevice
	QueueFamily uint32
	Extensions  []string
	Layers      []string
	Features    Features
}

type MemoryRequirements struct {
	Size      uint64
	Alignment uint64
	TypeBits  uint32
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

type ImageSubresourceRange struct {
	Aspect         ImageAspect
	BaseMipLevel   uint32
	LevelCount     uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

type ImageBarrier struct {
	Image          Image
	SrcStage       PipelineStage
	DstStage       PipelineStage
	SrcAccess      AccessFlags
	DstAccess      AccessFlags
	OldLayout      ImageLayout
	NewLayout      ImageLayout
	SrcQueueFamily uint32
	DstQueueFamily uint32
	Range          ImageSubresourceRange
}

type RenderingAttachment struct {
	View       ImageView
	Layout     ImageLayout
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearColor [4]float32
}

type RenderingInfo struct {
	Area             Rect2D
	LayerCount       uint32
	ColorAttachments []RenderingAttachment
}

type SubmitInfo struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

type PresentInfo struct {
	WaitSemaphores []Semaphore
	Swapchain      Swapchain
	ImageIndex     uint32
}

type SwapchainCreateInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         Format
	ColorSpace     ColorSpace
	Extent         Extent2D
	Usage          ImageUsage
	PreTransform   SurfaceTransform
	CompositeAlpha CompositeAlpha
	PresentMode    PresentMode
	Clipped        bool
	OldSwapchain   Swapchain
}

type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStage
	Flags   DescriptorBindingFlags
}

type DescriptorSetLayoutDesc struct {
	Flags    DescriptorSetLayoutFlags
	Bindings []DescriptorSetLayoutBinding
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolDesc struct {
	Flags   DescriptorPoolFlags
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

type DescriptorWrite struct {
	Set          DescriptorSet
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType
	Buffers      []DescriptorBufferInfo
}

type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

type PipelineLayoutDesc struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

type ShaderStageDesc struct {
	Stage  ShaderStage
	Module ShaderModule
	Entry  string
}

type ColorBlendAttachment struct {
	BlendEnable bool
	WriteMask   ColorComponent
}

type GraphicsPipelineDesc struct {
	Layout                 PipelineLayout
	Stages                 []ShaderStageDesc
	Topology               PrimitiveTopology
	CullMode               CullMode
	FrontFace              FrontFace
	LineWidth              float32
	ColorAttachmentFormats []Format
	ColorBlend             []ColorBlendAttachment
	DynamicStates          []DynamicState
	Viewports              []Viewport
	Scissors               []Rect2D
}

// Package recorder is a record-only driver. It keeps every object in memory,
// captures recorded commands with their exact handles and executes buffer
// copies on submit, so the renderer core can be tested without a GPU.
package recorder

import (
	"fmt"
	"sync"

	"github.com/andewx/strale/driver"
)

// Device extension names advertised by NewPhysicalDevice.
var AllDeviceExtensions = []string{
	"VK_KHR_swapchain",
	"VK_KHR_dynamic_rendering",
	"VK_KHR_vulkan_memory_model",
	"VK_KHR_pipeline_library",
	"VK_KHR_deferred_host_operations",
	"VK_KHR_buffer_device_address",
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_tracing_pipeline",
}

// Config describes the simulated machine.
type Config struct {
	InstanceExtensions []string
	Layers             []string
	Devices            []driver.PhysicalDeviceInfo

	// Present reports whether a queue family of a device can present.
	// Nil means every graphics family can.
	Present func(pd driver.PhysicalDevice, family uint32) bool

	Capabilities driver.SurfaceCapabilities
	Formats      []driver.SurfaceFormat
	PresentModes []driver.PresentMode
}

// Default is a single discrete GPU behind a 1920x1080 surface.
func Default() Config {
	return Config{
		InstanceExtensions: []string{
			"VK_KHR_surface",
			"VK_KHR_xcb_surface",
			"VK_KHR_win32_surface",
			"VK_EXT_debug_report",
			"VK_EXT_debug_utils",
		},
		Layers: []string{"VK_LAYER_KHRONOS_validation"},
		Devices: []driver.PhysicalDeviceInfo{
			NewPhysicalDevice(1, "recorder discrete", driver.DeviceTypeDiscreteGPU),
		},
		Capabilities: driver.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           driver.Extent2D{Width: 1920, Height: 1080},
			MinImageExtent:          driver.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          driver.Extent2D{Width: 8192, Height: 8192},
			CurrentTransform:        driver.SurfaceTransformIdentity,
			SupportedTransforms:     driver.SurfaceTransformIdentity,
			SupportedCompositeAlpha: driver.CompositeAlphaOpaque,
		},
		Formats: []driver.SurfaceFormat{
			{Format: driver.FormatB8G8R8A8Unorm, ColorSpace: driver.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []driver.PresentMode{
			driver.PresentModeImmediate,
			driver.PresentModeMailbox,
			driver.PresentModeFifo,
		},
	}
}

// NewPhysicalDevice returns a fully featured adapter with one universal queue
// family and a device-local, a host-visible and a shared memory type.
func NewPhysicalDevice(handle driver.PhysicalDevice, name string, typ driver.DeviceType) driver.PhysicalDeviceInfo {
	return driver.PhysicalDeviceInfo{
		Handle:     handle,
		Name:       name,
		Type:       typ,
		APIVersion: 1<<22 | 3<<12,
		QueueFamilies: []driver.QueueFamily{
			{Index: 0, Flags: driver.QueueGraphics | driver.QueueCompute | driver.QueueTransfer, Count: 16},
		},
		MemoryTypes: []driver.MemoryType{
			{Flags: driver.MemoryDeviceLocal, HeapIndex: 0},
			{Flags: driver.MemoryHostVisible | driver.MemoryHostCoherent, HeapIndex: 1},
			{Flags: driver.MemoryDeviceLocal | driver.MemoryHostVisible | driver.MemoryHostCoherent, HeapIndex: 0},
		},
		MemoryHeaps: []driver.MemoryHeap{
			{Size: 8 << 30, DeviceLocal: true},
			{Size: 16 << 30},
		},
		Limits: driver.Limits{
			MinStorageBufferOffsetAlignment: 16,
			NonCoherentAtomSize:             64,
			BufferImageGranularity:          1024,
			MaxPushConstantsSize:            128,
		},
		Extensions: append([]string(nil), AllDeviceExtensions...),
		Features: driver.Features{
			DynamicRendering:  true,
			ScalarBlockLayout: true,

			DescriptorIndexing:                            true,
			DescriptorBindingPartiallyBound:               true,
			DescriptorBindingStorageBufferUpdateAfterBind: true,
			DescriptorBindingUpdateUnusedWhilePending:     true,
			RuntimeDescriptorArray:                        true,

			ImagelessFramebuffer: true,
			ShaderFloat16:        true,
			ShaderInt8:           true,
			BufferDeviceAddress:  true,
			VulkanMemoryModel:    true,
		},
	}
}

// WithoutExtension returns a copy of info lacking the named extension.
func WithoutExtension(info driver.PhysicalDeviceInfo, name string) driver.PhysicalDeviceInfo {
	exts := make([]string, 0, len(info.Extensions))
	for _, e := range info.Extensions {
		if e != name {
			exts = append(exts, e)
		}
	}
	info.Extensions = exts
	return info
}

// Loader is the recorder's driver.Loader.
type Loader struct {
	cfg Config

	mu        sync.Mutex
	next      uint64
	instances []*Instance
}

var _ driver.Loader = (*Loader)(nil)

func New(cfg Config) *Loader {
	return &Loader{cfg: cfg, next: 0x1000}
}

func (l *Loader) handle() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	return l.next
}

func (l *Loader) InstanceExtensions() ([]string, error) {
	return append([]string(nil), l.cfg.InstanceExtensions...), nil
}

func (l *Loader) InstanceLayers() ([]string, error) {
	return append([]string(nil), l.cfg.Layers...), nil
}

func (l *Loader) CreateInstance(desc driver.InstanceDesc) (driver.Instance, error) {
	for _, e := range desc.Extensions {
		if !contains(l.cfg.InstanceExtensions, e) {
			return nil, fmt.Errorf("%w: %s", driver.ErrExtensionNotPresent, e)
		}
	}
	for _, layer := range desc.Layers {
		if !contains(l.cfg.Layers, layer) {
			return nil, fmt.Errorf("%w: %s", driver.ErrLayerNotPresent, layer)
		}
	}
	inst := &Instance{loader: l, desc: desc, surfaces: map[driver.Surface]bool{}}
	l.mu.Lock()
	l.instances = append(l.instances, inst)
	l.mu.Unlock()
	return inst, nil
}

// LastInstance returns the most recently created instance or nil.
func (l *Loader) LastInstance() *Instance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.instances) == 0 {
		return nil
	}
	return l.instances[len(l.instances)-1]
}

// Instance is the recorder's driver.Instance.
type Instance struct {
	loader *Loader
	desc   driver.InstanceDesc

	mu        sync.Mutex
	surfaces  map[driver.Surface]bool
	devices   []*Device
	Destroyed bool
}

var _ driver.Instance = (*Instance)(nil)

// Desc is the description the instance was created with.
func (i *Instance) Desc() driver.InstanceDesc { return i.desc }

// NewSurface registers a drawable surface with the instance.
func (i *Instance) NewSurface() driver.Surface {
	s := driver.Surface(i.loader.handle())
	i.mu.Lock()
	i.surfaces[s] = true
	i.mu.Unlock()
	return s
}

// SurfaceAlive reports whether s was created and not yet destroyed.
func (i *Instance) SurfaceAlive(s driver.Surface) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.surfaces[s]
}

// Emit delivers a debug message through the installed callback.
func (i *Instance) Emit(msg driver.DebugMessage) {
	if i.desc.Debug != nil {
		i.desc.Debug(msg)
	}
}

func (i *Instance) PhysicalDevices() ([]driver.PhysicalDeviceInfo, error) {
	return append([]driver.PhysicalDeviceInfo(nil), i.loader.cfg.Devices...), nil
}

func (i *Instance) physical(pd driver.PhysicalDevice) (driver.PhysicalDeviceInfo, bool) {
	for _, d := range i.loader.cfg.Devices {
		if d.Handle == pd {
			return d, true
		}
	}
	return driver.PhysicalDeviceInfo{}, false
}

func (i *Instance) SurfaceSupport(pd driver.PhysicalDevice, family uint32, surface driver.Surface) (bool, error) {
	info, ok := i.physical(pd)
	if !ok {
		return false, fmt.Errorf("recorder: unknown physical device %#x", pd)
	}
	if !i.SurfaceAlive(surface) {
		return false, fmt.Errorf("recorder: unknown surface %#x", surface)
	}
	if int(family) >= len(info.QueueFamilies) {
		return false, nil
	}
	if i.loader.cfg.Present != nil {
		return i.loader.cfg.Present(pd, family), nil
	}
	return info.QueueFamilies[family].Flags&driver.QueueGraphics != 0, nil
}

func (i *Instance) SurfaceCapabilities(pd driver.PhysicalDevice, surface driver.Surface) (driver.SurfaceCapabilities, error) {
	if !i.SurfaceAlive(surface) {
		return driver.SurfaceCapabilities{}, fmt.Errorf("recorder: unknown surface %#x", surface)
	}
	return i.loader.cfg.Capabilities, nil
}

// SetCapabilities replaces the surface capabilities, e.g. after a resize.
func (i *Instance) SetCapabilities(c driver.SurfaceCapabilities) {
	i.loader.mu.Lock()
	i.loader.cfg.Capabilities = c
	i.loader.mu.Unlock()
}

func (i *Instance) SurfaceFormats(pd driver.PhysicalDevice, surface driver.Surface) ([]driver.SurfaceFormat, error) {
	return append([]driver.SurfaceFormat(nil), i.loader.cfg.Formats...), nil
}

func (i *Instance) PresentModes(pd driver.PhysicalDevice, surface driver.Surface) ([]driver.PresentMode, error) {
	return append([]driver.PresentMode(nil), i.loader.cfg.PresentModes...), nil
}

func (i *Instance) DestroySurface(surface driver.Surface) {
	i.mu.Lock()
	delete(i.surfaces, surface)
	i.mu.Unlock()
}

func (i *Instance) CreateDevice(desc driver.DeviceDesc) (driver.Device, error) {
	info, ok := i.physical(desc.Physical)
	if !ok {
		return nil, fmt.Errorf("recorder: unknown physical device %#x", desc.Physical)
	}
	for _, e := range desc.Extensions {
		if !contains(info.Extensions, e) {
			return nil, fmt.Errorf("%w: %s", driver.ErrExtensionNotPresent, e)
		}
	}
	if desc.Features.Intersect(info.Features) != desc.Features {
		return nil, driver.ErrFeatureNotPresent
	}
	if int(desc.QueueFamily) >= len(info.QueueFamilies) {
		return nil, fmt.Errorf("recorder: queue family %d out of range", desc.QueueFamily)
	}
	d := newDevice(i, info, desc)
	i.mu.Lock()
	i.devices = append(i.devices, d)
	i.mu.Unlock()
	return d, nil
}

// LastDevice returns the most recently created device or nil.
func (i *Instance) LastDevice() *Device {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.devices) == 0 {
		return nil
	}
	return i.devices[len(i.devices)-1]
}

func (i *Instance) Destroy() {
	i.mu.Lock()
	i.Destroyed = true
	i.mu.Unlock()
}

// Window is a headless stand-in for a platform window.
type Window struct {
	Width, Height int
	Extensions    []string
}

// CreateSurface registers a surface on a recorder instance.
func (w *Window) CreateSurface(inst driver.Instance) (driver.Surface, error) {
	ri, ok := inst.(*Instance)
	if !ok {
		return 0, fmt.Errorf("recorder: window cannot create a surface for %T", inst)
	}
	return ri.NewSurface(), nil
}

func (w *Window) RequiredInstanceExtensions() []string {
	if w.Extensions != nil {
		return w.Extensions
	}
	return []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
}

func (w *Window) FramebufferSize() (int, int) {
	return w.Width, w.Height
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

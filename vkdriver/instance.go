// Package vkdriver implements the driver interfaces over the Vulkan loader
// through github.com/goki/vulkan. Window surfaces come from glfw.
package vkdriver

import (
	"unsafe"

	"github.com/andewx/strale/driver"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// Init initializes glfw and points the binding at the loader glfw found.
// IMPORTANT: must be called on the main thread before anything else.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	proc := glfw.GetVulkanGetInstanceProcAddress()
	if proc == nil {
		glfw.Terminate()
		return errors.WithStack(driver.ErrInitialization)
	}
	vk.SetGetInstanceProcAddr(proc)
	setInstanceProcAddr(proc)
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "vulkan init")
	}
	return nil
}

// Terminate shuts glfw down. Call it last, on the main thread.
func Terminate() {
	glfw.Terminate()
}

// Loader is the entry point used before an instance exists.
type Loader struct{}

func NewLoader() Loader {
	return Loader{}
}

func (Loader) InstanceExtensions() ([]string, error) {
	return instanceExtensions()
}

func (Loader) InstanceLayers() ([]string, error) {
	return validationLayers()
}

func (Loader) CreateInstance(desc driver.InstanceDesc) (driver.Instance, error) {
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:            vk.StructureTypeApplicationInfo,
			ApiVersion:       desc.APIVersion,
			PApplicationName: safeString(desc.AppName),
			PEngineName:      safeString(desc.EngineName),
		},
		EnabledExtensionCount:   uint32(len(desc.Extensions)),
		PpEnabledExtensionNames: safeStrings(desc.Extensions),
		EnabledLayerCount:       uint32(len(desc.Layers)),
		PpEnabledLayerNames:     safeStrings(desc.Layers),
	}, nil, &instance)
	if err := newError(ret); err != nil {
		return nil, errors.Wrap(err, "vkCreateInstance")
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, errors.Wrap(err, "load instance functions")
	}

	inst := &Instance{instance: instance}
	if desc.Debug != nil {
		ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType: vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
				vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugCallback(desc.Debug),
		}, nil, &inst.debug)
		if err := newError(ret); err != nil {
			vk.DestroyInstance(instance, nil)
			return nil, errors.Wrap(err, "vkCreateDebugReportCallback")
		}
	}
	return inst, nil
}

func debugCallback(fn driver.DebugCallback) vk.DebugReportCallbackFunc {
	return func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
		object uint64, location uint, messageCode int32, pLayerPrefix string,
		pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

		msg := driver.DebugMessage{Prefix: pLayerPrefix, Code: messageCode, Text: pMessage}
		switch {
		case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
			msg.Severity = driver.DebugSeverityError
		case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
			msg.Severity = driver.DebugSeverityWarning
			msg.Performance = true
		case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
			msg.Severity = driver.DebugSeverityWarning
		case flags&vk.DebugReportFlags(vk.DebugReportInformationBit) != 0:
			msg.Severity = driver.DebugSeverityInfo
		default:
			msg.Severity = driver.DebugSeverityVerbose
		}
		fn(msg)
		return vk.Bool32(vk.False)
	}
}

// Instance wraps a vk.Instance and the surfaces created on it.
type Instance struct {
	instance vk.Instance
	debug    vk.DebugReportCallback

	physical table[driver.PhysicalDevice, vk.PhysicalDevice]
	surfaces table[driver.Surface, vk.Surface]
}

// VK exposes the raw instance, for window surface creation.
func (i *Instance) VK() vk.Instance {
	return i.instance
}

func (i *Instance) addSurface(s vk.Surface) driver.Surface {
	return i.surfaces.put(s)
}

func (i *Instance) PhysicalDevices() (infos []driver.PhysicalDeviceInfo, err error) {
	defer checkErr(&err)

	var gpuCount uint32
	ret := vk.EnumeratePhysicalDevices(i.instance, &gpuCount, nil)
	orPanic(newError(ret))
	gpus := make([]vk.PhysicalDevice, gpuCount)
	ret = vk.EnumeratePhysicalDevices(i.instance, &gpuCount, gpus)
	orPanic(newError(ret))

	for _, gpu := range gpus {
		info, err := i.describe(gpu)
		orPanic(err)
		infos = append(infos, info)
	}
	return infos, nil
}

func (i *Instance) describe(gpu vk.PhysicalDevice) (driver.PhysicalDeviceInfo, error) {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()

	info := driver.PhysicalDeviceInfo{
		Handle:        i.physical.put(gpu),
		Name:          vk.ToString(props.DeviceName[:]),
		Type:          driver.DeviceType(props.DeviceType),
		APIVersion:    props.ApiVersion,
		DriverVersion: props.DriverVersion,
		VendorID:      props.VendorID,
		DeviceID:      props.DeviceID,
		Limits: driver.Limits{
			MinStorageBufferOffsetAlignment: uint64(props.Limits.MinStorageBufferOffsetAlignment),
			NonCoherentAtomSize:             uint64(props.Limits.NonCoherentAtomSize),
			BufferImageGranularity:          uint64(props.Limits.BufferImageGranularity),
			MaxPushConstantsSize:            props.Limits.MaxPushConstantsSize,
		},
	}

	var queueCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, nil)
	queues := make([]vk.QueueFamilyProperties, queueCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, queues)
	for idx, q := range queues {
		q.Deref()
		info.QueueFamilies = append(info.QueueFamilies, driver.QueueFamily{
			Index: uint32(idx),
			Flags: driver.QueueFlags(q.QueueFlags),
			Count: q.QueueCount,
		})
	}

	var mem vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &mem)
	mem.Deref()
	for t := uint32(0); t < mem.MemoryTypeCount; t++ {
		mt := mem.MemoryTypes[t]
		mt.Deref()
		info.MemoryTypes = append(info.MemoryTypes, driver.MemoryType{
			Flags:     driver.MemoryPropertyFlags(mt.PropertyFlags),
			HeapIndex: mt.HeapIndex,
		})
	}
	for h := uint32(0); h < mem.MemoryHeapCount; h++ {
		heap := mem.MemoryHeaps[h]
		heap.Deref()
		info.MemoryHeaps = append(info.MemoryHeaps, driver.MemoryHeap{
			Size:        uint64(heap.Size),
			DeviceLocal: heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0,
		})
	}

	exts, err := deviceExtensions(gpu)
	if err != nil {
		return info, errors.Wrapf(err, "device extensions of %s", info.Name)
	}
	info.Extensions = exts
	info.Features, _ = queryFeatures(i.instance, gpu)
	return info, nil
}

func (i *Instance) SurfaceSupport(pd driver.PhysicalDevice, family uint32, surface driver.Surface) (bool, error) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(i.physical.get(pd), family, i.surfaces.get(surface), &supported)
	if err := newError(ret); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (i *Instance) SurfaceCapabilities(pd driver.PhysicalDevice, surface driver.Surface) (driver.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(i.physical.get(pd), i.surfaces.get(surface), &caps)
	if err := newError(ret); err != nil {
		return driver.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return driver.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           extent(caps.CurrentExtent),
		MinImageExtent:          extent(caps.MinImageExtent),
		MaxImageExtent:          extent(caps.MaxImageExtent),
		CurrentTransform:        driver.SurfaceTransform(caps.CurrentTransform),
		SupportedTransforms:     driver.SurfaceTransform(caps.SupportedTransforms),
		SupportedCompositeAlpha: driver.CompositeAlpha(caps.SupportedCompositeAlpha),
	}, nil
}

func extent(e vk.Extent2D) driver.Extent2D {
	return driver.Extent2D{Width: e.Width, Height: e.Height}
}

func (i *Instance) SurfaceFormats(pd driver.PhysicalDevice, surface driver.Surface) ([]driver.SurfaceFormat, error) {
	gpu, s := i.physical.get(pd), i.surfaces.get(surface)
	var count uint32
	ret := vk.GetPhysicalDeviceSurfaceFormats(gpu, s, &count, nil)
	if err := newError(ret); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	ret = vk.GetPhysicalDeviceSurfaceFormats(gpu, s, &count, formats)
	if err := newError(ret); err != nil {
		return nil, err
	}
	out := make([]driver.SurfaceFormat, len(formats))
	for n, f := range formats {
		f.Deref()
		out[n] = driver.SurfaceFormat{Format: driver.Format(f.Format), ColorSpace: driver.ColorSpace(f.ColorSpace)}
	}
	return out, nil
}

func (i *Instance) PresentModes(pd driver.PhysicalDevice, surface driver.Surface) ([]driver.PresentMode, error) {
	gpu, s := i.physical.get(pd), i.surfaces.get(surface)
	var count uint32
	ret := vk.GetPhysicalDeviceSurfacePresentModes(gpu, s, &count, nil)
	if err := newError(ret); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	ret = vk.GetPhysicalDeviceSurfacePresentModes(gpu, s, &count, modes)
	if err := newError(ret); err != nil {
		return nil, err
	}
	out := make([]driver.PresentMode, len(modes))
	for n, m := range modes {
		out[n] = driver.PresentMode(m)
	}
	return out, nil
}

func (i *Instance) DestroySurface(surface driver.Surface) {
	if s, ok := i.surfaces.take(surface); ok {
		vk.DestroySurface(i.instance, s, nil)
	}
}

func (i *Instance) CreateDevice(desc driver.DeviceDesc) (driver.Device, error) {
	gpu := i.physical.get(desc.Physical)
	if gpu == nil {
		return nil, errors.Errorf("unknown physical device %d", desc.Physical)
	}

	chain := newFeatureChain(desc.Features)
	defer freeChain(chain)

	var device vk.Device
	ret := vk.CreateDevice(gpu, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: desc.QueueFamily,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		EnabledExtensionCount:   uint32(len(desc.Extensions)),
		PpEnabledExtensionNames: safeStrings(desc.Extensions),
		EnabledLayerCount:       uint32(len(desc.Layers)),
		PpEnabledLayerNames:     safeStrings(desc.Layers),
		PNext:                   chain,
	}, nil, &device)
	if err := newError(ret); err != nil {
		return nil, errors.Wrap(err, "vkCreateDevice")
	}

	fns, ok := loadRendering(i.instance, device)
	if !ok {
		vk.DestroyDevice(device, nil)
		return nil, errors.Wrap(driver.ErrFeatureNotPresent, "vkCmdBeginRendering not exported")
	}
	return newDevice(i, device, fns), nil
}

func (i *Instance) Destroy() {
	if i.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.instance, i.debug, nil)
		i.debug = vk.NullDebugReportCallback
	}
	if i.instance != nil {
		vk.DestroyInstance(i.instance, nil)
		i.instance = nil
	}
}

package vkdriver

/*
#include <stdlib.h>
#include <vulkan/vulkan.h>

static PFN_vkGetInstanceProcAddr strale_gipa;

static void strale_set_gipa(void* fn) {
	strale_gipa = (PFN_vkGetInstanceProcAddr)fn;
}

typedef struct {
	VkBool32 dynamicRendering;
	VkBool32 scalarBlockLayout;
	VkBool32 descriptorIndexing;
	VkBool32 partiallyBound;
	VkBool32 storageBufferUpdateAfterBind;
	VkBool32 updateUnusedWhilePending;
	VkBool32 runtimeDescriptorArray;
	VkBool32 imagelessFramebuffer;
	VkBool32 shaderFloat16;
	VkBool32 shaderInt8;
	VkBool32 bufferDeviceAddress;
	VkBool32 vulkanMemoryModel;
} strale_features;

typedef struct {
	VkPhysicalDeviceVulkan12Features v12;
	VkPhysicalDeviceVulkan13Features v13;
} strale_feature_chain;

static void strale_chain_init(strale_feature_chain* c) {
	c->v12.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_2_FEATURES;
	c->v12.pNext = &c->v13;
	c->v13.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_3_FEATURES;
	c->v13.pNext = NULL;
}

static int strale_query_features(VkInstance inst, VkPhysicalDevice pd, strale_features* out) {
	PFN_vkGetPhysicalDeviceFeatures2 query =
		(PFN_vkGetPhysicalDeviceFeatures2)strale_gipa(inst, "vkGetPhysicalDeviceFeatures2");
	if (query == NULL) {
		return 0;
	}
	strale_feature_chain c = {0};
	strale_chain_init(&c);
	VkPhysicalDeviceFeatures2 f = {0};
	f.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_FEATURES_2;
	f.pNext = &c.v12;
	query(pd, &f);

	out->dynamicRendering = c.v13.dynamicRendering;
	out->scalarBlockLayout = c.v12.scalarBlockLayout;
	out->descriptorIndexing = c.v12.descriptorIndexing;
	out->partiallyBound = c.v12.descriptorBindingPartiallyBound;
	out->storageBufferUpdateAfterBind = c.v12.descriptorBindingStorageBufferUpdateAfterBind;
	out->updateUnusedWhilePending = c.v12.descriptorBindingUpdateUnusedWhilePending;
	out->runtimeDescriptorArray = c.v12.runtimeDescriptorArray;
	out->imagelessFramebuffer = c.v12.imagelessFramebuffer;
	out->shaderFloat16 = c.v12.shaderFloat16;
	out->shaderInt8 = c.v12.shaderInt8;
	out->bufferDeviceAddress = c.v12.bufferDeviceAddress;
	out->vulkanMemoryModel = c.v12.vulkanMemoryModel;
	return 1;
}

static strale_feature_chain* strale_new_feature_chain(strale_features in) {
	strale_feature_chain* c = calloc(1, sizeof(strale_feature_chain));
	strale_chain_init(c);
	c->v13.dynamicRendering = in.dynamicRendering;
	c->v12.scalarBlockLayout = in.scalarBlockLayout;
	c->v12.descriptorIndexing = in.descriptorIndexing;
	c->v12.descriptorBindingPartiallyBound = in.partiallyBound;
	c->v12.descriptorBindingStorageBufferUpdateAfterBind = in.storageBufferUpdateAfterBind;
	c->v12.descriptorBindingUpdateUnusedWhilePending = in.updateUnusedWhilePending;
	c->v12.runtimeDescriptorArray = in.runtimeDescriptorArray;
	c->v12.imagelessFramebuffer = in.imagelessFramebuffer;
	c->v12.shaderFloat16 = in.shaderFloat16;
	c->v12.shaderInt8 = in.shaderInt8;
	c->v12.bufferDeviceAddress = in.bufferDeviceAddress;
	c->v12.vulkanMemoryModel = in.vulkanMemoryModel;
	return c;
}

static VkDescriptorSetLayoutBindingFlagsCreateInfo* strale_new_binding_flags(uint32_t n, const VkDescriptorBindingFlags* flags) {
	VkDescriptorSetLayoutBindingFlagsCreateInfo* info =
		calloc(1, sizeof(VkDescriptorSetLayoutBindingFlagsCreateInfo) + n * sizeof(VkDescriptorBindingFlags));
	VkDescriptorBindingFlags* dst = (VkDescriptorBindingFlags*)(info + 1);
	for (uint32_t i = 0; i < n; i++) {
		dst[i] = flags[i];
	}
	info->sType = VK_STRUCTURE_TYPE_DESCRIPTOR_SET_LAYOUT_BINDING_FLAGS_CREATE_INFO;
	info->bindingCount = n;
	info->pBindingFlags = dst;
	return info;
}

static VkPipelineRenderingCreateInfo* strale_new_pipeline_rendering(uint32_t n, const VkFormat* formats) {
	VkPipelineRenderingCreateInfo* info =
		calloc(1, sizeof(VkPipelineRenderingCreateInfo) + n * sizeof(VkFormat));
	VkFormat* dst = (VkFormat*)(info + 1);
	for (uint32_t i = 0; i < n; i++) {
		dst[i] = formats[i];
	}
	info->sType = VK_STRUCTURE_TYPE_PIPELINE_RENDERING_CREATE_INFO;
	info->colorAttachmentCount = n;
	info->pColorAttachmentFormats = dst;
	return info;
}

typedef struct {
	PFN_vkCmdBeginRendering begin;
	PFN_vkCmdEndRendering end;
} strale_rendering_fns;

static strale_rendering_fns* strale_load_rendering(VkInstance inst, VkDevice dev) {
	PFN_vkGetDeviceProcAddr gdpa = (PFN_vkGetDeviceProcAddr)strale_gipa(inst, "vkGetDeviceProcAddr");
	if (gdpa == NULL) {
		return NULL;
	}
	strale_rendering_fns* fns = calloc(1, sizeof(strale_rendering_fns));
	fns->begin = (PFN_vkCmdBeginRendering)gdpa(dev, "vkCmdBeginRendering");
	fns->end = (PFN_vkCmdEndRendering)gdpa(dev, "vkCmdEndRendering");
	if (fns->begin == NULL || fns->end == NULL) {
		fns->begin = (PFN_vkCmdBeginRendering)gdpa(dev, "vkCmdBeginRenderingKHR");
		fns->end = (PFN_vkCmdEndRendering)gdpa(dev, "vkCmdEndRenderingKHR");
	}
	if (fns->begin == NULL || fns->end == NULL) {
		free(fns);
		return NULL;
	}
	return fns;
}

static void strale_begin_rendering(strale_rendering_fns* fns, VkCommandBuffer cmd,
	VkRenderingInfo info, VkRenderingAttachmentInfo* colors) {
	info.pColorAttachments = colors;
	fns->begin(cmd, &info);
}

static void strale_end_rendering(strale_rendering_fns* fns, VkCommandBuffer cmd) {
	fns->end(cmd);
}
*/
import "C"

import (
	"runtime"
	"unsafe"

	"github.com/andewx/strale/driver"
	vk "github.com/goki/vulkan"
)

func setInstanceProcAddr(fn unsafe.Pointer) {
	C.strale_set_gipa(fn)
}

func cBool(b bool) C.VkBool32 {
	if b {
		return C.VK_TRUE
	}
	return C.VK_FALSE
}

func queryFeatures(inst vk.Instance, pd vk.PhysicalDevice) (driver.Features, bool) {
	var out C.strale_features
	ok := C.strale_query_features(C.VkInstance(unsafe.Pointer(inst)), C.VkPhysicalDevice(unsafe.Pointer(pd)), &out)
	if ok == 0 {
		return driver.Features{}, false
	}
	return driver.Features{
		DynamicRendering:  out.dynamicRendering != 0,
		ScalarBlockLayout: out.scalarBlockLayout != 0,

		DescriptorIndexing:                            out.descriptorIndexing != 0,
		DescriptorBindingPartiallyBound:               out.partiallyBound != 0,
		DescriptorBindingStorageBufferUpdateAfterBind: out.storageBufferUpdateAfterBind != 0,
		DescriptorBindingUpdateUnusedWhilePending:     out.updateUnusedWhilePending != 0,
		RuntimeDescriptorArray:                        out.runtimeDescriptorArray != 0,

		ImagelessFramebuffer: out.imagelessFramebuffer != 0,
		ShaderFloat16:        out.shaderFloat16 != 0,
		ShaderInt8:           out.shaderInt8 != 0,
		BufferDeviceAddress:  out.bufferDeviceAddress != 0,
		VulkanMemoryModel:    out.vulkanMemoryModel != 0,
	}, true
}

// newFeatureChain returns a C-allocated Vulkan12 -> Vulkan13 feature chain
// for DeviceCreateInfo.PNext. Release it with freeChain.
func newFeatureChain(f driver.Features) unsafe.Pointer {
	return unsafe.Pointer(C.strale_new_feature_chain(C.strale_features{
		dynamicRendering:             cBool(f.DynamicRendering),
		scalarBlockLayout:            cBool(f.ScalarBlockLayout),
		descriptorIndexing:           cBool(f.DescriptorIndexing),
		partiallyBound:               cBool(f.DescriptorBindingPartiallyBound),
		storageBufferUpdateAfterBind: cBool(f.DescriptorBindingStorageBufferUpdateAfterBind),
		updateUnusedWhilePending:     cBool(f.DescriptorBindingUpdateUnusedWhilePending),
		runtimeDescriptorArray:       cBool(f.RuntimeDescriptorArray),
		imagelessFramebuffer:         cBool(f.ImagelessFramebuffer),
		shaderFloat16:                cBool(f.ShaderFloat16),
		shaderInt8:                   cBool(f.ShaderInt8),
		bufferDeviceAddress:          cBool(f.BufferDeviceAddress),
		vulkanMemoryModel:            cBool(f.VulkanMemoryModel),
	}))
}

func newBindingFlags(flags []driver.DescriptorBindingFlags) unsafe.Pointer {
	c := make([]C.VkDescriptorBindingFlags, len(flags))
	for i, f := range flags {
		c[i] = C.VkDescriptorBindingFlags(f)
	}
	return unsafe.Pointer(C.strale_new_binding_flags(C.uint32_t(len(c)), unsafe.SliceData(c)))
}

func newPipelineRendering(formats []driver.Format) unsafe.Pointer {
	c := make([]C.VkFormat, len(formats))
	for i, f := range formats {
		c[i] = C.VkFormat(f)
	}
	return unsafe.Pointer(C.strale_new_pipeline_rendering(C.uint32_t(len(c)), unsafe.SliceData(c)))
}

func freeChain(p unsafe.Pointer) {
	C.free(p)
}

type renderingFns struct {
	fns *C.strale_rendering_fns
}

func loadRendering(inst vk.Instance, dev vk.Device) (renderingFns, bool) {
	fns := C.strale_load_rendering(C.VkInstance(unsafe.Pointer(inst)), C.VkDevice(unsafe.Pointer(dev)))
	return renderingFns{fns}, fns != nil
}

func (r renderingFns) release() {
	if r.fns != nil {
		C.free(unsafe.Pointer(r.fns))
	}
}

func (r renderingFns) begin(cmd vk.CommandBuffer, info driver.RenderingInfo, views []vk.ImageView) {
	colors := make([]C.VkRenderingAttachmentInfo, len(info.ColorAttachments))
	for i, a := range info.ColorAttachments {
		colors[i] = C.VkRenderingAttachmentInfo{
			sType:       C.VK_STRUCTURE_TYPE_RENDERING_ATTACHMENT_INFO,
			imageView:   C.VkImageView(unsafe.Pointer(views[i])),
			imageLayout: C.VkImageLayout(a.Layout),
			loadOp:      C.VkAttachmentLoadOp(a.LoadOp),
			storeOp:     C.VkAttachmentStoreOp(a.StoreOp),
		}
		*(*[4]float32)(unsafe.Pointer(&colors[i].clearValue)) = a.ClearColor
	}
	cInfo := C.VkRenderingInfo{
		sType: C.VK_STRUCTURE_TYPE_RENDERING_INFO,
		renderArea: C.VkRect2D{
			offset: C.VkOffset2D{C.int32_t(info.Area.Offset.X), C.int32_t(info.Area.Offset.Y)},
			extent: C.VkExtent2D{C.uint32_t(info.Area.Extent.Width), C.uint32_t(info.Area.Extent.Height)},
		},
		layerCount:           C.uint32_t(info.LayerCount),
		colorAttachmentCount: C.uint32_t(len(colors)),
	}
	C.strale_begin_rendering(r.fns, C.VkCommandBuffer(unsafe.Pointer(cmd)), cInfo, unsafe.SliceData(colors))
	runtime.KeepAlive(colors)
}

func (r renderingFns) end(cmd vk.CommandBuffer) {
	C.strale_end_rendering(r.fns, C.VkCommandBuffer(unsafe.Pointer(cmd)))
}

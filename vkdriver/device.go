package vkdriver

import (
	"unsafe"

	"github.com/andewx/strale/driver"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

type memory struct {
	mem  vk.DeviceMemory
	size uint64
}

// Device implements driver.Device over a vk.Device. Handle tables are safe
// for concurrent use; queue and command buffer access is synchronized by
// the caller as Vulkan requires.
type Device struct {
	inst      *Instance
	device    vk.Device
	rendering renderingFns

	queues      table[driver.Queue, vk.Queue]
	memory      table[driver.Memory, memory]
	buffers     table[driver.Buffer, vk.Buffer]
	fences      table[driver.Fence, vk.Fence]
	semaphores  table[driver.Semaphore, vk.Semaphore]
	pools       table[driver.CommandPool, vk.CommandPool]
	cmds        table[driver.CommandBuffer, vk.CommandBuffer]
	swapchains  table[driver.Swapchain, vk.Swapchain]
	images      table[driver.Image, vk.Image]
	views       table[driver.ImageView, vk.ImageView]
	setLayouts  table[driver.DescriptorSetLayout, vk.DescriptorSetLayout]
	descPools   table[driver.DescriptorPool, vk.DescriptorPool]
	sets        table[driver.DescriptorSet, vk.DescriptorSet]
	shaders     table[driver.ShaderModule, vk.ShaderModule]
	pipeLayouts table[driver.PipelineLayout, vk.PipelineLayout]
	pipelines   table[driver.Pipeline, vk.Pipeline]
	chainImages map[driver.Swapchain][]driver.Image
}

func newDevice(inst *Instance, device vk.Device, fns renderingFns) *Device {
	return &Device{
		inst:        inst,
		device:      device,
		rendering:   fns,
		chainImages: make(map[driver.Swapchain][]driver.Image),
	}
}

func (d *Device) GetQueue(family, index uint32) driver.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(d.device, family, index, &queue)
	return d.queues.put(queue)
}

func (d *Device) DeviceWaitIdle() error {
	return newError(vk.DeviceWaitIdle(d.device))
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (driver.Memory, error) {
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}, nil, &mem)
	if err := newError(ret); err != nil {
		return 0, errors.Wrapf(err, "vkAllocateMemory %d bytes type %d", size, typeIndex)
	}
	return d.memory.put(memory{mem: mem, size: size}), nil
}

func (d *Device) FreeMemory(m driver.Memory) {
	if mem, ok := d.memory.take(m); ok {
		vk.FreeMemory(d.device, mem.mem, nil)
	}
}

func (d *Device) MapMemory(m driver.Memory, offset, size uint64) ([]byte, error) {
	mem := d.memory.get(m)
	if size == driver.WholeSize {
		size = mem.size - offset
	}
	var data unsafe.Pointer
	ret := vk.MapMemory(d.device, mem.mem, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &data)
	if err := newError(ret); err != nil {
		return nil, errors.Wrap(err, "vkMapMemory")
	}
	return unsafe.Slice((*byte)(data), size), nil
}

func (d *Device) UnmapMemory(m driver.Memory) {
	vk.UnmapMemory(d.device, d.memory.get(m).mem)
}

func (d *Device) CreateBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreateBuffer")
	}
	return d.buffers.put(buf), nil
}

func (d *Device) DestroyBuffer(b driver.Buffer) {
	if buf, ok := d.buffers.take(b); ok {
		vk.DestroyBuffer(d.device, buf, nil)
	}
}

func (d *Device) BufferMemoryRequirements(b driver.Buffer) driver.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, d.buffers.get(b), &reqs)
	reqs.Deref()
	return driver.MemoryRequirements{
		Size:      uint64(reqs.Size),
		Alignment: uint64(reqs.Alignment),
		TypeBits:  reqs.MemoryTypeBits,
	}
}

func (d *Device) BindBufferMemory(b driver.Buffer, m driver.Memory, offset uint64) error {
	ret := vk.BindBufferMemory(d.device, d.buffers.get(b), d.memory.get(m).mem, vk.DeviceSize(offset))
	return errors.Wrap(newError(ret), "vkBindBufferMemory")
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	info := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := newError(vk.CreateFence(d.device, &info, nil, &fence)); err != nil {
		return 0, errors.Wrap(err, "vkCreateFence")
	}
	return d.fences.put(fence), nil
}

func (d *Device) DestroyFence(f driver.Fence) {
	if fence, ok := d.fences.take(f); ok {
		vk.DestroyFence(d.device, fence, nil)
	}
}

func (d *Device) WaitForFences(fences []driver.Fence, waitAll bool, timeout uint64) error {
	vf := d.fences.getAll(fences)
	return newError(vk.WaitForFences(d.device, uint32(len(vf)), vf, vkBool(waitAll), timeout))
}

func (d *Device) ResetFences(fences []driver.Fence) error {
	vf := d.fences.getAll(fences)
	return newError(vk.ResetFences(d.device, uint32(len(vf)), vf))
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(d.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreateSemaphore")
	}
	return d.semaphores.put(sem), nil
}

func (d *Device) DestroySemaphore(s driver.Semaphore) {
	if sem, ok := d.semaphores.take(s); ok {
		vk.DestroySemaphore(d.device, sem, nil)
	}
}

func (d *Device) CreateCommandPool(family uint32, resettable bool) (driver.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
	}
	if resettable {
		info.Flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	}
	var pool vk.CommandPool
	if err := newError(vk.CreateCommandPool(d.device, &info, nil, &pool)); err != nil {
		return 0, errors.Wrap(err, "vkCreateCommandPool")
	}
	return d.pools.put(pool), nil
}

func (d *Device) DestroyCommandPool(p driver.CommandPool) {
	if pool, ok := d.pools.take(p); ok {
		vk.DestroyCommandPool(d.device, pool, nil)
	}
}

func (d *Device) AllocateCommandBuffers(p driver.CommandPool, count uint32) ([]driver.CommandBuffer, error) {
	cmds := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(d.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pools.get(p),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}, cmds)
	if err := newError(ret); err != nil {
		return nil, errors.Wrap(err, "vkAllocateCommandBuffers")
	}
	out := make([]driver.CommandBuffer, count)
	for i, c := range cmds {
		out[i] = d.cmds.put(c)
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(p driver.CommandPool, cmds []driver.CommandBuffer) {
	vc := make([]vk.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		if cmd, ok := d.cmds.take(c); ok {
			vc = append(vc, cmd)
		}
	}
	if len(vc) > 0 {
		vk.FreeCommandBuffers(d.device, d.pools.get(p), uint32(len(vc)), vc)
	}
}

func (d *Device) ResetCommandBuffer(cmd driver.CommandBuffer) error {
	return newError(vk.ResetCommandBuffer(d.cmds.get(cmd), 0))
}

func (d *Device) BeginCommandBuffer(cmd driver.CommandBuffer, oneTimeSubmit bool) error {
	info := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if oneTimeSubmit {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return newError(vk.BeginCommandBuffer(d.cmds.get(cmd), &info))
}

func (d *Device) EndCommandBuffer(cmd driver.CommandBuffer) error {
	return newError(vk.EndCommandBuffer(d.cmds.get(cmd)))
}

func (d *Device) CmdCopyBuffer(cmd driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	vr := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		vr[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(d.cmds.get(cmd), d.buffers.get(src), d.buffers.get(dst), uint32(len(vr)), vr)
}

func (d *Device) CmdPipelineBarrier(cmd driver.CommandBuffer, barriers []driver.ImageBarrier) {
	vcmd := d.cmds.get(cmd)
	for _, b := range barriers {
		vk.CmdPipelineBarrier(vcmd,
			vk.PipelineStageFlags(b.SrcStage), vk.PipelineStageFlags(b.DstStage),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
				SType:               vk.StructureTypeImageMemoryBarrier,
				SrcAccessMask:       vk.AccessFlags(b.SrcAccess),
				DstAccessMask:       vk.AccessFlags(b.DstAccess),
				OldLayout:           vk.ImageLayout(b.OldLayout),
				NewLayout:           vk.ImageLayout(b.NewLayout),
				SrcQueueFamilyIndex: b.SrcQueueFamily,
				DstQueueFamilyIndex: b.DstQueueFamily,
				Image:               d.images.get(b.Image),
				SubresourceRange:    subresource(b.Range),
			}})
	}
}

func subresource(r driver.ImageSubresourceRange) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(r.Aspect),
		BaseMipLevel:   r.BaseMipLevel,
		LevelCount:     r.LevelCount,
		BaseArrayLayer: r.BaseArrayLayer,
		LayerCount:     r.LayerCount,
	}
}

func (d *Device) CmdBeginRendering(cmd driver.CommandBuffer, info driver.RenderingInfo) {
	views := make([]vk.ImageView, len(info.ColorAttachments))
	for i, a := range info.ColorAttachments {
		views[i] = d.views.get(a.View)
	}
	d.rendering.begin(d.cmds.get(cmd), info, views)
}

func (d *Device) CmdEndRendering(cmd driver.CommandBuffer) {
	d.rendering.end(d.cmds.get(cmd))
}

func (d *Device) CmdSetViewport(cmd driver.CommandBuffer, viewports []driver.Viewport) {
	vv := make([]vk.Viewport, len(viewports))
	for i, v := range viewports {
		vv[i] = vk.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.MinDepth, MaxDepth: v.MaxDepth}
	}
	vk.CmdSetViewport(d.cmds.get(cmd), 0, uint32(len(vv)), vv)
}

func rect(r driver.Rect2D) vk.Rect2D {
	return vk.Rect2D{
		Offset: vk.Offset2D{X: r.Offset.X, Y: r.Offset.Y},
		Extent: vk.Extent2D{Width: r.Extent.Width, Height: r.Extent.Height},
	}
}

func (d *Device) CmdSetScissor(cmd driver.CommandBuffer, scissors []driver.Rect2D) {
	vs := make([]vk.Rect2D, len(scissors))
	for i, s := range scissors {
		vs[i] = rect(s)
	}
	vk.CmdSetScissor(d.cmds.get(cmd), 0, uint32(len(vs)), vs)
}

func (d *Device) CmdBindGraphicsPipeline(cmd driver.CommandBuffer, p driver.Pipeline) {
	vk.CmdBindPipeline(d.cmds.get(cmd), vk.PipelineBindPointGraphics, d.pipelines.get(p))
}

func (d *Device) CmdBindDescriptorSets(cmd driver.CommandBuffer, layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet) {
	vs := d.sets.getAll(sets)
	vk.CmdBindDescriptorSets(d.cmds.get(cmd), vk.PipelineBindPointGraphics,
		d.pipeLayouts.get(layout), firstSet, uint32(len(vs)), vs, 0, nil)
}

func (d *Device) CmdPushConstants(cmd driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(d.cmds.get(cmd), d.pipeLayouts.get(layout), vk.ShaderStageFlags(stages),
		offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *Device) CmdDraw(cmd driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(d.cmds.get(cmd), vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *Device) QueueSubmit(q driver.Queue, submits []driver.SubmitInfo, f driver.Fence) error {
	infos := make([]vk.SubmitInfo, len(submits))
	for i, s := range submits {
		stages := make([]vk.PipelineStageFlags, len(s.WaitStages))
		for n, st := range s.WaitStages {
			stages[n] = vk.PipelineStageFlags(st)
		}
		infos[i] = vk.SubmitInfo{
			SType:                vk.StructureTypeSubmitInfo,
			WaitSemaphoreCount:   uint32(len(s.WaitSemaphores)),
			PWaitSemaphores:      d.semaphores.getAll(s.WaitSemaphores),
			PWaitDstStageMask:    stages,
			CommandBufferCount:   uint32(len(s.CommandBuffers)),
			PCommandBuffers:      d.cmds.getAll(s.CommandBuffers),
			SignalSemaphoreCount: uint32(len(s.SignalSemaphores)),
			PSignalSemaphores:    d.semaphores.getAll(s.SignalSemaphores),
		}
	}
	fence := vk.NullFence
	if f != 0 {
		fence = d.fences.get(f)
	}
	return newError(vk.QueueSubmit(d.queues.get(q), uint32(len(infos)), infos, fence))
}

func (d *Device) QueuePresent(q driver.Queue, info driver.PresentInfo) error {
	ret := vk.QueuePresent(d.queues.get(q), &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(info.WaitSemaphores)),
		PWaitSemaphores:    d.semaphores.getAll(info.WaitSemaphores),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.swapchains.get(info.Swapchain)},
		PImageIndices:      []uint32{info.ImageIndex},
	})
	return newError(ret)
}

func (d *Device) CreateSwapchain(info driver.SwapchainCreateInfo) (driver.Swapchain, error) {
	old := vk.NullSwapchain
	if info.OldSwapchain != 0 {
		old = d.swapchains.get(info.OldSwapchain)
	}
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(d.device, &vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         d.inst.surfaces.get(info.Surface),
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format),
		ImageColorSpace: vk.ColorSpace(info.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(info.Usage),
		PreTransform:     vk.SurfaceTransformFlagBits(info.PreTransform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      vk.PresentMode(info.PresentMode),
		OldSwapchain:     old,
		Clipped:          vkBool(info.Clipped),
	}, nil, &swapchain)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreateSwapchainKHR")
	}
	return d.swapchains.put(swapchain), nil
}

func (d *Device) DestroySwapchain(sc driver.Swapchain) {
	swapchain, ok := d.swapchains.take(sc)
	if !ok {
		return
	}
	// Swapchain images belong to the chain.
	for _, img := range d.chainImages[sc] {
		d.images.take(img)
	}
	delete(d.chainImages, sc)
	vk.DestroySwapchain(d.device, swapchain, nil)
}

func (d *Device) SwapchainImages(sc driver.Swapchain) ([]driver.Image, error) {
	if imgs, ok := d.chainImages[sc]; ok {
		return imgs, nil
	}
	swapchain := d.swapchains.get(sc)
	var count uint32
	ret := vk.GetSwapchainImages(d.device, swapchain, &count, nil)
	if err := newError(ret); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	ret = vk.GetSwapchainImages(d.device, swapchain, &count, images)
	if err := newError(ret); err != nil {
		return nil, err
	}
	out := make([]driver.Image, len(images))
	for i, img := range images {
		out[i] = d.images.put(img)
	}
	d.chainImages[sc] = out
	return out, nil
}

func (d *Device) AcquireNextImage(sc driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	var idx uint32
	ret := vk.AcquireNextImage(d.device, d.swapchains.get(sc), timeout,
		d.semaphores.get(signal), vk.NullFence, &idx)
	return idx, newError(ret)
}

func (d *Device) CreateImageView(img driver.Image, format driver.Format) (driver.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    d.images.get(img),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreateImageView")
	}
	return d.views.put(view), nil
}

func (d *Device) DestroyImageView(v driver.ImageView) {
	if view, ok := d.views.take(v); ok {
		vk.DestroyImageView(d.device, view, nil)
	}
}

func (d *Device) CreateDescriptorSetLayout(desc driver.DescriptorSetLayoutDesc) (driver.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(desc.Bindings))
	flags := make([]driver.DescriptorBindingFlags, len(desc.Bindings))
	anyFlags := false
	for i, b := range desc.Bindings {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
		flags[i] = b.Flags
		anyFlags = anyFlags || b.Flags != 0
	}

	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		Flags:        vk.DescriptorSetLayoutCreateFlags(desc.Flags),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if anyFlags {
		info.PNext = newBindingFlags(flags)
		defer freeChain(info.PNext)
	}

	var layout vk.DescriptorSetLayout
	if err := newError(vk.CreateDescriptorSetLayout(d.device, &info, nil, &layout)); err != nil {
		return 0, errors.Wrap(err, "vkCreateDescriptorSetLayout")
	}
	return d.setLayouts.put(layout), nil
}

func (d *Device) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	if layout, ok := d.setLayouts.take(l); ok {
		vk.DestroyDescriptorSetLayout(d.device, layout, nil)
	}
}

func (d *Device) CreateDescriptorPool(desc driver.DescriptorPoolDesc) (driver.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{Type: vk.DescriptorType(s.Type), DescriptorCount: s.Count}
	}
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(desc.Flags),
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreateDescriptorPool")
	}
	return d.descPools.put(pool), nil
}

func (d *Device) DestroyDescriptorPool(p driver.DescriptorPool) {
	if pool, ok := d.descPools.take(p); ok {
		vk.DestroyDescriptorPool(d.device, pool, nil)
	}
}

func (d *Device) AllocateDescriptorSet(p driver.DescriptorPool, l driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	var set vk.DescriptorSet
	ret := vk.AllocateDescriptorSets(d.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descPools.get(p),
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.setLayouts.get(l)},
	}, &set)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkAllocateDescriptorSets")
	}
	return d.sets.put(set), nil
}

func (d *Device) UpdateDescriptorSets(writes []driver.DescriptorWrite) {
	vw := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		infos := make([]vk.DescriptorBufferInfo, len(w.Buffers))
		for n, b := range w.Buffers {
			infos[n] = vk.DescriptorBufferInfo{
				Buffer: d.buffers.get(b.Buffer),
				Offset: vk.DeviceSize(b.Offset),
				Range:  vk.DeviceSize(b.Range),
			}
		}
		vw[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          d.sets.get(w.Set),
			DstBinding:      w.Binding,
			DstArrayElement: w.ArrayElement,
			DescriptorCount: uint32(len(infos)),
			DescriptorType:  vk.DescriptorType(w.Type),
			PBufferInfo:     infos,
		}
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(vw)), vw, 0, nil)
}

func (d *Device) CreateShaderModule(code []uint32) (driver.ShaderModule, error) {
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(d.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}, nil, &module)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreateShaderModule")
	}
	return d.shaders.put(module), nil
}

func (d *Device) DestroyShaderModule(m driver.ShaderModule) {
	if module, ok := d.shaders.take(m); ok {
		vk.DestroyShaderModule(d.device, module, nil)
	}
}

func (d *Device) CreatePipelineLayout(desc driver.PipelineLayoutDesc) (driver.PipelineLayout, error) {
	ranges := make([]vk.PushConstantRange, len(desc.PushConstants))
	for i, r := range desc.PushConstants {
		ranges[i] = vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(r.Stages), Offset: r.Offset, Size: r.Size}
	}
	setLayouts := d.setLayouts.getAll(desc.SetLayouts)
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(d.device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreatePipelineLayout")
	}
	return d.pipeLayouts.put(layout), nil
}

func (d *Device) DestroyPipelineLayout(l driver.PipelineLayout) {
	if layout, ok := d.pipeLayouts.take(l); ok {
		vk.DestroyPipelineLayout(d.device, layout, nil)
	}
}

func (d *Device) CreateGraphicsPipeline(desc driver.GraphicsPipelineDesc) (driver.Pipeline, error) {
	stages := make([]vk.PipelineShaderStageCreateInfo, len(desc.Stages))
	for i, s := range desc.Stages {
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: d.shaders.get(s.Module),
			PName:  safeString(s.Entry),
		}
	}
	viewports := make([]vk.Viewport, len(desc.Viewports))
	for i, v := range desc.Viewports {
		viewports[i] = vk.Viewport{X: v.X, Y: v.Y, Width: v.Width, Height: v.Height, MinDepth: v.MinDepth, MaxDepth: v.MaxDepth}
	}
	scissors := make([]vk.Rect2D, len(desc.Scissors))
	for i, s := range desc.Scissors {
		scissors[i] = rect(s)
	}
	blend := make([]vk.PipelineColorBlendAttachmentState, len(desc.ColorBlend))
	for i, b := range desc.ColorBlend {
		blend[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vkBool(b.BlendEnable),
			ColorWriteMask: vk.ColorComponentFlags(b.WriteMask),
		}
	}
	dynamic := make([]vk.DynamicState, len(desc.DynamicStates))
	for i, s := range desc.DynamicStates {
		dynamic[i] = vk.DynamicState(s)
	}

	rendering := newPipelineRendering(desc.ColorAttachmentFormats)
	defer freeChain(rendering)

	var cache vk.PipelineCache
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(d.device, cache, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:      rendering,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopology(desc.Topology),
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: uint32(max(len(viewports), 1)),
			PViewports:    viewports,
			ScissorCount:  uint32(max(len(scissors), 1)),
			PScissors:     scissors,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode: vk.PolygonModeFill,
			CullMode:    vk.CullModeFlags(desc.CullMode),
			FrontFace:   vk.FrontFace(desc.FrontFace),
			LineWidth:   desc.LineWidth,
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			AttachmentCount: uint32(len(blend)),
			PAttachments:    blend,
		},
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: uint32(len(dynamic)),
			PDynamicStates:    dynamic,
		},
		Layout: d.pipeLayouts.get(desc.Layout),
	}}, nil, pipelines)
	if err := newError(ret); err != nil {
		return 0, errors.Wrap(err, "vkCreateGraphicsPipelines")
	}
	return d.pipelines.put(pipelines[0]), nil
}

func (d *Device) DestroyPipeline(p driver.Pipeline) {
	if pipeline, ok := d.pipelines.take(p); ok {
		vk.DestroyPipeline(d.device, pipeline, nil)
	}
}

// Destroy releases the device. Every child object must be gone already.
func (d *Device) Destroy() {
	if d.device == nil {
		return
	}
	d.rendering.release()
	vk.DestroyDevice(d.device, nil)
	d.device = nil
}

package recorder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/andewx/strale/driver"
)

// ErrNeverSignaled is returned when a fence with an infinite timeout is
// waited on while nothing is pending that could signal it.
var ErrNeverSignaled = errors.New("recorder: waiting on a fence that can never signal")

type memory struct {
	typeIndex uint32
	data      []byte
	mapped    bool
}

type buffer struct {
	size   uint64
	usage  driver.BufferUsage
	mem    driver.Memory
	offset uint64
}

type commandBuffer struct {
	pool      driver.CommandPool
	recording bool
	oneTime   bool
	commands  []Command
}

type swapchain struct {
	info   driver.SwapchainCreateInfo
	images []driver.Image
	next   uint32
}

// Submission is one QueueSubmit call.
type Submission struct {
	Queue    driver.Queue
	Fence    driver.Fence
	Infos    []driver.SubmitInfo
	Commands map[driver.CommandBuffer][]Command
}

// Device records everything issued to it. Exported fields are safe to read
// once the code under test has returned.
type Device struct {
	inst *Instance
	info driver.PhysicalDeviceInfo
	desc driver.DeviceDesc

	mu sync.Mutex

	memories    map[driver.Memory]*memory
	buffers     map[driver.Buffer]*buffer
	fences      map[driver.Fence]bool
	semaphores  map[driver.Semaphore]bool
	pools       map[driver.CommandPool]bool
	cmds        map[driver.CommandBuffer]*commandBuffer
	swapchains  map[driver.Swapchain]*swapchain
	views       map[driver.ImageView]driver.Image
	setLayouts  map[driver.DescriptorSetLayout]driver.DescriptorSetLayoutDesc
	descPools   map[driver.DescriptorPool]driver.DescriptorPoolDesc
	sets        map[driver.DescriptorSet]map[uint32]driver.Buffer
	shaders     map[driver.ShaderModule][]uint32
	pipeLayouts map[driver.PipelineLayout]driver.PipelineLayoutDesc
	pipelines   map[driver.Pipeline]driver.GraphicsPipelineDesc

	// Calls lists every method name in call order.
	Calls []string

	FenceWaits   int
	WaitIdles    int
	Submits      []Submission
	Presents     []driver.PresentInfo
	Acquired     []uint32
	Pipelines    []driver.GraphicsPipelineDesc
	Destroyed    bool
	DestroyOrder []string

	// Violations lists API misuse detected while recording.
	Violations []string

	// AcquireErrors and PresentErrors are consumed one per call; a nil entry
	// lets the call succeed.
	AcquireErrors []error
	PresentErrors []error

	// AcquireIndex overrides the index returned for the given rotation slot.
	AcquireIndex func(next uint32) uint32

	// SwapchainImageCount overrides the number of images per swapchain.
	SwapchainImageCount uint32
}

var _ driver.Device = (*Device)(nil)

func newDevice(inst *Instance, info driver.PhysicalDeviceInfo, desc driver.DeviceDesc) *Device {
	return &Device{
		inst:        inst,
		info:        info,
		desc:        desc,
		memories:    map[driver.Memory]*memory{},
		buffers:     map[driver.Buffer]*buffer{},
		fences:      map[driver.Fence]bool{},
		semaphores:  map[driver.Semaphore]bool{},
		pools:       map[driver.CommandPool]bool{},
		cmds:        map[driver.CommandBuffer]*commandBuffer{},
		swapchains:  map[driver.Swapchain]*swapchain{},
		views:       map[driver.ImageView]driver.Image{},
		setLayouts:  map[driver.DescriptorSetLayout]driver.DescriptorSetLayoutDesc{},
		descPools:   map[driver.DescriptorPool]driver.DescriptorPoolDesc{},
		sets:        map[driver.DescriptorSet]map[uint32]driver.Buffer{},
		shaders:     map[driver.ShaderModule][]uint32{},
		pipeLayouts: map[driver.PipelineLayout]driver.PipelineLayoutDesc{},
		pipelines:   map[driver.Pipeline]driver.GraphicsPipelineDesc{},
	}
}

// Desc is the description the device was created with.
func (d *Device) Desc() driver.DeviceDesc { return d.desc }

func (d *Device) handle() uint64 { return d.inst.loader.handle() }

func (d *Device) call(name string) {
	d.Calls = append(d.Calls, name)
}

func (d *Device) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) GetQueue(family, index uint32) driver.Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("GetQueue")
	return driver.Queue(0x100 + uint64(family)<<8 + uint64(index))
}

func (d *Device) DeviceWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DeviceWaitIdle")
	d.WaitIdles++
	return nil
}

func (d *Device) AllocateMemory(size uint64, typeIndex uint32) (driver.Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("AllocateMemory")
	if int(typeIndex) >= len(d.info.MemoryTypes) {
		return 0, fmt.Errorf("recorder: memory type %d out of range", typeIndex)
	}
	m := driver.Memory(d.handle())
	d.memories[m] = &memory{typeIndex: typeIndex, data: make([]byte, size)}
	return m, nil
}

func (d *Device) FreeMemory(mem driver.Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("FreeMemory")
	if _, ok := d.memories[mem]; !ok {
		d.violate("FreeMemory: unknown memory %#x", mem)
	}
	delete(d.memories, mem)
}

func (d *Device) MapMemory(mem driver.Memory, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("MapMemory")
	m, ok := d.memories[mem]
	if !ok {
		return nil, fmt.Errorf("recorder: unknown memory %#x", mem)
	}
	if d.info.MemoryTypes[m.typeIndex].Flags&driver.MemoryHostVisible == 0 {
		return nil, fmt.Errorf("recorder: memory type %d is not host visible", m.typeIndex)
	}
	if m.mapped {
		d.violate("MapMemory: memory %#x already mapped", mem)
	}
	if size == driver.WholeSize {
		size = uint64(len(m.data)) - offset
	}
	if offset+size > uint64(len(m.data)) {
		return nil, fmt.Errorf("recorder: map range [%d,%d) exceeds %d bytes", offset, offset+size, len(m.data))
	}
	m.mapped = true
	return m.data[offset : offset+size : offset+size], nil
}

func (d *Device) UnmapMemory(mem driver.Memory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("UnmapMemory")
	if m, ok := d.memories[mem]; ok {
		m.mapped = false
	}
}

func (d *Device) CreateBuffer(size uint64, usage driver.BufferUsage) (driver.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateBuffer")
	if size == 0 {
		return 0, errors.New("recorder: zero sized buffer")
	}
	b := driver.Buffer(d.handle())
	d.buffers[b] = &buffer{size: size, usage: usage}
	return b, nil
}

func (d *Device) DestroyBuffer(buf driver.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyBuffer")
	if _, ok := d.buffers[buf]; !ok {
		d.violate("DestroyBuffer: unknown buffer %#x", buf)
	}
	delete(d.buffers, buf)
}

func (d *Device) BufferMemoryRequirements(buf driver.Buffer) driver.MemoryRequirements {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("BufferMemoryRequirements")
	b, ok := d.buffers[buf]
	if !ok {
		d.violate("BufferMemoryRequirements: unknown buffer %#x", buf)
		return driver.MemoryRequirements{}
	}
	return driver.MemoryRequirements{
		Size:      (b.size + 255) &^ 255,
		Alignment: 256,
		TypeBits:  1<<uint(len(d.info.MemoryTypes)) - 1,
	}
}

func (d *Device) BindBufferMemory(buf driver.Buffer, mem driver.Memory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("BindBufferMemory")
	b, ok := d.buffers[buf]
	if !ok {
		return fmt.Errorf("recorder: unknown buffer %#x", buf)
	}
	m, ok := d.memories[mem]
	if !ok {
		return fmt.Errorf("recorder: unknown memory %#x", mem)
	}
	if b.mem != 0 {
		d.violate("BindBufferMemory: buffer %#x already bound", buf)
	}
	if offset%256 != 0 {
		d.violate("BindBufferMemory: offset %d is not aligned", offset)
	}
	if offset+b.size > uint64(len(m.data)) {
		return fmt.Errorf("recorder: buffer of %d bytes at %d overruns memory of %d bytes", b.size, offset, len(m.data))
	}
	b.mem, b.offset = mem, offset
	return nil
}

// BufferContents returns a copy of the bytes currently backing buf.
func (d *Device) BufferContents(buf driver.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	if !ok || b.mem == 0 {
		return nil
	}
	m := d.memories[b.mem]
	return append([]byte(nil), m.data[b.offset:b.offset+b.size]...)
}

// BufferUsage returns the usage buf was created with.
func (d *Device) BufferUsage(buf driver.Buffer) driver.BufferUsage {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[buf]; ok {
		return b.usage
	}
	return 0
}

// LiveBuffers counts buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// LiveMemory counts allocations not yet freed.
func (d *Device) LiveMemory() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.memories)
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateFence")
	f := driver.Fence(d.handle())
	d.fences[f] = signaled
	return f, nil
}

func (d *Device) DestroyFence(f driver.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyFence")
	delete(d.fences, f)
}

// FenceSignaled reports the current state of f.
func (d *Device) FenceSignaled(f driver.Fence) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fences[f]
}

// Work completes at submit, so an unsignaled fence has nothing pending.
func (d *Device) WaitForFences(fences []driver.Fence, waitAll bool, timeout uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("WaitForFences")
	d.FenceWaits++
	done := false
	for _, f := range fences {
		signaled, ok := d.fences[f]
		if !ok {
			return fmt.Errorf("recorder: unknown fence %#x", f)
		}
		if signaled {
			done = true
		} else if waitAll {
			done = false
			break
		}
	}
	if done {
		return nil
	}
	if timeout == driver.Infinite {
		return ErrNeverSignaled
	}
	return driver.ErrTimeout
}

func (d *Device) ResetFences(fences []driver.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("ResetFences")
	for _, f := range fences {
		if _, ok := d.fences[f]; !ok {
			return fmt.Errorf("recorder: unknown fence %#x", f)
		}
		d.fences[f] = false
	}
	return nil
}

func (d *Device) CreateSemaphore() (driver.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateSemaphore")
	s := driver.Semaphore(d.handle())
	d.semaphores[s] = false
	return s, nil
}

func (d *Device) DestroySemaphore(s driver.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySemaphore")
	delete(d.semaphores, s)
}

func (d *Device) CreateCommandPool(family uint32, resettable bool) (driver.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateCommandPool")
	p := driver.CommandPool(d.handle())
	d.pools[p] = resettable
	return p, nil
}

func (d *Device) DestroyCommandPool(pool driver.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyCommandPool")
	for h, c := range d.cmds {
		if c.pool == pool {
			delete(d.cmds, h)
		}
	}
	delete(d.pools, pool)
}

func (d *Device) AllocateCommandBuffers(pool driver.CommandPool, count uint32) ([]driver.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("AllocateCommandBuffers")
	if _, ok := d.pools[pool]; !ok {
		return nil, fmt.Errorf("recorder: unknown command pool %#x", pool)
	}
	out := make([]driver.CommandBuffer, count)
	for i := range out {
		out[i] = driver.CommandBuffer(d.handle())
		d.cmds[out[i]] = &commandBuffer{pool: pool}
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(pool driver.CommandPool, cmds []driver.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("FreeCommandBuffers")
	for _, c := range cmds {
		delete(d.cmds, c)
	}
}

func (d *Device) ResetCommandBuffer(cmd driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("ResetCommandBuffer")
	c, ok := d.cmds[cmd]
	if !ok {
		return fmt.Errorf("recorder: unknown command buffer %#x", cmd)
	}
	if !d.pools[c.pool] {
		d.violate("ResetCommandBuffer: pool of %#x was not created resettable", cmd)
	}
	c.recording = false
	c.commands = nil
	return nil
}

func (d *Device) BeginCommandBuffer(cmd driver.CommandBuffer, oneTimeSubmit bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("BeginCommandBuffer")
	c, ok := d.cmds[cmd]
	if !ok {
		return fmt.Errorf("recorder: unknown command buffer %#x", cmd)
	}
	if c.recording {
		d.violate("BeginCommandBuffer: %#x is already recording", cmd)
	}
	c.recording = true
	c.oneTime = oneTimeSubmit
	c.commands = nil
	return nil
}

func (d *Device) EndCommandBuffer(cmd driver.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("EndCommandBuffer")
	c, ok := d.cmds[cmd]
	if !ok {
		return fmt.Errorf("recorder: unknown command buffer %#x", cmd)
	}
	if !c.recording {
		d.violate("EndCommandBuffer: %#x is not recording", cmd)
	}
	c.recording = false
	return nil
}

// Commands returns a copy of what was last recorded into cmd.
func (d *Device) Commands(cmd driver.CommandBuffer) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.cmds[cmd]
	if !ok {
		return nil
	}
	return append([]Command(nil), c.commands...)
}

func (d *Device) record(cmd driver.CommandBuffer, c Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("Cmd" + c.Op.String())
	cb, ok := d.cmds[cmd]
	if !ok {
		d.violate("%s: unknown command buffer %#x", c.Op, cmd)
		return
	}
	if !cb.recording {
		d.violate("%s: command buffer %#x is not recording", c.Op, cmd)
		return
	}
	if c.Op == OpBindDescriptorSets {
		c.SetContents = make([]map[uint32]driver.Buffer, len(c.Sets))
		for i, s := range c.Sets {
			snap := map[uint32]driver.Buffer{}
			for b, buf := range d.sets[s] {
				snap[b] = buf
			}
			c.SetContents[i] = snap
		}
	}
	cb.commands = append(cb.commands, c)
}

func (d *Device) CmdCopyBuffer(cmd driver.CommandBuffer, src, dst driver.Buffer, regions []driver.BufferCopy) {
	d.record(cmd, Command{Op: OpCopyBuffer, Src: src, Dst: dst, Regions: append([]driver.BufferCopy(nil), regions...)})
}

func (d *Device) CmdPipelineBarrier(cmd driver.CommandBuffer, barriers []driver.ImageBarrier) {
	d.record(cmd, Command{Op: OpPipelineBarrier, Barriers: append([]driver.ImageBarrier(nil), barriers...)})
}

func (d *Device) CmdBeginRendering(cmd driver.CommandBuffer, info driver.RenderingInfo) {
	info.ColorAttachments = append([]driver.RenderingAttachment(nil), info.ColorAttachments...)
	d.record(cmd, Command{Op: OpBeginRendering, Rendering: info})
}

func (d *Device) CmdEndRendering(cmd driver.CommandBuffer) {
	d.record(cmd, Command{Op: OpEndRendering})
}

func (d *Device) CmdSetViewport(cmd driver.CommandBuffer, viewports []driver.Viewport) {
	d.record(cmd, Command{Op: OpSetViewport, Viewports: append([]driver.Viewport(nil), viewports...)})
}

func (d *Device) CmdSetScissor(cmd driver.CommandBuffer, scissors []driver.Rect2D) {
	d.record(cmd, Command{Op: OpSetScissor, Scissors: append([]driver.Rect2D(nil), scissors...)})
}

func (d *Device) CmdBindGraphicsPipeline(cmd driver.CommandBuffer, p driver.Pipeline) {
	d.record(cmd, Command{Op: OpBindPipeline, Pipeline: p})
}

func (d *Device) CmdBindDescriptorSets(cmd driver.CommandBuffer, layout driver.PipelineLayout, firstSet uint32, sets []driver.DescriptorSet) {
	d.record(cmd, Command{Op: OpBindDescriptorSets, Layout: layout, FirstSet: firstSet, Sets: append([]driver.DescriptorSet(nil), sets...)})
}

func (d *Device) CmdPushConstants(cmd driver.CommandBuffer, layout driver.PipelineLayout, stages driver.ShaderStage, offset uint32, data []byte) {
	d.record(cmd, Command{Op: OpPushConstants, Layout: layout, Stages: stages, Offset: offset, Data: append([]byte(nil), data...)})
}

func (d *Device) CmdDraw(cmd driver.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record(cmd, Command{
		Op:            OpDraw,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// QueueSubmit executes recorded copies immediately and signals the fence.
func (d *Device) QueueSubmit(q driver.Queue, submits []driver.SubmitInfo, fence driver.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("QueueSubmit")
	if fence != 0 {
		signaled, ok := d.fences[fence]
		if !ok {
			return fmt.Errorf("recorder: unknown fence %#x", fence)
		}
		if signaled {
			d.violate("QueueSubmit: fence %#x is already signaled", fence)
		}
	}
	sub := Submission{Queue: q, Fence: fence, Commands: map[driver.CommandBuffer][]Command{}}
	for _, s := range submits {
		if len(s.WaitSemaphores) != len(s.WaitStages) {
			return errors.New("recorder: wait semaphore and stage counts differ")
		}
		for _, w := range s.WaitSemaphores {
			if !d.semaphores[w] {
				d.violate("QueueSubmit: waiting on unsignaled semaphore %#x", w)
			}
			d.semaphores[w] = false
		}
		for _, h := range s.CommandBuffers {
			c, ok := d.cmds[h]
			if !ok {
				return fmt.Errorf("recorder: unknown command buffer %#x", h)
			}
			if c.recording {
				d.violate("QueueSubmit: command buffer %#x is still recording", h)
			}
			sub.Commands[h] = append([]Command(nil), c.commands...)
			for _, cmd := range c.commands {
				if cmd.Op == OpCopyBuffer {
					d.copyBuffer(cmd)
				}
			}
		}
		for _, sig := range s.SignalSemaphores {
			d.semaphores[sig] = true
		}
		sub.Infos = append(sub.Infos, copySubmit(s))
	}
	if fence != 0 {
		d.fences[fence] = true
	}
	d.Submits = append(d.Submits, sub)
	return nil
}

func copySubmit(s driver.SubmitInfo) driver.SubmitInfo {
	return driver.SubmitInfo{
		WaitSemaphores:   append([]driver.Semaphore(nil), s.WaitSemaphores...),
		WaitStages:       append([]driver.PipelineStage(nil), s.WaitStages...),
		CommandBuffers:   append([]driver.CommandBuffer(nil), s.CommandBuffers...),
		SignalSemaphores: append([]driver.Semaphore(nil), s.SignalSemaphores...),
	}
}

func (d *Device) copyBuffer(c Command) {
	src, dst := d.buffers[c.Src], d.buffers[c.Dst]
	if src == nil || dst == nil || src.mem == 0 || dst.mem == 0 {
		d.violate("CopyBuffer: unbound or unknown buffer %#x -> %#x", c.Src, c.Dst)
		return
	}
	if dst.usage&driver.BufferUsageTransferDst == 0 {
		d.violate("CopyBuffer: destination %#x lacks transfer dst usage", c.Dst)
	}
	if src.usage&driver.BufferUsageTransferSrc == 0 {
		d.violate("CopyBuffer: source %#x lacks transfer src usage", c.Src)
	}
	sm, dm := d.memories[src.mem], d.memories[dst.mem]
	for _, r := range c.Regions {
		if r.SrcOffset+r.Size > src.size || r.DstOffset+r.Size > dst.size {
			d.violate("CopyBuffer: region %+v out of range", r)
			continue
		}
		s := src.offset + r.SrcOffset
		t := dst.offset + r.DstOffset
		copy(dm.data[t:t+r.Size], sm.data[s:s+r.Size])
	}
}

func (d *Device) QueuePresent(q driver.Queue, info driver.PresentInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("QueuePresent")
	for _, w := range info.WaitSemaphores {
		if !d.semaphores[w] {
			d.violate("QueuePresent: waiting on unsignaled semaphore %#x", w)
		}
		d.semaphores[w] = false
	}
	if _, ok := d.swapchains[info.Swapchain]; !ok {
		return fmt.Errorf("recorder: unknown swapchain %#x", info.Swapchain)
	}
	d.Presents = append(d.Presents, driver.PresentInfo{
		WaitSemaphores: append([]driver.Semaphore(nil), info.WaitSemaphores...),
		Swapchain:      info.Swapchain,
		ImageIndex:     info.ImageIndex,
	})
	if len(d.PresentErrors) > 0 {
		err := d.PresentErrors[0]
		d.PresentErrors = d.PresentErrors[1:]
		return err
	}
	return nil
}

func (d *Device) CreateSwapchain(info driver.SwapchainCreateInfo) (driver.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateSwapchain")
	if !d.inst.SurfaceAlive(info.Surface) {
		return 0, fmt.Errorf("recorder: unknown surface %#x", info.Surface)
	}
	if info.OldSwapchain != 0 {
		if _, ok := d.swapchains[info.OldSwapchain]; !ok {
			d.violate("CreateSwapchain: old swapchain %#x is unknown", info.OldSwapchain)
		}
	}
	n := info.MinImageCount
	if d.SwapchainImageCount != 0 {
		n = d.SwapchainImageCount
	}
	sc := &swapchain{info: info, images: make([]driver.Image, n)}
	for i := range sc.images {
		sc.images[i] = driver.Image(d.handle())
	}
	h := driver.Swapchain(d.handle())
	d.swapchains[h] = sc
	return h, nil
}

func (d *Device) DestroySwapchain(sc driver.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroySwapchain")
	d.DestroyOrder = append(d.DestroyOrder, "swapchain")
	delete(d.swapchains, sc)
}

// SwapchainInfo returns the create info of a live swapchain.
func (d *Device) SwapchainInfo(sc driver.Swapchain) (driver.SwapchainCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.swapchains[sc]
	if !ok {
		return driver.SwapchainCreateInfo{}, false
	}
	return s.info, true
}

func (d *Device) SwapchainImages(sc driver.Swapchain) ([]driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("SwapchainImages")
	s, ok := d.swapchains[sc]
	if !ok {
		return nil, fmt.Errorf("recorder: unknown swapchain %#x", sc)
	}
	return append([]driver.Image(nil), s.images...), nil
}

// AcquireNextImage hands out images in rotation unless AcquireIndex says
// otherwise.
func (d *Device) AcquireNextImage(sc driver.Swapchain, timeout uint64, signal driver.Semaphore) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("AcquireNextImage")
	s, ok := d.swapchains[sc]
	if !ok {
		return 0, fmt.Errorf("recorder: unknown swapchain %#x", sc)
	}
	if len(d.AcquireErrors) > 0 {
		err := d.AcquireErrors[0]
		d.AcquireErrors = d.AcquireErrors[1:]
		if err != nil {
			return 0, err
		}
	}
	if d.semaphores[signal] {
		d.violate("AcquireNextImage: semaphore %#x is already signaled", signal)
	}
	idx := s.next
	if d.AcquireIndex != nil {
		idx = d.AcquireIndex(s.next) % uint32(len(s.images))
	}
	s.next = (s.next + 1) % uint32(len(s.images))
	d.semaphores[signal] = true
	d.Acquired = append(d.Acquired, idx)
	return idx, nil
}

func (d *Device) CreateImageView(img driver.Image, format driver.Format) (driver.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateImageView")
	v := driver.ImageView(d.handle())
	d.views[v] = img
	return v, nil
}

func (d *Device) DestroyImageView(v driver.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyImageView")
	delete(d.views, v)
}

// ViewImage returns the image a live view was created for.
func (d *Device) ViewImage(v driver.ImageView) driver.Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.views[v]
}

func (d *Device) CreateDescriptorSetLayout(desc driver.DescriptorSetLayoutDesc) (driver.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateDescriptorSetLayout")
	for _, b := range desc.Bindings {
		if b.Flags&driver.DescriptorBindingUpdateAfterBind != 0 && desc.Flags&driver.DescriptorSetLayoutUpdateAfterBindPool == 0 {
			return 0, fmt.Errorf("recorder: binding %d is update-after-bind in a layout without the pool flag", b.Binding)
		}
	}
	l := driver.DescriptorSetLayout(d.handle())
	desc.Bindings = append([]driver.DescriptorSetLayoutBinding(nil), desc.Bindings...)
	d.setLayouts[l] = desc
	return l, nil
}

func (d *Device) DestroyDescriptorSetLayout(l driver.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDescriptorSetLayout")
	delete(d.setLayouts, l)
}

// SetLayout returns the description of a live descriptor set layout.
func (d *Device) SetLayout(l driver.DescriptorSetLayout) (driver.DescriptorSetLayoutDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.setLayouts[l]
	return desc, ok
}

func (d *Device) CreateDescriptorPool(desc driver.DescriptorPoolDesc) (driver.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateDescriptorPool")
	p := driver.DescriptorPool(d.handle())
	d.descPools[p] = desc
	return p, nil
}

func (d *Device) DestroyDescriptorPool(p driver.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyDescriptorPool")
	delete(d.descPools, p)
}

// DescriptorPoolDesc returns the description of a live descriptor pool.
func (d *Device) DescriptorPoolDesc(p driver.DescriptorPool) (driver.DescriptorPoolDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.descPools[p]
	return desc, ok
}

func (d *Device) AllocateDescriptorSet(pool driver.DescriptorPool, layout driver.DescriptorSetLayout) (driver.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("AllocateDescriptorSet")
	pd, ok := d.descPools[pool]
	if !ok {
		return 0, fmt.Errorf("recorder: unknown descriptor pool %#x", pool)
	}
	ld, ok := d.setLayouts[layout]
	if !ok {
		return 0, fmt.Errorf("recorder: unknown descriptor set layout %#x", layout)
	}
	if ld.Flags&driver.DescriptorSetLayoutUpdateAfterBindPool != 0 && pd.Flags&driver.DescriptorPoolUpdateAfterBind == 0 {
		return 0, errors.New("recorder: update-after-bind layout allocated from a pool without the flag")
	}
	s := driver.DescriptorSet(d.handle())
	d.sets[s] = map[uint32]driver.Buffer{}
	return s, nil
}

func (d *Device) UpdateDescriptorSets(writes []driver.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("UpdateDescriptorSets")
	for _, w := range writes {
		set, ok := d.sets[w.Set]
		if !ok {
			d.violate("UpdateDescriptorSets: unknown set %#x", w.Set)
			continue
		}
		for i, b := range w.Buffers {
			if _, ok := d.buffers[b.Buffer]; !ok {
				d.violate("UpdateDescriptorSets: unknown buffer %#x", b.Buffer)
			}
			set[w.Binding+w.ArrayElement+uint32(i)] = b.Buffer
		}
	}
}

// SetContents returns the buffer currently written at each binding of s.
func (d *Device) SetContents(s driver.DescriptorSet) map[uint32]driver.Buffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[uint32]driver.Buffer{}
	for b, buf := range d.sets[s] {
		out[b] = buf
	}
	return out
}

func (d *Device) CreateShaderModule(code []uint32) (driver.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateShaderModule")
	if len(code) == 0 {
		return 0, errors.New("recorder: empty shader module")
	}
	m := driver.ShaderModule(d.handle())
	d.shaders[m] = append([]uint32(nil), code...)
	return m, nil
}

func (d *Device) DestroyShaderModule(m driver.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyShaderModule")
	delete(d.shaders, m)
}

// LiveShaderModules counts shader modules not yet destroyed.
func (d *Device) LiveShaderModules() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.shaders)
}

func (d *Device) CreatePipelineLayout(desc driver.PipelineLayoutDesc) (driver.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreatePipelineLayout")
	for _, l := range desc.SetLayouts {
		if _, ok := d.setLayouts[l]; !ok {
			return 0, fmt.Errorf("recorder: unknown descriptor set layout %#x", l)
		}
	}
	var total uint32
	for _, r := range desc.PushConstants {
		if r.Offset+r.Size > total {
			total = r.Offset + r.Size
		}
	}
	if total > d.info.Limits.MaxPushConstantsSize {
		return 0, fmt.Errorf("recorder: %d bytes of push constants exceed the limit", total)
	}
	l := driver.PipelineLayout(d.handle())
	d.pipeLayouts[l] = desc
	return l, nil
}

func (d *Device) DestroyPipelineLayout(l driver.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyPipelineLayout")
	delete(d.pipeLayouts, l)
}

// PipelineLayoutDesc returns the description of a live pipeline layout.
func (d *Device) PipelineLayoutDesc(l driver.PipelineLayout) (driver.PipelineLayoutDesc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	desc, ok := d.pipeLayouts[l]
	return desc, ok
}

func (d *Device) CreateGraphicsPipeline(desc driver.GraphicsPipelineDesc) (driver.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("CreateGraphicsPipeline")
	if _, ok := d.pipeLayouts[desc.Layout]; !ok {
		return 0, fmt.Errorf("recorder: unknown pipeline layout %#x", desc.Layout)
	}
	for _, s := range desc.Stages {
		if _, ok := d.shaders[s.Module]; !ok {
			return 0, fmt.Errorf("recorder: unknown shader module %#x", s.Module)
		}
	}
	p := driver.Pipeline(d.handle())
	d.pipelines[p] = desc
	d.Pipelines = append(d.Pipelines, desc)
	return p, nil
}

func (d *Device) DestroyPipeline(p driver.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("DestroyPipeline")
	delete(d.pipelines, p)
}

func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.call("Destroy")
	if len(d.swapchains) > 0 {
		d.violate("Destroy: %d swapchains still alive", len(d.swapchains))
	}
	d.DestroyOrder = append(d.DestroyOrder, "device")
	d.Destroyed = true
}

package strale

import (
	"strings"
	"sync"
	"time"

	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// Device exclusively owns the logical device, its single queue, the memory
// allocator, the two frame slots and the setup command buffer. Swapchains,
// buffers and pipelines hold a back-reference for issuing calls but never
// outlive it; the owner destroys them first.
type Device struct {
	Raw        driver.Device
	Physical   PhysicalDevice
	Queue      Queue
	Extensions []string
	Features   driver.Features
	Allocator  *Allocator

	// RayTracing is set when every ray tracing extension was enabled.
	RayTracing bool

	// FirstFrame is the creation time; shaders get seconds since it.
	FirstFrame time.Time

	log          *Logger
	onFatal      FatalHandler
	fenceTimeout uint64
	acquireWait  uint64

	pool *CommandPool

	frameMu sync.Mutex
	frames  [2]*DeviceFrame

	// queueMu orders submissions from setup uploads and the frame loop.
	queueMu sync.Mutex

	setupMu  sync.Mutex
	setupCmd driver.CommandBuffer
}

// CreateDevice creates the logical device on pd. Swapchain and dynamic
// rendering support are required; ray tracing is enabled only when the
// config asks for it and every extension of the set is present. The other
// features are enabled where the device supports them.
func CreateDevice(inst *Instance, pd PhysicalDevice, cfg *Config, log *Logger) (*Device, error) {
	exts := NewExtensionSet(nil, []string{ExtSwapchain, ExtDynamicRendering}, pd.Extensions)
	if ok, missing := exts.HasRequired(); !ok {
		return nil, errors.WithStack(&MissingExtensionError{Extensions: missing})
	}
	enabled := exts.GetExtensions()

	rayTracing := false
	if cfg.Features.RayTracing {
		if exts.HasAll(RayTracingExtensions) {
			rayTracing = true
			for _, e := range RayTracingExtensions {
				if !contains(enabled, e) {
					enabled = append(enabled, e)
				}
			}
		} else {
			log.Infof("ray tracing disabled: %s lacks %s", pd.Name, strings.Join(missing(RayTracingExtensions, pd.Extensions), ", "))
		}
	}

	if !pd.Features.DynamicRendering {
		return nil, errors.Wrap(ErrFeatureMissing, "dynamic rendering")
	}
	wanted := cfg.Features.requestedFeatures()
	features := wanted.Intersect(pd.Features)
	if features != wanted {
		log.Infof("device %s does not support every requested feature, enabling %+v", pd.Name, features)
	}

	// The queue must draw and present; only FilterPresentable knows a family
	// that does both.
	if !pd.Presentable {
		return nil, errors.Wrapf(ErrNoQueueFamily, "%s has no family known to present", pd.Name)
	}
	family := pd.QueueFamily

	raw, err := inst.Raw.CreateDevice(driver.DeviceDesc{
		Physical:    pd.Handle,
		QueueFamily: family,
		Extensions:  enabled,
		Layers:      inst.Layers,
		Features:    features,
	})
	if errors.Is(err, driver.ErrExtensionNotPresent) {
		return nil, errors.Wrap(ErrMissingExtension, err.Error())
	}
	if errors.Is(err, driver.ErrFeatureNotPresent) {
		return nil, errors.Wrap(ErrFeatureMissing, err.Error())
	}
	if err != nil {
		return nil, errors.Wrap(err, "create device")
	}

	d := &Device{
		Raw:          raw,
		Physical:     pd,
		Queue:        Queue{Family: family, Raw: raw.GetQueue(family, 0)},
		Extensions:   enabled,
		Features:     features,
		RayTracing:   rayTracing,
		Allocator:    NewAllocator(raw, pd.PhysicalDeviceInfo, log),
		log:          log,
		onFatal:      cfg.fatalHandler(log),
		fenceTimeout: driver.Timeout(cfg.Timeouts.Fence.Duration),
		acquireWait:  driver.Timeout(cfg.Timeouts.Acquire.Duration),
	}
	if err := d.init(); err != nil {
		d.Destroy()
		return nil, err
	}
	d.FirstFrame = time.Now()
	log.Infof("device created on %s: %d extensions, ray tracing %v", pd.Name, len(enabled), rayTracing)
	return d, nil
}

func (d *Device) init() error {
	var err error
	d.pool, err = NewCommandPool(d.Raw, d.Queue.Family)
	if err != nil {
		return err
	}
	cmds, err := d.pool.Allocate(3)
	if err != nil {
		return err
	}
	for i := range d.frames {
		d.frames[i], err = newDeviceFrame(d.Raw, i, cmds[i])
		if err != nil {
			return err
		}
	}
	d.setupCmd = cmds[2]
	return nil
}

// fatal hands err to the fatal handler and returns it for handlers that do
// not exit.
func (d *Device) fatal(err error) error {
	d.onFatal(err)
	return err
}

// Elapsed is the time since device creation in seconds.
func (d *Device) Elapsed() float32 {
	return float32(time.Since(d.FirstFrame).Seconds())
}

// WaitIdle blocks until the queue has drained.
func (d *Device) WaitIdle() error {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return errors.Wrap(d.Raw.DeviceWaitIdle(), "wait device idle")
}

// submit serializes access to the single queue.
func (d *Device) submit(info driver.SubmitInfo, fence driver.Fence) error {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return d.Raw.QueueSubmit(d.Queue.Raw, []driver.SubmitInfo{info}, fence)
}

func (d *Device) present(info driver.PresentInfo) error {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return d.Raw.QueuePresent(d.Queue.Raw, info)
}

// withSetupCommandBuffer records into the setup command buffer, submits it
// and waits for the device to go idle. Concurrent callers take turns.
func (d *Device) withSetupCommandBuffer(record func(cmd driver.CommandBuffer)) error {
	d.setupMu.Lock()
	defer d.setupMu.Unlock()

	cmd := d.setupCmd
	if err := d.Raw.ResetCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "reset setup command buffer")
	}
	if err := d.Raw.BeginCommandBuffer(cmd, true); err != nil {
		return errors.Wrap(err, "begin setup command buffer")
	}
	record(cmd)
	if err := d.Raw.EndCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "end setup command buffer")
	}
	if err := d.submit(driver.SubmitInfo{CommandBuffers: []driver.CommandBuffer{cmd}}, 0); err != nil {
		return errors.Wrap(err, "submit setup command buffer")
	}
	return d.WaitIdle()
}

// Destroy waits for the device, then releases frames, the setup command
// buffer, the allocator's blocks and the device itself. Swapchains and
// buffers must already be destroyed.
func (d *Device) Destroy() {
	if d.Raw == nil {
		return
	}
	if err := d.Raw.DeviceWaitIdle(); err != nil {
		d.log.Errorf("destroy device: %v", err)
	}
	for i, f := range d.frames {
		if f != nil {
			f.destroy(d.Raw)
			d.frames[i] = nil
		}
	}
	if d.pool != nil {
		d.pool.Destroy()
	}
	d.Allocator.Destroy()
	d.Raw.Destroy()
	d.Raw = nil
}

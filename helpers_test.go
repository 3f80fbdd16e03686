package strale

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/stretchr/testify/require"
)

// spirv returns the smallest module that passes header validation.
func spirv(id uint32) []byte {
	b := make([]byte, 0, 20)
	for _, w := range []uint32{spirvMagic, 0x00010600, 0, id, 0} {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return b
}

func testShaders() ShaderCode {
	return ShaderCode{Vertex: spirv(1), Fragment: spirv(2)}
}

// fatalRecorder collects errors passed to the fatal handler.
type fatalRecorder struct {
	errs []error
}

func (f *fatalRecorder) handle(err error) { f.errs = append(f.errs, err) }

// logBuffer captures every channel of a Logger.
type logBuffer struct {
	info, warn, err bytes.Buffer
}

func (b *logBuffer) logger() *Logger {
	return newLogger(&b.info, &b.warn, &b.err, &b.err)
}

type rig struct {
	loader  *recorder.Loader
	cfg     Config
	log     *Logger
	logs    *logBuffer
	fatals  *fatalRecorder
	inst    *Instance
	surface *Surface
	pd      PhysicalDevice
	dev     *Device
	rec     *recorder.Device
}

// newRig brings a recorder machine up to a logical device.
func newRig(t *testing.T, rc recorder.Config, tweak func(*Config)) *rig {
	t.Helper()
	r := &rig{
		loader: recorder.New(rc),
		cfg:    DefaultConfig(),
		logs:   &logBuffer{},
		fatals: &fatalRecorder{},
	}
	r.cfg.Scene.SphereCapacity = 4096
	r.cfg.FatalHandler = r.fatals.handle
	if tweak != nil {
		tweak(&r.cfg)
	}
	r.log = r.logs.logger()

	win := &recorder.Window{Width: 1920, Height: 1080}
	var err error
	r.inst, err = CreateInstance(r.loader, &r.cfg, r.log, win.RequiredInstanceExtensions())
	require.NoError(t, err)
	r.surface, err = CreateSurface(r.inst, win)
	require.NoError(t, err)

	devices, err := EnumeratePhysicalDevices(r.inst)
	require.NoError(t, err)
	devices, err = FilterPresentable(r.inst, devices, r.surface)
	require.NoError(t, err)
	r.pd, err = SelectPhysicalDevice(devices)
	require.NoError(t, err)

	r.dev, err = CreateDevice(r.inst, r.pd, &r.cfg, r.log)
	require.NoError(t, err)
	r.rec = r.loader.LastInstance().LastDevice()
	require.NotNil(t, r.rec)

	t.Cleanup(func() {
		r.dev.Destroy()
		r.surface.Destroy()
		r.inst.Destroy()
	})
	return r
}

func (r *rig) swapchain(t *testing.T) *Swapchain {
	t.Helper()
	sc, err := CreateSwapchain(r.dev, r.surface, SwapchainDesc{
		Width:       1920,
		Height:      1080,
		MinImages:   3,
		PresentMode: driver.PresentModeImmediate,
	})
	require.NoError(t, err)
	t.Cleanup(sc.Destroy)
	return sc
}

// ownershipViolation runs fn and returns the OwnershipViolation it panics
// with.
func ownershipViolation(t *testing.T, fn func()) (v OwnershipViolation) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		v, ok = r.(OwnershipViolation)
		require.True(t, ok, "panic value %#v is not an OwnershipViolation", r)
	}()
	fn()
	return
}

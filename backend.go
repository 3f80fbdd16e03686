package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// Window is the platform side the backend renders into.
type Window interface {
	SurfaceSource
	RequiredInstanceExtensions() []string
	FramebufferSize() (width, height int)

	// DECORATORS:
	// WindowPresentMode
}

// WindowPresentMode lets a window override the configured present mode.
type WindowPresentMode interface {
	PresentMode() driver.PresentMode
}

// Backend owns the whole chain from instance to renderer and tears it down
// in reverse order.
type Backend struct {
	Instance  *Instance
	Surface   *Surface
	Device    *Device
	Swapchain *Swapchain
	Renderer  *Renderer

	window Window
	cfg    *Config
	log    *Logger
}

// NewBackend brings up everything needed to draw into window. On failure
// whatever was created is destroyed before returning.
func NewBackend(loader driver.Loader, window Window, cfg *Config, log *Logger, code ShaderCode) (b *Backend, err error) {
	b = &Backend{window: window, cfg: cfg, log: log}
	defer func() {
		if err != nil {
			b.Destroy()
			b = nil
		}
	}()

	if b.Instance, err = CreateInstance(loader, cfg, log, window.RequiredInstanceExtensions()); err != nil {
		return
	}
	if b.Surface, err = CreateSurface(b.Instance, window); err != nil {
		return
	}

	devices, err := EnumeratePhysicalDevices(b.Instance)
	if err != nil {
		return
	}
	devices, err = FilterPresentable(b.Instance, devices, b.Surface)
	if err != nil {
		return
	}
	pd, err := SelectPhysicalDevice(devices)
	if err != nil {
		return
	}
	log.Infof("selected physical device %s (%s)", pd.Name, pd.Type)

	if b.Device, err = CreateDevice(b.Instance, pd, cfg, log); err != nil {
		return
	}
	desc, err := b.swapchainDesc()
	if err != nil {
		return
	}
	if b.Swapchain, err = CreateSwapchain(b.Device, b.Surface, desc); err != nil {
		return
	}
	if b.Renderer, err = NewRenderer(b.Device, cfg, log, code); err != nil {
		return
	}
	return b, nil
}

func (b *Backend) swapchainDesc() (SwapchainDesc, error) {
	mode, err := b.cfg.Swapchain.Mode()
	if err != nil {
		return SwapchainDesc{}, err
	}
	if w, ok := b.window.(WindowPresentMode); ok {
		mode = w.PresentMode()
	}
	width, height := b.window.FramebufferSize()
	if width <= 0 || height <= 0 {
		width, height = b.cfg.App.Width, b.cfg.App.Height
	}
	return SwapchainDesc{
		Width:       uint32(width),
		Height:      uint32(height),
		MinImages:   b.cfg.Swapchain.MinImages,
		PresentMode: mode,
	}, nil
}

// Draw renders one frame. ErrRecreateNeeded means the caller should call
// Resize before the next frame.
func (b *Backend) Draw() error {
	return b.Renderer.Draw(b.Swapchain)
}

// Resize rebuilds the swapchain at the window's current framebuffer size.
// A zero size (minimized window) is skipped.
func (b *Backend) Resize() error {
	w, h := b.window.FramebufferSize()
	if w == 0 || h == 0 {
		return nil
	}
	desc, err := b.swapchainDesc()
	if err != nil {
		return err
	}
	return errors.Wrap(b.Swapchain.Recreate(desc), "recreate swapchain")
}

func (b *Backend) Destroy() {
	if b.Device != nil {
		if err := b.Device.WaitIdle(); err != nil {
			b.log.Errorf("destroy backend: %v", err)
		}
	}
	if b.Renderer != nil {
		b.Renderer.Destroy()
		b.Renderer = nil
	}
	if b.Swapchain != nil {
		b.Swapchain.Destroy()
		b.Swapchain = nil
	}
	if b.Device != nil {
		b.Device.Destroy()
		b.Device = nil
	}
	if b.Surface != nil {
		b.Surface.Destroy()
		b.Surface = nil
	}
	if b.Instance != nil {
		b.Instance.Destroy()
		b.Instance = nil
	}
}

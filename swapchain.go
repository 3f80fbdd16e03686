package strale

import (
	"math"

	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// SwapchainDesc is what the caller asks for. Width and Height are only used
// when the surface leaves the extent to the application.
type SwapchainDesc struct {
	Width, Height uint32
	MinImages     uint32
	PresentMode   driver.PresentMode
}

// SwapchainImage is one acquired image that has not been presented yet.
type SwapchainImage struct {
	Image driver.Image
	View  driver.ImageView
	Index uint32

	// Acquired is signaled by the presentation engine; color writes wait on it.
	Acquired driver.Semaphore
	// RenderFinished is signaled by the frame's submission; present waits on it.
	RenderFinished driver.Semaphore
}

// Swapchain owns the presentable images of a surface with one acquire and
// one render-finished semaphore per image slot. It must be destroyed before
// its device.
type Swapchain struct {
	Raw         driver.Swapchain
	Format      driver.SurfaceFormat
	Extent      driver.Extent2D
	PresentMode driver.PresentMode
	Images      []driver.Image
	Views       []driver.ImageView

	acquireSemaphores []driver.Semaphore
	renderSemaphores  []driver.Semaphore
	nextSemaphore     uint32
	diverged          bool

	dev     *Device
	surface *Surface
	desc    SwapchainDesc
}

// desiredImageCount asks for at least three images, clamped to the surface
// maximum when it has one.
func desiredImageCount(caps driver.SurfaceCapabilities, want uint32) uint32 {
	n := want
	if n < 3 {
		n = 3
	}
	if n < caps.MinImageCount {
		n = caps.MinImageCount
	}
	if caps.MaxImageCount != 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// resolveExtent uses the surface's current extent unless the surface leaves
// it undefined, in which case the requested size is clamped into range.
func resolveExtent(caps driver.SurfaceCapabilities, width, height uint32) driver.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return driver.Extent2D{
		Width:  clampU32(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampU32(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clampU32(v, lo, hi uint32) uint32 {
	if hi != 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func chooseSurfaceFormat(formats []driver.SurfaceFormat) (driver.SurfaceFormat, error) {
	want := driver.SurfaceFormat{Format: driver.FormatB8G8R8A8Unorm, ColorSpace: driver.ColorSpaceSRGBNonlinear}
	if len(formats) == 0 {
		return want, errors.New("no surface color format for display")
	}
	if len(formats) == 1 && formats[0].Format == driver.FormatUndefined {
		return want, nil
	}
	for _, f := range formats {
		if f == want {
			return f, nil
		}
	}
	return want, errors.Errorf("surface does not offer B8G8R8A8_UNORM/SRGB_NONLINEAR, got %v", formats)
}

// choosePresentMode keeps the requested mode when available and falls back
// to FIFO, which every surface supports.
func choosePresentMode(available []driver.PresentMode, want driver.PresentMode) driver.PresentMode {
	for _, m := range available {
		if m == want {
			return m
		}
	}
	return driver.PresentModeFifo
}

func chooseTransform(caps driver.SurfaceCapabilities) driver.SurfaceTransform {
	if caps.SupportedTransforms&driver.SurfaceTransformIdentity != 0 {
		return driver.SurfaceTransformIdentity
	}
	return caps.CurrentTransform
}

// One of these is guaranteed to be supported
func chooseCompositeAlpha(caps driver.SurfaceCapabilities) driver.CompositeAlpha {
	for _, a := range []driver.CompositeAlpha{
		driver.CompositeAlphaOpaque,
		driver.CompositeAlphaPreMultiplied,
		driver.CompositeAlphaPostMultiplied,
		driver.CompositeAlphaInherit,
	} {
		if caps.SupportedCompositeAlpha&a != 0 {
			return a
		}
	}
	return driver.CompositeAlphaOpaque
}

func CreateSwapchain(dev *Device, surface *Surface, desc SwapchainDesc) (*Swapchain, error) {
	s := &Swapchain{dev: dev, surface: surface, desc: desc}
	if err := s.build(0); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) build(old driver.Swapchain) error {
	dev, pd := s.dev, s.dev.Physical.Handle
	inst := s.surface.inst

	caps, err := s.surface.Capabilities(pd)
	if err != nil {
		return err
	}
	formats, err := inst.Raw.SurfaceFormats(pd, s.surface.Raw)
	if err != nil {
		return errors.Wrap(err, "query surface formats")
	}
	format, err := chooseSurfaceFormat(formats)
	if err != nil {
		return err
	}
	modes, err := inst.Raw.PresentModes(pd, s.surface.Raw)
	if err != nil {
		return errors.Wrap(err, "query present modes")
	}
	mode := choosePresentMode(modes, s.desc.PresentMode)
	if mode != s.desc.PresentMode {
		dev.log.Warnf("present mode %s unavailable, using %s", s.desc.PresentMode, mode)
	}

	extent := resolveExtent(caps, s.desc.Width, s.desc.Height)
	count := desiredImageCount(caps, s.desc.MinImages)

	raw, err := dev.Raw.CreateSwapchain(driver.SwapchainCreateInfo{
		Surface:        s.surface.Raw,
		MinImageCount:  count,
		Format:         format.Format,
		ColorSpace:     format.ColorSpace,
		Extent:         extent,
		Usage:          driver.ImageUsageColorAttachment,
		PreTransform:   chooseTransform(caps),
		CompositeAlpha: chooseCompositeAlpha(caps),
		PresentMode:    mode,
		Clipped:        true,
		OldSwapchain:   old,
	})
	if err != nil {
		if old != 0 {
			dev.Raw.DestroySwapchain(old)
		}
		return errors.Wrap(err, "create swapchain")
	}
	if old != 0 {
		dev.Raw.DestroySwapchain(old)
	}
	s.Raw = raw
	s.Format = format
	s.Extent = extent
	s.PresentMode = mode

	s.Images, err = dev.Raw.SwapchainImages(raw)
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	s.Views = make([]driver.ImageView, 0, len(s.Images))
	s.acquireSemaphores = make([]driver.Semaphore, 0, len(s.Images))
	s.renderSemaphores = make([]driver.Semaphore, 0, len(s.Images))
	for _, img := range s.Images {
		v, err := dev.Raw.CreateImageView(img, format.Format)
		if err != nil {
			return errors.Wrap(err, "create swapchain image view")
		}
		s.Views = append(s.Views, v)

		acquire, err := dev.Raw.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "create acquire semaphore")
		}
		s.acquireSemaphores = append(s.acquireSemaphores, acquire)

		render, err := dev.Raw.CreateSemaphore()
		if err != nil {
			return errors.Wrap(err, "create render semaphore")
		}
		s.renderSemaphores = append(s.renderSemaphores, render)
	}
	s.nextSemaphore = 0
	s.diverged = false
	dev.log.Infof("swapchain %dx%d, %d images, %s", extent.Width, extent.Height, len(s.Images), mode)
	return nil
}

func (s *Swapchain) releaseImages() {
	for _, v := range s.Views {
		s.dev.Raw.DestroyImageView(v)
	}
	for _, sem := range s.acquireSemaphores {
		s.dev.Raw.DestroySemaphore(sem)
	}
	for _, sem := range s.renderSemaphores {
		s.dev.Raw.DestroySemaphore(sem)
	}
	s.Views, s.acquireSemaphores, s.renderSemaphores = nil, nil, nil
	s.Images = nil
}

// Recreate rebuilds the chain for a new size, handing the old chain to the
// driver so in-flight presents can finish.
func (s *Swapchain) Recreate(desc SwapchainDesc) error {
	if err := s.dev.WaitIdle(); err != nil {
		return err
	}
	s.releaseImages()
	s.desc = desc
	old := s.Raw
	s.Raw = 0
	return s.build(old)
}

// AcquireNextImage acquires with the next slot's semaphore. When the surface
// changed it returns ErrRecreateNeeded; other failures are fatal.
func (s *Swapchain) AcquireNextImage() (SwapchainImage, error) {
	slot := s.nextSemaphore
	sem := s.acquireSemaphores[slot]
	index, err := s.dev.Raw.AcquireNextImage(s.Raw, s.dev.acquireWait, sem)
	if errors.Is(err, driver.ErrOutOfDate) || errors.Is(err, driver.ErrSuboptimal) {
		return SwapchainImage{}, ErrRecreateNeeded
	}
	if err != nil {
		return SwapchainImage{}, s.dev.fatal(errors.Wrap(err, "acquire next image"))
	}
	if index != slot && !s.diverged {
		// The driver does not hand images out in rotation. Index by what it
		// returned from here on.
		s.dev.log.Warnf("swapchain returned image %d for slot %d, indexing by returned value", index, slot)
		s.diverged = true
	}
	s.nextSemaphore = (slot + 1) % uint32(len(s.acquireSemaphores))
	return SwapchainImage{
		Image:          s.Images[index],
		View:           s.Views[index],
		Index:          index,
		Acquired:       sem,
		RenderFinished: s.renderSemaphores[index],
	}, nil
}

// Present queues img for presentation. An out of date or suboptimal chain is
// not an error here; the next acquire reports it.
func (s *Swapchain) Present(img SwapchainImage) error {
	err := s.dev.present(driver.PresentInfo{
		WaitSemaphores: []driver.Semaphore{img.RenderFinished},
		Swapchain:      s.Raw,
		ImageIndex:     img.Index,
	})
	if err == nil || errors.Is(err, driver.ErrOutOfDate) || errors.Is(err, driver.ErrSuboptimal) {
		return nil
	}
	return s.dev.fatal(errors.Wrap(err, "present"))
}

// Viewport is the flipped viewport over the current extent.
func (s *Swapchain) Viewport() driver.Viewport {
	return flippedViewport(s.Extent)
}

func (s *Swapchain) Destroy() {
	if s.dev == nil {
		return
	}
	s.releaseImages()
	if s.Raw != 0 {
		s.dev.Raw.DestroySwapchain(s.Raw)
		s.Raw = 0
	}
	s.dev = nil
}

// flippedViewport covers the extent with a negative height and the origin
// at the bottom so +Y points up in clip space.
func flippedViewport(e driver.Extent2D) driver.Viewport {
	return driver.Viewport{
		X:        0,
		Y:        float32(e.Height),
		Width:    float32(e.Width),
		Height:   -float32(e.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

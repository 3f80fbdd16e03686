package strale

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesiredImageCount(t *testing.T) {
	caps := driver.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}
	assert.EqualValues(t, 3, desiredImageCount(caps, 1))
	assert.EqualValues(t, 5, desiredImageCount(caps, 5))

	caps.MaxImageCount = 2
	assert.EqualValues(t, 2, desiredImageCount(caps, 3))

	caps = driver.SurfaceCapabilities{MinImageCount: 4}
	assert.EqualValues(t, 4, desiredImageCount(caps, 3))
}

func TestResolveExtent(t *testing.T) {
	caps := driver.SurfaceCapabilities{
		CurrentExtent:  driver.Extent2D{Width: 800, Height: 600},
		MinImageExtent: driver.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: driver.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, driver.Extent2D{Width: 800, Height: 600}, resolveExtent(caps, 1920, 1080))

	caps.CurrentExtent = driver.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32}
	assert.Equal(t, driver.Extent2D{Width: 1920, Height: 1080}, resolveExtent(caps, 1920, 1080))
	assert.Equal(t, driver.Extent2D{Width: 4096, Height: 1}, resolveExtent(caps, 10000, 0))
}

func TestChoosePresentModeFallsBackToFifo(t *testing.T) {
	modes := []driver.PresentMode{driver.PresentModeFifo, driver.PresentModeMailbox}
	assert.Equal(t, driver.PresentModeMailbox, choosePresentMode(modes, driver.PresentModeMailbox))
	assert.Equal(t, driver.PresentModeFifo, choosePresentMode(modes, driver.PresentModeImmediate))
}

func TestChooseSurfaceFormat(t *testing.T) {
	want := driver.SurfaceFormat{Format: driver.FormatB8G8R8A8Unorm, ColorSpace: driver.ColorSpaceSRGBNonlinear}

	f, err := chooseSurfaceFormat([]driver.SurfaceFormat{{Format: driver.FormatUndefined}})
	require.NoError(t, err)
	assert.Equal(t, want, f)

	_, err = chooseSurfaceFormat(nil)
	assert.Error(t, err)

	_, err = chooseSurfaceFormat([]driver.SurfaceFormat{{Format: driver.FormatB8G8R8A8Srgb}})
	assert.Error(t, err)
}

func TestCreateSwapchain(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)

	assert.Len(t, sc.Images, 3)
	assert.Len(t, sc.Views, 3)
	assert.Equal(t, driver.Extent2D{Width: 1920, Height: 1080}, sc.Extent)
	assert.Equal(t, driver.PresentModeImmediate, sc.PresentMode)

	info, ok := r.rec.SwapchainInfo(sc.Raw)
	require.True(t, ok)
	assert.EqualValues(t, 3, info.MinImageCount)
	assert.Equal(t, driver.ImageUsageColorAttachment, info.Usage)
	assert.Equal(t, driver.CompositeAlphaOpaque, info.CompositeAlpha)
	assert.True(t, info.Clipped)
	for i, v := range sc.Views {
		assert.Equal(t, sc.Images[i], r.rec.ViewImage(v))
	}
}

func TestUnavailablePresentModeWarns(t *testing.T) {
	rc := recorder.Default()
	rc.PresentModes = []driver.PresentMode{driver.PresentModeFifo}
	r := newRig(t, rc, nil)
	sc := r.swapchain(t)

	assert.Equal(t, driver.PresentModeFifo, sc.PresentMode)
	assert.Contains(t, r.logs.warn.String(), "present mode immediate unavailable")
}

func TestAcquireRotatesImages(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)

	images := map[driver.Image]bool{}
	acquired := map[driver.Semaphore]bool{}
	rendered := map[driver.Semaphore]bool{}
	for i := 0; i < len(sc.Images); i++ {
		img, err := sc.AcquireNextImage()
		require.NoError(t, err)
		assert.EqualValues(t, i, img.Index)
		assert.Equal(t, sc.Images[i], img.Image)
		assert.Equal(t, sc.Views[i], img.View)
		images[img.Image] = true
		acquired[img.Acquired] = true
		rendered[img.RenderFinished] = true
	}
	assert.Len(t, images, 3)
	assert.Len(t, acquired, 3)
	assert.Len(t, rendered, 3)
	assert.Empty(t, r.rec.Violations)
}

func TestAcquireIndexMismatchWarnsOnce(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	r.rec.AcquireIndex = func(next uint32) uint32 { return next + 1 }

	for i := 0; i < 3; i++ {
		img, err := sc.AcquireNextImage()
		require.NoError(t, err)
		want := uint32(i+1) % 3
		assert.Equal(t, want, img.Index)
		assert.Equal(t, sc.Images[want], img.Image)
		assert.Equal(t, sc.renderSemaphores[want], img.RenderFinished)
		assert.Equal(t, sc.acquireSemaphores[i], img.Acquired)
	}
	assert.Equal(t, 1, strings.Count(r.logs.warn.String(), "indexing by returned value"))
	assert.Empty(t, r.fatals.errs)
}

func TestAcquireOutOfDateNeedsRecreate(t *testing.T) {
	for _, cause := range []error{driver.ErrOutOfDate, driver.ErrSuboptimal} {
		t.Run(cause.Error(), func(t *testing.T) {
			r := newRig(t, recorder.Default(), nil)
			sc := r.swapchain(t)
			r.rec.AcquireErrors = []error{cause}

			_, err := sc.AcquireNextImage()
			assert.ErrorIs(t, err, ErrRecreateNeeded)
			assert.Empty(t, r.fatals.errs)

			// The failed acquire did not consume a slot.
			img, err := sc.AcquireNextImage()
			require.NoError(t, err)
			assert.Equal(t, sc.acquireSemaphores[0], img.Acquired)
		})
	}
}

func TestAcquireDeviceLostIsFatal(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	r.rec.AcquireErrors = []error{driver.ErrDeviceLost}

	_, err := sc.AcquireNextImage()
	assert.ErrorIs(t, err, driver.ErrDeviceLost)
	assert.False(t, errors.Is(err, ErrRecreateNeeded))
	require.Len(t, r.fatals.errs, 1)
}

func TestPresentSwallowsOutOfDate(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)

	img, err := sc.AcquireNextImage()
	require.NoError(t, err)
	r.rec.PresentErrors = []error{driver.ErrOutOfDate, driver.ErrSuboptimal}
	assert.NoError(t, sc.Present(img))
	assert.NoError(t, sc.Present(img))

	r.rec.PresentErrors = []error{driver.ErrDeviceLost}
	assert.ErrorIs(t, sc.Present(img), driver.ErrDeviceLost)
	assert.Len(t, r.fatals.errs, 1)

	require.Len(t, r.rec.Presents, 3)
	assert.Equal(t, []driver.Semaphore{img.RenderFinished}, r.rec.Presents[0].WaitSemaphores)
	assert.Equal(t, img.Index, r.rec.Presents[0].ImageIndex)
}

func TestRecreateReplacesChain(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	old := sc.Raw
	oldViews := sc.Views

	r.loader.LastInstance().SetCapabilities(func() driver.SurfaceCapabilities {
		c := recorder.Default().Capabilities
		c.CurrentExtent = driver.Extent2D{Width: 1280, Height: 720}
		return c
	}())
	require.NoError(t, sc.Recreate(SwapchainDesc{Width: 1280, Height: 720, MinImages: 3, PresentMode: driver.PresentModeMailbox}))

	assert.NotEqual(t, old, sc.Raw)
	assert.Equal(t, driver.Extent2D{Width: 1280, Height: 720}, sc.Extent)
	assert.Equal(t, driver.PresentModeMailbox, sc.PresentMode)
	info, ok := r.rec.SwapchainInfo(sc.Raw)
	require.True(t, ok)
	assert.Equal(t, old, info.OldSwapchain)
	_, alive := r.rec.SwapchainInfo(old)
	assert.False(t, alive)
	for _, v := range oldViews {
		assert.Zero(t, r.rec.ViewImage(v))
	}
	assert.Empty(t, r.rec.Violations)
}

func TestFlippedViewport(t *testing.T) {
	vp := flippedViewport(driver.Extent2D{Width: 1920, Height: 1080})
	assert.Equal(t, driver.Viewport{Y: 1080, Width: 1920, Height: -1080, MaxDepth: 1}, vp)

	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	assert.Equal(t, flippedViewport(sc.Extent), sc.Viewport())
}

package strale

import (
	"testing"
	"time"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginFrameTwicePanics(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	assert.Equal(t, FrameClaimed, f.State())

	v := ownershipViolation(t, func() { r.dev.BeginFrame() })
	assert.Equal(t, f.Slot(), v.Slot)
}

func TestBeginSubmitBeginPanics(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.dev.SubmitFrame(f, driver.SubmitInfo{}))
	require.Equal(t, FrameSubmitted, f.State())

	v := ownershipViolation(t, func() { r.dev.BeginFrame() })
	assert.Equal(t, f.Slot(), v.Slot)
	assert.Equal(t, FrameSubmitted, f.State(), "the held slot is left alone")

	r.dev.FinishFrame(f)
	next, err := r.dev.BeginFrame()
	require.NoError(t, err)
	assert.NotSame(t, f.DeviceFrame, next.DeviceFrame)
	r.dev.FinishFrame(next)
}

func TestFramesAlternate(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	first, err := r.dev.BeginFrame()
	require.NoError(t, err)
	r.dev.FinishFrame(first)

	second, err := r.dev.BeginFrame()
	require.NoError(t, err)
	assert.NotEqual(t, first.Slot(), second.Slot())
	assert.NotEqual(t, first.CommandBuffer, second.CommandBuffer)
	r.dev.FinishFrame(second)

	third, err := r.dev.BeginFrame()
	require.NoError(t, err)
	assert.Same(t, first.DeviceFrame, third.DeviceFrame)
	r.dev.FinishFrame(third)
}

func TestFinishFrameTwicePanics(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	r.dev.FinishFrame(f)

	ownershipViolation(t, func() { r.dev.FinishFrame(f) })
}

func TestSubmitReleasedFramePanics(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	r.dev.FinishFrame(f)

	ownershipViolation(t, func() { r.dev.SubmitFrame(f, driver.SubmitInfo{}) })
}

func TestUnsubmittedFrameKeepsFenceSignaled(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	fence := f.CommandBuffer.SubmitDoneFence
	r.dev.FinishFrame(f)

	assert.Equal(t, FrameIdle, f.State())
	assert.True(t, r.rec.FenceSignaled(fence))

	// Two cycles later the slot comes back without blocking.
	for i := 0; i < 2; i++ {
		f, err := r.dev.BeginFrame()
		require.NoError(t, err)
		r.dev.FinishFrame(f)
	}
	assert.Empty(t, r.fatals.errs)
}

func TestSubmitFrameSignalsItsFence(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.dev.SubmitFrame(f, driver.SubmitInfo{}))
	assert.Equal(t, FrameSubmitted, f.State())
	r.dev.FinishFrame(f)

	last := r.rec.Submits[len(r.rec.Submits)-1]
	assert.Equal(t, f.CommandBuffer.SubmitDoneFence, last.Fence)
	require.Len(t, last.Infos, 1)
	assert.Equal(t, []driver.CommandBuffer{f.CommandBuffer.Raw}, last.Infos[0].CommandBuffers)
	assert.True(t, r.rec.FenceSignaled(f.CommandBuffer.SubmitDoneFence))
	assert.Empty(t, r.rec.Violations)
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	r := newRig(t, recorder.Default(), func(c *Config) {
		c.Timeouts.Fence = Duration{time.Second}
	})

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	r.dev.FinishFrame(f)
	// Slot 1 now; unsignal it behind the frame loop's back.
	require.NoError(t, r.rec.ResetFences([]driver.Fence{r.dev.frames[0].CommandBuffer.SubmitDoneFence}))

	_, err = r.dev.BeginFrame()
	assert.ErrorIs(t, err, driver.ErrTimeout)
	require.Len(t, r.fatals.errs, 1)
	assert.ErrorIs(t, r.fatals.errs[0], driver.ErrTimeout)
}

func TestFenceTimeoutPanicsOnFatal(t *testing.T) {
	r := newRig(t, recorder.Default(), func(c *Config) {
		c.Timeouts.Fence = Duration{time.Second}
		c.FatalHandler = PanicOnFatal
	})

	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	r.dev.FinishFrame(f)
	require.NoError(t, r.rec.ResetFences([]driver.Fence{r.dev.frames[0].CommandBuffer.SubmitDoneFence}))

	defer func() {
		v := recover()
		require.NotNil(t, v, "expected a panic")
		err, ok := v.(error)
		require.True(t, ok, "panic value %#v is not an error", v)
		assert.ErrorIs(t, err, driver.ErrTimeout)
	}()
	r.dev.BeginFrame()
}

package vkdriver

import (
	"testing"

	"github.com/andewx/strale/driver"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorMapsResults(t *testing.T) {
	assert.NoError(t, newError(vk.Success))
	for ret, want := range map[vk.Result]error{
		vk.ErrorOutOfDate:            driver.ErrOutOfDate,
		vk.Suboptimal:                driver.ErrSuboptimal,
		vk.Timeout:                   driver.ErrTimeout,
		vk.NotReady:                  driver.ErrNotReady,
		vk.ErrorDeviceLost:           driver.ErrDeviceLost,
		vk.ErrorExtensionNotPresent:  driver.ErrExtensionNotPresent,
		vk.ErrorFeatureNotPresent:    driver.ErrFeatureNotPresent,
		vk.ErrorLayerNotPresent:      driver.ErrLayerNotPresent,
		vk.ErrorInitializationFailed: driver.ErrInitialization,
	} {
		assert.ErrorIs(t, newError(ret), want, "result %d", ret)
	}
	assert.Error(t, newError(vk.ErrorOutOfDeviceMemory))
}

func TestTableHandles(t *testing.T) {
	var tb table[driver.Buffer, string]
	a := tb.put("a")
	b := tb.put("b")
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, []string{"b", "a", ""}, tb.getAll([]driver.Buffer{b, a, 0}))

	v, ok := tb.take(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = tb.take(a)
	assert.False(t, ok, "handles are not reused")
	assert.Equal(t, "", tb.get(a))
}

func TestSafeStrings(t *testing.T) {
	assert.Equal(t, []string{"VK_KHR_surface\x00", "\x00"}, safeStrings([]string{"VK_KHR_surface", ""}))
}

func TestCheckErrRecovers(t *testing.T) {
	fn := func() (err error) {
		defer checkErr(&err)
		orPanic(driver.ErrDeviceLost)
		return nil
	}
	assert.ErrorIs(t, fn(), driver.ErrDeviceLost)
}

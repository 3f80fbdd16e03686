package strale

import (
	"testing"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string, typ driver.DeviceType) PhysicalDevice {
	return PhysicalDevice{PhysicalDeviceInfo: driver.PhysicalDeviceInfo{Name: name, Type: typ}}
}

func TestSelectPhysicalDevicePrefersDiscrete(t *testing.T) {
	pd, err := SelectPhysicalDevice([]PhysicalDevice{
		named("igpu", driver.DeviceTypeIntegratedGPU),
		named("dgpu", driver.DeviceTypeDiscreteGPU),
		named("cpu", driver.DeviceTypeCPU),
	})
	require.NoError(t, err)
	assert.Equal(t, "dgpu", pd.Name)
}

func TestSelectPhysicalDeviceTieGoesToFirst(t *testing.T) {
	pd, err := SelectPhysicalDevice([]PhysicalDevice{
		named("first", driver.DeviceTypeDiscreteGPU),
		named("second", driver.DeviceTypeDiscreteGPU),
	})
	require.NoError(t, err)
	assert.Equal(t, "first", pd.Name)

	pd, err = SelectPhysicalDevice([]PhysicalDevice{
		named("a", driver.DeviceTypeIntegratedGPU),
		named("b", driver.DeviceTypeVirtualGPU),
	})
	require.NoError(t, err)
	assert.Equal(t, "a", pd.Name)
}

func TestSelectPhysicalDeviceEmpty(t *testing.T) {
	_, err := SelectPhysicalDevice(nil)
	assert.ErrorIs(t, err, ErrNoSuitableDevice)
}

func TestFilterPresentable(t *testing.T) {
	rc := recorder.Default()
	rc.Devices = []driver.PhysicalDeviceInfo{
		recorder.NewPhysicalDevice(1, "headless", driver.DeviceTypeDiscreteGPU),
		recorder.NewPhysicalDevice(2, "display", driver.DeviceTypeIntegratedGPU),
	}
	rc.Devices[1].QueueFamilies = []driver.QueueFamily{
		{Index: 0, Flags: driver.QueueCompute, Count: 1},
		{Index: 1, Flags: driver.QueueGraphics, Count: 1},
	}
	rc.Present = func(pd driver.PhysicalDevice, family uint32) bool { return pd == 2 }
	loader := recorder.New(rc)
	cfg := DefaultConfig()
	log := DiscardLogger()

	inst, err := CreateInstance(loader, &cfg, log, []string{"VK_KHR_surface"})
	require.NoError(t, err)
	defer inst.Destroy()
	surface, err := CreateSurface(inst, &recorder.Window{})
	require.NoError(t, err)
	defer surface.Destroy()

	all, err := EnumeratePhysicalDevices(inst)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[0].Presentable)

	ok, err := FilterPresentable(inst, all, surface)
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.Equal(t, "display", ok[0].Name)
	assert.True(t, ok[0].Presentable)
	assert.EqualValues(t, 1, ok[0].QueueFamily, "compute-only family skipped")

	pd, err := SelectPhysicalDevice(ok)
	require.NoError(t, err)
	assert.Equal(t, "display", pd.Name)
}

func TestQueueFamiliesWith(t *testing.T) {
	families := []driver.QueueFamily{
		{Index: 0, Flags: driver.QueueGraphics, Count: 0},
		{Index: 1, Flags: driver.QueueTransfer, Count: 1},
		{Index: 2, Flags: driver.QueueGraphics | driver.QueueCompute, Count: 1},
	}
	got := queueFamiliesWith(families, driver.QueueGraphics)
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].Index)

	assert.Empty(t, queueFamiliesWith(families[:2], driver.QueueGraphics))
	assert.Len(t, queueFamiliesWith(families, 0), 2, "empty families are skipped")
}

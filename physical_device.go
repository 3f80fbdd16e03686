package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// PhysicalDevice is a read-only snapshot of one adapter. QueueFamily is set
// once the device has passed FilterPresentable.
type PhysicalDevice struct {
	driver.PhysicalDeviceInfo

	QueueFamily uint32
	Presentable bool
}

// EnumeratePhysicalDevices lists every adapter without ranking.
func EnumeratePhysicalDevices(inst *Instance) ([]PhysicalDevice, error) {
	infos, err := inst.Raw.PhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}
	out := make([]PhysicalDevice, len(infos))
	for i, info := range infos {
		out[i] = PhysicalDevice{PhysicalDeviceInfo: info}
		inst.log.Infof("physical device %d: %s (%s)", i, info.Name, info.Type)
	}
	return out, nil
}

// FilterPresentable keeps devices with a graphics queue family that can
// present to surface, in enumeration order.
func FilterPresentable(inst *Instance, devices []PhysicalDevice, surface *Surface) ([]PhysicalDevice, error) {
	var out []PhysicalDevice
	for _, pd := range devices {
		family, ok, err := findPresentFamily(inst, pd.PhysicalDeviceInfo, surface)
		if err != nil {
			return nil, errors.Wrapf(err, "query present support of %s", pd.Name)
		}
		if !ok {
			inst.log.Infof("physical device %s cannot present, skipping", pd.Name)
			continue
		}
		pd.QueueFamily = family
		pd.Presentable = true
		out = append(out, pd)
	}
	return out, nil
}

func deviceScore(t driver.DeviceType) int {
	if t == driver.DeviceTypeDiscreteGPU {
		return 1000
	}
	return 0
}

// SelectPhysicalDevice picks the highest scoring device. Equal scores go to
// the first listed device.
func SelectPhysicalDevice(devices []PhysicalDevice) (PhysicalDevice, error) {
	if len(devices) == 0 {
		return PhysicalDevice{}, errors.WithStack(ErrNoSuitableDevice)
	}
	best := len(devices) - 1
	for i := len(devices) - 1; i >= 0; i-- {
		if deviceScore(devices[i].Type) >= deviceScore(devices[best].Type) {
			best = i
		}
	}
	return devices[best], nil
}

package strale

import "github.com/andewx/strale/driver"

// Queue is the single graphics+present queue of a Device.
type Queue struct {
	Family uint32
	Raw    driver.Queue
}

// Lists the families carrying every bit in flags, in order
func queueFamiliesWith(families []driver.QueueFamily, flags driver.QueueFlags) []driver.QueueFamily {
	var out []driver.QueueFamily
	for _, f := range families {
		if f.Flags&flags == flags && f.Count > 0 {
			out = append(out, f)
		}
	}
	return out
}

// findPresentFamily returns the first graphics family that can present to
// surface. Multiple queues or separate present families are not used.
func findPresentFamily(inst *Instance, info driver.PhysicalDeviceInfo, surface *Surface) (uint32, bool, error) {
	for _, f := range queueFamiliesWith(info.QueueFamilies, driver.QueueGraphics) {
		ok, err := inst.Raw.SurfaceSupport(info.Handle, f.Index, surface.Raw)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return f.Index, true, nil
		}
	}
	return 0, false, nil
}

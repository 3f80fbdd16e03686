package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// SurfaceSource is the platform window side of a surface.
type SurfaceSource interface {
	CreateSurface(inst driver.Instance) (driver.Surface, error)
}

// Surface binds a platform window to the instance. It must be destroyed
// after every swapchain built on it and before the instance.
type Surface struct {
	Raw driver.Surface

	inst *Instance
}

func CreateSurface(inst *Instance, src SurfaceSource) (*Surface, error) {
	raw, err := src.CreateSurface(inst.Raw)
	if err != nil {
		return nil, errors.Wrap(err, "create window surface")
	}
	if raw == 0 {
		return nil, errors.New("create window surface: window returned a null surface")
	}
	return &Surface{Raw: raw, inst: inst}, nil
}

func (s *Surface) Capabilities(pd driver.PhysicalDevice) (driver.SurfaceCapabilities, error) {
	caps, err := s.inst.Raw.SurfaceCapabilities(pd, s.Raw)
	return caps, errors.Wrap(err, "query surface capabilities")
}

func (s *Surface) Destroy() {
	if s.Raw != 0 {
		s.inst.Raw.DestroySurface(s.Raw)
		s.Raw = 0
	}
}

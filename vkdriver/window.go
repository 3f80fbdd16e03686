package vkdriver

import (
	"github.com/andewx/strale/driver"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/pkg/errors"
)

// Window is a glfw window without a client API, ready for a Vulkan surface.
type Window struct {
	*glfw.Window
}

// NewWindow opens a resizable window. Call Init first.
func NewWindow(width, height int, title string) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	return &Window{Window: w}, nil
}

func (w *Window) CreateSurface(inst driver.Instance) (driver.Surface, error) {
	vi, ok := inst.(*Instance)
	if !ok {
		return 0, errors.Errorf("window surfaces need a vkdriver instance, got %T", inst)
	}
	ptr, err := w.CreateWindowSurface(vi.VK(), nil)
	if err != nil {
		return 0, errors.Wrap(err, "glfw create window surface")
	}
	return vi.addSurface(vk.SurfaceFromPointer(ptr)), nil
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.GetRequiredInstanceExtensions()
}

func (w *Window) FramebufferSize() (int, int) {
	return w.GetFramebufferSize()
}

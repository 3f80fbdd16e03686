package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Binding 0 holds the vertices, binding 1 the spheres.
const rendererBindings = 2

// Renderer owns the scene resources and records the frame.
type Renderer struct {
	Set      *BindlessDescriptorSet
	Pipeline *Pipeline
	Vertices *Buffer
	Spheres  *Buffer

	SphereCount uint32

	dev *Device
	log *Logger
}

// NewRenderer uploads the scene and builds the pipeline. The two buffer
// uploads run concurrently; they serialize on the allocator and the setup
// command buffer.
func NewRenderer(dev *Device, cfg *Config, log *Logger, code ShaderCode) (*Renderer, error) {
	if cfg.Bindless.StorageBuffers < rendererBindings {
		return nil, errors.Errorf("renderer needs %d bindless storage buffers, config has %d", rendererBindings, cfg.Bindless.StorageBuffers)
	}
	r := &Renderer{dev: dev, log: log}

	set, err := NewBindlessDescriptorSet(dev, cfg.Bindless.StorageBuffers)
	if err != nil {
		return nil, err
	}
	r.Set = set

	sphereData := SphereBytes(SceneSpheres)
	if uint64(len(sphereData)) > cfg.Scene.SphereCapacity {
		r.Destroy()
		return nil, errors.Errorf("%d scene spheres do not fit in %d bytes", len(SceneSpheres), cfg.Scene.SphereCapacity)
	}

	var g errgroup.Group
	g.Go(func() error {
		data := VertexBytes(SceneVertices)
		b, err := dev.CreateBuffer(BufferDesc{
			Size:     uint64(len(data)),
			Usage:    driver.BufferUsageStorageBuffer,
			Location: GpuOnly,
		}, "vertices", data)
		r.Vertices = b
		return err
	})
	g.Go(func() error {
		b, err := dev.CreateBuffer(BufferDesc{
			Size:     cfg.Scene.SphereCapacity,
			Usage:    driver.BufferUsageStorageBuffer,
			Location: GpuOnly,
		}, "spheres", sphereData)
		r.Spheres = b
		return err
	})
	if err := g.Wait(); err != nil {
		r.Destroy()
		return nil, errors.Wrap(err, "upload scene")
	}
	r.SphereCount = uint32(len(SceneSpheres))

	if err := set.WriteDescriptorBuffer(0, r.Vertices); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := set.WriteDescriptorBuffer(1, r.Spheres); err != nil {
		r.Destroy()
		return nil, err
	}

	r.Pipeline, err = NewTrianglesPipeline(dev, set, code)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	dev.Allocator.Report()
	return r, nil
}

// SetSpheres replaces the sphere buffer with a new one holding spheres and
// rewrites binding 1. Frames recorded afterwards read the new buffer.
func (r *Renderer) SetSpheres(spheres []Sphere) error {
	data := SphereBytes(spheres)
	size := uint64(len(data))
	if r.Spheres != nil && size < r.Spheres.Desc.Size {
		size = r.Spheres.Desc.Size
	}
	b, err := r.dev.CreateBuffer(BufferDesc{
		Size:     size,
		Usage:    driver.BufferUsageStorageBuffer,
		Location: GpuOnly,
	}, "spheres", data)
	if err != nil {
		return err
	}
	if err := r.Set.WriteDescriptorBuffer(1, b); err != nil {
		b.Destroy()
		return err
	}
	old := r.Spheres
	r.Spheres = b
	r.SphereCount = uint32(len(spheres))
	if old != nil {
		// Submitted frames may still read the old buffer.
		if err := r.dev.WaitIdle(); err != nil {
			return err
		}
		old.Destroy()
	}
	return nil
}

// Draw renders and presents one frame on sc. It returns ErrRecreateNeeded
// when sc must be rebuilt; any other failure has already gone to the fatal
// handler.
func (r *Renderer) Draw(sc *Swapchain) error {
	dev := r.dev
	frame, err := dev.BeginFrame()
	if err != nil {
		return err
	}
	defer dev.FinishFrame(frame)

	cmd := frame.CommandBuffer.Raw
	if err := dev.Raw.ResetCommandBuffer(cmd); err != nil {
		return dev.fatal(errors.Wrap(err, "reset frame command buffer"))
	}
	if err := dev.Raw.BeginCommandBuffer(cmd, true); err != nil {
		return dev.fatal(errors.Wrap(err, "begin frame command buffer"))
	}

	img, err := sc.AcquireNextImage()
	if err != nil {
		return err
	}

	r.recordTriangles(cmd, img, sc, PushConstant{
		Time:       dev.Elapsed(),
		NumSpheres: r.SphereCount,
	})

	if err := dev.Raw.EndCommandBuffer(cmd); err != nil {
		return dev.fatal(errors.Wrap(err, "end frame command buffer"))
	}
	err = dev.SubmitFrame(frame, driver.SubmitInfo{
		WaitSemaphores:   []driver.Semaphore{img.Acquired},
		WaitStages:       []driver.PipelineStage{driver.PipelineStageColorAttachmentOutput},
		SignalSemaphores: []driver.Semaphore{img.RenderFinished},
	})
	if err != nil {
		return err
	}
	return sc.Present(img)
}

func (r *Renderer) Destroy() {
	if r.Pipeline != nil {
		r.Pipeline.Destroy()
		r.Pipeline = nil
	}
	if r.Vertices != nil {
		r.Vertices.Destroy()
		r.Vertices = nil
	}
	if r.Spheres != nil {
		r.Spheres.Destroy()
		r.Spheres = nil
	}
	if r.Set != nil {
		r.Set.Destroy()
		r.Set = nil
	}
}

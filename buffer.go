package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Size     uint64
	Usage    driver.BufferUsage
	Location MemoryLocation
}

// Buffer is a GPU buffer bound to allocator memory.
type Buffer struct {
	Raw        driver.Buffer
	Desc       BufferDesc
	Label      string
	Allocation *Allocation

	dev *Device
}

// Mapped is the host view of a CpuToGpu buffer, nil otherwise.
func (b *Buffer) Mapped() []byte {
	if b.Allocation == nil {
		return nil
	}
	m := b.Allocation.Mapped()
	if uint64(len(m)) > b.Desc.Size {
		m = m[:b.Desc.Size]
	}
	return m
}

// CreateBuffer creates a buffer and, when initialData is given, fills it
// through a staging buffer. The upload blocks until the device is idle, so
// it belongs to load time and never to the frame loop.
func (d *Device) CreateBuffer(desc BufferDesc, label string, initialData []byte) (*Buffer, error) {
	if initialData != nil {
		if uint64(len(initialData)) > desc.Size {
			return nil, errors.Errorf("buffer %q: %d bytes of initial data exceed size %d", label, len(initialData), desc.Size)
		}
		desc.Usage |= driver.BufferUsageTransferDst
	}
	b, err := d.createBuffer(desc, label)
	if err != nil {
		return nil, err
	}
	if initialData == nil {
		return b, nil
	}
	if err := d.upload(b, initialData); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (d *Device) createBuffer(desc BufferDesc, label string) (*Buffer, error) {
	if desc.Size == 0 {
		return nil, errors.Errorf("buffer %q: zero size", label)
	}
	raw, err := d.Raw.CreateBuffer(desc.Size, desc.Usage)
	if err != nil {
		return nil, errors.Wrapf(err, "create buffer %q", label)
	}
	reqs := d.Raw.BufferMemoryRequirements(raw)
	al, err := d.Allocator.Allocate(reqs, desc.Location)
	if err != nil {
		d.Raw.DestroyBuffer(raw)
		return nil, errors.Wrapf(err, "allocate memory for buffer %q", label)
	}
	if err := d.Raw.BindBufferMemory(raw, al.Memory, al.Offset); err != nil {
		d.Allocator.Free(al)
		d.Raw.DestroyBuffer(raw)
		return nil, errors.Wrapf(err, "bind memory of buffer %q", label)
	}
	return &Buffer{Raw: raw, Desc: desc, Label: label, Allocation: al, dev: d}, nil
}

func (d *Device) upload(dst *Buffer, data []byte) error {
	staging, err := d.createBuffer(BufferDesc{
		Size:     dst.Desc.Size,
		Usage:    driver.BufferUsageTransferSrc,
		Location: CpuToGpu,
	}, dst.Label+" staging")
	if err != nil {
		return err
	}
	defer staging.Destroy()

	mapped := staging.Mapped()
	if mapped == nil {
		panic("staging buffer " + staging.Label + " is not host visible")
	}
	copy(mapped, data)

	err = d.withSetupCommandBuffer(func(cmd driver.CommandBuffer) {
		d.Raw.CmdCopyBuffer(cmd, staging.Raw, dst.Raw, []driver.BufferCopy{{Size: dst.Desc.Size}})
	})
	return errors.Wrapf(err, "upload buffer %q", dst.Label)
}

// Write copies data into a mapped buffer at offset.
func (b *Buffer) Write(offset uint64, data []byte) error {
	m := b.Mapped()
	if m == nil {
		return errors.Errorf("buffer %q is not host visible", b.Label)
	}
	if offset+uint64(len(data)) > uint64(len(m)) {
		return errors.Errorf("buffer %q: write of %d bytes at %d exceeds %d", b.Label, len(data), offset, len(m))
	}
	copy(m[offset:], data)
	return nil
}

func (b *Buffer) Destroy() {
	if b.dev == nil {
		return
	}
	b.dev.Raw.DestroyBuffer(b.Raw)
	b.dev.Allocator.Free(b.Allocation)
	b.Allocation = nil
	b.dev = nil
}

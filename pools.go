package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// CommandPool allocates the primary command buffers of one queue family.
// Buffers from it can be reset individually.
type CommandPool struct {
	Raw driver.CommandPool

	dev driver.Device
}

func NewCommandPool(dev driver.Device, family uint32) (*CommandPool, error) {
	raw, err := dev.CreateCommandPool(family, true)
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	return &CommandPool{Raw: raw, dev: dev}, nil
}

func (p *CommandPool) Allocate(count uint32) ([]driver.CommandBuffer, error) {
	cmds, err := p.dev.AllocateCommandBuffers(p.Raw, count)
	return cmds, errors.Wrap(err, "allocate command buffers")
}

func (p *CommandPool) Free(cmds ...driver.CommandBuffer) {
	if len(cmds) > 0 {
		p.dev.FreeCommandBuffers(p.Raw, cmds)
	}
}

// Destroy frees every command buffer still allocated from the pool.
func (p *CommandPool) Destroy() {
	if p.Raw != 0 {
		p.dev.DestroyCommandPool(p.Raw)
		p.Raw = 0
	}
}

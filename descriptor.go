package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// BindlessDescriptorSet is the one globally bound set. Every binding is a
// storage buffer visible to all stages. Bindings may stay unwritten and may
// be rewritten after the set is bound; a rewrite affects commands recorded
// after it.
//
// Without update after bind support a rewrite first waits for the device to
// go idle, so no pending command buffer still uses the set.
type BindlessDescriptorSet struct {
	Layout          driver.DescriptorSetLayout
	Pool            driver.DescriptorPool
	Raw             driver.DescriptorSet
	Bindings        uint32
	UpdateAfterBind bool

	dev *Device
}

func NewBindlessDescriptorSet(dev *Device, storageBuffers uint32) (*BindlessDescriptorSet, error) {
	if storageBuffers == 0 {
		return nil, errors.New("bindless set needs at least one binding")
	}
	uab := dev.Features.DescriptorBindingStorageBufferUpdateAfterBind
	flags := driver.DescriptorBindingPartiallyBound
	var layoutFlags driver.DescriptorSetLayoutFlags
	var poolFlags driver.DescriptorPoolFlags
	if uab {
		flags |= driver.DescriptorBindingUpdateAfterBind
		layoutFlags = driver.DescriptorSetLayoutUpdateAfterBindPool
		poolFlags = driver.DescriptorPoolUpdateAfterBind
	} else {
		dev.log.Warnf("update after bind unsupported, descriptor rewrites will wait for the device")
	}
	bindings := make([]driver.DescriptorSetLayoutBinding, storageBuffers)
	for i := range bindings {
		bindings[i] = driver.DescriptorSetLayoutBinding{
			Binding: uint32(i),
			Type:    driver.DescriptorTypeStorageBuffer,
			Count:   1,
			Stages:  driver.ShaderStageAll,
			Flags:   flags,
		}
	}

	s := &BindlessDescriptorSet{Bindings: storageBuffers, UpdateAfterBind: uab, dev: dev}
	var err error
	s.Layout, err = dev.Raw.CreateDescriptorSetLayout(driver.DescriptorSetLayoutDesc{
		Flags:    layoutFlags,
		Bindings: bindings,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bindless set layout")
	}
	s.Pool, err = dev.Raw.CreateDescriptorPool(driver.DescriptorPoolDesc{
		Flags:   poolFlags,
		MaxSets: 1,
		Sizes:   []driver.DescriptorPoolSize{{Type: driver.DescriptorTypeStorageBuffer, Count: storageBuffers}},
	})
	if err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "create bindless descriptor pool")
	}
	s.Raw, err = dev.Raw.AllocateDescriptorSet(s.Pool, s.Layout)
	if err != nil {
		s.Destroy()
		return nil, errors.Wrap(err, "allocate bindless set")
	}
	return s, nil
}

// WriteDescriptorBuffer points binding at the whole of buf.
func (s *BindlessDescriptorSet) WriteDescriptorBuffer(binding uint32, buf *Buffer) error {
	if binding >= s.Bindings {
		return errors.Errorf("binding %d out of range, set has %d", binding, s.Bindings)
	}
	if !s.UpdateAfterBind {
		if err := s.dev.WaitIdle(); err != nil {
			return err
		}
	}
	s.dev.Raw.UpdateDescriptorSets([]driver.DescriptorWrite{{
		Set:     s.Raw,
		Binding: binding,
		Type:    driver.DescriptorTypeStorageBuffer,
		Buffers: []driver.DescriptorBufferInfo{{Buffer: buf.Raw, Range: driver.WholeSize}},
	}})
	return nil
}

// Destroy frees the pool, which frees the set, then the layout.
func (s *BindlessDescriptorSet) Destroy() {
	if s.Pool != 0 {
		s.dev.Raw.DestroyDescriptorPool(s.Pool)
		s.Pool, s.Raw = 0, 0
	}
	if s.Layout != 0 {
		s.dev.Raw.DestroyDescriptorSetLayout(s.Layout)
		s.Layout = 0
	}
}

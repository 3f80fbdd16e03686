package strale

import (
	"testing"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindlessSetLayout(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	set, err := NewBindlessDescriptorSet(r.dev, 4)
	require.NoError(t, err)
	defer set.Destroy()

	layout, ok := r.rec.SetLayout(set.Layout)
	require.True(t, ok)
	assert.Equal(t, driver.DescriptorSetLayoutUpdateAfterBindPool, layout.Flags)
	require.Len(t, layout.Bindings, 4)
	for i, b := range layout.Bindings {
		assert.EqualValues(t, i, b.Binding)
		assert.Equal(t, driver.DescriptorTypeStorageBuffer, b.Type)
		assert.EqualValues(t, 1, b.Count)
		assert.Equal(t, driver.ShaderStageAll, b.Stages)
		assert.Equal(t, driver.DescriptorBindingPartiallyBound|driver.DescriptorBindingUpdateAfterBind, b.Flags)
	}

	pool, ok := r.rec.DescriptorPoolDesc(set.Pool)
	require.True(t, ok)
	assert.Equal(t, driver.DescriptorPoolUpdateAfterBind, pool.Flags)
	assert.EqualValues(t, 1, pool.MaxSets)
	assert.Equal(t, []driver.DescriptorPoolSize{{Type: driver.DescriptorTypeStorageBuffer, Count: 4}}, pool.Sizes)
}

func TestBindlessSetWithoutUpdateAfterBind(t *testing.T) {
	rc := recorder.Default()
	rc.Devices[0].Features.DescriptorBindingStorageBufferUpdateAfterBind = false
	r := newRig(t, rc, nil)

	set, err := NewBindlessDescriptorSet(r.dev, 2)
	require.NoError(t, err)
	defer set.Destroy()
	assert.False(t, set.UpdateAfterBind)
	assert.Contains(t, r.logs.warn.String(), "update after bind unsupported")

	layout, _ := r.rec.SetLayout(set.Layout)
	assert.Zero(t, layout.Flags)
	for _, b := range layout.Bindings {
		assert.Equal(t, driver.DescriptorBindingPartiallyBound, b.Flags)
	}
	pool, _ := r.rec.DescriptorPoolDesc(set.Pool)
	assert.Zero(t, pool.Flags)

	buf, err := r.dev.CreateBuffer(BufferDesc{Size: 64, Usage: driver.BufferUsageStorageBuffer}, "a", nil)
	require.NoError(t, err)
	defer buf.Destroy()

	// A frame that reads the set is on the queue when the binding changes.
	f, err := r.dev.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.dev.SubmitFrame(f, driver.SubmitInfo{}))
	r.dev.FinishFrame(f)

	waits := r.rec.WaitIdles
	require.NoError(t, set.WriteDescriptorBuffer(0, buf))
	assert.Equal(t, waits+1, r.rec.WaitIdles)
	calls := r.rec.Calls
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, []string{"DeviceWaitIdle", "UpdateDescriptorSets"}, calls[len(calls)-2:])
	assert.Equal(t, map[uint32]driver.Buffer{0: buf.Raw}, r.rec.SetContents(set.Raw))
}

func TestWriteDescriptorBuffer(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	set, err := NewBindlessDescriptorSet(r.dev, 2)
	require.NoError(t, err)
	defer set.Destroy()

	a, err := r.dev.CreateBuffer(BufferDesc{Size: 64, Usage: driver.BufferUsageStorageBuffer}, "a", nil)
	require.NoError(t, err)
	defer a.Destroy()
	b, err := r.dev.CreateBuffer(BufferDesc{Size: 64, Usage: driver.BufferUsageStorageBuffer}, "b", nil)
	require.NoError(t, err)
	defer b.Destroy()

	assert.Empty(t, r.rec.SetContents(set.Raw), "bindings start unwritten")
	waits := r.rec.WaitIdles

	require.NoError(t, set.WriteDescriptorBuffer(1, a))
	assert.Equal(t, map[uint32]driver.Buffer{1: a.Raw}, r.rec.SetContents(set.Raw))

	require.NoError(t, set.WriteDescriptorBuffer(1, b))
	assert.Equal(t, map[uint32]driver.Buffer{1: b.Raw}, r.rec.SetContents(set.Raw))

	assert.Error(t, set.WriteDescriptorBuffer(2, a))
	assert.Equal(t, waits, r.rec.WaitIdles, "update after bind writes do not wait")
}

func TestBindlessSetNeedsBindings(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	_, err := NewBindlessDescriptorSet(r.dev, 0)
	assert.Error(t, err)
}

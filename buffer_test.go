package strale

import (
	"testing"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBufferUploadsInitialData(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	data := SphereBytes(SceneSpheres)
	submits := len(r.rec.Submits)

	b, err := r.dev.CreateBuffer(BufferDesc{
		Size:     1024,
		Usage:    driver.BufferUsageStorageBuffer,
		Location: GpuOnly,
	}, "spheres", data)
	require.NoError(t, err)
	defer b.Destroy()

	contents := r.rec.BufferContents(b.Raw)
	require.Len(t, contents, 1024)
	assert.Equal(t, data, contents[:len(data)])
	assert.Equal(t, make([]byte, 1024-len(data)), contents[len(data):])

	assert.Nil(t, b.Mapped())
	assert.NotZero(t, r.rec.BufferUsage(b.Raw)&driver.BufferUsageTransferDst)
	assert.Equal(t, 1, r.rec.LiveBuffers(), "staging buffer destroyed")

	require.Len(t, r.rec.Submits, submits+1)
	setup := r.rec.Submits[submits]
	assert.Zero(t, setup.Fence)
	cmds := setup.Commands[r.dev.setupCmd]
	require.Len(t, cmds, 1)
	assert.Equal(t, recorder.OpCopyBuffer, cmds[0].Op)
	assert.Equal(t, b.Raw, cmds[0].Dst)
	assert.Equal(t, []driver.BufferCopy{{Size: 1024}}, cmds[0].Regions)
	assert.Empty(t, r.rec.Violations)
}

func TestCreateBufferWithoutDataSkipsUpload(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	submits := len(r.rec.Submits)

	b, err := r.dev.CreateBuffer(BufferDesc{Size: 64, Usage: driver.BufferUsageStorageBuffer}, "empty", nil)
	require.NoError(t, err)
	defer b.Destroy()

	assert.Len(t, r.rec.Submits, submits)
	assert.Zero(t, r.rec.BufferUsage(b.Raw)&driver.BufferUsageTransferDst)
}

func TestCreateBufferRejectsOversizedData(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	_, err := r.dev.CreateBuffer(BufferDesc{Size: 4, Usage: driver.BufferUsageStorageBuffer}, "small", make([]byte, 8))
	assert.Error(t, err)
	_, err = r.dev.CreateBuffer(BufferDesc{Usage: driver.BufferUsageStorageBuffer}, "zero", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, r.rec.LiveBuffers())
}

func TestHostVisibleBufferWrite(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	b, err := r.dev.CreateBuffer(BufferDesc{
		Size:     PushConstantSize,
		Usage:    driver.BufferUsageStorageBuffer,
		Location: CpuToGpu,
	}, "params", nil)
	require.NoError(t, err)
	defer b.Destroy()

	require.Len(t, b.Mapped(), PushConstantSize)
	push := PushConstant{Time: 1.5, NumSpheres: 4}
	require.NoError(t, b.Write(0, push.Bytes()))
	assert.Equal(t, push.Bytes(), r.rec.BufferContents(b.Raw))

	assert.Error(t, b.Write(4, push.Bytes()))
}

func TestBufferDestroyReturnsMemory(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)

	b, err := r.dev.CreateBuffer(BufferDesc{Size: 256, Usage: driver.BufferUsageStorageBuffer}, "tmp", nil)
	require.NoError(t, err)
	b.Destroy()
	b.Destroy()

	assert.Equal(t, 0, r.rec.LiveBuffers())
	assert.EqualValues(t, 0, r.dev.Allocator.Usage().UsedBytes)
}

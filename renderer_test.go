package strale

import (
	"testing"

	"github.com/andewx/strale/driver"
	"github.com/andewx/strale/driver/recorder"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, r *rig) *Renderer {
	t.Helper()
	rd, err := NewRenderer(r.dev, &r.cfg, r.log, testShaders())
	require.NoError(t, err)
	t.Cleanup(rd.Destroy)
	return rd
}

// frameCommands returns what a frame submission executed.
func frameCommands(t *testing.T, sub recorder.Submission) []recorder.Command {
	t.Helper()
	require.Len(t, sub.Infos, 1)
	require.Len(t, sub.Infos[0].CommandBuffers, 1)
	return sub.Commands[sub.Infos[0].CommandBuffers[0]]
}

func TestNewRendererUploadsScene(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	rd := newTestRenderer(t, r)

	vertices := r.rec.BufferContents(rd.Vertices.Raw)
	assert.Equal(t, VertexBytes(SceneVertices), vertices)

	spheres := r.rec.BufferContents(rd.Spheres.Raw)
	require.Len(t, spheres, 4096)
	assert.Equal(t, SphereBytes(SceneSpheres), spheres[:len(SceneSpheres)*SphereSize])
	assert.EqualValues(t, len(SceneSpheres), rd.SphereCount)

	assert.Equal(t, map[uint32]driver.Buffer{0: rd.Vertices.Raw, 1: rd.Spheres.Raw}, r.rec.SetContents(rd.Set.Raw))
	assert.Equal(t, 0, r.rec.LiveShaderModules(), "modules released after pipeline build")
	assert.Empty(t, r.rec.Violations)
}

func TestTrianglesPipelineState(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	rd := newTestRenderer(t, r)

	require.Len(t, r.rec.Pipelines, 1)
	p := r.rec.Pipelines[0]
	assert.Equal(t, driver.TopologyTriangleList, p.Topology)
	assert.Equal(t, driver.CullModeBack, p.CullMode)
	assert.Equal(t, driver.FrontFaceCounterClockwise, p.FrontFace)
	assert.Equal(t, []driver.Format{driver.FormatB8G8R8A8Unorm}, p.ColorAttachmentFormats)
	assert.Equal(t, []driver.DynamicState{driver.DynamicStateViewport, driver.DynamicStateScissor}, p.DynamicStates)
	require.Len(t, p.Stages, 2)
	assert.Equal(t, driver.ShaderStageVertex, p.Stages[0].Stage)
	assert.Equal(t, driver.ShaderStageFragment, p.Stages[1].Stage)
	assert.Equal(t, "main", p.Stages[1].Entry)

	layout, ok := r.rec.PipelineLayoutDesc(rd.Pipeline.Layout)
	require.True(t, ok)
	assert.Equal(t, []driver.DescriptorSetLayout{rd.Set.Layout}, layout.SetLayouts)
	assert.Equal(t, []driver.PushConstantRange{{Stages: driver.ShaderStageFragment, Size: PushConstantSize}}, layout.PushConstants)
	assert.Equal(t, []SetBinding{{Index: 0, Set: rd.Set.Raw}}, rd.Pipeline.Bindings)
}

func TestBadShaderFailsRenderer(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	code := testShaders()
	code.Fragment = []byte{1, 2, 3, 4}

	_, err := NewRenderer(r.dev, &r.cfg, r.log, code)
	assert.ErrorIs(t, err, ErrShaderModule)
	assert.Equal(t, 0, r.rec.LiveBuffers())
	assert.Equal(t, 0, r.rec.LiveShaderModules())
}

func TestRendererNeedsTwoBindings(t *testing.T) {
	r := newRig(t, recorder.Default(), func(c *Config) { c.Bindless.StorageBuffers = 1 })
	require.NoError(t, r.cfg.Validate(), "one binding is a valid set")

	set, err := NewBindlessDescriptorSet(r.dev, r.cfg.Bindless.StorageBuffers)
	require.NoError(t, err)
	set.Destroy()

	_, err = NewRenderer(r.dev, &r.cfg, r.log, testShaders())
	assert.Error(t, err)
	assert.Equal(t, 0, r.rec.LiveBuffers())
}

func TestDrawRecordsFrame(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	rd := newTestRenderer(t, r)
	first := len(r.rec.Submits)

	require.NoError(t, rd.Draw(sc))

	require.Len(t, r.rec.Submits, first+1)
	sub := r.rec.Submits[first]
	cmds := frameCommands(t, sub)
	assert.Equal(t, []recorder.Op{
		recorder.OpPipelineBarrier,
		recorder.OpBeginRendering,
		recorder.OpSetViewport,
		recorder.OpSetScissor,
		recorder.OpBindPipeline,
		recorder.OpBindDescriptorSets,
		recorder.OpPushConstants,
		recorder.OpDraw,
		recorder.OpEndRendering,
		recorder.OpPipelineBarrier,
	}, recorder.Ops(cmds))

	img := sc.Images[0]
	toColor := cmds[0].Barriers[0]
	assert.Equal(t, img, toColor.Image)
	assert.Equal(t, driver.ImageLayoutUndefined, toColor.OldLayout)
	assert.Equal(t, driver.ImageLayoutColorAttachmentOptimal, toColor.NewLayout)
	assert.Equal(t, driver.AccessColorAttachmentWrite, toColor.DstAccess)

	toPresent := cmds[9].Barriers[0]
	assert.Equal(t, img, toPresent.Image)
	assert.Equal(t, driver.ImageLayoutColorAttachmentOptimal, toPresent.OldLayout)
	assert.Equal(t, driver.ImageLayoutPresentSrc, toPresent.NewLayout)

	rendering := cmds[1].Rendering
	assert.Equal(t, driver.Rect2D{Extent: sc.Extent}, rendering.Area)
	require.Len(t, rendering.ColorAttachments, 1)
	att := rendering.ColorAttachments[0]
	assert.Equal(t, sc.Views[0], att.View)
	assert.Equal(t, driver.LoadOpClear, att.LoadOp)
	assert.Equal(t, driver.StoreOpStore, att.StoreOp)
	assert.Equal(t, [4]float32{0, 0, 1, 0}, att.ClearColor)

	assert.Equal(t, []driver.Viewport{{Y: 1080, Width: 1920, Height: -1080, MaxDepth: 1}}, cmds[2].Viewports)
	assert.Equal(t, []driver.Rect2D{{Extent: sc.Extent}}, cmds[3].Scissors)
	assert.Equal(t, rd.Pipeline.Raw, cmds[4].Pipeline)
	assert.Equal(t, []driver.DescriptorSet{rd.Set.Raw}, cmds[5].Sets)

	push := cmds[6]
	assert.Equal(t, driver.ShaderStageFragment, push.Stages)
	require.Len(t, push.Data, PushConstantSize)
	assert.Equal(t, []byte{4, 0, 0, 0}, push.Data[4:])

	assert.EqualValues(t, 3, cmds[7].VertexCount)
	assert.EqualValues(t, 1, cmds[7].InstanceCount)

	info := sub.Infos[0]
	assert.Equal(t, []driver.PipelineStage{driver.PipelineStageColorAttachmentOutput}, info.WaitStages)
	require.Len(t, r.rec.Presents, 1)
	assert.Equal(t, info.SignalSemaphores, r.rec.Presents[0].WaitSemaphores)
	assert.Empty(t, r.rec.Violations)
}

func TestTenFrames(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	rd := newTestRenderer(t, r)

	waits, submits := r.rec.FenceWaits, len(r.rec.Submits)
	for i := 0; i < 10; i++ {
		require.NoError(t, rd.Draw(sc), "frame %d", i)
	}

	assert.Equal(t, 10, r.rec.FenceWaits-waits)
	frames := r.rec.Submits[submits:]
	require.Len(t, frames, 10)
	require.Len(t, r.rec.Presents, 10)
	assert.Equal(t, []uint32{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, r.rec.Acquired)

	for i, sub := range frames {
		assert.NotZero(t, sub.Fence)
		if i > 0 {
			assert.NotEqual(t, frames[i-1].Fence, sub.Fence, "consecutive frames use different slots")
		}
		if i > 1 {
			assert.Equal(t, frames[i-2].Fence, sub.Fence)
		}
		assert.Equal(t, r.rec.Acquired[i], r.rec.Presents[i].ImageIndex)
		assert.Equal(t, sub.Infos[0].SignalSemaphores, r.rec.Presents[i].WaitSemaphores)
	}
	assert.Empty(t, r.rec.Violations)
	assert.Empty(t, r.fatals.errs)
}

func TestDrawOutOfDateNeedsRecreate(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	rd := newTestRenderer(t, r)
	submits := len(r.rec.Submits)
	r.rec.AcquireErrors = []error{driver.ErrOutOfDate}

	assert.ErrorIs(t, rd.Draw(sc), ErrRecreateNeeded)
	assert.Len(t, r.rec.Submits, submits)
	assert.Empty(t, r.rec.Presents)

	// The slot was released; the loop keeps going after a recreate.
	require.NoError(t, sc.Recreate(sc.desc))
	require.NoError(t, rd.Draw(sc))
	require.NoError(t, rd.Draw(sc))
	assert.Len(t, r.rec.Presents, 2)
	assert.Empty(t, r.rec.Violations)
}

func TestSetSpheresRebindsForLaterFrames(t *testing.T) {
	r := newRig(t, recorder.Default(), nil)
	sc := r.swapchain(t)
	rd := newTestRenderer(t, r)

	require.NoError(t, rd.Draw(sc))
	old := rd.Spheres.Raw

	more := append([]Sphere{{Position: mgl32.Vec3{0, 3, 0}, Radius: 0.5, Material: 1}}, SceneSpheres...)
	require.NoError(t, rd.SetSpheres(more))
	require.NoError(t, rd.Draw(sc))
	assert.NotEqual(t, old, rd.Spheres.Raw)
	assert.EqualValues(t, 5, rd.SphereCount)

	n := len(r.rec.Submits)
	before, _ := recorder.Find(frameCommands(t, r.rec.Submits[n-3]), recorder.OpBindDescriptorSets)
	after, _ := recorder.Find(frameCommands(t, r.rec.Submits[n-1]), recorder.OpBindDescriptorSets)
	assert.Equal(t, old, before.SetContents[0][1])
	assert.Equal(t, rd.Spheres.Raw, after.SetContents[0][1])
	assert.Equal(t, rd.Vertices.Raw, after.SetContents[0][0])

	push, _ := recorder.Find(frameCommands(t, r.rec.Submits[n-1]), recorder.OpPushConstants)
	assert.Equal(t, []byte{5, 0, 0, 0}, push.Data[4:])
	assert.Equal(t, SphereBytes(more), r.rec.BufferContents(rd.Spheres.Raw)[:5*SphereSize])
}

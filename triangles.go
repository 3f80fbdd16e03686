package strale

import "github.com/andewx/strale/driver"

// NewTrianglesPipeline builds the pipeline that draws the full-screen
// triangle and ray-marches the sphere buffer in the fragment shader. It
// reuses the bindless set's layout at set 0.
func NewTrianglesPipeline(dev *Device, set *BindlessDescriptorSet, code ShaderCode) (*Pipeline, error) {
	vert, err := LoadShaderModule(dev, code.Vertex)
	if err != nil {
		return nil, err
	}
	defer dev.Raw.DestroyShaderModule(vert)
	frag, err := LoadShaderModule(dev, code.Fragment)
	if err != nil {
		return nil, err
	}
	defer dev.Raw.DestroyShaderModule(frag)

	b := NewPipelineBuilder(vert, frag)
	b.SetLayouts = []driver.DescriptorSetLayout{set.Layout}
	b.PushConstants = []driver.PushConstantRange{{
		Stages: driver.ShaderStageFragment,
		Size:   PushConstantSize,
	}}
	p, err := b.Build(dev, "triangles")
	if err != nil {
		return nil, err
	}
	p.AddDescriptorSet(0, set)
	return p, nil
}

func colorRange() driver.ImageSubresourceRange {
	return driver.ImageSubresourceRange{
		Aspect:     driver.ImageAspectColor,
		LevelCount: 1,
		LayerCount: 1,
	}
}

// recordTriangles records one frame into cmd: layout transition to color
// attachment, a cleared dynamic rendering pass with the flipped viewport,
// the draw, and the transition to present.
func (r *Renderer) recordTriangles(cmd driver.CommandBuffer, img SwapchainImage, sc *Swapchain, push PushConstant) {
	dev := r.dev.Raw

	dev.CmdPipelineBarrier(cmd, []driver.ImageBarrier{{
		Image:          img.Image,
		SrcStage:       driver.PipelineStageTopOfPipe,
		DstStage:       driver.PipelineStageColorAttachmentOutput,
		SrcAccess:      driver.AccessNone,
		DstAccess:      driver.AccessColorAttachmentWrite,
		OldLayout:      driver.ImageLayoutUndefined,
		NewLayout:      driver.ImageLayoutColorAttachmentOptimal,
		SrcQueueFamily: driver.QueueFamilyIgnored,
		DstQueueFamily: driver.QueueFamilyIgnored,
		Range:          colorRange(),
	}})

	area := driver.Rect2D{Extent: sc.Extent}
	dev.CmdBeginRendering(cmd, driver.RenderingInfo{
		Area:       area,
		LayerCount: 1,
		ColorAttachments: []driver.RenderingAttachment{{
			View:       img.View,
			Layout:     driver.ImageLayoutColorAttachmentOptimal,
			LoadOp:     driver.LoadOpClear,
			StoreOp:    driver.StoreOpStore,
			ClearColor: ClearColor,
		}},
	})
	dev.CmdSetViewport(cmd, []driver.Viewport{sc.Viewport()})
	dev.CmdSetScissor(cmd, []driver.Rect2D{area})

	r.Pipeline.Bind(cmd)
	dev.CmdPushConstants(cmd, r.Pipeline.Layout, driver.ShaderStageFragment, 0, push.Bytes())
	dev.CmdDraw(cmd, uint32(len(SceneVertices)), 1, 0, 0)

	dev.CmdEndRendering(cmd)
	dev.CmdPipelineBarrier(cmd, []driver.ImageBarrier{{
		Image:          img.Image,
		SrcStage:       driver.PipelineStageColorAttachmentOutput,
		DstStage:       driver.PipelineStageBottomOfPipe,
		SrcAccess:      driver.AccessColorAttachmentWrite,
		DstAccess:      driver.AccessNone,
		OldLayout:      driver.ImageLayoutColorAttachmentOptimal,
		NewLayout:      driver.ImageLayoutPresentSrc,
		SrcQueueFamily: driver.QueueFamilyIgnored,
		DstQueueFamily: driver.QueueFamilyIgnored,
		Range:          colorRange(),
	}})
}

// ClearColor is the background behind the scene.
var ClearColor = [4]float32{0, 0, 1, 0}

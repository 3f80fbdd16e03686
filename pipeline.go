package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// SetBinding is a descriptor set bound at a set index before each draw.
type SetBinding struct {
	Index uint32
	Set   driver.DescriptorSet
}

// Pipeline is a graphics pipeline with the descriptor sets it needs bound,
// in registration order.
type Pipeline struct {
	Name       string
	Bindings   []SetBinding
	Layout     driver.PipelineLayout
	Raw        driver.Pipeline
	SetLayouts []driver.DescriptorSetLayout

	dev *Device
}

// AddDescriptorSet registers set to be bound at index.
func (p *Pipeline) AddDescriptorSet(index uint32, set *BindlessDescriptorSet) {
	p.Bindings = append(p.Bindings, SetBinding{Index: index, Set: set.Raw})
}

// Bind binds the pipeline, then every registered set.
func (p *Pipeline) Bind(cmd driver.CommandBuffer) {
	p.dev.Raw.CmdBindGraphicsPipeline(cmd, p.Raw)
	for _, b := range p.Bindings {
		p.dev.Raw.CmdBindDescriptorSets(cmd, p.Layout, b.Index, []driver.DescriptorSet{b.Set})
	}
}

func (p *Pipeline) Destroy() {
	if p.dev == nil {
		return
	}
	if p.Raw != 0 {
		p.dev.Raw.DestroyPipeline(p.Raw)
	}
	if p.Layout != 0 {
		p.dev.Raw.DestroyPipelineLayout(p.Layout)
	}
	p.dev = nil
}

// PipelineBuilder collects fixed-function state for a dynamic-rendering
// pipeline. Viewport and scissor are always dynamic.
type PipelineBuilder struct {
	Stages        []driver.ShaderStageDesc
	Topology      driver.PrimitiveTopology
	CullMode      driver.CullMode
	FrontFace     driver.FrontFace
	LineWidth     float32
	ColorFormat   driver.Format
	ColorBlend    driver.ColorBlendAttachment
	SetLayouts    []driver.DescriptorSetLayout
	PushConstants []driver.PushConstantRange
}

// Default vertex and fragment pipeline with no vertex input
func NewPipelineBuilder(vertex, fragment driver.ShaderModule) *PipelineBuilder {
	return &PipelineBuilder{
		Stages: []driver.ShaderStageDesc{
			{Stage: driver.ShaderStageVertex, Module: vertex, Entry: "main"},
			{Stage: driver.ShaderStageFragment, Module: fragment, Entry: "main"},
		},
		Topology:    driver.TopologyTriangleList,
		CullMode:    driver.CullModeBack,
		FrontFace:   driver.FrontFaceCounterClockwise,
		LineWidth:   1,
		ColorFormat: driver.FormatB8G8R8A8Unorm,
		ColorBlend:  driver.ColorBlendAttachment{WriteMask: driver.ColorComponentRGBA},
	}
}

// Build creates the layout and pipeline.
func (b *PipelineBuilder) Build(dev *Device, name string) (*Pipeline, error) {
	layout, err := dev.Raw.CreatePipelineLayout(driver.PipelineLayoutDesc{
		SetLayouts:    b.SetLayouts,
		PushConstants: b.PushConstants,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create layout of pipeline %q", name)
	}
	raw, err := dev.Raw.CreateGraphicsPipeline(driver.GraphicsPipelineDesc{
		Layout:                 layout,
		Stages:                 b.Stages,
		Topology:               b.Topology,
		CullMode:               b.CullMode,
		FrontFace:              b.FrontFace,
		LineWidth:              b.LineWidth,
		ColorAttachmentFormats: []driver.Format{b.ColorFormat},
		ColorBlend:             []driver.ColorBlendAttachment{b.ColorBlend},
		DynamicStates:          []driver.DynamicState{driver.DynamicStateViewport, driver.DynamicStateScissor},
	})
	if err != nil {
		dev.Raw.DestroyPipelineLayout(layout)
		return nil, errors.Wrapf(err, "create pipeline %q", name)
	}
	return &Pipeline{
		Name:       name,
		Layout:     layout,
		Raw:        raw,
		SetLayouts: b.SetLayouts,
		dev:        dev,
	}, nil
}

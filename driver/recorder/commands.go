package recorder

import "github.com/andewx/strale/driver"

type Op int

const (
	OpCopyBuffer Op = iota
	OpPipelineBarrier
	OpBeginRendering
	OpEndRendering
	OpSetViewport
	OpSetScissor
	OpBindPipeline
	OpBindDescriptorSets
	OpPushConstants
	OpDraw
)

var opNames = [...]string{
	OpCopyBuffer:         "CopyBuffer",
	OpPipelineBarrier:    "PipelineBarrier",
	OpBeginRendering:     "BeginRendering",
	OpEndRendering:       "EndRendering",
	OpSetViewport:        "SetViewport",
	OpSetScissor:         "SetScissor",
	OpBindPipeline:       "BindPipeline",
	OpBindDescriptorSets: "BindDescriptorSets",
	OpPushConstants:      "PushConstants",
	OpDraw:               "Draw",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "Unknown"
	}
	return opNames[o]
}

// Command is one recorded command. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	Src, Dst driver.Buffer
	Regions  []driver.BufferCopy

	Barriers []driver.ImageBarrier

	Rendering driver.RenderingInfo
	Viewports []driver.Viewport
	Scissors  []driver.Rect2D

	Pipeline driver.Pipeline
	Layout   driver.PipelineLayout

	FirstSet uint32
	Sets     []driver.DescriptorSet
	// SetContents holds the buffer at each binding of every set at the time
	// the bind was recorded.
	SetContents []map[uint32]driver.Buffer

	Stages driver.ShaderStage
	Offset uint32
	Data   []byte

	VertexCount, InstanceCount, FirstVertex, FirstInstance uint32
}

// Ops lists the op of each command, for order assertions.
func Ops(cmds []Command) []Op {
	out := make([]Op, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

// Find returns the first command with the given op.
func Find(cmds []Command, op Op) (Command, bool) {
	for _, c := range cmds {
		if c.Op == op {
			return c, true
		}
	}
	return Command{}, false
}

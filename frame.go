package strale

import (
	"github.com/andewx/strale/driver"
	"github.com/pkg/errors"
)

// FrameState is the lifecycle of one frame slot.
type FrameState int

const (
	// FrameIdle means the fence is signaled and the slot is free.
	FrameIdle FrameState = iota
	// FrameClaimed means a caller holds the slot and is recording.
	FrameClaimed
	// FrameSubmitted means the command buffer is on the queue.
	FrameSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameClaimed:
		return "claimed"
	case FrameSubmitted:
		return "submitted"
	}
	return "unknown"
}

// CommandBuffer is a primary command buffer with the fence its submission
// signals.
type CommandBuffer struct {
	Raw             driver.CommandBuffer
	SubmitDoneFence driver.Fence
}

// DeviceFrame is one of the two slots of the double buffer.
type DeviceFrame struct {
	CommandBuffer CommandBuffer

	slot  int
	state FrameState
	// held is set while a Frame token for this slot is out, whatever the
	// GPU side of the slot is doing.
	held bool
}

func newDeviceFrame(dev driver.Device, slot int, cmd driver.CommandBuffer) (*DeviceFrame, error) {
	//Signaled so the first wait returns at once
	fence, err := dev.CreateFence(true)
	if err != nil {
		return nil, errors.Wrap(err, "create frame fence")
	}
	return &DeviceFrame{
		CommandBuffer: CommandBuffer{Raw: cmd, SubmitDoneFence: fence},
		slot:          slot,
	}, nil
}

// Slot identifies the physical slot, 0 or 1.
func (f *DeviceFrame) Slot() int { return f.slot }

func (f *DeviceFrame) State() FrameState { return f.state }

func (f *DeviceFrame) destroy(dev driver.Device) {
	dev.DestroyFence(f.CommandBuffer.SubmitDoneFence)
}

// Frame is the token BeginFrame hands out. It must be passed back to
// FinishFrame exactly once.
type Frame struct {
	*DeviceFrame

	released bool
}

// BeginFrame claims the current slot and waits for its previous submission
// to complete. Claiming a slot whose token has not gone back through
// FinishFrame is a programming error and panics with OwnershipViolation.
func (d *Device) BeginFrame() (*Frame, error) {
	d.frameMu.Lock()
	defer d.frameMu.Unlock()

	f := d.frames[0]
	if f.held {
		panic(OwnershipViolation{Op: "begin frame while previous frame is held", Slot: f.slot})
	}
	fence := f.CommandBuffer.SubmitDoneFence
	if err := d.Raw.WaitForFences([]driver.Fence{fence}, true, d.fenceTimeout); err != nil {
		return nil, d.fatal(errors.Wrapf(err, "wait for frame fence of slot %d", f.slot))
	}
	f.state = FrameClaimed
	f.held = true
	return &Frame{DeviceFrame: f}, nil
}

// SubmitFrame resets the frame's fence and submits its command buffer with
// the fence as the completion signal.
func (d *Device) SubmitFrame(f *Frame, info driver.SubmitInfo) error {
	if f.released || f.state != FrameClaimed {
		panic(OwnershipViolation{Op: "submit frame not held by caller", Slot: f.slot})
	}
	fence := f.CommandBuffer.SubmitDoneFence
	if err := d.Raw.ResetFences([]driver.Fence{fence}); err != nil {
		return d.fatal(errors.Wrap(err, "reset frame fence"))
	}
	info.CommandBuffers = []driver.CommandBuffer{f.CommandBuffer.Raw}
	if err := d.submit(info, fence); err != nil {
		return d.fatal(errors.Wrap(err, "submit frame"))
	}
	f.state = FrameSubmitted
	return nil
}

// FinishFrame releases the token and swaps the slots so the next BeginFrame
// waits on the other frame's fence.
func (d *Device) FinishFrame(f *Frame) {
	d.frameMu.Lock()
	defer d.frameMu.Unlock()

	if f.released {
		panic(OwnershipViolation{Op: "finish frame twice", Slot: f.slot})
	}
	if f.DeviceFrame != d.frames[0] {
		panic(OwnershipViolation{Op: "finish frame that is not current", Slot: f.slot})
	}
	f.released = true
	f.held = false
	if f.state == FrameClaimed {
		// Never submitted, so the fence is still signaled.
		f.state = FrameIdle
	}
	d.frames[0], d.frames[1] = d.frames[1], d.frames[0]
}

package gputest

import (
	"github.com/cockroachdb/errors"

	"github.com/voxenlabs/voxen/gpu"
)

// queue executes submissions synchronously, so WaitIdle is trivially
// a no-op: by the time Submit returns, the copy has happened.
type queue struct {
	device *Device
}

var _ gpu.Queue = &queue{}

func (q *queue) Submit(commands gpu.CommandBuffer) error {
	cb := commands.(*commandBuffer)
	if cb.recording {
		return errors.New("gputest: submitted a command buffer that is still recording")
	}

	for _, op := range cb.copies {
		src := op.src
		dst := op.dst
		if src.memory == nil || dst.memory == nil {
			return errors.New("gputest: copy references a buffer with no memory bound")
		}
		for _, region := range op.regions {
			srcBase := src.offset + region.SrcOffset
			dstBase := dst.offset + region.DstOffset
			copy(dst.memory.data[dstBase:dstBase+region.Size], src.memory.data[srcBase:srcBase+region.Size])
		}
	}
	return nil
}

func (q *queue) WaitIdle() error {
	return nil
}

type commandPool struct{}

var _ gpu.CommandPool = &commandPool{}

func (p *commandPool) Allocate() (gpu.CommandBuffer, error) {
	return &commandBuffer{}, nil
}

func (p *commandPool) Destroy() {}

type copyOp struct {
	src     *buffer
	dst     *buffer
	regions []gpu.BufferCopy
}

type commandBuffer struct {
	recording bool
	copies    []copyOp
}

var _ gpu.CommandBuffer = &commandBuffer{}

func (c *commandBuffer) Begin() error {
	c.recording = true
	c.copies = c.copies[:0]
	return nil
}

func (c *commandBuffer) CopyBuffer(src gpu.Buffer, dst gpu.Buffer, regions []gpu.BufferCopy) {
	c.copies = append(c.copies, copyOp{
		src:     src.(*buffer),
		dst:     dst.(*buffer),
		regions: append([]gpu.BufferCopy{}, regions...),
	})
}

func (c *commandBuffer) End() error {
	c.recording = false
	return nil
}

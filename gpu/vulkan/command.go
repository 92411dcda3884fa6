package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"

	"github.com/voxenlabs/voxen/gpu"
)

type queue struct {
	queue       core1_0.Queue
	familyIndex int
}

func (q *queue) Submit(commands gpu.CommandBuffer) error {
	vulkanCommands, ok := commands.(*commandBuffer)
	if !ok {
		return errors.New("command buffer does not belong to this device")
	}
	if vulkanCommands.recordErr != nil {
		return vulkanCommands.recordErr
	}

	_, err := q.queue.Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{vulkanCommands.buffer},
		},
	})
	return err
}

func (q *queue) WaitIdle() error {
	_, err := q.queue.WaitIdle()
	return err
}

type commandPool struct {
	device    core1_0.Device
	pool      core1_0.CommandPool
	callbacks *driver.AllocationCallbacks
}

func (p *commandPool) Allocate() (gpu.CommandBuffer, error) {
	buffers, _, err := p.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, err
	}
	return &commandBuffer{buffer: buffers[0]}, nil
}

func (p *commandPool) Destroy() {
	p.pool.Destroy(p.callbacks)
}

type commandBuffer struct {
	buffer core1_0.CommandBuffer
	// CopyBuffer cannot surface an error through the recording interface, so
	// it is held until Submit.
	recordErr error
}

func (c *commandBuffer) Begin() error {
	c.recordErr = nil
	_, err := c.buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return err
}

func (c *commandBuffer) CopyBuffer(src gpu.Buffer, dst gpu.Buffer, regions []gpu.BufferCopy) {
	srcBuffer, srcOk := src.(*buffer)
	dstBuffer, dstOk := dst.(*buffer)
	if !srcOk || !dstOk {
		c.recordErr = errors.New("copy between buffers that do not belong to this device")
		return
	}

	copyRegions := make([]core1_0.BufferCopy, len(regions))
	for i, region := range regions {
		copyRegions[i] = core1_0.BufferCopy{
			SrcOffset: region.SrcOffset,
			DstOffset: region.DstOffset,
			Size:      region.Size,
		}
	}

	err := c.buffer.CmdCopyBuffer(srcBuffer.buffer, dstBuffer.buffer, copyRegions)
	if err != nil && c.recordErr == nil {
		c.recordErr = err
	}
}

func (c *commandBuffer) End() error {
	_, err := c.buffer.End()
	if err != nil {
		return err
	}
	return c.recordErr
}

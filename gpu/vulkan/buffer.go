package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"

	"github.com/voxenlabs/voxen/gpu"
)

var bufferUsagePairs = []struct {
	gpu    gpu.BufferUsageFlags
	vulkan core1_0.BufferUsageFlags
}{
	{gpu.BufferUsageTransferSrc, core1_0.BufferUsageTransferSrc},
	{gpu.BufferUsageTransferDst, core1_0.BufferUsageTransferDst},
	{gpu.BufferUsageIndexBuffer, core1_0.BufferUsageIndexBuffer},
	{gpu.BufferUsageVertexBuffer, core1_0.BufferUsageVertexBuffer},
}

func bufferUsageToVulkan(usage gpu.BufferUsageFlags) core1_0.BufferUsageFlags {
	var out core1_0.BufferUsageFlags
	for _, pair := range bufferUsagePairs {
		if usage&pair.gpu != 0 {
			out |= pair.vulkan
		}
	}
	return out
}

type buffer struct {
	buffer    core1_0.Buffer
	callbacks *driver.AllocationCallbacks
}

func (b *buffer) MemoryRequirements() gpu.MemoryRequirements {
	requirements := b.buffer.MemoryRequirements()
	return gpu.MemoryRequirements{
		Size:           requirements.Size,
		Alignment:      requirements.Alignment,
		MemoryTypeBits: requirements.MemoryTypeBits,
	}
}

func (b *buffer) BindMemory(memory gpu.DeviceMemory, offset int) error {
	vulkanMemory, ok := memory.(*deviceMemory)
	if !ok {
		return errors.New("memory does not belong to this device")
	}

	_, err := b.buffer.BindBufferMemory(vulkanMemory.memory, offset)
	return err
}

func (b *buffer) Destroy() {
	b.buffer.Destroy(b.callbacks)
}

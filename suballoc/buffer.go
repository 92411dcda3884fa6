package suballoc

import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/voxenlabs/voxen/gpu"
)

// Buffer couples a device buffer object with the block of sub-allocated
// memory backing it. Destroy must be called exactly once when the buffer is
// no longer referenced by any in-flight work.
type Buffer struct {
	allocator *Allocator
	buffer    gpu.Buffer
	block     BlockHandle
	destroyed bool
}

// NewBuffer creates a buffer object, sub-allocates memory satisfying its
// requirements, and binds the two together.
func NewBuffer(device gpu.Device, allocator *Allocator, size int, usage gpu.BufferUsageFlags, memoryUsage AllocUsage) (*Buffer, error) {
	bufferObj, err := device.CreateBuffer(size, usage)
	if err != nil {
		return nil, errors.Wrapf(err, "creating a %d-byte buffer", size)
	}

	block, err := allocator.Alloc(NewAllocRequest(bufferObj.MemoryRequirements(), memoryUsage))
	if err != nil {
		bufferObj.Destroy()
		return nil, err
	}

	err = bufferObj.BindMemory(block.Memory(), block.Offset())
	if err != nil {
		allocator.Free(block)
		bufferObj.Destroy()
		return nil, errors.Wrap(err, "binding buffer memory")
	}

	return &Buffer{
		allocator: allocator,
		buffer:    bufferObj,
		block:     block,
	}, nil
}

// Raw returns the underlying device buffer object for command recording.
func (b *Buffer) Raw() gpu.Buffer {
	return b.buffer
}

func (b *Buffer) Block() BlockHandle {
	return b.block
}

func (b *Buffer) Size() int {
	return b.block.Size()
}

// Ptr returns the buffer's persistently mapped base, nil unless it lives in
// staging memory.
func (b *Buffer) Ptr() unsafe.Pointer {
	return b.block.Ptr()
}

func (b *Buffer) Bytes() []byte {
	return b.block.Bytes()
}

// Destroy releases the buffer object and returns its block to the
// allocator. Safe to call more than once; only the first call releases.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.buffer.Destroy()
	b.allocator.Free(b.block)
}

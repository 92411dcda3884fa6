package suballoc

import (
	"unsafe"

	"github.com/voxenlabs/voxen/gpu"
)

// BlockHandle is the opaque ownership token for one suballocation. The
// caller must return exactly this token to Free and must not use it after
// Free returns.
type BlockHandle struct {
	memory gpu.DeviceMemory
	offset int
	size   int
	// Base of this block within the owning chunk's persistent mapping;
	// nil unless the chunk is host-visible.
	ptr unsafe.Pointer
}

// Memory returns the device memory the block lives in. The caller may bind
// buffers against it but never frees it; the chunk owns the allocation.
func (h BlockHandle) Memory() gpu.DeviceMemory {
	return h.memory
}

func (h BlockHandle) Offset() int {
	return h.offset
}

func (h BlockHandle) Size() int {
	return h.size
}

// Ptr returns a pointer to the block's first byte, or nil if the owning
// chunk is not host-mapped.
func (h BlockHandle) Ptr() unsafe.Pointer {
	return h.ptr
}

// Bytes exposes the block's mapped range. Nil if not host-mapped.
func (h BlockHandle) Bytes() []byte {
	if h.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(h.ptr), h.size)
}

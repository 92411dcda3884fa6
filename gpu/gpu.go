// Package gpu defines the narrow device surface consumed by the allocator
// and the meshing pipeline: the memory-type table, raw device-memory
// allocation, buffer objects, and transfer-capable queues with just enough
// command recording to express a staging copy. Window, swapchain, and
// pipeline bootstrap live entirely on the consumer's side of this boundary.
package gpu

import (
	"strings"
	"unsafe"
)

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
	MemoryPropertyHostCached
)

var memoryPropertyNames = []struct {
	flag MemoryPropertyFlags
	name string
}{
	{MemoryPropertyDeviceLocal, "DeviceLocal"},
	{MemoryPropertyHostVisible, "HostVisible"},
	{MemoryPropertyHostCoherent, "HostCoherent"},
	{MemoryPropertyHostCached, "HostCached"},
}

func (f MemoryPropertyFlags) Contains(other MemoryPropertyFlags) bool {
	return f&other == other
}

func (f MemoryPropertyFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for _, entry := range memoryPropertyNames {
		if f&entry.flag != 0 {
			names = append(names, entry.name)
		}
	}
	return strings.Join(names, "|")
}

// MemoryType is one entry of the physical device's memory-type table.
type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     int
}

type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc  BufferUsageFlags = 0x0001
	BufferUsageTransferDst  BufferUsageFlags = 0x0002
	BufferUsageIndexBuffer  BufferUsageFlags = 0x0040
	BufferUsageVertexBuffer BufferUsageFlags = 0x0080
)

// MemoryRequirements describes what a buffer object demands of the memory it
// is bound to. MemoryTypeBits is a raw bitmask over the device's memory-type
// table indices.
type MemoryRequirements struct {
	Size           int
	Alignment      int
	MemoryTypeBits uint32
}

type BufferCopy struct {
	SrcOffset int
	DstOffset int
	Size      int
}

// Device is the logical-device handle the core receives from the bootstrap
// layer.
type Device interface {
	// MemoryTypes returns the physical device's memory-type table. The slice
	// index is the memory-type index used with AllocateMemory.
	MemoryTypes() []MemoryType
	// AllocateMemory performs one real device-memory allocation of the given
	// size from the given memory type.
	AllocateMemory(typeIndex int, size int) (DeviceMemory, error)
	CreateBuffer(size int, usage BufferUsageFlags) (Buffer, error)
	// TransferQueues returns every transfer-capable queue the device exposes.
	// Each may be owned by at most one thread at a time.
	TransferQueues() []Queue
	CreateCommandPool(queue Queue) (CommandPool, error)
	// WaitIdle blocks until all queues on the device are idle.
	WaitIdle() error
}

// DeviceMemory is one real device-memory allocation. The sub-allocator is
// its only owner; everything else sees it through BlockHandle.
type DeviceMemory interface {
	Size() int
	// Map exposes the whole allocation as host memory. Mapping an already
	// mapped allocation returns ErrMappingConflict.
	Map() (unsafe.Pointer, error)
	Unmap()
	Free()
}

type Buffer interface {
	MemoryRequirements() MemoryRequirements
	BindMemory(memory DeviceMemory, offset int) error
	Destroy()
}

type Queue interface {
	Submit(commands CommandBuffer) error
	// WaitIdle blocks until every submission on this queue has completed.
	WaitIdle() error
}

type CommandPool interface {
	Allocate() (CommandBuffer, error)
	Destroy()
}

// CommandBuffer records a transfer. Begin resets any previous recording.
type CommandBuffer interface {
	Begin() error
	CopyBuffer(src Buffer, dst Buffer, regions []BufferCopy)
	End() error
}

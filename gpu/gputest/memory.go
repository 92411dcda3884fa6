package gputest

import (
	"sync"
	"unsafe"

	"github.com/voxenlabs/voxen/gpu"
	"github.com/voxenlabs/voxen/memutils"
)

type memory struct {
	device *Device
	heap   int
	size   int
	data   []byte

	mu     sync.Mutex
	mapped bool
	freed  bool
}

var _ gpu.DeviceMemory = &memory{}

func (m *memory) Size() int {
	return m.size
}

func (m *memory) Map() (unsafe.Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mapped {
		return nil, gpu.ErrMappingConflict
	}
	m.mapped = true
	return unsafe.Pointer(&m.data[0]), nil
}

func (m *memory) Unmap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapped = false
}

func (m *memory) Free() {
	m.mu.Lock()
	if m.freed {
		m.mu.Unlock()
		return
	}
	m.freed = true
	m.mu.Unlock()

	m.device.mu.Lock()
	m.device.heapUsage[m.heap] -= m.size
	m.device.mu.Unlock()
}

type buffer struct {
	device *Device
	size   int
	usage  gpu.BufferUsageFlags

	memory *memory
	offset int
}

var _ gpu.Buffer = &buffer{}

func (b *buffer) MemoryRequirements() gpu.MemoryRequirements {
	return gpu.MemoryRequirements{
		Size:           memutils.AlignUp(b.size, uint(b.device.bufferAlignment)),
		Alignment:      b.device.bufferAlignment,
		MemoryTypeBits: uint32(1)<<uint(len(b.device.memoryTypes)) - 1,
	}
}

func (b *buffer) BindMemory(mem gpu.DeviceMemory, offset int) error {
	b.memory = mem.(*memory)
	b.offset = offset
	return nil
}

func (b *buffer) Destroy() {
	b.memory = nil
}

// Package gputest provides an in-memory gpu.Device for tests. Memory is
// backed by host slices so mapped pointers are real, and submitted copies
// execute synchronously, which lets allocator and pipeline tests assert on
// the actual bytes that would reach the device.
package gputest

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/voxenlabs/voxen/gpu"
)

// ErrOutOfMemory is returned from AllocateMemory when a configured heap
// limit would be exceeded.
var ErrOutOfMemory = errors.New("gputest: device memory exhausted")

const defaultBufferAlignment = 16

// Config controls the simulated device. Zero values select the defaults.
type Config struct {
	// MemoryTypes defaults to DefaultMemoryTypes().
	MemoryTypes []gpu.MemoryType
	// HeapLimits holds a byte budget per heap index; 0 means unlimited.
	HeapLimits []int
	// TransferQueueCount defaults to 2.
	TransferQueueCount int
	// BufferAlignment defaults to 16.
	BufferAlignment int
}

// DefaultMemoryTypes mirrors the common discrete-GPU shape: one device-local
// type on heap 0 and one host-visible coherent type on heap 1.
func DefaultMemoryTypes() []gpu.MemoryType {
	return []gpu.MemoryType{
		{PropertyFlags: gpu.MemoryPropertyDeviceLocal, HeapIndex: 0},
		{PropertyFlags: gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent, HeapIndex: 1},
	}
}

type Device struct {
	mu sync.Mutex

	memoryTypes     []gpu.MemoryType
	heapLimits      []int
	heapUsage       []int
	bufferAlignment int
	queues          []gpu.Queue
}

var _ gpu.Device = &Device{}

func NewDevice(config Config) *Device {
	if config.MemoryTypes == nil {
		config.MemoryTypes = DefaultMemoryTypes()
	}
	if config.TransferQueueCount == 0 {
		config.TransferQueueCount = 2
	}
	if config.BufferAlignment == 0 {
		config.BufferAlignment = defaultBufferAlignment
	}

	heapCount := 0
	for _, memoryType := range config.MemoryTypes {
		if memoryType.HeapIndex >= heapCount {
			heapCount = memoryType.HeapIndex + 1
		}
	}

	limits := make([]int, heapCount)
	copy(limits, config.HeapLimits)

	device := &Device{
		memoryTypes:     config.MemoryTypes,
		heapLimits:      limits,
		heapUsage:       make([]int, heapCount),
		bufferAlignment: config.BufferAlignment,
	}
	for i := 0; i < config.TransferQueueCount; i++ {
		device.queues = append(device.queues, &queue{device: device})
	}
	return device
}

func (d *Device) MemoryTypes() []gpu.MemoryType {
	return d.memoryTypes
}

func (d *Device) AllocateMemory(typeIndex int, size int) (gpu.DeviceMemory, error) {
	if typeIndex < 0 || typeIndex >= len(d.memoryTypes) {
		return nil, errors.Newf("gputest: memory type index %d out of range", typeIndex)
	}

	heap := d.memoryTypes[typeIndex].HeapIndex

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.heapLimits[heap] > 0 && d.heapUsage[heap]+size > d.heapLimits[heap] {
		return nil, errors.Wrapf(ErrOutOfMemory, "heap %d: %d in use, %d requested, %d limit",
			heap, d.heapUsage[heap], size, d.heapLimits[heap])
	}
	d.heapUsage[heap] += size

	// Backed by uint64s so the mapped pointer is 8-byte aligned.
	backing := make([]uint64, (size+7)/8)
	return &memory{
		device: d,
		heap:   heap,
		size:   size,
		data:   unsafe.Slice((*byte)(unsafe.Pointer(&backing[0])), size),
	}, nil
}

func (d *Device) CreateBuffer(size int, usage gpu.BufferUsageFlags) (gpu.Buffer, error) {
	return &buffer{device: d, size: size, usage: usage}, nil
}

func (d *Device) TransferQueues() []gpu.Queue {
	return d.queues
}

func (d *Device) CreateCommandPool(queue gpu.Queue) (gpu.CommandPool, error) {
	return &commandPool{}, nil
}

func (d *Device) WaitIdle() error {
	return nil
}

// HeapUsage reports the bytes currently allocated from the given heap.
func (d *Device) HeapUsage(heapIndex int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heapUsage[heapIndex]
}

// Contents returns the live bytes of a buffer created by this device, read
// through its bound memory. Panics if b is not a gputest buffer or has no
// memory bound.
func Contents(b gpu.Buffer) []byte {
	buf := b.(*buffer)
	if buf.memory == nil {
		panic("gputest: buffer has no memory bound")
	}
	return buf.memory.data[buf.offset : buf.offset+buf.size]
}

// Package vulkan adapts a vkngwrapper logical device to the gpu interfaces.
// The caller keeps ownership of instance, physical device, and logical
// device; this package only borrows them and never tears them down.
package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/extensions/v2/ext_memory_priority"

	"github.com/voxenlabs/voxen/gpu"
)

type Device struct {
	device   core1_0.Device
	options  CreateOptions
	types    []gpu.MemoryType
	transfer []gpu.Queue
}

// New wraps a logical device. transferQueues must all come from the queue
// family identified by transferQueueFamilyIndex and are handed to the
// meshing workers one each.
func New(
	device core1_0.Device,
	physicalDevice core1_0.PhysicalDevice,
	transferQueueFamilyIndex int,
	transferQueues []core1_0.Queue,
	options CreateOptions,
) (*Device, error) {
	options.fillDefaults()

	if len(transferQueues) == 0 {
		return nil, errors.New("at least one transfer queue is required")
	}

	memoryProperties := physicalDevice.MemoryProperties()
	types := make([]gpu.MemoryType, len(memoryProperties.MemoryTypes))
	for i, memoryType := range memoryProperties.MemoryTypes {
		types[i] = gpu.MemoryType{
			PropertyFlags: propertyFlagsFromVulkan(memoryType.PropertyFlags),
			HeapIndex:     memoryType.HeapIndex,
		}
	}

	d := &Device{
		device:  device,
		options: options,
		types:   types,
	}
	for _, q := range transferQueues {
		d.transfer = append(d.transfer, &queue{
			queue:       q,
			familyIndex: transferQueueFamilyIndex,
		})
	}
	return d, nil
}

var propertyFlagPairs = []struct {
	vulkan core1_0.MemoryPropertyFlags
	gpu    gpu.MemoryPropertyFlags
}{
	{core1_0.MemoryPropertyDeviceLocal, gpu.MemoryPropertyDeviceLocal},
	{core1_0.MemoryPropertyHostVisible, gpu.MemoryPropertyHostVisible},
	{core1_0.MemoryPropertyHostCoherent, gpu.MemoryPropertyHostCoherent},
	{core1_0.MemoryPropertyHostCached, gpu.MemoryPropertyHostCached},
}

func propertyFlagsFromVulkan(flags core1_0.MemoryPropertyFlags) gpu.MemoryPropertyFlags {
	var out gpu.MemoryPropertyFlags
	for _, pair := range propertyFlagPairs {
		if flags&pair.vulkan != 0 {
			out |= pair.gpu
		}
	}
	return out
}

func (d *Device) MemoryTypes() []gpu.MemoryType {
	return d.types
}

func (d *Device) AllocateMemory(typeIndex int, size int) (gpu.DeviceMemory, error) {
	var allocInfo core1_0.MemoryAllocateInfo
	allocInfo.MemoryTypeIndex = typeIndex
	allocInfo.AllocationSize = size

	if d.options.UseMemoryPriority {
		priority := d.options.StagingPriority
		if d.types[typeIndex].PropertyFlags.Contains(gpu.MemoryPropertyDeviceLocal) {
			priority = d.options.DeviceLocalPriority
		}
		var priorityInfo ext_memory_priority.MemoryPriorityAllocateInfo
		priorityInfo.Priority = priority
		priorityInfo.Next = allocInfo.Next
		allocInfo.Next = priorityInfo
	}

	vulkanMemory, _, err := d.device.AllocateMemory(d.options.AllocationCallbacks, allocInfo)
	if err != nil {
		return nil, err
	}
	return &deviceMemory{
		memory:    vulkanMemory,
		size:      size,
		callbacks: d.options.AllocationCallbacks,
	}, nil
}

func (d *Device) CreateBuffer(size int, usage gpu.BufferUsageFlags) (gpu.Buffer, error) {
	vulkanBuffer, _, err := d.device.CreateBuffer(d.options.AllocationCallbacks, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       bufferUsageToVulkan(usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, err
	}
	return &buffer{
		buffer:    vulkanBuffer,
		callbacks: d.options.AllocationCallbacks,
	}, nil
}

func (d *Device) TransferQueues() []gpu.Queue {
	return d.transfer
}

func (d *Device) CreateCommandPool(q gpu.Queue) (gpu.CommandPool, error) {
	vulkanQueue, ok := q.(*queue)
	if !ok {
		return nil, errors.New("queue does not belong to this device")
	}

	pool, _, err := d.device.CreateCommandPool(d.options.AllocationCallbacks, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: vulkanQueue.familyIndex,
	})
	if err != nil {
		return nil, err
	}
	return &commandPool{
		device:    d.device,
		pool:      pool,
		callbacks: d.options.AllocationCallbacks,
	}, nil
}

func (d *Device) WaitIdle() error {
	_, err := d.device.WaitIdle()
	return err
}

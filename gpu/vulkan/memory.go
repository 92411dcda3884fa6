package vulkan

import (
	"unsafe"

	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"

	"github.com/voxenlabs/voxen/gpu"
)

type deviceMemory struct {
	memory    core1_0.DeviceMemory
	size      int
	mapped    bool
	callbacks *driver.AllocationCallbacks
}

func (m *deviceMemory) Size() int {
	return m.size
}

func (m *deviceMemory) Map() (unsafe.Pointer, error) {
	if m.mapped {
		return nil, gpu.ErrMappingConflict
	}

	ptr, _, err := m.memory.Map(0, common.WholeSize, 0)
	if err != nil {
		return nil, err
	}
	m.mapped = true
	return ptr, nil
}

func (m *deviceMemory) Unmap() {
	if !m.mapped {
		return
	}
	m.memory.Unmap()
	m.mapped = false
}

func (m *deviceMemory) Free() {
	m.memory.Free(m.callbacks)
}

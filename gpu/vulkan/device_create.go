package vulkan

import (
	"github.com/vkngwrapper/core/v2/driver"
)

const (
	// DefaultDeviceLocalPriority is the ext_memory_priority value applied to
	// geometry memory. Chunk geometry is the main thing the application
	// renders, so it should be last out the door when the driver starts
	// evicting.
	DefaultDeviceLocalPriority float32 = 0.75
	// DefaultStagingPriority is the ext_memory_priority value applied to
	// host-visible memory. Staging contents are transient and cheap to
	// rebuild.
	DefaultStagingPriority float32 = 0.25
)

// CreateOptions configures a new Device wrapper.
type CreateOptions struct {
	// AllocationCallbacks is passed through to every create, allocate, and
	// destroy call. May be nil.
	AllocationCallbacks *driver.AllocationCallbacks

	// UseMemoryPriority chains ext_memory_priority info into every device
	// memory allocation. Only set this when the extension was enabled at
	// device creation.
	UseMemoryPriority bool
	// DeviceLocalPriority defaults to DefaultDeviceLocalPriority.
	DeviceLocalPriority float32
	// StagingPriority defaults to DefaultStagingPriority.
	StagingPriority float32
}

func (o *CreateOptions) fillDefaults() {
	if o.DeviceLocalPriority == 0 {
		o.DeviceLocalPriority = DefaultDeviceLocalPriority
	}
	if o.StagingPriority == 0 {
		o.StagingPriority = DefaultStagingPriority
	}
}

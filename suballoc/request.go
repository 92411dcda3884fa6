package suballoc

import "github.com/voxenlabs/voxen/gpu"

// AllocUsage selects the memory-property set an allocation must come from.
type AllocUsage uint32

const (
	// UsageStaging allocates host-visible, host-coherent memory. Chunks
	// backing staging allocations are persistently mapped.
	UsageStaging AllocUsage = iota
	// UsageDeviceLocal allocates device-local memory.
	UsageDeviceLocal
)

var allocUsageMapping = map[AllocUsage]string{
	UsageStaging:     "UsageStaging",
	UsageDeviceLocal: "UsageDeviceLocal",
}

func (u AllocUsage) String() string {
	return allocUsageMapping[u]
}

func (u AllocUsage) requiredProperties() gpu.MemoryPropertyFlags {
	if u == UsageStaging {
		return gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent
	}
	return gpu.MemoryPropertyDeviceLocal
}

// AllocRequest describes one suballocation.
type AllocRequest struct {
	Size int
	// Alignment must be a power of two. Zero is treated as 1.
	Alignment int
	// TypeBits is the raw memory-type bitmask constraint from the buffer's
	// memory requirements. Zero means unconstrained.
	TypeBits uint32
	Usage    AllocUsage
}

// NewAllocRequest builds a request from a buffer's memory requirements.
func NewAllocRequest(requirements gpu.MemoryRequirements, usage AllocUsage) AllocRequest {
	return AllocRequest{
		Size:      requirements.Size,
		Alignment: requirements.Alignment,
		TypeBits:  requirements.MemoryTypeBits,
		Usage:     usage,
	}
}

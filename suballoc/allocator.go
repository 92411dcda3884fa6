// Package suballoc implements the device-memory sub-allocator. One Pool
// exists per device memory type; each pool owns growable chunks of real
// device memory, and each chunk is subdivided into fine-grained,
// alignment-respecting blocks with first-fit splitting and free-time
// coalescing. The allocator is safe for concurrent use by many mesher
// threads.
package suballoc

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/voxenlabs/voxen/gpu"
	"github.com/voxenlabs/voxen/memutils"
)

type Allocator struct {
	logger *slog.Logger
	device gpu.Device
	// One pool per entry of the device's memory-type table, created up
	// front; pools allocate no device memory until first use.
	pools []*pool
}

var _ memutils.Validatable = &Allocator{}

// New builds an Allocator for the provided device.
func New(device gpu.Device, options CreateOptions) (*Allocator, error) {
	err := options.fillDefaults()
	if err != nil {
		return nil, err
	}

	memoryTypes := device.MemoryTypes()
	if len(memoryTypes) == 0 {
		return nil, errors.New("device exposes an empty memory-type table")
	}

	allocator := &Allocator{
		logger: options.Logger,
		device: device,
	}
	for typeIndex, memoryType := range memoryTypes {
		allocator.pools = append(allocator.pools,
			newPool(options.Logger, device, typeIndex, memoryType.PropertyFlags, options.InitialGrowthSize))
	}
	return allocator, nil
}

// FindMemoryTypeIndex resolves a property mask and type bitmask against the
// device's memory-type table: the first index whose raw bitmask bit is set
// and whose properties contain the mask wins. typeBits of zero means
// unconstrained.
func (a *Allocator) FindMemoryTypeIndex(typeBits uint32, properties gpu.MemoryPropertyFlags) (int, error) {
	if typeBits == 0 {
		typeBits = ^uint32(0)
	}

	for typeIndex, memoryType := range a.device.MemoryTypes() {
		if typeBits&(uint32(1)<<uint(typeIndex)) == 0 {
			continue
		}
		if memoryType.PropertyFlags.Contains(properties) {
			return typeIndex, nil
		}
	}
	return -1, errors.Wrapf(ErrNoSuitableMemoryType, "properties %s, type bits %#x", properties, typeBits)
}

// Alloc hands out one block satisfying the request. The returned handle is
// an ownership token: pass exactly it to Free, and do not touch it after
// Free returns.
func (a *Allocator) Alloc(request AllocRequest) (BlockHandle, error) {
	if request.Size <= 0 {
		return BlockHandle{}, errors.Newf("allocation size must be positive, not %d", request.Size)
	}
	alignment := request.Alignment
	if alignment == 0 {
		alignment = 1
	}
	if err := memutils.CheckPow2(alignment, "allocation alignment"); err != nil {
		return BlockHandle{}, err
	}

	typeIndex, err := a.FindMemoryTypeIndex(request.TypeBits, request.Usage.requiredProperties())
	if err != nil {
		return BlockHandle{}, err
	}

	handle, err := a.pools[typeIndex].allocate(request.Size, uint(alignment))
	if err != nil {
		return BlockHandle{}, errors.Wrapf(err, "allocating %d bytes from memory type %d for %s",
			request.Size, typeIndex, request.Usage)
	}
	return handle, nil
}

// Free returns a block to its pool. Freeing a handle twice, or a handle this
// allocator never issued, is a caller-contract violation; it is logged, not
// surfaced.
func (a *Allocator) Free(handle BlockHandle) {
	for _, p := range a.pools {
		if p.free(handle) {
			return
		}
	}
	a.logger.Error("free of a handle owned by no pool",
		slog.Int("offset", handle.offset),
		slog.Int("size", handle.size),
	)
}

// FreeAll tears down every pool, releasing all device memory. Full shutdown
// only; no block may be outstanding.
func (a *Allocator) FreeAll() {
	for _, p := range a.pools {
		p.destroy()
	}
}

// SumFreeSize returns the free byte count within the given memory type's
// chunks.
func (a *Allocator) SumFreeSize(typeIndex int) int {
	return a.pools[typeIndex].sumFreeSize()
}

// GrowthSize returns the given pool's current growth size.
func (a *Allocator) GrowthSize(typeIndex int) int {
	return a.pools[typeIndex].currentGrowthSize()
}

// AddDetailedStatistics sums every pool's allocation statistics into stats.
func (a *Allocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	for _, p := range a.pools {
		p.addDetailedStatistics(stats)
	}
}

// PoolStatistics collects detailed statistics for a single memory type.
func (a *Allocator) PoolStatistics(typeIndex int) memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()
	a.pools[typeIndex].addDetailedStatistics(&stats)
	return stats
}

// Validate runs internal consistency checks over every pool: blocks must
// partition their chunk with no gaps or overlaps, ordered by offset, with
// adjacent free blocks coalesced.
func (a *Allocator) Validate() error {
	for _, p := range a.pools {
		if err := p.validate(); err != nil {
			return err
		}
	}
	return nil
}

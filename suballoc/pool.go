package suballoc

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/voxenlabs/voxen/gpu"
	"github.com/voxenlabs/voxen/memutils"
)

// pool manages every chunk of one device memory type.
//
// Locking: mutex guards the chunk list and all block metadata, and is held
// for write across the whole scan-and-mutate of an allocation. An earlier
// revision scanned under a read lock and upgraded to mutate, which let two
// threads claim the same free block between the phases; the single write
// lock closes that window. growthMutex serializes growth only, so the
// expensive device allocation never blocks allocations that fit existing
// chunks.
type pool struct {
	logger      *slog.Logger
	device      gpu.Device
	typeIndex   int
	hostVisible bool

	mutex  sync.RWMutex
	chunks []*chunk
	// Incremented under mutex whenever a chunk is added; lets a thread that
	// waited on growthMutex detect that another thread already grew the pool.
	growthGeneration uint64

	growthMutex sync.Mutex
	// growthSize only grows, never shrinks, and is always a power of two at
	// least as large as the largest request seen so far. Guarded by mutex.
	growthSize int
}

func newPool(logger *slog.Logger, device gpu.Device, typeIndex int, properties gpu.MemoryPropertyFlags, initialGrowthSize int) *pool {
	return &pool{
		logger:      logger.With(slog.Int("memoryType", typeIndex)),
		device:      device,
		typeIndex:   typeIndex,
		hostVisible: properties.Contains(gpu.MemoryPropertyHostVisible),
		growthSize:  initialGrowthSize,
	}
}

func (p *pool) allocate(size int, alignment uint) (BlockHandle, error) {
	for {
		p.mutex.Lock()
		if handle, ok := p.tryAllocLocked(size, alignment); ok {
			p.mutex.Unlock()
			return handle, nil
		}
		generation := p.growthGeneration
		p.mutex.Unlock()

		// No chunk has room. Take the growth lock; if somebody else grew the
		// pool while we waited for it, retry the scan instead of growing
		// again.
		p.growthMutex.Lock()
		p.mutex.RLock()
		grownMeanwhile := p.growthGeneration != generation
		p.mutex.RUnlock()
		if grownMeanwhile {
			p.growthMutex.Unlock()
			continue
		}

		handle, err := p.growAndAllocate(size, alignment)
		p.growthMutex.Unlock()
		if err != nil {
			return BlockHandle{}, err
		}
		return handle, nil
	}
}

// growAndAllocate is called with growthMutex held. It allocates one new
// device-memory chunk sized by the strict-growth rule and satisfies the
// request from it.
func (p *pool) growAndAllocate(size int, alignment uint) (BlockHandle, error) {
	p.mutex.RLock()
	currentGrowth := p.growthSize
	p.mutex.RUnlock()

	newSize := memutils.NextPow2(size)
	if newSize < currentGrowth {
		newSize = currentGrowth
	}
	if newSize == currentGrowth {
		// Strict growth: a request that fits the previous growth size still
		// doubles it, so repeated small overflows do not allocate a parade
		// of same-sized chunks.
		newSize *= 2
	}

	memory, err := p.device.AllocateMemory(p.typeIndex, newSize)
	if err != nil {
		return BlockHandle{}, errors.Mark(err, ErrOutOfDeviceMemory)
	}

	var mapped unsafe.Pointer
	if p.hostVisible {
		mapped, err = memory.Map()
		if err != nil {
			memory.Free()
			return BlockHandle{}, err
		}
	}

	p.logger.Debug("pool growth",
		slog.Int("chunkSize", newSize),
		slog.Int("previousGrowthSize", currentGrowth),
	)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.growthSize = newSize
	p.chunks = append(p.chunks, newChunk(memory, newSize, mapped))
	p.growthGeneration++

	handle, ok := p.tryAllocLocked(size, alignment)
	if !ok {
		// A fresh chunk of NextPow2(size) always fits size at offset 0.
		panic("suballoc: new chunk cannot satisfy the allocation that grew it")
	}
	return handle, nil
}

// tryAllocLocked scans chunks in order for the first free block that fits.
// First-fit, not best-fit: deterministic and O(chunks x blocks), which is
// fine while block counts per chunk stay small. Caller holds mutex for
// write.
func (p *pool) tryAllocLocked(size int, alignment uint) (BlockHandle, bool) {
	for _, c := range p.chunks {
		offset, ok := c.tryAlloc(size, alignment)
		if !ok {
			continue
		}

		handle := BlockHandle{
			memory: c.memory,
			offset: offset,
			size:   size,
		}
		if c.mapped != nil {
			handle.ptr = unsafe.Add(c.mapped, offset)
		}
		memutils.DebugValidate(c)
		return handle, true
	}
	return BlockHandle{}, false
}

// free releases the block identified by the handle if one of this pool's
// chunks owns its memory. Reports whether the owning chunk was found here.
func (p *pool) free(handle BlockHandle) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, c := range p.chunks {
		if c.memory != handle.memory {
			continue
		}
		if !c.freeBlock(handle.offset) {
			p.logger.Error("free of a block that is not live: double free or corrupted handle",
				slog.Int("offset", handle.offset),
				slog.Int("size", handle.size),
			)
		}
		memutils.DebugValidate(c)
		return true
	}
	return false
}

func (p *pool) sumFreeSize() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	total := 0
	for _, c := range p.chunks {
		total += c.sumFreeSize()
	}
	return total
}

func (p *pool) currentGrowthSize() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.growthSize
}

func (p *pool) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	for _, c := range p.chunks {
		c.addDetailedStatistics(stats)
	}
}

func (p *pool) validate() error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if err := memutils.CheckPow2(p.growthSize, "pool growth size"); err != nil {
		return err
	}
	for i, c := range p.chunks {
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "chunk %d of memory type %d", i, p.typeIndex)
		}
	}
	return nil
}

// destroy frees every chunk's device memory. Shutdown only; no block may be
// outstanding.
func (p *pool) destroy() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, c := range p.chunks {
		if !c.isEmpty() {
			p.logger.Warn("pool destroyed with outstanding allocations",
				slog.Int("chunkSize", c.size),
			)
		}
		c.destroy()
	}
	p.chunks = nil
}

package suballoc

import (
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/voxenlabs/voxen/gpu"
	"github.com/voxenlabs/voxen/memutils"
)

// block is a sub-range of a chunk, either free or in use. Blocks are
// created, split, and merged only by their owning chunk.
type block struct {
	offset int
	size   int
	free   bool
}

// chunk owns one real device-memory allocation subdivided into blocks.
// Invariant: blocks partition [0, size) with no gaps or overlaps, ordered by
// offset, and no two adjacent blocks are both free. Access is guarded by the
// owning pool's lock.
type chunk struct {
	memory gpu.DeviceMemory
	size   int
	blocks []block
	// Persistent host mapping; nil unless the pool is host-visible.
	mapped unsafe.Pointer
}

func newChunk(memory gpu.DeviceMemory, size int, mapped unsafe.Pointer) *chunk {
	return &chunk{
		memory: memory,
		size:   size,
		blocks: []block{{offset: 0, size: size, free: true}},
		mapped: mapped,
	}
}

// tryAlloc finds the first free block that can hold size bytes at the given
// alignment and splits it in place. It emits up to three blocks where one
// was: [padding, free]? [size, in use] [leftover, free]?.
func (c *chunk) tryAlloc(size int, alignment uint) (int, bool) {
	memutils.DebugCheckPow2(alignment, "allocation alignment")

	for i := 0; i < len(c.blocks); i++ {
		candidate := c.blocks[i]
		if !candidate.free {
			continue
		}

		alignedOffset := memutils.AlignUp(candidate.offset, alignment)
		padding := alignedOffset - candidate.offset
		if candidate.size-padding < size {
			continue
		}

		replacement := make([]block, 0, 3)
		if padding > 0 {
			replacement = append(replacement, block{offset: candidate.offset, size: padding, free: true})
		}
		replacement = append(replacement, block{offset: alignedOffset, size: size, free: false})
		if after := candidate.size - padding - size; after > 0 {
			replacement = append(replacement, block{offset: alignedOffset + size, size: after, free: true})
		}

		c.blocks = append(c.blocks[:i], append(replacement, c.blocks[i+1:]...)...)
		return alignedOffset, true
	}
	return 0, false
}

// freeBlock releases the in-use block at the given offset and coalesces:
// merge forward into the next block if free, then merge backward into the
// previous one, leaving a single free block spanning the whole range.
func (c *chunk) freeBlock(offset int) bool {
	index := -1
	for i := 0; i < len(c.blocks); i++ {
		if c.blocks[i].offset == offset && !c.blocks[i].free {
			index = i
			break
		}
	}
	if index < 0 {
		return false
	}

	c.blocks[index].free = true

	if index+1 < len(c.blocks) && c.blocks[index+1].free {
		c.blocks[index].size += c.blocks[index+1].size
		c.blocks = append(c.blocks[:index+1], c.blocks[index+2:]...)
	}
	if index > 0 && c.blocks[index-1].free {
		c.blocks[index-1].size += c.blocks[index].size
		c.blocks = append(c.blocks[:index], c.blocks[index+1:]...)
	}
	return true
}

func (c *chunk) sumFreeSize() int {
	total := 0
	for i := 0; i < len(c.blocks); i++ {
		if c.blocks[i].free {
			total += c.blocks[i].size
		}
	}
	return total
}

func (c *chunk) isEmpty() bool {
	return len(c.blocks) == 1 && c.blocks[0].free
}

func (c *chunk) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.ChunkCount++
	stats.ChunkBytes += c.size

	for i := 0; i < len(c.blocks); i++ {
		if c.blocks[i].free {
			stats.AddUnusedRange(c.blocks[i].size)
		} else {
			stats.AddAllocation(c.blocks[i].size)
		}
	}
}

func (c *chunk) Validate() error {
	if len(c.blocks) == 0 {
		return errors.New("chunk has no blocks")
	}

	expectedOffset := 0
	for i := 0; i < len(c.blocks); i++ {
		current := c.blocks[i]
		if current.offset != expectedOffset {
			return errors.Newf("block %d begins at %d, expected %d: blocks must partition the chunk", i, current.offset, expectedOffset)
		}
		if current.size <= 0 {
			return errors.Newf("block %d has non-positive size %d", i, current.size)
		}
		if i > 0 && current.free && c.blocks[i-1].free {
			return errors.Newf("blocks %d and %d are both free: adjacent free blocks must be coalesced", i-1, i)
		}
		expectedOffset += current.size
	}
	if expectedOffset != c.size {
		return errors.Newf("blocks cover %d bytes of a %d-byte chunk", expectedOffset, c.size)
	}
	return nil
}

// destroy releases the chunk's device memory. Only the pool teardown path
// calls this, and never while a block is outstanding.
func (c *chunk) destroy() {
	if c.mapped != nil {
		c.memory.Unmap()
		c.mapped = nil
	}
	c.memory.Free()
	c.blocks = nil
}

package world

import "sync"

// Handle is a weak reference to a chunk: a slot index plus the generation
// the slot had when the chunk was inserted. Resolving checks the generation
// still matches, so a handle to a removed chunk yields absent rather than a
// dangling pointer. The zero Handle never resolves.
type Handle struct {
	index      uint32
	generation uint32
}

type tableSlot struct {
	generation uint32
	chunk      *Chunk
}

// Table is a stable-index arena of chunks. It is the strong owner; every
// Handle handed to the meshing pipeline or the render set is weak.
type Table struct {
	mu    sync.RWMutex
	slots []tableSlot
	free  []uint32
}

func NewTable() *Table {
	return &Table{}
}

// Insert stores the chunk and returns its weak handle.
func (t *Table) Insert(c *Chunk) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		// Generations start at 1 so the zero Handle stays dead forever.
		t.slots = append(t.slots, tableSlot{generation: 1})
		index = uint32(len(t.slots) - 1)
	}

	t.slots[index].chunk = c
	return Handle{index: index, generation: t.slots[index].generation}
}

// Resolve upgrades a weak handle. The second return is false if the chunk
// was removed (or the handle was never valid).
func (t *Table) Resolve(h Handle) (*Chunk, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(h.index) >= len(t.slots) {
		return nil, false
	}
	slot := t.slots[h.index]
	if slot.generation != h.generation || slot.chunk == nil {
		return nil, false
	}
	return slot.chunk, true
}

// Live reports whether the handle still resolves. Workers re-check this
// after taking the chunk lock so a chunk removed between resolve and lock is
// skipped instead of re-meshed into the void.
func (t *Table) Live(h Handle) bool {
	_, ok := t.Resolve(h)
	return ok
}

// Remove retires the handle's slot, bumping its generation so every
// outstanding handle to this chunk goes dead. Returns the chunk for
// teardown.
func (t *Table) Remove(h Handle) (*Chunk, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(h.index) >= len(t.slots) {
		return nil, false
	}
	slot := &t.slots[h.index]
	if slot.generation != h.generation || slot.chunk == nil {
		return nil, false
	}

	c := slot.chunk
	slot.chunk = nil
	slot.generation++
	t.free = append(t.free, h.index)
	return c, true
}

// Len returns the number of live chunks.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots) - len(t.free)
}

package suballoc

import "github.com/cockroachdb/errors"

var (
	// ErrNoSuitableMemoryType indicates that no entry of the device's
	// memory-type table satisfies both the request's property mask and its
	// type bitmask. This is a configuration or capability problem and is not
	// recoverable for that allocation.
	ErrNoSuitableMemoryType = errors.New("no suitable memory type for allocation request")
	// ErrOutOfDeviceMemory indicates that the underlying device allocation
	// failed. The allocator has no fallback; the failure is surfaced to the
	// caller, which is expected to abort the responsible job.
	ErrOutOfDeviceMemory = errors.New("out of device memory")
)

package gpu

import "github.com/cockroachdb/errors"

// ErrMappingConflict is returned from DeviceMemory.Map when the allocation's
// mapped range is accessed while already mapped. This is a caller-contract
// violation and must be prevented by construction, not recovered from.
var ErrMappingConflict = errors.New("device memory is already mapped")

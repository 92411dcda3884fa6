package suballoc

import (
	"golang.org/x/exp/slog"

	"github.com/voxenlabs/voxen/memutils"
)

// DefaultGrowthSize is the initial chunk growth size for every pool when
// CreateOptions does not override it.
const DefaultGrowthSize = 1024 * 1024

// CreateOptions configures a new Allocator.
type CreateOptions struct {
	// Logger receives debug tracing and caller-contract violations.
	// Defaults to slog.Default().
	Logger *slog.Logger
	// InitialGrowthSize is the starting growth size of each pool, in bytes.
	// Must be a power of two. Defaults to DefaultGrowthSize.
	InitialGrowthSize int
}

func (o *CreateOptions) fillDefaults() error {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.InitialGrowthSize == 0 {
		o.InitialGrowthSize = DefaultGrowthSize
	}
	return memutils.CheckPow2(o.InitialGrowthSize, "CreateOptions.InitialGrowthSize")
}

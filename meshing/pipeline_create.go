package meshing

import (
	"runtime"

	"golang.org/x/exp/slog"

	"github.com/voxenlabs/voxen/gpu"
)

// CreateOptions configures a new Pipeline.
type CreateOptions struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// WorkerCount caps the meshing worker threads. Zero selects
	// DefaultWorkerCount. It is always clamped to the number of
	// transfer-capable queues, since each worker owns one.
	WorkerCount int
}

func (o *CreateOptions) fillDefaults(device gpu.Device) {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.WorkerCount == 0 {
		o.WorkerCount = DefaultWorkerCount()
	}
	if queues := len(device.TransferQueues()); o.WorkerCount > queues {
		o.WorkerCount = queues
	}
}

// DefaultWorkerCount derives the meshing thread count from available
// parallelism, leaving one core for the render thread on machines with more
// than four.
func DefaultWorkerCount() int {
	parallelism := runtime.NumCPU()
	if parallelism > 4 {
		parallelism--
	}
	return parallelism
}

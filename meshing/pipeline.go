// Package meshing runs the concurrent meshing pipeline: a fixed pool of
// worker threads pulls chunk handles from an intake queue, meshes each
// chunk's voxel grid into a per-worker staging buffer, sub-allocates a
// device-local geometry buffer, uploads through a dedicated transfer queue,
// and publishes the handle on a completion queue for the single-threaded
// consumer.
package meshing

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/voxenlabs/voxen/gpu"
	"github.com/voxenlabs/voxen/suballoc"
	"github.com/voxenlabs/voxen/world"
)

// Staging layout: one region of worst-case vertices followed by one region
// of worst-case indices. Each worker owns one persistently mapped staging
// buffer of this size.
const (
	StagingVertexBytes = world.MaxVertices * world.VertexSize
	StagingIndexBytes  = world.MaxIndices * world.IndexSize
	StagingBufferBytes = StagingVertexBytes + StagingIndexBytes
)

type Pipeline struct {
	logger    *slog.Logger
	device    gpu.Device
	allocator *suballoc.Allocator
	table     *world.Table

	intake      *handleQueue
	completions *handleQueue

	wg sync.WaitGroup
}

// New starts the worker threads. Each worker takes exclusive ownership of
// one of the device's transfer queues.
func New(device gpu.Device, allocator *suballoc.Allocator, table *world.Table, options CreateOptions) (*Pipeline, error) {
	options.fillDefaults(device)
	if options.WorkerCount <= 0 {
		return nil, errors.New("device exposes no transfer-capable queues")
	}

	p := &Pipeline{
		logger:      options.Logger,
		device:      device,
		allocator:   allocator,
		table:       table,
		intake:      newHandleQueue(),
		completions: newHandleQueue(),
	}

	p.logger.Info("starting meshing workers", slog.Int("count", options.WorkerCount))
	queues := device.TransferQueues()
	for i := 0; i < options.WorkerCount; i++ {
		p.wg.Add(1)
		go p.workerMain(i, queues[i])
	}
	return p, nil
}

// Mesh enqueues a chunk for meshing. The handle is weak: a chunk destroyed
// while queued or in flight is skipped silently. The streamer must submit
// each chunk at most once before its completion.
func (p *Pipeline) Mesh(h world.Handle) {
	if !p.intake.Push(h) {
		p.logger.Warn("chunk submitted after pipeline shutdown")
	}
}

// TryCompleted drains one completed chunk handle without blocking. The
// chunk's geometry is fully uploaded by the time its handle appears here.
func (p *Pipeline) TryCompleted() (world.Handle, bool) {
	return p.completions.TryPop()
}

// ExitAll closes the intake queue, waking every blocked worker, and joins
// them. Jobs already being meshed or uploaded finish naturally; jobs still
// queued are dropped. Completions may still be drained afterwards.
func (p *Pipeline) ExitAll() {
	p.intake.Close()
	p.wg.Wait()
}

func (p *Pipeline) workerMain(index int, queue gpu.Queue) {
	defer p.wg.Done()

	logger := p.logger.With(slog.Int("worker", index))

	staging, err := suballoc.NewBuffer(p.device, p.allocator, StagingBufferBytes,
		gpu.BufferUsageTransferSrc, suballoc.UsageStaging)
	if err != nil {
		logger.Error("worker failed to allocate its staging buffer", slog.Any("error", err))
		return
	}
	defer staging.Destroy()

	commandPool, err := p.device.CreateCommandPool(queue)
	if err != nil {
		logger.Error("worker failed to create its command pool", slog.Any("error", err))
		return
	}
	defer commandPool.Destroy()

	commandBuffer, err := commandPool.Allocate()
	if err != nil {
		logger.Error("worker failed to allocate its command buffer", slog.Any("error", err))
		return
	}

	// The staging mapping carved into the mesher's output slices.
	vertices := unsafe.Slice((*world.Vertex)(staging.Ptr()), world.MaxVertices)
	indices := unsafe.Slice((*uint32)(unsafe.Add(staging.Ptr(), StagingVertexBytes)), world.MaxIndices)

	logger.Debug("meshing worker started")
	for {
		h, ok := p.intake.Pop()
		if !ok {
			break
		}

		c, ok := p.table.Resolve(h)
		if !ok {
			// Chunk was unloaded while the job sat in the queue.
			continue
		}

		c.Lock()
		if !p.table.Live(h) {
			// Unloaded between resolve and lock; the streamer owns teardown.
			c.Unlock()
			continue
		}

		err := p.meshAndUpload(c, queue, commandBuffer, staging, vertices, indices)
		c.Unlock()

		if err != nil {
			// One failed chunk must not take the worker down with it. The
			// chunk stays un-meshed; it is never retried automatically.
			logger.Error("meshing job failed",
				slog.String("chunk", c.Pos().String()),
				slog.Any("error", err),
			)
			continue
		}
		p.completions.Push(h)
	}
	logger.Debug("meshing worker exited")
}

// meshAndUpload runs with the chunk lock held. On success the chunk carries
// its uploaded geometry; the completion is only published after the transfer
// queue has gone idle, which is the per-chunk ordering contract.
func (p *Pipeline) meshAndUpload(
	c *world.Chunk,
	queue gpu.Queue,
	commandBuffer gpu.CommandBuffer,
	staging *suballoc.Buffer,
	vertices []world.Vertex,
	indices []uint32,
) error {
	vertexCount, indexCount, err := c.Mesh(vertices, indices, world.MeshOptions{})
	if err != nil {
		return err
	}
	if vertexCount == 0 {
		// Nothing visible; publish the empty result without touching the
		// device.
		c.SetGeometry(nil, 0, 0)
		return nil
	}

	vertexBytes := vertexCount * world.VertexSize
	indexBytes := indexCount * world.IndexSize

	// Sized to the real output, not the worst case.
	geometry, err := suballoc.NewBuffer(p.device, p.allocator, vertexBytes+indexBytes,
		gpu.BufferUsageVertexBuffer|gpu.BufferUsageIndexBuffer|gpu.BufferUsageTransferDst,
		suballoc.UsageDeviceLocal)
	if err != nil {
		return err
	}

	err = commandBuffer.Begin()
	if err != nil {
		geometry.Destroy()
		return err
	}
	commandBuffer.CopyBuffer(staging.Raw(), geometry.Raw(), []gpu.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: vertexBytes},
		{SrcOffset: StagingVertexBytes, DstOffset: vertexBytes, Size: indexBytes},
	})
	err = commandBuffer.End()
	if err != nil {
		geometry.Destroy()
		return err
	}

	err = queue.Submit(commandBuffer)
	if err != nil {
		geometry.Destroy()
		return err
	}
	// Blocking until the queue drains trades transfer throughput for a
	// simple ordering guarantee: once the completion is visible, the
	// geometry is resident.
	err = queue.WaitIdle()
	if err != nil {
		geometry.Destroy()
		return err
	}

	c.SetGeometry(geometry, vertexCount, indexCount)
	return nil
}

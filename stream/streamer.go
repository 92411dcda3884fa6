// Package stream decides which chunk positions must exist around the
// viewer, creates and destroys chunk entities, and feeds new chunks into the
// meshing pipeline. It owns the strong side of every chunk reference; the
// pipeline and the render set only ever see weak handles.
package stream

import (
	"math"

	"github.com/dolthub/swiss"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/slog"

	"github.com/voxenlabs/voxen/gpu"
	"github.com/voxenlabs/voxen/meshing"
	"github.com/voxenlabs/voxen/world"
)

type Streamer struct {
	logger   *slog.Logger
	device   gpu.Device
	table    *world.Table
	pipeline *meshing.Pipeline

	renderDistance int
	hysteresis     int
	minY, maxY     int32
	terrain        world.TerrainFunc

	// Every loaded chunk position, whether or not it has geometry yet.
	chunks *swiss.Map[world.ChunkPos, world.Handle]
	// Chunks whose geometry upload has completed.
	renderSet map[world.ChunkPos]world.Handle
}

func New(device gpu.Device, table *world.Table, pipeline *meshing.Pipeline, options CreateOptions) *Streamer {
	options.fillDefaults()

	return &Streamer{
		logger:         options.Logger,
		device:         device,
		table:          table,
		pipeline:       pipeline,
		renderDistance: options.RenderDistance,
		hysteresis:     options.Hysteresis,
		minY:           options.MinY,
		maxY:           options.MaxY,
		terrain:        options.Terrain,
		chunks:         swiss.NewMap[world.ChunkPos, world.Handle](64),
		renderSet:      make(map[world.ChunkPos]world.Handle),
	}
}

func viewerChunk(viewer mgl32.Vec3) world.ChunkPos {
	return world.ChunkPos{
		X: int32(math.Floor(float64(viewer.X()) / world.ChunkSize)),
		Y: int32(math.Floor(float64(viewer.Y()) / world.ChunkSize)),
		Z: int32(math.Floor(float64(viewer.Z()) / world.ChunkSize)),
	}
}

func axisDistance(a, b int32) int32 {
	if a > b {
		return a - b
	}
	return b - a
}

// Tick runs one streaming step: unload chunks outside the render distance
// plus hysteresis, load and submit chunks newly inside the render distance,
// and drain the pipeline's completions into the render set.
func (s *Streamer) Tick(viewer mgl32.Vec3) {
	center := viewerChunk(viewer)

	s.unloadDistant(center)
	s.loadMissing(center)
	s.drainCompletions()
}

func (s *Streamer) unloadDistant(center world.ChunkPos) {
	limit := int32(s.renderDistance + s.hysteresis)

	var toDestroy []world.ChunkPos
	s.chunks.Iter(func(pos world.ChunkPos, _ world.Handle) bool {
		if axisDistance(pos.X, center.X) > limit ||
			axisDistance(pos.Y, center.Y) > limit ||
			axisDistance(pos.Z, center.Z) > limit {
			toDestroy = append(toDestroy, pos)
		}
		return false
	})
	if len(toDestroy) == 0 {
		return
	}

	// In-flight draws may still reference the geometry buffers about to be
	// freed.
	err := s.device.WaitIdle()
	if err != nil {
		s.logger.Error("device wait-idle before chunk unload failed", slog.Any("error", err))
		return
	}

	for _, pos := range toDestroy {
		h, ok := s.chunks.Get(pos)
		if !ok {
			continue
		}
		s.chunks.Delete(pos)
		delete(s.renderSet, pos)

		c, ok := s.table.Remove(h)
		if !ok {
			continue
		}
		// Taking the chunk lock waits out a worker that resolved the handle
		// before we retired it; afterwards any geometry it produced is ours
		// to release.
		c.Lock()
		c.ReleaseGeometry()
		c.Unlock()
		s.logger.Debug("unloaded chunk", slog.String("pos", pos.String()))
	}
}

func (s *Streamer) loadMissing(center world.ChunkPos) {
	distance := int32(s.renderDistance)

	for x := center.X - distance; x < center.X+distance; x++ {
		for y := center.Y - distance; y < center.Y+distance; y++ {
			if y < s.minY || y > s.maxY {
				continue
			}
			for z := center.Z - distance; z < center.Z+distance; z++ {
				pos := world.ChunkPos{X: x, Y: y, Z: z}
				if s.chunks.Has(pos) {
					continue
				}

				c := world.NewChunk(pos, s.terrain)
				h := s.table.Insert(c)
				s.chunks.Put(pos, h)
				// Submitted exactly once, here; duplicate submission of a
				// chunk before its completion is prevented by construction.
				s.pipeline.Mesh(h)
			}
		}
	}
}

func (s *Streamer) drainCompletions() {
	for {
		h, ok := s.pipeline.TryCompleted()
		if !ok {
			return
		}
		c, ok := s.table.Resolve(h)
		if !ok {
			// Unloaded while its completion sat in the queue.
			continue
		}
		if _, indexCount := c.Counts(); indexCount == 0 {
			// Meshed to nothing; loaded but never rendered.
			continue
		}
		s.renderSet[c.Pos()] = h
	}
}

// Visible calls fn for every chunk with uploaded geometry. Handles that died
// since completion are pruned as they are encountered.
func (s *Streamer) Visible(fn func(*world.Chunk)) {
	for pos, h := range s.renderSet {
		c, ok := s.table.Resolve(h)
		if !ok {
			delete(s.renderSet, pos)
			continue
		}
		fn(c)
	}
}

// ChunkCount returns the number of loaded chunks.
func (s *Streamer) ChunkCount() int {
	return s.chunks.Count()
}

// RenderSetSize returns the number of chunks currently renderable.
func (s *Streamer) RenderSetSize() int {
	return len(s.renderSet)
}

package stream

import (
	"golang.org/x/exp/slog"

	"github.com/voxenlabs/voxen/world"
)

const (
	// DefaultRenderDistance is the loaded-chunk radius, in chunks.
	DefaultRenderDistance = 10
	// DefaultHysteresis is how many chunks past the render distance a chunk
	// may drift before it is unloaded, so chunks on the boundary do not
	// thrash.
	DefaultHysteresis = 2
)

// CreateOptions configures a new Streamer.
type CreateOptions struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// RenderDistance defaults to DefaultRenderDistance.
	RenderDistance int
	// Hysteresis defaults to DefaultHysteresis.
	Hysteresis int
	// MinY and MaxY clamp the vertical band of chunk coordinates that are
	// ever loaded. Defaults to [0, 10].
	MinY, MaxY int32
	// Terrain populates new chunks. Defaults to world.DiagonalTerrain.
	Terrain world.TerrainFunc
}

func (o *CreateOptions) fillDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.RenderDistance == 0 {
		o.RenderDistance = DefaultRenderDistance
	}
	if o.Hysteresis == 0 {
		o.Hysteresis = DefaultHysteresis
	}
	if o.MinY == 0 && o.MaxY == 0 {
		o.MaxY = 10
	}
	if o.Terrain == nil {
		o.Terrain = world.DiagonalTerrain
	}
}

package stream

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/voxenlabs/voxen/gpu/gputest"
	"github.com/voxenlabs/voxen/meshing"
	"github.com/voxenlabs/voxen/suballoc"
	"github.com/voxenlabs/voxen/world"
)

func testStreamer(t *testing.T, options CreateOptions) (*suballoc.Allocator, *meshing.Pipeline, *Streamer) {
	t.Helper()

	device := gputest.NewDevice(gputest.Config{})
	allocator, err := suballoc.New(device, suballoc.CreateOptions{})
	require.NoError(t, err)

	table := world.NewTable()
	pipeline, err := meshing.New(device, allocator, table, meshing.CreateOptions{WorkerCount: 1})
	require.NoError(t, err)

	return allocator, pipeline, New(device, table, pipeline, options)
}

// tickUntilRendered ticks the streamer until the render set reaches the
// expected size or the deadline passes.
func tickUntilRendered(t *testing.T, streamer *Streamer, viewer mgl32.Vec3, expected int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		streamer.Tick(viewer)
		if streamer.RenderSetSize() == expected {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("render set stuck at %d, want %d", streamer.RenderSetSize(), expected)
}

func TestStreamerLoadsAroundViewer(t *testing.T) {
	_, pipeline, streamer := testStreamer(t, CreateOptions{
		RenderDistance: 1,
		Hysteresis:     1,
	})
	defer pipeline.ExitAll()

	// Render distance 1 with the vertical band clamped to y=0 loads the
	// 2x1x2 block of chunks around the viewer.
	streamer.Tick(mgl32.Vec3{0, 0, 0})
	require.Equal(t, 4, streamer.ChunkCount())

	// Re-ticking in place must not load duplicates or resubmit.
	streamer.Tick(mgl32.Vec3{0, 0, 0})
	streamer.Tick(mgl32.Vec3{8, 0, 8})
	require.Equal(t, 4, streamer.ChunkCount())
}

func TestStreamerRendersCompletedChunks(t *testing.T) {
	_, pipeline, streamer := testStreamer(t, CreateOptions{
		RenderDistance: 1,
		Hysteresis:     1,
	})
	defer pipeline.ExitAll()

	tickUntilRendered(t, streamer, mgl32.Vec3{0, 0, 0}, 4)

	seen := map[world.ChunkPos]bool{}
	streamer.Visible(func(c *world.Chunk) {
		_, indexCount := c.Counts()
		require.Positive(t, indexCount)
		require.NotNil(t, c.Geometry())
		seen[c.Pos()] = true
	})
	require.Len(t, seen, 4)
	for x := int32(-1); x < 1; x++ {
		for z := int32(-1); z < 1; z++ {
			require.True(t, seen[world.ChunkPos{X: x, Y: 0, Z: z}])
		}
	}
}

func TestStreamerUnloadsBehindViewer(t *testing.T) {
	_, pipeline, streamer := testStreamer(t, CreateOptions{
		RenderDistance: 1,
		Hysteresis:     1,
	})
	defer pipeline.ExitAll()

	tickUntilRendered(t, streamer, mgl32.Vec3{0, 0, 0}, 4)

	// One chunk over is within the hysteresis band; nothing unloads yet, the
	// far column loads.
	streamer.Tick(mgl32.Vec3{world.ChunkSize, 0, 0})
	require.Equal(t, 6, streamer.ChunkCount())

	// Far away, every old chunk is beyond distance plus hysteresis.
	tickUntilRendered(t, streamer, mgl32.Vec3{20 * world.ChunkSize, 0, 0}, 4)
	require.Equal(t, 4, streamer.ChunkCount())

	streamer.Visible(func(c *world.Chunk) {
		require.GreaterOrEqual(t, c.Pos().X, int32(19))
	})
}

func TestStreamerReleasesGeometryOnUnload(t *testing.T) {
	allocator, pipeline, streamer := testStreamer(t, CreateOptions{
		RenderDistance: 1,
		Hysteresis:     1,
	})
	defer pipeline.ExitAll()

	tickUntilRendered(t, streamer, mgl32.Vec3{0, 0, 0}, 4)
	require.Positive(t, allocator.PoolStatistics(0).AllocationCount)

	// A viewer high above the vertical band keeps no chunks loaded, so every
	// geometry buffer must come back to the allocator.
	streamer.Tick(mgl32.Vec3{0, 1000, 0})
	require.Equal(t, 0, streamer.ChunkCount())
	require.Equal(t, 0, streamer.RenderSetSize())
	require.Equal(t, 0, allocator.PoolStatistics(0).AllocationCount)
}

func TestStreamerDefaults(t *testing.T) {
	var options CreateOptions
	options.fillDefaults()

	require.Equal(t, DefaultRenderDistance, options.RenderDistance)
	require.Equal(t, DefaultHysteresis, options.Hysteresis)
	require.Equal(t, int32(0), options.MinY)
	require.Equal(t, int32(10), options.MaxY)
	require.NotNil(t, options.Terrain)
}

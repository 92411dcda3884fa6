package meshing

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/voxenlabs/voxen/gpu/gputest"
	"github.com/voxenlabs/voxen/suballoc"
	"github.com/voxenlabs/voxen/world"
)

func testPipeline(t *testing.T, config gputest.Config) (*gputest.Device, *suballoc.Allocator, *world.Table, *Pipeline) {
	t.Helper()

	device := gputest.NewDevice(config)
	allocator, err := suballoc.New(device, suballoc.CreateOptions{})
	require.NoError(t, err)

	table := world.NewTable()
	pipeline, err := New(device, allocator, table, CreateOptions{WorkerCount: 1})
	require.NoError(t, err)
	return device, allocator, table, pipeline
}

func waitCompleted(p *Pipeline, timeout time.Duration) (world.Handle, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h, ok := p.TryCompleted(); ok {
			return h, true
		}
		time.Sleep(time.Millisecond)
	}
	return world.Handle{}, false
}

func TestPipelineMeshAndUpload(t *testing.T) {
	_, _, table, pipeline := testPipeline(t, gputest.Config{})
	defer pipeline.ExitAll()

	c := world.NewChunk(world.ChunkPos{X: 1, Y: 0, Z: -2}, nil)
	c.SetVoxel(5, 5, 5, world.Voxel{ID: world.VoxelStone})
	h := table.Insert(c)

	pipeline.Mesh(h)

	completed, ok := waitCompleted(pipeline, 5*time.Second)
	require.True(t, ok, "no completion arrived")
	require.Equal(t, h, completed)

	vertexCount, indexCount := c.Counts()
	require.Equal(t, 24, vertexCount)
	require.Equal(t, 36, indexCount)
	require.NotNil(t, c.Geometry())

	// The uploaded bytes must match a host-side mesh of the same chunk:
	// vertices first, indices packed directly behind them.
	expectedVertices := make([]world.Vertex, world.MaxVertices)
	expectedIndices := make([]uint32, world.MaxIndices)
	expectedVertexCount, expectedIndexCount, err := c.Mesh(expectedVertices, expectedIndices, world.MeshOptions{})
	require.NoError(t, err)
	require.Equal(t, vertexCount, expectedVertexCount)
	require.Equal(t, indexCount, expectedIndexCount)

	vertexBytes := vertexCount * world.VertexSize
	indexBytes := indexCount * world.IndexSize
	contents := gputest.Contents(c.Geometry().Raw())
	require.Len(t, contents, vertexBytes+indexBytes)
	require.Equal(t,
		unsafe.Slice((*byte)(unsafe.Pointer(&expectedVertices[0])), vertexBytes),
		contents[:vertexBytes])
	require.Equal(t,
		unsafe.Slice((*byte)(unsafe.Pointer(&expectedIndices[0])), indexBytes),
		contents[vertexBytes:])
}

func TestPipelineEmptyChunkCompletes(t *testing.T) {
	_, _, table, pipeline := testPipeline(t, gputest.Config{})
	defer pipeline.ExitAll()

	c := world.NewChunk(world.ChunkPos{}, nil)
	h := table.Insert(c)

	pipeline.Mesh(h)

	completed, ok := waitCompleted(pipeline, 5*time.Second)
	require.True(t, ok, "empty chunks must still complete")
	require.Equal(t, h, completed)

	vertexCount, indexCount := c.Counts()
	require.Zero(t, vertexCount)
	require.Zero(t, indexCount)
	require.Nil(t, c.Geometry())
}

func TestPipelineExitAllReturns(t *testing.T) {
	_, _, table, pipeline := testPipeline(t, gputest.Config{})

	// Pile up far more jobs than one worker can drain instantly; ExitAll must
	// come back anyway, dropping whatever is still queued.
	for i := 0; i < 200; i++ {
		c := world.NewChunk(world.ChunkPos{X: int32(i)}, world.DiagonalTerrain)
		pipeline.Mesh(table.Insert(c))
	}

	done := make(chan struct{})
	go func() {
		pipeline.ExitAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("ExitAll did not return")
	}

	// Submissions after shutdown are dropped, not queued forever.
	pipeline.Mesh(world.Handle{})
}

func TestPipelineSkipsDeadHandles(t *testing.T) {
	_, _, table, pipeline := testPipeline(t, gputest.Config{})

	c := world.NewChunk(world.ChunkPos{}, nil)
	c.SetVoxel(5, 5, 5, world.Voxel{ID: world.VoxelStone})
	h := table.Insert(c)

	removed, ok := table.Remove(h)
	require.True(t, ok)
	require.Same(t, c, removed)

	// The job references a chunk that no longer exists; the worker must skip
	// it without publishing a completion.
	pipeline.Mesh(h)

	_, ok = waitCompleted(pipeline, 250*time.Millisecond)
	require.False(t, ok)
	require.Nil(t, c.Geometry())

	pipeline.ExitAll()
}

func TestPipelineSurvivesAllocationFailure(t *testing.T) {
	// Heap 0 backs device-local geometry; a one-byte budget fails every
	// geometry allocation while staging on heap 1 keeps working.
	_, _, table, pipeline := testPipeline(t, gputest.Config{
		HeapLimits: []int{1, 0},
	})
	defer pipeline.ExitAll()

	failing := world.NewChunk(world.ChunkPos{}, nil)
	failing.SetVoxel(5, 5, 5, world.Voxel{ID: world.VoxelStone})
	failingHandle := table.Insert(failing)

	empty := world.NewChunk(world.ChunkPos{X: 1}, nil)
	emptyHandle := table.Insert(empty)

	pipeline.Mesh(failingHandle)
	pipeline.Mesh(emptyHandle)

	// The failed job is dropped; the worker lives on to finish the next one.
	completed, ok := waitCompleted(pipeline, 5*time.Second)
	require.True(t, ok, "worker died after a failed job")
	require.Equal(t, emptyHandle, completed)
	require.Nil(t, failing.Geometry())

	_, ok = pipeline.TryCompleted()
	require.False(t, ok)
}

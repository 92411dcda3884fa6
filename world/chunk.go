// Package world holds the voxel data model: chunk grids, the terrain fill,
// the greedy and naive meshers, and the generation-tagged chunk table that
// stands in for weak references between the streamer and the meshing
// workers.
package world

import (
	"fmt"
	"sync"

	"github.com/voxenlabs/voxen/suballoc"
)

const (
	// ChunkSize is the edge length of a voxel chunk, in voxels.
	ChunkSize   = 16
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize

	// MaxQuads is the largest number of quads one chunk can mesh to: a 3D
	// checkerboard exposes all six faces of every other voxel.
	MaxQuads = 6 * ((ChunkVolume + 1) / 2)
	// MaxVertices and MaxIndices bound one chunk's geometry stream.
	MaxVertices = MaxQuads * 4
	MaxIndices  = MaxQuads * 6
)

// ChunkPos is a position in chunk-grid coordinates.
type ChunkPos struct {
	X, Y, Z int32
}

func (p ChunkPos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// Voxel is one volumetric cell. ID 0 is empty; faces only merge between
// voxels of the same ID.
type Voxel struct {
	ID uint16
}

func (v Voxel) Solid() bool {
	return v.ID != 0
}

// Chunk is the unit of streaming and meshing: a fixed-size voxel grid at a
// chunk-grid position, plus the geometry produced from it. The mutex guards
// the whole chunk for the duration of mesh-and-upload on one side and
// destruction on the other; two workers never hold the same chunk because a
// job is dequeued by exactly one of them.
type Chunk struct {
	pos ChunkPos

	mu     sync.Mutex
	voxels [ChunkVolume]Voxel

	geometry    *suballoc.Buffer
	vertexCount int
	indexCount  int
}

// NewChunk creates a chunk and synchronously populates its grid from the
// terrain function. A nil terrain leaves the chunk empty.
func NewChunk(pos ChunkPos, terrain TerrainFunc) *Chunk {
	c := &Chunk{pos: pos}
	if terrain != nil {
		for x := 0; x < ChunkSize; x++ {
			for y := 0; y < ChunkSize; y++ {
				for z := 0; z < ChunkSize; z++ {
					c.voxels[voxelIndex(x, y, z)] = terrain(pos, x, y, z)
				}
			}
		}
	}
	return c
}

func voxelIndex(x, y, z int) int {
	return x*ChunkSize*ChunkSize + y*ChunkSize + z
}

func (c *Chunk) Pos() ChunkPos {
	return c.pos
}

// Lock takes the chunk for exclusive meshing or destruction.
func (c *Chunk) Lock() {
	c.mu.Lock()
}

func (c *Chunk) Unlock() {
	c.mu.Unlock()
}

func (c *Chunk) VoxelAt(x, y, z int) Voxel {
	return c.voxels[voxelIndex(x, y, z)]
}

func (c *Chunk) SetVoxel(x, y, z int, v Voxel) {
	c.voxels[voxelIndex(x, y, z)] = v
}

// Geometry returns the chunk's uploaded geometry buffer, nil until meshed
// (or when the mesh was empty).
func (c *Chunk) Geometry() *suballoc.Buffer {
	return c.geometry
}

// Counts returns the vertex and index counts of the meshed geometry.
func (c *Chunk) Counts() (int, int) {
	return c.vertexCount, c.indexCount
}

// SetGeometry publishes the uploaded geometry. Replacing existing geometry
// destroys the old buffer first, so a chunk's buffer is freed exactly once.
func (c *Chunk) SetGeometry(geometry *suballoc.Buffer, vertexCount, indexCount int) {
	if c.geometry != nil && c.geometry != geometry {
		c.geometry.Destroy()
	}
	c.geometry = geometry
	c.vertexCount = vertexCount
	c.indexCount = indexCount
}

// ReleaseGeometry frees the chunk's geometry buffer if one exists. Called
// under the chunk lock during destruction, which also makes the streamer
// wait out any in-flight mesh of this chunk.
func (c *Chunk) ReleaseGeometry() {
	if c.geometry != nil {
		c.geometry.Destroy()
		c.geometry = nil
	}
	c.vertexCount = 0
	c.indexCount = 0
}

package world

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrMeshCapacity is returned when the caller-supplied vertex or index slice
// cannot hold the mesh. Slices sized to MaxVertices/MaxIndices never hit it.
var ErrMeshCapacity = errors.New("mesh output exceeds caller-supplied capacity")

// Side identifies a face orientation. The first three are the positive
// normals of the x, y, z axes in that order, the last three the negative
// ones, so Side(axis) and Side(axis+3) name the two faces of a slice.
type Side uint8

const (
	SideNorth  Side = iota // x+
	SideTop                // y+
	SideEast               // z+
	SideSouth              // x-
	SideBottom             // y-
	SideWest               // z-
)

// lightLevel is the per-face light modifier: top brightest, bottom darkest,
// the four sides in between.
func (s Side) lightLevel() uint8 {
	switch s {
	case SideTop:
		return 10
	case SideBottom:
		return 5
	case SideNorth, SideSouth:
		return 8
	default:
		return 6
	}
}

func (s Side) offset() (int, int, int) {
	switch s {
	case SideNorth:
		return 1, 0, 0
	case SideSouth:
		return -1, 0, 0
	case SideEast:
		return 0, 0, 1
	case SideWest:
		return 0, 0, -1
	case SideTop:
		return 0, 1, 0
	default:
		return 0, -1, 0
	}
}

// MeshOptions tunes face visibility at chunk borders.
type MeshOptions struct {
	// NeighborSolid samples solidity at world voxel coordinates outside this
	// chunk. When nil, every face on a chunk boundary is emitted, even when
	// the adjacent chunk is solid there; supplying a sampler culls those
	// faces. The always-emit default matches the historical behavior and
	// costs a full wall of quads per chunk border.
	NeighborSolid func(x, y, z int32) bool
}

type maskState uint8

const (
	maskNone maskState = iota
	// maskPositive faces point along the axis, maskNegative against it.
	maskPositive
	maskNegative
)

// maskCell records whether a face exists at one cell of a slice mask, on
// which side, and for which voxel ID. Only equal cells merge.
type maskCell struct {
	state maskState
	id    uint16
}

// faceNeighborEmpty reports whether the voxel bordering (x,y,z) on the given
// side does not hide a face there. Out-of-chunk neighbors are empty unless a
// NeighborSolid sampler says otherwise.
func (c *Chunk) faceNeighborEmpty(x, y, z int32, side Side, options MeshOptions) bool {
	dx, dy, dz := side.offset()
	nx := x + int32(dx)
	ny := y + int32(dy)
	nz := z + int32(dz)

	if nx < 0 || nx >= ChunkSize || ny < 0 || ny >= ChunkSize || nz < 0 || nz >= ChunkSize {
		if options.NeighborSolid == nil {
			return true
		}
		return !options.NeighborSolid(
			c.pos.X*ChunkSize+nx,
			c.pos.Y*ChunkSize+ny,
			c.pos.Z*ChunkSize+nz,
		)
	}
	return !c.voxels[voxelIndex(int(nx), int(ny), int(nz))].Solid()
}

var quadIndices = [6]uint32{0, 1, 2, 2, 3, 0}

// Mesh converts the chunk's voxel grid into a vertex/index stream using
// greedy quad merging, writing into the caller-supplied slices and returning
// the emitted counts. It is pure with respect to the device: no allocation,
// no upload. Sweeping each axis slice by slice, it builds a mask of exposed
// faces keyed by side and voxel ID, then grows each unmerged cell into the
// widest run along u and the tallest matching run along v, emitting a single
// quad per merged region.
func (c *Chunk) Mesh(vertices []Vertex, indices []uint32, options MeshOptions) (int, int, error) {
	vertexCount := 0
	indexCount := 0
	indexBase := uint32(0)

	emitQuad := func(corners [4][3]int32, side Side) error {
		if vertexCount+4 > len(vertices) || indexCount+6 > len(indices) {
			return errors.Wrapf(ErrMeshCapacity, "chunk %s", c.pos)
		}
		for _, corner := range corners {
			vertices[vertexCount] = Vertex{
				Pos: [3]int32{
					corner[0] + c.pos.X*ChunkSize,
					corner[1] + c.pos.Y*ChunkSize,
					corner[2] + c.pos.Z*ChunkSize,
				},
				Color: mgl32.Vec3{1, 1, 1},
				Light: side.lightLevel(),
			}
			vertexCount++
		}
		for _, i := range quadIndices {
			indices[indexCount] = indexBase + i
			indexCount++
		}
		indexBase += 4
		return nil
	}

	var mask [ChunkSize * ChunkSize]maskCell

	for axis := 0; axis < 3; axis++ {
		u := (axis + 1) % 3
		v := (axis + 2) % 3

		var x, q [3]int32
		q[axis] = 1
		x[axis] = -1

		for x[axis] < ChunkSize {
			// Build the face mask for the slice boundary between x[axis]
			// and x[axis]+1.
			n := 0
			for j := 0; j < ChunkSize; j++ {
				x[v] = int32(j)
				for i := 0; i < ChunkSize; i++ {
					x[u] = int32(i)

					var front, back Voxel
					frontVisible := false
					backVisible := false

					if x[axis] >= 0 {
						front = c.voxels[voxelIndex(int(x[0]), int(x[1]), int(x[2]))]
						frontVisible = front.Solid() &&
							c.faceNeighborEmpty(x[0], x[1], x[2], Side(axis), options)
					}
					if x[axis] < ChunkSize-1 {
						back = c.voxels[voxelIndex(int(x[0]+q[0]), int(x[1]+q[1]), int(x[2]+q[2]))]
						backVisible = back.Solid() &&
							c.faceNeighborEmpty(x[0]+q[0], x[1]+q[1], x[2]+q[2], Side(axis+3), options)
					}

					switch {
					case frontVisible == backVisible:
						mask[n] = maskCell{}
					case frontVisible:
						mask[n] = maskCell{state: maskPositive, id: front.ID}
					default:
						mask[n] = maskCell{state: maskNegative, id: back.ID}
					}
					n++
				}
			}

			x[axis]++

			// Greedily merge the mask into quads.
			n = 0
			for j := 0; j < ChunkSize; j++ {
				for i := 0; i < ChunkSize; {
					cell := mask[n]
					if cell.state == maskNone {
						n++
						i++
						continue
					}

					width := 1
					for i+width < ChunkSize && mask[n+width] == cell {
						width++
					}

					height := 1
					done := false
					for !done && j+height < ChunkSize {
						for k := 0; k < width; k++ {
							if mask[n+k+height*ChunkSize] != cell {
								done = true
								break
							}
						}
						if !done {
							height++
						}
					}

					x[u] = int32(i)
					x[v] = int32(j)

					var du, dv [3]int32
					var side Side
					if cell.state == maskPositive {
						side = Side(axis)
						du[u] = int32(width)
						dv[v] = int32(height)
					} else {
						// Swapped extents flip the winding for faces
						// pointing against the axis.
						side = Side(axis + 3)
						du[v] = int32(height)
						dv[u] = int32(width)
					}

					err := emitQuad([4][3]int32{
						{x[0], x[1], x[2]},
						{x[0] + du[0], x[1] + du[1], x[2] + du[2]},
						{x[0] + du[0] + dv[0], x[1] + du[1] + dv[1], x[2] + du[2] + dv[2]},
						{x[0] + dv[0], x[1] + dv[1], x[2] + dv[2]},
					}, side)
					if err != nil {
						return 0, 0, err
					}

					for l := 0; l < height; l++ {
						for k := 0; k < width; k++ {
							mask[n+k+l*ChunkSize] = maskCell{}
						}
					}

					i += width
					n += width
				}
			}
		}
	}

	return vertexCount, indexCount, nil
}

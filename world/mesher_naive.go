package world

import "github.com/go-gl/mathgl/mgl32"

// MeshNaive is the per-face fallback mesher: one quad for every exposed
// voxel face, no merging. It exists as a correctness baseline for Mesh,
// which must cover the same area with far fewer primitives. Too many
// primitives for real render distances.
func (c *Chunk) MeshNaive(vertices []Vertex, indices []uint32, options MeshOptions) (int, int, error) {
	vertexCount := 0
	indexCount := 0
	indexBase := uint32(0)

	for xi := 0; xi < ChunkSize; xi++ {
		for yi := 0; yi < ChunkSize; yi++ {
			for zi := 0; zi < ChunkSize; zi++ {
				voxel := c.voxels[voxelIndex(xi, yi, zi)]
				if !voxel.Solid() {
					continue
				}

				pos := [3]int32{int32(xi), int32(yi), int32(zi)}
				for side := SideNorth; side <= SideWest; side++ {
					if !c.faceNeighborEmpty(pos[0], pos[1], pos[2], side, options) {
						continue
					}

					axis := int(side) % 3
					positive := side < SideSouth
					u := (axis + 1) % 3
					v := (axis + 2) % 3

					base := pos
					var du, dv [3]int32
					if positive {
						base[axis]++
						du[u] = 1
						dv[v] = 1
					} else {
						du[v] = 1
						dv[u] = 1
					}

					if vertexCount+4 > len(vertices) || indexCount+6 > len(indices) {
						return 0, 0, ErrMeshCapacity
					}
					corners := [4][3]int32{
						base,
						{base[0] + du[0], base[1] + du[1], base[2] + du[2]},
						{base[0] + du[0] + dv[0], base[1] + du[1] + dv[1], base[2] + du[2] + dv[2]},
						{base[0] + dv[0], base[1] + dv[1], base[2] + dv[2]},
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
				}
			}
		}
	}

	return vertexCount, indexCount, nil
}

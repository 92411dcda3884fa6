package world

// Voxel IDs emitted by the built-in terrain.
const (
	VoxelEmpty uint16 = iota
	VoxelGrass
	VoxelStone
)

// TerrainFunc produces the voxel for one cell of a chunk being created.
// x, y, z are chunk-local coordinates.
type TerrainFunc func(pos ChunkPos, x, y, z int) Voxel

// DiagonalTerrain is the default generator: each column's height is the
// absolute difference of its local x and z, giving a chunk-periodic field of
// diagonal ridges. Stone body with a grass cap.
func DiagonalTerrain(pos ChunkPos, x, y, z int) Voxel {
	height := x - z
	if height < 0 {
		height = -height
	}

	switch {
	case y >= height:
		return Voxel{ID: VoxelEmpty}
	case y == height-1:
		return Voxel{ID: VoxelGrass}
	default:
		return Voxel{ID: VoxelStone}
	}
}

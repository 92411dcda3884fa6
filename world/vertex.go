package world

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Vertex is the terrain vertex as it is laid out in staging and geometry
// buffers: integer chunk-translated position, a color tint, and a per-face
// light modifier encoding directional shading.
type Vertex struct {
	Pos   [3]int32
	Color mgl32.Vec3
	Light uint8
}

const (
	// VertexSize is the stride of one Vertex in a geometry buffer.
	VertexSize = int(unsafe.Sizeof(Vertex{}))
	// IndexSize is the byte width of one index (uint32).
	IndexSize = 4
)

// Attribute byte offsets within a Vertex, for vertex-input descriptions on
// the renderer side.
const (
	VertexPosOffset   = int(unsafe.Offsetof(Vertex{}.Pos))
	VertexColorOffset = int(unsafe.Offsetof(Vertex{}.Color))
	VertexLightOffset = int(unsafe.Offsetof(Vertex{}.Light))
)

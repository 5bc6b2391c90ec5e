package kernel

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/geom"
)

// Mesh is a triangle soup in world coordinates. Shared corners are
// repeated per triangle; welding happens when bodies become a collision
// mesh.
type Mesh struct {
	Name      string
	Triangles [][3]v3.Vec
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Triangles) == 0
}

// Bounds returns the box around all triangle corners.
func (m *Mesh) Bounds() geom.AABB {
	b := geom.EmptyAABB()
	for _, t := range m.Triangles {
		b = b.Include(t[0]).Include(t[1]).Include(t[2])
	}
	return b
}

// Transform returns a copy of m with every corner mapped through f.
func (m *Mesh) Transform(f func(v3.Vec) v3.Vec) *Mesh {
	out := &Mesh{Name: m.Name, Triangles: make([][3]v3.Vec, len(m.Triangles))}
	for i, t := range m.Triangles {
		out.Triangles[i] = [3]v3.Vec{f(t[0]), f(t[1]), f(t[2])}
	}
	return out
}

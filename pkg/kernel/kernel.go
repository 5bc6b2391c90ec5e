// Package kernel defines the solid modeling interface scenario bodies are
// built with. A backend turns solids into triangle soups that become part
// of a collision mesh.
package kernel

import "errors"

// ErrEmptyMesh is returned by ToMesh when a solid yields no triangles.
var ErrEmptyMesh = errors.New("tessellation produced no triangles")

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel builds and tessellates solids.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// ToMesh tessellates s on a grid of cells along its longest side;
	// cells <= 0 selects the backend default.
	ToMesh(s Solid, cells int) (*Mesh, error)
}

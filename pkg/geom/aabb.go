// Package geom provides the primitive geometry used by contact handling:
// axis-aligned boxes, closest-feature classification, squared distances
// between points, edges and triangles (with exact derivatives), and static
// intersection predicates. Points are sdfx v3.Vec values; 2D problems are
// embedded in the z=0 plane.
package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max v3.Vec
}

// EmptyAABB returns a box that contains nothing; including any point makes
// it valid.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: v3.Vec{X: inf, Y: inf, Z: inf},
		Max: v3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// BoxOf returns the tightest box around the given points.
func BoxOf(ps ...v3.Vec) AABB {
	b := EmptyAABB()
	for _, p := range ps {
		b = b.Include(p)
	}
	return b
}

// Include grows the box to contain p.
func (b AABB) Include(p v3.Vec) AABB {
	return AABB{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Merge returns the smallest box containing both boxes.
func (b AABB) Merge(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Inflate grows the box by r in every direction.
func (b AABB) Inflate(r float64) AABB {
	d := v3.Vec{X: r, Y: r, Z: r}
	return AABB{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Overlaps reports whether the closed boxes intersect.
func (b AABB) Overlaps(o AABB) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y &&
		b.Min.Z <= o.Max.Z && o.Min.Z <= b.Max.Z
}

// IsEmpty reports whether the box contains no point.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Size returns the box extents.
func (b AABB) Size() v3.Vec {
	return b.Max.Sub(b.Min)
}

// Diagonal returns the length of the box diagonal, 0 for an empty box.
func (b AABB) Diagonal() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Size().Length()
}

package geom

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// SegmentTriangleIntersect reports whether segment (s0, s1) crosses triangle
// (t0, t1, t2). Touching counts as crossing. Segments lying in the
// triangle's plane are reported as not intersecting; their edges are caught
// by the neighbouring edge-triangle pairs of a closed surface.
func SegmentTriangleIntersect(s0, s1, t0, t1, t2 v3.Vec) bool {
	e1 := t1.Sub(t0)
	e2 := t2.Sub(t0)
	dir := s1.Sub(s0)

	h := dir.Cross(e2)
	a := e1.Dot(h)
	if a == 0 {
		return false
	}
	f := 1 / a
	s := s0.Sub(t0)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}
	q := s.Cross(e1)
	v := f * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return false
	}
	t := f * e2.Dot(q)
	return t >= 0 && t <= 1
}

// orient2D returns twice the signed area of (a, b, c) in the xy plane.
func orient2D(a, b, c v3.Vec) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment2D(p, a, b v3.Vec) bool {
	return p.X >= min(a.X, b.X) && p.X <= max(a.X, b.X) &&
		p.Y >= min(a.Y, b.Y) && p.Y <= max(a.Y, b.Y)
}

// SegmentsIntersect2D reports whether segments (a0, a1) and (b0, b1) in the
// xy plane intersect, including touching and collinear overlap.
func SegmentsIntersect2D(a0, a1, b0, b1 v3.Vec) bool {
	d1 := orient2D(b0, b1, a0)
	d2 := orient2D(b0, b1, a1)
	d3 := orient2D(a0, a1, b0)
	d4 := orient2D(a0, a1, b1)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment2D(a0, b0, b1):
		return true
	case d2 == 0 && onSegment2D(a1, b0, b1):
		return true
	case d3 == 0 && onSegment2D(b0, a0, a1):
		return true
	case d4 == 0 && onSegment2D(b1, a0, a1):
		return true
	}
	return false
}

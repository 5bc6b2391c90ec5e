package geom

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// PointPointSq returns |p - q|².
func PointPointSq(p, q v3.Vec) float64 {
	return p.Sub(q).Length2()
}

// PointLineSq returns the squared distance from p to the infinite line
// through e0 and e1.
func PointLineSq(p, e0, e1 v3.Vec) float64 {
	e := e1.Sub(e0)
	l2 := e.Length2()
	if l2 == 0 {
		return PointPointSq(p, e0)
	}
	return e0.Sub(p).Cross(e1.Sub(p)).Length2() / l2
}

// PointPlaneSq returns the squared distance from p to the plane through
// t0, t1 and t2.
func PointPlaneSq(p, t0, t1, t2 v3.Vec) float64 {
	n := t1.Sub(t0).Cross(t2.Sub(t0))
	n2 := n.Length2()
	if n2 == 0 {
		d, _ := PointTriangleDistanceSq(p, t0, t1, t2)
		return d
	}
	h := p.Sub(t0).Dot(n)
	return h * h / n2
}

// LineLineSq returns the squared distance between the infinite lines
// through (a0, a1) and (b0, b1). The lines must not be parallel.
func LineLineSq(a0, a1, b0, b1 v3.Vec) float64 {
	n := a1.Sub(a0).Cross(b1.Sub(b0))
	n2 := n.Length2()
	if n2 == 0 {
		d, _ := EdgeEdgeDistanceSq(a0, a1, b0, b1)
		return d
	}
	h := b0.Sub(a0).Dot(n)
	return h * h / n2
}

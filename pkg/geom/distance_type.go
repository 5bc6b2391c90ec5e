package geom

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// parallelTolerance bounds sin²θ below which two edges are treated as
// parallel and their distance is reduced to point-edge distances.
const parallelTolerance = 1e-10

// ---------------------------------------------------------------------------
// Point-edge
// ---------------------------------------------------------------------------

// PointEdgeType identifies the closest feature of an edge to a point.
type PointEdgeType int

const (
	PointEdgeP0       PointEdgeType = iota // closest to e0
	PointEdgeP1                            // closest to e1
	PointEdgeInterior                      // closest to the edge interior
)

func (t PointEdgeType) String() string {
	switch t {
	case PointEdgeP0:
		return "P_E0"
	case PointEdgeP1:
		return "P_E1"
	case PointEdgeInterior:
		return "P_E"
	default:
		return "unknown"
	}
}

// ClassifyPointEdge returns the closest-feature type of edge (e0, e1) to p.
func ClassifyPointEdge(p, e0, e1 v3.Vec) PointEdgeType {
	e := e1.Sub(e0)
	l2 := e.Length2()
	if l2 == 0 {
		return PointEdgeP0
	}
	t := p.Sub(e0).Dot(e) / l2
	switch {
	case t <= 0:
		return PointEdgeP0
	case t >= 1:
		return PointEdgeP1
	default:
		return PointEdgeInterior
	}
}

// PointEdgeDistanceSq returns the squared distance from p to the segment
// (e0, e1) and the type it was computed with.
func PointEdgeDistanceSq(p, e0, e1 v3.Vec) (float64, PointEdgeType) {
	t := ClassifyPointEdge(p, e0, e1)
	switch t {
	case PointEdgeP0:
		return PointPointSq(p, e0), t
	case PointEdgeP1:
		return PointPointSq(p, e1), t
	default:
		return PointLineSq(p, e0, e1), t
	}
}

// ---------------------------------------------------------------------------
// Point-triangle
// ---------------------------------------------------------------------------

// PointTriangleType identifies the closest feature of a triangle to a point.
// Edge i joins corner i to corner (i+1)%3.
type PointTriangleType int

const (
	PointTriangleP0 PointTriangleType = iota
	PointTriangleP1
	PointTriangleP2
	PointTriangleE0
	PointTriangleE1
	PointTriangleE2
	PointTriangleInterior
)

func (t PointTriangleType) String() string {
	switch t {
	case PointTriangleP0:
		return "P_T0"
	case PointTriangleP1:
		return "P_T1"
	case PointTriangleP2:
		return "P_T2"
	case PointTriangleE0:
		return "P_E0"
	case PointTriangleE1:
		return "P_E1"
	case PointTriangleE2:
		return "P_E2"
	case PointTriangleInterior:
		return "P_T"
	default:
		return "unknown"
	}
}

// ClassifyPointTriangle returns the Voronoi region of triangle (t0, t1, t2)
// that contains p.
func ClassifyPointTriangle(p, t0, t1, t2 v3.Vec) PointTriangleType {
	ab := t1.Sub(t0)
	ac := t2.Sub(t0)
	if ab.Cross(ac).Length2() == 0 {
		return degeneratePointTriangle(p, t0, t1, t2)
	}

	ap := p.Sub(t0)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return PointTriangleP0
	}

	bp := p.Sub(t1)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return PointTriangleP1
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return PointTriangleE0
	}

	cp := p.Sub(t2)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return PointTriangleP2
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return PointTriangleE2
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return PointTriangleE1
	}

	return PointTriangleInterior
}

// degeneratePointTriangle handles zero-area triangles by picking the closest
// of the three edges.
func degeneratePointTriangle(p, t0, t1, t2 v3.Vec) PointTriangleType {
	corners := [3]v3.Vec{t0, t1, t2}
	best := math.Inf(1)
	result := PointTriangleP0
	for i := 0; i < 3; i++ {
		d, t := PointEdgeDistanceSq(p, corners[i], corners[(i+1)%3])
		if d >= best {
			continue
		}
		best = d
		switch t {
		case PointEdgeP0:
			result = PointTriangleP0 + PointTriangleType(i)
		case PointEdgeP1:
			result = PointTriangleP0 + PointTriangleType((i+1)%3)
		default:
			result = PointTriangleE0 + PointTriangleType(i)
		}
	}
	return result
}

// PointTriangleDistanceSq returns the squared distance from p to the
// triangle and the type it was computed with.
func PointTriangleDistanceSq(p, t0, t1, t2 v3.Vec) (float64, PointTriangleType) {
	t := ClassifyPointTriangle(p, t0, t1, t2)
	corners := [3]v3.Vec{t0, t1, t2}
	switch t {
	case PointTriangleP0, PointTriangleP1, PointTriangleP2:
		return PointPointSq(p, corners[t-PointTriangleP0]), t
	case PointTriangleE0, PointTriangleE1, PointTriangleE2:
		i := int(t - PointTriangleE0)
		return PointLineSq(p, corners[i], corners[(i+1)%3]), t
	default:
		return PointPlaneSq(p, t0, t1, t2), t
	}
}

// ---------------------------------------------------------------------------
// Edge-edge
// ---------------------------------------------------------------------------

// EdgeEdgeType identifies which features of edges a=(a0,a1) and b=(b0,b1)
// realize their distance.
type EdgeEdgeType int

const (
	EdgeEdgeA0B0     EdgeEdgeType = iota // a0 - b0
	EdgeEdgeA0B1                         // a0 - b1
	EdgeEdgeA1B0                         // a1 - b0
	EdgeEdgeA1B1                         // a1 - b1
	EdgeEdgeA0B                          // a0 - interior of b
	EdgeEdgeA1B                          // a1 - interior of b
	EdgeEdgeAB0                          // interior of a - b0
	EdgeEdgeAB1                          // interior of a - b1
	EdgeEdgeInterior                     // interior of a - interior of b
)

func (t EdgeEdgeType) String() string {
	names := [...]string{"EA0_EB0", "EA0_EB1", "EA1_EB0", "EA1_EB1", "EA0_EB", "EA1_EB", "EA_EB0", "EA_EB1", "EA_EB"}
	if t < 0 || int(t) >= len(names) {
		return "unknown"
	}
	return names[t]
}

// ClassifyEdgeEdge returns the closest-feature type of two segments.
// Nearly parallel or degenerate segments are reduced to the best of the
// four point-edge distances.
func ClassifyEdgeEdge(a0, a1, b0, b1 v3.Vec) EdgeEdgeType {
	u := a1.Sub(a0)
	v := b1.Sub(b0)
	w := a0.Sub(b0)

	a := u.Dot(u)
	b := u.Dot(v)
	c := u.Dot(w)
	e := v.Dot(v)
	f := v.Dot(w)
	denom := a*e - b*b

	if a == 0 || e == 0 || denom <= parallelTolerance*a*e {
		return parallelEdgeEdge(a0, a1, b0, b1)
	}

	s := clamp01((b*f - c*e) / denom)
	t := (b*s + f) / e
	if t < 0 {
		t = 0
		s = clamp01(-c / a)
	} else if t > 1 {
		t = 1
		s = clamp01((b - c) / a)
	}

	sInterior := s > 0 && s < 1
	tInterior := t > 0 && t < 1
	switch {
	case sInterior && tInterior:
		return EdgeEdgeInterior
	case sInterior:
		if t == 0 {
			return EdgeEdgeAB0
		}
		return EdgeEdgeAB1
	case tInterior:
		if s == 0 {
			return EdgeEdgeA0B
		}
		return EdgeEdgeA1B
	}
	switch {
	case s == 0 && t == 0:
		return EdgeEdgeA0B0
	case s == 0:
		return EdgeEdgeA0B1
	case t == 0:
		return EdgeEdgeA1B0
	default:
		return EdgeEdgeA1B1
	}
}

// parallelEdgeEdge picks the smallest of the endpoint-to-edge distances.
func parallelEdgeEdge(a0, a1, b0, b1 v3.Vec) EdgeEdgeType {
	type option struct {
		d float64
		t EdgeEdgeType
	}
	var opts [4]option

	d, t := PointEdgeDistanceSq(a0, b0, b1)
	opts[0] = option{d, pick(t, EdgeEdgeA0B0, EdgeEdgeA0B1, EdgeEdgeA0B)}
	d, t = PointEdgeDistanceSq(a1, b0, b1)
	opts[1] = option{d, pick(t, EdgeEdgeA1B0, EdgeEdgeA1B1, EdgeEdgeA1B)}
	d, t = PointEdgeDistanceSq(b0, a0, a1)
	opts[2] = option{d, pick(t, EdgeEdgeA0B0, EdgeEdgeA1B0, EdgeEdgeAB0)}
	d, t = PointEdgeDistanceSq(b1, a0, a1)
	opts[3] = option{d, pick(t, EdgeEdgeA0B1, EdgeEdgeA1B1, EdgeEdgeAB1)}

	best := opts[0]
	for _, o := range opts[1:] {
		if o.d < best.d {
			best = o
		}
	}
	return best.t
}

func pick(t PointEdgeType, p0, p1, interior EdgeEdgeType) EdgeEdgeType {
	switch t {
	case PointEdgeP0:
		return p0
	case PointEdgeP1:
		return p1
	default:
		return interior
	}
}

// EdgeEdgeDistanceSq returns the squared distance between two segments and
// the type it was computed with.
func EdgeEdgeDistanceSq(a0, a1, b0, b1 v3.Vec) (float64, EdgeEdgeType) {
	t := ClassifyEdgeEdge(a0, a1, b0, b1)
	switch t {
	case EdgeEdgeA0B0:
		return PointPointSq(a0, b0), t
	case EdgeEdgeA0B1:
		return PointPointSq(a0, b1), t
	case EdgeEdgeA1B0:
		return PointPointSq(a1, b0), t
	case EdgeEdgeA1B1:
		return PointPointSq(a1, b1), t
	case EdgeEdgeA0B:
		return PointLineSq(a0, b0, b1), t
	case EdgeEdgeA1B:
		return PointLineSq(a1, b0, b1), t
	case EdgeEdgeAB0:
		return PointLineSq(b0, a0, a1), t
	case EdgeEdgeAB1:
		return PointLineSq(b1, a0, a1), t
	default:
		return LineLineSq(a0, a1, b0, b1), t
	}
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

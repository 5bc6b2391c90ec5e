package geom

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/autodiff"
)

// Formula is a closed-form squared distance over a fixed number of points.
// Each contact constraint evaluates exactly one Formula on its vertices.
type Formula int

const (
	PointPoint Formula = iota // |p - q|²
	PointLine                 // p to the line (e0, e1)
	LineLine                  // line (a0, a1) to line (b0, b1)
	PointPlane                // p to the plane (t0, t1, t2)
)

func (f Formula) String() string {
	switch f {
	case PointPoint:
		return "point-point"
	case PointLine:
		return "point-line"
	case LineLine:
		return "line-line"
	case PointPlane:
		return "point-plane"
	default:
		return fmt.Sprintf("Formula(%d)", int(f))
	}
}

// NumPoints returns how many points the formula reads.
func (f Formula) NumPoints() int {
	switch f {
	case PointPoint:
		return 2
	case PointLine:
		return 3
	default:
		return 4
	}
}

// Eval returns the squared distance for ps, which must hold NumPoints points.
func (f Formula) Eval(ps []v3.Vec) float64 {
	switch f {
	case PointPoint:
		return PointPointSq(ps[0], ps[1])
	case PointLine:
		return PointLineSq(ps[0], ps[1], ps[2])
	case LineLine:
		return LineLineSq(ps[0], ps[1], ps[2], ps[3])
	default:
		return PointPlaneSq(ps[0], ps[1], ps[2], ps[3])
	}
}

// Derivatives returns the squared distance with its gradient and, when
// hessian is set, its Hessian with respect to the first dim coordinates of
// every point. Variable k*dim+c is coordinate c of point k.
func (f Formula) Derivatives(ps []v3.Vec, dim int, hessian bool) autodiff.Scalar {
	s := autodiff.NewSpace(len(ps)*dim, hessian)
	x := s.Points(ps, dim)
	switch f {
	case PointPoint:
		return x[0].Sub(x[1]).SquaredNorm()
	case PointLine:
		return pointLineSq(x[0], x[1], x[2])
	case LineLine:
		return lineLineSq(x[0], x[1], x[2], x[3])
	default:
		return pointPlaneSq(x[0], x[1], x[2], x[3])
	}
}

func pointLineSq(p, e0, e1 autodiff.Vec3) autodiff.Scalar {
	num := e0.Sub(p).Cross(e1.Sub(p)).SquaredNorm()
	return num.Div(e1.Sub(e0).SquaredNorm())
}

func pointPlaneSq(p, t0, t1, t2 autodiff.Vec3) autodiff.Scalar {
	n := t1.Sub(t0).Cross(t2.Sub(t0))
	h := p.Sub(t0).Dot(n)
	return h.Square().Div(n.SquaredNorm())
}

func lineLineSq(a0, a1, b0, b1 autodiff.Vec3) autodiff.Scalar {
	n := a1.Sub(a0).Cross(b1.Sub(b0))
	h := b0.Sub(a0).Dot(n)
	return h.Square().Div(n.SquaredNorm())
}

// ---------------------------------------------------------------------------
// Type reductions
// ---------------------------------------------------------------------------

// Reduction names the formula a closest-feature type reduces to and which of
// the input points it reads, by index.
type Reduction struct {
	Formula Formula
	Points  []int
}

// Reduce maps a point-edge type over (p, e0, e1).
func (t PointEdgeType) Reduce() Reduction {
	switch t {
	case PointEdgeP0:
		return Reduction{PointPoint, []int{0, 1}}
	case PointEdgeP1:
		return Reduction{PointPoint, []int{0, 2}}
	default:
		return Reduction{PointLine, []int{0, 1, 2}}
	}
}

// Reduce maps a point-triangle type over (p, t0, t1, t2).
func (t PointTriangleType) Reduce() Reduction {
	switch t {
	case PointTriangleP0:
		return Reduction{PointPoint, []int{0, 1}}
	case PointTriangleP1:
		return Reduction{PointPoint, []int{0, 2}}
	case PointTriangleP2:
		return Reduction{PointPoint, []int{0, 3}}
	case PointTriangleE0:
		return Reduction{PointLine, []int{0, 1, 2}}
	case PointTriangleE1:
		return Reduction{PointLine, []int{0, 2, 3}}
	case PointTriangleE2:
		return Reduction{PointLine, []int{0, 3, 1}}
	default:
		return Reduction{PointPlane, []int{0, 1, 2, 3}}
	}
}

// Reduce maps an edge-edge type over (a0, a1, b0, b1). Point-line
// reductions always list the lone point first.
func (t EdgeEdgeType) Reduce() Reduction {
	switch t {
	case EdgeEdgeA0B0:
		return Reduction{PointPoint, []int{0, 2}}
	case EdgeEdgeA0B1:
		return Reduction{PointPoint, []int{0, 3}}
	case EdgeEdgeA1B0:
		return Reduction{PointPoint, []int{1, 2}}
	case EdgeEdgeA1B1:
		return Reduction{PointPoint, []int{1, 3}}
	case EdgeEdgeA0B:
		return Reduction{PointLine, []int{0, 2, 3}}
	case EdgeEdgeA1B:
		return Reduction{PointLine, []int{1, 2, 3}}
	case EdgeEdgeAB0:
		return Reduction{PointLine, []int{2, 0, 1}}
	case EdgeEdgeAB1:
		return Reduction{PointLine, []int{3, 0, 1}}
	default:
		return Reduction{LineLine, []int{0, 1, 2, 3}}
	}
}

// ---------------------------------------------------------------------------
// Edge-edge mollifier
// ---------------------------------------------------------------------------

// mollifierScale relates ε× to the rest lengths of the two edges.
const mollifierScale = 1e-3

// EdgeEdgeMollifierThreshold returns ε× = 1e-3·|a1-a0|²·|b1-b0|² for the rest
// positions (a0, a1, b0, b1) of two edges.
func EdgeEdgeMollifierThreshold(rest []v3.Vec) float64 {
	return mollifierScale * rest[1].Sub(rest[0]).Length2() * rest[3].Sub(rest[2]).Length2()
}

// EdgeEdgeCrossSq returns |(a1-a0)×(b1-b0)|², which vanishes for parallel
// edges.
func EdgeEdgeCrossSq(ps []v3.Vec) float64 {
	return ps[1].Sub(ps[0]).Cross(ps[3].Sub(ps[2])).Length2()
}

// Mollifier returns (2 - x/ε)·x/ε for x < ε and 1 otherwise. It is C¹ at ε
// and zero at x = 0.
func Mollifier(x, eps float64) float64 {
	if x >= eps {
		return 1
	}
	r := x / eps
	return (2 - r) * r
}

// EdgeEdgeMollifier returns the mollifier of |(a1-a0)×(b1-b0)|² with its
// derivatives over the four edge points, laid out like Formula.Derivatives.
func EdgeEdgeMollifier(ps []v3.Vec, eps float64, dim int, hessian bool) autodiff.Scalar {
	s := autodiff.NewSpace(len(ps)*dim, hessian)
	x := s.Points(ps, dim)
	c := x[1].Sub(x[0]).Cross(x[3].Sub(x[2])).SquaredNorm()
	if c.Val >= eps {
		return s.Const(1)
	}
	r := c.Scale(1 / eps)
	return s.Const(2).Sub(r).Mul(r)
}

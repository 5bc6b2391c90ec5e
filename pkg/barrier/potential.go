package barrier

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/chazu/contactkit/pkg/autodiff"
	"github.com/chazu/contactkit/pkg/constraint"
	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/mesh"
	"github.com/chazu/contactkit/pkg/parallel"
	"github.com/chazu/contactkit/pkg/sparse"
)

// Potential evaluates the unit-stiffness barrier energy
//
//	P(V) = Σ_c multiplicity_c · m_c(V) · b(d_c(V))
//
// and its derivatives with respect to the surface coordinates. m_c is 1
// except for edge-edge constraints, whose mollifier fades the term out as
// the edges turn parallel (see geom.EdgeEdgeMollifier). Per-constraint terms
// are computed in parallel and summed in constraint order.
type Potential struct {
	DHat    float64
	Workers int
}

func (p Potential) dhat2() float64 { return p.DHat * p.DHat }

// Value returns P(V).
func (p Potential) Value(m *mesh.CollisionMesh, V []v3.Vec, set *constraint.Set) float64 {
	n := set.Len()
	if n == 0 {
		return 0
	}
	dhat2 := p.dhat2()
	vals := make([]float64, n)
	parallel.For(n, p.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			c := set.Constraints[i]
			b := Function(c.DistanceSq(V), dhat2)
			if b != 0 && c.Kind == constraint.EdgeEdge {
				b *= geom.Mollifier(geom.EdgeEdgeCrossSq(c.Points(V)), mollifierThreshold(m, c))
			}
			vals[i] = float64(c.Multiplicity) * b
		}
	})
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum
}

func mollifierThreshold(m *mesh.CollisionMesh, c constraint.Constraint) float64 {
	return geom.EdgeEdgeMollifierThreshold(c.Points(m.Rest()))
}

// mollifier returns the edge-edge mollifier of c at pts with its
// derivatives, or false when c is not mollified there.
func mollifier(m *mesh.CollisionMesh, c constraint.Constraint, pts []v3.Vec, dim int, hessian bool) (autodiff.Scalar, bool) {
	if c.Kind != constraint.EdgeEdge {
		return autodiff.Scalar{}, false
	}
	eps := mollifierThreshold(m, c)
	if geom.EdgeEdgeCrossSq(pts) >= eps {
		return autodiff.Scalar{}, false
	}
	return geom.EdgeEdgeMollifier(pts, eps, dim, hessian), true
}

// dofs returns the surface DOF index of each local variable of c.
func dofs(c constraint.Constraint, dim int) []int {
	idx := c.Indices()
	out := make([]int, 0, len(idx)*dim)
	for _, v := range idx {
		for k := 0; k < dim; k++ {
			out = append(out, v*dim+k)
		}
	}
	return out
}

// Gradient returns ∇P(V) over surface DOFs (length NumVertices·dim).
func (p Potential) Gradient(m *mesh.CollisionMesh, V []v3.Vec, set *constraint.Set) []float64 {
	dim := m.Dim()
	out := make([]float64, m.NumSurfaceDOF())
	n := set.Len()
	if n == 0 {
		return out
	}
	dhat2 := p.dhat2()
	local := make([][]float64, n)
	parallel.For(n, p.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			c := set.Constraints[i]
			pts := c.Points(V)
			f := c.Kind.Formula()
			d := f.Eval(pts)
			if d >= dhat2 {
				continue
			}
			s := f.Derivatives(pts, dim, false)
			g := s.Grad
			g.ScaleVec(Gradient(d, dhat2), g)
			// ∇(m·b) = m·b'·∇d + b·∇m
			if mo, ok := mollifier(m, c, pts, dim, false); ok {
				g.ScaleVec(mo.Val, g)
				g.AddScaledVec(g, Function(d, dhat2), mo.Grad)
			}
			g.ScaleVec(float64(c.Multiplicity), g)
			local[i] = g.RawVector().Data
		}
	})
	for i, g := range local {
		if g == nil {
			continue
		}
		for k, j := range dofs(set.Constraints[i], dim) {
			out[j] += g[k]
		}
	}
	return out
}

// Hessian returns ∇²P(V) over surface DOFs. With projectPSD each
// per-constraint block is projected to the nearest positive semi-definite
// matrix before assembly.
func (p Potential) Hessian(m *mesh.CollisionMesh, V []v3.Vec, set *constraint.Set, projectPSD bool) *sparse.Triplets {
	dim := m.Dim()
	out := sparse.New(m.NumSurfaceDOF())
	n := set.Len()
	if n == 0 {
		return out
	}
	dhat2 := p.dhat2()
	local := make([]*mat.SymDense, n)
	parallel.For(n, p.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			c := set.Constraints[i]
			pts := c.Points(V)
			f := c.Kind.Formula()
			d := f.Eval(pts)
			if d >= dhat2 {
				continue
			}
			s := f.Derivatives(pts, dim, true)
			db := Gradient(d, dhat2)

			// b''·∇d∇dᵀ + b'·∇²d
			h := mat.NewSymDense(s.Grad.Len(), nil)
			h.ScaleSym(db, s.Hess)
			h.SymRankOne(h, Hessian(d, dhat2), s.Grad)

			// m·(above) + b'·(∇m∇dᵀ + ∇d∇mᵀ) + b·∇²m
			if mo, ok := mollifier(m, c, pts, dim, true); ok {
				h.ScaleSym(mo.Val, h)
				h.SymRankTwo(h, db, mo.Grad, s.Grad)
				var hm mat.SymDense
				hm.ScaleSym(Function(d, dhat2), mo.Hess)
				h.AddSym(h, &hm)
			}
			h.ScaleSym(float64(c.Multiplicity), h)
			if projectPSD {
				h = ProjectPSD(h)
			}
			local[i] = h
		}
	})
	for i, h := range local {
		if h != nil {
			out.AddDense(dofs(set.Constraints[i], dim), h)
		}
	}
	return out
}

// ProjectPSD clamps the negative eigenvalues of h to zero.
func ProjectPSD(h *mat.SymDense) *mat.SymDense {
	n := h.SymmetricDim()
	var es mat.EigenSym
	if !es.Factorize(h, true) {
		// Fall back to the zero block.
		return mat.NewSymDense(n, nil)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	out := mat.NewSymDense(n, nil)
	for i, l := range vals {
		if l > 0 {
			out.SymRankOne(out, l, vecs.ColView(i))
		}
	}
	return out
}

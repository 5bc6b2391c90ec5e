// Package autodiff implements forward-mode automatic differentiation up to
// second order for small, dense problems.
//
// A Scalar carries its value together with the gradient and (optionally) the
// Hessian with respect to a fixed set of n independent variables. Arithmetic
// on Scalars propagates both derivatives exactly through the product and
// quotient rules, so a function written once in terms of Scalars yields its
// value, gradient and Hessian without hand-derived formulas. The contact
// distances use n <= 12 (four points in 3D).
package autodiff

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Scalar is a value with first and optional second derivatives.
// Hess is nil when second-order tracking is disabled.
type Scalar struct {
	Val  float64
	Grad *mat.VecDense
	Hess *mat.SymDense
}

// Space fixes the number of independent variables and whether Hessians are
// propagated. All Scalars combined in one expression must share a Space.
type Space struct {
	n       int
	hessian bool
}

// NewSpace returns a differentiation space over n variables.
func NewSpace(n int, hessian bool) Space {
	if n <= 0 {
		panic(fmt.Sprintf("autodiff: invalid variable count %d", n))
	}
	return Space{n: n, hessian: hessian}
}

// N returns the number of independent variables.
func (s Space) N() int { return s.n }

// Const returns a constant (zero derivatives).
func (s Space) Const(v float64) Scalar {
	c := Scalar{Val: v, Grad: mat.NewVecDense(s.n, nil)}
	if s.hessian {
		c.Hess = mat.NewSymDense(s.n, nil)
	}
	return c
}

// Var returns the i-th independent variable with value v.
func (s Space) Var(i int, v float64) Scalar {
	x := s.Const(v)
	x.Grad.SetVec(i, 1)
	return x
}

// Add returns a + b.
func (a Scalar) Add(b Scalar) Scalar {
	r := Scalar{Val: a.Val + b.Val, Grad: mat.NewVecDense(a.Grad.Len(), nil)}
	r.Grad.AddVec(a.Grad, b.Grad)
	if a.Hess != nil {
		r.Hess = mat.NewSymDense(a.Grad.Len(), nil)
		r.Hess.AddSym(a.Hess, b.Hess)
	}
	return r
}

// Sub returns a - b.
func (a Scalar) Sub(b Scalar) Scalar {
	r := Scalar{Val: a.Val - b.Val, Grad: mat.NewVecDense(a.Grad.Len(), nil)}
	r.Grad.SubVec(a.Grad, b.Grad)
	if a.Hess != nil {
		n := a.Grad.Len()
		neg := mat.NewSymDense(n, nil)
		neg.ScaleSym(-1, b.Hess)
		r.Hess = mat.NewSymDense(n, nil)
		r.Hess.AddSym(a.Hess, neg)
	}
	return r
}

// Scale returns s * a for a constant s.
func (a Scalar) Scale(s float64) Scalar {
	r := Scalar{Val: s * a.Val, Grad: mat.NewVecDense(a.Grad.Len(), nil)}
	r.Grad.ScaleVec(s, a.Grad)
	if a.Hess != nil {
		r.Hess = mat.NewSymDense(a.Grad.Len(), nil)
		r.Hess.ScaleSym(s, a.Hess)
	}
	return r
}

// Mul returns a * b.
//
//	∇(ab) = a∇b + b∇a
//	∇²(ab) = a∇²b + b∇²a + ∇a∇bᵀ + ∇b∇aᵀ
func (a Scalar) Mul(b Scalar) Scalar {
	n := a.Grad.Len()
	r := Scalar{Val: a.Val * b.Val, Grad: mat.NewVecDense(n, nil)}
	r.Grad.ScaleVec(a.Val, b.Grad)
	r.Grad.AddScaledVec(r.Grad, b.Val, a.Grad)
	if a.Hess != nil {
		ha := mat.NewSymDense(n, nil)
		ha.ScaleSym(b.Val, a.Hess)
		hb := mat.NewSymDense(n, nil)
		hb.ScaleSym(a.Val, b.Hess)
		sum := mat.NewSymDense(n, nil)
		sum.AddSym(ha, hb)
		r.Hess = mat.NewSymDense(n, nil)
		r.Hess.RankTwo(sum, 1, a.Grad, b.Grad)
	}
	return r
}

// Square returns a * a.
func (a Scalar) Square() Scalar {
	return a.Mul(a)
}

// Inv returns 1 / a.
//
//	∇(1/a) = -∇a / a²
//	∇²(1/a) = -∇²a / a² + 2∇a∇aᵀ / a³
func (a Scalar) Inv() Scalar {
	n := a.Grad.Len()
	inv := 1 / a.Val
	inv2 := inv * inv
	r := Scalar{Val: inv, Grad: mat.NewVecDense(n, nil)}
	r.Grad.ScaleVec(-inv2, a.Grad)
	if a.Hess != nil {
		h := mat.NewSymDense(n, nil)
		h.ScaleSym(-inv2, a.Hess)
		r.Hess = mat.NewSymDense(n, nil)
		r.Hess.SymRankOne(h, 2*inv2*inv, a.Grad)
	}
	return r
}

// Div returns a / b.
func (a Scalar) Div(b Scalar) Scalar {
	return a.Mul(b.Inv())
}

// GradSlice copies the gradient into a new slice.
func (a Scalar) GradSlice() []float64 {
	out := make([]float64, a.Grad.Len())
	for i := range out {
		out[i] = a.Grad.AtVec(i)
	}
	return out
}

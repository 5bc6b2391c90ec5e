package autodiff

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Vec3 is a 3-vector of Scalars.
type Vec3 [3]Scalar

// Point lifts a point into the space. Its first dim coordinates become the
// variables offset, offset+1, ...; remaining coordinates are constants, which
// embeds 2D problems in the z=0 plane.
func (s Space) Point(p v3.Vec, offset, dim int) Vec3 {
	coords := [3]float64{p.X, p.Y, p.Z}
	var out Vec3
	for c := 0; c < 3; c++ {
		if c < dim {
			out[c] = s.Var(offset+c, coords[c])
		} else {
			out[c] = s.Const(coords[c])
		}
	}
	return out
}

// Points lifts a list of points; point k owns variables [k*dim, (k+1)*dim).
func (s Space) Points(ps []v3.Vec, dim int) []Vec3 {
	out := make([]Vec3, len(ps))
	for k, p := range ps {
		out[k] = s.Point(p, k*dim, dim)
	}
	return out
}

// Sub returns a - b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a[0].Sub(b[0]), a[1].Sub(b[1]), a[2].Sub(b[2])}
}

// Dot returns a · b.
func (a Vec3) Dot(b Vec3) Scalar {
	return a[0].Mul(b[0]).Add(a[1].Mul(b[1])).Add(a[2].Mul(b[2]))
}

// Cross returns a × b.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a[1].Mul(b[2]).Sub(a[2].Mul(b[1])),
		a[2].Mul(b[0]).Sub(a[0].Mul(b[2])),
		a[0].Mul(b[1]).Sub(a[1].Mul(b[0])),
	}
}

// SquaredNorm returns a · a.
func (a Vec3) SquaredNorm() Scalar {
	return a.Dot(a)
}

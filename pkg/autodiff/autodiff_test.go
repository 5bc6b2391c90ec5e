package autodiff

import (
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRule(t *testing.T) {
	s := NewSpace(2, true)
	x := s.Var(0, 3)
	y := s.Var(1, 5)

	// f = x² y
	f := x.Mul(x).Mul(y)

	assert.InDelta(t, 45.0, f.Val, 1e-12)
	assert.InDelta(t, 30.0, f.Grad.AtVec(0), 1e-12) // 2xy
	assert.InDelta(t, 9.0, f.Grad.AtVec(1), 1e-12)  // x²
	assert.InDelta(t, 10.0, f.Hess.At(0, 0), 1e-12) // 2y
	assert.InDelta(t, 6.0, f.Hess.At(0, 1), 1e-12)  // 2x
	assert.InDelta(t, 0.0, f.Hess.At(1, 1), 1e-12)
}

func TestQuotientRule(t *testing.T) {
	s := NewSpace(2, true)
	x := s.Var(0, 2)
	y := s.Var(1, 4)

	// f = x / y
	f := x.Div(y)

	assert.InDelta(t, 0.5, f.Val, 1e-12)
	assert.InDelta(t, 0.25, f.Grad.AtVec(0), 1e-12)    // 1/y
	assert.InDelta(t, -0.125, f.Grad.AtVec(1), 1e-12)  // -x/y²
	assert.InDelta(t, 0.0, f.Hess.At(0, 0), 1e-12)     // 0
	assert.InDelta(t, -0.0625, f.Hess.At(0, 1), 1e-12) // -1/y²
	assert.InDelta(t, 0.0625, f.Hess.At(1, 1), 1e-12)  // 2x/y³
}

func TestFirstOrderOnly(t *testing.T) {
	s := NewSpace(1, false)
	x := s.Var(0, 2)
	f := x.Square().Scale(3).Sub(s.Const(1))

	require.Nil(t, f.Hess)
	assert.InDelta(t, 11.0, f.Val, 1e-12)
	assert.InDelta(t, 12.0, f.Grad.AtVec(0), 1e-12)
	assert.Equal(t, []float64{12}, f.GradSlice())
}

func TestVec3CrossAndEmbedding(t *testing.T) {
	s := NewSpace(4, true)
	pts := s.Points([]v3.Vec{{X: 1, Y: 0, Z: 7}, {X: 0, Y: 1, Z: 7}}, 2)

	// z coordinates are constants in a 2D embedding.
	assert.Equal(t, 0.0, pts[0][2].Grad.AtVec(0))

	c := pts[0].Cross(pts[1])
	assert.InDelta(t, 1.0, c[2].Val, 1e-12)

	// d(c_z)/d(a_x) = b_y
	assert.InDelta(t, 1.0, c[2].Grad.AtVec(0), 1e-12)

	n := pts[0].Sub(pts[1]).SquaredNorm()
	assert.InDelta(t, 2.0, n.Val, 1e-12)
	assert.InDelta(t, 2.0, n.Hess.At(0, 0), 1e-12)
	assert.InDelta(t, -2.0, n.Hess.At(0, 2), 1e-12)
}

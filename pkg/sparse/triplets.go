// Package sparse holds the coordinate-format (triplet) matrix used to
// assemble contact Hessians. Duplicate entries are summed on conversion.
package sparse

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Triplets is a square n×n matrix in coordinate format.
type Triplets struct {
	N    int
	Rows []int
	Cols []int
	Vals []float64
}

// New returns an empty n×n matrix.
func New(n int) *Triplets {
	return &Triplets{N: n}
}

// Len returns the number of stored entries, duplicates included.
func (t *Triplets) Len() int { return len(t.Vals) }

// Add appends entry (i, j) += v.
func (t *Triplets) Add(i, j int, v float64) {
	t.Rows = append(t.Rows, i)
	t.Cols = append(t.Cols, j)
	t.Vals = append(t.Vals, v)
}

// AddDense scatters a local dense block into the matrix, mapping local index
// k to global index idx[k].
func (t *Triplets) AddDense(idx []int, m mat.Matrix) {
	r, c := m.Dims()
	if r != len(idx) || c != len(idx) {
		panic(fmt.Sprintf("sparse: block is %dx%d, want %d", r, c, len(idx)))
	}
	for a := 0; a < r; a++ {
		for b := 0; b < c; b++ {
			if v := m.At(a, b); v != 0 {
				t.Add(idx[a], idx[b], v)
			}
		}
	}
}

// Append adds every entry of o.
func (t *Triplets) Append(o *Triplets) {
	t.Rows = append(t.Rows, o.Rows...)
	t.Cols = append(t.Cols, o.Cols...)
	t.Vals = append(t.Vals, o.Vals...)
}

// Scale multiplies every entry by s.
func (t *Triplets) Scale(s float64) {
	for i := range t.Vals {
		t.Vals[i] *= s
	}
}

// Remap returns a copy of size n whose indices pass through f.
func (t *Triplets) Remap(n int, f func(int) int) *Triplets {
	out := &Triplets{
		N:    n,
		Rows: make([]int, len(t.Rows)),
		Cols: make([]int, len(t.Cols)),
		Vals: append([]float64(nil), t.Vals...),
	}
	for k := range t.Rows {
		out.Rows[k] = f(t.Rows[k])
		out.Cols[k] = f(t.Cols[k])
	}
	return out
}

// Dense sums the entries into a dense symmetric matrix. Off-diagonal entries
// are averaged with their transpose.
func (t *Triplets) Dense() *mat.SymDense {
	full := mat.NewDense(t.N, t.N, nil)
	for k, v := range t.Vals {
		i, j := t.Rows[k], t.Cols[k]
		full.Set(i, j, full.At(i, j)+v)
	}
	out := mat.NewSymDense(t.N, nil)
	for i := 0; i < t.N; i++ {
		for j := i; j < t.N; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out
}

// MulVec returns t·x without densifying.
func (t *Triplets) MulVec(x []float64) []float64 {
	if len(x) != t.N {
		panic(fmt.Sprintf("sparse: vector length %d, want %d", len(x), t.N))
	}
	y := make([]float64, t.N)
	for k, v := range t.Vals {
		y[t.Rows[k]] += v * x[t.Cols[k]]
	}
	return y
}

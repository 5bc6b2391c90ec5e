package mesh

import (
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/contactkit/pkg/sparse"
)

func vec(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

func square() [][3]v3.Vec {
	a, b, c, d := vec(0, 0, 0), vec(1, 0, 0), vec(1, 1, 0), vec(0, 1, 0)
	return [][3]v3.Vec{{a, b, c}, {a, c, d}}
}

func TestFromTrianglesWeldsAndExtractsEdges(t *testing.T) {
	m, err := FromTriangles(square(), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Dim())
	assert.Equal(t, 4, m.NumVertices())
	assert.Len(t, m.Faces(), 2)
	assert.Len(t, m.Edges(), 5)
	assert.Equal(t, 12, m.NumDOF())
}

func TestFromTrianglesDropsDegenerates(t *testing.T) {
	tris := append(square(),
		[3]v3.Vec{vec(5, 5, 5), vec(6, 5, 5), vec(7, 5, 5)},     // collinear
		[3]v3.Vec{vec(0, 0, 0), vec(1e-12, 0, 0), vec(0, 1, 0)}, // welded corners
	)
	m, err := FromTriangles(tris, 1e-9)
	require.NoError(t, err)
	assert.Len(t, m.Faces(), 2)
	// Vertices only referenced by dropped faces are removed.
	assert.Equal(t, 4, m.NumVertices())
}

func TestNewRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		dim   int
		edges [][2]int
		faces [][3]int
	}{
		{"bad dimension", 4, nil, nil},
		{"edge out of range", 3, [][2]int{{0, 9}}, nil},
		{"self edge", 3, [][2]int{{1, 1}}, nil},
		{"faces in 2D", 2, nil, [][3]int{{0, 1, 2}}},
		{"repeated face vertex", 3, nil, [][3]int{{0, 0, 1}}},
	}
	rest := []v3.Vec{vec(0, 0, 0), vec(1, 0, 0), vec(0, 1, 0)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.dim, rest, tt.edges, tt.faces)
			assert.ErrorIs(t, err, ErrInvalidMesh)
		})
	}
}

func TestEmbeddedCoordinateMaps(t *testing.T) {
	// Two surface vertices living at full vertices 3 and 1 of a 4-vertex mesh.
	m, err := NewEmbedded(2, 4, []int{3, 1},
		[]v3.Vec{vec(0, 0, 9), vec(1, 0, 0)},
		[][2]int{{0, 1}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, m.NumDOF())
	assert.Equal(t, 4, m.NumSurfaceDOF())

	x := []float64{0, 0, 0.5, 0.5, 0, 0, 2, 3}
	V := m.DisplacedSurface(x)
	assert.Equal(t, vec(2, 3, 0), V[0]) // z is flattened in 2D
	assert.Equal(t, vec(1.5, 0.5, 0), V[1])

	g := m.ToFullGradient([]float64{1, 2, 3, 4})
	assert.Equal(t, []float64{0, 0, 3, 4, 0, 0, 1, 2}, g)

	h := sparse.New(4)
	h.Add(0, 3, 7)
	full := m.ToFullHessian(h)
	assert.Equal(t, 8, full.N)
	assert.Equal(t, []int{6}, full.Rows)
	assert.Equal(t, []int{3}, full.Cols)

	assert.Panics(t, func() { m.DisplacedSurface([]float64{1}) })
}

func TestMerge(t *testing.T) {
	a, err := FromTriangles(square(), 0)
	require.NoError(t, err)
	shifted := square()
	for i := range shifted {
		for k := range shifted[i] {
			shifted[i][k].Z = 1
		}
	}
	b, err := FromTriangles(shifted, 0)
	require.NoError(t, err)

	m, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, 8, m.NumVertices())
	assert.Equal(t, 8, m.NumFullVertices())
	assert.Len(t, m.Faces(), 4)
	assert.Len(t, m.Edges(), 10)
	assert.Equal(t, [3]int{4, 5, 6}, m.Faces()[2])
	assert.Equal(t, 4, m.FullIndex(4))

	diag := BoundingBoxDiagonal(m.Rest())
	assert.InDelta(t, 3.0, diag*diag, 1e-12)

	_, err = Merge()
	assert.ErrorIs(t, err, ErrInvalidMesh)
}

func TestAdjacency(t *testing.T) {
	m, err := FromTriangles(square(), 0)
	require.NoError(t, err)
	assert.True(t, m.FaceHasVertex(0, 0))
	for e := range m.Edges() {
		assert.True(t, m.EdgeFaceShareVertex(e, 0))
	}
	assert.True(t, m.EdgesShareVertex(0, 1))
}

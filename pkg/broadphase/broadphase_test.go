package broadphase

import (
	"math/rand"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/mesh"
)

func vec(x, y, z float64) v3.Vec { return v3.Vec{X: x, Y: y, Z: z} }

func randomBoxes(r *rand.Rand, n int, flat bool) []geom.AABB {
	out := make([]geom.AABB, n)
	for i := range out {
		p := vec(r.Float64()*10, r.Float64()*10, r.Float64()*10)
		s := vec(r.Float64(), r.Float64(), r.Float64())
		if flat {
			p.Z, s.Z = 0, 0
		}
		out[i] = geom.BoxOf(p, p.Add(s))
	}
	return out
}

func TestMethodsMatchBruteForce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	a := randomBoxes(r, 300, false)
	b := randomBoxes(r, 250, false)
	flatA := randomBoxes(r, 200, true)
	flatB := randomBoxes(r, 200, true)

	ref, err := New(BruteForce, 1)
	require.NoError(t, err)
	want := ref.Overlaps(a, b)
	wantFlat := ref.Overlaps(flatA, flatB)
	require.NotEmpty(t, want)
	require.NotEmpty(t, wantFlat)

	for _, m := range Methods {
		for _, workers := range []int{1, 4} {
			d, err := New(m, workers)
			require.NoError(t, err)
			assert.Equal(t, m, d.Method())
			assert.Equal(t, want, d.Overlaps(a, b), "%s with %d workers", m, workers)
			assert.Equal(t, wantFlat, d.Overlaps(flatA, flatB), "%s (2D) with %d workers", m, workers)
		}
	}
}

func TestHashGridOverflowsLargeBoxes(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	small := randomBoxes(r, 400, false)
	big := geom.BoxOf(vec(-50, -50, -50), vec(50, 50, 50))
	a := append([]geom.AABB{big}, small[:200]...)
	b := append(append([]geom.AABB(nil), small[200:]...), big)

	d := &hashGrid{}
	size := d.cellSize(a, b)
	assert.Greater(t, cellCount(big, size), float64(maxCellsPerBox))

	g := d.index(b, size)
	assert.Equal(t, []int{len(b) - 1}, g.overflow)
	entries := 0
	for _, js := range g.table {
		assert.NotContains(t, js, len(b)-1)
		entries += len(js)
	}
	assert.LessOrEqual(t, entries, (len(b)-1)*maxCellsPerBox)

	ref, err := New(BruteForce, 1)
	require.NoError(t, err)
	assert.Equal(t, ref.Overlaps(a, b), d.Overlaps(a, b))
}

func TestTouchingBoxesOverlap(t *testing.T) {
	a := []geom.AABB{geom.BoxOf(vec(0, 0, 0), vec(1, 1, 1))}
	b := []geom.AABB{geom.BoxOf(vec(1, 0, 0), vec(2, 1, 1)), geom.EmptyAABB()}
	for _, m := range Methods {
		d, err := New(m, 0)
		require.NoError(t, err)
		assert.Equal(t, []Pair{{0, 0}}, d.Overlaps(a, b), string(m))
	}
}

func TestUnknownMethod(t *testing.T) {
	_, err := New(Method("gpu"), 0)
	assert.Error(t, err)
	assert.False(t, Method("gpu").Valid())
	assert.True(t, HashGrid.Valid())
	assert.False(t, SweepAndTiniestQueue.ReusesCandidates())
	assert.True(t, SweepAndPrune.ReusesCandidates())
}

// twoSquares returns two unit squares in z=0 and z=gap, each split into two
// triangles.
func twoSquares(t *testing.T, gap float64) *mesh.CollisionMesh {
	t.Helper()
	var tris [][3]v3.Vec
	for _, z := range []float64{0, gap} {
		a, b, c, d := vec(0, 0, z), vec(1, 0, z), vec(1, 1, z), vec(0, 1, z)
		tris = append(tris, [3]v3.Vec{a, b, c}, [3]v3.Vec{a, c, d})
	}
	m, err := mesh.FromTriangles(tris, 0)
	require.NoError(t, err)
	return m
}

func TestBuildExcludesAdjacentPairs(t *testing.T) {
	m := twoSquares(t, 0.1)
	d, err := New(HashGrid, 0)
	require.NoError(t, err)

	c := Build(d, m, m.Rest(), nil, 0.06)
	require.NotZero(t, c.Len())
	assert.Empty(t, c.EV)
	for _, fv := range c.FV {
		assert.False(t, m.FaceHasVertex(fv.Face, fv.Vertex))
	}
	for _, ee := range c.EE {
		assert.Less(t, ee.A, ee.B)
		assert.False(t, m.EdgesShareVertex(ee.A, ee.B))
	}

	// Every cross-square vertex-face pair is a candidate (4 vertices against
	// 2 faces, both ways) plus the opposite corner of each triangle.
	assert.Len(t, c.FV, 20)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestBuildFarApartIsEmpty(t *testing.T) {
	m, err := mesh.FromTriangles([][3]v3.Vec{
		{vec(0, 0, 0), vec(1, 0, 0), vec(0, 1, 0)},
		{vec(0, 0, 5), vec(1, 0, 5), vec(0, 1, 5)},
	}, 0)
	require.NoError(t, err)
	for _, method := range Methods {
		d, err := New(method, 0)
		require.NoError(t, err)
		c := Build(d, m, m.Rest(), nil, 0.01)
		assert.Zero(t, c.Len(), string(method))
	}
}

func TestBuildSweptCatchesTunnelling(t *testing.T) {
	m := twoSquares(t, 5)
	V1 := append([]v3.Vec(nil), m.Rest()...)
	// Drop the upper square through the lower one.
	for i := range V1 {
		if V1[i].Z > 1 {
			V1[i].Z = -5
		}
	}
	d, err := New(SweepAndPrune, 0)
	require.NoError(t, err)
	c := Build(d, m, m.Rest(), V1, 0)
	assert.Len(t, c.FV, 20)

	static := Build(d, m, m.Rest(), nil, 0)
	assert.Len(t, static.FV, 4)
}

// plateGrid returns an n×n grid of unit cells in z=0 as triangles.
func plateGrid(n int) [][3]v3.Vec {
	var tris [][3]v3.Vec
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x, y := float64(i), float64(j)
			a, b, c, d := vec(x, y, 0), vec(x+1, y, 0), vec(x+1, y+1, 0), vec(x, y+1, 0)
			tris = append(tris, [3]v3.Vec{a, b, c}, [3]v3.Vec{a, c, d})
		}
	}
	return tris
}

func TestBuildLongSweepOverPlate(t *testing.T) {
	tris := append(plateGrid(12), [3]v3.Vec{vec(11, 11, 2), vec(11.05, 11, 2), vec(11, 11.05, 2)})
	m, err := mesh.FromTriangles(tris, 0)
	require.NoError(t, err)
	V1 := append([]v3.Vec(nil), m.Rest()...)
	for i := range V1 {
		if V1[i].Z > 1 {
			V1[i] = V1[i].Add(vec(-8, -8, -4))
		}
	}

	ref, err := New(BruteForce, 0)
	require.NoError(t, err)
	want := Build(ref, m, m.Rest(), V1, 0)
	require.NotEmpty(t, want.FV)
	for _, method := range Methods {
		d, err := New(method, 0)
		require.NoError(t, err)
		assert.Equal(t, want, Build(d, m, m.Rest(), V1, 0), string(method))
	}
}

func TestBuild2D(t *testing.T) {
	// Two horizontal segments, one above the other.
	m, err := mesh.New(2,
		[]v3.Vec{vec(0, 0, 0), vec(1, 0, 0), vec(0, 0.1, 0), vec(1, 0.1, 0)},
		[][2]int{{0, 1}, {2, 3}}, nil)
	require.NoError(t, err)
	d, err := New(BruteForce, 0)
	require.NoError(t, err)

	c := Build(d, m, m.Rest(), nil, 0.06)
	assert.Equal(t, []EdgeVertex{{0, 2}, {0, 3}, {1, 0}, {1, 1}}, c.EV)
	assert.Empty(t, c.EE)
	assert.Equal(t, []EdgeEdge{{0, 1}}, EdgePairs(d, m, []v3.Vec{vec(0, 0, 0), vec(1, 0, 0), vec(0.5, -1, 0), vec(0.5, 1, 0)}))
}

func TestEdgeFaces(t *testing.T) {
	m := twoSquares(t, 0.1)
	d, err := New(BruteForce, 0)
	require.NoError(t, err)
	assert.Empty(t, EdgeFaces(d, m, m.Rest()))

	V := append([]v3.Vec(nil), m.Rest()...)
	for i := range V {
		if V[i].Z > 0 {
			V[i].Z = 0
		}
	}
	assert.NotEmpty(t, EdgeFaces(d, m, V))
}

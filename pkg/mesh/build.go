package mesh

import (
	"fmt"
	"math"
	"sort"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultWeldTolerance is the distance under which triangle-soup corners are
// merged into one vertex.
const DefaultWeldTolerance = 1e-9

// FromTriangles builds a 3D surface from a triangle soup. Corners closer than
// tol are welded, zero-area triangles are dropped and edges are extracted
// from the remaining faces. tol <= 0 selects DefaultWeldTolerance.
func FromTriangles(tris [][3]v3.Vec, tol float64) (*CollisionMesh, error) {
	if tol <= 0 {
		tol = DefaultWeldTolerance
	}
	w := newWelder(tol)
	faces := make([][3]int, 0, len(tris))
	for _, t := range tris {
		f := [3]int{w.index(t[0]), w.index(t[1]), w.index(t[2])}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		a, b, c := w.verts[f[0]], w.verts[f[1]], w.verts[f[2]]
		if b.Sub(a).Cross(c.Sub(a)).Length2() == 0 {
			continue
		}
		faces = append(faces, f)
	}
	verts, faces := compact(w.verts, faces)
	return New(3, verts, FaceEdges(faces), faces)
}

// FaceEdges returns the unique undirected edges of faces, sorted.
func FaceEdges(faces [][3]int) [][2]int {
	set := make(map[[2]int]struct{}, 3*len(faces)/2)
	for _, f := range faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a > b {
				a, b = b, a
			}
			set[[2]int{a, b}] = struct{}{}
		}
	}
	edges := make([][2]int, 0, len(set))
	for e := range set {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i][0] != edges[j][0] {
			return edges[i][0] < edges[j][0]
		}
		return edges[i][1] < edges[j][1]
	})
	return edges
}

// compact drops vertices no face references and renumbers the rest.
func compact(verts []v3.Vec, faces [][3]int) ([]v3.Vec, [][3]int) {
	remap := make([]int, len(verts))
	for i := range remap {
		remap[i] = -1
	}
	var out []v3.Vec
	for i, f := range faces {
		for k, v := range f {
			if remap[v] < 0 {
				remap[v] = len(out)
				out = append(out, verts[v])
			}
			faces[i][k] = remap[v]
		}
	}
	return out, faces
}

type welder struct {
	tol   float64
	cells map[[3]int64][]int
	verts []v3.Vec
}

func newWelder(tol float64) *welder {
	return &welder{tol: tol, cells: make(map[[3]int64][]int)}
}

func (w *welder) cell(p v3.Vec) [3]int64 {
	return [3]int64{
		int64(math.Floor(p.X / w.tol)),
		int64(math.Floor(p.Y / w.tol)),
		int64(math.Floor(p.Z / w.tol)),
	}
}

// index returns the id of an existing vertex within tol of p, or adds p.
func (w *welder) index(p v3.Vec) int {
	c := w.cell(p)
	tol2 := w.tol * w.tol
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, id := range w.cells[[3]int64{c[0] + dx, c[1] + dy, c[2] + dz}] {
					if w.verts[id].Sub(p).Length2() <= tol2 {
						return id
					}
				}
			}
		}
	}
	id := len(w.verts)
	w.verts = append(w.verts, p)
	w.cells[c] = append(w.cells[c], id)
	return id
}

// Merge concatenates several surfaces into one. Their full meshes are laid
// out one after another in argument order.
func Merge(parts ...*CollisionMesh) (*CollisionMesh, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: nothing to merge", ErrInvalidMesh)
	}
	dim := parts[0].dim
	var (
		rest    []v3.Vec
		toFull  []int
		edges   [][2]int
		faces   [][3]int
		numFull int
	)
	for i, p := range parts {
		if p.dim != dim {
			return nil, fmt.Errorf("%w: part %d has dimension %d, want %d", ErrInvalidMesh, i, p.dim, dim)
		}
		off := len(rest)
		rest = append(rest, p.rest...)
		for _, f := range p.toFull {
			toFull = append(toFull, f+numFull)
		}
		for _, e := range p.edges {
			edges = append(edges, [2]int{e[0] + off, e[1] + off})
		}
		for _, f := range p.faces {
			faces = append(faces, [3]int{f[0] + off, f[1] + off, f[2] + off})
		}
		numFull += p.numFull
	}
	return NewEmbedded(dim, numFull, toFull, rest, edges, faces)
}

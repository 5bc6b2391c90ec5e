// Package mesh defines CollisionMesh, the boundary surface that takes part
// in contact.
//
// A CollisionMesh holds the rest positions of its surface vertices, the map
// from each surface vertex to a vertex of the full simulation mesh, and the
// surface connectivity (edges in 2D and 3D, triangles in 3D). Solution
// vectors are full-mesh displacements laid out as x[v*dim+c]; the mesh turns
// them into displaced surface positions and maps surface derivatives back to
// full degrees of freedom. A CollisionMesh is immutable after construction.
package mesh

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/sparse"
)

// ErrInvalidMesh is returned for malformed connectivity or dimensions.
var ErrInvalidMesh = errors.New("invalid collision mesh")

// CollisionMesh is the contact surface of a body (or several merged bodies).
type CollisionMesh struct {
	dim     int
	rest    []v3.Vec
	toFull  []int
	numFull int
	edges   [][2]int
	faces   [][3]int
}

// New builds a surface whose vertices are the full mesh (identity map).
// In 2D faces must be empty and every z coordinate is ignored.
func New(dim int, rest []v3.Vec, edges [][2]int, faces [][3]int) (*CollisionMesh, error) {
	toFull := make([]int, len(rest))
	for i := range toFull {
		toFull[i] = i
	}
	return NewEmbedded(dim, len(rest), toFull, rest, edges, faces)
}

// NewEmbedded builds a surface embedded in a full mesh of numFull vertices;
// surface vertex i is full vertex toFull[i].
func NewEmbedded(dim, numFull int, toFull []int, rest []v3.Vec, edges [][2]int, faces [][3]int) (*CollisionMesh, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidMesh, dim)
	}
	if dim == 2 && len(faces) > 0 {
		return nil, fmt.Errorf("%w: 2D mesh with %d faces", ErrInvalidMesh, len(faces))
	}
	if len(toFull) != len(rest) {
		return nil, fmt.Errorf("%w: %d surface vertices but %d full indices", ErrInvalidMesh, len(rest), len(toFull))
	}
	seen := make(map[int]bool, len(toFull))
	for i, f := range toFull {
		if f < 0 || f >= numFull {
			return nil, fmt.Errorf("%w: surface vertex %d maps to %d of %d", ErrInvalidMesh, i, f, numFull)
		}
		if seen[f] {
			return nil, fmt.Errorf("%w: full vertex %d used twice", ErrInvalidMesh, f)
		}
		seen[f] = true
	}
	n := len(rest)
	for i, e := range edges {
		if !inRange(n, e[0], e[1]) || e[0] == e[1] {
			return nil, fmt.Errorf("%w: edge %d = %v", ErrInvalidMesh, i, e)
		}
	}
	for i, f := range faces {
		if !inRange(n, f[0], f[1], f[2]) || f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			return nil, fmt.Errorf("%w: face %d = %v", ErrInvalidMesh, i, f)
		}
	}

	m := &CollisionMesh{
		dim:     dim,
		rest:    append([]v3.Vec(nil), rest...),
		toFull:  append([]int(nil), toFull...),
		numFull: numFull,
		edges:   append([][2]int(nil), edges...),
		faces:   append([][3]int(nil), faces...),
	}
	if dim == 2 {
		for i := range m.rest {
			m.rest[i].Z = 0
		}
	}
	return m, nil
}

func inRange(n int, idx ...int) bool {
	for _, i := range idx {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Dim returns the spatial dimension (2 or 3).
func (m *CollisionMesh) Dim() int { return m.dim }

// NumVertices returns the number of surface vertices.
func (m *CollisionMesh) NumVertices() int { return len(m.rest) }

// NumFullVertices returns the number of vertices of the full mesh.
func (m *CollisionMesh) NumFullVertices() int { return m.numFull }

// NumDOF returns the length of a full solution vector.
func (m *CollisionMesh) NumDOF() int { return m.numFull * m.dim }

// NumSurfaceDOF returns the length of a surface gradient.
func (m *CollisionMesh) NumSurfaceDOF() int { return len(m.rest) * m.dim }

// Rest returns the rest positions. The slice must not be modified.
func (m *CollisionMesh) Rest() []v3.Vec { return m.rest }

// Edges returns the surface edges. The slice must not be modified.
func (m *CollisionMesh) Edges() [][2]int { return m.edges }

// Faces returns the surface triangles. The slice must not be modified.
func (m *CollisionMesh) Faces() [][3]int { return m.faces }

// FullIndex returns the full-mesh vertex of surface vertex i.
func (m *CollisionMesh) FullIndex(i int) int { return m.toFull[i] }

// IsEmpty reports whether the mesh has no primitives that can collide.
func (m *CollisionMesh) IsEmpty() bool {
	return len(m.rest) == 0 || len(m.edges) == 0
}

// ---------------------------------------------------------------------------
// Coordinate maps
// ---------------------------------------------------------------------------

func (m *CollisionMesh) checkDOF(x []float64) {
	if len(x) != m.NumDOF() {
		panic(fmt.Sprintf("mesh: solution has %d entries, want %d", len(x), m.NumDOF()))
	}
}

// DisplacedSurface returns rest + x restricted to the surface.
func (m *CollisionMesh) DisplacedSurface(x []float64) []v3.Vec {
	m.checkDOF(x)
	out := make([]v3.Vec, len(m.rest))
	for i, p := range m.rest {
		base := m.toFull[i] * m.dim
		p.X += x[base]
		p.Y += x[base+1]
		if m.dim == 3 {
			p.Z += x[base+2]
		}
		out[i] = p
	}
	return out
}

// ToFullGradient scatters a surface gradient into a full DOF vector.
func (m *CollisionMesh) ToFullGradient(g []float64) []float64 {
	if len(g) != m.NumSurfaceDOF() {
		panic(fmt.Sprintf("mesh: surface gradient has %d entries, want %d", len(g), m.NumSurfaceDOF()))
	}
	out := make([]float64, m.NumDOF())
	for i := range m.rest {
		for c := 0; c < m.dim; c++ {
			out[m.toFull[i]*m.dim+c] += g[i*m.dim+c]
		}
	}
	return out
}

// ToFullHessian re-indexes a surface Hessian to full DOFs.
func (m *CollisionMesh) ToFullHessian(h *sparse.Triplets) *sparse.Triplets {
	return h.Remap(m.NumDOF(), func(k int) int {
		return m.toFull[k/m.dim]*m.dim + k%m.dim
	})
}

// BoundingBoxDiagonal returns the diagonal length of the box around V.
func BoundingBoxDiagonal(V []v3.Vec) float64 {
	return geom.BoxOf(V...).Diagonal()
}

// ---------------------------------------------------------------------------
// Adjacency
// ---------------------------------------------------------------------------

// EdgesShareVertex reports whether edges i and j have a common endpoint.
func (m *CollisionMesh) EdgesShareVertex(i, j int) bool {
	a, b := m.edges[i], m.edges[j]
	return a[0] == b[0] || a[0] == b[1] || a[1] == b[0] || a[1] == b[1]
}

// EdgeHasVertex reports whether v is an endpoint of edge e.
func (m *CollisionMesh) EdgeHasVertex(e, v int) bool {
	return m.edges[e][0] == v || m.edges[e][1] == v
}

// FaceHasVertex reports whether v is a corner of face f.
func (m *CollisionMesh) FaceHasVertex(f, v int) bool {
	t := m.faces[f]
	return t[0] == v || t[1] == v || t[2] == v
}

// EdgeFaceShareVertex reports whether edge e and face f have a common vertex.
func (m *CollisionMesh) EdgeFaceShareVertex(e, f int) bool {
	return m.FaceHasVertex(f, m.edges[e][0]) || m.FaceHasVertex(f, m.edges[e][1])
}

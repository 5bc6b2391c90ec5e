package broadphase

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/mesh"
)

// EdgeVertex pairs a surface edge with a surface vertex (2D contact).
type EdgeVertex struct {
	Edge, Vertex int
}

// EdgeEdge pairs two surface edges, A < B.
type EdgeEdge struct {
	A, B int
}

// FaceVertex pairs a surface triangle with a surface vertex (3D contact).
type FaceVertex struct {
	Face, Vertex int
}

// EdgeFace pairs a surface edge with a surface triangle (3D intersection).
type EdgeFace struct {
	Edge, Face int
}

// Candidates is the result of one broad-phase query. In 2D only EV is
// filled; in 3D EE and FV are.
type Candidates struct {
	EV []EdgeVertex
	EE []EdgeEdge
	FV []FaceVertex
}

// Len returns the total number of candidates.
func (c *Candidates) Len() int {
	return len(c.EV) + len(c.EE) + len(c.FV)
}

// Clear empties the candidate lists.
func (c *Candidates) Clear() {
	c.EV = nil
	c.EE = nil
	c.FV = nil
}

// ---------------------------------------------------------------------------
// Boxes
// ---------------------------------------------------------------------------

// sweep returns the box of V0[i] and, when V1 is set, V1[i] for each index.
func sweep(V0, V1 []v3.Vec, inflation float64, idx ...int) geom.AABB {
	b := geom.EmptyAABB()
	for _, i := range idx {
		b = b.Include(V0[i])
		if V1 != nil {
			b = b.Include(V1[i])
		}
	}
	return b.Inflate(inflation)
}

func vertexBoxes(m *mesh.CollisionMesh, V0, V1 []v3.Vec, r float64) []geom.AABB {
	out := make([]geom.AABB, m.NumVertices())
	for i := range out {
		out[i] = sweep(V0, V1, r, i)
	}
	return out
}

func edgeBoxes(m *mesh.CollisionMesh, V0, V1 []v3.Vec, r float64) []geom.AABB {
	edges := m.Edges()
	out := make([]geom.AABB, len(edges))
	for i, e := range edges {
		out[i] = sweep(V0, V1, r, e[0], e[1])
	}
	return out
}

func faceBoxes(m *mesh.CollisionMesh, V0, V1 []v3.Vec, r float64) []geom.AABB {
	faces := m.Faces()
	out := make([]geom.AABB, len(faces))
	for i, f := range faces {
		out[i] = sweep(V0, V1, r, f[0], f[1], f[2])
	}
	return out
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Build returns the candidates of m whose boxes overlap, each box swept from
// V0 to V1 and grown by inflation. A nil V1 queries the single
// configuration V0. Pairs that share a vertex are never candidates.
func Build(d Detector, m *mesh.CollisionMesh, V0, V1 []v3.Vec, inflation float64) Candidates {
	var c Candidates
	if m.IsEmpty() {
		return c
	}

	vb := vertexBoxes(m, V0, V1, inflation)
	eb := edgeBoxes(m, V0, V1, inflation)

	if m.Dim() == 2 {
		for _, p := range d.Overlaps(eb, vb) {
			if !m.EdgeHasVertex(p.A, p.B) {
				c.EV = append(c.EV, EdgeVertex{Edge: p.A, Vertex: p.B})
			}
		}
		return c
	}

	for _, p := range d.Overlaps(eb, eb) {
		if p.A < p.B && !m.EdgesShareVertex(p.A, p.B) {
			c.EE = append(c.EE, EdgeEdge{A: p.A, B: p.B})
		}
	}
	fb := faceBoxes(m, V0, V1, inflation)
	for _, p := range d.Overlaps(fb, vb) {
		if !m.FaceHasVertex(p.A, p.B) {
			c.FV = append(c.FV, FaceVertex{Face: p.A, Vertex: p.B})
		}
	}
	return c
}

// EdgeFaces returns the edge-triangle pairs of a 3D surface whose boxes
// overlap in configuration V, excluding pairs that share a vertex.
func EdgeFaces(d Detector, m *mesh.CollisionMesh, V []v3.Vec) []EdgeFace {
	if m.Dim() != 3 || len(m.Faces()) == 0 {
		return nil
	}
	var out []EdgeFace
	for _, p := range d.Overlaps(edgeBoxes(m, V, nil, 0), faceBoxes(m, V, nil, 0)) {
		if !m.EdgeFaceShareVertex(p.A, p.B) {
			out = append(out, EdgeFace{Edge: p.A, Face: p.B})
		}
	}
	return out
}

// EdgePairs returns the pairs of edges whose boxes overlap in configuration
// V, excluding pairs that share a vertex.
func EdgePairs(d Detector, m *mesh.CollisionMesh, V []v3.Vec) []EdgeEdge {
	eb := edgeBoxes(m, V, nil, 0)
	var out []EdgeEdge
	for _, p := range d.Overlaps(eb, eb) {
		if p.A < p.B && !m.EdgesShareVertex(p.A, p.B) {
			out = append(out, EdgeEdge{A: p.A, B: p.B})
		}
	}
	return out
}

// Package constraint narrows broad-phase candidates to the active contact
// constraints of a configuration.
//
// A constraint is a small tuple of surface vertices together with the
// closed-form squared distance it is measured with (point-point,
// point-line, line-line or point-plane). Candidate pairs are classified by
// their closest features and reduced to the matching constraint kind; pairs
// that reduce to the same constraint (two triangles reporting the same
// vertex-vertex contact, for example) are merged and counted by
// Multiplicity, so the potential summed over constraints equals the
// potential summed over candidates.
package constraint

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/mesh"
	"github.com/chazu/contactkit/pkg/parallel"
)

// Kind is the distance type of a constraint.
type Kind int

const (
	VertexVertex Kind = iota
	EdgeVertex
	EdgeEdge
	FaceVertex
)

func (k Kind) String() string {
	switch k {
	case VertexVertex:
		return "vertex-vertex"
	case EdgeVertex:
		return "edge-vertex"
	case EdgeEdge:
		return "edge-edge"
	case FaceVertex:
		return "face-vertex"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Formula returns the squared-distance formula of the kind.
func (k Kind) Formula() geom.Formula {
	switch k {
	case VertexVertex:
		return geom.PointPoint
	case EdgeVertex:
		return geom.PointLine
	case EdgeEdge:
		return geom.LineLine
	default:
		return geom.PointPlane
	}
}

func kindOf(f geom.Formula) Kind {
	switch f {
	case geom.PointPoint:
		return VertexVertex
	case geom.PointLine:
		return EdgeVertex
	case geom.LineLine:
		return EdgeEdge
	default:
		return FaceVertex
	}
}

// NumVertices returns how many vertices a constraint of this kind reads.
func (k Kind) NumVertices() int { return k.Formula().NumPoints() }

// Constraint is one active contact. Vertex order per kind:
//
//	VertexVertex (v0, v1)
//	EdgeVertex   (v, e0, e1)
//	EdgeEdge     (a0, a1, b0, b1)
//	FaceVertex   (v, t0, t1, t2)
//
// Unused slots are -1.
type Constraint struct {
	Kind         Kind
	Vertices     [4]int
	Multiplicity int
}

// Indices returns the used vertex slots.
func (c Constraint) Indices() []int {
	return c.Vertices[:c.Kind.NumVertices()]
}

// Points gathers the constraint's vertices from V.
func (c Constraint) Points(V []v3.Vec) []v3.Vec {
	idx := c.Indices()
	out := make([]v3.Vec, len(idx))
	for i, v := range idx {
		out[i] = V[v]
	}
	return out
}

// DistanceSq returns the squared distance of the constraint in V.
func (c Constraint) DistanceSq(V []v3.Vec) float64 {
	return c.Kind.Formula().Eval(c.Points(V))
}

// key returns the constraint with its vertices in canonical order. All
// formulas are symmetric under the reorderings applied.
func (c Constraint) key() Constraint {
	k := Constraint{Kind: c.Kind, Vertices: c.Vertices}
	v := &k.Vertices
	switch c.Kind {
	case VertexVertex:
		if v[0] > v[1] {
			v[0], v[1] = v[1], v[0]
		}
	case EdgeVertex:
		if v[1] > v[2] {
			v[1], v[2] = v[2], v[1]
		}
	case EdgeEdge:
		if v[0] > v[1] {
			v[0], v[1] = v[1], v[0]
		}
		if v[2] > v[3] {
			v[2], v[3] = v[3], v[2]
		}
		if v[0] > v[2] || (v[0] == v[2] && v[1] > v[3]) {
			v[0], v[1], v[2], v[3] = v[2], v[3], v[0], v[1]
		}
	case FaceVertex:
		slices.Sort(v[1:4])
	}
	return k
}

// ---------------------------------------------------------------------------
// Set
// ---------------------------------------------------------------------------

// Set is the active constraint set of one configuration.
type Set struct {
	Constraints []Constraint
}

// Len returns the number of distinct constraints.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Constraints)
}

// IsEmpty reports whether no constraint is active.
func (s *Set) IsEmpty() bool { return s.Len() == 0 }

// Count returns how many constraints of kind k the set holds.
func (s *Set) Count(k Kind) int {
	n := 0
	for _, c := range s.Constraints {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// MinimumDistanceSq returns the smallest squared distance over the set in
// configuration V, +Inf when the set is empty.
func (s *Set) MinimumDistanceSq(V []v3.Vec) float64 {
	m := math.Inf(1)
	if s == nil {
		return m
	}
	for _, c := range s.Constraints {
		m = math.Min(m, c.DistanceSq(V))
	}
	return m
}

// ---------------------------------------------------------------------------
// Narrow phase
// ---------------------------------------------------------------------------

// reduce converts a classified primitive pair into a constraint over the
// given vertices.
func reduce(r geom.Reduction, verts [4]int) Constraint {
	c := Constraint{Kind: kindOf(r.Formula), Vertices: [4]int{-1, -1, -1, -1}, Multiplicity: 1}
	for i, k := range r.Points {
		c.Vertices[i] = verts[k]
	}
	return c
}

type slot struct {
	c      Constraint
	active bool
}

// Build returns the constraints of m in configuration V whose distance is
// below dhat, examining only the given candidates.
func Build(m *mesh.CollisionMesh, V []v3.Vec, dhat float64, cands *broadphase.Candidates, workers int) *Set {
	dhat2 := dhat * dhat
	edges, faces := m.Edges(), m.Faces()

	nEV, nEE := len(cands.EV), len(cands.EE)
	slots := make([]slot, cands.Len())
	parallel.For(len(slots), workers, func(start, end int) {
		for i := start; i < end; i++ {
			var (
				d     float64
				r     geom.Reduction
				verts [4]int
			)
			switch {
			case i < nEV:
				ev := cands.EV[i]
				e := edges[ev.Edge]
				verts = [4]int{ev.Vertex, e[0], e[1], -1}
				var t geom.PointEdgeType
				d, t = geom.PointEdgeDistanceSq(V[verts[0]], V[verts[1]], V[verts[2]])
				r = t.Reduce()
			case i < nEV+nEE:
				ee := cands.EE[i-nEV]
				a, b := edges[ee.A], edges[ee.B]
				verts = [4]int{a[0], a[1], b[0], b[1]}
				var t geom.EdgeEdgeType
				d, t = geom.EdgeEdgeDistanceSq(V[verts[0]], V[verts[1]], V[verts[2]], V[verts[3]])
				r = t.Reduce()
			default:
				fv := cands.FV[i-nEV-nEE]
				f := faces[fv.Face]
				verts = [4]int{fv.Vertex, f[0], f[1], f[2]}
				var t geom.PointTriangleType
				d, t = geom.PointTriangleDistanceSq(V[verts[0]], V[verts[1]], V[verts[2]], V[verts[3]])
				r = t.Reduce()
			}
			if d < dhat2 {
				slots[i] = slot{c: reduce(r, verts), active: true}
			}
		}
	})

	set := &Set{}
	index := make(map[Constraint]int)
	for _, s := range slots {
		if !s.active {
			continue
		}
		k := s.c.key()
		if i, ok := index[k]; ok {
			set.Constraints[i].Multiplicity++
			continue
		}
		index[k] = len(set.Constraints)
		k.Multiplicity = 1
		set.Constraints = append(set.Constraints, k)
	}
	return set
}

// Sort orders constraints by kind, then vertices.
func (s *Set) Sort() {
	slices.SortFunc(s.Constraints, func(a, b Constraint) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		for i := range a.Vertices {
			if c := cmp.Compare(a.Vertices[i], b.Vertices[i]); c != 0 {
				return c
			}
		}
		return 0
	})
}

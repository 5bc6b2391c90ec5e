package constraint

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/mesh"
)

// InflationScale divides dhat to get the broad-phase inflation radius. Each
// box grows by dhat/1.99, so pairs up to slightly more than dhat apart are
// always examined.
const InflationScale = 1.99

// Builder maintains the constraint set of one collision mesh and memoizes
// it against the last displaced surface it was built for.
type Builder struct {
	mesh     *mesh.CollisionMesh
	dhat     float64
	detector broadphase.Detector
	workers  int

	last   []v3.Vec
	valid  bool
	set    *Set
	builds int
}

// NewBuilder returns a builder for m at activation distance dhat. The
// detector is used whenever no candidates are supplied.
func NewBuilder(m *mesh.CollisionMesh, dhat float64, d broadphase.Detector, workers int) *Builder {
	return &Builder{mesh: m, dhat: dhat, detector: d, workers: workers, set: &Set{}}
}

// Matches reports whether V is bit-identical to the surface the current set
// was built for.
func (b *Builder) Matches(V []v3.Vec) bool {
	if !b.valid || len(b.last) != len(V) {
		return false
	}
	for i := range V {
		p, q := b.last[i], V[i]
		if math.Float64bits(p.X) != math.Float64bits(q.X) ||
			math.Float64bits(p.Y) != math.Float64bits(q.Y) ||
			math.Float64bits(p.Z) != math.Float64bits(q.Z) {
			return false
		}
	}
	return true
}

// Update makes the set reflect V and reports whether it was rebuilt. A
// matching V returns the memoized set untouched. When cands is nil the
// broad phase runs over V alone.
func (b *Builder) Update(V []v3.Vec, cands *broadphase.Candidates) (*Set, bool) {
	if b.Matches(V) {
		return b.set, false
	}
	if cands == nil {
		c := broadphase.Build(b.detector, b.mesh, V, nil, b.dhat/InflationScale)
		cands = &c
	}
	b.set = Build(b.mesh, V, b.dhat, cands, b.workers)
	b.last = append(b.last[:0], V...)
	b.valid = true
	b.builds++
	return b.set, true
}

// Set returns the current constraint set.
func (b *Builder) Set() *Set { return b.set }

// Surface returns the surface the current set was built for, nil before the
// first build or after Invalidate.
func (b *Builder) Surface() []v3.Vec {
	if !b.valid {
		return nil
	}
	return b.last
}

// Builds returns how many times the narrow phase has run.
func (b *Builder) Builds() int { return b.builds }

// Invalidate forgets the memoized surface so the next Update rebuilds.
func (b *Builder) Invalidate() {
	b.valid = false
}

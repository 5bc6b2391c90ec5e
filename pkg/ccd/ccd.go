// Package ccd bounds trial steps so that no two surface primitives
// interpenetrate along the linear trajectory between two configurations.
//
// Times of impact are computed with additive conservative advancement: the
// primitives advance by a fraction of the current distance over an upper
// bound of their relative speed, which can never skip past first contact.
// A pair is reported as impacting only once it actually closes in: its
// distance drops below a share of the smaller of the starting distance and
// the proximity scale, or the advance per iteration falls under the
// tolerance while the distance still shrinks. Pairs that pass each other
// farther apart than that travel the whole trajectory.
package ccd

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/mesh"
	"github.com/chazu/contactkit/pkg/parallel"
)

// ConservativeRescaling is the share of the distance covered per
// advancement step.
const ConservativeRescaling = 0.9

// Options bounds the per-pair root finding.
type Options struct {
	// Tolerance is the smallest trajectory fraction a pair may advance by
	// while still approaching; below it the pair is treated as impacting.
	Tolerance float64
	// MaxIterations caps the advancement loop; values below 1 mean no cap.
	MaxIterations int
	// Proximity is the contact distance scale (dhat). The advancement stops
	// early once a pair comes within (1-ConservativeRescaling)·Proximity of
	// each other, or of that share of its starting distance when it starts
	// closer. Zero leaves only the tolerance stop.
	Proximity float64
	// Workers for the per-candidate loop; <= 0 uses GOMAXPROCS.
	Workers int
}

// timeOfImpact advances the points of start along dx and returns the first
// fraction in [0, tmax] at which dist gets close to zero. Points [0, split)
// form one primitive, [split, n) the other.
func timeOfImpact(start, end []v3.Vec, split int, dist func([]v3.Vec) float64, tmax float64, o Options) (float64, bool) {
	n := len(start)
	dx := make([]v3.Vec, n)
	var mean v3.Vec
	for i := range start {
		dx[i] = end[i].Sub(start[i])
		mean = mean.Add(dx[i])
	}
	mean = mean.MulScalar(1 / float64(n))

	var maxA, maxB float64
	for i := range dx {
		dx[i] = dx[i].Sub(mean)
		l := dx[i].Length()
		if i < split {
			maxA = math.Max(maxA, l)
		} else {
			maxB = math.Max(maxB, l)
		}
	}
	lp := maxA + maxB
	if lp == 0 {
		return 0, false
	}

	x := append([]v3.Vec(nil), start...)
	d := math.Sqrt(dist(x))
	if d == 0 {
		return 0, true
	}
	var gap float64
	if o.Proximity > 0 {
		gap = (1 - ConservativeRescaling) * math.Min(d, o.Proximity)
	}

	var toi float64
	for iter := 0; o.MaxIterations < 1 || iter < o.MaxIterations; iter++ {
		tl := ConservativeRescaling * d / lp
		// No contact can happen within [toi, toi+tl].
		if toi+tl >= tmax {
			return tmax, false
		}
		for i := range x {
			x[i] = x[i].Add(dx[i].MulScalar(tl))
		}
		next := math.Sqrt(dist(x))
		if toi > 0 && next < gap {
			return toi, true
		}
		if toi > 0 && tl < o.Tolerance && next < d {
			return toi, true
		}
		toi += tl
		d = next
	}
	// Out of iterations: the fraction reached so far is still safe.
	return toi, true
}

// PointEdgeTOI returns the impact fraction of point p against edge (e0, e1).
func PointEdgeTOI(p0, ea0, eb0, p1, ea1, eb1 v3.Vec, tmax float64, o Options) (float64, bool) {
	return timeOfImpact(
		[]v3.Vec{p0, ea0, eb0}, []v3.Vec{p1, ea1, eb1}, 1,
		func(x []v3.Vec) float64 {
			d, _ := geom.PointEdgeDistanceSq(x[0], x[1], x[2])
			return d
		}, tmax, o)
}

// EdgeEdgeTOI returns the impact fraction of edges (a0, a1) and (b0, b1).
func EdgeEdgeTOI(start, end [4]v3.Vec, tmax float64, o Options) (float64, bool) {
	return timeOfImpact(start[:], end[:], 2,
		func(x []v3.Vec) float64 {
			d, _ := geom.EdgeEdgeDistanceSq(x[0], x[1], x[2], x[3])
			return d
		}, tmax, o)
}

// PointTriangleTOI returns the impact fraction of point p against triangle
// (t0, t1, t2); index 0 of start and end is the point.
func PointTriangleTOI(start, end [4]v3.Vec, tmax float64, o Options) (float64, bool) {
	return timeOfImpact(start[:], end[:], 1,
		func(x []v3.Vec) float64 {
			d, _ := geom.PointTriangleDistanceSq(x[0], x[1], x[2], x[3])
			return d
		}, tmax, o)
}

// CollisionFreeStepSize returns the largest fraction of the V0 -> V1
// trajectory every candidate can travel without contact, 1 if no candidate
// ever touches.
func CollisionFreeStepSize(m *mesh.CollisionMesh, cands *broadphase.Candidates, V0, V1 []v3.Vec, o Options) float64 {
	n := cands.Len()
	if n == 0 {
		return 1
	}
	edges, faces := m.Edges(), m.Faces()
	nEV, nEE := len(cands.EV), len(cands.EE)

	tois := make([]float64, n)
	parallel.For(n, o.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			var (
				toi float64
				hit bool
			)
			switch {
			case i < nEV:
				c := cands.EV[i]
				e := edges[c.Edge]
				toi, hit = PointEdgeTOI(
					V0[c.Vertex], V0[e[0]], V0[e[1]],
					V1[c.Vertex], V1[e[0]], V1[e[1]], 1, o)
			case i < nEV+nEE:
				c := cands.EE[i-nEV]
				a, b := edges[c.A], edges[c.B]
				toi, hit = EdgeEdgeTOI(
					[4]v3.Vec{V0[a[0]], V0[a[1]], V0[b[0]], V0[b[1]]},
					[4]v3.Vec{V1[a[0]], V1[a[1]], V1[b[0]], V1[b[1]]}, 1, o)
			default:
				c := cands.FV[i-nEV-nEE]
				f := faces[c.Face]
				toi, hit = PointTriangleTOI(
					[4]v3.Vec{V0[c.Vertex], V0[f[0]], V0[f[1]], V0[f[2]]},
					[4]v3.Vec{V1[c.Vertex], V1[f[0]], V1[f[1]], V1[f[2]]}, 1, o)
			}
			if !hit {
				toi = 1
			}
			tois[i] = toi
		}
	})

	step := 1.0
	for _, t := range tois {
		step = math.Min(step, t)
	}
	return step
}

// ---------------------------------------------------------------------------
// Static intersections
// ---------------------------------------------------------------------------

// HasIntersections reports whether any two non-adjacent primitives of m
// intersect in configuration V: an edge crossing a triangle in 3D, two edges
// crossing in 2D.
func HasIntersections(d broadphase.Detector, m *mesh.CollisionMesh, V []v3.Vec, workers int) bool {
	edges := m.Edges()
	if m.Dim() == 2 {
		pairs := broadphase.EdgePairs(d, m, V)
		return anyOf(len(pairs), workers, func(i int) bool {
			a, b := edges[pairs[i].A], edges[pairs[i].B]
			return geom.SegmentsIntersect2D(V[a[0]], V[a[1]], V[b[0]], V[b[1]])
		})
	}
	faces := m.Faces()
	pairs := broadphase.EdgeFaces(d, m, V)
	return anyOf(len(pairs), workers, func(i int) bool {
		e, f := edges[pairs[i].Edge], faces[pairs[i].Face]
		return geom.SegmentTriangleIntersect(V[e[0]], V[e[1]], V[f[0]], V[f[1]], V[f[2]])
	})
}

func anyOf(n, workers int, pred func(int) bool) bool {
	hits := make([]bool, n)
	parallel.For(n, workers, func(start, end int) {
		for i := start; i < end; i++ {
			hits[i] = pred(i)
		}
	})
	for _, h := range hits {
		if h {
			return true
		}
	}
	return false
}

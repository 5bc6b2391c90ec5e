package broadphase

import (
	"math"
	"sort"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/parallel"
)

// Compile-time checks.
var (
	_ Detector = (*bruteForce)(nil)
	_ Detector = (*hashGrid)(nil)
	_ Detector = (*sweepAndPrune)(nil)
	_ Detector = (*sweepAndTiniestQueue)(nil)
)

func component(v v3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// sweepAxis picks the axis along which the boxes are most spread out.
func sweepAxis(a, b []geom.AABB) int {
	all := geom.EmptyAABB()
	for _, x := range a {
		all = all.Merge(x)
	}
	for _, x := range b {
		all = all.Merge(x)
	}
	s := all.Size()
	switch {
	case s.X >= s.Y && s.X >= s.Z:
		return 0
	case s.Y >= s.Z:
		return 1
	default:
		return 2
	}
}

// ---------------------------------------------------------------------------
// Brute force
// ---------------------------------------------------------------------------

// bruteForce tests every pair. It is the reference the others must match.
type bruteForce struct {
	workers int
}

func (d *bruteForce) Method() Method { return BruteForce }

func (d *bruteForce) Overlaps(a, b []geom.AABB) []Pair {
	rows := make([][]Pair, len(a))
	parallel.For(len(a), d.workers, func(start, end int) {
		for i := start; i < end; i++ {
			for j := range b {
				if a[i].Overlaps(b[j]) {
					rows[i] = append(rows[i], Pair{i, j})
				}
			}
		}
	})
	var out []Pair
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

// ---------------------------------------------------------------------------
// Hash grid
// ---------------------------------------------------------------------------

// hashGrid buckets the second list into a uniform grid whose cell size is
// the mean box extent, then queries the cells each box of the first list
// covers. Boxes spanning more than maxCellsPerBox cells (long swept boxes,
// usually) are not hashed: they go to an overflow list tested against every
// box of the other list.
type hashGrid struct{}

type cellKey [3]int64

// maxCellsPerBox bounds the cells one box is hashed into.
const maxCellsPerBox = 64

// gridIndex is the hashed second list.
type gridIndex struct {
	table    map[cellKey][]int
	overflow []int
}

func (d *hashGrid) Method() Method { return HashGrid }

func (d *hashGrid) cellSize(a, b []geom.AABB) float64 {
	var sum float64
	var n int
	for _, list := range [][]geom.AABB{a, b} {
		for _, x := range list {
			if x.IsEmpty() {
				continue
			}
			s := x.Size()
			sum += math.Max(s.X, math.Max(s.Y, s.Z))
			n++
		}
	}
	if n == 0 || sum == 0 {
		return 1
	}
	return sum / float64(n)
}

// cellRange returns the first and last cell x covers on each axis.
func cellRange(x geom.AABB, size float64) (lo, hi [3]float64) {
	lo = [3]float64{math.Floor(x.Min.X / size), math.Floor(x.Min.Y / size), math.Floor(x.Min.Z / size)}
	hi = [3]float64{math.Floor(x.Max.X / size), math.Floor(x.Max.Y / size), math.Floor(x.Max.Z / size)}
	return lo, hi
}

// cellCount returns how many cells x covers.
func cellCount(x geom.AABB, size float64) float64 {
	lo, hi := cellRange(x, size)
	return (hi[0] - lo[0] + 1) * (hi[1] - lo[1] + 1) * (hi[2] - lo[2] + 1)
}

func oversized(x geom.AABB, size float64) bool {
	return cellCount(x, size) > maxCellsPerBox
}

func (d *hashGrid) cells(x geom.AABB, size float64, fn func(cellKey)) {
	lo, hi := cellRange(x, size)
	for i := int64(lo[0]); i <= int64(hi[0]); i++ {
		for j := int64(lo[1]); j <= int64(hi[1]); j++ {
			for k := int64(lo[2]); k <= int64(hi[2]); k++ {
				fn(cellKey{i, j, k})
			}
		}
	}
}

func (d *hashGrid) index(b []geom.AABB, size float64) *gridIndex {
	g := &gridIndex{table: make(map[cellKey][]int)}
	for j, x := range b {
		switch {
		case x.IsEmpty():
		case oversized(x, size):
			g.overflow = append(g.overflow, j)
		default:
			d.cells(x, size, func(c cellKey) {
				g.table[c] = append(g.table[c], j)
			})
		}
	}
	return g
}

func (d *hashGrid) Overlaps(a, b []geom.AABB) []Pair {
	size := d.cellSize(a, b)
	g := d.index(b, size)

	// stamp[j] == i+1 marks b[j] as already tested against a[i].
	stamp := make([]int, len(b))
	var out []Pair
	test := func(i, j int) {
		if stamp[j] == i+1 {
			return
		}
		stamp[j] = i + 1
		if a[i].Overlaps(b[j]) {
			out = append(out, Pair{i, j})
		}
	}
	for i, x := range a {
		if x.IsEmpty() {
			continue
		}
		if oversized(x, size) {
			for j := range b {
				if !b[j].IsEmpty() {
					test(i, j)
				}
			}
			continue
		}
		d.cells(x, size, func(c cellKey) {
			for _, j := range g.table[c] {
				test(i, j)
			}
		})
		for _, j := range g.overflow {
			test(i, j)
		}
	}
	return sortPairs(out)
}

// ---------------------------------------------------------------------------
// Sweep and prune
// ---------------------------------------------------------------------------

// sweepAndPrune sorts interval endpoints along one axis and pairs each
// starting interval with the open intervals of the other list.
type sweepAndPrune struct{}

type endpoint struct {
	value float64
	id    int
	fromB bool
	isMin bool
}

func (d *sweepAndPrune) Method() Method { return SweepAndPrune }

func (d *sweepAndPrune) Overlaps(a, b []geom.AABB) []Pair {
	axis := sweepAxis(a, b)
	endpoints := make([]endpoint, 0, 2*(len(a)+len(b)))
	add := func(list []geom.AABB, fromB bool) {
		for i, x := range list {
			if x.IsEmpty() {
				continue
			}
			endpoints = append(endpoints,
				endpoint{component(x.Min, axis), i, fromB, true},
				endpoint{component(x.Max, axis), i, fromB, false},
			)
		}
	}
	add(a, false)
	add(b, true)

	// Starts sort before ends at equal values so touching boxes pair up.
	sort.SliceStable(endpoints, func(i, j int) bool {
		if endpoints[i].value != endpoints[j].value {
			return endpoints[i].value < endpoints[j].value
		}
		return endpoints[i].isMin && !endpoints[j].isMin
	})

	var activeA, activeB []int
	var out []Pair
	remove := func(active []int, id int) []int {
		for i, x := range active {
			if x == id {
				active[i] = active[len(active)-1]
				return active[:len(active)-1]
			}
		}
		return active
	}
	for _, ep := range endpoints {
		switch {
		case ep.isMin && !ep.fromB:
			for _, j := range activeB {
				if a[ep.id].Overlaps(b[j]) {
					out = append(out, Pair{ep.id, j})
				}
			}
			activeA = append(activeA, ep.id)
		case ep.isMin:
			for _, i := range activeA {
				if a[i].Overlaps(b[ep.id]) {
					out = append(out, Pair{i, ep.id})
				}
			}
			activeB = append(activeB, ep.id)
		case !ep.fromB:
			activeA = remove(activeA, ep.id)
		default:
			activeB = remove(activeB, ep.id)
		}
	}
	return sortPairs(out)
}

// ---------------------------------------------------------------------------
// Sweep and tiniest queue
// ---------------------------------------------------------------------------

// sweepAndTiniestQueue sorts the second list by its lower bound and lets
// each box of the first list scan, in parallel, the short run of boxes that
// start before it ends.
type sweepAndTiniestQueue struct {
	workers int
}

func (d *sweepAndTiniestQueue) Method() Method { return SweepAndTiniestQueue }

func (d *sweepAndTiniestQueue) Overlaps(a, b []geom.AABB) []Pair {
	axis := sweepAxis(a, b)
	order := make([]int, 0, len(b))
	for j, x := range b {
		if !x.IsEmpty() {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return component(b[order[i]].Min, axis) < component(b[order[j]].Min, axis)
	})

	rows := make([][]Pair, len(a))
	parallel.For(len(a), d.workers, func(start, end int) {
		for i := start; i < end; i++ {
			x := a[i]
			if x.IsEmpty() {
				continue
			}
			lo, hi := component(x.Min, axis), component(x.Max, axis)
			n := sort.Search(len(order), func(k int) bool {
				return component(b[order[k]].Min, axis) > hi
			})
			for _, j := range order[:n] {
				if component(b[j].Max, axis) >= lo && x.Overlaps(b[j]) {
					rows[i] = append(rows[i], Pair{i, j})
				}
			}
		}
	})
	var out []Pair
	for _, r := range rows {
		out = append(out, r...)
	}
	return sortPairs(out)
}

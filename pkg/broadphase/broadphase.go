// Package broadphase finds primitive pairs of a collision mesh whose bounding
// boxes overlap. The result is a superset of the pairs that can be in
// contact: a pair that is not reported is guaranteed to be apart.
//
// The box-overlap search is a strategy (Detector) selected by Method at
// construction. Every detector returns pairs sorted by (A, B), so the
// candidate lists built on top of them are identical for any worker count.
package broadphase

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/chazu/contactkit/pkg/geom"
)

// Method selects a box-overlap strategy.
type Method string

const (
	BruteForce           Method = "brute_force"
	HashGrid             Method = "hash_grid"
	SweepAndPrune        Method = "sweep_and_prune"
	SweepAndTiniestQueue Method = "sweep_and_tiniest_queue"
)

// Methods lists every supported method.
var Methods = []Method{BruteForce, HashGrid, SweepAndPrune, SweepAndTiniestQueue}

// Valid reports whether m names a supported method.
func (m Method) Valid() bool {
	return slices.Contains(Methods, m)
}

// ReusesCandidates reports whether candidates cached for a line-search
// bracket may be reused by the step limiter. The tiniest-queue sweep always
// recomputes over the full trajectory.
func (m Method) ReusesCandidates() bool {
	return m != SweepAndTiniestQueue
}

// Pair indexes one box of each input list.
type Pair struct {
	A, B int
}

// Detector finds overlapping boxes between two lists.
type Detector interface {
	// Overlaps returns every (i, j) such that a[i] overlaps b[j], sorted.
	Overlaps(a, b []geom.AABB) []Pair
	// Method returns the strategy the detector implements.
	Method() Method
}

// New returns the detector for m. workers <= 0 uses GOMAXPROCS.
func New(m Method, workers int) (Detector, error) {
	switch m {
	case BruteForce:
		return &bruteForce{workers: workers}, nil
	case HashGrid:
		return &hashGrid{}, nil
	case SweepAndPrune:
		return &sweepAndPrune{}, nil
	case SweepAndTiniestQueue:
		return &sweepAndTiniestQueue{workers: workers}, nil
	default:
		return nil, fmt.Errorf("broadphase: unknown method %q", m)
	}
}

func sortPairs(ps []Pair) []Pair {
	slices.SortFunc(ps, func(x, y Pair) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return ps
}

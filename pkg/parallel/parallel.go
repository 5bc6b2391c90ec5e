// Package parallel runs index-range loops across a bounded set of goroutines.
// Callers write results into per-index slots and reduce them sequentially,
// so the outcome never depends on goroutine scheduling.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest number of indices handed to one goroutine.
const minChunk = 64

// Workers resolves a configured worker count. Zero or negative means
// GOMAXPROCS.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// For calls fn(start, end) over disjoint sub-ranges covering [0, n).
// With a single worker, or when n is small, fn runs once on the calling
// goroutine.
func For(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers = Workers(workers)
	if workers == 1 || n <= minChunk {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}

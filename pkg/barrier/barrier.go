// Package barrier evaluates the contact barrier energy of a constraint set
// and controls the barrier stiffness.
//
// All distances handled here are squared: a constraint's distance d is the
// squared distance of its primitives, and the activation threshold is
// dhat². The barrier
//
//	b(d) = -(d - dhat²)² ln(d / dhat²)   for 0 < d < dhat²
//	b(d) = 0                              for d >= dhat²
//
// is C² at the threshold, decreasing and convex on (0, dhat²), and diverges
// as d -> 0+.
package barrier

import (
	"math"
)

// Function returns b(d) for a squared distance d and squared threshold dhat2.
func Function(d, dhat2 float64) float64 {
	if d <= 0 {
		return math.Inf(1)
	}
	if d >= dhat2 {
		return 0
	}
	t := d - dhat2
	return -t * t * math.Log(d/dhat2)
}

// Gradient returns db/dd.
func Gradient(d, dhat2 float64) float64 {
	if d <= 0 {
		return math.Inf(-1)
	}
	if d >= dhat2 {
		return 0
	}
	t := dhat2 - d
	return t * (2*math.Log(d/dhat2) - dhat2/d + 1)
}

// Hessian returns d²b/dd².
func Hessian(d, dhat2 float64) float64 {
	if d <= 0 {
		return math.Inf(1)
	}
	if d >= dhat2 {
		return 0
	}
	r := dhat2 / d
	return (r+2)*r - 2*math.Log(d/dhat2) - 3
}

//go:build !manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library. Without the "manifold" build tag this stub is compiled
// instead and New reports ErrUnavailable.
//
// Build with: go build -tags=manifold
package manifold

import (
	"github.com/chazu/contactkit/pkg/kernel"
)

// New returns ErrUnavailable.
func New() (kernel.Kernel, error) {
	return nil, ErrUnavailable
}

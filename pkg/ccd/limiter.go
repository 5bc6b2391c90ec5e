package ccd

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/mesh"
)

// ErrNoAdmissibleStep matches every NoAdmissibleStepError.
var ErrNoAdmissibleStep = errors.New("no intersection-free step size")

// NoAdmissibleStepError reports that no positive fraction of a trajectory is
// intersection-free. It is fatal for the current solver step.
type NoAdmissibleStepError struct {
	// Step is the last fraction tried.
	Step float64
	// LInf is the largest coordinate change between the start and the
	// configuration at Step.
	LInf float64
}

func (e *NoAdmissibleStepError) Error() string {
	return fmt.Sprintf("ccd: unable to find an intersection-free step size (max_step=%g, L∞=%g)", e.Step, e.LInf)
}

func (e *NoAdmissibleStepError) Unwrap() error { return ErrNoAdmissibleStep }

// Step is the outcome of one MaxStepSize call.
type Step struct {
	// Fraction is the admissible share of the trajectory, in (0, 1].
	Fraction float64
	// Candidates is the number of primitive pairs tested.
	Candidates int
	// Cached reports whether the caller's candidates were used.
	Cached bool
	// Bisections counts validation halvings.
	Bisections int
}

// Limiter computes admissible step fractions for one collision mesh.
type Limiter struct {
	mesh     *mesh.CollisionMesh
	detector broadphase.Detector
	opts     Options
	validate bool
	logger   *slog.Logger
}

// NewLimiter returns a limiter. With validate set every result is checked
// for static intersections and halved until clean.
func NewLimiter(m *mesh.CollisionMesh, d broadphase.Detector, o Options, validate bool, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{mesh: m, detector: d, opts: o, validate: validate, logger: logger}
}

// Validating reports whether the intersection safety net is on.
func (l *Limiter) Validating() bool { return l.validate }

// MaxStepSize returns the largest fraction of the V0 -> V1 trajectory that
// stays intersection-free. cached candidates are used when non-nil and the
// detector's method allows reuse; otherwise a swept broad phase runs over
// the whole trajectory.
func (l *Limiter) MaxStepSize(V0, V1 []v3.Vec, cached *broadphase.Candidates) (Step, error) {
	var res Step
	cands := cached
	if cands != nil && l.detector.Method().ReusesCandidates() {
		res.Cached = true
	} else {
		c := broadphase.Build(l.detector, l.mesh, V0, V1, 0)
		cands = &c
	}
	res.Candidates = cands.Len()

	step := CollisionFreeStepSize(l.mesh, cands, V0, V1, l.opts)
	if step <= 0 {
		return res, &NoAdmissibleStepError{Step: step, LInf: lInf(V0, V1, 1)}
	}

	if l.validate {
		Vt := lerp(V0, V1, step)
		for HasIntersections(l.detector, l.mesh, Vt, l.opts.Workers) {
			l.logger.Error("taking max step results in intersections", "max_step", step)
			step /= 2
			res.Bisections++

			linf := maxAbsDiff(Vt, V0)
			if step <= 0 || linf == 0 {
				return res, &NoAdmissibleStepError{Step: step, LInf: linf}
			}
			Vt = lerp(V0, V1, step)
		}
	}

	res.Fraction = step
	return res, nil
}

func lerp(V0, V1 []v3.Vec, s float64) []v3.Vec {
	out := make([]v3.Vec, len(V0))
	for i := range V0 {
		out[i] = V1[i].Sub(V0[i]).MulScalar(s).Add(V0[i])
	}
	return out
}

func lInf(V0, V1 []v3.Vec, s float64) float64 {
	return maxAbsDiff(lerp(V0, V1, s), V0)
}

func maxAbsDiff(a, b []v3.Vec) float64 {
	var m float64
	for i := range a {
		d := a[i].Sub(b[i])
		m = math.Max(m, math.Max(math.Abs(d.X), math.Max(math.Abs(d.Y), math.Abs(d.Z))))
	}
	return m
}

// Package contact composes the broad phase, constraint builder, barrier
// potential, stiffness controller and step limiter behind the contract an
// implicit solver drives once per nonlinear iteration.
//
// The solver must follow the driver protocol
//
//	Init → (Value | FirstDerivative | SecondDerivative)*
//	     → LineSearchBegin → (MaxStepSize | SolutionChanged | Value)* → LineSearchEnd
//	     → SolutionChanged → PostStep → ...
//
// Calls outside that order fail with ErrOutOfOrder instead of returning
// results computed from a stale state.
package contact

import (
	"errors"
	"fmt"
	"log/slog"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/barrier"
	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/ccd"
	"github.com/chazu/contactkit/pkg/constraint"
	"github.com/chazu/contactkit/pkg/mesh"
	"github.com/chazu/contactkit/pkg/sparse"
)

var (
	// ErrOutOfOrder matches every OutOfOrderError.
	ErrOutOfOrder = errors.New("call out of driver order")
	// ErrStaleConstraintSet is returned when a quantity is requested at a
	// solution the constraint set was not built for.
	ErrStaleConstraintSet = errors.New("constraint set does not reflect the solution")
)

// ForceProvider supplies the non-contact terms stiffness initialization
// balances against.
type ForceProvider interface {
	// EnergyGradient returns the gradient of all non-contact energies
	// (elastic, inertial, body forces) at x, in full DOFs.
	EnergyGradient(x []float64) ([]float64, error)
	// AvgMass returns the average nodal mass.
	AvgMass() float64
}

// State is the position of a Form in the driver protocol.
type State int

const (
	Uninitialized State = iota
	// Ready accepts evaluations, a new line search or new quantities.
	Ready
	// Bracketed holds cached candidates for one line search.
	Bracketed
	// Changed has an accepted solution waiting for PostStep.
	Changed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Bracketed:
		return "bracketed"
	case Changed:
		return "changed"
	default:
		return "uninitialized"
	}
}

// OutOfOrderError reports an operation invoked in a state that does not
// allow it.
type OutOfOrderError struct {
	Op    string
	State State
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("contact: %s not allowed in state %s", e.Op, e.State)
}

func (e *OutOfOrderError) Unwrap() error { return ErrOutOfOrder }

// Option configures a Form.
type Option func(*Form)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Form) { f.logger = l }
}

// Form is the contact force of one collision mesh. It is not safe for
// concurrent use; the numeric kernels it calls parallelize internally.
type Form struct {
	mesh   *mesh.CollisionMesh
	forces ForceProvider
	cfg    Config
	logger *slog.Logger

	detector  broadphase.Detector
	builder   *constraint.Builder
	potential barrier.Potential
	stiffness *barrier.Controller
	limiter   *ccd.Limiter

	state        State
	candidates   *broadphase.Candidates
	prevDistance float64
}

// NewForm returns a Form for m. The configuration is validated here;
// a fixed barrier stiffness fails with ErrFixedStiffnessUnsupported.
func NewForm(m *mesh.CollisionMesh, fp ForceProvider, cfg Config, opts ...Option) (*Form, error) {
	if m == nil || fp == nil {
		return nil, fmt.Errorf("%w: mesh and force provider are required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("contact: %w", err)
	}
	det, err := broadphase.New(cfg.BroadPhase, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("contact: %w", err)
	}

	f := &Form{
		mesh:         m,
		forces:       fp,
		cfg:          cfg,
		logger:       slog.Default(),
		detector:     det,
		potential:    barrier.Potential{DHat: cfg.DHat, Workers: cfg.Workers},
		stiffness:    barrier.NewController(cfg.DHat, cfg.TimeDependent),
		prevDistance: -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.builder = constraint.NewBuilder(m, cfg.DHat, det, cfg.Workers)
	f.limiter = ccd.NewLimiter(m, det, cfg.ccdOptions(), cfg.CCD.ValidateSteps, f.logger)

	f.logger.Debug("using adaptive barrier stiffness",
		"dhat", cfg.DHat, "broad_phase", cfg.BroadPhase, "time_dependent", cfg.TimeDependent)
	return f, nil
}

func (f *Form) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if f.state == s {
			return nil
		}
	}
	return &OutOfOrderError{Op: op, State: f.state}
}

// ---------------------------------------------------------------------------
// Constraint set and stiffness
// ---------------------------------------------------------------------------

// updateConstraintSet makes the set reflect V, using the bracket's
// candidates when a line search is open.
func (f *Form) updateConstraintSet(V []v3.Vec) *constraint.Set {
	set, rebuilt := f.builder.Update(V, f.candidates)
	if !rebuilt {
		constraintCacheHits.Inc()
		return set
	}
	constraintBuilds.Inc()
	activeConstraints.Set(float64(set.Len()))
	f.logger.Debug("rebuilt constraint set",
		"constraints", set.Len(), "builds", f.builder.Builds(), "cached_candidates", f.candidates != nil)
	return set
}

// current returns the displaced surface at x, failing when the constraint
// set was built for another one.
func (f *Form) current(x []float64) ([]v3.Vec, error) {
	V := f.mesh.DisplacedSurface(x)
	if !f.builder.Matches(V) {
		return nil, ErrStaleConstraintSet
	}
	return V, nil
}

// observe gathers what stiffness initialization needs at x.
func (f *Form) observe(x []float64) (barrier.Observation, error) {
	V := f.mesh.DisplacedSurface(x)
	set := f.updateConstraintSet(V)

	ge, err := f.forces.EnergyGradient(x)
	if err != nil {
		return barrier.Observation{}, fmt.Errorf("contact: energy gradient: %w", err)
	}
	gb := f.mesh.ToFullGradient(f.potential.Gradient(f.mesh, V, set))
	return barrier.Observation{
		BBoxDiagonal:    mesh.BoundingBoxDiagonal(V),
		AvgMass:         f.forces.AvgMass(),
		EnergyGradient:  ge,
		BarrierGradient: gb,
	}, nil
}

func (f *Form) initializeStiffness(x []float64) error {
	obs, err := f.observe(x)
	if err != nil {
		return err
	}
	if err := f.stiffness.Initialize(obs); err != nil {
		return fmt.Errorf("contact: %w", err)
	}
	barrierStiffness.Set(f.stiffness.Stiffness())
	f.logger.Debug("adaptive barrier stiffness",
		"stiffness", f.stiffness.Stiffness(), "max", f.stiffness.MaxStiffness())
	return nil
}

// ---------------------------------------------------------------------------
// Driver protocol
// ---------------------------------------------------------------------------

// Init builds the constraint set at x and initializes the stiffness.
func (f *Form) Init(x []float64) error {
	if err := f.require("init", Uninitialized); err != nil {
		return err
	}
	if err := f.initializeStiffness(x); err != nil {
		return err
	}
	f.state = Ready
	return nil
}

// Value returns the stiffness-weighted barrier energy at x.
func (f *Form) Value(x []float64) (float64, error) {
	if err := f.require("value", Ready, Bracketed, Changed); err != nil {
		return 0, err
	}
	V, err := f.current(x)
	if err != nil {
		return 0, err
	}
	return f.stiffness.Stiffness() * f.potential.Value(f.mesh, V, f.builder.Set()), nil
}

// FirstDerivative returns the energy gradient at x in full DOFs.
func (f *Form) FirstDerivative(x []float64) ([]float64, error) {
	if err := f.require("first derivative", Ready, Bracketed, Changed); err != nil {
		return nil, err
	}
	V, err := f.current(x)
	if err != nil {
		return nil, err
	}
	g := f.potential.Gradient(f.mesh, V, f.builder.Set())
	k := f.stiffness.Stiffness()
	for i := range g {
		g[i] *= k
	}
	return f.mesh.ToFullGradient(g), nil
}

// SecondDerivative returns the energy Hessian at x in full DOFs, projected
// per constraint to PSD when the config asks for it.
func (f *Form) SecondDerivative(x []float64) (*sparse.Triplets, error) {
	if err := f.require("second derivative", Ready, Bracketed, Changed); err != nil {
		return nil, err
	}
	V, err := f.current(x)
	if err != nil {
		return nil, err
	}
	h := f.potential.Hessian(f.mesh, V, f.builder.Set(), f.cfg.ProjectToPSD)
	h.Scale(f.stiffness.Stiffness())
	return f.mesh.ToFullHessian(h), nil
}

// SolutionChanged rebuilds the constraint set for x. Inside a line search
// it evaluates a trial; otherwise it marks x as the accepted solution.
func (f *Form) SolutionChanged(x []float64) error {
	if err := f.require("solution changed", Ready, Bracketed, Changed); err != nil {
		return err
	}
	f.updateConstraintSet(f.mesh.DisplacedSurface(x))
	if f.state != Bracketed {
		f.state = Changed
	}
	return nil
}

// LineSearchBegin caches the candidates swept along x0 → x1 for the
// duration of the line search.
func (f *Form) LineSearchBegin(x0, x1 []float64) error {
	if err := f.require("line search begin", Ready); err != nil {
		return err
	}
	c := broadphase.Build(f.detector, f.mesh,
		f.mesh.DisplacedSurface(x0), f.mesh.DisplacedSurface(x1),
		f.cfg.DHat/constraint.InflationScale)
	f.candidates = &c
	f.state = Bracketed
	f.logger.Debug("line search begin", "candidates", c.Len())
	return nil
}

// LineSearchEnd releases the cached candidates. It must run after every
// LineSearchBegin, also when the search failed.
func (f *Form) LineSearchEnd() error {
	if err := f.require("line search end", Bracketed); err != nil {
		return err
	}
	f.candidates.Clear()
	f.candidates = nil
	f.state = Ready
	return nil
}

// MaxStepSize returns the largest fraction of x0 → x1 that stays
// intersection-free. A trajectory without any such fraction yields an
// error matching ccd.ErrNoAdmissibleStep.
func (f *Form) MaxStepSize(x0, x1 []float64) (float64, error) {
	if err := f.require("max step size", Bracketed); err != nil {
		return 0, err
	}
	res, err := f.limiter.MaxStepSize(f.mesh.DisplacedSurface(x0), f.mesh.DisplacedSurface(x1), f.candidates)
	ccdBisections.Add(float64(res.Bisections))
	if err != nil {
		ccdFailures.Inc()
		return 0, fmt.Errorf("contact: %w", err)
	}
	ccdStepFraction.Observe(res.Fraction)
	return res.Fraction, nil
}

// PostStep updates the stiffness from the change of minimum distance and
// remembers the current one for the next step.
func (f *Form) PostStep(iter int, x []float64) error {
	if err := f.require("post step", Changed); err != nil {
		return err
	}
	V, err := f.current(x)
	if err != nil {
		return err
	}
	curr := f.builder.Set().MinimumDistanceSq(V)

	if f.prevDistance >= 0 {
		old := f.stiffness.Stiffness()
		err := f.stiffness.Update(f.prevDistance, curr, mesh.BoundingBoxDiagonal(V), func() (barrier.Observation, error) {
			return f.observe(x)
		})
		if err != nil {
			return fmt.Errorf("contact: post step %d: %w", iter, err)
		}
		if k := f.stiffness.Stiffness(); k != old {
			barrierStiffness.Set(k)
			f.logger.Debug("updated barrier stiffness", "iter", iter, "from", old, "to", k)
		}
	}
	f.prevDistance = curr
	f.state = Ready
	return nil
}

// UpdateQuantities re-anchors the stiffness at x when a new time step
// starts at time t.
func (f *Form) UpdateQuantities(t float64, x []float64) error {
	if err := f.require("update quantities", Ready); err != nil {
		return err
	}
	f.logger.Debug("update quantities", "t", t)
	return f.initializeStiffness(x)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// State returns the protocol state.
func (f *Form) State() State { return f.state }

// BarrierStiffness returns the current stiffness.
func (f *Form) BarrierStiffness() float64 { return f.stiffness.Stiffness() }

// MaxBarrierStiffness returns the current stiffness bound.
func (f *Form) MaxBarrierStiffness() float64 { return f.stiffness.MaxStiffness() }

// ConstraintSet returns the current constraint set.
func (f *Form) ConstraintSet() *constraint.Set { return f.builder.Set() }

// CachedCandidates returns the line-search candidates, nil outside a
// bracket.
func (f *Form) CachedCandidates() *broadphase.Candidates { return f.candidates }

// PreviousMinimumDistance returns the squared minimum distance recorded by
// the last PostStep; ok is false before the first one.
func (f *Form) PreviousMinimumDistance() (d float64, ok bool) {
	return f.prevDistance, f.prevDistance >= 0
}

// Builds returns how many times the constraint set was rebuilt.
func (f *Form) Builds() int { return f.builder.Builds() }

// Mesh returns the collision mesh.
func (f *Form) Mesh() *mesh.CollisionMesh { return f.mesh }

// Config returns the configuration the form was built with.
func (f *Form) Config() Config { return f.cfg }

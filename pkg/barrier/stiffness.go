package barrier

import (
	"errors"
	"fmt"
	"math"
)

const (
	// minStiffnessScale multiplies the average mass in the lower stiffness
	// bound.
	minStiffnessScale = 1e11
	// maxStiffnessFactor relates the upper stiffness bound to the lower one.
	maxStiffnessFactor = 100
	// initialDistanceScale times the bounding-box diagonal is the distance
	// at which the lower bound is measured.
	initialDistanceScale = 1e-8
	// stallDistanceScale times the bounding-box diagonal is the distance
	// below which a shrinking gap doubles the stiffness.
	stallDistanceScale = 1e-9
)

var (
	// ErrNotInitialized is returned when the stiffness is updated before it
	// was initialized.
	ErrNotInitialized = errors.New("barrier stiffness not initialized")
	// ErrInvalidMass is returned for a non-positive average mass.
	ErrInvalidMass = errors.New("average mass must be positive")
)

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// InitialStiffness returns the stiffness that balances the barrier gradient
// against the non-contact energy gradient, together with the upper bound
// derived from the scene size. The result is clamped to [kmin, kmax] where
//
//	d0   = (1e-8 · bboxDiagonal)²
//	kmin = 1e11 · avgMass / (4 · d0 · b''(d0))
//	kmax = 100 · kmin
//
// A zero barrier gradient yields kappa = 1 before clamping.
func InitialStiffness(bboxDiagonal, dhat, avgMass float64, gradEnergy, gradBarrier []float64) (kappa, kmax float64) {
	dhat2 := dhat * dhat
	d0 := initialDistanceScale * bboxDiagonal
	d0 *= d0
	if d0 <= 0 || d0 >= dhat2 {
		d0 = 0.5 * dhat2
	}
	kmin := minStiffnessScale * avgMass / (4 * d0 * Hessian(d0, dhat2))
	kmax = maxStiffnessFactor * kmin

	kappa = 1
	if gb := dot(gradBarrier, gradBarrier); gb > 0 {
		kappa = -dot(gradBarrier, gradEnergy) / gb
	}
	return math.Min(kmax, math.Max(kmin, kappa)), kmax
}

// UpdateStiffness doubles kappa, up to kmax, when the minimum squared
// distance is tiny and still shrinking. Otherwise kappa is returned as is.
func UpdateStiffness(prevMinDist, minDist, kmax, kappa, bboxDiagonal float64) float64 {
	eps := stallDistanceScale * bboxDiagonal
	eps *= eps
	if prevMinDist < eps && minDist < eps && minDist < prevMinDist {
		return math.Min(kmax, 2*kappa)
	}
	return kappa
}

// ---------------------------------------------------------------------------
// Controller
// ---------------------------------------------------------------------------

// State is the lifecycle of a stiffness controller.
type State int

const (
	Uninitialized State = iota
	Initialized
)

func (s State) String() string {
	if s == Initialized {
		return "initialized"
	}
	return "uninitialized"
}

// Observation carries what stiffness initialization reads from the current
// configuration.
type Observation struct {
	// BBoxDiagonal is the diagonal of the displaced surface's bounding box.
	BBoxDiagonal float64
	// AvgMass is the average nodal mass.
	AvgMass float64
	// EnergyGradient is the non-contact energy gradient in full DOFs.
	EnergyGradient []float64
	// BarrierGradient is the unit-stiffness barrier gradient in full DOFs.
	BarrierGradient []float64
}

// Controller owns the adaptive barrier stiffness.
type Controller struct {
	dhat          float64
	timeDependent bool

	state State
	kappa float64
	kmax  float64
}

// NewController returns an uninitialized controller with stiffness 1.
func NewController(dhat float64, timeDependent bool) *Controller {
	return &Controller{dhat: dhat, timeDependent: timeDependent, kappa: 1}
}

// Stiffness returns the current stiffness.
func (c *Controller) Stiffness() float64 { return c.kappa }

// MaxStiffness returns the current upper bound, 0 before initialization.
func (c *Controller) MaxStiffness() float64 { return c.kmax }

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// TimeDependent reports whether updates follow the doubling rule.
func (c *Controller) TimeDependent() bool { return c.timeDependent }

// Initialize sets the stiffness from obs. It is deterministic in obs.
func (c *Controller) Initialize(obs Observation) error {
	if obs.AvgMass <= 0 || math.IsNaN(obs.AvgMass) {
		return fmt.Errorf("%w: %g", ErrInvalidMass, obs.AvgMass)
	}
	if len(obs.EnergyGradient) != len(obs.BarrierGradient) {
		return fmt.Errorf("barrier: energy gradient has %d entries, barrier gradient %d",
			len(obs.EnergyGradient), len(obs.BarrierGradient))
	}
	c.kappa, c.kmax = InitialStiffness(obs.BBoxDiagonal, c.dhat, obs.AvgMass, obs.EnergyGradient, obs.BarrierGradient)
	c.state = Initialized
	return nil
}

// Update applies the post-step rule for a change of minimum squared
// distance from prevMinDist to minDist. Time-dependent controllers apply
// the doubling rule; quasi-static ones discard the stiffness and
// re-initialize from observe().
func (c *Controller) Update(prevMinDist, minDist, bboxDiagonal float64, observe func() (Observation, error)) error {
	if c.state != Initialized {
		return ErrNotInitialized
	}
	if c.timeDependent {
		c.kappa = UpdateStiffness(prevMinDist, minDist, c.kmax, c.kappa, bboxDiagonal)
		return nil
	}
	obs, err := observe()
	if err != nil {
		return err
	}
	return c.Initialize(obs)
}

package contact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ---------------------------------------------------------------------------
// Prometheus metrics
// ---------------------------------------------------------------------------

var (
	// constraintBuilds counts narrow-phase runs of the constraint set builder.
	constraintBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contactkit",
		Subsystem: "constraints",
		Name:      "builds_total",
		Help:      "Constraint set rebuilds",
	})

	// constraintCacheHits counts updates answered by the memoized set.
	constraintCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contactkit",
		Subsystem: "constraints",
		Name:      "cache_hits_total",
		Help:      "Constraint set updates served from the single-slot cache",
	})

	// activeConstraints is the size of the latest constraint set.
	activeConstraints = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "contactkit",
		Subsystem: "constraints",
		Name:      "active",
		Help:      "Active contact constraints in the latest set",
	})

	// barrierStiffness is the latest adaptive stiffness.
	barrierStiffness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "contactkit",
		Subsystem: "barrier",
		Name:      "stiffness",
		Help:      "Current adaptive barrier stiffness",
	})

	// ccdStepFraction is the distribution of admissible step fractions.
	ccdStepFraction = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "contactkit",
		Subsystem: "ccd",
		Name:      "step_fraction",
		Help:      "Admissible trajectory fraction returned by the step limiter",
		Buckets:   []float64{1e-6, 1e-4, 1e-3, 0.01, 0.05, 0.1, 0.25, 0.5, 0.75, 0.99, 1},
	})

	// ccdBisections counts validation halvings of the step fraction.
	ccdBisections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contactkit",
		Subsystem: "ccd",
		Name:      "validation_bisections_total",
		Help:      "Step halvings triggered by static intersection validation",
	})

	// ccdFailures counts calls that found no admissible step.
	ccdFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "contactkit",
		Subsystem: "ccd",
		Name:      "failures_total",
		Help:      "Step limiter calls without an intersection-free step",
	})
)

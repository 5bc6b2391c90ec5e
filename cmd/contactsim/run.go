package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/spf13/cobra"

	"github.com/chazu/contactkit/pkg/contact"
	"github.com/chazu/contactkit/pkg/tessellate"
)

// defaultTimeSteps applies when neither the flag nor the scenario sets one.
const defaultTimeSteps = 10

// ---------------------------------------------------------------------------
// Elastic stand-in
// ---------------------------------------------------------------------------

// targetSprings pulls every DOF toward a target displacement with stiffness
// mass. It stands in for the elastic energy of a full solver.
type targetSprings struct {
	target []float64
	mass   float64
}

func (s *targetSprings) EnergyGradient(x []float64) ([]float64, error) {
	if len(x) != len(s.target) {
		return nil, fmt.Errorf("springs: got %d DOFs, want %d", len(x), len(s.target))
	}
	g := make([]float64, len(x))
	for i := range x {
		g[i] = s.mass * (x[i] - s.target[i])
	}
	return g, nil
}

func (s *targetSprings) AvgMass() float64 { return s.mass }

func (s *targetSprings) energy(x []float64) float64 {
	var e float64
	for i := range x {
		d := x[i] - s.target[i]
		e += d * d
	}
	return 0.5 * s.mass * e
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

// driver runs a projected gradient descent on springs + barrier through the
// contact form's protocol.
type driver struct {
	form     *contact.Form
	springs  *targetSprings
	full     []float64 // final target displacement
	steps    int
	maxIters int
	tol      float64
	logger   *slog.Logger

	iterations int
}

// run ramps the target over d.steps time steps and returns the final
// displacement.
func (d *driver) run(ctx context.Context) ([]float64, error) {
	x := make([]float64, len(d.full))
	if err := d.form.Init(x); err != nil {
		return nil, err
	}
	for step := 1; step <= d.steps; step++ {
		t := float64(step) / float64(d.steps)
		for i := range d.full {
			d.springs.target[i] = t * d.full[i]
		}
		if err := d.form.UpdateQuantities(t, x); err != nil {
			return nil, err
		}
		var err error
		if x, err = d.solve(ctx, x); err != nil {
			return nil, fmt.Errorf("time step %d: %w", step, err)
		}
		d.logger.Info("time step done", "step", step, "t", t,
			"stiffness", d.form.BarrierStiffness(),
			"constraints", d.form.ConstraintSet().Len())
	}
	return x, nil
}

// solve iterates until the accepted step falls under tol.
func (d *driver) solve(ctx context.Context, x []float64) ([]float64, error) {
	for iter := 0; iter < d.maxIters; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := d.iterate(iter, x)
		if err != nil {
			return nil, err
		}
		d.iterations++
		moved := maxAbsDiff(next, x)
		x = next
		if moved <= d.tol {
			break
		}
	}
	return x, nil
}

// iterate performs one descent step and its line search.
func (d *driver) iterate(iter int, x []float64) ([]float64, error) {
	ge, err := d.springs.EnergyGradient(x)
	if err != nil {
		return nil, err
	}
	gb, err := d.form.FirstDerivative(x)
	if err != nil {
		return nil, err
	}
	b0, err := d.form.Value(x)
	if err != nil {
		return nil, err
	}
	e0 := d.springs.energy(x) + b0

	x1 := make([]float64, len(x))
	for i := range x {
		x1[i] = x[i] - (ge[i]+gb[i])/d.springs.mass
	}

	if err := d.form.LineSearchBegin(x, x1); err != nil {
		return nil, err
	}
	next, err := d.lineSearch(x, x1, e0)
	if endErr := d.form.LineSearchEnd(); err == nil {
		err = endErr
	}
	if err != nil {
		return nil, err
	}

	if err := d.form.SolutionChanged(next); err != nil {
		return nil, err
	}
	if err := d.form.PostStep(iter, next); err != nil {
		return nil, err
	}
	return next, nil
}

// lineSearch backtracks from the admissible fraction of x0 → x1 until the
// energy does not increase. It returns x0 when no fraction decreases it.
func (d *driver) lineSearch(x0, x1 []float64, e0 float64) ([]float64, error) {
	alpha, err := d.form.MaxStepSize(x0, x1)
	if err != nil {
		return nil, err
	}
	xt := make([]float64, len(x0))
	for try := 0; try < 30 && alpha > 0; try++ {
		for i := range x0 {
			xt[i] = x0[i] + alpha*(x1[i]-x0[i])
		}
		if err := d.form.SolutionChanged(xt); err != nil {
			return nil, err
		}
		b, err := d.form.Value(xt)
		if err != nil {
			return nil, err
		}
		if e := d.springs.energy(xt) + b; e <= e0 {
			return xt, nil
		}
		alpha /= 2
	}
	d.logger.Debug("line search found no decrease")
	return append([]float64(nil), x0...), nil
}

func maxAbsDiff(a, b []float64) float64 {
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}

// meanDisplacement averages x over the vertices of one instance.
func meanDisplacement(res *tessellate.Result, in tessellate.Instance, x []float64) v3.Vec {
	var sum v3.Vec
	for v := in.First; v < in.First+in.Count; v++ {
		i := 3 * res.Mesh.FullIndex(v)
		sum = sum.Add(v3.Vec{X: x[i], Y: x[i+1], Z: x[i+2]})
	}
	if in.Count == 0 {
		return sum
	}
	return sum.MulScalar(1 / float64(in.Count))
}

// ---------------------------------------------------------------------------
// Command
// ---------------------------------------------------------------------------

func newRunCmd(opts *options) *cobra.Command {
	var (
		steps    int
		maxIters int
		tol      float64
	)
	cmd := &cobra.Command{
		Use:   "run <scenario.lisp>",
		Short: "Drive a scenario's prescribed motions with contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			l, err := load(ctx, opts, args[0])
			if err != nil {
				return err
			}

			n := steps
			if n <= 0 {
				n = l.scene.Settings.Steps
			}
			if n <= 0 {
				n = defaultTimeSteps
			}

			springs := &targetSprings{target: make([]float64, l.res.Mesh.NumDOF()), mass: 1}
			form, err := contact.NewForm(l.res.Mesh, springs, l.cfg, contact.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			d := &driver{
				form:     form,
				springs:  springs,
				full:     l.res.Target(),
				steps:    n,
				maxIters: maxIters,
				tol:      tol * l.cfg.DHat,
				logger:   opts.logger,
			}
			x, err := d.run(ctx)
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), l.res, form, d, x)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "time steps, 0 = scenario setting")
	cmd.Flags().IntVar(&maxIters, "max-iters", 50, "descent iterations per time step")
	cmd.Flags().Float64Var(&tol, "tol", 1e-3, "convergence tolerance relative to dhat")
	return cmd
}

func report(w io.Writer, res *tessellate.Result, form *contact.Form, d *driver, x []float64) {
	fmt.Fprintf(w, "time steps: %d\n", d.steps)
	fmt.Fprintf(w, "iterations: %d\n", d.iterations)
	fmt.Fprintf(w, "constraint builds: %d\n", form.Builds())
	fmt.Fprintf(w, "barrier stiffness: %g (max %g)\n", form.BarrierStiffness(), form.MaxBarrierStiffness())
	if dist, ok := form.PreviousMinimumDistance(); ok && !math.IsInf(dist, 1) {
		fmt.Fprintf(w, "minimum distance: %g\n", math.Sqrt(dist))
	} else {
		fmt.Fprintln(w, "minimum distance: none within dhat")
	}
	for _, in := range res.Instances {
		got := meanDisplacement(res, in, x)
		fmt.Fprintf(w, "body %s: prescribed (%g %g %g) reached (%.4g %.4g %.4g)\n",
			in.Name, in.Displacement.X, in.Displacement.Y, in.Displacement.Z, got.X, got.Y, got.Z)
	}
}

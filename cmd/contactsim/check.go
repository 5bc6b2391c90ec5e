package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/chazu/contactkit/pkg/broadphase"
	"github.com/chazu/contactkit/pkg/ccd"
	"github.com/chazu/contactkit/pkg/constraint"
	"github.com/chazu/contactkit/pkg/contact"
)

// errIntersecting is returned by check when the rest configuration
// already intersects.
var errIntersecting = errors.New("scenario starts in intersection")

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <scenario.lisp>",
		Short: "Report the contact state of a scenario without solving",
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
			m := l.res.Mesh
			w := cmd.OutOrStdout()

			det, err := broadphase.New(l.cfg.BroadPhase, l.cfg.Workers)
			if err != nil {
				return err
			}
			target := l.res.Target()
			rest := m.DisplacedSurface(make([]float64, m.NumDOF()))
			restHit := ccd.HasIntersections(det, m, rest, l.cfg.Workers)
			endHit := ccd.HasIntersections(det, m, m.DisplacedSurface(target), l.cfg.Workers)

			fmt.Fprintf(w, "mesh: %d vertices, %d edges, %d faces, %d bodies\n",
				m.NumVertices(), len(m.Edges()), len(m.Faces()), len(l.res.Instances))
			fmt.Fprintf(w, "dhat: %g (%s)\n", l.cfg.DHat, l.cfg.BroadPhase)
			fmt.Fprintf(w, "intersecting at rest: %t, at target: %t\n", restHit, endHit)
			if restHit {
				return errIntersecting
			}

			springs := &targetSprings{target: target, mass: 1}
			form, err := contact.NewForm(m, springs, l.cfg, contact.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			x0 := make([]float64, m.NumDOF())
			if err := form.Init(x0); err != nil {
				return err
			}

			set := form.ConstraintSet()
			fmt.Fprintf(w, "constraints: %d (vv %d, ev %d, ee %d, fv %d)\n", set.Len(),
				set.Count(constraint.VertexVertex), set.Count(constraint.EdgeVertex),
				set.Count(constraint.EdgeEdge), set.Count(constraint.FaceVertex))
			if d := set.MinimumDistanceSq(rest); math.IsInf(d, 1) {
				fmt.Fprintln(w, "minimum distance: none within dhat")
			} else {
				fmt.Fprintf(w, "minimum distance: %g\n", math.Sqrt(d))
			}
			fmt.Fprintf(w, "barrier stiffness: %g (max %g)\n", form.BarrierStiffness(), form.MaxBarrierStiffness())

			if err := form.LineSearchBegin(x0, target); err != nil {
				return err
			}
			c := form.CachedCandidates()
			fmt.Fprintf(w, "candidates along motion: %d (ev %d, ee %d, fv %d)\n", c.Len(), len(c.EV), len(c.EE), len(c.FV))
			step, err := form.MaxStepSize(x0, target)
			if endErr := form.LineSearchEnd(); endErr != nil {
				return endErr
			}
			switch {
			case errors.Is(err, ccd.ErrNoAdmissibleStep):
				fmt.Fprintln(w, "admissible fraction of motion: none")
			case err != nil:
				return err
			default:
				fmt.Fprintf(w, "admissible fraction of motion: %.4g\n", step)
			}
			return nil
		},
	}
}

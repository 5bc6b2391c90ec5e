// Package tessellate walks a scene and produces the collision mesh the
// contact form works on. Every reachable body instance becomes one welded
// surface; the surfaces are merged in walk order.
package tessellate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/contactkit/pkg/kernel"
	"github.com/chazu/contactkit/pkg/mesh"
	"github.com/chazu/contactkit/pkg/parallel"
	"github.com/chazu/contactkit/pkg/scene"
)

// ErrNoBodies is returned when no body is reachable from the scene roots.
var ErrNoBodies = errors.New("tessellate: scene has no reachable bodies")

// Options tune tessellation. The zero value uses the kernel defaults.
type Options struct {
	Cells         int     // marching cubes cells along a solid's longest side
	WeldTolerance float64 // see mesh.FromTriangles
	Workers       int     // concurrent body tessellations, 0 = GOMAXPROCS
}

// Instance is one placed body in the merged mesh. Its vertices are
// [First, First+Count) of the collision mesh.
type Instance struct {
	Name         string
	Node         scene.NodeID
	First        int
	Count        int
	Displacement v3.Vec // accumulated prescribed motion
}

// Result is the tessellated scene.
type Result struct {
	Mesh      *mesh.CollisionMesh
	Instances []Instance
}

// Target returns the full displacement vector that moves every instance by
// its prescribed motion.
func (r *Result) Target() []float64 {
	x := make([]float64, r.Mesh.NumDOF())
	for _, in := range r.Instances {
		for v := in.First; v < in.First+in.Count; v++ {
			i := 3 * r.Mesh.FullIndex(v)
			x[i] = in.Displacement.X
			x[i+1] = in.Displacement.Y
			x[i+2] = in.Displacement.Z
		}
	}
	return x
}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

// frame is one placement: rotate (degrees), then translate.
type frame struct {
	translation v3.Vec
	rotation    v3.Vec
}

// transformStack accumulates placements and motions during traversal.
type transformStack struct {
	frames []frame
	motion []v3.Vec
}

func (ts *transformStack) pushFrame(f frame) { ts.frames = append(ts.frames, f) }
func (ts *transformStack) popFrame()         { ts.frames = ts.frames[:len(ts.frames)-1] }
func (ts *transformStack) pushMotion(d v3.Vec) {
	ts.motion = append(ts.motion, d)
}
func (ts *transformStack) popMotion() { ts.motion = ts.motion[:len(ts.motion)-1] }

// snapshot copies the frames innermost first, the order they apply in.
func (ts *transformStack) snapshot() []frame {
	out := make([]frame, len(ts.frames))
	for i, f := range ts.frames {
		out[len(ts.frames)-1-i] = f
	}
	return out
}

func (ts *transformStack) displacement() v3.Vec {
	var sum v3.Vec
	for _, d := range ts.motion {
		sum = sum.Add(d)
	}
	return sum
}

// placedBody is a body reached through a particular path.
type placedBody struct {
	node   *scene.Node
	shape  *scene.Shape
	frames []frame
	motion v3.Vec
}

// collect walks the scene from its roots and returns every body instance.
func collect(s *scene.Scene) ([]placedBody, error) {
	var bodies []placedBody
	ts := &transformStack{}

	var walk func(n *scene.Node) error
	walk = func(n *scene.Node) error {
		switch n.Kind {
		case scene.NodeBody:
			bd, ok := n.Data.(scene.BodyData)
			if !ok || bd.Shape == nil {
				return fmt.Errorf("body %s has no shape", n.ID)
			}
			bodies = append(bodies, placedBody{
				node:   n,
				shape:  bd.Shape,
				frames: ts.snapshot(),
				motion: ts.displacement(),
			})
			return nil

		case scene.NodeTransform:
			td, ok := n.Data.(scene.TransformData)
			if !ok {
				return fmt.Errorf("transform node %s has unexpected data type %T", n.ID, n.Data)
			}
			var f frame
			if td.Translation != nil {
				f.translation = *td.Translation
			}
			if td.Rotation != nil {
				f.rotation = *td.Rotation
			}
			ts.pushFrame(f)
			defer ts.popFrame()

		case scene.NodeMotion:
			md, ok := n.Data.(scene.MotionData)
			if !ok {
				return fmt.Errorf("motion node %s has unexpected data type %T", n.ID, n.Data)
			}
			ts.pushMotion(md.Displacement)
			defer ts.popMotion()

		case scene.NodeGroup:
		default:
			return fmt.Errorf("unknown node kind: %v", n.Kind)
		}

		for _, child := range s.Children(n) {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, rootID := range s.Roots {
		root := s.Get(rootID)
		if root == nil {
			continue
		}
		if err := walk(root); err != nil {
			return nil, fmt.Errorf("tessellate: walking root %s: %w", rootID, err)
		}
	}
	return bodies, nil
}

// ---------------------------------------------------------------------------
// Tessellation
// ---------------------------------------------------------------------------

// Tessellate builds the collision mesh of every body reachable from the
// roots of s. Bodies are tessellated concurrently; the merged layout
// follows walk order. It never mutates s.
func Tessellate(ctx context.Context, s *scene.Scene, k kernel.Kernel, opts Options) (*Result, error) {
	if s == nil {
		return nil, ErrNoBodies
	}
	bodies, err := collect(s)
	if err != nil {
		return nil, err
	}
	if len(bodies) == 0 {
		return nil, ErrNoBodies
	}

	cells := opts.Cells
	if cells <= 0 {
		cells = s.Settings.Resolution
	}

	parts := make([]*mesh.CollisionMesh, len(bodies))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel.Workers(opts.Workers))
	for i, b := range bodies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			km, err := bodyMesh(k, b, cells)
			if err != nil {
				return fmt.Errorf("tessellate: body %s: %w", b.node.ID, err)
			}
			part, err := mesh.FromTriangles(km.Triangles, opts.WeldTolerance)
			if err != nil {
				return fmt.Errorf("tessellate: body %s: %w", b.node.ID, err)
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := mesh.Merge(parts...)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}

	res := &Result{Mesh: merged, Instances: make([]Instance, len(bodies))}
	first := 0
	for i, b := range bodies {
		res.Instances[i] = Instance{
			Name:         b.node.Name,
			Node:         b.node.ID,
			First:        first,
			Count:        parts[i].NumVertices(),
			Displacement: b.motion,
		}
		first += parts[i].NumVertices()
	}
	return res, nil
}

// bodyMesh returns the placed triangle soup of one body instance.
func bodyMesh(k kernel.Kernel, b placedBody, cells int) (*kernel.Mesh, error) {
	if b.shape.Kind == scene.ShapePlate {
		m := plateMesh(b.shape)
		m.Name = b.node.Name
		for _, f := range b.frames {
			m = m.Transform(f.apply)
		}
		return m, nil
	}

	solid, err := buildSolid(k, b.shape)
	if err != nil {
		return nil, err
	}
	for _, f := range b.frames {
		if f.rotation != (v3.Vec{}) {
			solid = k.Rotate(solid, f.rotation.X, f.rotation.Y, f.rotation.Z)
		}
		if f.translation != (v3.Vec{}) {
			solid = k.Translate(solid, f.translation.X, f.translation.Y, f.translation.Z)
		}
	}
	m, err := k.ToMesh(solid, cells)
	if err != nil {
		return nil, err
	}
	m.Name = b.node.Name
	return m, nil
}

// apply maps p through the frame, matching kernel.Rotate then
// kernel.Translate.
func (f frame) apply(p v3.Vec) v3.Vec {
	if f.rotation != (v3.Vec{}) {
		r := f.rotation.MulScalar(math.Pi / 180)
		p = sdf.RotateZ(r.Z).Mul(sdf.RotateY(r.Y)).Mul(sdf.RotateX(r.X)).MulPosition(p)
	}
	return p.Add(f.translation)
}

// buildSolid converts a shape tree into a kernel solid.
func buildSolid(k kernel.Kernel, sh *scene.Shape) (kernel.Solid, error) {
	switch sh.Kind {
	case scene.ShapeBox:
		return k.Box(sh.Size.X, sh.Size.Y, sh.Size.Z), nil
	case scene.ShapeCylinder:
		return k.Cylinder(sh.Height, sh.Radius, sh.Segments), nil
	case scene.ShapeUnion, scene.ShapeDifference, scene.ShapeIntersection:
		if len(sh.Operands) < 2 {
			return nil, fmt.Errorf("%s needs at least 2 operands", sh.Kind)
		}
		acc, err := buildSolid(k, sh.Operands[0])
		if err != nil {
			return nil, err
		}
		for _, op := range sh.Operands[1:] {
			next, err := buildSolid(k, op)
			if err != nil {
				return nil, err
			}
			switch sh.Kind {
			case scene.ShapeUnion:
				acc = k.Union(acc, next)
			case scene.ShapeDifference:
				acc = k.Difference(acc, next)
			default:
				acc = k.Intersection(acc, next)
			}
		}
		return acc, nil
	case scene.ShapePlate:
		return nil, fmt.Errorf("plates cannot be combined into solids")
	}
	return nil, fmt.Errorf("unknown shape kind %v", sh.Kind)
}

// plateMesh returns a flat grid in z=0 with its corner at the origin,
// 2*divisions^2 triangles facing +Z.
func plateMesh(sh *scene.Shape) *kernel.Mesh {
	n := max(sh.Divisions, 1)
	dx, dy := sh.Size.X/float64(n), sh.Size.Y/float64(n)
	at := func(i, j int) v3.Vec { return v3.Vec{X: float64(i) * dx, Y: float64(j) * dy} }

	m := &kernel.Mesh{Triangles: make([][3]v3.Vec, 0, 2*n*n)}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a, b, c, d := at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1)
			m.Triangles = append(m.Triangles, [3]v3.Vec{a, b, c}, [3]v3.Vec{a, c, d})
		}
	}
	return m
}

package tessellate_test

import (
	"context"
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/geom"
	"github.com/chazu/contactkit/pkg/kernel/sdfx"
	"github.com/chazu/contactkit/pkg/scene"
	"github.com/chazu/contactkit/pkg/tessellate"
)

// builder assembles small scenes by hand.
type builder struct {
	s *scene.Scene
}

func newBuilder() *builder { return &builder{s: scene.New()} }

func (b *builder) body(name string, sh *scene.Shape) scene.NodeID {
	id := b.s.NewID(scene.NodeBody, name)
	b.s.AddNode(&scene.Node{ID: id, Kind: scene.NodeBody, Name: name, Data: scene.BodyData{Shape: sh}})
	return id
}

func (b *builder) place(child scene.NodeID, at, rot *v3.Vec) scene.NodeID {
	id := b.s.NewID(scene.NodeTransform, "")
	b.s.AddNode(&scene.Node{ID: id, Kind: scene.NodeTransform, Children: []scene.NodeID{child},
		Data: scene.TransformData{Translation: at, Rotation: rot}})
	return id
}

func (b *builder) move(child scene.NodeID, by v3.Vec) scene.NodeID {
	id := b.s.NewID(scene.NodeMotion, "")
	b.s.AddNode(&scene.Node{ID: id, Kind: scene.NodeMotion, Children: []scene.NodeID{child},
		Data: scene.MotionData{Displacement: by}})
	return id
}

func (b *builder) group(name string, children ...scene.NodeID) {
	id := b.s.NewID(scene.NodeGroup, name)
	b.s.AddNode(&scene.Node{ID: id, Kind: scene.NodeGroup, Name: name, Children: children, Data: scene.GroupData{}})
	b.s.AddRoot(id)
}

func plate(w, d float64, div int) *scene.Shape {
	return &scene.Shape{Kind: scene.ShapePlate, Size: v3.Vec{X: w, Y: d}, Divisions: div}
}

func vec(x, y, z float64) *v3.Vec { return &v3.Vec{X: x, Y: y, Z: z} }

func run(t *testing.T, s *scene.Scene, opts tessellate.Options) *tessellate.Result {
	t.Helper()
	res, err := tessellate.Tessellate(context.Background(), s, sdfx.New(), opts)
	if err != nil {
		t.Fatalf("Tessellate() error: %v", err)
	}
	return res
}

func bounds(pts []v3.Vec) geom.AABB {
	b := geom.EmptyAABB()
	for _, p := range pts {
		b = b.Include(p)
	}
	return b
}

func near(a, b v3.Vec) bool {
	return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9 && math.Abs(a.Z-b.Z) < 1e-9
}

// --- Plates ---

func TestPlateGrid(t *testing.T) {
	b := newBuilder()
	b.group("world", b.place(b.body("floor", plate(2, 1, 2)), vec(-1, 0, 0.5), nil))

	res := run(t, b.s, tessellate.Options{})
	m := res.Mesh
	if m.NumVertices() != 9 {
		t.Errorf("NumVertices() = %d, want 9", m.NumVertices())
	}
	if len(m.Faces()) != 8 {
		t.Errorf("faces = %d, want 8", len(m.Faces()))
	}
	if len(m.Edges()) != 16 {
		t.Errorf("edges = %d, want 16", len(m.Edges()))
	}
	bb := bounds(m.Rest())
	if !near(bb.Min, v3.Vec{X: -1, Z: 0.5}) || !near(bb.Max, v3.Vec{X: 1, Y: 1, Z: 0.5}) {
		t.Errorf("bounds = %v", bb)
	}
	for _, f := range m.Faces() {
		p := m.Rest()
		n := p[f[1]].Sub(p[f[0]]).Cross(p[f[2]].Sub(p[f[0]]))
		if n.Z <= 0 {
			t.Fatalf("face %v does not face +Z", f)
		}
	}
}

func TestNestedPlacementsApplyInnermostFirst(t *testing.T) {
	b := newBuilder()
	// Rotate the unit plate 90 degrees about Z, then move it 1 along X.
	inner := b.place(b.body("p", plate(1, 1, 1)), nil, vec(0, 0, 90))
	b.group("world", b.place(inner, vec(1, 0, 0), nil))

	bb := bounds(run(t, b.s, tessellate.Options{}).Mesh.Rest())
	if !near(bb.Min, v3.Vec{}) || !near(bb.Max, v3.Vec{X: 1, Y: 1}) {
		t.Errorf("bounds = %v, want [0 0 0]-[1 1 0]", bb)
	}
}

// --- Motion ---

func TestTargetFollowsMotion(t *testing.T) {
	b := newBuilder()
	lower := b.body("lower", plate(1, 1, 1))
	upper := b.body("upper", plate(1, 1, 2))
	b.group("world",
		lower,
		b.move(b.move(b.place(upper, vec(0, 0, 0.2), nil), v3.Vec{Z: -0.05}), v3.Vec{X: 0.1, Z: -0.05}),
	)

	res := run(t, b.s, tessellate.Options{})
	if len(res.Instances) != 2 {
		t.Fatalf("instances = %d, want 2", len(res.Instances))
	}
	lo, up := res.Instances[0], res.Instances[1]
	if lo.Name != "lower" || lo.First != 0 || lo.Count != 4 {
		t.Errorf("lower instance = %+v", lo)
	}
	if up.Name != "upper" || up.First != 4 || up.Count != 9 {
		t.Errorf("upper instance = %+v", up)
	}
	if !near(up.Displacement, v3.Vec{X: 0.1, Z: -0.1}) {
		t.Errorf("upper displacement = %v", up.Displacement)
	}

	x := res.Target()
	if len(x) != res.Mesh.NumDOF() {
		t.Fatalf("len(Target()) = %d, want %d", len(x), res.Mesh.NumDOF())
	}
	for v := 0; v < res.Mesh.NumVertices(); v++ {
		wantZ := 0.0
		if v >= up.First {
			wantZ = -0.1
		}
		if got := x[3*v+2]; math.Abs(got-wantZ) > 1e-12 {
			t.Errorf("vertex %d z displacement = %g, want %g", v, got, wantZ)
		}
	}
}

// --- Solids ---

func TestSolidBodies(t *testing.T) {
	b := newBuilder()
	block := b.body("block", &scene.Shape{Kind: scene.ShapeBox, Size: v3.Vec{X: 1, Y: 1, Z: 1}})
	ring := b.body("ring", &scene.Shape{Kind: scene.ShapeDifference, Operands: []*scene.Shape{
		{Kind: scene.ShapeBox, Size: v3.Vec{X: 1, Y: 1, Z: 1}},
		{Kind: scene.ShapeCylinder, Height: 3, Radius: 0.25},
	}})
	b.group("world", block, b.place(ring, vec(3, 0, 0), vec(0, 0, 45)))

	res := run(t, b.s, tessellate.Options{Cells: 8, Workers: 2})
	if len(res.Instances) != 2 {
		t.Fatalf("instances = %d, want 2", len(res.Instances))
	}
	total := 0
	for _, in := range res.Instances {
		if in.Count == 0 {
			t.Errorf("instance %s has no vertices", in.Name)
		}
		total += in.Count
	}
	if total != res.Mesh.NumVertices() {
		t.Errorf("instance vertices = %d, mesh vertices = %d", total, res.Mesh.NumVertices())
	}

	ringPts := res.Mesh.Rest()[res.Instances[1].First:]
	if bb := bounds(ringPts); bb.Min.X < 2 {
		t.Errorf("ring not translated: bounds %v", bb)
	}
}

func TestSceneResolutionIsDefaultCells(t *testing.T) {
	b := newBuilder()
	b.group("world", b.body("block", &scene.Shape{Kind: scene.ShapeBox, Size: v3.Vec{X: 1, Y: 1, Z: 1}}))
	b.s.Settings.Resolution = 6
	coarse := run(t, b.s, tessellate.Options{}).Mesh.NumVertices()
	fine := run(t, b.s, tessellate.Options{Cells: 16}).Mesh.NumVertices()
	if coarse >= fine {
		t.Errorf("resolution 6 gave %d vertices, 16 cells gave %d", coarse, fine)
	}
}

// --- Errors ---

func TestTessellateErrors(t *testing.T) {
	k := sdfx.New()
	ctx := context.Background()

	if _, err := tessellate.Tessellate(ctx, nil, k, tessellate.Options{}); !errors.Is(err, tessellate.ErrNoBodies) {
		t.Errorf("nil scene: got %v, want ErrNoBodies", err)
	}

	orphan := newBuilder()
	orphan.body("lost", plate(1, 1, 1))
	orphan.group("world")
	if _, err := tessellate.Tessellate(ctx, orphan.s, k, tessellate.Options{}); !errors.Is(err, tessellate.ErrNoBodies) {
		t.Errorf("orphan body: got %v, want ErrNoBodies", err)
	}

	combined := newBuilder()
	combined.group("world", combined.body("bad", &scene.Shape{Kind: scene.ShapeUnion, Operands: []*scene.Shape{
		{Kind: scene.ShapeBox, Size: v3.Vec{X: 1, Y: 1, Z: 1}}, plate(1, 1, 1),
	}}))
	if _, err := tessellate.Tessellate(ctx, combined.s, k, tessellate.Options{}); err == nil {
		t.Error("plate inside union: expected error")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	ok := newBuilder()
	ok.group("world", ok.body("p", plate(1, 1, 1)))
	if _, err := tessellate.Tessellate(cancelled, ok.s, k, tessellate.Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v, want context.Canceled", err)
	}
}

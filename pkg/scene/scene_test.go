package scene

import (
	"strings"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(x, y, z float64) *Shape {
	return &Shape{Kind: ShapeBox, Size: v3.Vec{X: x, Y: y, Z: z}}
}

// sample builds: group "world" -> [body floor, move -> place -> body block].
func sample(t *testing.T) *Scene {
	t.Helper()
	s := New()
	floor := &Node{ID: s.NewID(NodeBody, "floor"), Kind: NodeBody, Name: "floor",
		Data: BodyData{Shape: &Shape{Kind: ShapePlate, Size: v3.Vec{X: 1, Y: 1}, Divisions: 2}}}
	block := &Node{ID: s.NewID(NodeBody, "block"), Kind: NodeBody, Name: "block",
		Data: BodyData{Shape: box(0.5, 0.5, 0.5)}}
	at := v3.Vec{Z: 0.1}
	place := &Node{ID: s.NewID(NodeTransform, ""), Kind: NodeTransform,
		Children: []NodeID{block.ID}, Data: TransformData{Translation: &at}}
	move := &Node{ID: s.NewID(NodeMotion, ""), Kind: NodeMotion,
		Children: []NodeID{place.ID}, Data: MotionData{Displacement: v3.Vec{Z: -0.2}}}
	world := &Node{ID: s.NewID(NodeGroup, "world"), Kind: NodeGroup, Name: "world",
		Children: []NodeID{floor.ID, move.ID}, Data: GroupData{}}
	for _, n := range []*Node{floor, block, place, move, world} {
		s.AddNode(n)
	}
	s.AddRoot(world.ID)
	return s
}

func TestSceneLookup(t *testing.T) {
	s := sample(t)
	assert.Equal(t, 5, s.NodeCount())
	assert.Equal(t, NodeID("body/block"), s.MustLookup("block").ID)
	assert.Nil(t, s.Lookup("missing"))
	assert.Panics(t, func() { s.MustLookup("missing") })

	bodies := s.Bodies()
	require.Len(t, bodies, 2)
	assert.Equal(t, "block", bodies[0].Name)
	assert.Equal(t, "floor", bodies[1].Name)

	world := s.Get("group/world")
	require.NotNil(t, world)
	assert.Len(t, s.Children(world), 2)
}

func TestNewIDSequence(t *testing.T) {
	s := New()
	assert.Equal(t, NodeID("motion/1"), s.NewID(NodeMotion, ""))
	assert.Equal(t, NodeID("motion/2"), s.NewID(NodeMotion, ""))
	assert.Equal(t, NodeID("transform/1"), s.NewID(NodeTransform, ""))
	assert.Equal(t, NodeID("body/x"), s.NewID(NodeBody, "x"))
}

func TestValidateClean(t *testing.T) {
	assert.Empty(t, Validate(sample(t)))
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(s *Scene)
		contains string
		severity ValidationSeverity
	}{
		{
			name:     "bad box",
			mutate:   func(s *Scene) { s.MustLookup("block").Data = BodyData{Shape: box(0, 1, 1)} },
			contains: "box size must be positive",
		},
		{
			name: "plate divisions",
			mutate: func(s *Scene) {
				s.MustLookup("floor").Data = BodyData{Shape: &Shape{Kind: ShapePlate, Size: v3.Vec{X: 1, Y: 1}}}
			},
			contains: "divisions",
		},
		{
			name: "plate in boolean",
			mutate: func(s *Scene) {
				s.MustLookup("block").Data = BodyData{Shape: &Shape{Kind: ShapeUnion, Operands: []*Shape{
					box(1, 1, 1), {Kind: ShapePlate, Size: v3.Vec{X: 1, Y: 1}, Divisions: 1},
				}}}
			},
			contains: "cannot be combined",
		},
		{
			name: "single operand",
			mutate: func(s *Scene) {
				s.MustLookup("block").Data = BodyData{Shape: &Shape{Kind: ShapeDifference, Operands: []*Shape{box(1, 1, 1)}}}
			},
			contains: "at least 2 operands",
		},
		{
			name: "cycle",
			mutate: func(s *Scene) {
				move := s.Get("motion/1")
				s.Get("transform/1").Children = append(s.Get("transform/1").Children, move.ID)
			},
			contains: "cycle",
		},
		{
			name:     "dangling child",
			mutate:   func(s *Scene) { s.Get("group/world").Children = append(s.Get("group/world").Children, "body/ghost") },
			contains: "does not exist",
		},
		{
			name: "orphan",
			mutate: func(s *Scene) {
				s.AddNode(&Node{ID: "body/stray", Kind: NodeBody, Name: "stray", Data: BodyData{Shape: box(1, 1, 1)}})
			},
			contains: "orphan",
			severity: SeverityWarning,
		},
		{
			name:     "root not a group",
			mutate:   func(s *Scene) { s.AddRoot("body/floor") },
			contains: "not a group",
		},
		{
			name:     "negative dhat",
			mutate:   func(s *Scene) { s.Settings.DHat = -1 },
			contains: "dhat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sample(t)
			tt.mutate(s)
			errs := Validate(s)
			require.NotEmpty(t, errs)
			var found bool
			for _, e := range errs {
				if strings.Contains(e.Error(), tt.contains) {
					found = true
					assert.Equal(t, tt.severity, e.Severity, e.Error())
				}
			}
			assert.True(t, found, "no finding containing %q in %v", tt.contains, errs)
			if tt.severity == SeverityWarning {
				assert.Empty(t, Errors(errs))
			}
		})
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{NodeID: "body/a", Message: "broken", Severity: SeverityError}
	assert.Equal(t, "[error] node body/a: broken", e.Error())
	e = ValidationError{Message: "scene", Severity: SeverityWarning}
	assert.Equal(t, "[warning] scene", e.Error())
}

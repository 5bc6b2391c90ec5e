package scenario

import (
	"strings"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/contactkit/pkg/scene"
)

// ---------------------------------------------------------------------------
// Preprocessing
// ---------------------------------------------------------------------------

func TestPreprocessSource(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"keyword", `(box :size v)`, `(box "__kw_size" v)`},
		{"keyword in string preserved", `"a :b"`, `"a :b"`},
		{"escaped quote in string", `"a\":b" :c`, `"a\":b" "__kw_c"`},
		{"assignment operator preserved", `(def x := 10)`, `(def x := 10)`},
		{"kebab-case identifier", `(my-shape :max-size 1)`, `(my_shape "__kw_max-size" 1)`},
		{"minus operator preserved", `(- 10 5)`, `(- 10 5)`},
		{"negative literal preserved", `(vec3 0 0 -0.5)`, `(vec3 0 0 -0.5)`},
		{"comment converted", `;; lift :it`, `// lift :it`},
		{"backtick string preserved", "`a :b`", "`a :b`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := preprocessSource(tt.input); got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Scene construction
// ---------------------------------------------------------------------------

func evaluate(t *testing.T, src string) *scene.Scene {
	t.Helper()
	s, evalErrs, err := NewEngine().Evaluate(src)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	return s
}

func evalError(t *testing.T, src string) string {
	t.Helper()
	s, evalErrs, err := NewEngine().Evaluate(src)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if s != nil || len(evalErrs) == 0 {
		t.Fatalf("expected eval error for %q", src)
	}
	return evalErrs[0].Message
}

const dropScene = `
; a block dropping onto a floor plate
(settings :dhat 0.01 :steps 20 :resolution 16)
(defbody "floor" (plate :width 2 :depth 2 :divisions 4))
(defbody "block" (box :size (vec3 0.5 0.5 0.5)))
(group "world"
  (place (body "floor") :at (vec3 -1 -1 0))
  (move (place (body "block") :at (vec3 0 0 0.1) :rotate (vec3 0 0 45))
        :by (vec3 0 0 -0.3)))
`

func TestDropScene(t *testing.T) {
	s := evaluate(t, dropScene)

	if got := s.Settings; got != (scene.Settings{DHat: 0.01, Steps: 20, Resolution: 16}) {
		t.Errorf("settings = %+v", got)
	}
	if len(s.Roots) != 1 || s.Roots[0] != "group/world" {
		t.Fatalf("roots = %v", s.Roots)
	}
	if n := s.NodeCount(); n != 6 {
		t.Errorf("NodeCount() = %d, want 6", n)
	}

	floor := s.MustLookup("floor").Data.(scene.BodyData).Shape
	if floor.Kind != scene.ShapePlate || floor.Divisions != 4 || floor.Size.X != 2 || floor.Size.Y != 2 {
		t.Errorf("floor shape = %+v", floor)
	}
	block := s.MustLookup("block").Data.(scene.BodyData).Shape
	if block.Kind != scene.ShapeBox || block.Size != (v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}) {
		t.Errorf("block shape = %+v", block)
	}

	move := s.Get("motion/1")
	if move == nil {
		t.Fatal("missing motion node")
	}
	if d := move.Data.(scene.MotionData).Displacement; d != (v3.Vec{Z: -0.3}) {
		t.Errorf("displacement = %v", d)
	}
	place := s.Get(move.Children[0])
	td := place.Data.(scene.TransformData)
	if td.Translation == nil || *td.Translation != (v3.Vec{Z: 0.1}) {
		t.Errorf("translation = %v", td.Translation)
	}
	if td.Rotation == nil || td.Rotation.Z != 45 {
		t.Errorf("rotation = %v", td.Rotation)
	}

	if errs := scene.Validate(s); len(errs) > 0 {
		t.Errorf("unexpected validation findings: %v", errs)
	}
}

func TestBooleanShapes(t *testing.T) {
	s := evaluate(t, `
(def hole (cylinder :height 2 :radius 0.2 :segments 16))
(defbody "ring" (difference (box :size (vec3 1 1 1)) hole))
(defbody "blob" (union (box :size (vec3 1 1 1)) (box :size (vec3 2 0.5 0.5)) hole))
(group "parts" (body "ring") (body "blob"))
`)
	ring := s.MustLookup("ring").Data.(scene.BodyData).Shape
	if ring.Kind != scene.ShapeDifference || len(ring.Operands) != 2 {
		t.Fatalf("ring = %+v", ring)
	}
	if c := ring.Operands[1]; c.Kind != scene.ShapeCylinder || c.Radius != 0.2 || c.Segments != 16 {
		t.Errorf("cylinder operand = %+v", c)
	}
	blob := s.MustLookup("blob").Data.(scene.BodyData).Shape
	if blob.Kind != scene.ShapeUnion || len(blob.Operands) != 3 {
		t.Errorf("blob = %+v", blob)
	}
}

func TestPlateDefaultsToOneDivision(t *testing.T) {
	s := evaluate(t, `(defbody "p" (plate :width 1 :depth 1))`)
	if d := s.MustLookup("p").Data.(scene.BodyData).Shape.Divisions; d != 1 {
		t.Errorf("divisions = %d, want 1", d)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains string
	}{
		{"vec3 arity", `(vec3 1 2)`, "exactly 3"},
		{"vec3 type", `(vec3 1 "a" 3)`, "expected number"},
		{"box missing size", `(box)`, "requires :size"},
		{"unknown keyword", `(box :size (vec3 1 1 1) :color 3)`, "unknown keyword :color"},
		{"integer segments", `(cylinder :height 1 :radius 1 :segments 1.5)`, "expected integer"},
		{"single union operand", `(union (box :size (vec3 1 1 1)))`, "at least 2 shapes"},
		{"defbody shape", `(defbody "a" 3)`, "expected shape"},
		{"duplicate body", `(defbody "a" (box :size (vec3 1 1 1))) (defbody "a" (box :size (vec3 1 1 1)))`, "already defined"},
		{"unknown body", `(body "ghost")`, "no body named"},
		{"place without ref", `(place :at (vec3 0 0 0))`, "one node reference"},
		{"move without by", `(defbody "a" (box :size (vec3 1 1 1))) (move (body "a"))`, "requires :by"},
		{"group child", `(group "g" 1)`, "expected node reference"},
		{"settings positional", `(settings 1)`, "keyword arguments only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := evalError(t, tt.src); !strings.Contains(msg, tt.contains) {
				t.Errorf("error %q does not contain %q", msg, tt.contains)
			}
		})
	}
}

package scenario

import (
	"fmt"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/contactkit/pkg/scene"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites scenario source before zygomys sees it:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords
//     never collide with user variables.
//  2. kebab-case identifiers become snake_case; zygomys reads a hyphen
//     as subtraction.
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			j := i + 1
			for j < len(b) && b[j] != '"' {
				if b[j] == '\\' && j+1 < len(b) {
					j++
				}
				j++
			}
			if j < len(b) {
				j++
			}
			result = append(result, b[i:j]...)
			i = j

		case b[i] == '`':
			j := i + 1
			for j < len(b) && b[j] != '`' {
				j++
			}
			if j < len(b) {
				j++
			}
			result = append(result, b[i:j]...)
			i = j

		case b[i] == ';':
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, ':', '=')
			i += 2

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j

		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++

		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types
// ---------------------------------------------------------------------------

// sexpShape carries a shape tree from a primitive to defbody.
type sexpShape struct {
	shape *scene.Shape
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s)", s.shape.Kind)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef is a reference to a node of the scene under construction.
type sexpNodeRef struct {
	id   scene.NodeID
	name string
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(noderef %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// trailing keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// unknownKeyword returns an error naming the first keyword outside allowed.
func (a kwArgs) unknownKeyword(form string, allowed ...string) error {
	for name := range a.kw {
		found := false
		for _, ok := range allowed {
			if name == ok {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: unknown keyword :%s", form, name)
		}
	}
	return nil
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toNodeRef(s zygo.Sexp) (scene.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return scene.ZeroID, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toShape(s zygo.Sexp) (*scene.Shape, error) {
	if sh, ok := s.(*sexpShape); ok {
		return sh.shape, nil
	}
	return nil, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// floatKW stores the keyword value in dst when present.
func floatKW(a kwArgs, form, key string, dst *float64) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", form, key, err)
	}
	*dst = f
	return nil
}

func intKW(a kwArgs, form, key string, dst *int) error {
	v, ok := a.kw[key]
	if !ok {
		return nil
	}
	n, err := toInt(v)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", form, key, err)
	}
	*dst = n
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scenario forms into env. The forms build s
// while the program runs. Source must go through preprocessSource first.
func registerBuiltins(env *zygo.Zlisp, s *scene.Scene) {

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// (box :size (vec3 1 1 0.5))
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeyword("box", "size"); err != nil {
			return zygo.SexpNull, err
		}
		v, ok := pa.kw["size"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("box requires :size")
		}
		size, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
		}
		return &sexpShape{shape: &scene.Shape{Kind: scene.ShapeBox, Size: size}}, nil
	})

	// (cylinder :height 1 :radius 0.25 :segments 32)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeyword("cylinder", "height", "radius", "segments"); err != nil {
			return zygo.SexpNull, err
		}
		sh := &scene.Shape{Kind: scene.ShapeCylinder}
		if err := floatKW(pa, "cylinder", "height", &sh.Height); err != nil {
			return zygo.SexpNull, err
		}
		if err := floatKW(pa, "cylinder", "radius", &sh.Radius); err != nil {
			return zygo.SexpNull, err
		}
		if err := intKW(pa, "cylinder", "segments", &sh.Segments); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpShape{shape: sh}, nil
	})

	// (plate :width 2 :depth 2 :divisions 4)
	env.AddFunction("plate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeyword("plate", "width", "depth", "divisions"); err != nil {
			return zygo.SexpNull, err
		}
		sh := &scene.Shape{Kind: scene.ShapePlate, Divisions: 1}
		if err := floatKW(pa, "plate", "width", &sh.Size.X); err != nil {
			return zygo.SexpNull, err
		}
		if err := floatKW(pa, "plate", "depth", &sh.Size.Y); err != nil {
			return zygo.SexpNull, err
		}
		if err := intKW(pa, "plate", "divisions", &sh.Divisions); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpShape{shape: sh}, nil
	})

	// (union a b ...), (difference a b ...), (intersection a b ...)
	for form, kind := range map[string]scene.ShapeKind{
		"union":        scene.ShapeUnion,
		"difference":   scene.ShapeDifference,
		"intersection": scene.ShapeIntersection,
	} {
		env.AddFunction(form, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least 2 shapes, got %d", form, len(args))
			}
			sh := &scene.Shape{Kind: kind}
			for i, a := range args {
				op, err := toShape(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", form, i, err)
				}
				sh.Operands = append(sh.Operands, op)
			}
			return &sexpShape{shape: sh}, nil
		})
	}

	// (defbody "block" (box ...))
	env.AddFunction("defbody", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("defbody requires a name and a shape expression")
		}
		bodyName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defbody: name: %w", err)
		}
		if bodyName == "" {
			return zygo.SexpNull, fmt.Errorf("defbody: name must not be empty")
		}
		if s.Lookup(bodyName) != nil {
			return zygo.SexpNull, fmt.Errorf("defbody: name %q already defined", bodyName)
		}
		sh, err := toShape(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defbody: %w", err)
		}

		id := s.NewID(scene.NodeBody, bodyName)
		s.AddNode(&scene.Node{
			ID:   id,
			Kind: scene.NodeBody,
			Name: bodyName,
			Data: scene.BodyData{Shape: sh},
		})
		return &sexpNodeRef{id: id, name: bodyName}, nil
	})

	// (body "block")
	env.AddFunction("body", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("body requires a name argument")
		}
		bodyName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("body: name: %w", err)
		}
		n := s.Lookup(bodyName)
		if n == nil || n.Kind != scene.NodeBody {
			return zygo.SexpNull, fmt.Errorf("body: no body named %q", bodyName)
		}
		return &sexpNodeRef{id: n.ID, name: bodyName}, nil
	})

	// (place (body "block") :at (vec3 0 0 1) :rotate (vec3 0 0 45))
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeyword("place", "at", "rotate"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires one node reference")
		}
		childID, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}

		td := scene.TransformData{}
		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
			td.Translation = &vec
		}
		if v, ok := pa.kw["rotate"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
			}
			td.Rotation = &vec
		}

		id := s.NewID(scene.NodeTransform, "")
		s.AddNode(&scene.Node{
			ID:       id,
			Kind:     scene.NodeTransform,
			Children: []scene.NodeID{childID},
			Data:     td,
		})
		return &sexpNodeRef{id: id}, nil
	})

	// (move (place ...) :by (vec3 0 0 -0.5))
	env.AddFunction("move", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeyword("move", "by"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("move requires one node reference")
		}
		childID, err := toNodeRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		v, ok := pa.kw["by"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("move requires :by")
		}
		by, err := toVec3(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: by: %w", err)
		}

		id := s.NewID(scene.NodeMotion, "")
		s.AddNode(&scene.Node{
			ID:       id,
			Kind:     scene.NodeMotion,
			Children: []scene.NodeID{childID},
			Data:     scene.MotionData{Displacement: by},
		})
		return &sexpNodeRef{id: id}, nil
	})

	// (group "world" (place ...) (move ...) ...)
	env.AddFunction("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("group requires a name argument")
		}
		groupName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("group: name: %w", err)
		}
		if s.Lookup(groupName) != nil {
			return zygo.SexpNull, fmt.Errorf("group: name %q already defined", groupName)
		}

		var children []scene.NodeID
		for i := 1; i < len(args); i++ {
			ref, ok := args[i].(*sexpNodeRef)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("group: child %d: expected node reference, got %T (%s)",
					i, args[i], args[i].SexpString(nil))
			}
			children = append(children, ref.id)
		}

		id := s.NewID(scene.NodeGroup, groupName)
		s.AddNode(&scene.Node{
			ID:       id,
			Kind:     scene.NodeGroup,
			Name:     groupName,
			Children: children,
			Data:     scene.GroupData{},
		})
		s.AddRoot(id)
		return &sexpNodeRef{id: id, name: groupName}, nil
	})

	// (settings :dhat 0.01 :steps 50 :resolution 24)
	env.AddFunction("settings", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if err := pa.unknownKeyword("settings", "dhat", "steps", "resolution"); err != nil {
			return zygo.SexpNull, err
		}
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("settings takes keyword arguments only")
		}
		if err := floatKW(pa, "settings", "dhat", &s.Settings.DHat); err != nil {
			return zygo.SexpNull, err
		}
		if err := intKW(pa, "settings", "steps", &s.Settings.Steps); err != nil {
			return zygo.SexpNull, err
		}
		if err := intKW(pa, "settings", "resolution", &s.Settings.Resolution); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})
}

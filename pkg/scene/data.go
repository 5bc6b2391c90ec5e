package scene

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// ShapeKind distinguishes between shapes.
type ShapeKind int

const (
	ShapeBox          ShapeKind = iota // solid box, minimum corner at the origin
	ShapeCylinder                      // solid Z-aligned cylinder centered on the origin
	ShapePlate                         // flat open surface in z=0, corner at the origin
	ShapeUnion                         // boolean union of its operands
	ShapeDifference                    // first operand minus the others
	ShapeIntersection                  // boolean intersection of its operands
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	case ShapePlate:
		return "plate"
	case ShapeUnion:
		return "union"
	case ShapeDifference:
		return "difference"
	case ShapeIntersection:
		return "intersection"
	default:
		return "unknown"
	}
}

// IsBoolean reports whether the shape combines operands.
func (k ShapeKind) IsBoolean() bool {
	return k == ShapeUnion || k == ShapeDifference || k == ShapeIntersection
}

// Shape is a tree of primitives and boolean operations.
type Shape struct {
	Kind ShapeKind `json:"kind"`
	// Size is the box extent, or the plate extent in X and Y.
	Size     v3.Vec  `json:"size"`
	Radius   float64 `json:"radius,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Segments int     `json:"segments,omitempty"`
	// Divisions splits each plate side into equal cells.
	Divisions int      `json:"divisions,omitempty"`
	Operands  []*Shape `json:"operands,omitempty"`
}

// BodyData is the payload of a body node.
type BodyData struct {
	Shape *Shape `json:"shape"`
}

func (BodyData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData places its children. Created by the (place ...) form.
type TransformData struct {
	Translation *v3.Vec `json:"translation,omitempty"`
	Rotation    *v3.Vec `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Motion
// ---------------------------------------------------------------------------

// MotionData displaces every vertex below it by Displacement over the run.
// Created by the (move ...) form; nested motions add up.
type MotionData struct {
	Displacement v3.Vec `json:"displacement"`
}

func (MotionData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData is a logical grouping. Created by the (group ...) form.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}

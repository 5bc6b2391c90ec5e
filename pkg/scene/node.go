// Package scene describes a contact scenario: solid bodies and plates,
// how they are placed, and how they are driven toward each other. A scene
// is a DAG of nodes whose roots are groups.
package scene

import "fmt"

// NodeID identifies a node within one scene. IDs are paths such as
// "body/block" or "move/2".
type NodeID string

// ZeroID is the empty node ID.
const ZeroID NodeID = ""

// IsZero reports whether id is empty.
func (id NodeID) IsZero() bool { return id == ZeroID }

// NodeKind enumerates the types of nodes in a scene.
type NodeKind int

const (
	NodeBody      NodeKind = iota // a shape that contributes surface
	NodeTransform                 // placement (translate, rotate)
	NodeMotion                    // prescribed displacement of its children
	NodeGroup                     // logical grouping, registered as a root
)

func (k NodeKind) String() string {
	switch k {
	case NodeBody:
		return "body"
	case NodeTransform:
		return "transform"
	case NodeMotion:
		return "motion"
	case NodeGroup:
		return "group"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is the fundamental element of a scene.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

package scene

import (
	"fmt"
	"sort"
)

// Settings are scenario-wide overrides of the run configuration. Zero
// values keep the configured defaults.
type Settings struct {
	DHat       float64 `json:"dhat,omitempty"`
	Steps      int     `json:"steps,omitempty"`
	Resolution int     `json:"resolution,omitempty"` // marching cubes cells
}

// Scene is the data structure produced by scenario evaluation. It is
// never mutated after evaluation returns.
type Scene struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Settings  Settings          `json:"settings"`

	anon map[NodeKind]int
}

// New creates an empty Scene.
func New() *Scene {
	return &Scene{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
		anon:      make(map[NodeKind]int),
	}
}

// NewID returns the ID for a node of kind k. Named nodes get "kind/name";
// anonymous ones a per-kind sequence number.
func (s *Scene) NewID(k NodeKind, name string) NodeID {
	if name != "" {
		return NodeID(k.String() + "/" + name)
	}
	s.anon[k]++
	return NodeID(fmt.Sprintf("%s/%d", k, s.anon[k]))
}

// AddNode adds a node to the scene. It does not check for duplicates.
func (s *Scene) AddNode(n *Node) {
	s.Nodes[n.ID] = n
	if n.Name != "" {
		s.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the scene.
func (s *Scene) AddRoot(id NodeID) {
	s.Roots = append(s.Roots, id)
}

// Lookup returns the node with the given user-assigned name, or nil.
func (s *Scene) Lookup(name string) *Node {
	id, ok := s.NameIndex[name]
	if !ok {
		return nil
	}
	return s.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (s *Scene) MustLookup(name string) *Node {
	n := s.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("scene: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (s *Scene) Get(id NodeID) *Node {
	return s.Nodes[id]
}

// Bodies returns all body nodes sorted by ID.
func (s *Scene) Bodies() []*Node {
	var bodies []*Node
	for _, n := range s.Nodes {
		if n.Kind == NodeBody {
			bodies = append(bodies, n)
		}
	}
	sort.Slice(bodies, func(i, j int) bool { return bodies[i].ID < bodies[j].ID })
	return bodies
}

// Children returns the child nodes of the given node.
func (s *Scene) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := s.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (s *Scene) NodeCount() int {
	return len(s.Nodes)
}

package scene

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a finding blocks the run or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks the run
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if scene-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
}

// Errors returns only the blocking findings of errs.
func Errors(errs []ValidationError) []ValidationError {
	var out []ValidationError
	for _, e := range errs {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

// Validate runs every structural and geometric check on s. Findings are
// sorted by node ID for stable output. It never mutates s.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(s)...)
	errs = append(errs, validateReferences(s)...)
	errs = append(errs, validateNames(s)...)
	errs = append(errs, validateRoots(s)...)
	errs = append(errs, validateBodies(s)...)
	errs = append(errs, validateSettings(s)...)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].NodeID < errs[j].NodeID })
	return errs
}

// validateDAG checks for cycles using DFS with 3-color marking.
func validateDAG(s *Scene) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  "cycle detected",
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node, ok := s.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	ids := make([]NodeID, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if color[id] == white && visit(id) {
			// One cycle error is sufficient.
			break
		}
	}
	return errs
}

// validateReferences checks that every child reference exists.
func validateReferences(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, node := range s.Nodes {
		for _, childID := range node.Children {
			if _, ok := s.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID),
					Severity: SeverityError,
				})
			}
		}
		if node.Kind == NodeBody && len(node.Children) > 0 {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  "body nodes cannot have children",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateNames checks that no two nodes share a name and that the name
// index only points at existing nodes.
func validateNames(s *Scene) []ValidationError {
	var errs []ValidationError
	for name, id := range s.NameIndex {
		if _, ok := s.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id),
				Severity: SeverityError,
			})
		}
	}

	nameToNodes := make(map[string]int)
	for _, node := range s.Nodes {
		if node.Name != "" {
			nameToNodes[node.Name]++
		}
	}
	for name, n := range nameToNodes {
		if n > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", name, n),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateRoots checks that roots exist and are groups, and warns about
// nodes no root reaches. Orphan bodies are left out of the collision mesh.
func validateRoots(s *Scene) []ValidationError {
	var errs []ValidationError
	reachable := make(map[NodeID]bool)
	var queue []NodeID
	for _, rid := range s.Roots {
		root, ok := s.Nodes[rid]
		if !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid),
				Severity: SeverityError,
			})
			continue
		}
		if root.Kind != NodeGroup {
			errs = append(errs, ValidationError{
				NodeID:   rid,
				Message:  fmt.Sprintf("root is a %s, not a group", root.Kind),
				Severity: SeverityError,
			})
		}
		if !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := s.Nodes[current]
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	for id, node := range s.Nodes {
		if !reachable[id] {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("%s is not reachable from any group (orphan)", node.Kind),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateBodies checks every body's shape tree.
func validateBodies(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, node := range s.Nodes {
		if node.Kind != NodeBody {
			continue
		}
		bd, ok := node.Data.(BodyData)
		if !ok || bd.Shape == nil {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  "body has no shape",
				Severity: SeverityError,
			})
			continue
		}
		for _, msg := range checkShape(bd.Shape, false) {
			errs = append(errs, ValidationError{NodeID: node.ID, Message: msg, Severity: SeverityError})
		}
	}
	return errs
}

// checkShape returns the problems of sh; inBoolean is set for operands.
func checkShape(sh *Shape, inBoolean bool) []string {
	var msgs []string
	switch sh.Kind {
	case ShapeBox:
		if sh.Size.X <= 0 || sh.Size.Y <= 0 || sh.Size.Z <= 0 {
			msgs = append(msgs, fmt.Sprintf("box size must be positive, got %v", sh.Size))
		}
	case ShapeCylinder:
		if sh.Radius <= 0 || sh.Height <= 0 {
			msgs = append(msgs, fmt.Sprintf("cylinder radius and height must be positive, got %g and %g", sh.Radius, sh.Height))
		}
	case ShapePlate:
		if inBoolean {
			msgs = append(msgs, "plates are open surfaces and cannot be combined")
		}
		if sh.Size.X <= 0 || sh.Size.Y <= 0 {
			msgs = append(msgs, fmt.Sprintf("plate size must be positive, got %gx%g", sh.Size.X, sh.Size.Y))
		}
		if sh.Divisions < 1 {
			msgs = append(msgs, fmt.Sprintf("plate divisions must be at least 1, got %d", sh.Divisions))
		}
	case ShapeUnion, ShapeDifference, ShapeIntersection:
		if len(sh.Operands) < 2 {
			msgs = append(msgs, fmt.Sprintf("%s needs at least 2 operands, got %d", sh.Kind, len(sh.Operands)))
		}
		for _, op := range sh.Operands {
			if op == nil {
				msgs = append(msgs, fmt.Sprintf("%s has a nil operand", sh.Kind))
				continue
			}
			msgs = append(msgs, checkShape(op, true)...)
		}
	default:
		msgs = append(msgs, fmt.Sprintf("unknown shape kind %d", int(sh.Kind)))
	}
	return msgs
}

func validateSettings(s *Scene) []ValidationError {
	var errs []ValidationError
	if s.Settings.DHat < 0 {
		errs = append(errs, ValidationError{
			Message:  fmt.Sprintf("settings: dhat must not be negative, got %g", s.Settings.DHat),
			Severity: SeverityError,
		})
	}
	if s.Settings.Steps < 0 || s.Settings.Resolution < 0 {
		errs = append(errs, ValidationError{
			Message:  "settings: steps and resolution must not be negative",
			Severity: SeverityError,
		})
	}
	return errs
}

package activity

import (
	"fmt"
)

// Tree is a built activity tree plus the shared objective table.
//
// The structure is immutable after NewTree. Tracking state inside the
// activities and the shared objective table are mutated by the engine only,
// one request at a time, and can be captured/restored wholesale with
// Snapshot and Restore.
type Tree struct {
	courseID string
	title    string
	root     *Activity
	nodes    map[string]*Activity
	order    map[string]int
	shared   map[string]*ObjectiveProgress
}

// NewTree builds and validates an activity tree from a compiled definition.
//
// Structural invariants checked here:
//   - every activity has a non-empty, unique ID
//   - every activity except the root has exactly one parent
//   - selection counts do not exceed the number of children
//
// A definition that violates any invariant is rejected as a whole; a Tree
// is never partially built.
func NewTree(def Definition) (*Tree, error) {
	if def.Root.ID == "" {
		return nil, fmt.Errorf("root activity has no ID")
	}

	t := &Tree{
		courseID: def.CourseID,
		title:    def.Title,
		nodes:    make(map[string]*Activity),
		order:    make(map[string]int),
		shared:   make(map[string]*ObjectiveProgress),
	}

	if err := t.build(def.Root, ""); err != nil {
		return nil, err
	}
	t.root = t.nodes[def.Root.ID]

	return t, nil
}

// build recursively converts definition nodes into tree activities.
// The recursion itself establishes single parentage and acyclicity; the ID
// uniqueness check rejects definitions that would alias two positions.
func (t *Tree) build(n Node, parent string) error {
	if n.ID == "" {
		return fmt.Errorf("activity under %q has no ID", parent)
	}
	if _, exists := t.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate activity ID %q", n.ID)
	}

	a := &Activity{
		ID:         n.ID,
		Title:      n.Title,
		Resource:   n.Resource,
		Visible:    n.Visible,
		Parent:     parent,
		Sequencing: n.Sequencing,
	}

	if sc := n.Sequencing.Randomization.SelectCount; sc != nil {
		if *sc <= 0 {
			return fmt.Errorf("activity %q: selectCount must be positive", n.ID)
		}
		if *sc > len(n.Children) {
			return fmt.Errorf("activity %q: selectCount %d exceeds %d children", n.ID, *sc, len(n.Children))
		}
	}

	t.order[n.ID] = len(t.order)
	t.nodes[n.ID] = a

	for _, child := range n.Children {
		if err := t.build(child, n.ID); err != nil {
			return err
		}
		a.Children = append(a.Children, child.ID)
	}

	return nil
}

// CourseID returns the course identifier the tree was built from.
func (t *Tree) CourseID() string { return t.courseID }

// Title returns the course display name.
func (t *Tree) Title() string { return t.title }

// Root returns the root activity.
func (t *Tree) Root() *Activity { return t.root }

// Len returns the number of activities in the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Get returns the activity with the given ID, or nil when the ID is not
// part of the tree.
func (t *Tree) Get(id string) *Activity {
	return t.nodes[id]
}

// Parent returns the parent activity, or nil for the root.
func (t *Tree) Parent(a *Activity) *Activity {
	if a == nil || a.Parent == "" {
		return nil
	}
	return t.nodes[a.Parent]
}

// Children returns the child activities in static author order.
func (t *Tree) Children(a *Activity) []*Activity {
	out := make([]*Activity, 0, len(a.Children))
	for _, id := range a.Children {
		out = append(out, t.nodes[id])
	}
	return out
}

// AvailableChildren returns the child activities in effective order: the
// selected/randomized ordering when one has been established, otherwise the
// static author order. Children removed by selection do not appear.
func (t *Tree) AvailableChildren(a *Activity) []*Activity {
	ids := a.Children
	if a.Tracking.AvailableChildren != nil {
		ids = a.Tracking.AvailableChildren
	}
	out := make([]*Activity, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.nodes[id])
	}
	return out
}

// Ancestors returns the chain from the activity's parent up to the root.
func (t *Tree) Ancestors(a *Activity) []*Activity {
	var out []*Activity
	for p := t.Parent(a); p != nil; p = t.Parent(p) {
		out = append(out, p)
	}
	return out
}

// PathFromRoot returns the chain from the root down to the activity,
// inclusive of both ends.
func (t *Tree) PathFromRoot(a *Activity) []*Activity {
	var out []*Activity
	for n := a; n != nil; n = t.Parent(n) {
		out = append(out, n)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// IsAncestor reports whether anc is a proper ancestor of a.
func (t *Tree) IsAncestor(anc, a *Activity) bool {
	if anc == nil || a == nil {
		return false
	}
	for p := t.Parent(a); p != nil; p = t.Parent(p) {
		if p.ID == anc.ID {
			return true
		}
	}
	return false
}

// CommonAncestor returns the closest activity that is an ancestor of both
// arguments, counting an activity as its own ancestor. For activities of
// one tree this always resolves, at worst to the root.
func (t *Tree) CommonAncestor(a, b *Activity) *Activity {
	onPath := make(map[string]bool)
	for n := a; n != nil; n = t.Parent(n) {
		onPath[n.ID] = true
	}
	for n := b; n != nil; n = t.Parent(n) {
		if onPath[n.ID] {
			return n
		}
	}
	return t.root
}

// Compare orders two activities by preorder position: negative when a
// precedes b, positive when a follows b, zero for the same activity.
func (t *Tree) Compare(a, b *Activity) int {
	return t.order[a.ID] - t.order[b.ID]
}

// PreOrder returns all activities in preorder (parents before children,
// children in static author order).
func (t *Tree) PreOrder() []*Activity {
	out := make([]*Activity, 0, len(t.nodes))
	var walk func(a *Activity)
	walk = func(a *Activity) {
		out = append(out, a)
		for _, id := range a.Children {
			walk(t.nodes[id])
		}
	}
	walk(t.root)
	return out
}

// PostOrder returns all activities in postorder (children before parents).
// Rollup passes use this order so child statuses are final before their
// parent aggregates them.
func (t *Tree) PostOrder() []*Activity {
	out := make([]*Activity, 0, len(t.nodes))
	var walk func(a *Activity)
	walk = func(a *Activity) {
		for _, id := range a.Children {
			walk(t.nodes[id])
		}
		out = append(out, a)
	}
	walk(t.root)
	return out
}

// SharedObjective returns the shared (global) objective progress record for
// the given identifier, creating it on first use.
func (t *Tree) SharedObjective(id string) *ObjectiveProgress {
	p, ok := t.shared[id]
	if !ok {
		p = &ObjectiveProgress{}
		t.shared[id] = p
	}
	return p
}

// SharedProgress returns the shared objective record without creating one.
// Nil means nothing has been published to the objective yet.
func (t *Tree) SharedProgress(id string) *ObjectiveProgress {
	return t.shared[id]
}

// Snapshot is a deep copy of all mutable tree state: per-activity tracking
// plus the shared objective table.
type Snapshot struct {
	Tracking map[string]Tracking          `json:"tracking"`
	Shared   map[string]ObjectiveProgress `json:"shared,omitempty"`
}

// Snapshot captures the tree's mutable state.
func (t *Tree) Snapshot() *Snapshot {
	s := &Snapshot{
		Tracking: make(map[string]Tracking, len(t.nodes)),
		Shared:   make(map[string]ObjectiveProgress, len(t.shared)),
	}
	for id, a := range t.nodes {
		s.Tracking[id] = a.Tracking.clone()
	}
	for id, p := range t.shared {
		s.Shared[id] = *p
	}
	return s
}

// Restore replaces the tree's mutable state with a previously captured
// snapshot. Activities missing from the snapshot are reset to zero state.
func (t *Tree) Restore(s *Snapshot) {
	for id, a := range t.nodes {
		if tr, ok := s.Tracking[id]; ok {
			a.Tracking = tr.clone()
		} else {
			a.Tracking = Tracking{}
		}
	}
	t.shared = make(map[string]*ObjectiveProgress, len(s.Shared))
	for id, p := range s.Shared {
		cp := p
		t.shared[id] = &cp
	}
}

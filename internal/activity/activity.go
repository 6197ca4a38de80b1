package activity

// Node is one activity in a compiled course definition. Definitions are
// produced by the course compiler and consumed once by NewTree; after that
// the engine only sees Activity values.
type Node struct {
	// ID uniquely identifies the activity within the course.
	ID string

	// Title is the display name shown to learners.
	Title string

	// Resource is the launchable content reference. Empty for clusters.
	Resource string

	// Visible controls whether the activity appears in tables of contents.
	Visible bool

	// Sequencing is the activity's sequencing definition.
	Sequencing Sequencing

	// Children are the activity's child definitions in author order.
	Children []Node
}

// Definition is a compiled course: identification plus the root activity.
type Definition struct {
	// CourseID identifies the course a registration enrolls in.
	CourseID string

	// Title is the course display name.
	Title string

	// Root is the root activity of the course.
	Root Node
}

// Activity is one node of a built activity tree.
//
// Structure (Parent, Children, Sequencing) is immutable after NewTree.
// Tracking is the only mutable part. Activities reference relatives by ID;
// resolving an ID back to an *Activity goes through the owning Tree, which
// keeps the nodes free of back-pointers.
type Activity struct {
	// ID uniquely identifies the activity within the tree.
	ID string

	// Title is the display name shown to learners.
	Title string

	// Resource is the launchable content reference. Empty for clusters.
	Resource string

	// Visible controls whether the activity appears in tables of contents.
	Visible bool

	// Parent is the parent activity ID, empty for the root.
	Parent string

	// Children are the child activity IDs in author order.
	Children []string

	// Sequencing is the activity's sequencing definition.
	Sequencing Sequencing

	// Tracking is the activity's mutable per-registration state.
	Tracking Tracking
}

// IsLeaf reports whether the activity has no children.
func (a *Activity) IsLeaf() bool {
	return len(a.Children) == 0
}

// Tracked reports whether status tracking is enabled for the activity.
func (a *Activity) Tracked() bool {
	return a.Sequencing.Delivery.Tracked
}

// PrimaryObjectiveKey returns the tracking key of the primary objective:
// the declared primary objective's ID, or the empty string when the
// activity declares no objectives.
func (a *Activity) PrimaryObjectiveKey() string {
	if obj := a.Sequencing.PrimaryObjective(); obj != nil {
		return obj.ID
	}
	return ""
}

// PrimaryProgress returns the progress record of the activity's primary
// objective, creating it on first use.
func (a *Activity) PrimaryProgress() *ObjectiveProgress {
	return a.Tracking.Objective(a.PrimaryObjectiveKey())
}

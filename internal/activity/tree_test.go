package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(id string) Node {
	return Node{
		ID:         id,
		Title:      id,
		Resource:   "content/" + id,
		Visible:    true,
		Sequencing: DefaultSequencing(),
	}
}

func cluster(id string, children ...Node) Node {
	seq := DefaultSequencing()
	seq.ControlMode.Flow = true
	return Node{
		ID:         id,
		Title:      id,
		Visible:    true,
		Sequencing: seq,
		Children:   children,
	}
}

func testDefinition() Definition {
	return Definition{
		CourseID: "course-1",
		Title:    "Test Course",
		Root: cluster("root",
			cluster("m1", leaf("a"), leaf("b")),
			cluster("m2", leaf("c"), leaf("d")),
			leaf("e"),
		),
	}
}

// TestNewTree_Builds tests basic construction and lookups.
func TestNewTree_Builds(t *testing.T) {
	tree, err := NewTree(testDefinition())
	require.NoError(t, err)

	assert.Equal(t, "course-1", tree.CourseID())
	assert.Equal(t, "Test Course", tree.Title())
	assert.Equal(t, 8, tree.Len())
	assert.Equal(t, "root", tree.Root().ID)

	a := tree.Get("a")
	require.NotNil(t, a)
	assert.Equal(t, "m1", a.Parent)
	assert.True(t, a.IsLeaf())

	m1 := tree.Get("m1")
	require.NotNil(t, m1)
	assert.False(t, m1.IsLeaf())
	assert.Equal(t, []string{"a", "b"}, m1.Children)

	assert.Nil(t, tree.Get("missing"))
}

// TestNewTree_DuplicateID tests rejection of aliased activity IDs.
func TestNewTree_DuplicateID(t *testing.T) {
	def := Definition{
		CourseID: "c",
		Root:     cluster("root", leaf("a"), leaf("a")),
	}

	_, err := NewTree(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate activity ID")
}

// TestNewTree_MissingID tests rejection of unnamed activities.
func TestNewTree_MissingID(t *testing.T) {
	def := Definition{
		CourseID: "c",
		Root:     cluster("root", Node{Title: "anonymous"}),
	}

	_, err := NewTree(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ID")

	_, err = NewTree(Definition{CourseID: "c"})
	assert.Error(t, err)
}

// TestNewTree_SelectCountBounds tests rejection of impossible selection counts.
func TestNewTree_SelectCountBounds(t *testing.T) {
	over := 3
	n := cluster("root", leaf("a"), leaf("b"))
	n.Sequencing.Randomization.SelectCount = &over

	_, err := NewTree(Definition{CourseID: "c", Root: n})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selectCount")

	zero := 0
	n.Sequencing.Randomization.SelectCount = &zero
	_, err = NewTree(Definition{CourseID: "c", Root: n})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}

// TestTree_Relations tests parent, ancestor and common-ancestor lookups.
func TestTree_Relations(t *testing.T) {
	tree, err := NewTree(testDefinition())
	require.NoError(t, err)

	a := tree.Get("a")
	m1 := tree.Get("m1")
	d := tree.Get("d")
	root := tree.Root()

	assert.Equal(t, m1, tree.Parent(a))
	assert.Nil(t, tree.Parent(root))

	assert.True(t, tree.IsAncestor(m1, a))
	assert.True(t, tree.IsAncestor(root, a))
	assert.False(t, tree.IsAncestor(a, m1))
	assert.False(t, tree.IsAncestor(a, a), "an activity is not its own proper ancestor")

	assert.Equal(t, root, tree.CommonAncestor(a, d))
	assert.Equal(t, m1, tree.CommonAncestor(a, tree.Get("b")))
	assert.Equal(t, m1, tree.CommonAncestor(a, m1))

	path := tree.PathFromRoot(d)
	ids := make([]string, 0, len(path))
	for _, n := range path {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"root", "m2", "d"}, ids)
}

// TestTree_Ordering tests preorder positions and traversal orders.
func TestTree_Ordering(t *testing.T) {
	tree, err := NewTree(testDefinition())
	require.NoError(t, err)

	a := tree.Get("a")
	c := tree.Get("c")
	assert.Negative(t, tree.Compare(a, c))
	assert.Positive(t, tree.Compare(c, a))
	assert.Zero(t, tree.Compare(a, a))

	pre := tree.PreOrder()
	preIDs := make([]string, 0, len(pre))
	for _, n := range pre {
		preIDs = append(preIDs, n.ID)
	}
	assert.Equal(t, []string{"root", "m1", "a", "b", "m2", "c", "d", "e"}, preIDs)

	post := tree.PostOrder()
	postIDs := make([]string, 0, len(post))
	for _, n := range post {
		postIDs = append(postIDs, n.ID)
	}
	assert.Equal(t, []string{"a", "b", "m1", "c", "d", "m2", "e", "root"}, postIDs)
}

// TestTree_AvailableChildren tests that tracking order overrides static order
// without touching the structure.
func TestTree_AvailableChildren(t *testing.T) {
	tree, err := NewTree(testDefinition())
	require.NoError(t, err)

	m1 := tree.Get("m1")

	ids := func(as []*Activity) []string {
		out := make([]string, 0, len(as))
		for _, a := range as {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b"}, ids(tree.AvailableChildren(m1)))

	m1.Tracking.AvailableChildren = []string{"b"}
	assert.Equal(t, []string{"b"}, ids(tree.AvailableChildren(m1)))
	assert.Equal(t, []string{"a", "b"}, m1.Children, "static order must not change")
	assert.Equal(t, []string{"a", "b"}, ids(tree.Children(m1)))
}

// TestTree_SnapshotRestore tests that snapshots capture tracking and shared
// objectives and that restores are deep.
func TestTree_SnapshotRestore(t *testing.T) {
	tree, err := NewTree(testDefinition())
	require.NoError(t, err)

	a := tree.Get("a")
	a.Tracking.Active = true
	a.Tracking.AttemptCount = 2
	a.PrimaryProgress().SetSatisfied(true)
	tree.SharedObjective("shared-1").SetMeasure(0.25)

	snap := tree.Snapshot()

	// Mutate everything after the snapshot.
	a.Tracking.Active = false
	a.Tracking.AttemptCount = 9
	a.PrimaryProgress().SetSatisfied(false)
	tree.SharedObjective("shared-1").SetMeasure(-1)
	tree.SharedObjective("shared-2").SetSatisfied(true)

	tree.Restore(snap)

	assert.True(t, a.Tracking.Active)
	assert.Equal(t, 2, a.Tracking.AttemptCount)
	assert.True(t, a.PrimaryProgress().Satisfied)
	assert.Equal(t, 0.25, tree.SharedObjective("shared-1").Measure)
	assert.False(t, tree.SharedObjective("shared-2").SatisfiedKnown, "objectives created after the snapshot are dropped")

	// The snapshot itself must be insulated from later mutation.
	a.Tracking.AttemptCount = 42
	assert.Equal(t, 2, snap.Tracking["a"].AttemptCount)
}

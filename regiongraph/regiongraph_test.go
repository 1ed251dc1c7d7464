package regiongraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeargryn/cirkit/types"
)

// checkAlternating verifies the structural laws every region graph obeys:
// regions and partitions alternate along edges, input scopes are contained in
// their output's scope, and a partition's inputs split its scope exactly.
func checkAlternating(t *testing.T, g *Graph) {
	t.Helper()
	for _, n := range g.Nodes() {
		for _, in := range g.Inputs(n) {
			assert.False(t, sameNodeKind(n, in), "%s feeds %s", in, n)
			assert.True(t, in.Scope().IsSubsetOf(n.Scope()))
		}
		if p, ok := n.(*Partition); ok {
			scope := types.NewScope()
			for _, in := range g.Inputs(p) {
				assert.False(t, scope.Overlaps(in.Scope()), "parts of %s overlap", p)
				scope = scope.Union(in.Scope())
			}
			assert.True(t, scope.Equal(p.Scope()), "parts of %s do not cover it", p)
		}
	}
}

func TestGraphAdd(t *testing.T) {
	leaf0 := NewRegion(types.NewScope(0))
	leaf1 := NewRegion(types.NewScope(1))
	partition := NewPartition(types.NewScope(0, 1))
	root := NewRegion(types.NewScope(0, 1))

	g := New().Add(leaf0).Add(leaf1).Add(partition, leaf0, leaf1).Add(root, partition)
	assert.Len(t, g.Nodes(), 4)
	assert.Equal(t, []Node{leaf0, leaf1}, g.Inputs(partition))
	assert.Equal(t, []Node{partition}, g.Outputs(leaf0))
	require.Len(t, g.OutputRegions(), 1)
	assert.Same(t, root, g.OutputRegions()[0])
	assert.True(t, g.Scope().Equal(types.NewScope(0, 1)))

	assert.Panics(t, func() { g.Add(root) })
	assert.Panics(t, func() { New().Add(partition, leaf0) })
	assert.Panics(t, func() { New().Add(leaf0).Add(NewRegion(types.NewScope(0, 1)), leaf0) })
	assert.Panics(t, func() {
		inner := NewPartition(types.NewScope(0))
		New().Add(leaf0).Add(inner, leaf0).Add(NewPartition(types.NewScope(0, 1)), inner)
	})
}

func TestFullyFactorized(t *testing.T) {
	g := FullyFactorized(5)
	checkAlternating(t, g)
	assert.True(t, g.Scope().Equal(types.ScopeRange(0, 5)))
	// 5 leaves, 1 partition, 1 root.
	assert.Len(t, g.Nodes(), 7)
	require.Len(t, g.OutputRegions(), 1)
	root := g.OutputRegions()[0]
	require.Len(t, g.Inputs(root), 1)
	assert.Len(t, g.Inputs(g.Inputs(root)[0]), 5)

	single := FullyFactorized(1)
	assert.Len(t, single.Nodes(), 1)
	assert.True(t, single.Scope().Equal(types.NewScope(0)))

	assert.Panics(t, func() { FullyFactorized(0) })
}

func TestBalancedBinaryTree(t *testing.T) {
	g := BalancedBinaryTree(8)
	checkAlternating(t, g)
	assert.True(t, g.Scope().Equal(types.ScopeRange(0, 8)))
	require.Len(t, g.OutputRegions(), 1)

	// A full binary tree over 8 leaves: 15 regions and 7 partitions.
	regions, partitions := 0, 0
	for _, n := range g.Nodes() {
		switch n.(type) {
		case *Region:
			regions++
		case *Partition:
			partitions++
		}
	}
	assert.Equal(t, 15, regions)
	assert.Equal(t, 7, partitions)

	// Every partition splits in two.
	for _, n := range g.Nodes() {
		if _, ok := n.(*Partition); ok {
			assert.Len(t, g.Inputs(n), 2)
		}
	}
}

func TestRandomBinaryTree(t *testing.T) {
	g := RandomBinaryTree(9, 123)
	checkAlternating(t, g)
	assert.True(t, g.Scope().Equal(types.ScopeRange(0, 9)))
	require.Len(t, g.OutputRegions(), 1)

	// The same seed reproduces the same decomposition.
	again := RandomBinaryTree(9, 123)
	require.Len(t, again.Nodes(), len(g.Nodes()))
	for i, n := range g.Nodes() {
		assert.True(t, n.Scope().Equal(again.Nodes()[i].Scope()))
	}

	other := RandomBinaryTree(9, 321)
	checkAlternating(t, other)
	assert.True(t, other.Scope().Equal(g.Scope()))
}

func TestRandomBinaryTrees(t *testing.T) {
	g := RandomBinaryTrees(6, 3, 7)
	checkAlternating(t, g)
	require.Len(t, g.OutputRegions(), 1)
	root := g.OutputRegions()[0]
	// One partitioning of the root per tree.
	assert.Len(t, g.Inputs(root), 3)

	assert.Panics(t, func() { RandomBinaryTrees(1, 2, 0) })
}

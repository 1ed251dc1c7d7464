// Package regiongraph implements hierarchical scope partitionings: the
// blueprints from which the DAG shape of a symbolic circuit is derived. A
// region graph alternates region nodes (a set of variables) and partition
// nodes (one way of splitting a region into disjoint sub-regions).
package regiongraph

import (
	"fmt"
	"math/rand"

	"github.com/gomlx/exceptions"

	"github.com/daeargryn/cirkit/types"
)

// Node is a region graph node, either a *Region or a *Partition. Node
// identity is reference identity.
type Node interface {
	fmt.Stringer

	// Scope is the set of variables the node covers.
	Scope() types.Scope
}

// Region is a set of variables, possibly partitioned one or more ways.
type Region struct {
	scope types.Scope
}

// NewRegion creates a region node over the given scope.
func NewRegion(scope types.Scope) *Region {
	return &Region{scope: scope}
}

func (r *Region) Scope() types.Scope { return r.scope }

func (r *Region) String() string {
	return fmt.Sprintf("Region%s", r.scope)
}

// Partition is one way of splitting its output region into the disjoint
// regions feeding it.
type Partition struct {
	scope types.Scope
}

// NewPartition creates a partition node over the given scope.
func NewPartition(scope types.Scope) *Partition {
	return &Partition{scope: scope}
}

func (p *Partition) Scope() types.Scope { return p.scope }

func (p *Partition) String() string {
	return fmt.Sprintf("Partition%s", p.scope)
}

// Graph is a region graph: a DAG alternating regions and partitions, with
// edges from the parts of a partition to it and from a partition to the
// region it splits. Nodes are stored in insertion order, which Add keeps
// topological (leaves first).
type Graph struct {
	nodes    []Node
	inNodes  map[Node][]Node
	outNodes map[Node][]Node
}

// New creates an empty region graph.
func New() *Graph {
	return &Graph{
		inNodes:  make(map[Node][]Node),
		outNodes: make(map[Node][]Node),
	}
}

// Add inserts a node fed by the given inputs, which must have been added
// before. Regions are fed by partitions splitting them and vice versa. It
// panics on malformed wiring: region graphs are built by code, not data, so
// a bad edge is a programming error.
func (g *Graph) Add(n Node, inputs ...Node) *Graph {
	if _, found := g.inNodes[n]; found {
		exceptions.Panicf("regiongraph.Add: node %s added twice", n)
	}
	switch n.(type) {
	case *Region, *Partition:
	default:
		exceptions.Panicf("regiongraph.Add: node %s is neither a region nor a partition", n)
	}
	for _, in := range inputs {
		if _, found := g.inNodes[in]; !found {
			exceptions.Panicf("regiongraph.Add: input %s of %s was not added first", in, n)
		}
		if sameNodeKind(n, in) {
			exceptions.Panicf("regiongraph.Add: %s cannot feed %s, regions and partitions must alternate", in, n)
		}
		if !in.Scope().IsSubsetOf(n.Scope()) {
			exceptions.Panicf("regiongraph.Add: input scope %s of %s is not contained in %s",
				in.Scope(), in, n.Scope())
		}
	}
	g.nodes = append(g.nodes, n)
	g.inNodes[n] = inputs
	for _, in := range inputs {
		g.outNodes[in] = append(g.outNodes[in], n)
	}
	return g
}

func sameNodeKind(a, b Node) bool {
	_, aRegion := a.(*Region)
	_, bRegion := b.(*Region)
	return aRegion == bRegion
}

// Nodes returns all nodes in insertion order, which is topological.
func (g *Graph) Nodes() []Node { return g.nodes }

// Inputs returns the nodes feeding n.
func (g *Graph) Inputs(n Node) []Node { return g.inNodes[n] }

// Outputs returns the nodes fed by n.
func (g *Graph) Outputs(n Node) []Node { return g.outNodes[n] }

// OutputRegions returns the regions that feed no other node.
func (g *Graph) OutputRegions() []*Region {
	var outputs []*Region
	for _, n := range g.nodes {
		if r, ok := n.(*Region); ok && len(g.outNodes[n]) == 0 {
			outputs = append(outputs, r)
		}
	}
	return outputs
}

// Scope returns the union of the output regions' scopes.
func (g *Graph) Scope() types.Scope {
	scope := types.NewScope()
	for _, r := range g.OutputRegions() {
		scope = scope.Union(r.Scope())
	}
	return scope
}

// FullyFactorized builds the flat region graph over numVars variables: one
// root region split by a single partition into one singleton region per
// variable. Circuits built from it are omni-compatible.
func FullyFactorized(numVars int) *Graph {
	if numVars < 1 {
		exceptions.Panicf("regiongraph.FullyFactorized: numVars must be >= 1, got %d", numVars)
	}
	g := New()
	scope := types.ScopeRange(0, numVars)
	if numVars == 1 {
		g.Add(NewRegion(scope))
		return g
	}
	parts := make([]Node, numVars)
	for v := range numVars {
		parts[v] = NewRegion(types.NewScope(v))
		g.Add(parts[v])
	}
	partition := NewPartition(scope)
	g.Add(partition, parts...)
	g.Add(NewRegion(scope), partition)
	return g
}

// BalancedBinaryTree builds the region graph splitting the variables
// [0, numVars) in halves recursively.
func BalancedBinaryTree(numVars int) *Graph {
	if numVars < 1 {
		exceptions.Panicf("regiongraph.BalancedBinaryTree: numVars must be >= 1, got %d", numVars)
	}
	g := New()
	vars := make([]int, numVars)
	for v := range vars {
		vars[v] = v
	}
	splitBinary(g, vars, nil)
	return g
}

// RandomBinaryTree builds a region graph splitting a random permutation of
// the variables in halves recursively. The same seed yields the same graph.
func RandomBinaryTree(numVars int, seed int64) *Graph {
	if numVars < 1 {
		exceptions.Panicf("regiongraph.RandomBinaryTree: numVars must be >= 1, got %d", numVars)
	}
	g := New()
	rng := rand.New(rand.NewSource(seed))
	splitBinary(g, rng.Perm(numVars), nil)
	return g
}

// RandomBinaryTrees builds numTrees random binary trees over the same
// variables and merges them at the root, yielding a multi-partitioned root
// region. Circuits built from it need a mixing layer at the top.
func RandomBinaryTrees(numVars, numTrees int, seed int64) *Graph {
	if numVars < 1 || numTrees < 1 {
		exceptions.Panicf("regiongraph.RandomBinaryTrees: numVars and numTrees must be >= 1, got %d and %d",
			numVars, numTrees)
	}
	g := New()
	rng := rand.New(rand.NewSource(seed))
	partitions := make([]Node, numTrees)
	for t := range numTrees {
		partitions[t] = splitBinaryBelowRoot(g, rng.Perm(numVars))
	}
	g.Add(NewRegion(types.ScopeRange(0, numVars)), partitions...)
	return g
}

// splitBinary adds the balanced binary decomposition of vars and its root
// region; seen deduplicates regions by scope so shared sub-scopes converge.
func splitBinary(g *Graph, vars []int, seen map[string]*Region) *Region {
	if seen == nil {
		seen = make(map[string]*Region)
	}
	scope := types.NewScope(vars...)
	if r, ok := seen[scope.Key()]; ok {
		return r
	}
	r := NewRegion(scope)
	if len(vars) == 1 {
		g.Add(r)
		seen[scope.Key()] = r
		return r
	}
	mid := len(vars) / 2
	lhs := splitBinary(g, vars[:mid], seen)
	rhs := splitBinary(g, vars[mid:], seen)
	partition := NewPartition(scope)
	g.Add(partition, lhs, rhs)
	g.Add(r, partition)
	seen[scope.Key()] = r
	return r
}

// splitBinaryBelowRoot builds one binary decomposition and returns its root
// partition, leaving the root region to the caller.
func splitBinaryBelowRoot(g *Graph, vars []int) *Partition {
	seen := make(map[string]*Region)
	mid := len(vars) / 2
	if len(vars) == 1 {
		// Degenerate single-variable tree: no partition to merge.
		exceptions.Panicf("regiongraph: cannot build multiple partitionings of a single variable")
	}
	lhs := splitBinary(g, vars[:mid], seen)
	rhs := splitBinary(g, vars[mid:], seen)
	partition := NewPartition(types.NewScope(vars...))
	g.Add(partition, lhs, rhs)
	return partition
}

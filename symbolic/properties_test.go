package symbolic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeargryn/cirkit/regiongraph"
	"github.com/daeargryn/cirkit/types"
)

// buildPairedTreeCircuit builds a circuit over 4 variables whose product
// layers follow the two given variable pairs.
func buildPairedTreeCircuit(t *testing.T, units int, pairs [2][2]int) *Circuit {
	t.Helper()
	layers := make([]Layer, 0, 14)
	inLayers := make(map[Layer][]Layer)
	sums := make(map[int]Layer, 4)
	for v := 0; v < 4; v++ {
		in := categoricalInput(t, v, units)
		sum, err := NewDenseLayer(types.NewScope(v), units, units, nil)
		require.NoError(t, err)
		layers = append(layers, in, sum)
		inLayers[sum] = []Layer{in}
		sums[v] = sum
	}
	halves := make([]Layer, 0, 2)
	for _, pair := range pairs {
		scope := types.NewScope(pair[0], pair[1])
		prod, err := NewHadamardLayer(scope, units, 2)
		require.NoError(t, err)
		sum, err := NewDenseLayer(scope, units, units, nil)
		require.NoError(t, err)
		layers = append(layers, prod, sum)
		inLayers[prod] = []Layer{sums[pair[0]], sums[pair[1]]}
		inLayers[sum] = []Layer{prod}
		halves = append(halves, sum)
	}
	scope := types.ScopeRange(0, 4)
	prod, err := NewHadamardLayer(scope, units, 2)
	require.NoError(t, err)
	root, err := NewDenseLayer(scope, units, units, nil)
	require.NoError(t, err)
	layers = append(layers, prod, root)
	inLayers[prod] = halves
	inLayers[root] = []Layer{prod}
	c, err := NewCircuit(layers, inLayers)
	require.NoError(t, err)
	return c
}

func TestFactorizedCircuitProperties(t *testing.T) {
	c := buildFactorizedCircuit(t, 4, 2, categoricalInput)
	assert.True(t, c.IsSmooth())
	assert.True(t, c.IsDecomposable())
	assert.True(t, c.IsStructuredDecomposable())
	assert.True(t, c.IsOmniCompatible())
}

func TestBinaryTreeCircuitProperties(t *testing.T) {
	c := buildBinaryTreeCircuit(t, 2, categoricalInput)
	assert.True(t, c.IsSmooth())
	assert.True(t, c.IsDecomposable())
	assert.True(t, c.IsStructuredDecomposable())
	// Products over non-singleton scopes rule out omni-compatibility.
	assert.False(t, c.IsOmniCompatible())
}

func TestNonSmoothCircuit(t *testing.T) {
	in0 := categoricalInput(t, 0, 2)
	in1 := categoricalInput(t, 1, 2)
	// A sum over variable 0 alone fed by inputs over different variables.
	sum, err := NewMixingLayer(types.NewScope(0), 2, 2, nil)
	require.NoError(t, err)
	c, err := NewCircuit([]Layer{in0, in1, sum}, map[Layer][]Layer{sum: {in0, in1}})
	require.NoError(t, err)
	assert.False(t, c.IsSmooth())
	assert.True(t, c.IsDecomposable())
}

func TestNonDecomposableCircuit(t *testing.T) {
	in0 := categoricalInput(t, 0, 2)
	in0b := categoricalInput(t, 0, 2)
	prod, err := NewHadamardLayer(types.NewScope(0), 2, 2)
	require.NoError(t, err)
	c, err := NewCircuit([]Layer{in0, in0b, prod}, map[Layer][]Layer{prod: {in0, in0b}})
	require.NoError(t, err)
	assert.True(t, c.IsSmooth())
	assert.False(t, c.IsDecomposable())
	assert.False(t, c.IsStructuredDecomposable())
	assert.False(t, c.IsOmniCompatible())
}

func TestCompatibility(t *testing.T) {
	lhs := buildPairedTreeCircuit(t, 2, [2][2]int{{0, 1}, {2, 3}})
	same := buildPairedTreeCircuit(t, 3, [2][2]int{{0, 1}, {2, 3}})
	other := buildPairedTreeCircuit(t, 2, [2][2]int{{0, 2}, {1, 3}})
	flat := buildFactorizedCircuit(t, 4, 2, categoricalInput)
	flatToo := buildFactorizedCircuit(t, 4, 3, categoricalInput)

	// Identically partitioned circuits are compatible regardless of units.
	assert.True(t, lhs.IsCompatible(same))
	assert.True(t, same.IsCompatible(lhs))
	assert.True(t, flat.IsCompatible(flatToo))

	// Different variable pairings are not.
	assert.False(t, lhs.IsCompatible(other))
	assert.False(t, other.IsCompatible(lhs))
}

func TestCompatibilityOverSharedScope(t *testing.T) {
	lhs := buildPairedTreeCircuit(t, 2, [2][2]int{{0, 1}, {2, 3}})
	other := buildPairedTreeCircuit(t, 2, [2][2]int{{0, 2}, {1, 3}})

	// Restricted to a single shared variable the partitionings cannot clash.
	assert.True(t, lhs.IsCompatibleOver(other, types.NewScope(0)))
	assert.False(t, lhs.IsCompatibleOver(other, types.ScopeRange(0, 4)))
}

func TestFromRegionGraphProperties(t *testing.T) {
	for name, g := range map[string]*regiongraph.Graph{
		"fully-factorized": regiongraph.FullyFactorized(6),
		"balanced-binary":  regiongraph.BalancedBinaryTree(8),
		"random-binary":    regiongraph.RandomBinaryTree(7, 42),
		"random-forest":    regiongraph.RandomBinaryTrees(5, 3, 7),
	} {
		t.Run(name, func(t *testing.T) {
			c, err := FromRegionGraph(g, &RegionGraphConfig{NumInputUnits: 3, NumSumUnits: 2})
			require.NoError(t, err)
			assert.True(t, c.Scope().Equal(g.Scope()))
			assert.True(t, c.IsSmooth())
			assert.True(t, c.IsDecomposable())
		})
	}
}

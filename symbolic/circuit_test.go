package symbolic

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeargryn/cirkit/types"
)

// inputFactory builds an input layer for one variable, used by the circuit
// builders shared across tests.
type inputFactory func(t *testing.T, variable, units int) Layer

func categoricalInput(t *testing.T, variable, units int) Layer {
	t.Helper()
	l, err := NewCategoricalLayer(types.NewScope(variable), units, 1, 2, nil)
	require.NoError(t, err)
	return l
}

func gaussianInput(t *testing.T, variable, units int) Layer {
	t.Helper()
	l, err := NewGaussianLayer(types.NewScope(variable), units, 1, nil)
	require.NoError(t, err)
	return l
}

func polynomialInput(degree int) inputFactory {
	return func(t *testing.T, variable, units int) Layer {
		t.Helper()
		l, err := NewPolynomialLayer(types.NewScope(variable), units, 1, degree, nil)
		require.NoError(t, err)
		return l
	}
}

// buildFactorizedCircuit builds a fully factorized circuit over numVars
// variables: one input and bridging sum per variable, a single flat product
// over all of them, and a sum on top.
func buildFactorizedCircuit(t *testing.T, numVars, units int, factory inputFactory) *Circuit {
	t.Helper()
	layers := make([]Layer, 0, 2*numVars+2)
	inLayers := make(map[Layer][]Layer)
	sums := make([]Layer, numVars)
	for v := 0; v < numVars; v++ {
		in := factory(t, v, units)
		sum, err := NewDenseLayer(types.NewScope(v), units, units, nil)
		require.NoError(t, err)
		layers = append(layers, in, sum)
		inLayers[sum] = []Layer{in}
		sums[v] = sum
	}
	prod, err := NewHadamardLayer(types.ScopeRange(0, numVars), units, numVars)
	require.NoError(t, err)
	root, err := NewDenseLayer(types.ScopeRange(0, numVars), units, units, nil)
	require.NoError(t, err)
	layers = append(layers, prod, root)
	inLayers[prod] = sums
	inLayers[root] = []Layer{prod}
	c, err := NewCircuit(layers, inLayers)
	require.NoError(t, err)
	return c
}

// buildBinaryTreeCircuit builds a circuit over 4 variables following a
// balanced binary tree: variables {0,1} and {2,3} are combined first, then
// the two halves.
func buildBinaryTreeCircuit(t *testing.T, units int, factory inputFactory) *Circuit {
	t.Helper()
	layers := make([]Layer, 0, 14)
	inLayers := make(map[Layer][]Layer)
	sums := make([]Layer, 4)
	for v := 0; v < 4; v++ {
		in := factory(t, v, units)
		sum, err := NewDenseLayer(types.NewScope(v), units, units, nil)
		require.NoError(t, err)
		layers = append(layers, in, sum)
		inLayers[sum] = []Layer{in}
		sums[v] = sum
	}
	combine := func(lhs, rhs Layer) Layer {
		scope := lhs.Scope().Union(rhs.Scope())
		prod, err := NewHadamardLayer(scope, units, 2)
		require.NoError(t, err)
		sum, err := NewDenseLayer(scope, units, units, nil)
		require.NoError(t, err)
		layers = append(layers, prod, sum)
		inLayers[prod] = []Layer{lhs, rhs}
		inLayers[sum] = []Layer{prod}
		return sum
	}
	left := combine(sums[0], sums[1])
	right := combine(sums[2], sums[3])
	combine(left, right)
	c, err := NewCircuit(layers, inLayers)
	require.NoError(t, err)
	return c
}

func TestCircuitConstruction(t *testing.T) {
	c := buildBinaryTreeCircuit(t, 3, categoricalInput)
	assert.True(t, c.Scope().Equal(types.ScopeRange(0, 4)))
	assert.Equal(t, 4, c.NumVariables())
	assert.Len(t, c.Layers(), 14)
	assert.Len(t, c.InputLayers(), 4)
	assert.Len(t, c.InnerLayers(), 10)
	assert.Len(t, c.SumLayers(), 7)
	assert.Len(t, c.ProductLayers(), 3)
	require.Len(t, c.OutputLayers(), 1)

	root := c.OutputLayers()[0]
	assert.Equal(t, KindDense, root.Kind())
	require.Len(t, c.LayerInputs(root), 1)
	assert.Empty(t, c.LayerOutputs(root))
	for _, in := range c.InputLayers() {
		assert.Empty(t, c.LayerInputs(in))
		assert.Len(t, c.LayerOutputs(in), 1)
	}
	assert.Nil(t, c.Operation())
}

func TestCircuitValidation(t *testing.T) {
	in := categoricalInput(t, 0, 2)
	sum, err := NewDenseLayer(types.NewScope(0), 2, 2, nil)
	require.NoError(t, err)

	var structuralErr *StructuralError

	_, err = NewCircuit(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.As(err, &structuralErr))

	_, err = NewCircuit([]Layer{in, in}, nil)
	require.Error(t, err)

	// A non-input layer must be fed by exactly its arity.
	_, err = NewCircuit([]Layer{in, sum}, map[Layer][]Layer{})
	require.Error(t, err)
	assert.True(t, errors.As(err, &structuralErr))

	// Unit counts must line up across each edge.
	narrow, err := NewDenseLayer(types.NewScope(0), 3, 2, nil)
	require.NoError(t, err)
	_, err = NewCircuit([]Layer{in, narrow}, map[Layer][]Layer{narrow: {in}})
	require.Error(t, err)
	assert.True(t, errors.As(err, &structuralErr))

	// Every connected layer must be part of the circuit.
	_, err = NewCircuit([]Layer{sum}, map[Layer][]Layer{sum: {in}})
	require.Error(t, err)
}

func TestTopologicalOrdering(t *testing.T) {
	c := buildBinaryTreeCircuit(t, 2, categoricalInput)
	ordering, err := c.TopologicalOrdering()
	require.NoError(t, err)
	require.Len(t, ordering, len(c.Layers()))

	position := make(map[Layer]int, len(ordering))
	for i, l := range ordering {
		position[l] = i
	}
	for _, l := range c.Layers() {
		for _, in := range c.LayerInputs(l) {
			assert.Less(t, position[in], position[l], "%s must come after its input %s", l, in)
		}
	}

	// The ordering is deterministic across calls.
	again, err := c.TopologicalOrdering()
	require.NoError(t, err)
	assert.Equal(t, ordering, again)
}

func TestCyclicCircuit(t *testing.T) {
	scope := types.NewScope(0)
	a, err := NewDenseLayer(scope, 2, 2, nil)
	require.NoError(t, err)
	b, err := NewDenseLayer(scope, 2, 2, nil)
	require.NoError(t, err)

	_, err = NewCircuit([]Layer{a, b}, map[Layer][]Layer{a: {b}, b: {a}})
	require.Error(t, err)
	var cyclicErr *CyclicGraphError
	assert.True(t, errors.As(err, &cyclicErr))
}

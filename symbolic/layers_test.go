package symbolic

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/gopjrt/dtypes"

	"github.com/daeargryn/cirkit/types"
	"github.com/daeargryn/cirkit/types/shapes"
)

func requireConfigError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var configErr *ConfigurationError
	assert.True(t, errors.As(err, &configErr), "expected a configuration error, got %v", err)
}

func TestCategoricalLayer(t *testing.T) {
	l, err := NewCategoricalLayer(types.NewScope(3), 4, 1, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, KindCategorical, l.Kind())
	assert.True(t, l.Scope().Equal(types.NewScope(3)))
	assert.Equal(t, 4, l.NumOutputUnits())
	assert.Equal(t, 1, l.NumInputUnits())
	assert.Equal(t, 1, l.Arity())
	assert.True(t, l.Kind().IsInput())

	// Default parameterization is learnable logits.
	params := l.Params()
	require.Contains(t, params, "logits")
	assert.True(t, params["logits"].Shape().Equal(shapes.Make(dtypes.Float32, 4, 1, 5)))

	probs := NormalTensor(4, 1, 5)
	l, err = NewCategoricalLayer(types.NewScope(3), 4, 1, 5, &CategoricalParams{Probs: probs})
	require.NoError(t, err)
	assert.Same(t, Parameter(probs), l.Probs())
	require.Contains(t, l.Params(), "probs")

	// A single categorical variable per layer.
	_, err = NewCategoricalLayer(types.NewScope(0, 1), 4, 1, 5, nil)
	requireConfigError(t, err)
	// At least two categories.
	_, err = NewCategoricalLayer(types.NewScope(3), 4, 1, 1, nil)
	requireConfigError(t, err)
	// Probs and logits are mutually exclusive.
	_, err = NewCategoricalLayer(types.NewScope(3), 4, 1, 5,
		&CategoricalParams{Probs: probs, Logits: NormalTensor(4, 1, 5)})
	requireConfigError(t, err)
	// Parameter shape must match (units, channels, categories).
	_, err = NewCategoricalLayer(types.NewScope(3), 4, 1, 5, &CategoricalParams{Probs: NormalTensor(4, 1, 3)})
	requireConfigError(t, err)
}

func TestGaussianLayer(t *testing.T) {
	l, err := NewGaussianLayer(types.NewScope(0), 3, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, KindGaussian, l.Kind())

	params := l.Params()
	require.Contains(t, params, "mean")
	require.Contains(t, params, "stddev")
	assert.NotContains(t, params, "log_partition")
	assert.True(t, params["mean"].Shape().Equal(shapes.Make(dtypes.Float32, 3, 1)))
	// The default stddev is squashed into a positive range.
	assert.Equal(t, ParamScaledSigmoid, params["stddev"].Kind())

	logPartition := NewConstantParameter(shapes.Make(dtypes.Float32, 3, 1), 0)
	l, err = NewGaussianLayer(types.NewScope(0), 3, 1, &GaussianParams{LogPartition: logPartition})
	require.NoError(t, err)
	require.Contains(t, l.Params(), "log_partition")

	_, err = NewGaussianLayer(types.NewScope(0), 3, 1, &GaussianParams{Mean: NormalTensor(2, 1)})
	requireConfigError(t, err)
}

func TestPolynomialLayer(t *testing.T) {
	l, err := NewPolynomialLayer(types.NewScope(1), 2, 1, 3, nil)
	require.NoError(t, err)
	assert.True(t, l.Coeff().Shape().Equal(shapes.Make(dtypes.Float32, 2, 4)))
	assert.Equal(t, 3, l.Degree())

	_, err = NewPolynomialLayer(types.NewScope(1), 2, 1, -1, nil)
	requireConfigError(t, err)
	_, err = NewPolynomialLayer(types.NewScope(1), 2, 1, 3, NormalTensor(2, 3))
	requireConfigError(t, err)
}

func TestLogPartitionLayer(t *testing.T) {
	value := NormalTensor(3)
	l, err := NewLogPartitionLayer(types.Scope{}, 3, 1, value)
	require.NoError(t, err)
	assert.True(t, l.Scope().Equal(types.Scope{}))
	assert.Equal(t, 3, l.NumOutputUnits())
	assert.Same(t, Parameter(value), l.Value())

	_, err = NewLogPartitionLayer(types.Scope{}, 3, 1, nil)
	requireConfigError(t, err)
	_, err = NewLogPartitionLayer(types.Scope{}, 3, 1, NormalTensor(4))
	requireConfigError(t, err)
}

func TestEvidenceLayer(t *testing.T) {
	categorical, err := NewCategoricalLayer(types.NewScope(2), 4, 1, 5, nil)
	require.NoError(t, err)

	observation := NewConstantParameter(shapes.Make(dtypes.Float32, 1, 1), 3)
	l, err := NewEvidenceLayer(categorical, observation)
	require.NoError(t, err)
	assert.Equal(t, KindEvidence, l.Kind())
	assert.True(t, l.Scope().Equal(types.Scope{}))
	assert.Equal(t, categorical.NumOutputUnits(), l.NumOutputUnits())

	// The wrapped layer's parameters stay reachable next to the observation.
	params := l.Params()
	require.Contains(t, params, "observation")
	require.Contains(t, params, "logits")

	_, err = NewEvidenceLayer(categorical, NewConstantParameter(shapes.Make(dtypes.Float32, 2, 1), 0))
	requireConfigError(t, err)
}

func TestHadamardAndKroneckerLayers(t *testing.T) {
	scope := types.NewScope(0, 1)

	h, err := NewHadamardLayer(scope, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, KindHadamard, h.Kind())
	assert.True(t, h.Kind().IsProduct())
	assert.Equal(t, 3, h.NumInputUnits())
	assert.Equal(t, 3, h.NumOutputUnits())
	assert.Equal(t, 2, h.Arity())

	k, err := NewKroneckerLayer(scope, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 9, k.NumOutputUnits())

	_, err = NewHadamardLayer(scope, 3, 1)
	requireConfigError(t, err)
	_, err = NewKroneckerLayer(scope, 0, 2)
	requireConfigError(t, err)
}

func TestDenseAndMixingLayers(t *testing.T) {
	scope := types.NewScope(0, 1)

	d, err := NewDenseLayer(scope, 3, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, KindDense, d.Kind())
	assert.True(t, d.Kind().IsSum())
	assert.Equal(t, 1, d.Arity())
	assert.True(t, d.Weight().Shape().Equal(shapes.Make(dtypes.Float32, 2, 3)))

	m, err := NewMixingLayer(scope, 3, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Arity())
	assert.Equal(t, 3, m.NumOutputUnits())
	assert.True(t, m.Weight().Shape().Equal(shapes.Make(dtypes.Float32, 3, 4)))

	_, err = NewDenseLayer(scope, 3, 2, NormalTensor(3, 2))
	requireConfigError(t, err)
	_, err = NewMixingLayer(scope, 3, 1, nil)
	requireConfigError(t, err)
}

func TestIndexLayer(t *testing.T) {
	l, err := NewIndexLayer(types.NewScope(0, 1), 4, 3, []int{0, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, KindIndex, l.Kind())
	assert.Equal(t, []int{0, 2, 1}, l.Indices())
	assert.Empty(t, l.Params())

	_, err = NewIndexLayer(types.NewScope(0, 1), 4, 3, []int{0, 1})
	requireConfigError(t, err)
	_, err = NewIndexLayer(types.NewScope(0, 1), 4, 3, []int{0, 4, 1})
	requireConfigError(t, err)
}

func TestRegisterInputKind(t *testing.T) {
	kind := KindFirstCustom + 1
	assert.False(t, kind.IsInput())
	RegisterInputKind(kind)
	assert.True(t, kind.IsInput())
	assert.False(t, kind.IsSum())
	assert.False(t, kind.IsProduct())
}

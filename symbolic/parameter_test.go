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

func TestTensorAndConstantParameters(t *testing.T) {
	p := NormalTensor(3, 4)
	assert.Equal(t, ParamTensor, p.Kind())
	assert.True(t, p.Shape().Equal(shapes.Make(dtypes.Float32, 3, 4)))
	assert.True(t, p.Learnable())
	assert.Empty(t, p.Operands())

	c := NewConstantParameter(shapes.Make(dtypes.Float32, 3), 1.5)
	assert.Equal(t, ParamConstant, c.Kind())
	assert.Equal(t, 1.5, c.Value())
}

func TestParameterKindString(t *testing.T) {
	assert.Equal(t, "Kronecker", ParamKronecker.String())
	assert.Equal(t, "Custom(1007)", (ParamFirstCustom + 7).String())
}

func TestElementwiseShapes(t *testing.T) {
	p := NormalTensor(2, 5)
	for _, node := range []Parameter{NewExp(p), NewLog(p), NewSquare(p), NewSigmoid(p), NewConjugate(p)} {
		assert.True(t, node.Shape().Equal(p.Shape()), "%s should preserve the shape", node.Kind())
		require.Len(t, node.Operands(), 1)
		assert.Same(t, Parameter(p), node.Operands()[0])
	}

	scaled, err := NewScaledSigmoid(p, 1e-5, 1.0)
	require.NoError(t, err)
	assert.True(t, scaled.Shape().Equal(p.Shape()))
	_, err = NewScaledSigmoid(p, 1.0, 1.0)
	require.Error(t, err)
	var configErr *ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

func TestSoftmaxAndReductionShapes(t *testing.T) {
	p := NormalTensor(2, 3, 4)

	softmax, err := NewSoftmax(p, -1)
	require.NoError(t, err)
	assert.True(t, softmax.Shape().Equal(p.Shape()))
	assert.Equal(t, 2, softmax.Axis())

	_, err = NewLogSoftmax(p, 3)
	require.Error(t, err)
	var shapeErr *ShapeError
	assert.True(t, errors.As(err, &shapeErr))

	sum, err := NewReduceSum(p, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, sum.Shape().Dimensions)

	lse, err := NewReduceLSE(p, -1)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, lse.Shape().Dimensions)

	_, err = NewReduceProduct(p, 5)
	require.Error(t, err)
}

func TestCombinationShapes(t *testing.T) {
	a := NormalTensor(2, 3)
	b := NormalTensor(4, 5)

	kron, err := NewKronecker(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 15}, kron.Shape().Dimensions)

	_, err = NewKronecker(a, NormalTensor(4))
	require.Error(t, err)

	had, err := NewHadamard(a, NormalTensor(2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, had.Shape().Dimensions)
	_, err = NewHadamard(a, b)
	require.Error(t, err)

	sum, err := NewSum(a, NormalTensor(2, 3), NormalTensor(2, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, sum.Shape().Dimensions)
	assert.Len(t, sum.Operands(), 3)
}

func TestOuterProductShapes(t *testing.T) {
	a := NormalTensor(2, 7)
	b := NormalTensor(3, 7)

	outer, err := NewOuterProduct(a, b, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 7}, outer.Shape().Dimensions)
	assert.Equal(t, 0, outer.Axis())

	outerSum, err := NewOuterSum(a, b, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 7}, outerSum.Shape().Dimensions)

	// Non-crossed dimensions must agree.
	_, err = NewOuterProduct(a, NormalTensor(3, 8), 0)
	require.Error(t, err)
	var shapeErr *ShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

func TestGaussianProductShapes(t *testing.T) {
	mean1, stddev1 := NormalTensor(2, 1), NormalTensor(2, 1)
	mean2, stddev2 := NormalTensor(3, 1), NormalTensor(3, 1)

	mean, err := NewGaussianProductMean(mean1, stddev1, mean2, stddev2)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 1}, mean.Shape().Dimensions)

	stddev, err := NewGaussianProductStddev(stddev1, stddev2)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 1}, stddev.Shape().Dimensions)

	logPartition, err := NewGaussianProductLogPartition(mean1, stddev1, mean2, stddev2)
	require.NoError(t, err)
	assert.Equal(t, []int{6, 1}, logPartition.Shape().Dimensions)

	_, err = NewGaussianProductMean(mean1, stddev1, mean2, NormalTensor(3, 2))
	require.Error(t, err)
}

func TestPolynomialParameterShapes(t *testing.T) {
	coeff := NormalTensor(4, 3) // degree 2

	diff, err := NewPolynomialDifferential(coeff)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, diff.Shape().Dimensions)

	// The derivative of a constant polynomial still has one coefficient.
	constDiff, err := NewPolynomialDifferential(NormalTensor(4, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1}, constDiff.Shape().Dimensions)

	product, err := NewPolynomialProduct(coeff, NormalTensor(5, 4))
	require.NoError(t, err)
	assert.Equal(t, []int{20, 6}, product.Shape().Dimensions)
}

func TestReferenceParameter(t *testing.T) {
	dense, err := NewDenseLayer(types.NewScope(0), 3, 2, nil)
	require.NoError(t, err)

	ref, err := NewReferenceParameter(dense, "weight")
	require.NoError(t, err)
	assert.True(t, ref.Shape().Equal(shapes.Make(dtypes.Float32, 2, 3)))
	assert.Same(t, Layer(dense), ref.Owner())
	assert.Same(t, dense.Weight(), ref.Deref())

	_, err = NewReferenceParameter(dense, "bias")
	require.Error(t, err)
	var configErr *ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}

package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/gopjrt/dtypes"

	"github.com/daeargryn/cirkit/symbolic"
	"github.com/daeargryn/cirkit/types/shapes"
)

// leaf builds a tensor parameter with the given values, for exercising the
// materialization arithmetic directly.
func leaf(t *testing.T, values []float64, dims ...int) *TensorParameter {
	t.Helper()
	tensor := newTensor(shapes.Make(dtypes.Float64, dims...), false)
	require.Len(t, values, len(tensor.data))
	copy(tensor.data, values)
	return &TensorParameter{tensor: tensor}
}

func materialized(t *testing.T, p Parameter) []float64 {
	t.Helper()
	tensor, err := p.Materialize()
	require.NoError(t, err)
	return tensor.Data()
}

func op(kind symbolic.ParameterKind, dims []int, operands ...Parameter) *OpParameter {
	return &OpParameter{kind: kind, shape: shapes.Make(dtypes.Float64, dims...), operands: operands}
}

func TestMaterializeElementwise(t *testing.T) {
	in := leaf(t, []float64{0, 1, -1, 2}, 4)

	assert.InDeltaSlice(t, []float64{1, math.E, 1 / math.E, math.E * math.E},
		materialized(t, op(symbolic.ParamExp, []int{4}, in)), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1, 1, 4},
		materialized(t, op(symbolic.ParamSquare, []int{4}, in)), 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, sigmoid(1), sigmoid(-1), sigmoid(2)},
		materialized(t, op(symbolic.ParamSigmoid, []int{4}, in)), 1e-12)
	// Parameters are stored as real tensors, so conjugation is the identity.
	assert.Equal(t, in.tensor.data,
		materialized(t, op(symbolic.ParamConjugate, []int{4}, in)))

	scaled := op(symbolic.ParamScaledSigmoid, []int{4}, in)
	scaled.vmin, scaled.vmax = 1, 3
	assert.InDeltaSlice(t, []float64{2, 1 + 2*sigmoid(1), 1 + 2*sigmoid(-1), 1 + 2*sigmoid(2)},
		materialized(t, scaled), 1e-12)

	clamp := op(symbolic.ParamClamp, []int{4}, in)
	clamp.vmin, clamp.vmax = 0, 1
	assert.InDeltaSlice(t, []float64{0, 1, 0, 1}, materialized(t, clamp), 1e-12)
}

func TestMaterializeSoftmax(t *testing.T) {
	in := leaf(t, []float64{0, 1, 2, 3, 4, 5}, 2, 3)
	softmax := op(symbolic.ParamSoftmax, []int{2, 3}, in)
	softmax.axis = 1
	out := materialized(t, softmax)
	for row := 0; row < 2; row++ {
		total := out[row*3] + out[row*3+1] + out[row*3+2]
		assert.InDelta(t, 1.0, total, 1e-12)
		assert.Less(t, out[row*3], out[row*3+1])
		assert.Less(t, out[row*3+1], out[row*3+2])
	}

	logSoftmax := op(symbolic.ParamLogSoftmax, []int{2, 3}, in)
	logSoftmax.axis = 1
	logOut := materialized(t, logSoftmax)
	for i := range out {
		assert.InDelta(t, math.Log(out[i]), logOut[i], 1e-12)
	}
}

func TestMaterializeReductions(t *testing.T) {
	in := leaf(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	sum := op(symbolic.ParamReduceSum, []int{2}, in)
	sum.axis = 1
	assert.InDeltaSlice(t, []float64{6, 15}, materialized(t, sum), 1e-12)

	product := op(symbolic.ParamReduceProduct, []int{3}, in)
	product.axis = 0
	assert.InDeltaSlice(t, []float64{4, 10, 18}, materialized(t, product), 1e-12)

	lse := op(symbolic.ParamReduceLSE, []int{2}, in)
	lse.axis = 1
	want := []float64{
		math.Log(math.Exp(1) + math.Exp(2) + math.Exp(3)),
		math.Log(math.Exp(4) + math.Exp(5) + math.Exp(6)),
	}
	assert.InDeltaSlice(t, want, materialized(t, lse), 1e-12)
}

func TestMaterializeCombinations(t *testing.T) {
	a := leaf(t, []float64{1, 2}, 2, 1)
	b := leaf(t, []float64{10, 20, 30}, 3, 1)

	kron := op(symbolic.ParamKronecker, []int{6, 1}, a, b)
	assert.InDeltaSlice(t, []float64{10, 20, 30, 20, 40, 60}, materialized(t, kron), 1e-12)

	outerProduct := op(symbolic.ParamOuterProduct, []int{6, 1}, a, b)
	assert.InDeltaSlice(t, []float64{10, 20, 30, 20, 40, 60}, materialized(t, outerProduct), 1e-12)

	outerSum := op(symbolic.ParamOuterSum, []int{6, 1}, a, b)
	assert.InDeltaSlice(t, []float64{11, 21, 31, 12, 22, 32}, materialized(t, outerSum), 1e-12)

	hadamard := op(symbolic.ParamHadamard, []int{2, 1}, a, leaf(t, []float64{3, 4}, 2, 1))
	assert.InDeltaSlice(t, []float64{3, 8}, materialized(t, hadamard), 1e-12)

	total := op(symbolic.ParamSum, []int{2, 1}, a, a, leaf(t, []float64{1, 1}, 2, 1))
	assert.InDeltaSlice(t, []float64{3, 5}, materialized(t, total), 1e-12)
}

func TestMaterializeGaussianProduct(t *testing.T) {
	mean1, stddev1 := leaf(t, []float64{0}, 1, 1), leaf(t, []float64{1}, 1, 1)
	mean2, stddev2 := leaf(t, []float64{2}, 1, 1), leaf(t, []float64{1}, 1, 1)

	mean := op(symbolic.ParamGaussianProductMean, []int{1, 1}, mean1, stddev1, mean2, stddev2)
	assert.InDelta(t, 1.0, materialized(t, mean)[0], 1e-12)

	stddev := op(symbolic.ParamGaussianProductStddev, []int{1, 1}, stddev1, stddev2)
	assert.InDelta(t, math.Sqrt(0.5), materialized(t, stddev)[0], 1e-12)

	logPartition := op(symbolic.ParamGaussianProductLogPartition, []int{1, 1},
		mean1, stddev1, mean2, stddev2)
	want := -0.5 * (math.Log(2*math.Pi*2) + 4.0/2)
	assert.InDelta(t, want, materialized(t, logPartition)[0], 1e-12)
}

func TestMaterializePolynomials(t *testing.T) {
	// d/dx (1 + 2x + 3x^2) = 2 + 6x
	diff := op(symbolic.ParamPolynomialDifferential, []int{1, 2}, leaf(t, []float64{1, 2, 3}, 1, 3))
	assert.InDeltaSlice(t, []float64{2, 6}, materialized(t, diff), 1e-12)

	// The derivative of a constant is the zero polynomial.
	constDiff := op(symbolic.ParamPolynomialDifferential, []int{1, 1}, leaf(t, []float64{5}, 1, 1))
	assert.InDeltaSlice(t, []float64{0}, materialized(t, constDiff), 1e-12)

	// (1 + 2x)(3 + x) = 3 + 7x + 2x^2
	product := op(symbolic.ParamPolynomialProduct, []int{1, 3},
		leaf(t, []float64{1, 2}, 1, 2), leaf(t, []float64{3, 1}, 1, 2))
	assert.InDeltaSlice(t, []float64{3, 7, 2}, materialized(t, product), 1e-12)
}

func TestMaterializeConstantAndPointer(t *testing.T) {
	constant := &ConstantParameter{shape: shapes.Make(dtypes.Float64, 2, 2), value: 1.5}
	assert.Equal(t, []float64{1.5, 1.5, 1.5, 1.5}, materialized(t, constant))
	assert.False(t, mustMaterialize(t, constant).Learnable())

	ref := leaf(t, []float64{1, 2}, 2)
	pointer := &PointerParameter{ref: ref}
	assert.Same(t, ref.tensor, mustMaterialize(t, pointer))
	assert.Same(t, ref, pointer.Ref())
	assert.Zero(t, pointer.FoldIdx())
}

func mustMaterialize(t *testing.T, p Parameter) *Tensor {
	t.Helper()
	tensor, err := p.Materialize()
	require.NoError(t, err)
	return tensor
}

func TestTensorFill(t *testing.T) {
	tensor := newTensor(shapes.Make(dtypes.Float64, 3), true)
	require.NoError(t, tensor.fill(symbolic.ConstantInitializer{Value: 2}, nil))
	assert.Equal(t, []float64{2, 2, 2}, tensor.Data())
	assert.True(t, tensor.Learnable())
}

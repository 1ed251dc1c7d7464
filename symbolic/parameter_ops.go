package symbolic

import (
	"github.com/daeargryn/cirkit/types/shapes"
)

// opBase carries the common node state of operator parameters. The shape is
// computed eagerly at construction and cached, since nodes are immutable.
type opBase struct {
	kind     ParameterKind
	shape    shapes.Shape
	operands []Parameter
}

func (p *opBase) Kind() ParameterKind   { return p.kind }
func (p *opBase) Shape() shapes.Shape   { return p.shape }
func (p *opBase) Operands() []Parameter { return p.operands }

func makeOpBase(kind ParameterKind, shape shapes.Shape, operands ...Parameter) opBase {
	return opBase{kind: kind, shape: shape, operands: operands}
}

func sameDType(kind ParameterKind, operands ...Parameter) error {
	dtype := operands[0].Shape().DType
	for _, opd := range operands[1:] {
		if opd.Shape().DType != dtype {
			return shapeErrorf(kind.String(), "operands have mixed dtypes %s and %s",
				dtype, opd.Shape().DType)
		}
	}
	return nil
}

// ExpParameter applies exp elementwise; shape-preserving.
type ExpParameter struct{ opBase }

// NewExp creates an elementwise exp node.
func NewExp(opd Parameter) *ExpParameter {
	return &ExpParameter{makeOpBase(ParamExp, opd.Shape(), opd)}
}

// LogParameter applies log elementwise; shape-preserving.
type LogParameter struct{ opBase }

// NewLog creates an elementwise log node.
func NewLog(opd Parameter) *LogParameter {
	return &LogParameter{makeOpBase(ParamLog, opd.Shape(), opd)}
}

// SquareParameter squares elementwise; shape-preserving.
type SquareParameter struct{ opBase }

// NewSquare creates an elementwise square node.
func NewSquare(opd Parameter) *SquareParameter {
	return &SquareParameter{makeOpBase(ParamSquare, opd.Shape(), opd)}
}

// SigmoidParameter applies the logistic sigmoid elementwise; shape-preserving.
type SigmoidParameter struct{ opBase }

// NewSigmoid creates an elementwise sigmoid node.
func NewSigmoid(opd Parameter) *SigmoidParameter {
	return &SigmoidParameter{makeOpBase(ParamSigmoid, opd.Shape(), opd)}
}

// ConjugateParameter marks the complex conjugation of its operand. For real
// dtypes it compiles to the identity; it exists so that conjugation of a
// circuit is expressible purely at the parameter level.
type ConjugateParameter struct{ opBase }

// NewConjugate creates a conjugation node.
func NewConjugate(opd Parameter) *ConjugateParameter {
	return &ConjugateParameter{makeOpBase(ParamConjugate, opd.Shape(), opd)}
}

// ScaledSigmoidParameter applies vmin + (vmax-vmin)*sigmoid(x) elementwise.
// It is the default positivity parameterization for scale parameters, e.g.
// Gaussian standard deviations.
type ScaledSigmoidParameter struct {
	opBase
	vmin, vmax float64
}

// NewScaledSigmoid creates a scaled sigmoid node mapping into (vmin, vmax).
func NewScaledSigmoid(opd Parameter, vmin, vmax float64) (*ScaledSigmoidParameter, error) {
	if vmin >= vmax {
		return nil, configErrorf("ScaledSigmoid", "vmin=%g must be < vmax=%g", vmin, vmax)
	}
	return &ScaledSigmoidParameter{makeOpBase(ParamScaledSigmoid, opd.Shape(), opd), vmin, vmax}, nil
}

func (p *ScaledSigmoidParameter) VMin() float64 { return p.vmin }
func (p *ScaledSigmoidParameter) VMax() float64 { return p.vmax }

// ClampParameter clamps elementwise into [vmin, vmax].
type ClampParameter struct {
	opBase
	vmin, vmax float64
}

// NewClamp creates a clamping node.
func NewClamp(opd Parameter, vmin, vmax float64) (*ClampParameter, error) {
	if vmin > vmax {
		return nil, configErrorf("Clamp", "vmin=%g must be <= vmax=%g", vmin, vmax)
	}
	return &ClampParameter{makeOpBase(ParamClamp, opd.Shape(), opd), vmin, vmax}, nil
}

func (p *ClampParameter) VMin() float64 { return p.vmin }
func (p *ClampParameter) VMax() float64 { return p.vmax }

// axisOp is embedded by the nodes parameterized by one axis.
type axisOp struct {
	opBase
	axis int
}

// Axis returns the normalized (non-negative) axis the node operates on.
func (p *axisOp) Axis() int { return p.axis }

func makeAxisOp(kind ParameterKind, shape shapes.Shape, axis int, operands ...Parameter) (axisOp, error) {
	adjusted := operands[0].Shape().AdjustAxis(axis)
	if adjusted < 0 {
		return axisOp{}, shapeErrorf(kind.String(), "axis %d out-of-bounds for operand shape %s",
			axis, operands[0].Shape())
	}
	return axisOp{makeOpBase(kind, shape, operands...), adjusted}, nil
}

// SoftmaxParameter normalizes elementwise over one axis; shape-preserving.
type SoftmaxParameter struct{ axisOp }

// NewSoftmax creates a softmax node over the given axis (negative counts from the end).
func NewSoftmax(opd Parameter, axis int) (*SoftmaxParameter, error) {
	base, err := makeAxisOp(ParamSoftmax, opd.Shape(), axis, opd)
	if err != nil {
		return nil, err
	}
	return &SoftmaxParameter{base}, nil
}

// LogSoftmaxParameter is the log-space softmax; shape-preserving.
type LogSoftmaxParameter struct{ axisOp }

// NewLogSoftmax creates a log-softmax node over the given axis.
func NewLogSoftmax(opd Parameter, axis int) (*LogSoftmaxParameter, error) {
	base, err := makeAxisOp(ParamLogSoftmax, opd.Shape(), axis, opd)
	if err != nil {
		return nil, err
	}
	return &LogSoftmaxParameter{base}, nil
}

func reducedShape(s shapes.Shape, axis int) shapes.Shape {
	dims := make([]int, 0, s.Rank()-1)
	dims = append(dims, s.Dimensions[:axis]...)
	dims = append(dims, s.Dimensions[axis+1:]...)
	return shapes.Shape{DType: s.DType, Dimensions: dims}
}

// ReduceSumParameter sums over one axis, dropping it.
type ReduceSumParameter struct{ axisOp }

// NewReduceSum creates a sum-reduction node over the given axis.
func NewReduceSum(opd Parameter, axis int) (*ReduceSumParameter, error) {
	adjusted := opd.Shape().AdjustAxis(axis)
	if adjusted < 0 {
		return nil, shapeErrorf("ReduceSum", "axis %d out-of-bounds for operand shape %s", axis, opd.Shape())
	}
	base, _ := makeAxisOp(ParamReduceSum, reducedShape(opd.Shape(), adjusted), adjusted, opd)
	return &ReduceSumParameter{base}, nil
}

// ReduceProductParameter multiplies over one axis, dropping it.
type ReduceProductParameter struct{ axisOp }

// NewReduceProduct creates a product-reduction node over the given axis.
func NewReduceProduct(opd Parameter, axis int) (*ReduceProductParameter, error) {
	adjusted := opd.Shape().AdjustAxis(axis)
	if adjusted < 0 {
		return nil, shapeErrorf("ReduceProduct", "axis %d out-of-bounds for operand shape %s", axis, opd.Shape())
	}
	base, _ := makeAxisOp(ParamReduceProduct, reducedShape(opd.Shape(), adjusted), adjusted, opd)
	return &ReduceProductParameter{base}, nil
}

// ReduceLSEParameter is the log-sum-exp reduction over one axis, dropping it.
type ReduceLSEParameter struct{ axisOp }

// NewReduceLSE creates a log-sum-exp reduction node over the given axis.
func NewReduceLSE(opd Parameter, axis int) (*ReduceLSEParameter, error) {
	adjusted := opd.Shape().AdjustAxis(axis)
	if adjusted < 0 {
		return nil, shapeErrorf("ReduceLSE", "axis %d out-of-bounds for operand shape %s", axis, opd.Shape())
	}
	base, _ := makeAxisOp(ParamReduceLSE, reducedShape(opd.Shape(), adjusted), adjusted, opd)
	return &ReduceLSEParameter{base}, nil
}

// SumParameter is the elementwise sum of its operands, which must all have
// the same shape.
type SumParameter struct{ opBase }

// NewSum creates an elementwise sum node.
func NewSum(operands ...Parameter) (*SumParameter, error) {
	if len(operands) < 2 {
		return nil, configErrorf("Sum", "requires at least 2 operands, got %d", len(operands))
	}
	if err := sameDType(ParamSum, operands...); err != nil {
		return nil, err
	}
	shape := operands[0].Shape()
	for _, opd := range operands[1:] {
		if !opd.Shape().Equal(shape) {
			return nil, shapeErrorf("Sum", "operand shapes %s and %s differ", shape, opd.Shape())
		}
	}
	return &SumParameter{makeOpBase(ParamSum, shape, operands...)}, nil
}

// HadamardParameter is the elementwise product of two equally-shaped operands.
type HadamardParameter struct{ opBase }

// NewHadamard creates an elementwise product node.
func NewHadamard(opd1, opd2 Parameter) (*HadamardParameter, error) {
	if err := sameDType(ParamHadamard, opd1, opd2); err != nil {
		return nil, err
	}
	if !opd1.Shape().Equal(opd2.Shape()) {
		return nil, shapeErrorf("Hadamard", "operand shapes %s and %s differ",
			opd1.Shape(), opd2.Shape())
	}
	return &HadamardParameter{makeOpBase(ParamHadamard, opd1.Shape(), opd1, opd2)}, nil
}

// KroneckerParameter is the generalized Kronecker product: operands must have
// equal rank and the result multiplies corresponding dimensions, generalizing
// the outer product per-axis. Entry [o1..or] with o_k = a_k*dimB_k + b_k holds
// A[a1..ar]*B[b1..br].
type KroneckerParameter struct{ opBase }

// NewKronecker creates a Kronecker product node.
func NewKronecker(opd1, opd2 Parameter) (*KroneckerParameter, error) {
	if err := sameDType(ParamKronecker, opd1, opd2); err != nil {
		return nil, err
	}
	s1, s2 := opd1.Shape(), opd2.Shape()
	if s1.Rank() != s2.Rank() {
		return nil, shapeErrorf("Kronecker", "operand ranks %d and %d differ", s1.Rank(), s2.Rank())
	}
	dims := make([]int, s1.Rank())
	for i := range dims {
		dims[i] = s1.Dimensions[i] * s2.Dimensions[i]
	}
	shape := shapes.Shape{DType: s1.DType, Dimensions: dims}
	return &KroneckerParameter{makeOpBase(ParamKronecker, shape, opd1, opd2)}, nil
}

func crossedShape(op string, s1, s2 shapes.Shape, axis int) (shapes.Shape, int, error) {
	if s1.Rank() != s2.Rank() {
		return shapes.Invalid(), -1, shapeErrorf(op, "operand ranks %d and %d differ", s1.Rank(), s2.Rank())
	}
	adjusted := s1.AdjustAxis(axis)
	if adjusted < 0 {
		return shapes.Invalid(), -1, shapeErrorf(op, "axis %d out-of-bounds for operand shape %s", axis, s1)
	}
	for i := range s1.Dimensions {
		if i != adjusted && s1.Dimensions[i] != s2.Dimensions[i] {
			return shapes.Invalid(), -1, shapeErrorf(op,
				"operand shapes %s and %s must agree on all axes except %d", s1, s2, adjusted)
		}
	}
	dims := make([]int, s1.Rank())
	copy(dims, s1.Dimensions)
	dims[adjusted] = s1.Dimensions[adjusted] * s2.Dimensions[adjusted]
	return shapes.Shape{DType: s1.DType, Dimensions: dims}, adjusted, nil
}

// OuterProductParameter combines the units of two operands along one axis:
// dims are equal except `axis`, whose result dimension is dimA*dimB. It is
// used for cross-layer unit combination in multiplication rewrite rules.
type OuterProductParameter struct{ axisOp }

// NewOuterProduct creates an outer-product node along the given axis.
func NewOuterProduct(opd1, opd2 Parameter, axis int) (*OuterProductParameter, error) {
	if err := sameDType(ParamOuterProduct, opd1, opd2); err != nil {
		return nil, err
	}
	shape, adjusted, err := crossedShape("OuterProduct", opd1.Shape(), opd2.Shape(), axis)
	if err != nil {
		return nil, err
	}
	base, _ := makeAxisOp(ParamOuterProduct, shape, adjusted, opd1, opd2)
	return &OuterProductParameter{base}, nil
}

// OuterSumParameter is the additive analogue of OuterProduct, used to combine
// log-space parameters (a product in log space is an outer sum).
type OuterSumParameter struct{ axisOp }

// NewOuterSum creates an outer-sum node along the given axis.
func NewOuterSum(opd1, opd2 Parameter, axis int) (*OuterSumParameter, error) {
	if err := sameDType(ParamOuterSum, opd1, opd2); err != nil {
		return nil, err
	}
	shape, adjusted, err := crossedShape("OuterSum", opd1.Shape(), opd2.Shape(), axis)
	if err != nil {
		return nil, err
	}
	base, _ := makeAxisOp(ParamOuterSum, shape, adjusted, opd1, opd2)
	return &OuterSumParameter{base}, nil
}

func gaussianOperandsShape(op string, mean1, stddev1, mean2, stddev2 Parameter) (units1, units2, channels int, err error) {
	for _, p := range []Parameter{mean1, stddev1, mean2, stddev2} {
		if p.Shape().Rank() != 2 {
			return 0, 0, 0, shapeErrorf(op, "operands must have rank 2 (units, channels), got %s", p.Shape())
		}
	}
	if !mean1.Shape().Equal(stddev1.Shape()) || !mean2.Shape().Equal(stddev2.Shape()) {
		return 0, 0, 0, shapeErrorf(op, "mean and stddev shapes differ: %s vs %s, %s vs %s",
			mean1.Shape(), stddev1.Shape(), mean2.Shape(), stddev2.Shape())
	}
	if mean1.Shape().Dim(1) != mean2.Shape().Dim(1) {
		return 0, 0, 0, shapeErrorf(op, "operands must have the same number of channels: %s vs %s",
			mean1.Shape(), mean2.Shape())
	}
	return mean1.Shape().Dim(0), mean2.Shape().Dim(0), mean1.Shape().Dim(1), nil
}

// GaussianProductMean holds the closed-form mean of the product of two
// Gaussian densities, one per pair of operand units:
// mean = (m1*s2^2 + m2*s1^2) / (s1^2 + s2^2). Operands are
// (mean1, stddev1, mean2, stddev2), each of shape (units, channels); the
// result has shape (units1*units2, channels).
type GaussianProductMean struct{ opBase }

// NewGaussianProductMean creates the Gaussian-product mean node.
func NewGaussianProductMean(mean1, stddev1, mean2, stddev2 Parameter) (*GaussianProductMean, error) {
	u1, u2, channels, err := gaussianOperandsShape("GaussianProductMean", mean1, stddev1, mean2, stddev2)
	if err != nil {
		return nil, err
	}
	shape := shapes.Shape{DType: mean1.Shape().DType, Dimensions: []int{u1 * u2, channels}}
	return &GaussianProductMean{makeOpBase(ParamGaussianProductMean, shape, mean1, stddev1, mean2, stddev2)}, nil
}

// GaussianProductStddev holds the closed-form stddev of the product of two
// Gaussian densities: stddev = sqrt(s1^2*s2^2 / (s1^2+s2^2)). Operands are
// (stddev1, stddev2) of shape (units, channels); the result has shape
// (units1*units2, channels).
type GaussianProductStddev struct{ opBase }

// NewGaussianProductStddev creates the Gaussian-product stddev node.
func NewGaussianProductStddev(stddev1, stddev2 Parameter) (*GaussianProductStddev, error) {
	for _, p := range []Parameter{stddev1, stddev2} {
		if p.Shape().Rank() != 2 {
			return nil, shapeErrorf("GaussianProductStddev",
				"operands must have rank 2 (units, channels), got %s", p.Shape())
		}
	}
	if stddev1.Shape().Dim(1) != stddev2.Shape().Dim(1) {
		return nil, shapeErrorf("GaussianProductStddev",
			"operands must have the same number of channels: %s vs %s", stddev1.Shape(), stddev2.Shape())
	}
	u1, u2 := stddev1.Shape().Dim(0), stddev2.Shape().Dim(0)
	shape := shapes.Shape{DType: stddev1.Shape().DType, Dimensions: []int{u1 * u2, stddev1.Shape().Dim(1)}}
	return &GaussianProductStddev{makeOpBase(ParamGaussianProductStddev, shape, stddev1, stddev2)}, nil
}

// GaussianProductLogPartition holds the log normalization constant of the
// product of two Gaussian densities, log N(m1; m2, s1^2+s2^2). Operands are
// (mean1, stddev1, mean2, stddev2) of shape (units, channels); the result has
// shape (units1*units2, channels).
type GaussianProductLogPartition struct{ opBase }

// NewGaussianProductLogPartition creates the Gaussian-product log-partition node.
func NewGaussianProductLogPartition(mean1, stddev1, mean2, stddev2 Parameter) (*GaussianProductLogPartition, error) {
	u1, u2, channels, err := gaussianOperandsShape("GaussianProductLogPartition", mean1, stddev1, mean2, stddev2)
	if err != nil {
		return nil, err
	}
	shape := shapes.Shape{DType: mean1.Shape().DType, Dimensions: []int{u1 * u2, channels}}
	return &GaussianProductLogPartition{makeOpBase(ParamGaussianProductLogPartition, shape, mean1, stddev1, mean2, stddev2)}, nil
}

// PolynomialDifferential transforms polynomial coefficients (units, degree+1)
// into the coefficients of the derivative polynomial, shape
// (units, max(degree, 1)): the derivative of a constant is the zero
// polynomial, which still needs one coefficient.
type PolynomialDifferential struct{ opBase }

// NewPolynomialDifferential creates the polynomial-derivative coefficient node.
func NewPolynomialDifferential(coeff Parameter) (*PolynomialDifferential, error) {
	s := coeff.Shape()
	if s.Rank() != 2 {
		return nil, shapeErrorf("PolynomialDifferential",
			"coefficients must have rank 2 (units, degree+1), got %s", s)
	}
	degree := s.Dim(1) - 1
	outDim := max(degree, 1)
	shape := shapes.Shape{DType: s.DType, Dimensions: []int{s.Dim(0), outDim}}
	return &PolynomialDifferential{makeOpBase(ParamPolynomialDifferential, shape, coeff)}, nil
}

// PolynomialProduct convolves two polynomial coefficient tensors
// (units1, degree1+1) and (units2, degree2+1) into the coefficients of the
// product polynomial of every unit pair, shape
// (units1*units2, degree1+degree2+1).
type PolynomialProduct struct{ opBase }

// NewPolynomialProduct creates the polynomial-product coefficient node.
func NewPolynomialProduct(coeff1, coeff2 Parameter) (*PolynomialProduct, error) {
	if err := sameDType(ParamPolynomialProduct, coeff1, coeff2); err != nil {
		return nil, err
	}
	s1, s2 := coeff1.Shape(), coeff2.Shape()
	if s1.Rank() != 2 || s2.Rank() != 2 {
		return nil, shapeErrorf("PolynomialProduct",
			"coefficients must have rank 2 (units, degree+1), got %s and %s", s1, s2)
	}
	shape := shapes.Shape{DType: s1.DType, Dimensions: []int{s1.Dim(0) * s2.Dim(0), s1.Dim(1) + s2.Dim(1) - 1}}
	return &PolynomialProduct{makeOpBase(ParamPolynomialProduct, shape, coeff1, coeff2)}, nil
}

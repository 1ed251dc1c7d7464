package symbolic

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/daeargryn/cirkit/types"
	"github.com/daeargryn/cirkit/types/shapes"
)

var (
	_ Layer = (*CategoricalLayer)(nil)
	_ Layer = (*GaussianLayer)(nil)
	_ Layer = (*PolynomialLayer)(nil)
	_ Layer = (*LogPartitionLayer)(nil)
	_ Layer = (*EvidenceLayer)(nil)
)

// inputLayer is the common base of input (leaf) layers: the layer's
// NumInputUnits holds the number of variables of its scope and Arity holds
// the number of channels per variable.
type inputLayer struct {
	baseLayer
}

func makeInputLayer(kind LayerKind, scope types.Scope, numOutputUnits, numChannels int) inputLayer {
	return inputLayer{baseLayer{
		kind:           kind,
		scope:          scope,
		numInputUnits:  scope.Len(),
		numOutputUnits: numOutputUnits,
		arity:          numChannels,
	}}
}

// NumVariables returns the number of variables modelled by the input layer.
func (l *inputLayer) NumVariables() int { return l.numInputUnits }

// NumChannels returns the number of channels per variable.
func (l *inputLayer) NumChannels() int { return l.arity }

func (l *inputLayer) Config() map[string]any {
	return map[string]any{
		"scope":            l.scope,
		"num_output_units": l.numOutputUnits,
		"num_channels":     l.arity,
	}
}

func validateInputUnits(kind LayerKind, numOutputUnits, numChannels int) error {
	if numOutputUnits < 1 {
		return configErrorf(kind.String(), "num_output_units must be >= 1, got %d", numOutputUnits)
	}
	if numChannels < 1 {
		return configErrorf(kind.String(), "num_channels must be >= 1, got %d", numChannels)
	}
	return nil
}

// CategoricalLayer is an input layer encoding one univariate categorical
// distribution per unit and channel, parameterized either by probabilities or
// by logits (at most one of the two).
type CategoricalLayer struct {
	inputLayer
	numCategories int
	probs, logits Parameter
}

// CategoricalParams optionally overrides the default parameterization of a
// CategoricalLayer. At most one of Probs and Logits may be set; when both are
// nil, the layer defaults to a learnable normal-initialized logits tensor.
type CategoricalParams struct {
	Probs, Logits Parameter
}

// NewCategoricalLayer creates a categorical input layer over a single
// variable. params may be nil.
func NewCategoricalLayer(scope types.Scope, numOutputUnits, numChannels, numCategories int, params *CategoricalParams) (*CategoricalLayer, error) {
	if scope.Len() != 1 {
		return nil, configErrorf("Categorical", "encodes a univariate distribution, got scope %s", scope)
	}
	if err := validateInputUnits(KindCategorical, numOutputUnits, numChannels); err != nil {
		return nil, err
	}
	if numCategories < 2 {
		return nil, configErrorf("Categorical", "at least two categories are required, got %d", numCategories)
	}
	l := &CategoricalLayer{
		inputLayer:    makeInputLayer(KindCategorical, scope, numOutputUnits, numChannels),
		numCategories: numCategories,
	}
	wantShape := l.ProbsLogitsShape()
	if params != nil && params.Probs != nil && params.Logits != nil {
		return nil, configErrorf("Categorical", "at most one between probs and logits can be specified")
	}
	if params != nil && params.Probs != nil {
		if !params.Probs.Shape().EqualDimensions(wantShape) {
			return nil, configErrorf("Categorical", "expected probs shape %s, found %s", wantShape, params.Probs.Shape())
		}
		l.probs = params.Probs
	} else if params != nil && params.Logits != nil {
		if !params.Logits.Shape().EqualDimensions(wantShape) {
			return nil, configErrorf("Categorical", "expected logits shape %s, found %s", wantShape, params.Logits.Shape())
		}
		l.logits = params.Logits
	} else {
		l.logits = NormalTensor(wantShape.Dimensions...)
	}
	return l, nil
}

// ProbsLogitsShape returns the (units, channels, categories) parameter shape.
func (l *CategoricalLayer) ProbsLogitsShape() shapes.Shape {
	return shapes.Make(paramDType(l.probs, l.logits), l.numOutputUnits, l.NumChannels(), l.numCategories)
}

// NumCategories returns the number of categories of the encoded distributions.
func (l *CategoricalLayer) NumCategories() int { return l.numCategories }

// Probs returns the probabilities parameter, or nil if logits-parameterized.
func (l *CategoricalLayer) Probs() Parameter { return l.probs }

// Logits returns the logits parameter, or nil if probs-parameterized.
func (l *CategoricalLayer) Logits() Parameter { return l.logits }

func (l *CategoricalLayer) Config() map[string]any {
	config := l.inputLayer.Config()
	config["num_categories"] = l.numCategories
	return config
}

func (l *CategoricalLayer) Params() map[string]Parameter {
	if l.logits != nil {
		return map[string]Parameter{"logits": l.logits}
	}
	return map[string]Parameter{"probs": l.probs}
}

// GaussianLayer is an input layer encoding one univariate Gaussian density
// per unit and channel, with an optional extra log-partition term used to
// represent unnormalized products of Gaussians.
type GaussianLayer struct {
	inputLayer
	mean, stddev, logPartition Parameter
}

// GaussianParams optionally overrides the default parameterization of a
// GaussianLayer. Nil fields keep the defaults: a normal-initialized mean and
// a scaled-sigmoid positive stddev; LogPartition defaults to absent.
type GaussianParams struct {
	Mean, Stddev, LogPartition Parameter
}

// NewGaussianLayer creates a Gaussian input layer over a single variable.
// params may be nil.
func NewGaussianLayer(scope types.Scope, numOutputUnits, numChannels int, params *GaussianParams) (*GaussianLayer, error) {
	if scope.Len() != 1 {
		return nil, configErrorf("Gaussian", "encodes a univariate distribution, got scope %s", scope)
	}
	if err := validateInputUnits(KindGaussian, numOutputUnits, numChannels); err != nil {
		return nil, err
	}
	l := &GaussianLayer{inputLayer: makeInputLayer(KindGaussian, scope, numOutputUnits, numChannels)}
	wantShape := l.MeanStddevShape()
	if params != nil && params.Mean != nil {
		l.mean = params.Mean
	} else {
		l.mean = NormalTensor(wantShape.Dimensions...)
	}
	if params != nil && params.Stddev != nil {
		l.stddev = params.Stddev
	} else {
		stddev, err := NewScaledSigmoid(NormalTensor(wantShape.Dimensions...), 1e-5, 1.0)
		if err != nil {
			return nil, err
		}
		l.stddev = stddev
	}
	if !l.mean.Shape().EqualDimensions(wantShape) {
		return nil, configErrorf("Gaussian", "expected mean shape %s, found %s", wantShape, l.mean.Shape())
	}
	if !l.stddev.Shape().EqualDimensions(wantShape) {
		return nil, configErrorf("Gaussian", "expected stddev shape %s, found %s", wantShape, l.stddev.Shape())
	}
	if params != nil && params.LogPartition != nil {
		if !params.LogPartition.Shape().EqualDimensions(wantShape) {
			return nil, configErrorf("Gaussian", "expected log_partition shape %s, found %s",
				wantShape, params.LogPartition.Shape())
		}
		l.logPartition = params.LogPartition
	}
	return l, nil
}

// MeanStddevShape returns the (units, channels) parameter shape.
func (l *GaussianLayer) MeanStddevShape() shapes.Shape {
	return shapes.Make(paramDType(l.mean), l.numOutputUnits, l.NumChannels())
}

// Mean returns the mean parameter.
func (l *GaussianLayer) Mean() Parameter { return l.mean }

// Stddev returns the standard-deviation parameter.
func (l *GaussianLayer) Stddev() Parameter { return l.stddev }

// LogPartition returns the extra log-partition parameter, or nil if the
// density is normalized.
func (l *GaussianLayer) LogPartition() Parameter { return l.logPartition }

func (l *GaussianLayer) Params() map[string]Parameter {
	params := map[string]Parameter{"mean": l.mean, "stddev": l.stddev}
	if l.logPartition != nil {
		params["log_partition"] = l.logPartition
	}
	return params
}

// PolynomialLayer is an input layer whose units compute univariate
// polynomials of the scope variable; it is the input family closed under
// differentiation.
type PolynomialLayer struct {
	inputLayer
	degree int
	coeff  Parameter
}

// NewPolynomialLayer creates a polynomial input layer over a single variable.
// coeff may be nil, defaulting to a learnable normal-initialized tensor of
// shape (units, degree+1).
func NewPolynomialLayer(scope types.Scope, numOutputUnits, numChannels, degree int, coeff Parameter) (*PolynomialLayer, error) {
	if scope.Len() != 1 {
		return nil, configErrorf("Polynomial", "encodes a univariate polynomial, got scope %s", scope)
	}
	if err := validateInputUnits(KindPolynomial, numOutputUnits, numChannels); err != nil {
		return nil, err
	}
	if degree < 0 {
		return nil, configErrorf("Polynomial", "degree must be >= 0, got %d", degree)
	}
	l := &PolynomialLayer{
		inputLayer: makeInputLayer(KindPolynomial, scope, numOutputUnits, numChannels),
		degree:     degree,
	}
	if coeff == nil {
		coeff = NormalTensor(numOutputUnits, degree+1)
	}
	wantShape := l.CoeffShape()
	if !coeff.Shape().EqualDimensions(wantShape) {
		return nil, configErrorf("Polynomial", "expected coeff shape %s, found %s", wantShape, coeff.Shape())
	}
	l.coeff = coeff
	return l, nil
}

// CoeffShape returns the (units, degree+1) coefficient shape.
func (l *PolynomialLayer) CoeffShape() shapes.Shape {
	return shapes.Make(paramDType(l.coeff), l.numOutputUnits, l.degree+1)
}

// Degree returns the degree of the encoded polynomials.
func (l *PolynomialLayer) Degree() int { return l.degree }

// Coeff returns the coefficients parameter.
func (l *PolynomialLayer) Coeff() Parameter { return l.coeff }

func (l *PolynomialLayer) Config() map[string]any {
	config := l.inputLayer.Config()
	config["degree"] = l.degree
	return config
}

func (l *PolynomialLayer) Params() map[string]Parameter {
	return map[string]Parameter{"coeff": l.coeff}
}

// LogPartitionLayer is a constant input layer holding a (log-space) partition
// value per unit. It replaces input layers under integration; its scope is
// typically empty, representing no remaining variable dependence.
type LogPartitionLayer struct {
	inputLayer
	value Parameter
}

// NewLogPartitionLayer creates a log-partition constant layer. value must
// have shape (units,).
func NewLogPartitionLayer(scope types.Scope, numOutputUnits, numChannels int, value Parameter) (*LogPartitionLayer, error) {
	if err := validateInputUnits(KindLogPartition, numOutputUnits, numChannels); err != nil {
		return nil, err
	}
	l := &LogPartitionLayer{inputLayer: makeInputLayer(KindLogPartition, scope, numOutputUnits, numChannels)}
	if value == nil {
		return nil, configErrorf("LogPartition", "value parameter is required")
	}
	wantShape := l.ValueShape()
	if !value.Shape().EqualDimensions(wantShape) {
		return nil, configErrorf("LogPartition", "expected value shape %s, found %s", wantShape, value.Shape())
	}
	l.value = value
	return l, nil
}

// ValueShape returns the (units,) value shape.
func (l *LogPartitionLayer) ValueShape() shapes.Shape {
	return shapes.Make(paramDType(l.value), l.numOutputUnits)
}

// Value returns the log-partition value parameter.
func (l *LogPartitionLayer) Value() Parameter { return l.value }

func (l *LogPartitionLayer) Params() map[string]Parameter {
	return map[string]Parameter{"value": l.value}
}

// EvidenceLayer wraps an input layer with a fixed observation of its
// variable: the wrapped distribution is evaluated at the observed value, so
// the evidence layer itself depends on no variable and has empty scope. The
// wrapped layer's parameters remain owned by it and are exposed through
// Params, so compiling an evidence circuit shares them with the original.
type EvidenceLayer struct {
	inputLayer
	wrapped     Layer
	observation *ConstantParameter
}

// NewEvidenceLayer wraps an input layer with an observation constant of
// shape (channels, 1).
func NewEvidenceLayer(wrapped Layer, observation *ConstantParameter) (*EvidenceLayer, error) {
	if !wrapped.Kind().IsInput() {
		return nil, configErrorf("Evidence", "can only wrap input layers, got %s", wrapped)
	}
	wantShape := shapes.Make(observation.Shape().DType, wrapped.Arity(), 1)
	if !observation.Shape().EqualDimensions(wantShape) {
		return nil, configErrorf("Evidence", "expected observation shape %s, found %s",
			wantShape, observation.Shape())
	}
	return &EvidenceLayer{
		inputLayer:  makeInputLayer(KindEvidence, types.NewScope(), wrapped.NumOutputUnits(), wrapped.Arity()),
		wrapped:     wrapped,
		observation: observation,
	}, nil
}

// Wrapped returns the observed input layer.
func (l *EvidenceLayer) Wrapped() Layer { return l.wrapped }

// Observation returns the observed value constant.
func (l *EvidenceLayer) Observation() *ConstantParameter { return l.observation }

func (l *EvidenceLayer) Params() map[string]Parameter {
	params := map[string]Parameter{"observation": l.observation}
	for name, p := range l.wrapped.Params() {
		params[name] = p
	}
	return params
}

// paramDType returns the dtype of the first non-nil parameter, defaulting to
// Float32 before any parameter is set (shape validation compares dimensions
// only, so the default is only cosmetic).
func paramDType(params ...Parameter) dtypes.DType {
	for _, p := range params {
		if p != nil {
			return p.Shape().DType
		}
	}
	return dtypes.Float32
}

package symbolic

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"

	"github.com/daeargryn/cirkit/types/shapes"
)

// ParameterKind tags every symbolic parameter node variant. The compiler's
// compilation-rule registry is keyed by it, so user-defined parameter nodes
// can be added by picking a new kind value and registering rules for it.
type ParameterKind int

const (
	ParamInvalid ParameterKind = iota
	ParamTensor
	ParamConstant
	ParamReference
	ParamExp
	ParamLog
	ParamSquare
	ParamSigmoid
	ParamScaledSigmoid
	ParamClamp
	ParamSoftmax
	ParamLogSoftmax
	ParamReduceSum
	ParamReduceProduct
	ParamReduceLSE
	ParamConjugate
	ParamSum
	ParamHadamard
	ParamKronecker
	ParamOuterProduct
	ParamOuterSum
	ParamGaussianProductMean
	ParamGaussianProductStddev
	ParamGaussianProductLogPartition
	ParamPolynomialDifferential
	ParamPolynomialProduct

	// ParamFirstCustom is the first kind value free for extension by users.
	ParamFirstCustom ParameterKind = 1000
)

var paramKindNames = map[ParameterKind]string{
	ParamInvalid:                     "Invalid",
	ParamTensor:                      "Tensor",
	ParamConstant:                    "Constant",
	ParamReference:                   "Reference",
	ParamExp:                         "Exp",
	ParamLog:                         "Log",
	ParamSquare:                      "Square",
	ParamSigmoid:                     "Sigmoid",
	ParamScaledSigmoid:               "ScaledSigmoid",
	ParamClamp:                       "Clamp",
	ParamSoftmax:                     "Softmax",
	ParamLogSoftmax:                  "LogSoftmax",
	ParamReduceSum:                   "ReduceSum",
	ParamReduceProduct:               "ReduceProduct",
	ParamReduceLSE:                   "ReduceLSE",
	ParamConjugate:                   "Conjugate",
	ParamSum:                         "Sum",
	ParamHadamard:                    "Hadamard",
	ParamKronecker:                   "Kronecker",
	ParamOuterProduct:                "OuterProduct",
	ParamOuterSum:                    "OuterSum",
	ParamGaussianProductMean:         "GaussianProductMean",
	ParamGaussianProductStddev:       "GaussianProductStddev",
	ParamGaussianProductLogPartition: "GaussianProductLogPartition",
	ParamPolynomialDifferential:      "PolynomialDifferential",
	ParamPolynomialProduct:           "PolynomialProduct",
}

// String implements fmt.Stringer.
func (k ParameterKind) String() string {
	if name, found := paramKindNames[k]; found {
		return name
	}
	return fmt.Sprintf("Custom(%d)", int(k))
}

// Parameter is a node of the symbolic parameter expression DAG: it represents,
// without executing, how a layer's tensor-valued parameters are derived from
// leaves (tensors, constants) and operators. Nodes are immutable once
// constructed and are compared by identity, never by value: two structurally
// identical nodes are distinct unless explicitly shared.
type Parameter interface {
	// Kind is the stable type tag used by compilation-rule registries.
	Kind() ParameterKind

	// Shape of the parameter value. It is a pure function of the operand
	// shapes, computed and validated at construction.
	Shape() shapes.Shape

	// Operands of the node; empty for leaves.
	Operands() []Parameter
}

// TensorParameter is a leaf parameter that owns a shape and an initializer
// reference. It is the only parameter variant that results in actual tensor
// storage when compiled: every other node is derived from it.
type TensorParameter struct {
	shape       shapes.Shape
	initializer Initializer
	learnable   bool
}

// NewTensorParameter creates a leaf tensor parameter.
func NewTensorParameter(shape shapes.Shape, initializer Initializer, learnable bool) *TensorParameter {
	return &TensorParameter{shape: shape, initializer: initializer, learnable: learnable}
}

// NormalTensor creates a learnable tensor parameter of the given dimensions,
// with dtype Float32 and a standard normal initializer. It is the default
// parameterization used by layer factories.
func NormalTensor(dimensions ...int) *TensorParameter {
	return NewTensorParameter(shapes.Make(dtypes.Float32, dimensions...), StandardNormal(), true)
}

func (p *TensorParameter) Kind() ParameterKind    { return ParamTensor }
func (p *TensorParameter) Shape() shapes.Shape    { return p.shape }
func (p *TensorParameter) Operands() []Parameter  { return nil }
func (p *TensorParameter) Initializer() Initializer { return p.initializer }
func (p *TensorParameter) Learnable() bool        { return p.learnable }

// ConstantParameter is a leaf parameter with a fixed scalar value broadcast
// over its shape. It is never learnable.
type ConstantParameter struct {
	shape shapes.Shape
	value float64
}

// NewConstantParameter creates a constant parameter filled with value.
func NewConstantParameter(shape shapes.Shape, value float64) *ConstantParameter {
	return &ConstantParameter{shape: shape, value: value}
}

func (p *ConstantParameter) Kind() ParameterKind   { return ParamConstant }
func (p *ConstantParameter) Shape() shapes.Shape   { return p.shape }
func (p *ConstantParameter) Operands() []Parameter { return nil }
func (p *ConstantParameter) Value() float64        { return p.value }

// ReferenceParameter refers to a named parameter slot of another symbolic
// layer. It is used to express weight sharing and rewrite-rule outputs, e.g.
// "the weight of the product layer is the Kronecker product of the operand
// layers' weights". It carries no storage of its own: ownership of the
// underlying data remains with the referenced layer.
type ReferenceParameter struct {
	owner Layer
	name  string
}

// NewReferenceParameter creates a reference to owner's parameter slot name.
// It fails with a ConfigurationError if owner has no such parameter.
func NewReferenceParameter(owner Layer, name string) (*ReferenceParameter, error) {
	if _, found := owner.Params()[name]; !found {
		return nil, configErrorf("ReferenceParameter",
			"layer %s has no parameter named %q", owner, name)
	}
	return &ReferenceParameter{owner: owner, name: name}, nil
}

// mustReference is used by rewrite rules where the slot name is known valid.
func mustReference(owner Layer, name string) *ReferenceParameter {
	ref, err := NewReferenceParameter(owner, name)
	if err != nil {
		panic(err)
	}
	return ref
}

func (p *ReferenceParameter) Kind() ParameterKind   { return ParamReference }
func (p *ReferenceParameter) Shape() shapes.Shape   { return p.Deref().Shape() }
func (p *ReferenceParameter) Operands() []Parameter { return nil }

// Owner returns the layer owning the referenced parameter slot.
func (p *ReferenceParameter) Owner() Layer { return p.owner }

// Name returns the referenced parameter slot name.
func (p *ReferenceParameter) Name() string { return p.name }

// Deref returns the referenced parameter node.
func (p *ReferenceParameter) Deref() Parameter { return p.owner.Params()[p.name] }

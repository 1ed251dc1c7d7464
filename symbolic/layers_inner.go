package symbolic

import (
	"github.com/daeargryn/cirkit/types"
	"github.com/daeargryn/cirkit/types/shapes"
)

var (
	_ Layer = (*HadamardLayer)(nil)
	_ Layer = (*KroneckerLayer)(nil)
	_ Layer = (*DenseLayer)(nil)
	_ Layer = (*MixingLayer)(nil)
	_ Layer = (*IndexLayer)(nil)
)

func validateInnerUnits(kind LayerKind, numInputUnits, arity int) error {
	if numInputUnits < 1 {
		return configErrorf(kind.String(), "num_input_units must be >= 1, got %d", numInputUnits)
	}
	if arity < 1 {
		return configErrorf(kind.String(), "arity must be >= 1, got %d", arity)
	}
	return nil
}

// HadamardLayer is a product layer computing the element-wise product of its
// inputs. All inputs must carry the same number of units, preserved on
// output.
type HadamardLayer struct {
	baseLayer
}

// NewHadamardLayer creates an element-wise product layer of the given arity.
func NewHadamardLayer(scope types.Scope, numInputUnits, arity int) (*HadamardLayer, error) {
	if err := validateInnerUnits(KindHadamard, numInputUnits, arity); err != nil {
		return nil, err
	}
	if arity < 2 {
		return nil, configErrorf("Hadamard", "arity must be >= 2, got %d", arity)
	}
	return &HadamardLayer{baseLayer{
		kind:           KindHadamard,
		scope:          scope,
		numInputUnits:  numInputUnits,
		numOutputUnits: numInputUnits,
		arity:          arity,
	}}, nil
}

// KroneckerLayer is a product layer computing the Kronecker (cross) product
// of its inputs: every combination of one unit per input yields one output
// unit, for numInputUnits^arity output units in total.
type KroneckerLayer struct {
	baseLayer
}

// NewKroneckerLayer creates a Kronecker product layer of the given arity.
func NewKroneckerLayer(scope types.Scope, numInputUnits, arity int) (*KroneckerLayer, error) {
	if err := validateInnerUnits(KindKronecker, numInputUnits, arity); err != nil {
		return nil, err
	}
	if arity < 2 {
		return nil, configErrorf("Kronecker", "arity must be >= 2, got %d", arity)
	}
	numOutputUnits := 1
	for range arity {
		numOutputUnits *= numInputUnits
	}
	return &KroneckerLayer{baseLayer{
		kind:           KindKronecker,
		scope:          scope,
		numInputUnits:  numInputUnits,
		numOutputUnits: numOutputUnits,
		arity:          arity,
	}}, nil
}

// DenseLayer is a sum layer with a single input, computing a dense linear
// combination of the input units through a (out, in) weight matrix.
type DenseLayer struct {
	baseLayer
	weight Parameter
}

// NewDenseLayer creates a dense sum layer. weight may be nil, defaulting to
// a learnable normal-initialized (out, in) tensor.
func NewDenseLayer(scope types.Scope, numInputUnits, numOutputUnits int, weight Parameter) (*DenseLayer, error) {
	if err := validateInnerUnits(KindDense, numInputUnits, 1); err != nil {
		return nil, err
	}
	if numOutputUnits < 1 {
		return nil, configErrorf("Dense", "num_output_units must be >= 1, got %d", numOutputUnits)
	}
	l := &DenseLayer{baseLayer: baseLayer{
		kind:           KindDense,
		scope:          scope,
		numInputUnits:  numInputUnits,
		numOutputUnits: numOutputUnits,
		arity:          1,
	}}
	if weight == nil {
		weight = NormalTensor(numOutputUnits, numInputUnits)
	}
	wantShape := l.WeightShape()
	if !weight.Shape().EqualDimensions(wantShape) {
		return nil, configErrorf("Dense", "expected weight shape %s, found %s", wantShape, weight.Shape())
	}
	l.weight = weight
	return l, nil
}

// WeightShape returns the (out, in) weight shape.
func (l *DenseLayer) WeightShape() shapes.Shape {
	return shapes.Make(paramDType(l.weight), l.numOutputUnits, l.numInputUnits)
}

// Weight returns the weight parameter.
func (l *DenseLayer) Weight() Parameter { return l.weight }

func (l *DenseLayer) Params() map[string]Parameter {
	return map[string]Parameter{"weight": l.weight}
}

// MixingLayer is a sum layer over several inputs with equal numbers of
// units: output unit i is a weighted sum of unit i across the inputs,
// through a (units, arity) weight matrix.
type MixingLayer struct {
	baseLayer
	weight Parameter
}

// NewMixingLayer creates a mixing sum layer of the given arity. weight may
// be nil, defaulting to a learnable normal-initialized (units, arity)
// tensor.
func NewMixingLayer(scope types.Scope, numUnits, arity int, weight Parameter) (*MixingLayer, error) {
	if err := validateInnerUnits(KindMixing, numUnits, arity); err != nil {
		return nil, err
	}
	l := &MixingLayer{baseLayer: baseLayer{
		kind:           KindMixing,
		scope:          scope,
		numInputUnits:  numUnits,
		numOutputUnits: numUnits,
		arity:          arity,
	}}
	if weight == nil {
		weight = NormalTensor(numUnits, arity)
	}
	wantShape := l.WeightShape()
	if !weight.Shape().EqualDimensions(wantShape) {
		return nil, configErrorf("Mixing", "expected weight shape %s, found %s", wantShape, weight.Shape())
	}
	l.weight = weight
	return l, nil
}

// WeightShape returns the (units, arity) weight shape.
func (l *MixingLayer) WeightShape() shapes.Shape {
	return shapes.Make(paramDType(l.weight), l.numOutputUnits, l.arity)
}

// Weight returns the weight parameter.
func (l *MixingLayer) Weight() Parameter { return l.weight }

func (l *MixingLayer) Params() map[string]Parameter {
	return map[string]Parameter{"weight": l.weight}
}

// IndexLayer gathers a fixed selection of its single input's units: output
// unit i is input unit indices[i]. It carries no parameters and is used to
// permute or slice units between layers.
type IndexLayer struct {
	baseLayer
	indices []int
}

// NewIndexLayer creates an index (gather) layer. indices must have one entry
// per output unit, each in [0, numInputUnits).
func NewIndexLayer(scope types.Scope, numInputUnits, numOutputUnits int, indices []int) (*IndexLayer, error) {
	if err := validateInnerUnits(KindIndex, numInputUnits, 1); err != nil {
		return nil, err
	}
	if numOutputUnits < 1 {
		return nil, configErrorf("Index", "num_output_units must be >= 1, got %d", numOutputUnits)
	}
	if len(indices) != numOutputUnits {
		return nil, configErrorf("Index", "expected %d indices, got %d", numOutputUnits, len(indices))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= numInputUnits {
			return nil, configErrorf("Index", "index %d out of range [0, %d)", idx, numInputUnits)
		}
	}
	return &IndexLayer{
		baseLayer: baseLayer{
			kind:           KindIndex,
			scope:          scope,
			numInputUnits:  numInputUnits,
			numOutputUnits: numOutputUnits,
			arity:          1,
		},
		indices: indices,
	}, nil
}

// Indices returns the gathered input unit indices, one per output unit.
func (l *IndexLayer) Indices() []int { return l.indices }

func (l *IndexLayer) Config() map[string]any {
	config := l.baseLayer.Config()
	config["indices"] = l.indices
	return config
}

package symbolic

import (
	"fmt"

	"github.com/daeargryn/cirkit/types"
)

// LayerKind tags every symbolic layer variant. Rewrite-rule and
// compilation-rule registries are keyed by it, so new layer types can be added
// by picking a new kind value and registering rules for it.
type LayerKind int

const (
	KindInvalid LayerKind = iota

	// KindInput is the generic input-layer tag. It is never the kind of a
	// concrete layer: registries use it as the fallback key when no rule is
	// registered for a concrete input kind.
	KindInput

	KindCategorical
	KindGaussian
	KindPolynomial
	KindLogPartition
	KindEvidence

	KindHadamard
	KindKronecker

	KindDense
	KindMixing

	KindIndex

	// KindFirstCustom is the first kind value free for extension by users.
	// Custom input kinds must be declared with RegisterInputKind so that the
	// generic-input registry fallback applies to them.
	KindFirstCustom LayerKind = 1000
)

var layerKindNames = map[LayerKind]string{
	KindInvalid:      "Invalid",
	KindInput:        "Input",
	KindCategorical:  "Categorical",
	KindGaussian:     "Gaussian",
	KindPolynomial:   "Polynomial",
	KindLogPartition: "LogPartition",
	KindEvidence:     "Evidence",
	KindHadamard:     "Hadamard",
	KindKronecker:    "Kronecker",
	KindDense:        "Dense",
	KindMixing:       "Mixing",
	KindIndex:        "Index",
}

// String implements fmt.Stringer.
func (k LayerKind) String() string {
	if name, found := layerKindNames[k]; found {
		return name
	}
	return fmt.Sprintf("Custom(%d)", int(k))
}

var customInputKinds = types.MakeSet[LayerKind]()

// RegisterInputKind declares a custom layer kind as an input-layer kind, so
// structural predicates and the generic-input registry fallback treat it as
// such.
func RegisterInputKind(k LayerKind) {
	customInputKinds.Insert(k)
}

// IsInput returns whether the kind tags an input (leaf) layer.
func (k LayerKind) IsInput() bool {
	switch k {
	case KindInput, KindCategorical, KindGaussian, KindPolynomial, KindLogPartition, KindEvidence:
		return true
	}
	return customInputKinds.Has(k)
}

// IsProduct returns whether the kind tags a product layer.
func (k LayerKind) IsProduct() bool {
	return k == KindHadamard || k == KindKronecker
}

// IsSum returns whether the kind tags a sum layer.
func (k LayerKind) IsSum() bool {
	return k == KindDense || k == KindMixing
}

// Layer is a node of the symbolic circuit DAG, representing one functional
// unit: an input distribution, a product, or a sum. Layers are immutable once
// constructed and are compared by identity, never by value: two structurally
// identical layers are distinct nodes unless explicitly shared. Rewrite rules
// never mutate a layer in place; they create new ones.
//
// Config and Params are the only introspection surface the rest of the system
// uses: rewrite rules and the compiler must not depend on type-specific
// internals beyond these and the documented accessors of the concrete types
// (e.g. CategoricalLayer.NumCategories).
type Layer interface {
	fmt.Stringer

	// Kind is the stable type tag used by rule registries.
	Kind() LayerKind

	// Scope is the set of variables the layer's computation depends on.
	Scope() types.Scope

	// NumInputUnits is the number of units in each of the layer's inputs.
	// For input layers it is the number of variables in the scope.
	NumInputUnits() int

	// NumOutputUnits is the number of computational units in this layer.
	NumOutputUnits() int

	// Arity is the number of inputs of the layer. For input layers it holds
	// the number of channels per variable.
	Arity() int

	// Config retrieves the hyperparameters of the layer, mapped by name.
	Config() map[string]any

	// Params retrieves the symbolic parameters of the layer, mapped by name.
	Params() map[string]Parameter
}

// baseLayer carries the attributes shared by every layer variant.
type baseLayer struct {
	kind           LayerKind
	scope          types.Scope
	numInputUnits  int
	numOutputUnits int
	arity          int
}

func (l *baseLayer) Kind() LayerKind     { return l.kind }
func (l *baseLayer) Scope() types.Scope  { return l.scope }
func (l *baseLayer) NumInputUnits() int  { return l.numInputUnits }
func (l *baseLayer) NumOutputUnits() int { return l.numOutputUnits }
func (l *baseLayer) Arity() int          { return l.arity }

func (l *baseLayer) Config() map[string]any {
	return map[string]any{
		"scope":            l.scope,
		"num_input_units":  l.numInputUnits,
		"num_output_units": l.numOutputUnits,
		"arity":            l.arity,
	}
}

func (l *baseLayer) Params() map[string]Parameter { return map[string]Parameter{} }

func (l *baseLayer) String() string {
	return fmt.Sprintf("%s%s[%d]", l.kind, l.scope, l.numOutputUnits)
}

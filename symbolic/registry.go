package symbolic

import (
	"sync"

	"github.com/daeargryn/cirkit/types"
)

// Operator identifies a structural circuit operator.
type Operator int

const (
	OperatorIntegration Operator = iota
	OperatorDifferentiation
	OperatorMultiplication
	OperatorConjugation
	OperatorEvidence
)

var operatorNames = map[Operator]string{
	OperatorIntegration:     "Integration",
	OperatorDifferentiation: "Differentiation",
	OperatorMultiplication:  "Multiplication",
	OperatorConjugation:     "Conjugation",
	OperatorEvidence:        "Evidence",
}

func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "UnknownOperator"
}

// LayerBlock is the result of a layer rewrite rule: a short chain of layers,
// each feeding the next, with a designated input and output end. Most rules
// produce a single layer; a few need a small composition, e.g. a Kronecker
// product followed by a unit permutation.
type LayerBlock struct {
	layers []Layer
}

// BlockFromLayer creates a block holding a single layer.
func BlockFromLayer(l Layer) *LayerBlock {
	return &LayerBlock{layers: []Layer{l}}
}

// BlockFromChain creates a block where each layer feeds the next. Every
// layer but the first must have arity 1.
func BlockFromChain(layers ...Layer) (*LayerBlock, error) {
	if len(layers) == 0 {
		return nil, structuralErrorf("a layer block must have at least one layer")
	}
	for _, l := range layers[1:] {
		if l.Arity() != 1 {
			return nil, structuralErrorf("chained layer %s must have arity 1, got %d", l, l.Arity())
		}
	}
	return &LayerBlock{layers: layers}, nil
}

// Input returns the layer at the receiving end of the block.
func (b *LayerBlock) Input() Layer { return b.layers[0] }

// Output returns the layer at the emitting end of the block.
func (b *LayerBlock) Output() Layer { return b.layers[len(b.layers)-1] }

// Layers returns the block's layers, input first.
func (b *LayerBlock) Layers() []Layer { return b.layers }

// IntegrationRule rewrites an input layer integrated over a scope covering
// its own.
type IntegrationRule func(l Layer, scope types.Scope) (*LayerBlock, error)

// MultiplicationRule rewrites a pair of layers, one per operand circuit,
// into the layer block computing their product.
type MultiplicationRule func(lhs, rhs Layer) (*LayerBlock, error)

// DifferentiationRule rewrites an input layer into the block computing its
// derivative with respect to its (single) scope variable.
type DifferentiationRule func(l Layer) (*LayerBlock, error)

// ConjugationRule rewrites a layer into its complex conjugate, wrapping
// parameters and leaving the topology unchanged.
type ConjugationRule func(l Layer) (*LayerBlock, error)

// OperatorRegistry maps operators and layer kinds to rewrite rules. Rules
// for new layer kinds or operators can be registered independently of the
// built-in ones. A zero-value registry has no rules; see DefaultRegistry.
type OperatorRegistry struct {
	integration     map[LayerKind]IntegrationRule
	differentiation map[LayerKind]DifferentiationRule
	conjugation     map[LayerKind]ConjugationRule
	multiplication  map[[2]LayerKind]MultiplicationRule
}

// NewOperatorRegistry creates an empty registry.
func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		integration:     make(map[LayerKind]IntegrationRule),
		differentiation: make(map[LayerKind]DifferentiationRule),
		conjugation:     make(map[LayerKind]ConjugationRule),
		multiplication:  make(map[[2]LayerKind]MultiplicationRule),
	}
}

// RegisterIntegration registers the integration rule for an input layer
// kind, replacing any previous one. Registering for KindInput installs the
// fallback used when no kind-specific rule exists.
func (r *OperatorRegistry) RegisterIntegration(kind LayerKind, rule IntegrationRule) *OperatorRegistry {
	r.integration[kind] = rule
	return r
}

// RegisterDifferentiation registers the differentiation rule for an input
// layer kind.
func (r *OperatorRegistry) RegisterDifferentiation(kind LayerKind, rule DifferentiationRule) *OperatorRegistry {
	r.differentiation[kind] = rule
	return r
}

// RegisterConjugation registers the conjugation rule for a layer kind.
func (r *OperatorRegistry) RegisterConjugation(kind LayerKind, rule ConjugationRule) *OperatorRegistry {
	r.conjugation[kind] = rule
	return r
}

// RegisterMultiplication registers the multiplication rule for a pair of
// layer kinds. Multiplication is commutative: a lookup for the swapped pair
// finds the same rule with its arguments exchanged.
func (r *OperatorRegistry) RegisterMultiplication(lhs, rhs LayerKind, rule MultiplicationRule) *OperatorRegistry {
	r.multiplication[[2]LayerKind{lhs, rhs}] = rule
	return r
}

// HasRule reports whether a rule is registered for the operator and layer
// kind, including the KindInput fallback. For multiplication it reports
// whether kind multiplies with itself.
func (r *OperatorRegistry) HasRule(op Operator, kind LayerKind) bool {
	switch op {
	case OperatorIntegration:
		_, err := r.RetrieveIntegration(kind)
		return err == nil
	case OperatorDifferentiation:
		_, err := r.RetrieveDifferentiation(kind)
		return err == nil
	case OperatorConjugation:
		_, err := r.RetrieveConjugation(kind)
		return err == nil
	case OperatorMultiplication:
		_, err := r.RetrieveMultiplication(kind, kind)
		return err == nil
	}
	return false
}

// RetrieveIntegration returns the integration rule for kind, falling back
// to the generic KindInput rule. It returns a NoRuleError if neither is
// registered.
func (r *OperatorRegistry) RetrieveIntegration(kind LayerKind) (IntegrationRule, error) {
	if rule, ok := r.integration[kind]; ok {
		return rule, nil
	}
	if rule, ok := r.integration[KindInput]; ok && kind.IsInput() {
		return rule, nil
	}
	return nil, noRuleErrorf(OperatorIntegration.String(), kind.String())
}

// RetrieveDifferentiation returns the differentiation rule for kind,
// falling back to the generic KindInput rule.
func (r *OperatorRegistry) RetrieveDifferentiation(kind LayerKind) (DifferentiationRule, error) {
	if rule, ok := r.differentiation[kind]; ok {
		return rule, nil
	}
	if rule, ok := r.differentiation[KindInput]; ok && kind.IsInput() {
		return rule, nil
	}
	return nil, noRuleErrorf(OperatorDifferentiation.String(), kind.String())
}

// RetrieveConjugation returns the conjugation rule for kind, falling back
// to the generic KindInput rule for input layers.
func (r *OperatorRegistry) RetrieveConjugation(kind LayerKind) (ConjugationRule, error) {
	if rule, ok := r.conjugation[kind]; ok {
		return rule, nil
	}
	if rule, ok := r.conjugation[KindInput]; ok && kind.IsInput() {
		return rule, nil
	}
	return nil, noRuleErrorf(OperatorConjugation.String(), kind.String())
}

// RetrieveMultiplication returns the multiplication rule for the pair of
// kinds. If only the swapped pair is registered, the rule is returned with
// its arguments exchanged.
func (r *OperatorRegistry) RetrieveMultiplication(lhs, rhs LayerKind) (MultiplicationRule, error) {
	if rule, ok := r.multiplication[[2]LayerKind{lhs, rhs}]; ok {
		return rule, nil
	}
	if rule, ok := r.multiplication[[2]LayerKind{rhs, lhs}]; ok {
		swapped := func(a, b Layer) (*LayerBlock, error) { return rule(b, a) }
		return swapped, nil
	}
	return nil, noRuleErrorf(OperatorMultiplication.String(), lhs.String()+"*"+rhs.String())
}

var defaultRegistry = sync.OnceValue(func() *OperatorRegistry {
	r := NewOperatorRegistry()
	registerDefaultRules(r)
	return r
})

// DefaultRegistry returns the shared registry with the built-in rules
// installed. Callers needing isolation should build their own registry with
// NewOperatorRegistry and registerers.
func DefaultRegistry() *OperatorRegistry {
	return defaultRegistry()
}

package compiler

import (
	"github.com/daeargryn/cirkit/symbolic"
)

// LayerRule compiles one symbolic layer kind. Rules for custom layer kinds
// can be registered next to the built-in ones.
type LayerRule func(comp *Compiler, sl symbolic.Layer) (*Layer, error)

// Rules maps layer kinds to compilation rules, with a fallback for kinds
// without a specific rule.
type Rules struct {
	layers   map[symbolic.LayerKind]LayerRule
	fallback LayerRule
}

// NewRules creates an empty rule set with the given fallback; nil means the
// generic structural rule.
func NewRules(fallback LayerRule) *Rules {
	if fallback == nil {
		fallback = compileGenericLayer
	}
	return &Rules{
		layers:   make(map[symbolic.LayerKind]LayerRule),
		fallback: fallback,
	}
}

// RegisterLayer registers the rule for a layer kind, replacing any previous
// one.
func (r *Rules) RegisterLayer(kind symbolic.LayerKind, rule LayerRule) *Rules {
	r.layers[kind] = rule
	return r
}

func (r *Rules) retrieve(kind symbolic.LayerKind) LayerRule {
	if rule, ok := r.layers[kind]; ok {
		return rule
	}
	return r.fallback
}

// DefaultRules returns the built-in rule set. Every built-in layer kind
// compiles through the generic structural rule: the symbolic IR already
// holds all the structure a compiled layer needs, so kind-specific rules
// only exist as an extension point.
func DefaultRules() *Rules {
	return NewRules(nil)
}

// compileGenericLayer copies a layer's structural metadata and compiles its
// parameters.
func compileGenericLayer(comp *Compiler, sl symbolic.Layer) (*Layer, error) {
	params, err := comp.compileParams(sl)
	if err != nil {
		return nil, err
	}
	return &Layer{
		kind:           sl.Kind(),
		scope:          sl.Scope(),
		numInputUnits:  sl.NumInputUnits(),
		numOutputUnits: sl.NumOutputUnits(),
		arity:          sl.Arity(),
		config:         sl.Config(),
		params:         params,
	}, nil
}

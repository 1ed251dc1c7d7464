// Package compiler turns symbolic circuits into compiled circuits with
// materialized parameters. Its central contract is at-most-once
// materialization: within one compilation state, every distinct symbolic
// tensor parameter is allocated and initialized exactly once, no matter how
// many circuits of a rewrite pipeline reach it, and every further
// compilation site receives a pointer to that single materialization.
package compiler

import (
	"math/rand"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/daeargryn/cirkit/symbolic"
	"github.com/daeargryn/cirkit/types/xslices"
)

// Compiler compiles symbolic circuits against one shared State.
type Compiler struct {
	id    uuid.UUID
	state *State
	rules *Rules
	rng   *rand.Rand
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithSeed seeds the random source binding initializers, making
// materializations reproducible.
func WithSeed(seed int64) Option {
	return func(comp *Compiler) {
		comp.rng = rand.New(rand.NewSource(seed))
	}
}

// WithState makes the compiler share a compilation state, typically to share
// materialized parameters with previously compiled circuits.
func WithState(state *State) Option {
	return func(comp *Compiler) {
		comp.state = state
	}
}

// WithRules overrides the layer compilation rules.
func WithRules(rules *Rules) Option {
	return func(comp *Compiler) {
		comp.rules = rules
	}
}

// New creates a compiler. Without options it uses a fresh state, the default
// layer rules and a randomly seeded random source.
func New(options ...Option) *Compiler {
	comp := &Compiler{id: uuid.New()}
	for _, option := range options {
		option(comp)
	}
	if comp.state == nil {
		comp.state = NewState()
	}
	if comp.rules == nil {
		comp.rules = DefaultRules()
	}
	if comp.rng == nil {
		comp.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return comp
}

// State returns the compiler's compilation state.
func (comp *Compiler) State() *State { return comp.state }

// Compile compiles sc and, first, every circuit it was derived from through
// its provenance operations, sharing parameter materializations across the
// whole pipeline. Compiling a circuit already known to the state reuses its
// compiled layers.
func (comp *Compiler) Compile(sc *symbolic.Circuit) (*Circuit, error) {
	pipeline := sc.OperandsOrdering()
	var compiled *Circuit
	for _, stage := range pipeline {
		var err error
		compiled, err = comp.compileCircuit(stage)
		if err != nil {
			return nil, err
		}
	}
	return compiled, nil
}

func (comp *Compiler) compileCircuit(sc *symbolic.Circuit) (*Circuit, error) {
	ordering, err := sc.TopologicalOrdering()
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("compiler %s: compiling circuit with %d layers over scope %s",
		comp.id, len(ordering), sc.Scope())
	c := &Circuit{
		source:    sc,
		layers:    make([]*Layer, 0, len(ordering)),
		inLayers:  make(map[*Layer][]*Layer, len(ordering)),
		outLayers: make(map[*Layer][]*Layer),
	}
	compiled := make(map[symbolic.Layer]*Layer, len(ordering))
	for _, sl := range ordering {
		inputs := make([]*Layer, 0, len(sc.LayerInputs(sl)))
		for _, in := range sc.LayerInputs(sl) {
			compiledIn, found := compiled[in]
			if !found {
				return nil, orderingErrorf(sl.String(), "input layer %s was not compiled first", in)
			}
			inputs = append(inputs, compiledIn)
		}
		cl := comp.state.RetrieveLayer(sl)
		if cl == nil {
			rule := comp.rules.retrieve(sl.Kind())
			cl, err = rule(comp, sl)
			if err != nil {
				return nil, err
			}
			comp.state.RegisterLayer(sl, cl)
		}
		compiled[sl] = cl
		c.layers = append(c.layers, cl)
		c.inLayers[cl] = inputs
		for _, in := range inputs {
			c.outLayers[in] = append(c.outLayers[in], cl)
		}
	}
	return c, nil
}

// axised and bounded extract the operator attributes carried by some
// symbolic parameter nodes.
type axised interface{ Axis() int }

type bounded interface {
	VMin() float64
	VMax() float64
}

// compileParameter compiles one symbolic parameter node. Leaf tensors go
// through the state's once-only materialization; references resolve to the
// owning layer's already compiled parameter; operator nodes compile their
// operands post-order and are cached by identity.
func (comp *Compiler) compileParameter(sp symbolic.Parameter) (Parameter, error) {
	switch p := sp.(type) {
	case *symbolic.TensorParameter:
		return comp.state.materializeOnce(p, func() (*TensorParameter, error) {
			t := newTensor(p.Shape(), p.Learnable())
			if err := t.fill(p.Initializer(), comp.rng); err != nil {
				return nil, err
			}
			klog.V(2).Infof("compiler %s: materialized %s with initializer %s",
				comp.id, t, p.Initializer())
			return &TensorParameter{tensor: t}, nil
		})
	case *symbolic.ConstantParameter:
		if cached := comp.state.RetrieveParameter(p); cached != nil {
			return cached, nil
		}
		compiled := &ConstantParameter{shape: p.Shape(), value: p.Value()}
		comp.state.RegisterParameter(p, compiled)
		return compiled, nil
	case *symbolic.ReferenceParameter:
		owner := comp.state.RetrieveLayer(p.Owner())
		if owner == nil {
			return nil, orderingErrorf(p.Owner().String(),
				"parameter %q referenced before its owning layer was compiled", p.Name())
		}
		compiled := owner.Param(p.Name())
		if compiled == nil {
			return nil, orderingErrorf(p.Owner().String(),
				"referenced parameter %q missing from the compiled layer", p.Name())
		}
		return compiled, nil
	}
	if cached := comp.state.RetrieveParameter(sp); cached != nil {
		return cached, nil
	}
	operands := sp.Operands()
	compiledOperands := make([]Parameter, len(operands))
	for i, opd := range operands {
		compiledOpd, err := comp.compileParameter(opd)
		if err != nil {
			return nil, err
		}
		compiledOperands[i] = compiledOpd
	}
	compiled := &OpParameter{
		kind:     sp.Kind(),
		shape:    sp.Shape(),
		operands: compiledOperands,
	}
	if a, ok := sp.(axised); ok {
		compiled.axis = a.Axis()
	}
	if b, ok := sp.(bounded); ok {
		compiled.vmin, compiled.vmax = b.VMin(), b.VMax()
	}
	comp.state.RegisterParameter(sp, compiled)
	return compiled, nil
}

// compileParams compiles a layer's parameters in sorted name order, for
// reproducible materialization.
func (comp *Compiler) compileParams(sl symbolic.Layer) (map[string]Parameter, error) {
	symParams := sl.Params()
	params := make(map[string]Parameter, len(symParams))
	for _, name := range xslices.SortedKeys(symParams) {
		compiled, err := comp.compileParameter(symParams[name])
		if err != nil {
			return nil, err
		}
		params[name] = compiled
	}
	return params, nil
}

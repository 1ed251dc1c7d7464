package compiler

import (
	"fmt"

	"github.com/daeargryn/cirkit/symbolic"
	"github.com/daeargryn/cirkit/types"
	"github.com/daeargryn/cirkit/types/xslices"
)

// Layer is the compiled form of one symbolic layer: the same structural
// metadata, with every symbolic parameter replaced by its compiled form.
type Layer struct {
	kind           symbolic.LayerKind
	scope          types.Scope
	numInputUnits  int
	numOutputUnits int
	arity          int
	config         map[string]any
	params         map[string]Parameter
}

// Kind returns the layer kind of the source symbolic layer.
func (l *Layer) Kind() symbolic.LayerKind { return l.kind }

// Scope returns the variables the layer depends on.
func (l *Layer) Scope() types.Scope { return l.scope }

// NumInputUnits returns the number of units per input.
func (l *Layer) NumInputUnits() int { return l.numInputUnits }

// NumOutputUnits returns the number of computational units.
func (l *Layer) NumOutputUnits() int { return l.numOutputUnits }

// Arity returns the number of inputs.
func (l *Layer) Arity() int { return l.arity }

// Config returns the hyperparameters of the source layer.
func (l *Layer) Config() map[string]any { return l.config }

// Params returns the compiled parameters, mapped by name.
func (l *Layer) Params() map[string]Parameter { return l.params }

// Param returns the compiled parameter with the given name, or nil.
func (l *Layer) Param(name string) Parameter { return l.params[name] }

func (l *Layer) String() string {
	return fmt.Sprintf("compiled %s%s[%d]", l.kind, l.scope, l.numOutputUnits)
}

// Circuit is a compiled circuit: the layer DAG of its source symbolic
// circuit with compiled layers, in topological order.
type Circuit struct {
	source    *symbolic.Circuit
	layers    []*Layer
	inLayers  map[*Layer][]*Layer
	outLayers map[*Layer][]*Layer
}

// Source returns the symbolic circuit this circuit was compiled from.
func (c *Circuit) Source() *symbolic.Circuit { return c.source }

// Scope returns the compiled circuit's scope.
func (c *Circuit) Scope() types.Scope { return c.source.Scope() }

// Layers returns all compiled layers, in topological order.
func (c *Circuit) Layers() []*Layer { return c.layers }

// LayerInputs returns the layers feeding l, in input-slot order.
func (c *Circuit) LayerInputs(l *Layer) []*Layer { return c.inLayers[l] }

// LayerOutputs returns the layers fed by l.
func (c *Circuit) LayerOutputs(l *Layer) []*Layer { return c.outLayers[l] }

// OutputLayers returns the layers that feed no other layer.
func (c *Circuit) OutputLayers() []*Layer {
	var outputs []*Layer
	for _, l := range c.layers {
		if len(c.outLayers[l]) == 0 {
			outputs = append(outputs, l)
		}
	}
	return outputs
}

// Parameters returns the distinct compiled parameters of the circuit, in
// layer order and by sorted parameter name within a layer. Pointer
// parameters are returned as such; dereferencing is up to the caller.
func (c *Circuit) Parameters() []Parameter {
	var params []Parameter
	seen := make(map[Parameter]bool)
	for _, l := range c.layers {
		for _, name := range xslices.SortedKeys(l.params) {
			p := l.params[name]
			if !seen[p] {
				seen[p] = true
				params = append(params, p)
			}
		}
	}
	return params
}

package symbolic

import (
	"fmt"
	"strings"

	"github.com/daeargryn/cirkit/types"
	"github.com/daeargryn/cirkit/types/xslices"
)

// Operation records how a circuit was obtained from other circuits, e.g. by
// integration or multiplication. Circuits built directly carry no operation.
type Operation struct {
	Operator Operator
	Operands []*Circuit
	// Metadata carries operator-specific details, e.g. the integration scope.
	Metadata map[string]any
}

// Circuit is a symbolic circuit: a directed acyclic graph of layers, where
// edges connect each inner layer to the layers feeding it. The circuit is
// immutable after construction; operators build new circuits instead of
// mutating existing ones.
type Circuit struct {
	scope     types.Scope
	layers    []Layer
	inLayers  map[Layer][]Layer
	outLayers map[Layer][]Layer
	operation *Operation

	// Lazily computed structural property caches.
	smooth, decomposable, structuredDecomposable, omniCompatible *bool
	compatibleWith                                               map[*Circuit]bool
}

// NewCircuit creates a circuit from its layers and the input connections of
// each layer. Layers absent from inLayers (or mapped to an empty slice) are
// the circuit's input layers. The graph is validated for connectivity, unit
// compatibility and acyclicity.
func NewCircuit(layers []Layer, inLayers map[Layer][]Layer) (*Circuit, error) {
	return newCircuit(layers, inLayers, nil)
}

func newCircuit(layers []Layer, inLayers map[Layer][]Layer, operation *Operation) (*Circuit, error) {
	if len(layers) == 0 {
		return nil, structuralErrorf("a circuit must have at least one layer")
	}
	known := make(types.Set[Layer], len(layers))
	for _, l := range layers {
		if known.Has(l) {
			return nil, structuralErrorf("layer %s appears more than once", l)
		}
		known.Insert(l)
	}
	c := &Circuit{
		layers:    layers,
		inLayers:  make(map[Layer][]Layer, len(inLayers)),
		outLayers: make(map[Layer][]Layer),
		operation: operation,
	}
	for l, inputs := range inLayers {
		if !known.Has(l) {
			return nil, structuralErrorf("inputs given for layer %s, which is not part of the circuit", l)
		}
		c.inLayers[l] = inputs
	}
	for _, l := range layers {
		inputs := c.inLayers[l]
		if err := validateConnections(l, inputs); err != nil {
			return nil, err
		}
		for _, in := range inputs {
			if !known.Has(in) {
				return nil, structuralErrorf("layer %s feeds %s but is not part of the circuit", in, l)
			}
			c.outLayers[in] = append(c.outLayers[in], l)
		}
	}
	// The ordering both detects cycles and seeds the traversal caches.
	if _, err := c.TopologicalOrdering(); err != nil {
		return nil, err
	}
	outputs := c.OutputLayers()
	if len(outputs) == 0 {
		return nil, structuralErrorf("a circuit must have at least one output layer")
	}
	c.scope = types.NewScope()
	for _, l := range outputs {
		c.scope = c.scope.Union(l.Scope())
	}
	return c, nil
}

func validateConnections(l Layer, inputs []Layer) error {
	if l.Kind().IsInput() {
		if len(inputs) > 0 {
			return structuralErrorf("input layer %s cannot have inputs", l)
		}
		return nil
	}
	if len(inputs) != l.Arity() {
		return structuralErrorf("layer %s has arity %d but %d inputs", l, l.Arity(), len(inputs))
	}
	for _, in := range inputs {
		if in.NumOutputUnits() != l.NumInputUnits() {
			return structuralErrorf("layer %s expects %d units per input, but %s outputs %d",
				l, l.NumInputUnits(), in, in.NumOutputUnits())
		}
	}
	return nil
}

// Scope is the union of the scopes of the circuit's output layers.
func (c *Circuit) Scope() types.Scope { return c.scope }

// Operation returns how this circuit was obtained from other circuits, or
// nil for directly constructed circuits.
func (c *Circuit) Operation() *Operation { return c.operation }

// NumVariables returns the number of variables the circuit is defined on.
func (c *Circuit) NumVariables() int { return c.scope.Len() }

// Layers returns all layers, in construction order.
func (c *Circuit) Layers() []Layer { return c.layers }

// LayerInputs returns the layers feeding l, in input-slot order.
func (c *Circuit) LayerInputs(l Layer) []Layer { return c.inLayers[l] }

// LayerOutputs returns the layers fed by l.
func (c *Circuit) LayerOutputs(l Layer) []Layer { return c.outLayers[l] }

// InputLayers returns the layers without inputs, in construction order.
func (c *Circuit) InputLayers() []Layer {
	return xslices.Filter(c.layers, func(l Layer) bool { return l.Kind().IsInput() })
}

// InnerLayers returns the non-input layers, in construction order.
func (c *Circuit) InnerLayers() []Layer {
	return xslices.Filter(c.layers, func(l Layer) bool { return !l.Kind().IsInput() })
}

// SumLayers returns the sum layers, in construction order.
func (c *Circuit) SumLayers() []Layer {
	return xslices.Filter(c.layers, func(l Layer) bool { return l.Kind().IsSum() })
}

// ProductLayers returns the product layers, in construction order.
func (c *Circuit) ProductLayers() []Layer {
	return xslices.Filter(c.layers, func(l Layer) bool { return l.Kind().IsProduct() })
}

// OutputLayers returns the layers that feed no other layer, in construction
// order.
func (c *Circuit) OutputLayers() []Layer {
	return xslices.Filter(c.layers, func(l Layer) bool { return len(c.outLayers[l]) == 0 })
}

// TopologicalOrdering returns the layers sorted so that every layer appears
// after all of its inputs. The ordering is deterministic: ties are broken by
// construction order. A CyclicGraphError is returned if the connections form
// a cycle.
func (c *Circuit) TopologicalOrdering() ([]Layer, error) {
	ordering := make([]Layer, 0, len(c.layers))
	pending := make(map[Layer]int, len(c.layers))
	var frontier []Layer
	for _, l := range c.layers {
		if n := len(c.inLayers[l]); n > 0 {
			pending[l] = n
		} else {
			frontier = append(frontier, l)
		}
	}
	for len(frontier) > 0 {
		l := frontier[0]
		frontier = frontier[1:]
		ordering = append(ordering, l)
		for _, out := range c.outLayers[l] {
			pending[out]--
			if pending[out] == 0 {
				delete(pending, out)
				frontier = append(frontier, out)
			}
		}
	}
	if len(ordering) != len(c.layers) {
		var remaining []string
		for _, l := range c.layers {
			if _, ok := pending[l]; ok {
				remaining = append(remaining, l.String())
			}
		}
		return nil, cyclicGraphErrorf("layers %s form a cycle", strings.Join(remaining, ", "))
	}
	return ordering, nil
}

// OperandsOrdering returns the circuits this circuit transitively depends on
// through its operations, sorted so that every circuit appears after its
// operands, with c itself last. Circuits reachable through several operations
// appear once.
func (c *Circuit) OperandsOrdering() []*Circuit {
	var ordering []*Circuit
	seen := make(types.Set[*Circuit])
	var visit func(sc *Circuit)
	visit = func(sc *Circuit) {
		if seen.Has(sc) {
			return
		}
		seen.Insert(sc)
		if sc.operation != nil {
			for _, opd := range sc.operation.Operands {
				visit(opd)
			}
		}
		ordering = append(ordering, sc)
	}
	visit(c)
	return ordering
}

func (c *Circuit) String() string {
	return fmt.Sprintf("Circuit{scope=%s, #layers=%d}", c.scope, len(c.layers))
}

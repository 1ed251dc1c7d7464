package symbolic

import (
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"

	"github.com/daeargryn/cirkit/types"
	"github.com/daeargryn/cirkit/types/shapes"
)

// The circuit-level operators. Each one walks the operand circuit(s) in
// topological order, rewrites layers through the registry rules, and builds a
// fresh circuit carrying a provenance Operation record; operand circuits are
// never mutated. Parameters of copied layers are expressed as references to
// the original layers, so a compiler state shared across the pipeline
// materializes each tensor exactly once.

// circuitBuilder accumulates the layers and connections of a circuit under
// construction.
type circuitBuilder struct {
	layers   []Layer
	inLayers map[Layer][]Layer
}

func newCircuitBuilder() *circuitBuilder {
	return &circuitBuilder{inLayers: make(map[Layer][]Layer)}
}

// addLayer appends a layer fed by the given inputs.
func (b *circuitBuilder) addLayer(l Layer, inputs []Layer) Layer {
	b.layers = append(b.layers, l)
	b.inLayers[l] = inputs
	return l
}

// addBlock appends a rule-produced block, feeding its input end with the
// given inputs and chaining the rest; it returns the block's output end.
func (b *circuitBuilder) addBlock(block *LayerBlock, inputs []Layer) Layer {
	chain := block.Layers()
	b.addLayer(chain[0], inputs)
	for i := 1; i < len(chain); i++ {
		b.addLayer(chain[i], []Layer{chain[i-1]})
	}
	return block.Output()
}

func (b *circuitBuilder) build(operation *Operation) (*Circuit, error) {
	return newCircuit(b.layers, b.inLayers, operation)
}

// copyLayer builds a fresh layer equivalent to l but over the given scope,
// with its parameters referencing l's. Rewrites use it for the layers an
// operator leaves semantically unchanged.
func copyLayer(l Layer, scope types.Scope) (Layer, error) {
	switch cl := l.(type) {
	case *CategoricalLayer:
		params := &CategoricalParams{}
		if cl.Probs() != nil {
			params.Probs = mustReference(cl, "probs")
		} else {
			params.Logits = mustReference(cl, "logits")
		}
		return NewCategoricalLayer(scope, cl.NumOutputUnits(), cl.NumChannels(), cl.NumCategories(), params)
	case *GaussianLayer:
		params := &GaussianParams{
			Mean:   mustReference(cl, "mean"),
			Stddev: mustReference(cl, "stddev"),
		}
		if cl.LogPartition() != nil {
			params.LogPartition = mustReference(cl, "log_partition")
		}
		return NewGaussianLayer(scope, cl.NumOutputUnits(), cl.NumChannels(), params)
	case *PolynomialLayer:
		return NewPolynomialLayer(scope, cl.NumOutputUnits(), cl.NumChannels(), cl.Degree(),
			mustReference(cl, "coeff"))
	case *LogPartitionLayer:
		return NewLogPartitionLayer(scope, cl.NumOutputUnits(), cl.NumChannels(),
			mustReference(cl, "value"))
	case *EvidenceLayer:
		return NewEvidenceLayer(cl.Wrapped(), cl.Observation())
	case *HadamardLayer:
		return NewHadamardLayer(scope, cl.NumInputUnits(), cl.Arity())
	case *KroneckerLayer:
		return NewKroneckerLayer(scope, cl.NumInputUnits(), cl.Arity())
	case *DenseLayer:
		return NewDenseLayer(scope, cl.NumInputUnits(), cl.NumOutputUnits(),
			mustReference(cl, "weight"))
	case *MixingLayer:
		return NewMixingLayer(scope, cl.NumOutputUnits(), cl.Arity(),
			mustReference(cl, "weight"))
	case *IndexLayer:
		return NewIndexLayer(scope, cl.NumInputUnits(), cl.NumOutputUnits(), cl.Indices())
	}
	return nil, notSupportedErrorf("copying layers of kind %s", l.Kind())
}

// Integrate builds the circuit integrating c over the given scope, which
// must be a subset of c's scope; an empty scope integrates over all of it.
// Input layers over integrated variables are replaced through the
// registry's integration rules; every other layer is copied with the
// integrated variables removed from its scope. c must be smooth and
// decomposable. registry may be nil, meaning DefaultRegistry.
func Integrate(c *Circuit, scope types.Scope, registry *OperatorRegistry) (*Circuit, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if !c.IsSmooth() || !c.IsDecomposable() {
		return nil, structuralPropertyErrorf("smooth and decomposable",
			"only smooth and decomposable circuits can be integrated efficiently")
	}
	if scope.IsEmpty() {
		scope = c.Scope()
	}
	if !scope.IsSubsetOf(c.Scope()) {
		return nil, configErrorf("Integrate",
			"the scope to integrate %s must be a subset of the circuit scope %s", scope, c.Scope())
	}
	ordering, err := c.TopologicalOrdering()
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("Integrate: circuit with %d layers over scope %s", len(c.layers), scope)

	b := newCircuitBuilder()
	rewritten := make(map[Layer]Layer, len(c.layers))
	for _, l := range ordering {
		if l.Kind().IsInput() && l.Scope().Overlaps(scope) {
			if !l.Scope().IsSubsetOf(scope) {
				return nil, notSupportedErrorf(
					"multivariate integration of a proper subset of the scope of input layer %s", l)
			}
			rule, err := registry.RetrieveIntegration(l.Kind())
			if err != nil {
				return nil, err
			}
			block, err := rule(l, l.Scope())
			if err != nil {
				return nil, err
			}
			rewritten[l] = b.addBlock(block, nil)
			continue
		}
		newLayer, err := copyLayer(l, l.Scope().Difference(scope))
		if err != nil {
			return nil, err
		}
		inputs := xslicesMapLayers(c.LayerInputs(l), rewritten)
		rewritten[l] = b.addLayer(newLayer, inputs)
	}
	return b.build(&Operation{
		Operator: OperatorIntegration,
		Operands: []*Circuit{c},
		Metadata: map[string]any{"scope": scope},
	})
}

func xslicesMapLayers(layers []Layer, rewritten map[Layer]Layer) []Layer {
	mapped := make([]Layer, len(layers))
	for i, l := range layers {
		mapped[i] = rewritten[l]
	}
	return mapped
}

// Multiply builds the circuit computing the product of lhs and rhs, which
// must be compatible and defined over the same scope. Layers are paired by
// synchronized descent from the outputs, matching inputs by scope, and each
// pair is combined through the registry's multiplication rules; the result
// has the product of the operands' unit counts at every level. registry may
// be nil, meaning DefaultRegistry.
func Multiply(lhs, rhs *Circuit, registry *OperatorRegistry) (*Circuit, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if !lhs.IsCompatible(rhs) {
		return nil, structuralPropertyErrorf("compatibility",
			"only compatible circuits can be multiplied into a decomposable circuit")
	}
	if !lhs.Scope().Equal(rhs.Scope()) {
		return nil, notSupportedErrorf("multiplication of circuits over different scopes %s and %s",
			lhs.Scope(), rhs.Scope())
	}
	klog.V(2).Infof("Multiply: circuits with %d and %d layers over scope %s",
		len(lhs.layers), len(rhs.layers), lhs.Scope())

	m := &multiplier{
		lhs: lhs, rhs: rhs,
		registry: registry,
		builder:  newCircuitBuilder(),
		pairs:    make(map[[2]Layer]Layer),
		copies:   make(map[Layer]Layer),
	}
	for _, o1 := range lhs.OutputLayers() {
		for _, o2 := range rhs.OutputLayers() {
			if _, err := m.multiplyPair(o1, o2); err != nil {
				return nil, err
			}
		}
	}
	return m.builder.build(&Operation{
		Operator: OperatorMultiplication,
		Operands: []*Circuit{lhs, rhs},
	})
}

type multiplier struct {
	lhs, rhs *Circuit
	registry *OperatorRegistry
	builder  *circuitBuilder
	pairs    map[[2]Layer]Layer
	copies   map[Layer]Layer
}

// multiplyPair combines one layer of each circuit at the same decomposition
// level, memoized so shared sub-DAGs are multiplied once.
func (m *multiplier) multiplyPair(l1, l2 Layer) (Layer, error) {
	key := [2]Layer{l1, l2}
	if out, ok := m.pairs[key]; ok {
		return out, nil
	}
	inputs, err := m.multiplyInputsOf(l1, l2)
	if err != nil {
		return nil, err
	}
	rule, err := m.registry.RetrieveMultiplication(l1.Kind(), l2.Kind())
	if err != nil {
		return nil, err
	}
	block, err := rule(l1, l2)
	if err != nil {
		return nil, err
	}
	out := m.builder.addBlock(block, inputs)
	m.pairs[key] = out
	return out, nil
}

// multiplyInputsOf recursively multiplies the children of a layer pair.
// Product layers pair each child with the operand child over the same
// variables (unique by decomposability and compatibility), copying children
// whose scope the other operand does not split; sum layers combine children
// all-to-all, matching the unit and arity arithmetic of the sum
// multiplication rules.
func (m *multiplier) multiplyInputsOf(l1, l2 Layer) ([]Layer, error) {
	children1 := m.lhs.LayerInputs(l1)
	children2 := m.rhs.LayerInputs(l2)
	if len(children1) == 0 && len(children2) == 0 {
		return nil, nil
	}
	if l1.Kind().IsProduct() && l2.Kind().IsProduct() {
		var inputs []Layer
		matched := make(types.Set[Layer])
		for _, c1 := range children1 {
			var partner Layer
			for _, c2 := range children2 {
				if c1.Scope().Overlaps(c2.Scope()) {
					partner = c2
					break
				}
			}
			if partner == nil {
				copied, err := m.copyOperand(m.lhs, c1)
				if err != nil {
					return nil, err
				}
				inputs = append(inputs, copied)
				continue
			}
			matched.Insert(partner)
			out, err := m.multiplyPair(c1, partner)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, out)
		}
		for _, c2 := range children2 {
			if !matched.Has(c2) {
				copied, err := m.copyOperand(m.rhs, c2)
				if err != nil {
					return nil, err
				}
				inputs = append(inputs, copied)
			}
		}
		return inputs, nil
	}
	// Sum (and unary) layers: all pairs, lhs-major.
	inputs := make([]Layer, 0, len(children1)*len(children2))
	for _, c1 := range children1 {
		for _, c2 := range children2 {
			out, err := m.multiplyPair(c1, c2)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, out)
		}
	}
	return inputs, nil
}

// copyOperand copies a sub-DAG of one operand circuit that the other operand
// does not decompose, rooted at l.
func (m *multiplier) copyOperand(c *Circuit, l Layer) (Layer, error) {
	if out, ok := m.copies[l]; ok {
		return out, nil
	}
	inputs := make([]Layer, 0, len(c.LayerInputs(l)))
	for _, in := range c.LayerInputs(l) {
		copied, err := m.copyOperand(c, in)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, copied)
	}
	copied, err := copyLayer(l, l.Scope())
	if err != nil {
		return nil, err
	}
	out := m.builder.addLayer(copied, inputs)
	m.copies[l] = out
	return out, nil
}

// Differentiate builds the circuit computing all partial derivatives of c
// alongside c itself: every input layer yields its differential and a copy,
// and every inner layer yields one layer per variable of its scope (the
// product rule path for that variable) plus a pass-through copy. c must be
// smooth and decomposable. registry may be nil, meaning DefaultRegistry.
func Differentiate(c *Circuit, registry *OperatorRegistry) (*Circuit, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if !c.IsSmooth() || !c.IsDecomposable() {
		return nil, structuralPropertyErrorf("smooth and decomposable",
			"only smooth and decomposable circuits can be differentiated efficiently")
	}
	ordering, err := c.TopologicalOrdering()
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("Differentiate: circuit with %d layers over scope %s", len(c.layers), c.Scope())

	b := newCircuitBuilder()
	// differentials[l][v] is the layer computing d(l)/d(x_v).
	differentials := make(map[Layer]map[int]Layer, len(c.layers))
	copies := make(map[Layer]Layer, len(c.layers))
	for _, l := range ordering {
		diffs := make(map[int]Layer, l.Scope().Len())
		if l.Kind().IsInput() {
			if l.Scope().Len() > 0 {
				rule, err := registry.RetrieveDifferentiation(l.Kind())
				if err != nil {
					return nil, err
				}
				block, err := rule(l)
				if err != nil {
					return nil, err
				}
				out := b.addBlock(block, nil)
				for _, v := range l.Scope() {
					diffs[v] = out
				}
			}
		} else {
			for _, v := range l.Scope() {
				inputs := make([]Layer, 0, l.Arity())
				for _, in := range c.LayerInputs(l) {
					if in.Scope().Contains(v) {
						inputs = append(inputs, differentials[in][v])
					} else {
						inputs = append(inputs, copies[in])
					}
				}
				diff, err := copyLayer(l, l.Scope())
				if err != nil {
					return nil, err
				}
				diffs[v] = b.addLayer(diff, inputs)
			}
		}
		differentials[l] = diffs
		copied, err := copyLayer(l, l.Scope())
		if err != nil {
			return nil, err
		}
		copies[l] = b.addLayer(copied, xslicesMapLayers(c.LayerInputs(l), copies))
	}
	return b.build(&Operation{
		Operator: OperatorDifferentiation,
		Operands: []*Circuit{c},
	})
}

// Conjugate builds the complex conjugate of c: the topology is unchanged and
// every parameterized layer has its parameters wrapped in conjugation nodes
// through the registry's conjugation rules; parameter-free layers are
// copied. registry may be nil, meaning DefaultRegistry.
func Conjugate(c *Circuit, registry *OperatorRegistry) (*Circuit, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	ordering, err := c.TopologicalOrdering()
	if err != nil {
		return nil, err
	}
	b := newCircuitBuilder()
	rewritten := make(map[Layer]Layer, len(c.layers))
	for _, l := range ordering {
		inputs := xslicesMapLayers(c.LayerInputs(l), rewritten)
		if len(l.Params()) == 0 {
			copied, err := copyLayer(l, l.Scope())
			if err != nil {
				return nil, err
			}
			rewritten[l] = b.addLayer(copied, inputs)
			continue
		}
		rule, err := registry.RetrieveConjugation(l.Kind())
		if err != nil {
			return nil, err
		}
		block, err := rule(l)
		if err != nil {
			return nil, err
		}
		rewritten[l] = b.addBlock(block, inputs)
	}
	return b.build(&Operation{
		Operator: OperatorConjugation,
		Operands: []*Circuit{c},
	})
}

// Evidence builds the circuit evaluating c with the given variables fixed to
// the observed values: each input layer over an observed variable is wrapped
// in an EvidenceLayer sharing its parameters, and the observed variables
// disappear from every scope. Input layers must be either fully observed or
// fully unobserved.
func Evidence(c *Circuit, observation map[int]float64) (*Circuit, error) {
	observed := types.NewScope(xsKeys(observation)...)
	if !observed.IsSubsetOf(c.Scope()) {
		return nil, configErrorf("Evidence",
			"the observed variables %s must be a subset of the circuit scope %s", observed, c.Scope())
	}
	ordering, err := c.TopologicalOrdering()
	if err != nil {
		return nil, err
	}
	b := newCircuitBuilder()
	rewritten := make(map[Layer]Layer, len(c.layers))
	for _, l := range ordering {
		if l.Kind().IsInput() && l.Scope().Overlaps(observed) {
			if !l.Scope().IsSubsetOf(observed) {
				return nil, notSupportedErrorf(
					"partial observation of the scope of input layer %s", l)
			}
			value := observation[l.Scope()[0]]
			obs := NewConstantParameter(shapes.Make(layerDType(l), l.Arity(), 1), value)
			wrapped, err := NewEvidenceLayer(l, obs)
			if err != nil {
				return nil, err
			}
			rewritten[l] = b.addLayer(wrapped, nil)
			continue
		}
		newLayer, err := copyLayer(l, l.Scope().Difference(observed))
		if err != nil {
			return nil, err
		}
		rewritten[l] = b.addLayer(newLayer, xslicesMapLayers(c.LayerInputs(l), rewritten))
	}
	return b.build(&Operation{
		Operator: OperatorEvidence,
		Operands: []*Circuit{c},
		Metadata: map[string]any{"observation": observation},
	})
}

func xsKeys(observation map[int]float64) []int {
	keys := make([]int, 0, len(observation))
	for v := range observation {
		keys = append(keys, v)
	}
	return keys
}

func layerDType(l Layer) dtypes.DType {
	for _, p := range l.Params() {
		return p.Shape().DType
	}
	return dtypes.Float32
}

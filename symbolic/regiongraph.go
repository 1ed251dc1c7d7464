package symbolic

import (
	"k8s.io/klog/v2"

	"github.com/daeargryn/cirkit/regiongraph"
	"github.com/daeargryn/cirkit/types"
)

// InputFactory builds the input layer of a leaf region.
type InputFactory func(scope types.Scope, numUnits int) (Layer, error)

// SumFactory builds the arity-1 sum layer covering a region.
type SumFactory func(scope types.Scope, numInputUnits, numOutputUnits int) (Layer, error)

// ProductFactory builds the product layer of a partition.
type ProductFactory func(scope types.Scope, numInputUnits, arity int) (Layer, error)

// MixingFactory builds the sum layer merging the alternative partitionings
// of a multi-partitioned region.
type MixingFactory func(scope types.Scope, numUnits, arity int) (Layer, error)

// RegionGraphConfig parameterizes FromRegionGraph. Nil factories default to
// Categorical inputs with two categories, Dense sums, Hadamard products and
// Mixing layers; zero unit counts default to 1.
type RegionGraphConfig struct {
	Input   InputFactory
	Sum     SumFactory
	Product ProductFactory
	Mixing  MixingFactory

	// NumInputUnits is the number of units of each input layer,
	// NumSumUnits the number of units of the inner sum layers, and
	// NumClasses the number of units of the output (root) sum layers.
	NumInputUnits, NumSumUnits, NumClasses int
}

func (config *RegionGraphConfig) withDefaults() RegionGraphConfig {
	var filled RegionGraphConfig
	if config != nil {
		filled = *config
	}
	if filled.NumInputUnits == 0 {
		filled.NumInputUnits = 1
	}
	if filled.NumSumUnits == 0 {
		filled.NumSumUnits = 1
	}
	if filled.NumClasses == 0 {
		filled.NumClasses = 1
	}
	if filled.Input == nil {
		filled.Input = func(scope types.Scope, numUnits int) (Layer, error) {
			return NewCategoricalLayer(scope, numUnits, 1, 2, nil)
		}
	}
	if filled.Sum == nil {
		filled.Sum = func(scope types.Scope, numInputUnits, numOutputUnits int) (Layer, error) {
			return NewDenseLayer(scope, numInputUnits, numOutputUnits, nil)
		}
	}
	if filled.Product == nil {
		filled.Product = func(scope types.Scope, numInputUnits, arity int) (Layer, error) {
			return NewHadamardLayer(scope, numInputUnits, arity)
		}
	}
	if filled.Mixing == nil {
		filled.Mixing = func(scope types.Scope, numUnits, arity int) (Layer, error) {
			return NewMixingLayer(scope, numUnits, arity, nil)
		}
	}
	return filled
}

// FromRegionGraph builds a symbolic circuit shaped after a region graph:
// leaf regions become input layers bridged by a sum layer, partitions become
// product layers over their parts, and inner regions become sum layers, with
// a mixing layer merging regions partitioned more than one way. Output
// regions receive NumClasses units instead of NumSumUnits. The resulting
// circuit is smooth and decomposable by construction. config may be nil.
func FromRegionGraph(g *regiongraph.Graph, config *RegionGraphConfig) (*Circuit, error) {
	cfg := config.withDefaults()
	b := newCircuitBuilder()
	built := make(map[regiongraph.Node]Layer)
	outputRegions := make(types.Set[regiongraph.Node])
	for _, r := range g.OutputRegions() {
		outputRegions.Insert(r)
	}
	for _, n := range g.Nodes() {
		switch node := n.(type) {
		case *regiongraph.Region:
			sumUnits := cfg.NumSumUnits
			if outputRegions.Has(n) {
				sumUnits = cfg.NumClasses
			}
			inputs := g.Inputs(n)
			var l Layer
			var err error
			switch {
			case len(inputs) == 0:
				in, err := cfg.Input(node.Scope(), cfg.NumInputUnits)
				if err != nil {
					return nil, err
				}
				b.addLayer(in, nil)
				l, err = cfg.Sum(node.Scope(), in.NumOutputUnits(), sumUnits)
				if err != nil {
					return nil, err
				}
				b.addLayer(l, []Layer{in})
			case len(inputs) == 1:
				product := built[inputs[0]]
				l, err = cfg.Sum(node.Scope(), product.NumOutputUnits(), sumUnits)
				if err != nil {
					return nil, err
				}
				b.addLayer(l, []Layer{product})
			default:
				// Multi-partitioned region: the alternative
				// decompositions merge through a mixing layer.
				products := make([]Layer, len(inputs))
				for i, in := range inputs {
					products[i] = built[in]
				}
				l, err = cfg.Mixing(node.Scope(), products[0].NumOutputUnits(), len(products))
				if err != nil {
					return nil, err
				}
				b.addLayer(l, products)
				if outputRegions.Has(n) && l.NumOutputUnits() != cfg.NumClasses {
					bridge, err := cfg.Sum(node.Scope(), l.NumOutputUnits(), cfg.NumClasses)
					if err != nil {
						return nil, err
					}
					b.addLayer(bridge, []Layer{l})
					l = bridge
				}
			}
			built[n] = l
		case *regiongraph.Partition:
			parts := g.Inputs(n)
			inputs := make([]Layer, len(parts))
			for i, p := range parts {
				inputs[i] = built[p]
			}
			l, err := cfg.Product(node.Scope(), inputs[0].NumOutputUnits(), len(inputs))
			if err != nil {
				return nil, err
			}
			b.addLayer(l, inputs)
			built[n] = l
		default:
			return nil, structuralErrorf("region graph node %s is neither a region nor a partition", n)
		}
	}
	klog.V(1).Infof("FromRegionGraph: built circuit with %d layers over scope %s",
		len(b.layers), g.Scope())
	return b.build(nil)
}

// circuit_inspect builds a symbolic circuit from a template region graph,
// reports its structural properties, optionally applies integration or a
// self-product, and compiles it, summarizing the materialized parameters.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/daeargryn/cirkit/compiler"
	"github.com/daeargryn/cirkit/regiongraph"
	"github.com/daeargryn/cirkit/symbolic"
	"github.com/daeargryn/cirkit/types"
)

var (
	flagStructure = flag.String("structure", "balanced",
		"Region graph template to build: one of \"factorized\", \"balanced\", \"random\" or \"forest\".")
	flagNumVars    = flag.Int("num_vars", 8, "Number of variables of the circuit.")
	flagNumTrees   = flag.Int("num_trees", 2, "Number of trees merged at the root, for --structure=forest.")
	flagInputUnits = flag.Int("input_units", 4, "Units per input layer.")
	flagSumUnits   = flag.Int("sum_units", 4, "Units per sum layer.")
	flagSeed       = flag.Int64("seed", 42, "Seed for random structures and parameter initialization.")
	flagIntegrate  = flag.Bool("integrate", false, "Integrate the circuit over its whole scope (its partition function).")
	flagSquare     = flag.Bool("square", false, "Multiply the circuit with itself before anything else.")
	flagCompile    = flag.Bool("compile", true, "Compile the final circuit and summarize its parameters.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	var g *regiongraph.Graph
	switch *flagStructure {
	case "factorized":
		g = regiongraph.FullyFactorized(*flagNumVars)
	case "balanced":
		g = regiongraph.BalancedBinaryTree(*flagNumVars)
	case "random":
		g = regiongraph.RandomBinaryTree(*flagNumVars, *flagSeed)
	case "forest":
		g = regiongraph.RandomBinaryTrees(*flagNumVars, *flagNumTrees, *flagSeed)
	default:
		fmt.Fprintf(os.Stderr, "unknown --structure=%q\n", *flagStructure)
		os.Exit(1)
	}

	c := must.M1(symbolic.FromRegionGraph(g, &symbolic.RegionGraphConfig{
		NumInputUnits: *flagInputUnits,
		NumSumUnits:   *flagSumUnits,
	}))
	describe("circuit", c)

	if *flagSquare {
		c = must.M1(symbolic.Multiply(c, c, nil))
		describe("squared circuit", c)
	}
	if *flagIntegrate {
		c = must.M1(symbolic.Integrate(c, types.Scope{}, nil))
		describe("integrated circuit", c)
	}

	if !*flagCompile {
		return
	}
	comp := compiler.New(compiler.WithSeed(*flagSeed))
	compiled := must.M1(comp.Compile(c))
	numParams, numValues, numLearnable := 0, 0, 0
	for _, p := range compiled.Parameters() {
		t := must.M1(p.Materialize())
		numParams++
		numValues += len(t.Data())
		if t.Learnable() {
			numLearnable++
		}
	}
	fmt.Printf("compiled: %d layers, %d parameters (%d learnable) holding %d values\n",
		len(compiled.Layers()), numParams, numLearnable, numValues)
}

func describe(name string, c *symbolic.Circuit) {
	fmt.Printf("%s: scope=%s, %d layers (%d input, %d sum, %d product)\n",
		name, c.Scope(), len(c.Layers()), len(c.InputLayers()), len(c.SumLayers()), len(c.ProductLayers()))
	fmt.Printf("  smooth=%t decomposable=%t structured_decomposable=%t omni_compatible=%t\n",
		c.IsSmooth(), c.IsDecomposable(), c.IsStructuredDecomposable(), c.IsOmniCompatible())
}

package compiler

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/daeargryn/cirkit/symbolic"
	"github.com/daeargryn/cirkit/types/shapes"
)

// Tensor is a materialized parameter: dense storage plus metadata. It is
// allocated exactly once per symbolic tensor parameter within a compiler
// state; every further compilation of the same symbolic node yields a
// Pointer to it instead.
type Tensor struct {
	shape     shapes.Shape
	data      []float64
	learnable bool
}

func newTensor(shape shapes.Shape, learnable bool) *Tensor {
	return &Tensor{
		shape:     shape,
		data:      make([]float64, shape.Size()),
		learnable: learnable,
	}
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// Data returns the tensor's flat storage, row-major.
func (t *Tensor) Data() []float64 { return t.data }

// Learnable reports whether the tensor is a trainable parameter.
func (t *Tensor) Learnable() bool { return t.learnable }

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape.Dimensions)
}

// fill executes a symbolic initializer over the tensor's storage, drawing
// from the compiler's random source so that a fixed seed reproduces the same
// materialization.
func (t *Tensor) fill(init symbolic.Initializer, rng *rand.Rand) error {
	switch i := init.(type) {
	case symbolic.NormalInitializer:
		for n := range t.data {
			t.data[n] = i.Mean + i.Stddev*rng.NormFloat64()
		}
	case symbolic.UniformInitializer:
		for n := range t.data {
			t.data[n] = i.Low + (i.High-i.Low)*rng.Float64()
		}
	case symbolic.ConstantInitializer:
		for n := range t.data {
			t.data[n] = i.Value
		}
	default:
		return errors.Errorf("unknown initializer %s", init)
	}
	return nil
}

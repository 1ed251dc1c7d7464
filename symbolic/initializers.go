package symbolic

import "fmt"

// Initializer is a symbolic descriptor of how a tensor parameter's storage is
// filled when it is materialized by a compiler. Initializers carry no storage
// and execute nothing: the execution backend owns initializer execution.
type Initializer interface {
	fmt.Stringer
}

// NormalInitializer fills a tensor with samples from Normal(Mean, Stddev).
type NormalInitializer struct {
	Mean, Stddev float64
}

func (i NormalInitializer) String() string {
	return fmt.Sprintf("Normal(%g, %g)", i.Mean, i.Stddev)
}

// StandardNormal returns a NormalInitializer with mean 0 and stddev 1, the
// default for learnable tensor parameters.
func StandardNormal() NormalInitializer {
	return NormalInitializer{Mean: 0, Stddev: 1}
}

// UniformInitializer fills a tensor with samples from Uniform[Low, High).
type UniformInitializer struct {
	Low, High float64
}

func (i UniformInitializer) String() string {
	return fmt.Sprintf("Uniform(%g, %g)", i.Low, i.High)
}

// ConstantInitializer fills a tensor with a fixed value.
type ConstantInitializer struct {
	Value float64
}

func (i ConstantInitializer) String() string {
	return fmt.Sprintf("Constant(%g)", i.Value)
}

package compiler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/daeargryn/cirkit/symbolic"
	"github.com/daeargryn/cirkit/types/shapes"
)

// Parameter is a compiled parameter node: either a materialized tensor, a
// pointer to one, a constant, or an operator over other compiled parameters.
// Materialize evaluates the node into dense storage; for materialized leaves
// and pointers it returns the one shared *Tensor, so callers can check
// sharing by identity.
type Parameter interface {
	Shape() shapes.Shape
	Materialize() (*Tensor, error)
}

// TensorParameter is a compiled leaf holding the single materialization of a
// symbolic tensor parameter.
type TensorParameter struct {
	tensor *Tensor
}

func (p *TensorParameter) Shape() shapes.Shape { return p.tensor.shape }

// Materialize returns the underlying tensor itself, never a copy.
func (p *TensorParameter) Materialize() (*Tensor, error) { return p.tensor, nil }

// Tensor returns the underlying storage.
func (p *TensorParameter) Tensor() *Tensor { return p.tensor }

// PointerParameter is a lightweight view of an already materialized
// parameter, produced when the same symbolic tensor parameter is compiled a
// second time within one compiler state. FoldIdx selects the fold (slice) of
// the materialization it refers to; it is 0 for unfolded compilation.
type PointerParameter struct {
	ref     *TensorParameter
	foldIdx int
}

func (p *PointerParameter) Shape() shapes.Shape { return p.ref.Shape() }

// Materialize returns the referenced materialization, never a copy.
func (p *PointerParameter) Materialize() (*Tensor, error) { return p.ref.tensor, nil }

// Ref returns the compiled parameter this pointer refers to.
func (p *PointerParameter) Ref() *TensorParameter { return p.ref }

// FoldIdx returns the fold index within the referenced materialization.
func (p *PointerParameter) FoldIdx() int { return p.foldIdx }

// ConstantParameter is a compiled constant, filled on materialization.
type ConstantParameter struct {
	shape shapes.Shape
	value float64
}

func (p *ConstantParameter) Shape() shapes.Shape { return p.shape }

// Value returns the constant fill value.
func (p *ConstantParameter) Value() float64 { return p.value }

func (p *ConstantParameter) Materialize() (*Tensor, error) {
	t := newTensor(p.shape, false)
	for i := range t.data {
		t.data[i] = p.value
	}
	return t, nil
}

// OpParameter is a compiled operator node mirroring one symbolic parameter
// operator. Materialize recursively materializes the operands and applies
// the operator numerically.
type OpParameter struct {
	kind     symbolic.ParameterKind
	shape    shapes.Shape
	operands []Parameter

	// Operator attributes; which ones are meaningful depends on kind.
	axis       int
	vmin, vmax float64
}

func (p *OpParameter) Shape() shapes.Shape { return p.shape }

// Kind returns the operator this node applies.
func (p *OpParameter) Kind() symbolic.ParameterKind { return p.kind }

// Operands returns the compiled operand nodes.
func (p *OpParameter) Operands() []Parameter { return p.operands }

func (p *OpParameter) Materialize() (*Tensor, error) {
	ins := make([]*Tensor, len(p.operands))
	for i, opd := range p.operands {
		t, err := opd.Materialize()
		if err != nil {
			return nil, err
		}
		ins[i] = t
	}
	out := newTensor(p.shape, false)
	switch p.kind {
	case symbolic.ParamExp:
		elementwise(out, ins[0], math.Exp)
	case symbolic.ParamLog:
		elementwise(out, ins[0], math.Log)
	case symbolic.ParamSquare:
		elementwise(out, ins[0], func(x float64) float64 { return x * x })
	case symbolic.ParamSigmoid:
		elementwise(out, ins[0], sigmoid)
	case symbolic.ParamConjugate:
		// Real storage: conjugation is the identity.
		copy(out.data, ins[0].data)
	case symbolic.ParamScaledSigmoid:
		elementwise(out, ins[0], func(x float64) float64 {
			return p.vmin + (p.vmax-p.vmin)*sigmoid(x)
		})
	case symbolic.ParamClamp:
		elementwise(out, ins[0], func(x float64) float64 {
			return math.Min(math.Max(x, p.vmin), p.vmax)
		})
	case symbolic.ParamSoftmax:
		softmaxAxis(out, ins[0], p.axis, false)
	case symbolic.ParamLogSoftmax:
		softmaxAxis(out, ins[0], p.axis, true)
	case symbolic.ParamReduceSum:
		reduceAxis(out, ins[0], p.axis, func(acc []float64) float64 {
			total := 0.0
			for _, x := range acc {
				total += x
			}
			return total
		})
	case symbolic.ParamReduceProduct:
		reduceAxis(out, ins[0], p.axis, func(acc []float64) float64 {
			total := 1.0
			for _, x := range acc {
				total *= x
			}
			return total
		})
	case symbolic.ParamReduceLSE:
		reduceAxis(out, ins[0], p.axis, logSumExp)
	case symbolic.ParamSum:
		for i := range out.data {
			total := 0.0
			for _, in := range ins {
				total += in.data[i]
			}
			out.data[i] = total
		}
	case symbolic.ParamHadamard:
		for i := range out.data {
			out.data[i] = ins[0].data[i] * ins[1].data[i]
		}
	case symbolic.ParamKronecker:
		crossAllAxes(out, ins[0], ins[1], func(a, b float64) float64 { return a * b })
	case symbolic.ParamOuterProduct:
		crossOneAxis(out, ins[0], ins[1], p.axis, func(a, b float64) float64 { return a * b })
	case symbolic.ParamOuterSum:
		crossOneAxis(out, ins[0], ins[1], p.axis, func(a, b float64) float64 { return a + b })
	case symbolic.ParamGaussianProductMean:
		gaussianProduct(out, ins[0], ins[1], ins[2], ins[3], func(m1, v1, m2, v2 float64) float64 {
			return (m1*v2 + m2*v1) / (v1 + v2)
		})
	case symbolic.ParamGaussianProductStddev:
		crossOneAxis(out, ins[0], ins[1], 0, func(s1, s2 float64) float64 {
			v1, v2 := s1*s1, s2*s2
			return math.Sqrt(v1 * v2 / (v1 + v2))
		})
	case symbolic.ParamGaussianProductLogPartition:
		gaussianProduct(out, ins[0], ins[1], ins[2], ins[3], func(m1, v1, m2, v2 float64) float64 {
			v := v1 + v2
			d := m1 - m2
			return -0.5 * (math.Log(2*math.Pi*v) + d*d/v)
		})
	case symbolic.ParamPolynomialDifferential:
		polynomialDifferential(out, ins[0])
	case symbolic.ParamPolynomialProduct:
		polynomialProduct(out, ins[0], ins[1])
	default:
		return nil, errors.Errorf("no materialization rule for parameter operator %s", p.kind)
	}
	return out, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logSumExp(xs []float64) float64 {
	maxX := math.Inf(-1)
	for _, x := range xs {
		maxX = math.Max(maxX, x)
	}
	if math.IsInf(maxX, -1) {
		return maxX
	}
	total := 0.0
	for _, x := range xs {
		total += math.Exp(x - maxX)
	}
	return maxX + math.Log(total)
}

func elementwise(out, in *Tensor, fn func(float64) float64) {
	for i, x := range in.data {
		out.data[i] = fn(x)
	}
}

// axisStride returns the row-major stride of the given axis.
func axisStride(dims []int, axis int) int {
	stride := 1
	for i := axis + 1; i < len(dims); i++ {
		stride *= dims[i]
	}
	return stride
}

// axisGroups calls fn once per 1D slice along axis, passing the flat offsets
// of the slice's elements.
func axisGroups(dims []int, axis int, fn func(offsets []int)) {
	stride := axisStride(dims, axis)
	n := dims[axis]
	total := 1
	for _, d := range dims {
		total *= d
	}
	offsets := make([]int, n)
	for start := 0; start < total; start++ {
		if (start/stride)%n != 0 {
			continue
		}
		for k := range n {
			offsets[k] = start + k*stride
		}
		fn(offsets)
	}
}

func softmaxAxis(out, in *Tensor, axis int, logSpace bool) {
	axisGroups(in.shape.Dimensions, axis, func(offsets []int) {
		group := make([]float64, len(offsets))
		for k, off := range offsets {
			group[k] = in.data[off]
		}
		lse := logSumExp(group)
		for k, off := range offsets {
			if logSpace {
				out.data[off] = group[k] - lse
			} else {
				out.data[off] = math.Exp(group[k] - lse)
			}
		}
	})
}

func reduceAxis(out, in *Tensor, axis int, reduce func([]float64) float64) {
	group := make([]float64, in.shape.Dimensions[axis])
	i := 0
	axisGroups(in.shape.Dimensions, axis, func(offsets []int) {
		for k, off := range offsets {
			group[k] = in.data[off]
		}
		out.data[i] = reduce(group)
		i++
	})
}

// crossAllAxes computes the generalized Kronecker combination: output index
// o_i = a_i*dimB_i + b_i on every axis.
func crossAllAxes(out, a, b *Tensor, combine func(x, y float64) float64) {
	outDims := out.shape.Dimensions
	aDims, bDims := a.shape.Dimensions, b.shape.Dimensions
	rank := len(outDims)
	outIdx := make([]int, rank)
	for p := range out.data {
		unravel(p, outDims, outIdx)
		aFlat, bFlat := 0, 0
		for i := range rank {
			aFlat = aFlat*aDims[i] + outIdx[i]/bDims[i]
			bFlat = bFlat*bDims[i] + outIdx[i]%bDims[i]
		}
		out.data[p] = combine(a.data[aFlat], b.data[bFlat])
	}
}

// crossOneAxis crosses the units of two tensors along one axis; the other
// axes must agree and are combined pointwise.
func crossOneAxis(out, a, b *Tensor, axis int, combine func(x, y float64) float64) {
	outDims := out.shape.Dimensions
	aDims, bDims := a.shape.Dimensions, b.shape.Dimensions
	rank := len(outDims)
	outIdx := make([]int, rank)
	for p := range out.data {
		unravel(p, outDims, outIdx)
		aFlat, bFlat := 0, 0
		for i := range rank {
			ai, bi := outIdx[i], outIdx[i]
			if i == axis {
				ai = outIdx[i] / bDims[i]
				bi = outIdx[i] % bDims[i]
			}
			aFlat = aFlat*aDims[i] + ai
			bFlat = bFlat*bDims[i] + bi
		}
		out.data[p] = combine(a.data[aFlat], b.data[bFlat])
	}
}

func unravel(flat int, dims, idx []int) {
	for i := len(dims) - 1; i >= 0; i-- {
		idx[i] = flat % dims[i]
		flat /= dims[i]
	}
}

// gaussianProduct combines (mean, stddev) pairs of shape (units, channels)
// across the unit axis, passing means and variances to fn.
func gaussianProduct(out, mean1, stddev1, mean2, stddev2 *Tensor, fn func(m1, v1, m2, v2 float64) float64) {
	u1, channels := mean1.shape.Dim(0), mean1.shape.Dim(1)
	u2 := mean2.shape.Dim(0)
	for i := range u1 {
		for j := range u2 {
			for c := range channels {
				s1 := stddev1.data[i*channels+c]
				s2 := stddev2.data[j*channels+c]
				out.data[(i*u2+j)*channels+c] = fn(
					mean1.data[i*channels+c], s1*s1,
					mean2.data[j*channels+c], s2*s2)
			}
		}
	}
}

// polynomialDifferential maps coefficients (units, degree+1) to the
// derivative coefficients (units, max(degree, 1)).
func polynomialDifferential(out, coeff *Tensor) {
	units, n := coeff.shape.Dim(0), coeff.shape.Dim(1)
	outN := out.shape.Dim(1)
	for u := range units {
		for k := range outN {
			if k+1 < n {
				out.data[u*outN+k] = float64(k+1) * coeff.data[u*n+k+1]
			} else {
				out.data[u*outN+k] = 0
			}
		}
	}
}

// polynomialProduct convolves coefficients (u1, n1) and (u2, n2) into
// (u1*u2, n1+n2-1).
func polynomialProduct(out, c1, c2 *Tensor) {
	u1, n1 := c1.shape.Dim(0), c1.shape.Dim(1)
	u2, n2 := c2.shape.Dim(0), c2.shape.Dim(1)
	outN := n1 + n2 - 1
	for i := range u1 {
		for j := range u2 {
			base := (i*u2 + j) * outN
			for a := range n1 {
				for b := range n2 {
					out.data[base+a+b] += c1.data[i*n1+a] * c2.data[j*n2+b]
				}
			}
		}
	}
}

package symbolic

import (
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/daeargryn/cirkit/types"
	"github.com/daeargryn/cirkit/types/shapes"
)

// The built-in rewrite rules, installed by DefaultRegistry. Each rule turns
// one layer (or one per operand circuit, for multiplication) into the layer
// block computing the rewritten semantics, composing operand parameters
// through reference nodes so the compiler shares their materializations.

func layerAs[T Layer](l Layer) (T, error) {
	cast, ok := l.(T)
	if !ok {
		var zero T
		return zero, structuralErrorf("unexpected layer type %T for kind %s", l, l.Kind())
	}
	return cast, nil
}

func registerDefaultRules(r *OperatorRegistry) {
	r.RegisterIntegration(KindCategorical, integrateCategorical)
	r.RegisterIntegration(KindGaussian, integrateGaussian)
	r.RegisterIntegration(KindPolynomial, integratePolynomial)

	r.RegisterMultiplication(KindCategorical, KindCategorical, multiplyCategorical)
	r.RegisterMultiplication(KindGaussian, KindGaussian, multiplyGaussian)
	r.RegisterMultiplication(KindPolynomial, KindPolynomial, multiplyPolynomial)
	r.RegisterMultiplication(KindLogPartition, KindLogPartition, multiplyLogPartition)
	r.RegisterMultiplication(KindHadamard, KindHadamard, multiplyHadamard)
	r.RegisterMultiplication(KindKronecker, KindKronecker, multiplyKronecker)
	r.RegisterMultiplication(KindDense, KindDense, multiplyDense)
	r.RegisterMultiplication(KindMixing, KindMixing, multiplyMixing)

	r.RegisterDifferentiation(KindPolynomial, differentiatePolynomial)

	r.RegisterConjugation(KindInput, conjugateInput)
	r.RegisterConjugation(KindDense, conjugateDense)
	r.RegisterConjugation(KindMixing, conjugateMixing)
}

// zerosLike returns a zero constant of shape (dims...), with the dtype of
// the given parameter.
func zerosLike(p Parameter, dims ...int) *ConstantParameter {
	dtype := dtypes.Float32
	if p != nil {
		dtype = p.Shape().DType
	}
	return NewConstantParameter(shapes.Make(dtype, dims...), 0)
}

// integrateCategorical integrates a categorical layer over its variable. In
// the logits parameterization the partition function is the per-channel
// log-sum-exp over categories, summed over channels in log space; in the
// probabilities parameterization it is 1.
func integrateCategorical(l Layer, scope types.Scope) (*LayerBlock, error) {
	cl, err := layerAs[*CategoricalLayer](l)
	if err != nil {
		return nil, err
	}
	var value Parameter
	if cl.Logits() != nil {
		lse, err := NewReduceLSE(mustReference(cl, "logits"), 2)
		if err != nil {
			return nil, err
		}
		value, err = NewReduceSum(lse, 1)
		if err != nil {
			return nil, err
		}
	} else {
		value = zerosLike(cl.Probs(), cl.NumOutputUnits())
	}
	out, err := NewLogPartitionLayer(cl.Scope().Difference(scope), cl.NumOutputUnits(), cl.NumChannels(), value)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

// integrateGaussian integrates a Gaussian layer over its variable: the
// density is normalized, so the partition function reduces to the extra
// log-partition term when present and to 1 otherwise.
func integrateGaussian(l Layer, scope types.Scope) (*LayerBlock, error) {
	gl, err := layerAs[*GaussianLayer](l)
	if err != nil {
		return nil, err
	}
	var value Parameter
	if gl.LogPartition() != nil {
		value, err = NewReduceSum(mustReference(gl, "log_partition"), 1)
		if err != nil {
			return nil, err
		}
	} else {
		value = zerosLike(gl.Mean(), gl.NumOutputUnits())
	}
	out, err := NewLogPartitionLayer(gl.Scope().Difference(scope), gl.NumOutputUnits(), gl.NumChannels(), value)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

// integratePolynomial rejects integration: polynomials have no finite
// integral over an unbounded domain.
func integratePolynomial(l Layer, scope types.Scope) (*LayerBlock, error) {
	return nil, notSupportedErrorf("integration of polynomial layer %s over an unbounded domain", l)
}

// categoricalLogits returns the layer's logits parameter, deriving it from
// probabilities when the layer is probability-parameterized.
func categoricalLogits(cl *CategoricalLayer) Parameter {
	if cl.Logits() != nil {
		return mustReference(cl, "logits")
	}
	return NewLog(mustReference(cl, "probs"))
}

func multiplyCategorical(lhs, rhs Layer) (*LayerBlock, error) {
	cl1, err := layerAs[*CategoricalLayer](lhs)
	if err != nil {
		return nil, err
	}
	cl2, err := layerAs[*CategoricalLayer](rhs)
	if err != nil {
		return nil, err
	}
	if cl1.NumChannels() != cl2.NumChannels() {
		return nil, configErrorf("Categorical", "multiplied layers must have the same number of channels: %d vs %d",
			cl1.NumChannels(), cl2.NumChannels())
	}
	if cl1.NumCategories() != cl2.NumCategories() {
		return nil, configErrorf("Categorical", "multiplied layers must have the same number of categories: %d vs %d",
			cl1.NumCategories(), cl2.NumCategories())
	}
	// The product of the mass functions, in log space. The product layer is
	// always logits-parameterized, even when both operands carry
	// probabilities: a product of normalized mass functions is not
	// normalized, and only the logits integration rule computes the
	// resulting partition function.
	params := &CategoricalParams{}
	params.Logits, err = NewOuterSum(categoricalLogits(cl1), categoricalLogits(cl2), 0)
	if err != nil {
		return nil, err
	}
	out, err := NewCategoricalLayer(cl1.Scope().Union(cl2.Scope()),
		cl1.NumOutputUnits()*cl2.NumOutputUnits(), cl1.NumChannels(), cl1.NumCategories(), params)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

func multiplyGaussian(lhs, rhs Layer) (*LayerBlock, error) {
	gl1, err := layerAs[*GaussianLayer](lhs)
	if err != nil {
		return nil, err
	}
	gl2, err := layerAs[*GaussianLayer](rhs)
	if err != nil {
		return nil, err
	}
	if gl1.NumChannels() != gl2.NumChannels() {
		return nil, configErrorf("Gaussian", "multiplied layers must have the same number of channels: %d vs %d",
			gl1.NumChannels(), gl2.NumChannels())
	}
	mean1, stddev1 := mustReference(gl1, "mean"), mustReference(gl1, "stddev")
	mean2, stddev2 := mustReference(gl2, "mean"), mustReference(gl2, "stddev")
	mean, err := NewGaussianProductMean(mean1, stddev1, mean2, stddev2)
	if err != nil {
		return nil, err
	}
	stddev, err := NewGaussianProductStddev(stddev1, stddev2)
	if err != nil {
		return nil, err
	}
	// The product of two Gaussians is an unnormalized Gaussian; the
	// closed-form normalization constant goes into the log-partition term,
	// added to any terms the operands already carry.
	logPartition, err := gaussianProductLogPartition(gl1, gl2, mean1, stddev1, mean2, stddev2)
	if err != nil {
		return nil, err
	}
	out, err := NewGaussianLayer(gl1.Scope().Union(gl2.Scope()),
		gl1.NumOutputUnits()*gl2.NumOutputUnits(), gl1.NumChannels(),
		&GaussianParams{Mean: mean, Stddev: stddev, LogPartition: logPartition})
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

func gaussianProductLogPartition(gl1, gl2 *GaussianLayer, mean1, stddev1, mean2, stddev2 Parameter) (Parameter, error) {
	logPartition, err := NewGaussianProductLogPartition(mean1, stddev1, mean2, stddev2)
	if err != nil {
		return nil, err
	}
	terms := []Parameter{logPartition}
	if gl1.LogPartition() != nil {
		lifted, err := NewOuterSum(mustReference(gl1, "log_partition"),
			zerosLike(gl1.LogPartition(), gl2.NumOutputUnits(), gl2.NumChannels()), 0)
		if err != nil {
			return nil, err
		}
		terms = append(terms, lifted)
	}
	if gl2.LogPartition() != nil {
		lifted, err := NewOuterSum(zerosLike(gl2.LogPartition(), gl1.NumOutputUnits(), gl1.NumChannels()),
			mustReference(gl2, "log_partition"), 0)
		if err != nil {
			return nil, err
		}
		terms = append(terms, lifted)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return NewSum(terms...)
}

func multiplyPolynomial(lhs, rhs Layer) (*LayerBlock, error) {
	pl1, err := layerAs[*PolynomialLayer](lhs)
	if err != nil {
		return nil, err
	}
	pl2, err := layerAs[*PolynomialLayer](rhs)
	if err != nil {
		return nil, err
	}
	if pl1.NumChannels() != pl2.NumChannels() {
		return nil, configErrorf("Polynomial", "multiplied layers must have the same number of channels: %d vs %d",
			pl1.NumChannels(), pl2.NumChannels())
	}
	coeff, err := NewPolynomialProduct(mustReference(pl1, "coeff"), mustReference(pl2, "coeff"))
	if err != nil {
		return nil, err
	}
	out, err := NewPolynomialLayer(pl1.Scope().Union(pl2.Scope()),
		pl1.NumOutputUnits()*pl2.NumOutputUnits(), pl1.NumChannels(),
		pl1.Degree()+pl2.Degree(), coeff)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

func multiplyLogPartition(lhs, rhs Layer) (*LayerBlock, error) {
	ll1, err := layerAs[*LogPartitionLayer](lhs)
	if err != nil {
		return nil, err
	}
	ll2, err := layerAs[*LogPartitionLayer](rhs)
	if err != nil {
		return nil, err
	}
	value, err := NewOuterSum(mustReference(ll1, "value"), mustReference(ll2, "value"), 0)
	if err != nil {
		return nil, err
	}
	out, err := NewLogPartitionLayer(ll1.Scope().Union(ll2.Scope()),
		ll1.NumOutputUnits()*ll2.NumOutputUnits(), ll1.NumChannels(), value)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

func multiplyHadamard(lhs, rhs Layer) (*LayerBlock, error) {
	hl1, err := layerAs[*HadamardLayer](lhs)
	if err != nil {
		return nil, err
	}
	hl2, err := layerAs[*HadamardLayer](rhs)
	if err != nil {
		return nil, err
	}
	out, err := NewHadamardLayer(hl1.Scope().Union(hl2.Scope()),
		hl1.NumInputUnits()*hl2.NumInputUnits(), max(hl1.Arity(), hl2.Arity()))
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

// multiplyKronecker combines two Kronecker layers: a bigger Kronecker layer
// over the crossed input units, followed by an index layer re-ordering its
// units so that output unit u*out2+v holds the product of unit u of lhs and
// unit v of rhs.
func multiplyKronecker(lhs, rhs Layer) (*LayerBlock, error) {
	kl1, err := layerAs[*KroneckerLayer](lhs)
	if err != nil {
		return nil, err
	}
	kl2, err := layerAs[*KroneckerLayer](rhs)
	if err != nil {
		return nil, err
	}
	if kl1.Arity() != kl2.Arity() {
		return nil, configErrorf("Kronecker", "multiplied layers must have the same arity: %d vs %d",
			kl1.Arity(), kl2.Arity())
	}
	scope := kl1.Scope().Union(kl2.Scope())
	out, err := NewKroneckerLayer(scope, kl1.NumInputUnits()*kl2.NumInputUnits(), kl1.Arity())
	if err != nil {
		return nil, err
	}
	indices := kroneckerProductIndices(kl1.NumInputUnits(), kl2.NumInputUnits(), kl1.Arity())
	permutation, err := NewIndexLayer(scope, out.NumOutputUnits(), out.NumOutputUnits(), indices)
	if err != nil {
		return nil, err
	}
	return BlockFromChain(out, permutation)
}

// kroneckerProductIndices computes the permutation mapping the unit layout of
// a Kronecker layer over crossed inputs back to the crossed layout of the two
// operand Kronecker layers. Each input of the combined layer carries in1*in2
// units, unit i*in2+j being the product of operand units i and j; the
// combined layer therefore emits mixed-radix digits (i_k*in2 + j_k), while
// the wanted unit u*out2+v has digits i_k of u and j_k of v.
func kroneckerProductIndices(in1, in2, arity int) []int {
	out1, out2 := 1, 1
	for range arity {
		out1 *= in1
		out2 *= in2
	}
	indices := make([]int, out1*out2)
	for p := range indices {
		u, v := p/out2, p%out2
		lhsDigits := mixedRadixDigits(u, in1, arity)
		rhsDigits := mixedRadixDigits(v, in2, arity)
		flat := 0
		for k := range arity {
			flat = flat*(in1*in2) + lhsDigits[k]*in2 + rhsDigits[k]
		}
		indices[p] = flat
	}
	return indices
}

// mixedRadixDigits decomposes n into arity base-`base` digits, most
// significant first.
func mixedRadixDigits(n, base, arity int) []int {
	digits := make([]int, arity)
	for k := arity - 1; k >= 0; k-- {
		digits[k] = n % base
		n /= base
	}
	return digits
}

func multiplyDense(lhs, rhs Layer) (*LayerBlock, error) {
	dl1, err := layerAs[*DenseLayer](lhs)
	if err != nil {
		return nil, err
	}
	dl2, err := layerAs[*DenseLayer](rhs)
	if err != nil {
		return nil, err
	}
	weight, err := NewKronecker(mustReference(dl1, "weight"), mustReference(dl2, "weight"))
	if err != nil {
		return nil, err
	}
	out, err := NewDenseLayer(dl1.Scope().Union(dl2.Scope()),
		dl1.NumInputUnits()*dl2.NumInputUnits(),
		dl1.NumOutputUnits()*dl2.NumOutputUnits(), weight)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

func multiplyMixing(lhs, rhs Layer) (*LayerBlock, error) {
	ml1, err := layerAs[*MixingLayer](lhs)
	if err != nil {
		return nil, err
	}
	ml2, err := layerAs[*MixingLayer](rhs)
	if err != nil {
		return nil, err
	}
	weight, err := NewKronecker(mustReference(ml1, "weight"), mustReference(ml2, "weight"))
	if err != nil {
		return nil, err
	}
	out, err := NewMixingLayer(ml1.Scope().Union(ml2.Scope()),
		ml1.NumOutputUnits()*ml2.NumOutputUnits(), ml1.Arity()*ml2.Arity(), weight)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

// differentiatePolynomial produces the derivative of a polynomial layer with
// respect to its variable, expressed through a coefficient transform of a
// reference to the original coefficients.
func differentiatePolynomial(l Layer) (*LayerBlock, error) {
	pl, err := layerAs[*PolynomialLayer](l)
	if err != nil {
		return nil, err
	}
	coeff, err := NewPolynomialDifferential(mustReference(pl, "coeff"))
	if err != nil {
		return nil, err
	}
	out, err := NewPolynomialLayer(pl.Scope(), pl.NumOutputUnits(), pl.NumChannels(),
		max(pl.Degree()-1, 0), coeff)
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

// conjugateInput conjugates any input layer by wrapping each of its
// parameters in a conjugation node; topology and hyperparameters are
// unchanged.
func conjugateInput(l Layer) (*LayerBlock, error) {
	switch il := l.(type) {
	case *CategoricalLayer:
		params := &CategoricalParams{}
		if il.Probs() != nil {
			params.Probs = NewConjugate(mustReference(il, "probs"))
		} else {
			params.Logits = NewConjugate(mustReference(il, "logits"))
		}
		out, err := NewCategoricalLayer(il.Scope(), il.NumOutputUnits(), il.NumChannels(),
			il.NumCategories(), params)
		if err != nil {
			return nil, err
		}
		return BlockFromLayer(out), nil
	case *GaussianLayer:
		params := &GaussianParams{
			Mean:   NewConjugate(mustReference(il, "mean")),
			Stddev: NewConjugate(mustReference(il, "stddev")),
		}
		if il.LogPartition() != nil {
			params.LogPartition = NewConjugate(mustReference(il, "log_partition"))
		}
		out, err := NewGaussianLayer(il.Scope(), il.NumOutputUnits(), il.NumChannels(), params)
		if err != nil {
			return nil, err
		}
		return BlockFromLayer(out), nil
	case *PolynomialLayer:
		out, err := NewPolynomialLayer(il.Scope(), il.NumOutputUnits(), il.NumChannels(),
			il.Degree(), NewConjugate(mustReference(il, "coeff")))
		if err != nil {
			return nil, err
		}
		return BlockFromLayer(out), nil
	case *LogPartitionLayer:
		out, err := NewLogPartitionLayer(il.Scope(), il.NumOutputUnits(), il.NumChannels(),
			NewConjugate(mustReference(il, "value")))
		if err != nil {
			return nil, err
		}
		return BlockFromLayer(out), nil
	}
	return nil, noRuleErrorf(OperatorConjugation.String(), l.Kind().String())
}

func conjugateDense(l Layer) (*LayerBlock, error) {
	dl, err := layerAs[*DenseLayer](l)
	if err != nil {
		return nil, err
	}
	out, err := NewDenseLayer(dl.Scope(), dl.NumInputUnits(), dl.NumOutputUnits(),
		NewConjugate(mustReference(dl, "weight")))
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

func conjugateMixing(l Layer) (*LayerBlock, error) {
	ml, err := layerAs[*MixingLayer](l)
	if err != nil {
		return nil, err
	}
	out, err := NewMixingLayer(ml.Scope(), ml.NumOutputUnits(), ml.Arity(),
		NewConjugate(mustReference(ml, "weight")))
	if err != nil {
		return nil, err
	}
	return BlockFromLayer(out), nil
}

package symbolic

import (
	"github.com/daeargryn/cirkit/types"
)

// IsSmooth reports whether every sum layer's inputs have exactly the sum
// layer's scope. The result is cached, since the circuit is immutable.
func (c *Circuit) IsSmooth() bool {
	if c.smooth != nil {
		return *c.smooth
	}
	smooth := true
check:
	for _, sum := range c.SumLayers() {
		for _, in := range c.inLayers[sum] {
			if !in.Scope().Equal(sum.Scope()) {
				smooth = false
				break check
			}
		}
	}
	c.smooth = &smooth
	return smooth
}

// IsDecomposable reports whether every product layer's inputs have pairwise
// disjoint scopes. The result is cached.
func (c *Circuit) IsDecomposable() bool {
	if c.decomposable != nil {
		return *c.decomposable
	}
	decomposable := true
check:
	for _, prod := range c.ProductLayers() {
		inputs := c.inLayers[prod]
		for i, lhs := range inputs {
			for _, rhs := range inputs[i+1:] {
				if lhs.Scope().Overlaps(rhs.Scope()) {
					decomposable = false
					break check
				}
			}
		}
	}
	c.decomposable = &decomposable
	return decomposable
}

// IsStructuredDecomposable reports whether the circuit is compatible with
// itself, i.e. every product layer over a given scope partitions it the same
// way regardless of the path that reaches it. The result is cached.
func (c *Circuit) IsStructuredDecomposable() bool {
	if c.structuredDecomposable != nil {
		return *c.structuredDecomposable
	}
	structured := c.IsCompatible(c)
	c.structuredDecomposable = &structured
	return structured
}

// IsOmniCompatible reports whether the circuit is compatible with every
// smooth and decomposable circuit over the same scope. This holds exactly
// when every product layer partitions its scope into single variables, the
// finest partition possible; it is computed structurally, not by
// enumeration. The result is cached.
func (c *Circuit) IsOmniCompatible() bool {
	if c.omniCompatible != nil {
		return *c.omniCompatible
	}
	omni := c.IsSmooth() && c.IsDecomposable()
check:
	for _, prod := range c.ProductLayers() {
		if !omni {
			break
		}
		for _, in := range c.inLayers[prod] {
			if in.Scope().Len() > 1 {
				omni = false
				break check
			}
		}
	}
	c.omniCompatible = &omni
	return omni
}

// IsCompatible reports whether c and other are compatible over the
// intersection of their scopes: both smooth and decomposable, and every pair
// of product layers reached at the same decomposition level partitions the
// shared scope identically. Compatibility gates Multiply, since only
// compatible circuits have a decomposable product. The result is cached per
// operand circuit.
func (c *Circuit) IsCompatible(other *Circuit) bool {
	if compatible, ok := c.compatibleWith[other]; ok {
		return compatible
	}
	compatible := c.isCompatibleOver(other, c.scope.Intersect(other.scope))
	if c.compatibleWith == nil {
		c.compatibleWith = make(map[*Circuit]bool)
	}
	c.compatibleWith[other] = compatible
	if other != c {
		if other.compatibleWith == nil {
			other.compatibleWith = make(map[*Circuit]bool)
		}
		other.compatibleWith[c] = compatible
	}
	return compatible
}

// IsCompatibleOver is IsCompatible restricted to the given scope: product
// layers are compared on their scopes intersected with it. Not cached.
func (c *Circuit) IsCompatibleOver(other *Circuit, scope types.Scope) bool {
	return c.isCompatibleOver(other, scope)
}

func (c *Circuit) isCompatibleOver(other *Circuit, shared types.Scope) bool {
	if !c.IsSmooth() || !c.IsDecomposable() {
		return false
	}
	if !other.IsSmooth() || !other.IsDecomposable() {
		return false
	}
	if shared.Len() < 2 {
		return true
	}
	checker := &compatChecker{lhs: c, rhs: other, shared: shared,
		memo: make(map[[2]Layer]bool)}
	var lhsRoots, rhsRoots []Layer
	for _, l := range c.OutputLayers() {
		lhsRoots = checker.firstProducts(c, l, lhsRoots, make(types.Set[Layer]))
	}
	for _, l := range other.OutputLayers() {
		rhsRoots = checker.firstProducts(other, l, rhsRoots, make(types.Set[Layer]))
	}
	return checker.compatiblePairs(lhsRoots, rhsRoots)
}

// compatChecker performs the synchronized descent over two circuits,
// matching product layers level by level and memoizing visited pairs so
// shared sub-DAGs are checked once.
type compatChecker struct {
	lhs, rhs *Circuit
	shared   types.Scope
	memo     map[[2]Layer]bool
}

// firstProducts appends to acc the first product layers reachable from l by
// descending through sum and unary layers, keeping only products whose scope
// restricted to the shared scope spans more than one variable. Products with
// at most one shared variable constrain nothing, and neither does anything
// below them.
func (ck *compatChecker) firstProducts(c *Circuit, l Layer, acc []Layer, seen types.Set[Layer]) []Layer {
	if seen.Has(l) {
		return acc
	}
	seen.Insert(l)
	if l.Kind().IsProduct() {
		if l.Scope().Intersect(ck.shared).Len() > 1 {
			acc = append(acc, l)
		}
		return acc
	}
	for _, in := range c.LayerInputs(l) {
		acc = ck.firstProducts(c, in, acc, seen)
	}
	return acc
}

// compatiblePairs checks every pair of same-level product layers whose
// restricted scopes overlap.
func (ck *compatChecker) compatiblePairs(lhsProds, rhsProds []Layer) bool {
	for _, p := range lhsProds {
		for _, q := range rhsProds {
			if !ck.compatibleProducts(p, q) {
				return false
			}
		}
	}
	return true
}

// compatibleProducts checks a product layer of each circuit at the same
// decomposition level: overlapping restricted scopes must be equal and
// partitioned identically, and the descent recurses within each matched
// part.
func (ck *compatChecker) compatibleProducts(p, q Layer) bool {
	key := [2]Layer{p, q}
	if compatible, ok := ck.memo[key]; ok {
		return compatible
	}
	ck.memo[key] = true
	compatible := ck.checkProducts(p, q)
	ck.memo[key] = compatible
	return compatible
}

func (ck *compatChecker) checkProducts(p, q Layer) bool {
	sp := p.Scope().Intersect(ck.shared)
	sq := q.Scope().Intersect(ck.shared)
	if !sp.Overlaps(sq) {
		return true
	}
	if !sp.Equal(sq) {
		return false
	}
	lhsParts := ck.partition(ck.lhs, p, sp)
	rhsParts := ck.partition(ck.rhs, q, sq)
	if len(lhsParts) != len(rhsParts) {
		return false
	}
	for partKey, lhsInputs := range lhsParts {
		rhsInputs, ok := rhsParts[partKey]
		if !ok {
			return false
		}
		for _, lhsIn := range lhsInputs {
			for _, rhsIn := range rhsInputs {
				lhsSub := ck.firstProducts(ck.lhs, lhsIn, nil, make(types.Set[Layer]))
				rhsSub := ck.firstProducts(ck.rhs, rhsIn, nil, make(types.Set[Layer]))
				if !ck.compatiblePairs(lhsSub, rhsSub) {
					return false
				}
			}
		}
	}
	return true
}

// partition groups a product layer's inputs by their scope restricted to the
// shared scope, dropping inputs with no shared variable. Decomposability
// makes the non-empty restricted scopes a partition of the product's
// restricted scope.
func (ck *compatChecker) partition(c *Circuit, prod Layer, restricted types.Scope) map[string][]Layer {
	parts := make(map[string][]Layer)
	for _, in := range c.LayerInputs(prod) {
		inScope := in.Scope().Intersect(restricted)
		if inScope.IsEmpty() {
			continue
		}
		parts[inScope.Key()] = append(parts[inScope.Key()], in)
	}
	return parts
}

package solver

import "sort"

type pbTerm struct {
	lit    Lit
	weight int64
}

// A pbConstraint demands that the weights of its true literals sum up to at
// least the bound. slack is the sum of the weights of the non-false literals
// minus the bound: negative slack is a conflict, and any unassigned literal
// whose weight exceeds the slack must be true.
type pbConstraint struct {
	terms []pbTerm
	bound int64
	slack int64
}

type pbOccurrence struct {
	c      *pbConstraint
	weight int64
}

// A LinearPropagator handles weighted at-least constraints over literals. It
// plugs into the trail like any other propagator.
type LinearPropagator struct {
	trail *Trail
	id    int32

	constraints []*pbConstraint
	// occurs[l] lists the constraints holding the term not(l), to be updated
	// when l becomes true.
	occurs    [][]pbOccurrence
	reasons   [][]Lit // Per var, the false literals that forced it.
	propIndex int
}

// NewLinearPropagator returns a propagator registered on t.
func NewLinearPropagator(t *Trail) *LinearPropagator {
	p := &LinearPropagator{trail: t}
	p.Resize(t.NbVars())
	p.id = t.RegisterPropagator(p)
	return p
}

// Resize grows the propagator's per-literal and per-variable tables.
func (p *LinearPropagator) Resize(nbVars int) {
	for len(p.reasons) < nbVars {
		p.reasons = append(p.reasons, nil)
		p.occurs = append(p.occurs, nil, nil)
	}
}

// IsEmpty is true iff no constraint is registered.
func (p *LinearPropagator) IsEmpty() bool {
	return len(p.constraints) == 0
}

// AddAtLeast adds the constraint sum(weights[i] * lits[i]) >= bound, where a
// true literal contributes its weight. Must be called at level 0. Returns
// false iff the constraint cannot be satisfied given the current fixed
// literals.
func (p *LinearPropagator) AddAtLeast(weights []int64, lits []Lit, bound int64) bool {
	if p.trail.CurrentLevel() != 0 {
		panic("linear constraint added above level 0")
	}
	terms := make([]pbTerm, 0, len(lits))
	for i, l := range lits {
		w := weights[i]
		if w == 0 {
			continue
		}
		if w < 0 {
			// w*l == w + (-w)*not(l)
			l = l.Negation()
			bound -= w
			w = -w
		}
		terms = append(terms, pbTerm{lit: l, weight: w})
	}
	terms, bound = mergePBTerms(terms, bound)

	// Fixed literals contribute now or never.
	kept := terms[:0]
	for _, term := range terms {
		if p.trail.LitFixedTrue(term.lit) {
			bound -= term.weight
			continue
		}
		if p.trail.LitFixed(term.lit) {
			continue
		}
		kept = append(kept, term)
	}
	terms = kept

	var total int64
	for i := range terms {
		if terms[i].weight > bound {
			terms[i].weight = bound // Higher weights propagate identically.
		}
		total += terms[i].weight
	}
	if bound <= 0 {
		return true
	}
	if total < bound {
		return false
	}
	// Literals the remaining weight cannot do without are fixed, which can
	// cascade once removed from the constraint.
	for again := true; again; {
		again = false
		kept = terms[:0]
		for _, term := range terms {
			if total-term.weight < bound {
				p.trail.Enqueue(term.lit, UnitReason)
				total -= term.weight
				bound -= term.weight
				again = true
				continue
			}
			kept = append(kept, term)
		}
		terms = kept
	}
	if bound <= 0 {
		return true
	}

	c := &pbConstraint{terms: terms, bound: bound, slack: total - bound}
	p.constraints = append(p.constraints, c)
	for _, term := range terms {
		neg := term.lit.Negation()
		p.occurs[neg] = append(p.occurs[neg], pbOccurrence{c: c, weight: term.weight})
	}
	return true
}

// mergePBTerms merges duplicated literals and cancels opposite ones.
func mergePBTerms(terms []pbTerm, bound int64) ([]pbTerm, int64) {
	sort.Slice(terms, func(i, j int) bool { return terms[i].lit < terms[j].lit })
	merged := terms[:0]
	for _, term := range terms {
		if n := len(merged); n > 0 && merged[n-1].lit == term.lit {
			merged[n-1].weight += term.weight
			continue
		}
		merged = append(merged, term)
	}
	out := merged[:0]
	for i := 0; i < len(merged); i++ {
		if i+1 < len(merged) && merged[i+1].lit == merged[i].lit.Negation() {
			// min(w1, w2) is contributed unconditionally.
			a, b := merged[i], merged[i+1]
			min := a.weight
			if b.weight < min {
				min = b.weight
			}
			bound -= min
			a.weight -= min
			b.weight -= min
			if a.weight > 0 {
				out = append(out, a)
			}
			if b.weight > 0 {
				out = append(out, b)
			}
			i++
			continue
		}
		out = append(out, merged[i])
	}
	return out, bound
}

// Propagate updates the slacks for the pending trail suffix and enforces the
// affected constraints.
func (p *LinearPropagator) Propagate(t *Trail) bool {
	for p.propIndex < t.Len() {
		l := t.Entry(p.propIndex)
		p.propIndex++
		for _, occ := range p.occurs[l] {
			occ.c.slack -= occ.weight
		}
		for _, occ := range p.occurs[l] {
			if !p.enforce(occ.c) {
				return false
			}
		}
	}
	return true
}

// enforce propagates or reports a conflict on a single constraint.
func (p *LinearPropagator) enforce(c *pbConstraint) bool {
	if c.slack < 0 {
		p.trail.SetConflict(p.falseLits(c))
		return false
	}
	var reason []Lit
	for _, term := range c.terms {
		if term.weight > c.slack && !p.trail.LitAssigned(term.lit) {
			if reason == nil {
				reason = p.falseLits(c)
			}
			p.reasons[term.lit.Var()] = reason
			p.trail.Enqueue(term.lit, p.id)
		}
	}
	return true
}

// falseLits snapshots the currently false literals of c; they are what makes
// its propagations (or its conflict) necessary.
func (p *LinearPropagator) falseLits(c *pbConstraint) []Lit {
	res := make([]Lit, 0, len(c.terms))
	for _, term := range c.terms {
		if p.trail.LitFalse(term.lit) {
			res = append(res, term.lit)
		}
	}
	return res
}

// Untrail restores the slack of the constraints touched by the removed
// suffix, for the part of it this propagator had processed.
func (p *LinearPropagator) Untrail(t *Trail, trailIndex int) {
	for i := p.propIndex - 1; i >= trailIndex; i-- {
		l := t.Entry(i)
		for _, occ := range p.occurs[l] {
			occ.c.slack += occ.weight
		}
		if t.Info(l.Var()).Propagator == p.id {
			p.reasons[l.Var()] = nil
		}
	}
	if p.propIndex > trailIndex {
		p.propIndex = trailIndex
	}
}

// Reason returns the snapshot taken when the entry at trailIndex was forced.
func (p *LinearPropagator) Reason(t *Trail, trailIndex int) []Lit {
	return p.reasons[t.Entry(trailIndex).Var()]
}

package solver

// ConflictAnalyzer derives a first-UIP learned clause from a conflicting
// literal set, then shortens it with the configured minimization.
type ConflictAnalyzer struct {
	params *Parameters
	trail  *Trail

	met      []bool // Per var: resolved or part of the learned clause.
	metLevel []bool // Per var: met and assigned at the conflict level.
	toClear  []Var

	lits         []Lit
	analyzeStack []Lit

	levelStamp []int64 // Per level; also used for LBD counting.
	stamp      int64
}

// NewConflictAnalyzer returns an analyzer working on t.
func NewConflictAnalyzer(t *Trail, params *Parameters) *ConflictAnalyzer {
	a := &ConflictAnalyzer{params: params, trail: t}
	a.Resize(t.NbVars())
	return a
}

// Resize grows the analyzer's per-variable tables.
func (a *ConflictAnalyzer) Resize(nbVars int) {
	for len(a.met) < nbVars {
		a.met = append(a.met, false)
		a.metLevel = append(a.metLevel, false)
		a.levelStamp = append(a.levelStamp, 0)
	}
	a.levelStamp = append(a.levelStamp, 0) // Level indices go up to nbVars.
	a.levelStamp = a.levelStamp[:nbVars+1]
}

// Analyze resolves the conflict backwards along the trail until a single
// literal of the conflict level remains, minimizes the result and returns it.
// The first returned literal is the asserting one (the negated UIP). bumpVar
// is called once per variable taking part in the resolution; onResolved is
// called for each variable whose reason was expanded. The returned slice is
// reused by the next call.
func (a *ConflictAnalyzer) Analyze(conflict []Lit, bumpVar func(Var), onResolved func(Var)) []Lit {
	t := a.trail
	lvl := t.CurrentLevel()
	lits := a.lits[:0]
	lits = append(lits, -1) // Room for the asserting literal.
	nbLvl := a.addLits(conflict, lvl, &lits, bumpVar)
	ptr := t.Len() - 1
	for nbLvl > 1 { // Stop once a single literal of the conflict level remains.
		for !a.metLevel[t.Entry(ptr).Var()] {
			ptr--
		}
		v := t.Entry(ptr).Var()
		ptr--
		nbLvl--
		if reason := t.Reason(v); reason != nil {
			onResolved(v)
			nbLvl += a.addLits(reason, lvl, &lits, bumpVar)
		}
	}
	// The single unresolved literal of the conflict level is the first UIP.
	for !a.metLevel[t.Entry(ptr).Var()] {
		ptr--
	}
	lits[0] = t.Entry(ptr).Negation()

	switch a.params.Minimization {
	case MinimizationSimple:
		lits = a.minimizeSimple(lits)
	case MinimizationRecursive:
		lits = a.minimizeRecursive(lits)
	}
	a.lits = lits
	a.clearMarks()
	return lits
}

// addLits resolves the literals of one clause into the pending learned
// clause and returns how many unseen conflict-level variables it added.
func (a *ConflictAnalyzer) addLits(clause []Lit, lvl int32, lits *[]Lit, bumpVar func(Var)) int {
	t := a.trail
	nbLvl := 0
	for _, l := range clause {
		if !t.LitFalse(l) {
			// Reasons of cardinality-like propagators may carry satisfied
			// literals; they take no part in the resolution.
			continue
		}
		v := l.Var()
		if a.met[v] {
			continue
		}
		a.met[v] = true
		a.toClear = append(a.toClear, v)
		bumpVar(v)
		switch level := t.Info(v).Level; {
		case level == lvl:
			a.metLevel[v] = true
			nbLvl++
		case level != 0:
			*lits = append(*lits, l)
		}
	}
	return nbLvl
}

// minimizeSimple drops any literal whose reason is fully covered by the
// other literals of the clause and the level-0 facts.
func (a *ConflictAnalyzer) minimizeSimple(lits []Lit) []Lit {
	t := a.trail
	sz := 1
	for i := 1; i < len(lits); i++ {
		reason := t.Reason(lits[i].Var())
		if reason == nil {
			lits[sz] = lits[i]
			sz++
			continue
		}
		for _, l := range reason {
			if !a.met[l.Var()] && t.Info(l.Var()).Level != 0 {
				lits[sz] = lits[i]
				sz++
				break
			}
		}
	}
	return lits[:sz]
}

// minimizeRecursive drops any literal whose reason tree bottoms out on other
// literals of the clause and level-0 facts, however deep.
func (a *ConflictAnalyzer) minimizeRecursive(lits []Lit) []Lit {
	t := a.trail
	a.stamp++
	for _, l := range lits {
		a.levelStamp[t.Info(l.Var()).Level] = a.stamp
	}
	sz := 1
	for i := 1; i < len(lits); i++ {
		if t.Reason(lits[i].Var()) == nil || !a.litRedundant(lits[i]) {
			lits[sz] = lits[i]
			sz++
		}
	}
	return lits[:sz]
}

// litRedundant explores l's reason tree. Marks set on success are kept: they
// cache redundancy for the remaining literals.
func (a *ConflictAnalyzer) litRedundant(l Lit) bool {
	t := a.trail
	top := len(a.toClear)
	a.analyzeStack = append(a.analyzeStack[:0], l)
	for len(a.analyzeStack) > 0 {
		p := a.analyzeStack[len(a.analyzeStack)-1]
		a.analyzeStack = a.analyzeStack[:len(a.analyzeStack)-1]
		for _, q := range t.Reason(p.Var()) {
			if !t.LitFalse(q) {
				continue
			}
			v := q.Var()
			if a.met[v] || t.Info(v).Level == 0 {
				continue
			}
			if t.Reason(v) == nil || a.levelStamp[t.Info(v).Level] != a.stamp {
				// A decision, or a level with no clause literal to resolve
				// against: l cannot be redundant. Undo this attempt's marks.
				for _, u := range a.toClear[top:] {
					a.met[u] = false
				}
				a.toClear = a.toClear[:top]
				return false
			}
			a.met[v] = true
			a.toClear = append(a.toClear, v)
			a.analyzeStack = append(a.analyzeStack, q)
		}
	}
	return true
}

func (a *ConflictAnalyzer) clearMarks() {
	for _, v := range a.toClear {
		a.met[v] = false
		a.metLevel[v] = false
	}
	a.toClear = a.toClear[:0]
}

// ComputeLBD returns the number of distinct decision levels among lits.
func (a *ConflictAnalyzer) ComputeLBD(lits []Lit) int32 {
	a.stamp++
	var lbd int32
	for _, l := range lits {
		level := a.trail.Info(l.Var()).Level
		if a.levelStamp[level] != a.stamp {
			a.levelStamp[level] = a.stamp
			lbd++
		}
	}
	return lbd
}

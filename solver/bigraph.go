package solver

import "sort"

// amoSpan locates one at-most-one group inside the shared literal buffer.
type amoSpan struct {
	start  int32
	length int32
}

// The BinaryImplicationGraph owns all binary clauses and at-most-one groups.
// Neither is stored as a heap clause: a binary clause (a or b) is the pair of
// directed edges not(a) => b and not(b) => a, and an at-most-one group is a
// span into a shared buffer. Propagation through the graph needs no clause
// scan at all; the reason of an implied literal is its single antecedent.
type BinaryImplicationGraph struct {
	params *Parameters
	trail  *Trail
	id     int32

	// implications[l] lists the literals directly implied when l is true.
	implications    [][]Lit
	numImplications int64

	amoBuffer []Lit
	amoSpans  []amoSpan
	amoOf     [][]int32 // Per literal, the spans it belongs to.

	reasons   []Lit // Per var, the false antecedent that implied it.
	propIndex int

	// Equivalence state. representatives is nil until DetectEquivalences has
	// run; isDag reports that the representative graph is known acyclic and
	// is invalidated by any edge addition.
	representatives []Lit
	isDag           bool

	// Scratch state for graph traversals.
	marks       []int64
	inClause    []int64
	stamp       int64
	bfsQueue    []Lit
	conflictBuf []Lit
}

// NewBinaryImplicationGraph returns a graph registered as a propagator on t.
func NewBinaryImplicationGraph(t *Trail, params *Parameters) *BinaryImplicationGraph {
	g := &BinaryImplicationGraph{
		params: params,
		trail:  t,
	}
	g.Resize(t.NbVars())
	g.id = t.RegisterPropagator(g)
	return g
}

// Resize grows the graph's per-literal and per-variable tables.
func (g *BinaryImplicationGraph) Resize(nbVars int) {
	for len(g.reasons) < nbVars {
		g.reasons = append(g.reasons, 0)
		g.implications = append(g.implications, nil, nil)
		g.amoOf = append(g.amoOf, nil, nil)
		g.marks = append(g.marks, 0, 0)
		g.inClause = append(g.inClause, 0, 0)
		if g.representatives != nil {
			l := Lit(len(g.representatives))
			g.representatives = append(g.representatives, l, l+1)
		}
	}
}

// IsEmpty is true iff the graph holds no implication and no at-most-one.
func (g *BinaryImplicationGraph) IsEmpty() bool {
	return g.numImplications == 0 && len(g.amoSpans) == 0
}

// NumImplications returns the number of directed implication edges.
func (g *BinaryImplicationGraph) NumImplications() int64 {
	return g.numImplications
}

// IsDag is true iff the representative graph is known to be acyclic, i.e.
// DetectEquivalences ran and no edge was added since.
func (g *BinaryImplicationGraph) IsDag() bool {
	return g.isDag
}

// RepresentativeOf returns the canonical literal of l's equivalence class.
// Before DetectEquivalences has run, every literal represents itself.
func (g *BinaryImplicationGraph) RepresentativeOf(l Lit) Lit {
	if g.representatives == nil {
		return l
	}
	return g.representatives[l]
}

// AddBinaryClause adds the clause (a or b). During search, if exactly one
// side is false the other is enqueued; false is returned iff both sides are
// false, which is a conflict.
func (g *BinaryImplicationGraph) AddBinaryClause(a, b Lit) bool {
	t := g.trail
	if t.LitFalse(a) && t.LitFalse(b) {
		g.conflictBuf = append(g.conflictBuf[:0], a, b)
		t.SetConflict(g.conflictBuf)
		return false
	}
	if t.CurrentLevel() == 0 {
		// Fixed literals make the clause redundant or unit; no edge needed.
		if t.LitTrue(a) || t.LitTrue(b) {
			return true
		}
		if t.LitFalse(a) {
			return g.enqueueImplied(b, a)
		}
		if t.LitFalse(b) {
			return g.enqueueImplied(a, b)
		}
	}
	g.isDag = false
	g.implications[a.Negation()] = append(g.implications[a.Negation()], b)
	g.implications[b.Negation()] = append(g.implications[b.Negation()], a)
	g.numImplications += 2
	if t.LitFalse(a) && !t.LitAssigned(b) {
		return g.enqueueImplied(b, a)
	}
	if t.LitFalse(b) && !t.LitAssigned(a) {
		return g.enqueueImplied(a, b)
	}
	return true
}

// AddAtMostOne adds an at-most-one over lits, at level 0 only. Groups at or
// below the configured expansion size become pairwise implications; larger
// groups stay compact, with propagation cost proportional to the group size
// per trigger.
func (g *BinaryImplicationGraph) AddAtMostOne(lits []Lit) bool {
	if g.trail.CurrentLevel() != 0 {
		panic("at-most-one added above level 0")
	}
	g.isDag = false
	return g.addAtMostOne(append([]Lit(nil), lits...))
}

// addAtMostOne owns its argument.
func (g *BinaryImplicationGraph) addAtMostOne(ls []Lit) bool {
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
	out := ls[:0]
	bothPolarities := false
	for i := 0; i < len(ls); {
		l := ls[i]
		if j := i + 1; j < len(ls) && ls[j] == l {
			// A duplicated literal must be false.
			for i < len(ls) && ls[i] == l {
				i++
			}
			if !g.enqueueFixedFalse(l) {
				return false
			}
			continue
		}
		if i+1 < len(ls) && ls[i+1] == l.Negation() {
			// l + not(l) == 1 already, so everything else must be false.
			bothPolarities = true
			i += 2
			continue
		}
		out = append(out, l)
		i++
	}
	if bothPolarities {
		for _, l := range out {
			if !g.enqueueFixedFalse(l) {
				return false
			}
		}
		return true
	}
	kept := out[:0]
	for _, l := range out {
		if g.trail.LitFalse(l) {
			continue
		}
		if g.trail.LitTrue(l) {
			for _, m := range out {
				if m != l && !g.enqueueFixedFalse(m) {
					return false
				}
			}
			return true
		}
		kept = append(kept, l)
	}
	if len(kept) <= 1 {
		return true
	}
	if len(kept) <= g.params.MaxAtMostOneExpansionSize {
		for i := 0; i < len(kept); i++ {
			for j := i + 1; j < len(kept); j++ {
				g.implications[kept[i]] = append(g.implications[kept[i]], kept[j].Negation())
				g.implications[kept[j]] = append(g.implications[kept[j]], kept[i].Negation())
				g.numImplications += 2
			}
		}
		return true
	}
	spanID := int32(len(g.amoSpans))
	g.amoSpans = append(g.amoSpans, amoSpan{start: int32(len(g.amoBuffer)), length: int32(len(kept))})
	g.amoBuffer = append(g.amoBuffer, kept...)
	for _, l := range kept {
		g.amoOf[l] = append(g.amoOf[l], spanID)
	}
	return true
}

func (g *BinaryImplicationGraph) spanLits(id int32) []Lit {
	s := g.amoSpans[id]
	return g.amoBuffer[s.start : s.start+s.length]
}

// enqueueImplied enqueues l, whose single false antecedent is given.
func (g *BinaryImplicationGraph) enqueueImplied(l, antecedent Lit) bool {
	if g.trail.LitTrue(l) {
		return true
	}
	if g.trail.LitFalse(l) {
		g.conflictBuf = append(g.conflictBuf[:0], antecedent, l)
		g.trail.SetConflict(g.conflictBuf)
		return false
	}
	g.reasons[l.Var()] = antecedent
	g.trail.Enqueue(l, g.id)
	return true
}

// enqueueFixedFalse fixes l to false at level 0.
func (g *BinaryImplicationGraph) enqueueFixedFalse(l Lit) bool {
	if g.trail.LitFalse(l) {
		return true
	}
	if g.trail.LitTrue(l) {
		g.conflictBuf = append(g.conflictBuf[:0], l.Negation())
		g.trail.SetConflict(g.conflictBuf)
		return false
	}
	g.trail.Enqueue(l.Negation(), UnitReason)
	return true
}

// Propagate enqueues every literal directly implied by the pending trail
// suffix, and falsifies the other members of every at-most-one group whose
// member just became true.
func (g *BinaryImplicationGraph) Propagate(t *Trail) bool {
	for g.propIndex < t.Len() {
		l := t.Entry(g.propIndex)
		g.propIndex++
		for _, implied := range g.implications[l] {
			if !g.enqueueImplied(implied, l.Negation()) {
				return false
			}
		}
		for _, spanID := range g.amoOf[l] {
			for _, m := range g.spanLits(spanID) {
				if m != l && !g.enqueueImplied(m.Negation(), l.Negation()) {
					return false
				}
			}
		}
	}
	return true
}

// Untrail rewinds the propagation pointer.
func (g *BinaryImplicationGraph) Untrail(t *Trail, trailIndex int) {
	if g.propIndex > trailIndex {
		g.propIndex = trailIndex
	}
}

// Reason returns the single false antecedent of the entry at trailIndex.
func (g *BinaryImplicationGraph) Reason(t *Trail, trailIndex int) []Lit {
	v := t.Entry(trailIndex).Var()
	return g.reasons[v : v+1 : v+1]
}

// neighbors returns the literals reachable from l in one step, including the
// edges implied by the at-most-one groups containing l.
func (g *BinaryImplicationGraph) neighbors(l Lit) []Lit {
	res := g.implications[l]
	if len(g.amoOf[l]) == 0 {
		return res
	}
	res = append([]Lit(nil), res...)
	for _, spanID := range g.amoOf[l] {
		for _, m := range g.spanLits(spanID) {
			if m != l {
				res = append(res, m.Negation())
			}
		}
	}
	return res
}

type tarjanFrame struct {
	node      Lit
	neighbors []Lit
	next      int
}

// DetectEquivalences collapses every nontrivial strongly connected component
// of the implication digraph to a single representative literal, with
// representative(not(x)) == not(representative(x)). Non-representative
// literals keep a two-way link to their representative so propagation stays
// complete. A representative that implies its own negation is fixed. Returns
// false iff this proves the model unsatisfiable. Must run at level 0.
func (g *BinaryImplicationGraph) DetectEquivalences() bool {
	if g.trail.CurrentLevel() != 0 {
		panic("DetectEquivalences above level 0")
	}
	n := len(g.implications)
	index := make([]int32, n)
	low := make([]int32, n)
	onStack := make([]bool, n)
	repAssigned := make([]bool, n)
	rep := make([]Lit, n)
	memberStamp := make([]int32, n)
	for i := range rep {
		rep[i] = Lit(i)
		memberStamp[i] = -1
	}
	var order int32
	var sccStack []Lit
	var frames []tarjanFrame
	var compID int32

	push := func(l Lit) {
		order++
		index[l] = order
		low[l] = order
		onStack[l] = true
		sccStack = append(sccStack, l)
		frames = append(frames, tarjanFrame{node: l, neighbors: g.neighbors(l)})
	}

	for root := 0; root < n; root++ {
		if index[root] != 0 {
			continue
		}
		push(Lit(root))
		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			if f.next < len(f.neighbors) {
				w := f.neighbors[f.next]
				f.next++
				if index[w] == 0 {
					push(w)
				} else if onStack[w] && index[w] < low[f.node] {
					low[f.node] = index[w]
				}
				continue
			}
			v := f.node
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				if p := &frames[len(frames)-1]; low[v] < low[p.node] {
					low[p.node] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}
			// v is the root of a component; pop its members.
			var members []Lit
			for {
				w := sccStack[len(sccStack)-1]
				sccStack = sccStack[:len(sccStack)-1]
				onStack[w] = false
				members = append(members, w)
				if w == v {
					break
				}
			}
			compID++
			repLit := members[0]
			for _, m := range members {
				if memberStamp[m.Negation()] == compID {
					return false // x and not(x) are equivalent: unsatisfiable.
				}
				memberStamp[m] = compID
				if m < repLit {
					repLit = m
				}
			}
			if repAssigned[members[0].Negation()] {
				// Mirror component processed first; keep the involution.
				repLit = rep[members[0].Negation()].Negation()
			}
			for _, m := range members {
				rep[m] = repLit
				repAssigned[m] = true
			}
		}
	}

	// Fold every edge onto representatives. Non-representative literals keep
	// only the two-way link with their representative.
	newImpl := make([][]Lit, n)
	for l := 0; l < n; l++ {
		r := rep[l]
		for _, target := range g.implications[l] {
			rt := rep[target]
			if rt != r {
				newImpl[r] = append(newImpl[r], rt)
			}
		}
	}
	for l := 0; l < n; l++ {
		if r := rep[l]; r != Lit(l) {
			newImpl[l] = []Lit{r}
			newImpl[r] = append(newImpl[r], Lit(l))
		}
	}
	for l := 0; l < n; l++ {
		if rep[l] != Lit(l) || len(newImpl[l]) == 0 {
			continue
		}
		list := newImpl[l]
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		kept := list[:0]
		var prev Lit = -1
		for _, target := range list {
			if target != prev && target != Lit(l) {
				kept = append(kept, target)
				prev = target
			}
		}
		newImpl[l] = kept
	}
	g.implications = newImpl
	g.representatives = rep

	// Rebuild the at-most-one groups over representatives.
	groups := make([][]Lit, 0, len(g.amoSpans))
	for id := range g.amoSpans {
		lits := g.spanLits(int32(id))
		mapped := make([]Lit, len(lits))
		for i, l := range lits {
			mapped[i] = rep[l]
		}
		groups = append(groups, mapped)
	}
	g.amoBuffer = g.amoBuffer[:0]
	g.amoSpans = g.amoSpans[:0]
	for i := range g.amoOf {
		g.amoOf[i] = nil
	}
	for _, group := range groups {
		if !g.addAtMostOne(group) {
			return false
		}
	}

	// A representative implying its own negation must be false.
	for l := 0; l < n; l++ {
		if rep[l] != Lit(l) {
			continue
		}
		neg := Lit(l).Negation()
		for _, target := range g.implications[l] {
			if target == neg {
				if !g.enqueueFixedFalse(Lit(l)) {
					return false
				}
				break
			}
		}
	}
	g.numImplications = g.recountImplications()
	// The folded lists may imply more than the originals did entry by entry,
	// so replay the whole level-0 trail.
	g.propIndex = 0
	if !g.Propagate(g.trail) {
		return false
	}
	g.isDag = true
	return true
}

func (g *BinaryImplicationGraph) recountImplications() int64 {
	var count int64
	for l := range g.implications {
		count += int64(len(g.implications[l]))
	}
	return count
}

// ComputeTransitiveReduction removes every implication already subsumed by a
// longer path, without changing reachability. It first requires (and runs)
// DetectEquivalences. The traversal is bounded by the graph exploration
// budget: on exhaustion it aborts, leaving extra but still-correct edges.
// Returns false iff unsatisfiability was proven along the way.
func (g *BinaryImplicationGraph) ComputeTransitiveReduction() bool {
	if !g.isDag {
		if !g.DetectEquivalences() {
			return false
		}
	}
	budget := g.params.GraphExplorationBudget
	n := len(g.implications)
	for u := 0; u < n; u++ {
		if g.RepresentativeOf(Lit(u)) != Lit(u) {
			continue
		}
		children := g.implications[u]
		reps := 0
		for _, c := range children {
			if g.RepresentativeOf(c) == c {
				reps++
			}
		}
		if reps < 2 {
			continue
		}
		g.stamp++
		exhausted := false
		for _, c := range children {
			if g.RepresentativeOf(c) != c {
				continue // Member links are never redundant.
			}
			if !g.markStrictDescendants(c, &budget) {
				exhausted = true
				break
			}
		}
		if exhausted {
			return true
		}
		kept := children[:0]
		for _, c := range children {
			if g.RepresentativeOf(c) == c && g.marks[c] == g.stamp {
				g.numImplications--
			} else {
				kept = append(kept, c)
			}
		}
		g.implications[u] = kept
	}
	return true
}

// markStrictDescendants marks every representative reachable from start in
// one or more steps. Returns false when the budget runs out.
func (g *BinaryImplicationGraph) markStrictDescendants(start Lit, budget *int64) bool {
	g.bfsQueue = g.bfsQueue[:0]
	for _, y := range g.implications[start] {
		if g.RepresentativeOf(y) == y {
			g.bfsQueue = append(g.bfsQueue, y)
		}
	}
	for len(g.bfsQueue) > 0 {
		x := g.bfsQueue[len(g.bfsQueue)-1]
		g.bfsQueue = g.bfsQueue[:len(g.bfsQueue)-1]
		if g.marks[x] == g.stamp {
			continue
		}
		g.marks[x] = g.stamp
		*budget -= int64(len(g.implications[x])) + 1
		if *budget < 0 {
			return false
		}
		for _, y := range g.implications[x] {
			if g.RepresentativeOf(y) == y && g.marks[y] != g.stamp {
				g.bfsQueue = append(g.bfsQueue, y)
			}
		}
	}
	return true
}

// TransformIntoMaxCliques grows each given at-most-one into a maximal clique
// of the incompatibility graph implied by the binary implications, under the
// exploration budget. Inputs subsumed by an earlier expanded clique are
// cleared in place (set to nil), preserving relative order.
func (g *BinaryImplicationGraph) TransformIntoMaxCliques(amos [][]Lit) {
	budget := g.params.GraphExplorationBudget
	var expanded [][]Lit
	for i, amo := range amos {
		if len(amo) == 0 {
			continue
		}
		clique := make([]Lit, 0, len(amo))
		for _, l := range amo {
			clique = append(clique, g.RepresentativeOf(l))
		}
		sort.Slice(clique, func(a, b int) bool { return clique[a] < clique[b] })
		clique = dedupeLits(clique)
		if subsumedByAny(clique, expanded) {
			amos[i] = nil
			continue
		}
		clique = g.growClique(clique, &budget)
		amos[i] = clique
		expanded = append(expanded, clique)
	}
}

// MergeAtMostOnes expands the given at-most-ones into maximal cliques and
// returns the non-redundant ones, preserving relative order.
func (g *BinaryImplicationGraph) MergeAtMostOnes(amos [][]Lit) [][]Lit {
	g.TransformIntoMaxCliques(amos)
	res := amos[:0]
	for _, amo := range amos {
		if amo != nil {
			res = append(res, amo)
		}
	}
	return res
}

// growClique extends clique greedily with literals incompatible with every
// current member. Two literals x, y are incompatible when x => not(y).
func (g *BinaryImplicationGraph) growClique(clique []Lit, budget *int64) []Lit {
	candidates := g.incompatible(clique[0], budget)
	for i := 1; i < len(clique) && len(candidates) > 0; i++ {
		candidates = g.filterIncompatible(candidates, clique[i], budget)
	}
	for len(candidates) > 0 && *budget > 0 {
		z := candidates[0]
		clique = append(clique, z)
		candidates = g.filterIncompatible(candidates[1:], z, budget)
	}
	return clique
}

// incompatible returns the literals z such that l => not(z).
func (g *BinaryImplicationGraph) incompatible(l Lit, budget *int64) []Lit {
	res := make([]Lit, 0, len(g.implications[l]))
	for _, target := range g.implications[l] {
		if target != l.Negation() {
			res = append(res, target.Negation())
		}
	}
	*budget -= int64(len(res))
	return res
}

func (g *BinaryImplicationGraph) filterIncompatible(candidates []Lit, member Lit, budget *int64) []Lit {
	g.stamp++
	for _, target := range g.implications[member] {
		g.marks[target] = g.stamp
	}
	*budget -= int64(len(g.implications[member]) + len(candidates))
	if *budget < 0 {
		return nil
	}
	kept := candidates[:0]
	for _, z := range candidates {
		if z != member && g.marks[z.Negation()] == g.stamp {
			kept = append(kept, z)
		}
	}
	return kept
}

func dedupeLits(sorted []Lit) []Lit {
	kept := sorted[:0]
	var prev Lit = -1
	for _, l := range sorted {
		if l != prev {
			kept = append(kept, l)
			prev = l
		}
	}
	return kept
}

func subsumedByAny(lits []Lit, cliques [][]Lit) bool {
	for _, clique := range cliques {
		if containsAll(clique, lits) {
			return true
		}
	}
	return false
}

func containsAll(haystack, needles []Lit) bool {
	for _, l := range needles {
		found := false
		for _, h := range haystack {
			if h == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MinimizeConflictFirst removes from conflict every literal implied by the
// first one (the negated UIP): if not(c0) => not(ci) then ci => c0, and
// resolving on ci keeps the clause implied. conflict[0] is always kept.
func (g *BinaryImplicationGraph) MinimizeConflictFirst(conflict []Lit) []Lit {
	if len(conflict) <= 1 {
		return conflict
	}
	budget := g.params.GraphExplorationBudget
	g.stamp++
	g.markReachable(conflict[0].Negation(), &budget)
	kept := conflict[:1]
	for _, l := range conflict[1:] {
		if g.marks[l.Negation()] != g.stamp {
			kept = append(kept, l)
		}
	}
	return kept
}

// MinimizeConflictFirstAndDecisions additionally seeds the reachability from
// the negation of every decision literal kept in the clause; removals stay
// justified by a kept literal, so decisions themselves are never dropped.
func (g *BinaryImplicationGraph) MinimizeConflictFirstAndDecisions(conflict []Lit) []Lit {
	if len(conflict) <= 1 {
		return conflict
	}
	budget := g.params.GraphExplorationBudget
	g.stamp++
	g.markReachable(conflict[0].Negation(), &budget)
	for _, l := range conflict[1:] {
		if g.trail.Info(l.Var()).IsDecision() {
			g.markReachable(l.Negation(), &budget)
		}
	}
	kept := conflict[:1]
	for _, l := range conflict[1:] {
		if g.trail.Info(l.Var()).IsDecision() || g.marks[l.Negation()] != g.stamp {
			kept = append(kept, l)
		}
	}
	return kept
}

// markReachable marks every literal reachable from source, excluding source
// itself, under the current stamp.
func (g *BinaryImplicationGraph) markReachable(source Lit, budget *int64) {
	g.bfsQueue = append(g.bfsQueue[:0], g.implications[source]...)
	for len(g.bfsQueue) > 0 {
		x := g.bfsQueue[len(g.bfsQueue)-1]
		g.bfsQueue = g.bfsQueue[:len(g.bfsQueue)-1]
		if g.marks[x] == g.stamp {
			continue
		}
		g.marks[x] = g.stamp
		*budget -= int64(len(g.implications[x]) + 1)
		if *budget < 0 {
			return
		}
		for _, y := range g.implications[x] {
			if g.marks[y] != g.stamp {
				g.bfsQueue = append(g.bfsQueue, y)
			}
		}
	}
}

// MinimizeConflictWithReachability removes every literal that reaches
// another kept literal of the conflict through the graph: such a literal is
// implied false whenever the rest of the clause is falsified, so it is
// redundant. conflict[0] is always kept.
func (g *BinaryImplicationGraph) MinimizeConflictWithReachability(conflict []Lit) []Lit {
	if len(conflict) <= 2 {
		return conflict
	}
	budget := g.params.GraphExplorationBudget
	g.stamp++
	inSet := g.stamp
	for _, l := range conflict {
		g.inClause[l] = inSet
	}
	kept := conflict[:1]
	for _, l := range conflict[1:] {
		if budget > 0 && g.reachesClauseLit(l, inSet, &budget) {
			g.inClause[l] = 0
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// reachesClauseLit reports whether some other literal still in the clause is
// reachable from l.
func (g *BinaryImplicationGraph) reachesClauseLit(l Lit, inSet int64, budget *int64) bool {
	g.stamp++
	g.bfsQueue = append(g.bfsQueue[:0], g.implications[l]...)
	for len(g.bfsQueue) > 0 {
		x := g.bfsQueue[len(g.bfsQueue)-1]
		g.bfsQueue = g.bfsQueue[:len(g.bfsQueue)-1]
		if g.marks[x] == g.stamp {
			continue
		}
		g.marks[x] = g.stamp
		if x != l && g.inClause[x] == inSet {
			return true
		}
		*budget -= int64(len(g.implications[x]) + 1)
		if *budget < 0 {
			return false
		}
		g.bfsQueue = append(g.bfsQueue, g.implications[x]...)
	}
	return false
}

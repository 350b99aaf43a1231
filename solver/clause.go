package solver

import "fmt"

// ClauseInfo carries the deletion metadata of a removable clause.
// Permanent clauses have none.
type ClauseInfo struct {
	Activity  float64 // How often the clause took part in recent conflicts.
	LBD       int32   // Literal Blocks Distance; lower is better.
	Protected bool    // Exempted from the next cleanup, then cleared.
}

// A Clause is an ordered sequence of at least 3 literals, owned by the
// ClauseManager. It only ever shrinks; a zero length marks a clause that is
// logically removed and pending physical reclaim.
type Clause struct {
	lits   []Lit
	info   *ClauseInfo // nil for permanent clauses.
	locked bool        // True while the clause is some variable's reason.
}

// NewClause returns a permanent clause over the given literals.
// The slice is owned by the clause afterwards.
func NewClause(lits []Lit) *Clause {
	return &Clause{lits: lits}
}

// NewRemovableClause returns a clause that is a candidate for future
// deletion, carrying deletion metadata.
func NewRemovableClause(lits []Lit, lbd int32) *Clause {
	return &Clause{lits: lits, info: &ClauseInfo{LBD: lbd}}
}

// Removable is true iff the clause may be deleted by a database cleanup.
func (c *Clause) Removable() bool {
	return c.info != nil
}

// Info returns the deletion metadata, or nil for a permanent clause.
func (c *Clause) Info() *ClauseInfo {
	return c.info
}

// Removed is true iff the clause was lazily detached and awaits reclaim.
func (c *Clause) Removed() bool {
	return len(c.lits) == 0
}

// Len returns the number of literals in the clause.
func (c *Clause) Len() int {
	return len(c.lits)
}

// First returns the first literal of the clause.
func (c *Clause) First() Lit {
	return c.lits[0]
}

// Second returns the second literal of the clause.
func (c *Clause) Second() Lit {
	return c.lits[1]
}

// Get returns the ith literal of the clause.
func (c *Clause) Get(i int) Lit {
	return c.lits[i]
}

// Literals returns the clause's literals. Callers must not grow the slice.
func (c *Clause) Literals() []Lit {
	return c.lits
}

// swap swaps the ith and jth literals.
func (c *Clause) swap(i, j int) {
	c.lits[i], c.lits[j] = c.lits[j], c.lits[i]
}

// shrink drops all literals at positions >= newLen.
func (c *Clause) shrink(newLen int) {
	c.lits = c.lits[:newLen]
}

func (c *Clause) lock()          { c.locked = true }
func (c *Clause) unlock()        { c.locked = false }
func (c *Clause) isLocked() bool { return c.locked }

// updateLBD lowers the stored LBD if the new value improves on it and
// reports whether it did.
func (c *Clause) updateLBD(lbd int32) bool {
	if c.info != nil && lbd < c.info.LBD {
		c.info.LBD = lbd
		return true
	}
	return false
}

// CNF returns a DIMACS representation of the clause.
func (c *Clause) CNF() string {
	res := ""
	for _, lit := range c.lits {
		res += fmt.Sprintf("%d ", lit.Int())
	}
	return res + "0"
}

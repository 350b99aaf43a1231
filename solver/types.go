package solver

// Basic types and encodings shared by all components.

// Var is a 0-based, dense variable identifier.
// The CNF variable 1 is encoded as the Var 0.
type Var int32

// Lit is a variable together with a polarity. Lits start at 0 and are
// positive; the sign is the last bit. Thus the CNF literal -3 is encoded as
// 2*(3-1) + 1 = 5. A literal and its negation always have adjacent indices.
type Lit int32

// IntToLit converts a CNF literal to a Lit.
func IntToLit(i int) Lit {
	if i < 0 {
		return Lit(2*(-i-1) + 1)
	}
	return Lit(2 * (i - 1))
}

// IntToVar converts a CNF variable to a Var.
func IntToVar(i int32) Var {
	return Var(i - 1)
}

// Lit returns the positive Lit associated to v.
func (v Var) Lit() Lit {
	return Lit(v * 2)
}

// SignedLit returns the Lit associated to v, negated if 'signed', positive else.
func (v Var) SignedLit(signed bool) Lit {
	if signed {
		return Lit(v*2) + 1
	}
	return Lit(v * 2)
}

// Var returns the variable of l.
func (l Lit) Var() Var {
	return Var(l / 2)
}

// Index maps l into [0, 2*nbVars). It is a bijection under which a literal
// and its negation are adjacent.
func (l Lit) Index() int {
	return int(l)
}

// Int returns the equivalent CNF literal.
func (l Lit) Int() int32 {
	sign := l&1 == 1
	res := int32(l/2 + 1)
	if sign {
		return -res
	}
	return res
}

// IsPositive is true iff l is > 0 in CNF notation.
func (l Lit) IsPositive() bool {
	return l%2 == 0
}

// Negation returns -l. It is an involution: l.Negation().Negation() == l.
func (l Lit) Negation() Lit {
	return l ^ 1
}

// Status is the outcome of a call to Solve.
type Status byte

const (
	// Feasible means a model satisfying all constraints was found.
	Feasible = Status(iota)
	// Infeasible means the problem was proven to have no model.
	Infeasible
	// AssumptionsUnsat means the problem is unsatisfiable under the current
	// assumptions, but might have a model without them.
	AssumptionsUnsat
	// LimitReached means a resource limit stopped the search before an answer
	// was found. The solver state stays valid and the search can be resumed.
	LimitReached
)

func (s Status) String() string {
	switch s {
	case Feasible:
		return "FEASIBLE"
	case Infeasible:
		return "INFEASIBLE"
	case AssumptionsUnsat:
		return "ASSUMPTIONS_UNSAT"
	case LimitReached:
		return "LIMIT_REACHED"
	default:
		panic("invalid status")
	}
}

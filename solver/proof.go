package solver

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// A ProofObserver is notified of every clause addition and deletion performed
// by the solver, including learned clauses, database cleanups and
// inprocessing rewrites (reported as an add of the new literal set followed
// by a delete of the old one). Observers are purely observational and must
// never alter solver decisions or outcomes.
type ProofObserver interface {
	OnAddClause(lits []Lit)
	OnDeleteClause(lits []Lit)
}

// DRATWriter emits a DRAT proof. Write errors are sticky and reported by
// Flush, so the solver never stops on a broken proof sink.
type DRATWriter struct {
	w   *bufio.Writer
	err error
}

// NewDRATWriter returns a proof writer emitting to w.
func NewDRATWriter(w io.Writer) *DRATWriter {
	return &DRATWriter{w: bufio.NewWriter(w)}
}

// OnAddClause emits the RUP line for a derived clause.
func (d *DRATWriter) OnAddClause(lits []Lit) {
	d.writeLits("", lits)
}

// OnDeleteClause emits a deletion line.
func (d *DRATWriter) OnDeleteClause(lits []Lit) {
	d.writeLits("d ", lits)
}

func (d *DRATWriter) writeLits(prefix string, lits []Lit) {
	if d.err != nil {
		return
	}
	if _, err := d.w.WriteString(prefix); err != nil {
		d.err = err
		return
	}
	var buf [12]byte
	for _, l := range lits {
		n := appendInt(buf[:0], l.Int())
		n = append(n, ' ')
		if _, err := d.w.Write(n); err != nil {
			d.err = err
			return
		}
	}
	if _, err := d.w.WriteString("0\n"); err != nil {
		d.err = err
	}
}

func appendInt(b []byte, v int32) []byte {
	if v < 0 {
		b = append(b, '-')
		v = -v
	}
	var digits [10]byte
	i := len(digits)
	for {
		i--
		digits[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	return append(b, digits[i:]...)
}

// Flush writes out buffered proof lines and returns the first error met.
func (d *DRATWriter) Flush() error {
	if d.err != nil {
		return errors.Wrap(d.err, "writing DRAT proof")
	}
	return errors.Wrap(d.w.Flush(), "flushing DRAT proof")
}

package solver

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LoadSlice adds to s a CNF given as a slice of slices of DIMACS literals.
// The argument is supposed to be a well-formed CNF. A proven-unsatisfiable
// model is not an error; it is reported by the next Solve call.
func LoadSlice(cnf [][]int, s *SatSolver) error {
	lits := make([]Lit, 0, 8)
	for i, line := range cnf {
		lits = lits[:0]
		for _, val := range line {
			if val == 0 {
				return errors.Errorf("null literal in clause %d", i)
			}
			lits = append(lits, IntToLit(val))
		}
		if len(lits) == 0 {
			return errors.Errorf("empty clause %d", i)
		}
		if !s.AddClause(lits) {
			return nil
		}
	}
	return nil
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// readInt reads an int from r.
// 'b' is the last read byte. It can be a space, a '-' or a digit.
// The int can be negated.
// All spaces before the int value are ignored.
// Can return EOF.
func readInt(b *byte, r *bufio.Reader) (res int, err error) {
	for err == nil && isSpace(*b) {
		*b, err = r.ReadByte()
	}
	if err == io.EOF {
		return res, io.EOF
	}
	if err != nil {
		return res, errors.Wrap(err, "could not read digit")
	}
	neg := 1
	if *b == '-' {
		neg = -1
		*b, err = r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "cannot read int")
		}
	}
	for err == nil {
		if *b < '0' || *b > '9' {
			return 0, errors.Errorf("cannot read int: %q is not a digit", *b)
		}
		res = 10*res + int(*b-'0')
		*b, err = r.ReadByte()
		if isSpace(*b) {
			break
		}
	}
	res *= neg
	return res, err
}

func parseHeader(r *bufio.Reader) (nbVars, nbClauses int, err error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return 0, 0, errors.Wrap(err, "cannot read header")
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return 0, 0, errors.Errorf("invalid syntax %q in header", line)
	}
	nbVars, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errors.Errorf("nbvars not an int: %q", fields[1])
	}
	nbClauses, err = strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, errors.Errorf("nbClauses not an int: %q", fields[2])
	}
	return nbVars, nbClauses, nil
}

// LoadCNF parses a DIMACS CNF stream and adds its clauses to s. Parsing stops
// early, without error, once the model is proven unsatisfiable.
func LoadCNF(f io.Reader, s *SatSolver) error {
	r := bufio.NewReader(f)
	nbVars := 0
	lits := make([]Lit, 0, 8)
	b, err := r.ReadByte()
	for err == nil {
		if b == 'c' { // Ignore comment
			b, err = r.ReadByte()
			for err == nil && b != '\n' {
				b, err = r.ReadByte()
			}
		} else if b == 'p' { // Parse header
			var nbClauses int
			nbVars, nbClauses, err = parseHeader(r)
			if err != nil {
				return errors.Wrap(err, "cannot parse CNF header")
			}
			_ = nbClauses // The clause count is not needed; clauses stream in.
			s.SetNumVariables(nbVars)
		} else {
			lits = lits[:0]
			for {
				val, err := readInt(&b, r)
				if err == io.EOF {
					if len(lits) != 0 { // This is not a trailing space at the end...
						return errors.New("unfinished clause while EOF found")
					}
					break // Only some useless spaces at the end of the file: that is ok.
				}
				if err != nil {
					return errors.Wrap(err, "cannot parse clause")
				}
				if val == 0 {
					if len(lits) == 0 {
						return errors.New("empty clause in CNF")
					}
					if !s.AddClause(lits) {
						return nil
					}
					break
				}
				if val > nbVars || -val > nbVars {
					return errors.Errorf("invalid literal %d for problem with %d vars only", val, nbVars)
				}
				lits = append(lits, IntToLit(val))
			}
		}
		b, err = r.ReadByte()
	}
	if err != io.EOF {
		return err
	}
	return nil
}

package descriptors

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

var (
	errEmpty        = errors.New("no atoms")
	errUnbalanced   = errors.New("unbalanced branch")
	errUnclosedRing = errors.New("unclosed ring")
	errRingClosure  = errors.New("bad ring closure")
	errBracket      = errors.New("bad bracket atom")
)

// tally is the result of a lexical pass over a molecule.
// Hydrogens are only counted when explicit and are not atoms.
type tally struct {
	atoms     int
	aromatic  int
	rings     int
	charge    int
	hydrogens int
	elements  map[string]int
	// number of heavy-atom neighbors of each atom
	degrees []int
}

func newTally() *tally {
	return &tally{
		elements: map[string]int{},
	}
}

func (t *tally) addAtom(symbol string, aromatic bool) int {
	t.atoms++
	if aromatic {
		t.aromatic++
	}
	if symbol != "*" {
		t.elements[symbol]++
	}
	t.degrees = append(t.degrees, 0)
	return len(t.degrees) - 1
}

func (t *tally) bond(a, b int) {
	t.degrees[a]++
	t.degrees[b]++
}

// branchPoints is the number of extra neighbors of atoms with more than 2
func (t *tally) branchPoints() int {
	n := 0
	for _, d := range t.degrees {
		n += max(0, d-2)
	}
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLower(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

var aromaticTwoLetter = map[string]bool{
	"se": true,
	"as": true,
	"te": true,
}

// parseSmiles counts atoms, rings and branches of a SMILES string.
// Bonds are only tracked to get atom degrees.
func parseSmiles(s string) (*tally, error) {
	t := newTally()
	// ring number => atom that opened it
	openRings := map[int]int{}
	// atom the next atom bonds to, -1 after '.'
	prev := -1
	var branches []int

	addAtom := func(symbol string, aromatic bool) {
		cur := t.addAtom(symbol, aromatic)
		if prev >= 0 {
			t.bond(prev, cur)
		}
		prev = cur
	}
	ringClosure := func(n int) error {
		if prev < 0 {
			return fmt.Errorf("%w: %d without an atom", errRingClosure, n)
		}
		if other, ok := openRings[n]; ok {
			delete(openRings, n)
			t.bond(other, prev)
			t.rings++
		} else {
			openRings[n] = prev
		}
		return nil
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '(':
			if prev < 0 {
				return nil, fmt.Errorf("%w: '(' without an atom", errUnbalanced)
			}
			branches = append(branches, prev)
		case c == ')':
			if len(branches) == 0 {
				return nil, fmt.Errorf("%w: ')' at %d", errUnbalanced, i)
			}
			prev = branches[len(branches)-1]
			branches = branches[:len(branches)-1]
		case c == '.':
			prev = -1
		case strings.IndexByte("-=#$:/\\", c) >= 0:
			// bonds
		case isDigit(c):
			if err := ringClosure(int(c - '0')); err != nil {
				return nil, err
			}
		case c == '%':
			if i+2 >= len(s) || !isDigit(s[i+1]) || !isDigit(s[i+2]) {
				return nil, fmt.Errorf("%w: '%%' at %d", errRingClosure, i)
			}
			n, _ := strconv.Atoi(s[i+1 : i+3])
			if err := ringClosure(n); err != nil {
				return nil, err
			}
			i += 2
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated '[' at %d", errBracket, i)
			}
			symbol, aromatic, err := t.parseBracket(s[i+1 : i+end])
			if err != nil {
				return nil, err
			}
			addAtom(symbol, aromatic)
			i += end
		case c == 'B' || c == 'C':
			// Br and Cl are the only two-letter symbols outside brackets
			if i+1 < len(s) && (c == 'B' && s[i+1] == 'r' || c == 'C' && s[i+1] == 'l') {
				addAtom(s[i:i+2], false)
				i++
				continue
			}
			addAtom(string(c), false)
		case strings.IndexByte("NOPSFI", c) >= 0:
			addAtom(string(c), false)
		case strings.IndexByte("bcnops", c) >= 0:
			addAtom(strings.ToUpper(string(c)), true)
		case c == '*':
			addAtom("*", false)
		default:
			return nil, fmt.Errorf("unexpected '%c' at %d", c, i)
		}
	}
	if len(branches) > 0 {
		return nil, fmt.Errorf("%w: %d unclosed", errUnbalanced, len(branches))
	}
	if len(openRings) > 0 {
		return nil, fmt.Errorf("%w: %v", errUnclosedRing, slices.Sorted(maps.Keys(openRings)))
	}
	if t.atoms == 0 {
		return nil, errEmpty
	}
	return t, nil
}

// parseBracket parses contents of [...]: isotope, symbol, chirality,
// hydrogen count, charge and atom class. Hydrogens and charge are
// added to t, the atom is added by the caller.
func (t *tally) parseBracket(s string) (symbol string, aromatic bool, err error) {
	bad := func() (string, bool, error) {
		return "", false, fmt.Errorf("%w: [%s]", errBracket, s)
	}
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i >= len(s) {
		return bad()
	}
	switch c := s[i]; {
	case isUpper(c):
		symbol = string(c)
		i++
		if i < len(s) && isLower(s[i]) {
			symbol += string(s[i])
			i++
		}
	case isLower(c):
		aromatic = true
		if i+1 < len(s) && aromaticTwoLetter[s[i:i+2]] {
			symbol = strings.ToUpper(s[i:i+1]) + s[i+1:i+2]
			i += 2
		} else {
			symbol = strings.ToUpper(string(c))
			i++
		}
	case c == '*':
		symbol = "*"
		i++
	default:
		return bad()
	}

	for i < len(s) && s[i] == '@' {
		i++
	}
	if i < len(s) && s[i] == 'H' {
		i++
		n := 1
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i > start {
			n, _ = strconv.Atoi(s[start:i])
		}
		t.hydrogens += n
	}
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		sign := 1
		if s[i] == '-' {
			sign = -1
		}
		ch := s[i]
		i++
		n := 1
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i > start {
			n, _ = strconv.Atoi(s[start:i])
		} else {
			// "++" means +2
			for i < len(s) && s[i] == ch {
				n++
				i++
			}
		}
		t.charge += sign * n
	}
	if i < len(s) && s[i] == ':' {
		i++
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return bad()
		}
	}
	if i != len(s) {
		return bad()
	}
	return symbol, aromatic, nil
}

// formula returns formula in Hill order (C, H, then alphabetical;
// alphabetical if there's no carbon). Only explicit hydrogens are counted.
func (t *tally) formula() string {
	counts := maps.Clone(t.elements)
	if t.hydrogens > 0 {
		counts["H"] += t.hydrogens
	}
	var sb strings.Builder
	add := func(sym string) {
		n := counts[sym]
		if n == 0 {
			return
		}
		sb.WriteString(sym)
		if n > 1 {
			sb.WriteString(strconv.Itoa(n))
		}
		delete(counts, sym)
	}
	if counts["C"] > 0 {
		add("C")
		add("H")
	}
	for _, sym := range slices.Sorted(maps.Keys(counts)) {
		add(sym)
	}
	return sb.String()
}

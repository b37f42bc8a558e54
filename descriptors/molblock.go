package descriptors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errMolBlock = errors.New("bad molblock")

// atom block charge codes of V2000 molfiles
var molCharges = map[int]int{
	1: 3,
	2: 2,
	3: 1,
	5: -1,
	6: -2,
	7: -3,
}

func atoiField(line string, start, end int) (int, error) {
	if len(line) < end {
		end = len(line)
	}
	if start >= end {
		return 0, fmt.Errorf("%w: short line '%s'", errMolBlock, line)
	}
	return strconv.Atoi(strings.TrimSpace(line[start:end]))
}

// parseMolBlock counts atoms of a V2000 molblock, which is the part of
// an SDF record before the data items. Explicit hydrogen atoms are
// counted as hydrogens, like bracket hydrogens in SMILES.
// Rings are the cycle rank of the bond graph.
func parseMolBlock(s string) (*tally, error) {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if len(lines) < 4 {
		return nil, fmt.Errorf("%w: no counts line", errMolBlock)
	}
	counts := lines[3]
	if !strings.Contains(counts, "V2000") {
		return nil, fmt.Errorf("%w: only V2000 is supported", errMolBlock)
	}
	nAtoms, err := atoiField(counts, 0, 3)
	if err != nil {
		return nil, err
	}
	nBonds, err := atoiField(counts, 3, 6)
	if err != nil {
		return nil, err
	}
	if nAtoms <= 0 || nBonds < 0 || len(lines) < 4+nAtoms+nBonds {
		return nil, fmt.Errorf("%w: %d atoms, %d bonds in %d lines", errMolBlock, nAtoms, nBonds, len(lines))
	}

	t := newTally()
	// index into t.degrees, -1 for hydrogens
	heavy := make([]int, nAtoms)
	charges := make([]int, nAtoms)
	for i := range nAtoms {
		line := lines[4+i]
		if len(line) < 34 {
			return nil, fmt.Errorf("%w: short atom line '%s'", errMolBlock, line)
		}
		symbol := strings.TrimSpace(line[31:34])
		if symbol == "" {
			return nil, fmt.Errorf("%w: atom %d has no symbol", errMolBlock, i+1)
		}
		if len(line) >= 39 {
			if code, err := atoiField(line, 36, 39); err == nil {
				charges[i] = molCharges[code]
			}
		}
		if symbol == "H" {
			heavy[i] = -1
			t.hydrogens++
			continue
		}
		if symbol == "R#" || symbol == "A" || symbol == "Q" {
			symbol = "*"
		}
		heavy[i] = t.addAtom(symbol, false)
	}

	// union-find over all atoms for the number of components
	parent := make([]int, nAtoms)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	aromatic := make([]bool, nAtoms)
	for i := range nBonds {
		line := lines[4+nAtoms+i]
		a, err1 := atoiField(line, 0, 3)
		b, err2 := atoiField(line, 3, 6)
		typ, err3 := atoiField(line, 6, 9)
		if err := errors.Join(err1, err2, err3); err != nil {
			return nil, fmt.Errorf("%w: bond %d: %w", errMolBlock, i+1, err)
		}
		if a < 1 || a > nAtoms || b < 1 || b > nAtoms || a == b {
			return nil, fmt.Errorf("%w: bond %d connects %d and %d", errMolBlock, i+1, a, b)
		}
		a--
		b--
		if heavy[a] >= 0 && heavy[b] >= 0 {
			t.bond(heavy[a], heavy[b])
		}
		if typ == 4 {
			aromatic[a] = true
			aromatic[b] = true
		}
		parent[find(a)] = find(b)
	}
	components := 0
	for i := range parent {
		if find(i) == i {
			components++
		}
	}
	t.rings = nBonds - nAtoms + components
	for i, isAromatic := range aromatic {
		if isAromatic && heavy[i] >= 0 {
			t.aromatic++
		}
	}

	// "M  CHG" lines replace all charges of the atom block
	hasChg := false
	for _, line := range lines[4+nAtoms+nBonds:] {
		if line == "M  END" {
			break
		}
		rest, ok := strings.CutPrefix(line, "M  CHG")
		if !ok {
			continue
		}
		if !hasChg {
			clear(charges)
			hasChg = true
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: '%s'", errMolBlock, line)
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || len(fields) != 1+2*n {
			return nil, fmt.Errorf("%w: '%s'", errMolBlock, line)
		}
		for j := range n {
			atom, err1 := strconv.Atoi(fields[1+2*j])
			chg, err2 := strconv.Atoi(fields[2+2*j])
			if err1 != nil || err2 != nil || atom < 1 || atom > nAtoms {
				return nil, fmt.Errorf("%w: '%s'", errMolBlock, line)
			}
			charges[atom-1] = chg
		}
	}
	for _, c := range charges {
		t.charge += c
	}
	if t.atoms == 0 {
		return nil, errEmpty
	}
	return t, nil
}

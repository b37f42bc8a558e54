// Package descriptors computes simple per-molecule values from SMILES
// strings and V2000 molblocks.
package descriptors

import (
	"math"
	"strings"

	"github.com/kjk/molstore/rawstore"
)

// Counts is a calculator of atom, ring and branch counts
type Counts struct{}

var countsColumns = rawstore.Schema{
	{Name: "atoms", Type: rawstore.Uint16},
	{Name: "carbons", Type: rawstore.Uint16},
	{Name: "nitrogens", Type: rawstore.Uint16},
	{Name: "oxygens", Type: rawstore.Uint16},
	{Name: "sulfurs", Type: rawstore.Uint16},
	{Name: "halogens", Type: rawstore.Uint16},
	{Name: "aromatic", Type: rawstore.Uint16},
	{Name: "rings", Type: rawstore.Uint16},
	{Name: "branches", Type: rawstore.Uint16},
	{Name: "charge", Type: rawstore.Int8},
	{Name: "length", Type: rawstore.Uint32},
}

// Columns returns schema of values returned by Process
func (Counts) Columns() rawstore.Schema {
	return countsColumns
}

// Process returns values in Columns() order and a formula of the molecule.
// ok is false for SMILES that can't be parsed or don't fit the columns.
func (Counts) Process(smiles string) (values []any, formula string, ok bool) {
	t, err := parseSmiles(smiles)
	if err != nil {
		return nil, "", false
	}
	return tallyValues(t, len(smiles))
}

// ProcessMolBlock is like Process for a V2000 molblock
func (Counts) ProcessMolBlock(molblock string) (values []any, formula string, ok bool) {
	t, err := parseMolBlock(molblock)
	if err != nil {
		return nil, "", false
	}
	return tallyValues(t, len(molblock))
}

// ProcessAny picks Process or ProcessMolBlock based on the shape of
// the molecule. Molblocks always span multiple lines.
func (c Counts) ProcessAny(molecule string) (values []any, formula string, ok bool) {
	if strings.Contains(molecule, "\n") {
		return c.ProcessMolBlock(molecule)
	}
	return c.Process(molecule)
}

func tallyValues(t *tally, length int) ([]any, string, bool) {
	if uint64(length) > math.MaxUint32 {
		return nil, "", false
	}
	if t.atoms > math.MaxUint16 || t.charge < math.MinInt8 || t.charge > math.MaxInt8 {
		return nil, "", false
	}
	el := t.elements
	halogens := el["F"] + el["Cl"] + el["Br"] + el["I"]
	values := []any{
		uint16(t.atoms),
		uint16(el["C"]),
		uint16(el["N"]),
		uint16(el["O"]),
		uint16(el["S"]),
		uint16(halogens),
		uint16(t.aromatic),
		uint16(min(t.rings, math.MaxUint16)),
		uint16(min(t.branchPoints(), math.MaxUint16)),
		int8(t.charge),
		uint32(length),
	}
	return values, t.formula(), true
}

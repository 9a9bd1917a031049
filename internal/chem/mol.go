// SPDX-License-Identifier: MIT

// Package chem implements the cheminformatics core: SMILES parsing,
// canonicalization, reaction string handling and substructure matching.
package chem

import (
	"math"
)

// Atom is a single atom in a molecular graph.
type Atom struct {
	Symbol   string // element symbol ("C", "Cl", ...)
	Aromatic bool
	Charge   int
	Isotope  int
	HCount   int    // explicit hydrogen count from a bracket atom, -1 when implicit
	AtomMap  int    // atom-atom mapping number, 0 when unmapped
	Chiral   string // "@" or "@@"; preserved but not interpreted
}

// Bond connects two atoms by index.
type Bond struct {
	From     int
	To       int
	Order    int // 1, 2 or 3
	Aromatic bool
}

// Mol is a molecular graph. It may be disconnected (dot-separated SMILES).
type Mol struct {
	Atoms []Atom
	Bonds []Bond

	adj [][]int // bond indices per atom, built lazily
}

// NumAtoms returns the number of atoms in the molecule.
func (m *Mol) NumAtoms() int { return len(m.Atoms) }

// buildAdjacency (re)builds the per-atom bond index lists.
func (m *Mol) buildAdjacency() {
	m.adj = make([][]int, len(m.Atoms))
	for bi, b := range m.Bonds {
		m.adj[b.From] = append(m.adj[b.From], bi)
		m.adj[b.To] = append(m.adj[b.To], bi)
	}
}

func (m *Mol) adjacency() [][]int {
	if m.adj == nil || len(m.adj) != len(m.Atoms) {
		m.buildAdjacency()
	}
	return m.adj
}

// Neighbors returns the atom indices adjacent to atom i.
func (m *Mol) Neighbors(i int) []int {
	adj := m.adjacency()
	out := make([]int, 0, len(adj[i]))
	for _, bi := range adj[i] {
		out = append(out, m.Bonds[bi].other(i))
	}
	return out
}

// BondBetween returns the bond connecting atoms i and j, or nil.
func (m *Mol) BondBetween(i, j int) *Bond {
	for _, bi := range m.adjacency()[i] {
		b := &m.Bonds[bi]
		if b.other(i) == j {
			return b
		}
	}
	return nil
}

// Degree returns the number of explicit connections of atom i.
func (m *Mol) Degree(i int) int { return len(m.adjacency()[i]) }

func (b *Bond) other(i int) int {
	if b.From == i {
		return b.To
	}
	return b.From
}

// defaultValences holds the lowest normal valence per organic-subset element.
// For S, N and P higher valence states exist; the smallest state that covers
// the explicit bond order sum is used.
var defaultValences = map[string][]int{
	"B":  {3},
	"C":  {4},
	"N":  {3, 5},
	"O":  {2},
	"P":  {3, 5},
	"S":  {2, 4, 6},
	"F":  {1},
	"Cl": {1},
	"Br": {1},
	"I":  {1},
}

// TotalHydrogens returns the hydrogen count of atom i: the explicit bracket
// count when present, otherwise the implicit count per the SMILES valence
// model. Aromatic bonds contribute 1.5 to the bond order sum.
func (m *Mol) TotalHydrogens(i int) int {
	a := m.Atoms[i]
	if a.HCount >= 0 {
		return a.HCount
	}
	valences, ok := defaultValences[a.Symbol]
	if !ok {
		return 0
	}
	sum := 0.0
	for _, bi := range m.adjacency()[i] {
		b := m.Bonds[bi]
		if b.Aromatic {
			sum += 1.5
		} else {
			sum += float64(b.Order)
		}
	}
	need := int(math.Ceil(sum))
	for _, v := range valences {
		if v >= need {
			return v - need
		}
	}
	return 0
}

// atomicNumbers orders elements for canonical invariants. Only elements the
// parser accepts appear here; anything else sorts behind them by symbol.
var atomicNumbers = map[string]int{
	"H": 1, "B": 5, "C": 6, "N": 7, "O": 8, "F": 9,
	"P": 15, "S": 16, "Cl": 17, "Br": 35, "I": 53,
	"Si": 14, "Se": 34, "As": 33,
}

func atomicNumber(symbol string) int {
	if n, ok := atomicNumbers[symbol]; ok {
		return n
	}
	return 200
}

// SPDX-License-Identifier: MIT

package chem

import (
	"fmt"
	"sort"
	"strings"
)

// CanonicalSmiles parses s and returns its canonical form. Two spellings of
// the same molecule yield the same output.
func CanonicalSmiles(s string) (string, error) {
	mol, err := MolFromSmiles(s)
	if err != nil {
		return "", err
	}
	return mol.CanonicalSmiles(), nil
}

// CanonicalSmiles serializes the molecule deterministically. The output does
// not depend on the order atoms were parsed in.
func (m *Mol) CanonicalSmiles() string {
	if len(m.Atoms) == 0 {
		return ""
	}
	ranks := m.canonicalRanks()
	w := &smilesWriter{
		m:          m,
		ranks:      ranks,
		visited:    make([]bool, len(m.Atoms)),
		bondUsed:   make([]bool, len(m.Bonds)),
		closures:   make([][]closureTok, len(m.Atoms)),
		treeParent: make([]int, len(m.Atoms)),
	}
	for i := range w.treeParent {
		w.treeParent[i] = -1
	}

	// component roots: the lowest-ranked atom of each connected component
	var parts []string
	for {
		root := -1
		for i := range m.Atoms {
			if w.visited[i] {
				continue
			}
			if root < 0 || ranks[i] < ranks[root] {
				root = i
			}
		}
		if root < 0 {
			break
		}
		w.assignClosures(root, -1)
		var sb strings.Builder
		w.emit(&sb, root, -1)
		parts = append(parts, sb.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ".")
}

// canonicalRanks assigns every atom a rank in [0,n) using iterative
// invariant refinement with deterministic tie-breaking. Symmetric atoms keep
// equal ranks until the final tie-break, so output strings are stable across
// input atom orderings.
func (m *Mol) canonicalRanks() []int {
	n := len(m.Atoms)
	ranks := make([]int, n)

	// seed invariants
	inv := make([]string, n)
	for i, a := range m.Atoms {
		arom := 0
		if a.Aromatic {
			arom = 1
		}
		inv[i] = fmt.Sprintf("%03d.%02d.%03d.%02d.%d.%03d",
			atomicNumber(a.Symbol), m.Degree(i), a.Charge+100, m.TotalHydrogens(i), arom, a.Isotope)
	}
	ranks = ranksFromKeys(inv)

	refine := func() {
		for {
			keys := make([]string, n)
			for i := range m.Atoms {
				nb := m.Neighbors(i)
				nbRanks := make([]int, 0, len(nb))
				for _, j := range nb {
					b := m.BondBetween(i, j)
					order := b.Order
					if b.Aromatic {
						order = 4
					}
					nbRanks = append(nbRanks, ranks[j]*8+order)
				}
				sort.Ints(nbRanks)
				keys[i] = fmt.Sprintf("%04d|%v", ranks[i], nbRanks)
			}
			next := ranksFromKeys(keys)
			if countDistinct(next) == countDistinct(ranks) {
				ranks = next
				return
			}
			ranks = next
		}
	}
	refine()

	// break remaining ties: promote one member of the lowest tied class and
	// re-refine until all ranks are distinct
	for countDistinct(ranks) < n {
		classOf := map[int][]int{}
		for i, r := range ranks {
			classOf[r] = append(classOf[r], i)
		}
		tied := -1
		for r, members := range classOf {
			if len(members) > 1 && (tied < 0 || r < tied) {
				tied = r
			}
		}
		chosen := classOf[tied][0]
		keys := make([]string, n)
		for i := range keys {
			promoted := 1
			if i == chosen {
				promoted = 0
			}
			keys[i] = fmt.Sprintf("%04d.%d", ranks[i], promoted)
		}
		ranks = ranksFromKeys(keys)
		refine()
	}
	return ranks
}

func ranksFromKeys(keys []string) []int {
	uniq := make([]string, len(keys))
	copy(uniq, keys)
	sort.Strings(uniq)
	uniq = dedupe(uniq)
	pos := make(map[string]int, len(uniq))
	for i, k := range uniq {
		pos[k] = i
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = pos[k]
	}
	return out
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func countDistinct(ranks []int) int {
	seen := map[int]struct{}{}
	for _, r := range ranks {
		seen[r] = struct{}{}
	}
	return len(seen)
}

type closureTok struct {
	num  int
	bond *Bond
}

type smilesWriter struct {
	m          *Mol
	ranks      []int
	visited    []bool
	bondUsed   []bool
	closures   [][]closureTok
	treeParent []int // bond index each atom was first reached through
	nextNum    int
}

// orderedNeighbors returns the bond indices of atom i sorted by the
// canonical rank of the far atom. Both traversal passes rely on this order
// being identical.
func (w *smilesWriter) orderedNeighbors(i int) []int {
	bonds := append([]int(nil), w.m.adjacency()[i]...)
	sort.Slice(bonds, func(a, b int) bool {
		ra := w.ranks[w.m.Bonds[bonds[a]].other(i)]
		rb := w.ranks[w.m.Bonds[bonds[b]].other(i)]
		if ra != rb {
			return ra < rb
		}
		return bonds[a] < bonds[b]
	})
	return bonds
}

// assignClosures walks the component and numbers the ring-closure bonds in
// traversal order.
func (w *smilesWriter) assignClosures(atom, fromBond int) {
	w.visited[atom] = true
	for _, bi := range w.orderedNeighbors(atom) {
		if bi == fromBond || w.bondUsed[bi] {
			continue
		}
		b := &w.m.Bonds[bi]
		next := b.other(atom)
		if w.visited[next] {
			// back edge: ring closure between atom and next
			w.bondUsed[bi] = true
			w.nextNum++
			tok := closureTok{num: w.nextNum, bond: b}
			w.closures[next] = append(w.closures[next], tok)
			w.closures[atom] = append(w.closures[atom], tok)
			continue
		}
		w.bondUsed[bi] = true
		w.treeParent[next] = bi
		w.assignClosures(next, bi)
	}
}

// emit writes the SMILES for the subtree rooted at atom. assignClosures must
// have run for the component first; it marks every bond used, so emit resets
// the marks it needs via the closure bookkeeping instead.
func (w *smilesWriter) emit(sb *strings.Builder, atom, fromBond int) {
	sb.WriteString(w.atomToken(atom))
	for _, tok := range w.closures[atom] {
		if tok.bond.Order > 1 && !tok.bond.Aromatic {
			sb.WriteString(w.bondTokenFor(tok.bond))
		}
		if tok.num > 9 {
			fmt.Fprintf(sb, "%%%02d", tok.num)
		} else {
			fmt.Fprintf(sb, "%d", tok.num)
		}
	}

	// tree children in canonical order
	var children []int
	for _, bi := range w.orderedNeighbors(atom) {
		if bi == fromBond {
			continue
		}
		b := &w.m.Bonds[bi]
		if w.isClosureBond(b) {
			continue
		}
		// a tree bond leads "down": the far atom was first reached through it
		if w.treeParent[b.other(atom)] == bi {
			children = append(children, bi)
		}
	}
	for idx, bi := range children {
		b := &w.m.Bonds[bi]
		next := b.other(atom)
		branch := idx < len(children)-1
		if branch {
			sb.WriteByte('(')
		}
		sb.WriteString(w.bondTokenFor(b))
		w.emit(sb, next, bi)
		if branch {
			sb.WriteByte(')')
		}
	}
}

func (w *smilesWriter) isClosureBond(b *Bond) bool {
	for _, tok := range w.closures[b.From] {
		if tok.bond == b {
			return true
		}
	}
	return false
}

// bondTokenFor renders the bond symbol preceding an atom. A plain single
// bond between two aromatic atoms must be written explicitly, otherwise it
// would re-parse as aromatic.
func (w *smilesWriter) bondTokenFor(b *Bond) string {
	if b.Aromatic {
		return ""
	}
	switch b.Order {
	case 2:
		return "="
	case 3:
		return "#"
	}
	if w.m.Atoms[b.From].Aromatic && w.m.Atoms[b.To].Aromatic {
		return "-"
	}
	return ""
}

// atomToken renders a single atom, bracketed only when necessary.
func (w *smilesWriter) atomToken(i int) string {
	a := w.m.Atoms[i]
	organic := map[string]bool{
		"B": true, "C": true, "N": true, "O": true, "P": true,
		"S": true, "F": true, "Cl": true, "Br": true, "I": true,
	}
	sym := a.Symbol
	if a.Aromatic {
		sym = strings.ToLower(sym)
	}
	needBracket := a.Charge != 0 || a.Isotope != 0 || a.AtomMap != 0 || a.Chiral != "" || !organic[a.Symbol]
	if !needBracket && a.HCount >= 0 {
		// explicit H count: bracket unless it equals the implicit value
		needBracket = a.HCount != w.m.implicitHydrogens(i)
	}
	if !needBracket {
		return sym
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope != 0 {
		fmt.Fprintf(&sb, "%d", a.Isotope)
	}
	sb.WriteString(sym)
	sb.WriteString(a.Chiral)
	h := w.m.TotalHydrogens(i)
	if h == 1 {
		sb.WriteByte('H')
	} else if h > 1 {
		fmt.Fprintf(&sb, "H%d", h)
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		fmt.Fprintf(&sb, "+%d", a.Charge)
	case a.Charge < -1:
		fmt.Fprintf(&sb, "-%d", -a.Charge)
	}
	if a.AtomMap != 0 {
		fmt.Fprintf(&sb, ":%d", a.AtomMap)
	}
	sb.WriteByte(']')
	return sb.String()
}

// implicitHydrogens computes the hydrogen count atom i would get without an
// explicit bracket count.
func (m *Mol) implicitHydrogens(i int) int {
	saved := m.Atoms[i].HCount
	m.Atoms[i].HCount = -1
	h := m.TotalHydrogens(i)
	m.Atoms[i].HCount = saved
	return h
}

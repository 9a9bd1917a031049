// SPDX-License-Identifier: MIT

package chem

// HasSubstructMatch reports whether query occurs as a subgraph of m.
func (m *Mol) HasSubstructMatch(query *Mol) bool {
	_, ok := m.SubstructMatch(query)
	return ok
}

// SubstructMatch finds one embedding of query in m. The returned slice maps
// query atom indices to atom indices of m.
func (m *Mol) SubstructMatch(query *Mol) ([]int, bool) {
	if query.NumAtoms() == 0 || query.NumAtoms() > m.NumAtoms() {
		return nil, false
	}
	order := matchOrder(query)
	mapping := make([]int, query.NumAtoms())
	for i := range mapping {
		mapping[i] = -1
	}
	used := make([]bool, m.NumAtoms())
	if m.matchNext(query, order, 0, mapping, used) {
		return mapping, true
	}
	return nil, false
}

// matchOrder sequences query atoms so that every atom after the first of its
// component is adjacent to an already-sequenced atom. Backtracking then only
// ever extends along bonds.
func matchOrder(q *Mol) []int {
	n := q.NumAtoms()
	order := make([]int, 0, n)
	seen := make([]bool, n)
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		queue := []int{start}
		seen[start] = true
		for len(queue) > 0 {
			a := queue[0]
			queue = queue[1:]
			order = append(order, a)
			for _, nb := range q.Neighbors(a) {
				if !seen[nb] {
					seen[nb] = true
					queue = append(queue, nb)
				}
			}
		}
	}
	return order
}

func (m *Mol) matchNext(q *Mol, order []int, pos int, mapping []int, used []bool) bool {
	if pos == len(order) {
		return true
	}
	qa := order[pos]

	// candidate targets: neighbors of an already-mapped query neighbor, or
	// every atom for a fresh component
	var candidates []int
	anchored := false
	for _, nb := range q.Neighbors(qa) {
		if mapping[nb] >= 0 {
			anchored = true
			candidates = m.Neighbors(mapping[nb])
			break
		}
	}
	if !anchored {
		candidates = make([]int, m.NumAtoms())
		for i := range candidates {
			candidates[i] = i
		}
	}

	for _, ta := range candidates {
		if used[ta] || !atomsCompatible(q.Atoms[qa], m.Atoms[ta]) {
			continue
		}
		if !m.bondsCompatible(q, qa, ta, mapping) {
			continue
		}
		mapping[qa] = ta
		used[ta] = true
		if m.matchNext(q, order, pos+1, mapping, used) {
			return true
		}
		mapping[qa] = -1
		used[ta] = false
	}
	return false
}

// bondsCompatible verifies every bond from qa to an already-mapped query
// atom exists in the target with a compatible bond type.
func (m *Mol) bondsCompatible(q *Mol, qa, ta int, mapping []int) bool {
	for _, nb := range q.Neighbors(qa) {
		if mapping[nb] < 0 {
			continue
		}
		qb := q.BondBetween(qa, nb)
		tb := m.BondBetween(ta, mapping[nb])
		if tb == nil || !bondCompatible(qb, tb) {
			return false
		}
	}
	return true
}

func atomsCompatible(qa, ta Atom) bool {
	if qa.Symbol == "*" {
		return true
	}
	if qa.Symbol != ta.Symbol || qa.Aromatic != ta.Aromatic {
		return false
	}
	return qa.Charge == ta.Charge
}

// bondCompatible treats an unadorned single query bond as single-or-aromatic,
// matching the usual molecule-as-query semantics.
func bondCompatible(qb, tb *Bond) bool {
	if qb.Aromatic {
		return tb.Aromatic
	}
	if qb.Order == 1 {
		return tb.Aromatic || tb.Order == 1
	}
	return !tb.Aromatic && qb.Order == tb.Order
}

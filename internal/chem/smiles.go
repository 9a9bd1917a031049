// SPDX-License-Identifier: MIT

package chem

import (
	"fmt"
	"strings"
)

// ringRef tracks one open ring-closure number.
type ringRef struct {
	atom  int
	order int // 0 when no explicit bond symbol preceded the digit
}

type smilesParser struct {
	s     string
	pos   int
	mol   *Mol
	prev  int // index of the last parsed atom, -1 at fragment start
	stack []int
	rings map[int]ringRef

	// pending bond state consumed by the next atom or ring closure
	pendingOrder int // 0 unset, otherwise 1..3
	pendingArom  bool
	pendingSet   bool
}

// MolFromSmiles parses a SMILES string into a molecular graph.
func MolFromSmiles(s string) (*Mol, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyInput
	}
	p := &smilesParser{
		s:     s,
		mol:   &Mol{},
		prev:  -1,
		rings: map[int]ringRef{},
	}
	if err := p.run(); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSmiles, s, err)
	}
	p.mol.buildAdjacency()
	return p.mol, nil
}

func (p *smilesParser) run() error {
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return fmt.Errorf("branch open at position %d without preceding atom", p.pos)
			}
			p.stack = append(p.stack, p.prev)
			p.pos++
		case c == ')':
			if len(p.stack) == 0 {
				return fmt.Errorf("unbalanced branch close at position %d", p.pos)
			}
			p.prev = p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			p.pos++
		case c == '.':
			if p.pendingSet {
				return fmt.Errorf("bond symbol before dot at position %d", p.pos)
			}
			p.prev = -1
			p.pos++
		case c == '-' || c == '/' || c == '\\':
			p.setPending(1, false)
			p.pos++
		case c == '=':
			p.setPending(2, false)
			p.pos++
		case c == '#':
			p.setPending(3, false)
			p.pos++
		case c == ':':
			p.setPending(1, true)
			p.pos++
		case c >= '0' && c <= '9':
			if err := p.ringClosure(int(c - '0')); err != nil {
				return err
			}
			p.pos++
		case c == '%':
			if p.pos+2 >= len(p.s) || !isDigit(p.s[p.pos+1]) || !isDigit(p.s[p.pos+2]) {
				return fmt.Errorf("malformed %%nn ring closure at position %d", p.pos)
			}
			n := int(p.s[p.pos+1]-'0')*10 + int(p.s[p.pos+2]-'0')
			if err := p.ringClosure(n); err != nil {
				return err
			}
			p.pos += 3
		case c == '[':
			atom, width, err := parseBracketAtom(p.s[p.pos:])
			if err != nil {
				return err
			}
			p.addAtom(atom)
			p.pos += width
		default:
			atom, width, err := parseOrganicAtom(p.s[p.pos:])
			if err != nil {
				return fmt.Errorf("unexpected character %q at position %d", c, p.pos)
			}
			p.addAtom(atom)
			p.pos += width
		}
	}
	if p.pendingSet {
		return fmt.Errorf("dangling bond symbol at end of input")
	}
	if len(p.stack) != 0 {
		return fmt.Errorf("unbalanced branches")
	}
	if len(p.rings) != 0 {
		return fmt.Errorf("unclosed ring bond")
	}
	if len(p.mol.Atoms) == 0 {
		return fmt.Errorf("no atoms")
	}
	return nil
}

func (p *smilesParser) setPending(order int, aromatic bool) {
	p.pendingOrder = order
	p.pendingArom = aromatic
	p.pendingSet = true
}

func (p *smilesParser) takePending() (int, bool, bool) {
	if !p.pendingSet {
		return 0, false, false
	}
	order, arom := p.pendingOrder, p.pendingArom
	p.pendingOrder, p.pendingArom, p.pendingSet = 0, false, false
	return order, arom, true
}

func (p *smilesParser) addAtom(a Atom) {
	idx := len(p.mol.Atoms)
	p.mol.Atoms = append(p.mol.Atoms, a)
	if p.prev >= 0 {
		order, arom, explicit := p.takePending()
		if !explicit {
			if p.mol.Atoms[p.prev].Aromatic && a.Aromatic {
				order, arom = 1, true
			} else {
				order = 1
			}
		}
		p.mol.Bonds = append(p.mol.Bonds, Bond{From: p.prev, To: idx, Order: order, Aromatic: arom})
	} else {
		p.takePending()
	}
	p.prev = idx
}

func (p *smilesParser) ringClosure(n int) error {
	if p.prev < 0 {
		return fmt.Errorf("ring closure %d without preceding atom", n)
	}
	order, _, explicit := p.takePending()
	if !explicit {
		order = 0
	}
	if open, ok := p.rings[n]; ok {
		delete(p.rings, n)
		if open.atom == p.prev {
			return fmt.Errorf("ring closure %d to itself", n)
		}
		bondOrder := order
		if bondOrder == 0 {
			bondOrder = open.order
		}
		if order != 0 && open.order != 0 && order != open.order {
			return fmt.Errorf("conflicting bond orders for ring closure %d", n)
		}
		arom := false
		if bondOrder == 0 {
			bondOrder = 1
			if p.mol.Atoms[open.atom].Aromatic && p.mol.Atoms[p.prev].Aromatic {
				arom = true
			}
		}
		p.mol.Bonds = append(p.mol.Bonds, Bond{From: open.atom, To: p.prev, Order: bondOrder, Aromatic: arom})
		return nil
	}
	p.rings[n] = ringRef{atom: p.prev, order: order}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// parseOrganicAtom parses an organic-subset atom token at the start of s.
func parseOrganicAtom(s string) (Atom, int, error) {
	switch {
	case strings.HasPrefix(s, "Cl"):
		return Atom{Symbol: "Cl", HCount: -1}, 2, nil
	case strings.HasPrefix(s, "Br"):
		return Atom{Symbol: "Br", HCount: -1}, 2, nil
	}
	c := s[0]
	switch c {
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		return Atom{Symbol: string(c), HCount: -1}, 1, nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		return Atom{Symbol: strings.ToUpper(string(c)), Aromatic: true, HCount: -1}, 1, nil
	}
	return Atom{}, 0, fmt.Errorf("not an organic subset atom")
}

// parseBracketAtom parses a bracket atom token ("[13CH3+:2]" etc.) at the
// start of s and returns the atom plus the token width including brackets.
func parseBracketAtom(s string) (Atom, int, error) {
	if len(s) < 3 || s[0] != '[' {
		return Atom{}, 0, fmt.Errorf("malformed bracket atom")
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return Atom{}, 0, fmt.Errorf("unterminated bracket atom")
	}
	body := s[1:end]
	a := Atom{HCount: 0}
	i := 0

	// isotope
	for i < len(body) && isDigit(body[i]) {
		a.Isotope = a.Isotope*10 + int(body[i]-'0')
		i++
	}

	// element symbol
	if i >= len(body) {
		return Atom{}, 0, fmt.Errorf("bracket atom without element")
	}
	switch {
	case body[i] == '*':
		a.Symbol = "*"
		i++
	case body[i] >= 'A' && body[i] <= 'Z':
		sym := string(body[i])
		i++
		// inside brackets every property marker is non-lowercase, so a
		// following lowercase letter always belongs to the element symbol
		if i < len(body) && body[i] >= 'a' && body[i] <= 'z' {
			sym += string(body[i])
			i++
		}
		a.Symbol = sym
	case body[i] >= 'a' && body[i] <= 'z':
		sym := string(body[i])
		i++
		if sym == "s" && i < len(body) && body[i] == 'e' {
			sym = "se"
			i++
		} else if sym == "a" && i < len(body) && body[i] == 's' {
			sym = "as"
			i++
		}
		a.Symbol = strings.ToUpper(sym[:1]) + sym[1:]
		a.Aromatic = true
	default:
		return Atom{}, 0, fmt.Errorf("bad element in bracket atom")
	}

	// chirality
	if i < len(body) && body[i] == '@' {
		a.Chiral = "@"
		i++
		if i < len(body) && body[i] == '@' {
			a.Chiral = "@@"
			i++
		}
	}

	// hydrogen count
	if i < len(body) && body[i] == 'H' {
		i++
		a.HCount = 1
		if i < len(body) && isDigit(body[i]) {
			a.HCount = 0
			for i < len(body) && isDigit(body[i]) {
				a.HCount = a.HCount*10 + int(body[i]-'0')
				i++
			}
		}
	}

	// charge
	if i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		mark := body[i]
		i++
		if i < len(body) && isDigit(body[i]) {
			n := 0
			for i < len(body) && isDigit(body[i]) {
				n = n*10 + int(body[i]-'0')
				i++
			}
			a.Charge = sign * n
		} else {
			n := 1
			for i < len(body) && body[i] == mark {
				n++
				i++
			}
			a.Charge = sign * n
		}
	}

	// atom map
	if i < len(body) && body[i] == ':' {
		i++
		if i >= len(body) || !isDigit(body[i]) {
			return Atom{}, 0, fmt.Errorf("malformed atom map")
		}
		for i < len(body) && isDigit(body[i]) {
			a.AtomMap = a.AtomMap*10 + int(body[i]-'0')
			i++
		}
	}

	if i != len(body) {
		return Atom{}, 0, fmt.Errorf("trailing characters %q in bracket atom", body[i:])
	}
	return a, end + 1, nil
}

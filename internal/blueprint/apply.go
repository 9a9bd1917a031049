// SPDX-License-Identifier: MIT

package blueprint

import (
	"fmt"

	"github.com/metatree-dev/metatree/internal/chem"
	"github.com/metatree-dev/metatree/internal/model"
)

// Direction selects which way a template is applied.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionRetro   Direction = "backward"
)

func (d Direction) pattern(t *model.Template) (string, error) {
	switch d {
	case DirectionForward:
		return t.ForwardSmarts, nil
	case DirectionRetro:
		return t.RetroSmarts, nil
	default:
		return "", fmt.Errorf("blueprint: direction must be %q or %q, got %q", DirectionForward, DirectionRetro, d)
	}
}

// Apply runs template templateIndex of the blueprint against the given
// molecules. The pattern side must be covered by the inputs: every
// left-hand fragment has to occur as a substructure in at least one
// molecule. On a match the right-hand fragments are returned with atom
// maps stripped and canonicalized; without a match the result is nil.
func Apply(bp *model.Blueprint, templateIndex int, direction Direction, molecules []string) ([]string, error) {
	if len(molecules) == 0 {
		return nil, ErrNoMolecules
	}
	if templateIndex < 0 || templateIndex >= len(bp.Templates) {
		return nil, fmt.Errorf("blueprint: template index %d out of range [0,%d)", templateIndex, len(bp.Templates))
	}
	t := &bp.Templates[templateIndex]

	pattern, err := direction.pattern(t)
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, fmt.Errorf("blueprint: template %s has no %s pattern", t.UID, direction)
	}
	parts, err := chem.SplitReaction(pattern)
	if err != nil {
		return nil, fmt.Errorf("blueprint: template %s: %w", t.UID, err)
	}

	targets := make([]*chem.Mol, 0, len(molecules))
	for _, s := range molecules {
		m, err := chem.MolFromSmiles(s)
		if err != nil {
			return nil, fmt.Errorf("blueprint: molecule %q: %w", s, err)
		}
		targets = append(targets, m)
	}

	// every pattern fragment must occur in some input molecule
	for _, frag := range parts.Reactants {
		query, err := chem.MolFromSmiles(frag)
		if err != nil {
			return nil, fmt.Errorf("blueprint: template %s fragment %q: %w", t.UID, frag, err)
		}
		stripAtomMaps(query)
		matched := false
		for _, target := range targets {
			if target.HasSubstructMatch(query) {
				matched = true
				break
			}
		}
		if !matched {
			return nil, nil
		}
	}

	products := make([]string, 0, len(parts.Products))
	for _, frag := range parts.Products {
		canon, err := RemoveAtomMaps(frag)
		if err != nil {
			return nil, fmt.Errorf("blueprint: template %s product %q: %w", t.UID, frag, err)
		}
		products = append(products, canon)
	}
	return products, nil
}

// RemoveAtomMaps strips atom-atom mapping numbers from a SMILES string and
// returns the canonical form.
func RemoveAtomMaps(smiles string) (string, error) {
	m, err := chem.MolFromSmiles(smiles)
	if err != nil {
		return "", err
	}
	stripAtomMaps(m)
	return m.CanonicalSmiles(), nil
}

func stripAtomMaps(m *chem.Mol) {
	for i := range m.Atoms {
		m.Atoms[i].AtomMap = 0
	}
}

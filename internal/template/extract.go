// SPDX-License-Identifier: MIT

// Package template extracts reaction templates from atom-mapped reaction
// SMILES. A template is the reaction center plus its direct neighborhood,
// written as a retro pattern (products>>reactants); the forward pattern is
// the same string with the fields reversed.
package template

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/metatree-dev/metatree/internal/chem"
	"github.com/metatree-dev/metatree/internal/model"
)

var (
	ErrNotMapped        = errors.New("template: reaction has no atom maps")
	ErrNoReactionCenter = errors.New("template: no changed atoms between reactants and products")
)

// atomEnv captures how one mapped atom is bonded, keyed by the map numbers
// of its mapped neighbors. Differences between the reactant and product
// environment mark the atom as part of the reaction center.
type atomEnv struct {
	mol       *chem.Mol
	idx       int
	bonds     map[int]int // neighbor map number -> bond order (aromatic = 0)
	hydrogens int
}

// Extract builds a template from a mapped reaction SMILES. The reaction
// must have three ">"-separated fields with non-empty reactants and
// products; agents are ignored.
func Extract(reactionString string) (*model.Template, error) {
	parts, err := chem.SplitReaction(reactionString)
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}

	reactants, err := parseSide(parts.Reactants)
	if err != nil {
		return nil, fmt.Errorf("template: reactants: %w", err)
	}
	products, err := parseSide(parts.Products)
	if err != nil {
		return nil, fmt.Errorf("template: products: %w", err)
	}

	reactantEnvs := mapEnvironments(reactants)
	productEnvs := mapEnvironments(products)
	if len(reactantEnvs) == 0 || len(productEnvs) == 0 {
		return nil, ErrNotMapped
	}

	center := changedMapNumbers(reactantEnvs, productEnvs)
	if len(center) == 0 {
		return nil, ErrNoReactionCenter
	}

	reactantsTemplate := sideTemplate(reactants, center)
	productsTemplate := sideTemplate(products, center)
	if reactantsTemplate == "" || productsTemplate == "" {
		return nil, ErrNoReactionCenter
	}

	t := &model.Template{
		ReactionString:    reactionString,
		ProductsTemplate:  productsTemplate,
		ReactantsTemplate: reactantsTemplate,
		RetroSmarts:       productsTemplate + ">>" + reactantsTemplate,
	}
	t.ForwardSmarts = chem.ReverseReaction(t.RetroSmarts)
	if err := t.ComputeUID(); err != nil {
		return nil, err
	}
	return t, nil
}

// FromReaction extracts a template from a reaction's mapped SMILES and
// attaches it to the record.
func FromReaction(r *model.ChemicalReaction) error {
	if r.MappedSmiles == "" {
		return fmt.Errorf("template: reaction %q has no mapped SMILES", r.Name)
	}
	t, err := Extract(r.MappedSmiles)
	if err != nil {
		return fmt.Errorf("template: reaction %q: %w", r.Name, err)
	}
	r.Template = t
	return nil
}

func parseSide(smiles []string) ([]*chem.Mol, error) {
	mols := make([]*chem.Mol, 0, len(smiles))
	for _, s := range smiles {
		m, err := chem.MolFromSmiles(s)
		if err != nil {
			return nil, err
		}
		mols = append(mols, m)
	}
	return mols, nil
}

// mapEnvironments indexes every mapped atom of one side by map number.
func mapEnvironments(mols []*chem.Mol) map[int]atomEnv {
	envs := make(map[int]atomEnv)
	for _, m := range mols {
		for i := range m.Atoms {
			mapNum := m.Atoms[i].AtomMap
			if mapNum == 0 {
				continue
			}
			bonds := make(map[int]int)
			for _, j := range m.Neighbors(i) {
				if m.Atoms[j].AtomMap == 0 {
					continue
				}
				b := m.BondBetween(i, j)
				order := b.Order
				if b.Aromatic {
					order = 0
				}
				bonds[m.Atoms[j].AtomMap] = order
			}
			envs[mapNum] = atomEnv{
				mol:       m,
				idx:       i,
				bonds:     bonds,
				hydrogens: m.TotalHydrogens(i),
			}
		}
	}
	return envs
}

// changedMapNumbers returns the map numbers whose bonding or hydrogen count
// differs between the two sides. Atoms present on only one side count as
// changed too (leaving groups, incorporated reagents).
func changedMapNumbers(reactants, products map[int]atomEnv) map[int]bool {
	center := make(map[int]bool)
	for mapNum, re := range reactants {
		pe, ok := products[mapNum]
		if !ok {
			center[mapNum] = true
			continue
		}
		if re.hydrogens != pe.hydrogens || !sameBonds(re.bonds, pe.bonds) {
			center[mapNum] = true
		}
	}
	for mapNum := range products {
		if _, ok := reactants[mapNum]; !ok {
			center[mapNum] = true
		}
	}
	return center
}

func sameBonds(a, b map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// sideTemplate extracts the induced fragment of every molecule that touches
// the reaction center: center atoms plus their direct neighbors. Molecules
// without center atoms contribute nothing.
func sideTemplate(mols []*chem.Mol, center map[int]bool) string {
	var fragments []string
	for _, m := range mols {
		selected := selectAtoms(m, center)
		if len(selected) == 0 {
			continue
		}
		fragments = append(fragments, inducedFragment(m, selected))
	}
	sort.Strings(fragments)
	return strings.Join(fragments, ".")
}

func selectAtoms(m *chem.Mol, center map[int]bool) map[int]bool {
	selected := make(map[int]bool)
	for i := range m.Atoms {
		if center[m.Atoms[i].AtomMap] {
			selected[i] = true
			for _, j := range m.Neighbors(i) {
				selected[j] = true
			}
		}
	}
	return selected
}

// inducedFragment builds the subgraph over the selected atoms and emits its
// canonical SMILES. Hydrogen counts are pinned to the full-molecule values
// so the pattern keeps the original environment even where bonds were cut.
func inducedFragment(m *chem.Mol, selected map[int]bool) string {
	indices := make([]int, 0, len(selected))
	for i := range selected {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	remap := make(map[int]int, len(indices))
	sub := &chem.Mol{}
	for newIdx, oldIdx := range indices {
		a := m.Atoms[oldIdx]
		a.HCount = m.TotalHydrogens(oldIdx)
		sub.Atoms = append(sub.Atoms, a)
		remap[oldIdx] = newIdx
	}
	for _, b := range m.Bonds {
		if selected[b.From] && selected[b.To] {
			sub.Bonds = append(sub.Bonds, chem.Bond{
				From:     remap[b.From],
				To:       remap[b.To],
				Order:    b.Order,
				Aromatic: b.Aromatic,
			})
		}
	}
	return sub.CanonicalSmiles()
}

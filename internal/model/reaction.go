// SPDX-License-Identifier: MIT

// Package model defines the typed reaction records the pipeline operates on.
// Decoding accepts both the internal snake_case keys and the upstream
// enviPath aliases (compoundName, ecNumber, educts, smirks, multistep).
package model

import (
	"encoding/json"
	"fmt"

	"github.com/metatree-dev/metatree/internal/chem"
)

// Molecule is a single reactant or product.
type Molecule struct {
	Name   string `json:"name,omitempty"`
	Smiles string `json:"smiles,omitempty"`
	UID    string `json:"uid,omitempty"`
}

// UnmarshalJSON accepts the upstream compoundName alias and validates the
// SMILES string when one is present.
func (m *Molecule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name         string `json:"name"`
		CompoundName string `json:"compoundName"`
		Smiles       string `json:"smiles"`
		UID          string `json:"uid"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	name := raw.Name
	if name == "" {
		name = raw.CompoundName
	}
	if raw.Smiles != "" {
		if _, err := chem.MolFromSmiles(raw.Smiles); err != nil {
			return fmt.Errorf("molecule %q: %w", name, err)
		}
	}
	m.Name = name
	m.Smiles = raw.Smiles
	m.UID = raw.UID
	return nil
}

// EnzymeClass is an EC classification entry.
type EnzymeClass struct {
	Name   string `json:"enzyme_class_name,omitempty"`
	Number string `json:"enzyme_class_number,omitempty"`
}

func (e *EnzymeClass) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name     string `json:"enzyme_class_name"`
		Number   string `json:"enzyme_class_number"`
		ECName   string `json:"ecName"`
		ECNumber string `json:"ecNumber"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Name = firstNonEmpty(raw.Name, raw.ECName)
	e.Number = firstNonEmpty(raw.Number, raw.ECNumber)
	return nil
}

// Pathway references a degradation pathway by UID.
type Pathway struct {
	UID string `json:"uid,omitempty"`
}

// ChemicalReaction is the central record of the system.
type ChemicalReaction struct {
	Dataset         string        `json:"dataset,omitempty"`
	Description     string        `json:"description,omitempty"`
	EnzymeClasses   []EnzymeClass `json:"enzyme_classes,omitempty"`
	MappedSmiles    string        `json:"mapped_smiles,omitempty"`
	Multistep       bool          `json:"multistep_flag,omitempty"`
	Name            string        `json:"name,omitempty"`
	NamerxnClass    string        `json:"namerxn_reaction_class,omitempty"`
	NamerxnNumbers  []string      `json:"namerxn_reaction_numbers,omitempty"`
	Pathways        []Pathway     `json:"pathways,omitempty"`
	Products        []Molecule    `json:"products,omitempty"`
	Reactants       []Molecule    `json:"reactants,omitempty"`
	Scenarios       []string      `json:"scenarios,omitempty"`
	Template        *Template     `json:"template,omitempty"`
	UID             string        `json:"uid,omitempty"`
	UnmappedSmiles  string        `json:"unmapped_smiles"`
	CanonicalSmiles string        `json:"unmapped_smiles_canonicalized,omitempty"`
}

type chemicalReactionAlias ChemicalReaction

// UnmarshalJSON maps the upstream aliases onto the canonical fields and
// requires a reaction SMILES (either key).
func (r *ChemicalReaction) UnmarshalJSON(data []byte) error {
	var raw struct {
		chemicalReactionAlias
		ECNumbers      []EnzymeClass `json:"ecNumbers"`
		MultistepAlias *bool         `json:"multistep"`
		Educts         []Molecule    `json:"educts"`
		Smirks         string        `json:"smirks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ChemicalReaction(raw.chemicalReactionAlias)
	if len(r.EnzymeClasses) == 0 {
		r.EnzymeClasses = raw.ECNumbers
	}
	if len(r.Reactants) == 0 {
		r.Reactants = raw.Educts
	}
	if r.UnmappedSmiles == "" {
		r.UnmappedSmiles = raw.Smirks
	}
	if raw.MultistepAlias != nil {
		r.Multistep = *raw.MultistepAlias
	}
	if r.UnmappedSmiles == "" {
		return fmt.Errorf("reaction %q: missing reaction SMILES (smirks/unmapped_smiles)", r.Name)
	}
	return nil
}

// Normalize computes the canonical reaction SMILES and fills in missing
// UIDs. Explicitly provided UIDs are never overwritten: the reaction UID is
// the hash of the canonical unmapped SMILES, molecule UIDs are hashes of
// their SMILES.
func (r *ChemicalReaction) Normalize() error {
	canonical, err := chem.CanonicalizeReaction(r.UnmappedSmiles)
	if err != nil {
		return fmt.Errorf("canonicalize reaction %q: %w", r.Name, err)
	}
	r.CanonicalSmiles = canonical
	if r.UID == "" {
		uid, err := chem.HashString(canonical)
		if err != nil {
			return fmt.Errorf("hash reaction %q: %w", r.Name, err)
		}
		r.UID = uid
	}
	for _, side := range [][]Molecule{r.Reactants, r.Products} {
		for i := range side {
			if side[i].UID != "" || side[i].Smiles == "" {
				continue
			}
			uid, err := chem.HashString(side[i].Smiles)
			if err != nil {
				return fmt.Errorf("hash molecule %q: %w", side[i].Name, err)
			}
			side[i].UID = uid
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

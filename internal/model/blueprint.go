// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/metatree-dev/metatree/internal/chem"
)

// ChemicalClass describes the structural class of a reaction component.
type ChemicalClass struct {
	Name     string   `json:"name,omitempty"`
	Smarts   string   `json:"smarts,omitempty"`
	Examples []string `json:"examples,omitempty"`
}

// ReactionComponent is one reactant or product slot of a blueprint.
type ReactionComponent struct {
	Name  string        `json:"name,omitempty"`
	Class ChemicalClass `json:"chemical_classes"`
}

// Components groups the component slots by side.
type Components struct {
	Reactants []ReactionComponent `json:"reactants"`
	Products  []ReactionComponent `json:"products"`
}

// Blueprint is a reusable reaction pattern: component classes plus the
// templates that realize the transformation.
type Blueprint struct {
	Components     Components        `json:"components"`
	Description    string            `json:"description,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Name           string            `json:"name,omitempty"`
	NamerxnClass   string            `json:"namerxn_reaction_class,omitempty"`
	NamerxnNumbers []string          `json:"namerxn_reaction_numbers,omitempty"`
	Templates      []Template        `json:"templates,omitempty"`
	Version        string            `json:"version,omitempty"`
	UID            string            `json:"uid,omitempty"`
}

// ComputeUID derives the blueprint identity from its templates: the hash of
// the sorted template UIDs. The UID therefore depends only on the template
// set, not on component naming or ordering.
func (b *Blueprint) ComputeUID() error {
	if len(b.Templates) == 0 {
		return fmt.Errorf("blueprint %q: no templates", b.Name)
	}
	uids := make([]string, 0, len(b.Templates))
	for i := range b.Templates {
		if b.Templates[i].UID == "" {
			if err := b.Templates[i].ComputeUID(); err != nil {
				return err
			}
		}
		uids = append(uids, b.Templates[i].UID)
	}
	sort.Strings(uids)
	uid, err := chem.HashString(strings.Join(uids, ""))
	if err != nil {
		return fmt.Errorf("blueprint uid: %w", err)
	}
	b.UID = uid
	return nil
}

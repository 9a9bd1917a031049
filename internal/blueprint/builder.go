// SPDX-License-Identifier: MIT

// Package blueprint builds reusable reaction blueprints from reaction
// records, applies their templates to molecules and answers substructure
// queries over a blueprint set.
package blueprint

import (
	"errors"
	"fmt"

	"github.com/metatree-dev/metatree/internal/model"
)

var (
	ErrNoReaction  = errors.New("blueprint: reaction must be provided")
	ErrNoTemplate  = errors.New("blueprint: reaction has no template")
	ErrNoMolecules = errors.New("blueprint: molecules must be provided")
)

// FromReaction builds a blueprint from a reaction that already carries an
// extracted template. Component classes are seeded with the molecule SMILES
// as their structural pattern.
func FromReaction(r *model.ChemicalReaction) (*model.Blueprint, error) {
	if r == nil {
		return nil, ErrNoReaction
	}
	if r.Template == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoTemplate, r.Name)
	}

	bp := &model.Blueprint{
		Components: model.Components{
			Reactants: buildComponents(r.Reactants),
			Products:  buildComponents(r.Products),
		},
		Description:    r.Description,
		Name:           r.Name,
		NamerxnClass:   r.NamerxnClass,
		NamerxnNumbers: r.NamerxnNumbers,
		Templates:      []model.Template{*r.Template},
	}
	if err := bp.ComputeUID(); err != nil {
		return nil, err
	}
	return bp, nil
}

func buildComponents(molecules []model.Molecule) []model.ReactionComponent {
	components := make([]model.ReactionComponent, 0, len(molecules))
	for _, m := range molecules {
		components = append(components, model.ReactionComponent{
			Name: m.Name,
			Class: model.ChemicalClass{
				Name:   m.Name,
				Smarts: m.Smiles,
			},
		})
	}
	return components
}

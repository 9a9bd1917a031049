// SPDX-License-Identifier: MIT

package model

import (
	"fmt"

	"github.com/metatree-dev/metatree/internal/chem"
)

// Template is a reaction template extracted from an atom-mapped reaction.
// RetroSmarts is oriented products>>reactants; ForwardSmarts is the same
// pattern with the fields reversed.
type Template struct {
	ReactionString    string `json:"reaction_string"`
	ProductsTemplate  string `json:"products_template,omitempty"`
	ReactantsTemplate string `json:"reactants_template,omitempty"`
	ForwardSmarts     string `json:"template_fwd_smarts,omitempty"`
	RetroSmarts       string `json:"template_rwd_smarts,omitempty"`
	UID               string `json:"uid,omitempty"`
}

// ComputeUID derives the template identity from its source reaction string.
func (t *Template) ComputeUID() error {
	uid, err := chem.HashString(t.ReactionString)
	if err != nil {
		return fmt.Errorf("template uid: %w", err)
	}
	t.UID = uid
	return nil
}

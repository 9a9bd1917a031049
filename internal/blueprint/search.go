// SPDX-License-Identifier: MIT

package blueprint

import (
	"context"
	"fmt"
	"sort"

	"github.com/metatree-dev/metatree/internal/chem"
	"github.com/metatree-dev/metatree/internal/model"
)

// Searcher answers substructure queries over a blueprint set. The component
// patterns of every blueprint are parsed once at build time; a query matches
// a blueprint when any of its component structures contains the query as a
// substructure.
type Searcher struct {
	index map[string][]*chem.Mol // blueprint UID -> parsed component structures
}

// NewSearcher builds the search index. Components whose pattern does not
// parse are skipped rather than failing the whole index.
func NewSearcher(blueprints []model.Blueprint) *Searcher {
	index := make(map[string][]*chem.Mol, len(blueprints))
	for i := range blueprints {
		bp := &blueprints[i]
		var mols []*chem.Mol
		components := append(
			append([]model.ReactionComponent{}, bp.Components.Reactants...),
			bp.Components.Products...,
		)
		for _, c := range components {
			if c.Class.Smarts == "" {
				continue
			}
			m, err := chem.MolFromSmiles(c.Class.Smarts)
			if err != nil {
				continue
			}
			mols = append(mols, m)
		}
		index[bp.UID] = mols
	}
	return &Searcher{index: index}
}

// Len returns the number of indexed blueprints.
func (s *Searcher) Len() int { return len(s.index) }

// Search returns the UIDs of all blueprints containing the query as a
// substructure, sorted for deterministic output.
func (s *Searcher) Search(ctx context.Context, querySmiles string) ([]string, error) {
	query, err := chem.MolFromSmiles(querySmiles)
	if err != nil {
		return nil, fmt.Errorf("blueprint: query %q: %w", querySmiles, err)
	}

	var matched []string
	for uid, mols := range s.index {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range mols {
			if m.HasSubstructMatch(query) {
				matched = append(matched, uid)
				break
			}
		}
	}
	sort.Strings(matched)
	return matched, nil
}

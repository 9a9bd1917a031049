// SPDX-License-Identifier: MIT

package envipath

import (
	"context"
	"encoding/json"
	"fmt"

	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/model"
)

// Extractor pulls the reactions of one package and decodes them into
// reaction records.
type Extractor struct {
	client *Client
	pkg    Package
}

// NewExtractor builds an extractor for a registered package key.
func NewExtractor(client *Client, packageKey string) (*Extractor, error) {
	pkg, err := LookupPackage(packageKey)
	if err != nil {
		return nil, err
	}
	return &Extractor{client: client, pkg: pkg}, nil
}

// Package returns the package the extractor is bound to.
func (e *Extractor) Package() Package { return e.pkg }

// ExtractReactions downloads up to limit reactions (0 = all), decodes them
// and stamps the originating dataset. A negative limit is rejected.
func (e *Extractor) ExtractReactions(ctx context.Context, limit int) ([]model.ChemicalReaction, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrLimitExceeded, limit)
	}
	logger := xglog.WithComponentFromContext(ctx, "envipath")

	refs, err := e.client.ReactionRefs(ctx, e.pkg.Path)
	if err != nil {
		return nil, fmt.Errorf("list reactions of %s: %w", e.pkg.Name, err)
	}
	if limit > 0 && limit < len(refs) {
		refs = refs[:limit]
	}

	reactions := make([]model.ChemicalReaction, 0, len(refs))
	for _, ref := range refs {
		raw, err := e.client.Reaction(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch reaction %q: %w", ref.ID, err)
		}
		var reaction model.ChemicalReaction
		if err := json.Unmarshal(raw, &reaction); err != nil {
			return nil, fmt.Errorf("decode reaction %q: %w", ref.ID, err)
		}
		reaction.Dataset = e.pkg.Name
		reactions = append(reactions, reaction)
	}

	logger.Info().
		Str("event", "extract.success").
		Str(xglog.FieldPackage, e.pkg.Name).
		Int(xglog.FieldReactions, len(reactions)).
		Msg("reactions extracted")
	return reactions, nil
}

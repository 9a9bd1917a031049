// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"

	"github.com/metatree-dev/metatree/internal/blueprint"
	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/mapping"
	"github.com/metatree-dev/metatree/internal/metrics"
)

// MappingResult is the outcome of merging external atom-mapping output.
type MappingResult struct {
	Applied    int `json:"applied"`
	Templates  int `json:"templates"`
	Blueprints int `json:"blueprints"`
}

// MappingExport builds the atom-mapping work list from the catalog: one
// entry per reaction, keyed by UID, for an external mapping tool.
func (r *Runner) MappingExport(ctx context.Context) ([]mapping.Entry, error) {
	reactions, err := r.stores.Catalog.ListReactions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("mapping export: %w", err)
	}
	return mapping.NewManager(reactions).ExportList(), nil
}

// ApplyMapping merges mapped SMILES into the catalog reactions, then
// re-derives templates and blueprints and refreshes the search index.
func (r *Runner) ApplyMapping(ctx context.Context, entries []mapping.Entry) (*MappingResult, error) {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	reactions, err := r.stores.Catalog.ListReactions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("apply mapping: %w", err)
	}

	manager := mapping.NewManager(reactions)
	applied := manager.Apply(ctx, entries)
	if applied == 0 {
		return &MappingResult{}, nil
	}

	templates := r.extractTemplates(ctx, reactions)
	blueprints, err := r.buildBlueprints(ctx, reactions)
	if err != nil {
		return nil, fmt.Errorf("apply mapping: %w", err)
	}
	if err := r.persist(ctx, reactions, blueprints); err != nil {
		return nil, fmt.Errorf("apply mapping: %w", err)
	}

	r.mu.Lock()
	r.searcher = blueprint.NewSearcher(blueprints)
	r.status.Templates = templates
	r.status.Blueprints = len(blueprints)
	r.mu.Unlock()

	metrics.RecordBlueprintCount(len(blueprints))

	logger.Info().
		Str("event", "mapping.merged").
		Int("applied", applied).
		Int("templates", templates).
		Int("blueprints", len(blueprints)).
		Msg("mapping output merged")
	return &MappingResult{Applied: applied, Templates: templates, Blueprints: len(blueprints)}, nil
}

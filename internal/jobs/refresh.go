// SPDX-License-Identifier: MIT

// Package jobs runs the refresh pipeline: fetch reactions from enviPath,
// normalize them, extract templates, build blueprints and persist the
// result.
package jobs

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/metatree-dev/metatree/internal/blueprint"
	"github.com/metatree-dev/metatree/internal/envipath"
	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/metrics"
	"github.com/metatree-dev/metatree/internal/model"
	"github.com/metatree-dev/metatree/internal/store"
	"github.com/metatree-dev/metatree/internal/template"
)

// fetchParallelism bounds how many packages are fetched at once,
// extractParallelism how many templates are extracted at once.
const (
	fetchParallelism   = 3
	extractParallelism = 8
)

// Status is the outcome of the last refresh run.
type Status struct {
	LastRun    time.Time `json:"last_run"`
	RunID      string    `json:"run_id,omitempty"`
	Reactions  int       `json:"reactions"`
	Templates  int       `json:"templates"`
	Blueprints int       `json:"blueprints"`
	Error      string    `json:"error,omitempty"`
}

// Config holds the refresh pipeline settings.
type Config struct {
	EnviPathHost  string
	Packages      []string // registry keys
	FetchLimit    int      // reactions per package, 0 = all
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Stores groups the persistence layers the pipeline writes to.
type Stores struct {
	Disk       *store.DiskStore
	Blueprints *store.BlueprintStore
	Catalog    *store.Catalog
}

// Runner executes refresh runs and keeps the current status and the
// substructure search index.
type Runner struct {
	cfg    Config
	stores Stores
	client *envipath.Client

	mu       sync.RWMutex
	status   Status
	searcher *blueprint.Searcher
}

// NewRunner validates the configuration and builds a runner.
func NewRunner(cfg Config, stores Stores) (*Runner, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	client := envipath.New(cfg.EnviPathHost,
		envipath.WithRetry(cfg.RetryAttempts, cfg.RetryBackoff),
	)
	return &Runner{
		cfg:      cfg,
		stores:   stores,
		client:   client,
		searcher: blueprint.NewSearcher(nil),
	}, nil
}

func validateConfig(cfg Config) error {
	u, err := url.Parse(cfg.EnviPathHost)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("jobs: invalid enviPath host %q", cfg.EnviPathHost)
	}
	if len(cfg.Packages) == 0 {
		return fmt.Errorf("jobs: no packages configured")
	}
	for _, key := range cfg.Packages {
		if _, err := envipath.LookupPackage(key); err != nil {
			return fmt.Errorf("jobs: %w", err)
		}
	}
	if cfg.FetchLimit < 0 {
		return fmt.Errorf("jobs: fetch limit must not be negative")
	}
	return nil
}

// Status returns a copy of the last run outcome.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Searcher returns the current substructure search index.
func (r *Runner) Searcher() *blueprint.Searcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.searcher
}

// Restore rebuilds the in-memory state from the persisted snapshots, used
// at startup so searches work before the first refresh.
func (r *Runner) Restore(ctx context.Context) error {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	blueprints, err := r.stores.Disk.LoadBlueprints(ctx)
	if err != nil {
		return fmt.Errorf("jobs: restore blueprints: %w", err)
	}
	count, err := r.stores.Catalog.CountReactions(ctx)
	if err != nil {
		return fmt.Errorf("jobs: restore catalog count: %w", err)
	}

	r.mu.Lock()
	r.searcher = blueprint.NewSearcher(blueprints)
	r.status.Reactions = count
	r.status.Blueprints = len(blueprints)
	r.mu.Unlock()

	metrics.RecordBlueprintCount(len(blueprints))
	metrics.RecordCatalogReactions(count)

	logger.Info().
		Str("event", "restore.success").
		Int("blueprints", len(blueprints)).
		Int(xglog.FieldReactions, count).
		Msg("state restored from disk")
	return nil
}

// Refresh performs one complete pipeline run. Per-reaction normalization
// and template failures are logged and skipped; stage-level failures abort
// the run.
func (r *Runner) Refresh(ctx context.Context) (*Status, error) {
	runID := uuid.NewString()
	ctx = xglog.ContextWithRunID(ctx, runID)
	logger := xglog.WithComponentFromContext(ctx, "jobs").With().Str(xglog.FieldRunID, runID).Logger()

	start := time.Now()
	defer func() {
		metrics.ObserveRefreshDuration(time.Since(start).Seconds())
	}()

	logger.Info().
		Str("event", "refresh.start").
		Strs("packages", r.cfg.Packages).
		Msg("starting refresh")

	reactions, err := r.fetchAll(ctx)
	if err != nil {
		metrics.IncRefreshFailure("fetch")
		return r.fail(runID, err)
	}

	normalized := r.normalize(ctx, reactions)
	templates := r.extractTemplates(ctx, normalized)
	blueprints, err := r.buildBlueprints(ctx, normalized)
	if err != nil {
		metrics.IncRefreshFailure("blueprint")
		return r.fail(runID, err)
	}

	if err := r.persist(ctx, normalized, blueprints); err != nil {
		metrics.IncRefreshFailure("persist")
		return r.fail(runID, err)
	}

	status := Status{
		LastRun:    time.Now(),
		RunID:      runID,
		Reactions:  len(normalized),
		Templates:  templates,
		Blueprints: len(blueprints),
	}

	r.mu.Lock()
	r.status = status
	r.searcher = blueprint.NewSearcher(blueprints)
	r.mu.Unlock()

	metrics.RecordBlueprintCount(len(blueprints))
	metrics.RecordCatalogReactions(len(normalized))

	logger.Info().
		Str("event", "refresh.success").
		Int(xglog.FieldReactions, status.Reactions).
		Int("templates", status.Templates).
		Int("blueprints", status.Blueprints).
		Dur("duration", time.Since(start)).
		Msg("refresh complete")
	return &status, nil
}

func (r *Runner) fail(runID string, err error) (*Status, error) {
	status := Status{LastRun: time.Now(), RunID: runID, Error: err.Error()}
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
	return nil, err
}

// fetchAll pulls the configured packages concurrently.
func (r *Runner) fetchAll(ctx context.Context) ([]model.ChemicalReaction, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)

	results := make([][]model.ChemicalReaction, len(r.cfg.Packages))
	for i, key := range r.cfg.Packages {
		i, key := i, key
		g.Go(func() error {
			extractor, err := envipath.NewExtractor(r.client, key)
			if err != nil {
				return err
			}
			reactions, err := extractor.ExtractReactions(ctx, r.cfg.FetchLimit)
			if err != nil {
				metrics.IncFetchError(extractor.Package().Name)
				return fmt.Errorf("fetch %s: %w", key, err)
			}
			metrics.RecordReactionsFetched(extractor.Package().Name, len(reactions))
			results[i] = reactions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []model.ChemicalReaction
	for _, batch := range results {
		all = append(all, batch...)
	}
	return all, nil
}

// normalize canonicalizes every reaction and assigns UIDs. Reactions that
// fail to canonicalize are dropped with a warning.
func (r *Runner) normalize(ctx context.Context, reactions []model.ChemicalReaction) []model.ChemicalReaction {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	out := make([]model.ChemicalReaction, 0, len(reactions))
	for i := range reactions {
		if err := reactions[i].Normalize(); err != nil {
			logger.Warn().
				Err(err).
				Str("event", "normalize.skip").
				Str("name", reactions[i].Name).
				Msg("reaction dropped")
			continue
		}
		out = append(out, reactions[i])
	}
	return out
}

// extractTemplates attaches a template to every mapped reaction, bounded
// concurrency across reactions, and returns how many extractions succeeded.
// Unmapped reactions and extraction errors are skipped.
func (r *Runner) extractTemplates(ctx context.Context, reactions []model.ChemicalReaction) int {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	var extracted atomic.Int64
	var g errgroup.Group
	g.SetLimit(extractParallelism)
	for i := range reactions {
		if reactions[i].MappedSmiles == "" {
			continue
		}
		i := i
		g.Go(func() error {
			if err := template.FromReaction(&reactions[i]); err != nil {
				metrics.IncTemplateExtraction("failure")
				logger.Warn().
					Err(err).
					Str("event", "template.skip").
					Str(xglog.FieldUID, reactions[i].UID).
					Msg("template extraction failed")
				return nil
			}
			metrics.IncTemplateExtraction("success")
			extracted.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(extracted.Load())
}

// buildBlueprints derives blueprints from all reactions carrying templates,
// deduplicated by UID.
func (r *Runner) buildBlueprints(ctx context.Context, reactions []model.ChemicalReaction) ([]model.Blueprint, error) {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	seen := make(map[string]bool)
	var blueprints []model.Blueprint
	for i := range reactions {
		if reactions[i].Template == nil {
			continue
		}
		bp, err := blueprint.FromReaction(&reactions[i])
		if err != nil {
			return nil, err
		}
		if seen[bp.UID] {
			continue
		}
		seen[bp.UID] = true
		blueprints = append(blueprints, *bp)
	}

	logger.Info().
		Str("event", "blueprints.built").
		Int("blueprints", len(blueprints)).
		Msg("blueprints derived")
	return blueprints, nil
}

// persist writes snapshots, catalog rows and the blueprint store.
func (r *Runner) persist(ctx context.Context, reactions []model.ChemicalReaction, blueprints []model.Blueprint) error {
	byDataset := make(map[string][]model.ChemicalReaction)
	for i := range reactions {
		byDataset[reactions[i].Dataset] = append(byDataset[reactions[i].Dataset], reactions[i])
	}
	for dataset, batch := range byDataset {
		if dataset == "" {
			dataset = "unknown"
		}
		if err := r.stores.Disk.SaveReactions(ctx, dataset, batch); err != nil {
			return fmt.Errorf("persist snapshot %s: %w", dataset, err)
		}
	}

	if err := r.stores.Catalog.UpsertReactions(ctx, reactions); err != nil {
		return fmt.Errorf("persist catalog: %w", err)
	}
	if err := r.stores.Blueprints.PutAll(ctx, blueprints); err != nil {
		return fmt.Errorf("persist blueprints: %w", err)
	}
	if err := r.stores.Disk.SaveBlueprints(ctx, blueprints); err != nil {
		return fmt.Errorf("persist blueprint snapshot: %w", err)
	}
	return nil
}

// RunPeriodic refreshes on a fixed interval until the context is canceled.
func (r *Runner) RunPeriodic(ctx context.Context, interval time.Duration) {
	logger := xglog.WithComponentFromContext(ctx, "jobs")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil {
				logger.Error().
					Err(err).
					Str("event", "refresh.periodic_failed").
					Msg("periodic refresh failed")
			}
		}
	}
}

// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/model"
)

// DiskStore writes dataset snapshots as JSON files below a data directory.
// Writes are atomic and durable: renameio fsyncs the temp file before the
// rename, so a crash never leaves a partial snapshot behind.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the data directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: data directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the data directory.
func (s *DiskStore) Dir() string { return s.dir }

// SaveReactions writes one dataset snapshot to reactions_<dataset>.json.
func (s *DiskStore) SaveReactions(ctx context.Context, dataset string, reactions []model.ChemicalReaction) error {
	if dataset == "" {
		return fmt.Errorf("store: dataset must not be empty")
	}
	path := filepath.Join(s.dir, "reactions_"+strings.ToLower(dataset)+".json")
	return s.writeJSON(ctx, path, reactions)
}

// LoadReactions reads every reactions_*.json snapshot in the data directory,
// sorted by file name so load order is deterministic.
func (s *DiskStore) LoadReactions(ctx context.Context) ([]model.ChemicalReaction, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "reactions_*.json"))
	if err != nil {
		return nil, fmt.Errorf("store: glob snapshots: %w", err)
	}
	sort.Strings(paths)

	var all []model.ChemicalReaction
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var batch []model.ChemicalReaction
		if err := readJSON(path, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
	return all, nil
}

// SaveBlueprints writes the blueprint snapshot.
func (s *DiskStore) SaveBlueprints(ctx context.Context, blueprints []model.Blueprint) error {
	return s.writeJSON(ctx, filepath.Join(s.dir, "blueprints.json"), blueprints)
}

// LoadBlueprints reads the blueprint snapshot. A missing file is not an
// error: it returns an empty slice.
func (s *DiskStore) LoadBlueprints(ctx context.Context) ([]model.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, "blueprints.json")
	var blueprints []model.Blueprint
	if err := readJSON(path, &blueprints); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return blueprints, nil
}

func (s *DiskStore) writeJSON(ctx context.Context, path string, v any) error {
	logger := xglog.WithComponentFromContext(ctx, "store")

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("store: create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending snapshot")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("store: atomically replace %s: %w", filepath.Base(path), err)
	}

	logger.Debug().
		Str("event", "snapshot.written").
		Str(xglog.FieldPath, path).
		Msg("snapshot written")
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

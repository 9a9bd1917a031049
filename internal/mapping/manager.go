// SPDX-License-Identifier: MIT

// Package mapping handles the atom-mapping round trip: export the canonical
// reaction SMILES for an external mapping tool and merge its output back in.
package mapping

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/model"
)

var ErrUnsupportedFormat = errors.New("mapping: unsupported file format")

// Entry is one mapping exchange record. Export writes input_string, the
// external tool answers with output_string under the same query_id.
type Entry struct {
	InputString  string `json:"input_string,omitempty"`
	OutputString string `json:"output_string,omitempty"`
	QueryID      string `json:"query_id"`
}

// Manager owns the reaction set during a mapping round trip.
type Manager struct {
	reactions []model.ChemicalReaction
}

// NewManager wraps the reactions to be mapped. The slice is shared, not
// copied: Apply mutates the caller's records.
func NewManager(reactions []model.ChemicalReaction) *Manager {
	return &Manager{reactions: reactions}
}

// Reactions returns the managed reaction slice.
func (m *Manager) Reactions() []model.ChemicalReaction { return m.reactions }

// ExportList builds the mapping work list: one entry per reaction with the
// canonical SMILES as input and the reaction UID as correlation key.
func (m *Manager) ExportList() []Entry {
	entries := make([]Entry, 0, len(m.reactions))
	for i := range m.reactions {
		r := &m.reactions[i]
		smiles := r.CanonicalSmiles
		if smiles == "" {
			smiles = r.UnmappedSmiles
		}
		entries = append(entries, Entry{InputString: smiles, QueryID: r.UID})
	}
	return entries
}

// SaveExport writes the work list as a JSON file, atomically.
func (m *Manager) SaveExport(ctx context.Context, path string) error {
	logger := xglog.WithComponentFromContext(ctx, "mapping")

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("mapping: create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending export")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.ExportList()); err != nil {
		return fmt.Errorf("mapping: encode export: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("mapping: replace export file: %w", err)
	}
	return nil
}

// LoadMapped reads mapped results from disk. The format follows the file
// extension: .json expects a list of entries with output_string set, .smi
// expects one "SMILES query_id" pair per line.
func LoadMapped(path string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadMappedJSON(path)
	case ".smi":
		return loadMappedSmi(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func loadMappedJSON(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", filepath.Base(path), err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("mapping: decode %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// loadMappedSmi parses the SMILES line format. Lines that do not consist
// of exactly a SMILES string and a query id are skipped.
func loadMappedSmi(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		entries = append(entries, Entry{OutputString: parts[0], QueryID: parts[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mapping: scan %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

// Apply merges mapped results into the reaction set by UID and returns how
// many reactions received a mapped SMILES. Entries with unknown query ids
// or empty output are ignored.
func (m *Manager) Apply(ctx context.Context, mapped []Entry) int {
	logger := xglog.WithComponentFromContext(ctx, "mapping")

	byUID := make(map[string]string, len(mapped))
	for _, e := range mapped {
		if e.QueryID == "" || e.OutputString == "" {
			continue
		}
		byUID[e.QueryID] = e.OutputString
	}

	applied := 0
	for i := range m.reactions {
		if smiles, ok := byUID[m.reactions[i].UID]; ok {
			m.reactions[i].MappedSmiles = smiles
			applied++
		}
	}

	logger.Info().
		Str("event", "mapping.applied").
		Int(xglog.FieldReactions, applied).
		Int("entries", len(mapped)).
		Msg("mapped reactions merged")
	return applied
}

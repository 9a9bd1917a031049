// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/metatree-dev/metatree/internal/blueprint"
	"github.com/metatree-dev/metatree/internal/chem"
	xglog "github.com/metatree-dev/metatree/internal/log"
	"github.com/metatree-dev/metatree/internal/mapping"
	"github.com/metatree-dev/metatree/internal/metrics"
	"github.com/metatree-dev/metatree/internal/store"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleRefresh triggers one pipeline run. Concurrent triggers are
// rejected with 409 while a run is in flight.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.refreshing.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "refresh already running")
		return
	}
	defer s.refreshing.Store(false)

	status, err := s.refreshFn(r.Context())
	if err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str("event", "refresh.failed").
			Msg("refresh run failed")
		writeError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleListReactions(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")
	reactions, err := s.catalog.ListReactions(r.Context(), dataset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list reactions: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(reactions),
		"reactions": reactions,
	})
}

func (s *Server) handleGetReaction(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	reaction, err := s.catalog.GetReaction(r.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get reaction: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reaction)
}

func (s *Server) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	bp, err := s.blueprints.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blueprint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get blueprint: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

// handleSearch answers substructure queries over the blueprint index. The
// canonical query SMILES is the cache key, so spelling variants share one
// cache entry.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("smiles")
	if query == "" {
		metrics.IncSearchRequest("invalid")
		writeError(w, http.StatusBadRequest, "missing smiles query parameter")
		return
	}

	canonical, err := chem.CanonicalSmiles(query)
	if err != nil {
		metrics.IncSearchRequest("invalid")
		writeError(w, http.StatusBadRequest, "invalid smiles: "+err.Error())
		return
	}

	start := time.Now()
	defer func() {
		metrics.ObserveSearchDuration(time.Since(start).Seconds())
	}()

	if hits, ok := s.results.Get(canonical); ok {
		metrics.IncSearchRequest("cache_hit")
		writeSearchResult(w, query, hits)
		return
	}

	hits, err := s.runner.Searcher().Search(r.Context(), canonical)
	if err != nil {
		metrics.IncSearchRequest("error")
		writeError(w, http.StatusInternalServerError, "search: "+err.Error())
		return
	}
	s.results.Set(canonical, hits, s.cacheTTL)

	metrics.IncSearchRequest("success")
	writeSearchResult(w, query, hits)
}

// handleApplyBlueprint runs one of a blueprint's templates against the
// posted molecules and returns the predicted fragments. An empty result
// means the molecules did not cover the template pattern.
func (s *Server) handleApplyBlueprint(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	bp, err := s.blueprints.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blueprint not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get blueprint: "+err.Error())
		return
	}

	var req struct {
		TemplateIndex int      `json:"template_index"`
		Direction     string   `json:"direction"`
		Molecules     []string `json:"molecules"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid apply payload: "+err.Error())
		return
	}
	direction := blueprint.Direction(req.Direction)
	if direction == "" {
		direction = blueprint.DirectionForward
	}

	products, err := blueprint.Apply(bp, req.TemplateIndex, direction, req.Molecules)
	if err != nil {
		writeError(w, http.StatusBadRequest, "apply blueprint: "+err.Error())
		return
	}
	if products == nil {
		products = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"blueprint": uid,
		"direction": direction,
		"matched":   len(products) > 0,
		"products":  products,
	})
}

// handleMappingExport returns the atom-mapping work list: every catalog
// reaction as an input SMILES keyed by UID, ready for an external mapper.
func (s *Server) handleMappingExport(w http.ResponseWriter, r *http.Request) {
	entries, err := s.runner.MappingExport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "mapping export: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

// handleMappingApply merges mapped SMILES posted by the client back into the
// catalog and rebuilds templates and blueprints.
func (s *Server) handleMappingApply(w http.ResponseWriter, r *http.Request) {
	var entries []mapping.Entry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mapping payload: "+err.Error())
		return
	}
	result, err := s.runner.ApplyMapping(r.Context(), entries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "apply mapping: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeSearchResult(w http.ResponseWriter, query string, hits []string) {
	if hits == nil {
		hits = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      query,
		"count":      len(hits),
		"blueprints": hits,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := xglog.WithComponent("api")
		logger.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"error": http.StatusText(status), "detail": detail})
}

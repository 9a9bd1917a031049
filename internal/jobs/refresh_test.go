// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metatree-dev/metatree/internal/envipath"
	"github.com/metatree-dev/metatree/internal/model"
	"github.com/metatree-dev/metatree/internal/store"
)

// newPipelineMock serves one EAWAG_SOIL package with two reactions, one of
// them atom-mapped so the template and blueprint stages have work to do.
func newPipelineMock(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	soil, err := envipath.LookupPackage("eawag_soil")
	require.NoError(t, err)

	mux.HandleFunc(soil.Path+"/reaction", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"reaction":[
			{"id":"%[1]s/reaction/1","name":"ethanol oxidation"},
			{"id":"%[1]s/reaction/2","name":"ester hydrolysis"}
		]}`, server.URL)
	})
	mux.HandleFunc("/reaction/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name":"ethanol oxidation",
			"smirks":"CCO>>CC=O",
			"mapped_smiles":"[CH3:1][CH2:2][OH:3]>>[CH3:1][CH:2]=[O:3]",
			"educts":[{"compoundName":"ethanol","smiles":"CCO"}],
			"products":[{"compoundName":"acetaldehyde","smiles":"CC=O"}]
		}`))
	})
	mux.HandleFunc("/reaction/2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name":"ester hydrolysis",
			"smirks":"CC(=O)OC.O>>CC(=O)O.CO"
		}`))
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testStores(t *testing.T) Stores {
	t.Helper()
	dir := t.TempDir()

	disk, err := store.NewDiskStore(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)

	bps, err := store.OpenInMemoryBlueprintStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bps.Close() })

	catalog, err := store.OpenCatalog(filepath.Join(dir, "catalog.db"), store.DefaultSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	return Stores{Disk: disk, Blueprints: bps, Catalog: catalog}
}

func testConfig(host string) Config {
	return Config{
		EnviPathHost:  host,
		Packages:      []string{"eawag_soil"},
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
	}
}

func TestNewRunnerValidation(t *testing.T) {
	stores := testStores(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad host", func(c *Config) { c.EnviPathHost = "not-a-url" }},
		{"no packages", func(c *Config) { c.Packages = nil }},
		{"unknown package", func(c *Config) { c.Packages = []string{"mystery"} }},
		{"negative limit", func(c *Config) { c.FetchLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("https://envipath.org")
			tt.mutate(&cfg)
			_, err := NewRunner(cfg, stores)
			assert.Error(t, err)
		})
	}
}

func TestRefresh(t *testing.T) {
	server := newPipelineMock(t)
	stores := testStores(t)

	runner, err := NewRunner(testConfig(server.URL), stores)
	require.NoError(t, err)

	ctx := context.Background()
	status, err := runner.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, status.Reactions)
	assert.Equal(t, 1, status.Templates)
	assert.Equal(t, 1, status.Blueprints)
	assert.Empty(t, status.Error)
	assert.NotEmpty(t, status.RunID)
	assert.False(t, status.LastRun.IsZero())

	// status is retained on the runner
	assert.Equal(t, *status, runner.Status())

	// catalog has both reactions, normalized with UIDs
	reactions, err := stores.Catalog.ListReactions(ctx, "EAWAG_SOIL")
	require.NoError(t, err)
	require.Len(t, reactions, 2)
	for _, r := range reactions {
		assert.NotEmpty(t, r.UID)
		assert.NotEmpty(t, r.CanonicalSmiles)
	}

	// the blueprint landed in the key-value store
	n, err := stores.Blueprints.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// and the search index answers queries
	matches, err := runner.Searcher().Search(ctx, "CCO")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRefreshIdempotent(t *testing.T) {
	server := newPipelineMock(t)
	stores := testStores(t)

	runner, err := NewRunner(testConfig(server.URL), stores)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := runner.Refresh(ctx)
	require.NoError(t, err)
	second, err := runner.Refresh(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.Reactions, second.Reactions)

	// upserts, not duplicates
	count, err := stores.Catalog.CountReactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExtractTemplates(t *testing.T) {
	r := &Runner{}
	reactions := []model.ChemicalReaction{
		{Name: "oxidation", MappedSmiles: "[CH3:1][CH2:2][OH:3]>>[CH3:1][CH:2]=[O:3]"},
		{Name: "hydrolysis", MappedSmiles: "[CH3:1][C:2](=[O:3])[O:4][CH3:5].[OH2:6]>>[CH3:1][C:2](=[O:3])[OH:6].[CH3:5][OH:4]"},
		{Name: "unmapped"},
		{Name: "no maps", MappedSmiles: "CCO>>CC=O"},
	}

	got := r.extractTemplates(context.Background(), reactions)

	assert.Equal(t, 2, got)
	assert.NotNil(t, reactions[0].Template)
	assert.NotNil(t, reactions[1].Template)
	assert.Nil(t, reactions[2].Template)
	assert.Nil(t, reactions[3].Template)
}

func TestRefreshUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	stores := testStores(t)
	runner, err := NewRunner(testConfig(server.URL), stores)
	require.NoError(t, err)

	_, err = runner.Refresh(context.Background())
	require.Error(t, err)

	status := runner.Status()
	assert.NotEmpty(t, status.Error)
	assert.Zero(t, status.Reactions)
}

func TestRestore(t *testing.T) {
	server := newPipelineMock(t)
	stores := testStores(t)

	ctx := context.Background()
	runner, err := NewRunner(testConfig(server.URL), stores)
	require.NoError(t, err)
	_, err = runner.Refresh(ctx)
	require.NoError(t, err)

	// a fresh runner over the same stores picks the state back up
	restored, err := NewRunner(testConfig(server.URL), stores)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(ctx))

	status := restored.Status()
	assert.Equal(t, 2, status.Reactions)
	assert.Equal(t, 1, status.Blueprints)

	matches, err := restored.Searcher().Search(ctx, "CCO")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

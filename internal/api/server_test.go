// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metatree-dev/metatree/internal/cache"
	"github.com/metatree-dev/metatree/internal/envipath"
	"github.com/metatree-dev/metatree/internal/jobs"
	"github.com/metatree-dev/metatree/internal/mapping"
	"github.com/metatree-dev/metatree/internal/model"
	"github.com/metatree-dev/metatree/internal/store"
)

type testEnv struct {
	server *Server
	stores jobs.Stores
	http   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	upstream := newUpstreamMock(t)
	dir := t.TempDir()

	disk, err := store.NewDiskStore(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	bps, err := store.OpenInMemoryBlueprintStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bps.Close() })
	catalog, err := store.OpenCatalog(filepath.Join(dir, "catalog.db"), store.DefaultSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	stores := jobs.Stores{Disk: disk, Blueprints: bps, Catalog: catalog}
	runner, err := jobs.NewRunner(jobs.Config{
		EnviPathHost:  upstream.URL,
		Packages:      []string{"eawag_soil"},
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
	}, stores)
	require.NoError(t, err)

	srv := New(Options{
		Runner:     runner,
		Catalog:    catalog,
		Blueprints: bps,
		Results:    cache.NewMemoryCache(0),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, stores: stores, http: ts}
}

func newUpstreamMock(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server

	soil, err := envipath.LookupPackage("eawag_soil")
	require.NoError(t, err)

	mux.HandleFunc(soil.Path+"/reaction", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"reaction":[{"id":"%s/reaction/1","name":"ethanol oxidation"}]}`, server.URL)
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

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func postJSON(t *testing.T, url string, out any) int {
	t.Helper()
	res, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]any
	code := getJSON(t, env.http.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestRefreshAndQuery(t *testing.T) {
	env := newTestEnv(t)

	var status jobs.Status
	code := postJSON(t, env.http.URL+"/api/refresh", &status)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, status.Reactions)
	assert.Equal(t, 1, status.Blueprints)

	// status endpoint reflects the run
	var fromEndpoint jobs.Status
	code = getJSON(t, env.http.URL+"/api/status", &fromEndpoint)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, status.RunID, fromEndpoint.RunID)

	// list reactions, filtered by dataset
	var listing struct {
		Count     int `json:"count"`
		Reactions []struct {
			UID     string `json:"uid"`
			Dataset string `json:"dataset"`
		} `json:"reactions"`
	}
	code = getJSON(t, env.http.URL+"/api/reactions?dataset=EAWAG_SOIL", &listing)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, listing.Count)
	uid := listing.Reactions[0].UID
	require.NotEmpty(t, uid)

	// fetch one reaction by UID
	var reaction map[string]any
	code = getJSON(t, env.http.URL+"/api/reactions/"+uid, &reaction)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ethanol oxidation", reaction["name"])

	code = getJSON(t, env.http.URL+"/api/reactions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestBlueprintLookup(t *testing.T) {
	env := newTestEnv(t)

	code := postJSON(t, env.http.URL+"/api/refresh", nil)
	require.Equal(t, http.StatusOK, code)

	var uid string
	require.NoError(t, env.stores.Blueprints.Scan(context.Background(), func(bp *model.Blueprint) error {
		uid = bp.UID
		return nil
	}))
	require.NotEmpty(t, uid)

	var bp model.Blueprint
	code = getJSON(t, env.http.URL+"/api/blueprints/"+uid, &bp)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, uid, bp.UID)
	assert.NotEmpty(t, bp.Templates)

	code = getJSON(t, env.http.URL+"/api/blueprints/unknown", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	code := postJSON(t, env.http.URL+"/api/refresh", nil)
	require.Equal(t, http.StatusOK, code)

	var result struct {
		Count      int      `json:"count"`
		Blueprints []string `json:"blueprints"`
	}
	code = getJSON(t, env.http.URL+"/api/search?smiles=CCO", &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, result.Count)

	// blueprint from search is retrievable
	var bp map[string]any
	code = getJSON(t, env.http.URL+"/api/blueprints/"+result.Blueprints[0], &bp)
	assert.Equal(t, http.StatusOK, code)

	// a spelling variant hits the cache via the canonical key
	code = getJSON(t, env.http.URL+"/api/search?smiles=OCC", &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, result.Count)
	assert.GreaterOrEqual(t, env.server.results.Stats().Hits, int64(1))

	// no hit for missing substructure
	code = getJSON(t, env.http.URL+"/api/search?smiles=S", &result)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, result.Count)
}

func TestSearchValidation(t *testing.T) {
	env := newTestEnv(t)

	code := getJSON(t, env.http.URL+"/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = getJSON(t, env.http.URL+"/api/search?smiles=C1CC", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestApplyBlueprint(t *testing.T) {
	env := newTestEnv(t)

	code := postJSON(t, env.http.URL+"/api/refresh", nil)
	require.Equal(t, http.StatusOK, code)

	var uid string
	require.NoError(t, env.stores.Blueprints.Scan(context.Background(), func(bp *model.Blueprint) error {
		uid = bp.UID
		return nil
	}))
	require.NotEmpty(t, uid)

	apply := func(t *testing.T, body string) (int, map[string]any) {
		t.Helper()
		res, err := http.Post(env.http.URL+"/api/blueprints/"+uid+"/apply", "application/json", bytes.NewReader([]byte(body)))
		require.NoError(t, err)
		defer res.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		return res.StatusCode, out
	}

	// forward: ethanol oxidizes to acetaldehyde
	code, out := apply(t, `{"direction":"forward","molecules":["CCO"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["matched"])
	assert.Contains(t, out["products"], "CC=O")

	// backward recovers the educt side
	code, out = apply(t, `{"direction":"backward","molecules":["CC=O"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, out["products"], "CCO")

	// molecules without the pattern do not match
	code, out = apply(t, `{"direction":"forward","molecules":["c1ccccc1"]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, out["matched"])

	// bad requests
	code, _ = apply(t, `{"direction":"sideways","molecules":["CCO"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = apply(t, `{"molecules":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)

	res, err := http.Post(env.http.URL+"/api/blueprints/unknown/apply", "application/json", bytes.NewReader([]byte(`{"molecules":["CCO"]}`)))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestMappingRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	code := postJSON(t, env.http.URL+"/api/refresh", nil)
	require.Equal(t, http.StatusOK, code)

	var export struct {
		Count   int             `json:"count"`
		Entries []mapping.Entry `json:"entries"`
	}
	code = getJSON(t, env.http.URL+"/api/mapping/export", &export)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, export.Count)
	assert.NotEmpty(t, export.Entries[0].InputString)
	assert.NotEmpty(t, export.Entries[0].QueryID)

	// post the mapper output back; the upstream already mapped this
	// reaction, so the merge re-derives the same single blueprint
	payload, err := json.Marshal([]mapping.Entry{{
		QueryID:      export.Entries[0].QueryID,
		OutputString: "[CH3:1][CH2:2][OH:3]>>[CH3:1][CH:2]=[O:3]",
	}})
	require.NoError(t, err)
	res, err := http.Post(env.http.URL+"/api/mapping/apply", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var result jobs.MappingResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&result))
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Blueprints)

	// malformed payload is rejected
	res2, err := http.Post(env.http.URL+"/api/mapping/apply", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
}

func TestRefreshConflict(t *testing.T) {
	env := newTestEnv(t)

	release := make(chan struct{})
	started := make(chan struct{})
	env.server.refreshFn = func(ctx context.Context) (*jobs.Status, error) {
		close(started)
		<-release
		return &jobs.Status{}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		postJSON(t, env.http.URL+"/api/refresh", nil)
	}()

	<-started
	code := postJSON(t, env.http.URL+"/api/refresh", nil)
	assert.Equal(t, http.StatusConflict, code)

	close(release)
	wg.Wait()
}

func TestRefreshFailure(t *testing.T) {
	env := newTestEnv(t)
	env.server.refreshFn = func(ctx context.Context) (*jobs.Status, error) {
		return nil, errors.New("upstream exploded")
	}

	var body map[string]string
	code := postJSON(t, env.http.URL+"/api/refresh", &body)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body["detail"], "upstream exploded")
}

func TestWriteJSONEncodeFailure(t *testing.T) {
	// unencodable payloads are logged, not panicked on
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.http.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "test-id-123")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "test-id-123", res.Header.Get("X-Request-Id"))

	// generated when absent
	res2, err := http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.NotEmpty(t, res2.Header.Get("X-Request-Id"))
}

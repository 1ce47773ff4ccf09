package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/platinummonkey/morp/pkg/cache"
	"github.com/platinummonkey/morp/pkg/changes"
	"github.com/platinummonkey/morp/pkg/dependencies"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	loader  *fakeLoader
	cache   *cache.MemoryCache
	metrics *observability.Metrics
}

// newTestServer serves util <- core <- web, core <- cli, plus a standalone docs package
func newTestServer(t *testing.T, load bool) *testServer {
	t.Helper()
	log := quietLogger()

	core := pkg("core", "util")
	core.Dependencies["lodash"] = "^4.17.21"
	loader := &fakeLoader{}
	loader.set(nil, pkg("util"), core, pkg("web", "core"), pkg("cli", "core"), pkg("docs"))

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	classifier, err := changes.NewPrefixClassifier("packages", "")
	require.NoError(t, err)

	memory := cache.NewMemoryCache(cache.DefaultConfig())
	reloader := NewReloader(loader.loadFunc(log), log, metrics)
	srv := New(Options{Classifier: classifier, Version: "test"}, reloader, memory, registry, metrics, log)

	if load {
		require.NoError(t, reloader.Reload(context.Background(), TriggerStartup))
	}
	return &testServer{Server: srv, loader: loader, cache: memory, metrics: metrics}
}

func (ts *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(dest))
}

func TestHandlers_NoSnapshot(t *testing.T) {
	ts := newTestServer(t, false)

	for _, target := range []string{"/api/v1/packages", "/api/v1/graph", "/api/v1/impact?changed=core", "/api/v1/order"} {
		w := ts.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}

	w := ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListPackages(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/packages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Packages []PackageInfo `json:"packages"`
		Count    int           `json:"count"`
	}
	decode(t, w, &resp)

	assert.Equal(t, 5, resp.Count)
	names := make([]string, 0, len(resp.Packages))
	for _, p := range resp.Packages {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"cli", "core", "docs", "util", "web"}, names)
	assert.Equal(t, []string{"util"}, resp.Packages[1].Dependencies)
	assert.Equal(t, []string{"cli", "web"}, resp.Packages[1].Dependents)
	assert.Equal(t, []string{"lodash"}, resp.Packages[1].External)
}

func TestGetPackage(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/packages/web", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info PackageInfo
	decode(t, w, &info)
	assert.Equal(t, "web", info.Name)
	assert.Equal(t, "packages/web", info.Dir)
	assert.Equal(t, []string{"core"}, info.Dependencies)
	assert.Empty(t, info.Dependents)

	w = ts.do(t, http.MethodGet, "/api/v1/packages/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDependencies(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/packages/core/dependencies", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Dependencies []string `json:"dependencies"`
	}
	decode(t, w, &resp)
	assert.Equal(t, []string{"util"}, resp.Dependencies)
}

func TestGetDependents(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		name   string
		target string
		status int
		want   []string
	}{
		{
			name:   "direct",
			target: "/api/v1/packages/util/dependents",
			status: http.StatusOK,
			want:   []string{"core"},
		},
		{
			name:   "transitive",
			target: "/api/v1/packages/util/dependents?transitive=true",
			status: http.StatusOK,
			want:   []string{"cli", "core", "web"},
		},
		{
			name:   "leaf",
			target: "/api/v1/packages/web/dependents?transitive=true",
			status: http.StatusOK,
			want:   []string{},
		},
		{
			name:   "bad flag",
			target: "/api/v1/packages/util/dependents?transitive=maybe",
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown package",
			target: "/api/v1/packages/missing/dependents",
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.status, w.Code)
			if tt.want == nil {
				return
			}

			var resp struct {
				Dependents []string `json:"dependents"`
			}
			decode(t, w, &resp)
			assert.Equal(t, tt.want, resp.Dependents)
		})
	}
}

func TestGetGraph(t *testing.T) {
	ts := newTestServer(t, true)

	t.Run("dot", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/graph", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/vnd.graphviz"))

		nodes, edges, err := dependencies.ParseDOT(w.Body)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"cli", "core", "docs", "util", "web"}, nodes)
		assert.ElementsMatch(t, []dependencies.Edge{
			{From: "cli", To: "core"},
			{From: "core", To: "util"},
			{From: "web", To: "core"},
		}, edges)
	})

	t.Run("json", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/graph?format=json", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Nodes []string            `json:"nodes"`
			Edges []dependencies.Edge `json:"edges"`
		}
		decode(t, w, &resp)
		assert.Len(t, resp.Nodes, 5)
		assert.Len(t, resp.Edges, 3)
	})

	t.Run("unsupported", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/graph?format=svg", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetCytoscape(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/graph/cytoscape?focus=web", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var graph dependencies.CytoscapeGraph
	decode(t, w, &graph)

	types := map[string]string{}
	for _, n := range graph.Nodes {
		types[n.Data.ID] = n.Data.Type
	}
	assert.Equal(t, map[string]string{
		"web":  dependencies.NodeTypeCurrent,
		"core": dependencies.NodeTypeDependency,
		"util": dependencies.NodeTypeDependency,
	}, types)

	w = ts.do(t, http.MethodGet, "/api/v1/graph/cytoscape?focus=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImpact(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		name         string
		method       string
		target       string
		body         interface{}
		wantImpacted []string
		wantUnknown  []string
	}{
		{
			name:         "query names",
			method:       http.MethodGet,
			target:       "/api/v1/impact?changed=util",
			wantImpacted: []string{"cli", "core", "util", "web"},
			wantUnknown:  []string{},
		},
		{
			name:         "query files",
			method:       http.MethodGet,
			target:       "/api/v1/impact?files=packages/core/src/index.ts,README.md",
			wantImpacted: []string{"cli", "core", "root", "web"},
			wantUnknown:  []string{"root"},
		},
		{
			name:         "json body",
			method:       http.MethodPost,
			target:       "/api/v1/impact",
			body:         ImpactRequest{Changed: []string{"docs"}, Files: []string{"packages/web/app.js"}},
			wantImpacted: []string{"docs", "web"},
			wantUnknown:  []string{},
		},
		{
			name:         "nothing changed",
			method:       http.MethodPost,
			target:       "/api/v1/impact",
			body:         ImpactRequest{},
			wantImpacted: []string{},
			wantUnknown:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var analysis dependencies.ImpactAnalysis
			decode(t, w, &analysis)
			assert.Equal(t, tt.wantImpacted, analysis.Impacted)
			assert.Equal(t, tt.wantUnknown, analysis.Unknown)
			assert.Equal(t, len(tt.wantImpacted)-len(analysis.Changed), analysis.TotalImpact)
		})
	}
}

func TestImpact_Cache(t *testing.T) {
	ts := newTestServer(t, true)

	first := ts.do(t, http.MethodGet, "/api/v1/impact?changed=core", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, cacheMiss, first.Header().Get(cacheHeader))

	// Seed order and duplicates share a cache entry
	second := ts.do(t, http.MethodPost, "/api/v1/impact", ImpactRequest{Changed: []string{"core", "core"}})
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, cacheHit, second.Header().Get(cacheHeader))

	var a, b dependencies.ImpactAnalysis
	decode(t, first, &a)
	decode(t, second, &b)
	assert.Equal(t, a.Impacted, b.Impacted)

	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.CacheHitsTotal.WithLabelValues(cache.TypeMemory)))
	assert.Equal(t, float64(1), testutil.ToFloat64(ts.metrics.CacheMissesTotal.WithLabelValues(cache.TypeMemory)))
}

func TestImpact_CacheSeparatesSeedSets(t *testing.T) {
	ts := newTestServer(t, true)

	joined := ts.do(t, http.MethodPost, "/api/v1/impact", ImpactRequest{Changed: []string{"core\nutil"}})
	require.Equal(t, http.StatusOK, joined.Code)
	assert.Equal(t, cacheMiss, joined.Header().Get(cacheHeader))

	split := ts.do(t, http.MethodPost, "/api/v1/impact", ImpactRequest{Changed: []string{"core", "util"}})
	require.Equal(t, http.StatusOK, split.Code)
	assert.Equal(t, cacheMiss, split.Header().Get(cacheHeader))

	var analysis dependencies.ImpactAnalysis
	decode(t, split, &analysis)
	assert.Equal(t, []string{"cli", "core", "util", "web"}, analysis.Impacted)
}

func TestImpact_CachePurgedOnGraphChange(t *testing.T) {
	ts := newTestServer(t, true)

	ts.do(t, http.MethodGet, "/api/v1/impact?changed=util", nil)
	require.Equal(t, 1, ts.cache.Len())

	// Same graph: entries survive
	require.NoError(t, ts.reloader.Reload(context.Background(), TriggerAPI))
	assert.Equal(t, 1, ts.cache.Len())

	ts.loader.set(nil, pkg("util"), pkg("core", "util"), pkg("web", "core"), pkg("cli", "core"), pkg("docs", "util"))
	require.NoError(t, ts.reloader.Reload(context.Background(), TriggerAPI))
	assert.Equal(t, 0, ts.cache.Len())

	w := ts.do(t, http.MethodGet, "/api/v1/impact?changed=util", nil)
	assert.Equal(t, cacheMiss, w.Header().Get(cacheHeader))

	var analysis dependencies.ImpactAnalysis
	decode(t, w, &analysis)
	assert.Contains(t, analysis.Impacted, "docs")
}

func TestImpact_BadRequests(t *testing.T) {
	ts := newTestServer(t, true)

	t.Run("unknown field", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/v1/impact", map[string]interface{}{"packages": []string{"core"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/impact", strings.NewReader("changed=core"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		ts.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("files without classifier", func(t *testing.T) {
		log := quietLogger()
		reloader := NewReloader(ts.loader.loadFunc(log), log, nil)
		require.NoError(t, reloader.Reload(context.Background(), TriggerStartup))
		srv := New(Options{}, reloader, nil, nil, nil, log)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/impact?files=packages/core/a.ts", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetOrder(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/order", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Order []string `json:"order"`
	}
	decode(t, w, &resp)
	assert.Equal(t, []string{"docs", "util", "core", "cli", "web"}, resp.Order)
}

func TestSnapshotEndpoints(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info SnapshotInfo
	decode(t, w, &info)
	assert.Equal(t, uint64(1), info.Generation)
	assert.Equal(t, 5, info.Packages)
	assert.Equal(t, 3, info.Edges)
	assert.NotEmpty(t, info.Fingerprint)

	w = ts.do(t, http.MethodPost, "/api/v1/snapshot/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &info)
	assert.Equal(t, uint64(2), info.Generation)

	t.Run("failed reload keeps snapshot", func(t *testing.T) {
		ts.loader.set(nil, pkg("a", "b"), pkg("b", "a"))

		w := ts.do(t, http.MethodPost, "/api/v1/snapshot/reload", nil)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp struct {
			Error   string            `json:"error"`
			Details map[string]string `json:"details"`
		}
		decode(t, w, &resp)
		assert.Contains(t, resp.Error, "cyclic dependencies")
		assert.NotEmpty(t, resp.Details["cycle"])

		w = ts.do(t, http.MethodGet, "/api/v1/snapshot", nil)
		decode(t, w, &info)
		assert.Equal(t, uint64(2), info.Generation)
		assert.Equal(t, 5, info.Packages)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, true)

	ts.do(t, http.MethodGet, "/api/v1/packages/core", nil)
	ts.do(t, http.MethodGet, "/api/v1/packages/web", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(
		ts.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/packages/{name}", "200")))

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `morp_snapshot_reloads_total{status="success",trigger="startup"} 1`)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, true)

	w := ts.do(t, http.MethodGet, "/api/v1/order", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

package server

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/morp/pkg/cache"
	"github.com/platinummonkey/morp/pkg/changes"
	"github.com/platinummonkey/morp/pkg/dependencies"
	"github.com/platinummonkey/morp/pkg/httputil"
	"github.com/platinummonkey/morp/pkg/observability"
)

// Cache status header values
const (
	cacheHeader = "X-Cache"
	cacheHit    = "HIT"
	cacheMiss   = "MISS"
)

// PackageInfo describes one package of the snapshot
type PackageInfo struct {
	Name         string   `json:"name"`
	Dir          string   `json:"dir,omitempty"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
	External     []string `json:"external"`
}

// ImpactRequest is the body of POST /api/v1/impact. Changed names and
// classified file paths are combined.
type ImpactRequest struct {
	Changed []string `json:"changed"`
	Files   []string `json:"files"`
}

// SnapshotInfo describes the live snapshot
type SnapshotInfo struct {
	Generation  uint64    `json:"generation"`
	LoadedAt    time.Time `json:"loaded_at"`
	Fingerprint string    `json:"fingerprint"`
	Packages    int       `json:"packages"`
	Edges       int       `json:"edges"`
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(s.metrics, routeTemplate))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/packages", s.listPackages).Methods(http.MethodGet)
	api.HandleFunc("/packages/{name}", s.getPackage).Methods(http.MethodGet)
	api.HandleFunc("/packages/{name}/dependencies", s.getDependencies).Methods(http.MethodGet)
	api.HandleFunc("/packages/{name}/dependents", s.getDependents).Methods(http.MethodGet)
	api.HandleFunc("/graph", s.getGraph).Methods(http.MethodGet)
	api.HandleFunc("/graph/cytoscape", s.getCytoscape).Methods(http.MethodGet)
	api.HandleFunc("/impact", s.getImpact).Methods(http.MethodGet)
	api.Handle("/impact", httputil.ContentTypeMiddleware(http.HandlerFunc(s.postImpact))).Methods(http.MethodPost)
	api.HandleFunc("/order", s.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", s.getSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/snapshot/reload", s.reloadSnapshot).Methods(http.MethodPost)

	router.HandleFunc("/healthz", s.health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.health.Readiness).Methods(http.MethodGet)
	if s.gatherer != nil {
		router.Handle("/metrics", observability.MetricsHandler(s.gatherer)).Methods(http.MethodGet)
	}

	return router
}

// snapshot returns the live snapshot or writes 503
func (s *Server) snapshot(w http.ResponseWriter) (*Snapshot, bool) {
	snap := s.reloader.Current()
	if snap == nil {
		httputil.WriteServiceUnavailable(w, ErrNoSnapshot.Error())
		return nil, false
	}
	return snap, true
}

// packageName returns the {name} path variable if the package exists, or writes 404
func (s *Server) packageName(w http.ResponseWriter, r *http.Request, snap *Snapshot) (string, bool) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return "", false
	}
	if !snap.Repo.Graph.HasNode(name) {
		httputil.WriteNotFoundError(w, "package not found: "+name)
		return "", false
	}
	return name, true
}

func (s *Server) packageInfo(snap *Snapshot, name, dir string) PackageInfo {
	g := snap.Repo.Graph
	return PackageInfo{
		Name:         name,
		Dir:          dir,
		Dependencies: g.Dependencies(name),
		Dependents:   g.Dependents(name),
		External:     g.External(name),
	}
}

// listPackages handles GET /api/v1/packages
func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	pkgs := make([]PackageInfo, 0, len(snap.Repo.Packages))
	for _, m := range snap.Repo.Packages {
		pkgs = append(pkgs, s.packageInfo(snap, m.Name, m.Dir))
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })

	_ = httputil.WriteSuccess(w, map[string]interface{}{
		"packages": pkgs,
		"count":    len(pkgs),
	})
}

// getPackage handles GET /api/v1/packages/{name}
func (s *Server) getPackage(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	name, ok := s.packageName(w, r, snap)
	if !ok {
		return
	}

	dir := ""
	for _, m := range snap.Repo.Packages {
		if m.Name == name {
			dir = m.Dir
			break
		}
	}
	_ = httputil.WriteSuccess(w, s.packageInfo(snap, name, dir))
}

// getDependencies handles GET /api/v1/packages/{name}/dependencies
func (s *Server) getDependencies(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	name, ok := s.packageName(w, r, snap)
	if !ok {
		return
	}

	deps := snap.Repo.Graph.Dependencies(name)
	_ = httputil.WriteSuccess(w, map[string]interface{}{
		"package":      name,
		"dependencies": deps,
		"count":        len(deps),
	})
}

// getDependents handles GET /api/v1/packages/{name}/dependents[?transitive=true]
func (s *Server) getDependents(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	name, ok := s.packageName(w, r, snap)
	if !ok {
		return
	}

	transitive, err := httputil.ParseQueryBool(r, "transitive", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	dependents := snap.Repo.Graph.Dependents(name)
	if transitive {
		impacted, err := dependencies.Propagate(snap.Repo.Graph, []string{name})
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		delete(impacted, name)
		dependents = impacted.Sorted()
	}

	_ = httputil.WriteSuccess(w, map[string]interface{}{
		"package":    name,
		"dependents": dependents,
		"transitive": transitive,
		"count":      len(dependents),
	})
}

// getGraph handles GET /api/v1/graph[?format=dot|json]
func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	switch format := httputil.ParseQueryString(r, "format", "dot"); format {
	case "dot":
		start := time.Now()
		err := httputil.WriteContent(w, "text/vnd.graphviz; charset=utf-8", func(out io.Writer) error {
			return dependencies.WriteDOT(out, snap.Repo.Graph)
		})
		s.metrics.ObserveStage(observability.StageExport, start, err)
		if err != nil {
			s.log.WithError(err).Warn("Failed to write DOT graph")
		}
	case "json":
		_ = httputil.WriteSuccess(w, map[string]interface{}{
			"nodes": snap.Repo.Graph.Nodes(),
			"edges": snap.Repo.Graph.Edges(),
		})
	default:
		httputil.WriteBadRequest(w, "unsupported format: "+format+" (valid: dot, json)")
	}
}

// getCytoscape handles GET /api/v1/graph/cytoscape[?focus=name]
func (s *Server) getCytoscape(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	focus := httputil.ParseQueryString(r, "focus", "")
	if focus != "" && !snap.Repo.Graph.HasNode(focus) {
		httputil.WriteNotFoundError(w, "package not found: "+focus)
		return
	}

	_ = httputil.WriteSuccess(w, dependencies.Cytoscape(snap.Repo.Graph, focus))
}

// getImpact handles GET /api/v1/impact?changed=a&files=packages/b/x.ts
func (s *Server) getImpact(w http.ResponseWriter, r *http.Request) {
	s.impact(w, r, ImpactRequest{
		Changed: httputil.ParseQueryStrings(r, "changed"),
		Files:   httputil.ParseQueryStrings(r, "files"),
	})
}

// postImpact handles POST /api/v1/impact
func (s *Server) postImpact(w http.ResponseWriter, r *http.Request) {
	var req ImpactRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	s.impact(w, r, req)
}

func (s *Server) impact(w http.ResponseWriter, r *http.Request, req ImpactRequest) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	seeds := append([]string{}, req.Changed...)
	if len(req.Files) > 0 {
		if s.opts.Classifier == nil {
			httputil.WriteBadRequest(w, "file classification is not configured")
			return
		}
		files, _ := changes.ListSource{Paths: req.Files}.ChangedFiles(r.Context())
		seeds = append(seeds, changes.ChangedPackages(files, s.opts.Classifier)...)
	}

	ctx := r.Context()
	log := observability.FromContext(observability.WithLogger(ctx, s.log))
	key := cache.Key(snap.Repo.Fingerprint(), seeds)

	cached, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Impact cache lookup failed")
	}
	s.metrics.CacheLookup(s.cache.Name(), hit)
	if hit {
		w.Header().Set(cacheHeader, cacheHit)
		_ = httputil.WriteSuccess(w, cached)
		return
	}

	analysis, err := snap.Repo.ImpactOf(ctx, seeds)
	if err != nil {
		if errors.Is(err, dependencies.ErrInvariantViolation) {
			log.WithError(err).Error("Impact propagation on an invalid graph")
		}
		httputil.WriteInternalError(w, err)
		return
	}

	if err := s.cache.Set(ctx, key, analysis); err != nil {
		log.WithError(err).Warn("Impact cache store failed")
	}

	w.Header().Set(cacheHeader, cacheMiss)
	_ = httputil.WriteSuccess(w, analysis)
}

// getOrder handles GET /api/v1/order
func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	order, err := snap.Repo.Order()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, map[string]interface{}{
		"order": order,
		"count": len(order),
	})
}

func (s *Server) snapshotInfo(snap *Snapshot) SnapshotInfo {
	return SnapshotInfo{
		Generation:  snap.Generation,
		LoadedAt:    snap.LoadedAt,
		Fingerprint: snap.Repo.Fingerprint(),
		Packages:    snap.Repo.Graph.Len(),
		Edges:       snap.Repo.Graph.EdgeCount(),
	}
}

// getSnapshot handles GET /api/v1/snapshot
func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	_ = httputil.WriteSuccess(w, s.snapshotInfo(snap))
}

// reloadSnapshot handles POST /api/v1/snapshot/reload
func (s *Server) reloadSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := s.reloader.Reload(r.Context(), TriggerAPI); err != nil {
		var details map[string]string
		var cycle *dependencies.CyclicDependencyError
		if errors.As(err, &cycle) {
			details = map[string]string{"cycle": strings.Join(cycle.Cycle, " -> ")}
		}
		httputil.WriteDetailedError(w, http.StatusUnprocessableEntity, err, details)
		return
	}

	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	_ = httputil.WriteSuccess(w, s.snapshotInfo(snap))
}

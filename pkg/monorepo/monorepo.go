package monorepo

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/morp/pkg/changes"
	"github.com/platinummonkey/morp/pkg/dependencies"
	"github.com/platinummonkey/morp/pkg/manifest"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Loader produces the manifests of every package in a repository
type Loader interface {
	Load(ctx context.Context) ([]manifest.Manifest, error)
}

// Options configures Load
type Options struct {
	Log     *logrus.Logger
	Metrics *observability.Metrics
	// RootPackage is the classifier sentinel for changes outside any package
	RootPackage string
}

// Monorepo is a loaded, validated dependency graph together with the
// manifests it was built from. It is immutable and safe for concurrent use.
type Monorepo struct {
	Packages []manifest.Manifest
	Graph    *dependencies.Graph

	root    string
	log     *logrus.Logger
	metrics *observability.Metrics
}

// Load reads every manifest, builds the graph and validates it. Any failure
// aborts the run; a partial graph is never returned.
func Load(ctx context.Context, loader Loader, opts Options) (*Monorepo, error) {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	root := opts.RootPackage
	if root == "" {
		root = changes.RootPackage
	}

	ctx, span := observability.Tracer().Start(ctx, "monorepo.Load")
	defer span.End()

	var pkgs []manifest.Manifest
	err := stage(ctx, opts.Metrics, observability.StageLoad, func(ctx context.Context) error {
		var err error
		pkgs, err = loader.Load(ctx)
		return err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("loading manifests: %w", err))
	}

	var graph *dependencies.Graph
	err = stage(ctx, opts.Metrics, observability.StageBuild, func(context.Context) error {
		var err error
		graph, err = dependencies.Build(pkgs)
		return err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("building graph: %w", err))
	}

	err = stage(ctx, opts.Metrics, observability.StageValidate, func(context.Context) error {
		_, err := dependencies.Validate(graph)
		return err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("validating graph: %w", err))
	}

	opts.Metrics.SetGraphSize(graph.Len(), graph.EdgeCount())
	span.SetAttributes(
		attribute.Int("morp.packages", graph.Len()),
		attribute.Int("morp.edges", graph.EdgeCount()),
	)

	log.WithFields(logrus.Fields{
		"packages": graph.Len(),
		"edges":    graph.EdgeCount(),
	}).Info("Dependency graph loaded")

	for _, name := range graph.Nodes() {
		if external := graph.External(name); len(external) > 0 {
			log.WithField("package", name).Debugf("Ignoring external dependencies: %v", external)
		}
	}

	return &Monorepo{
		Packages: pkgs,
		Graph:    graph,
		root:     root,
		log:      log,
		metrics:  opts.Metrics,
	}, nil
}

// Fingerprint identifies the graph contents
func (m *Monorepo) Fingerprint() string {
	return m.Graph.Fingerprint()
}

// Impact classifies changed files into packages and propagates them
func (m *Monorepo) Impact(ctx context.Context, files []changes.ChangedFile, c changes.Classifier) (*dependencies.ImpactAnalysis, error) {
	return m.ImpactOf(ctx, changes.ChangedPackages(files, c))
}

// ImpactOf propagates an explicit set of changed package names
func (m *Monorepo) ImpactOf(ctx context.Context, changed []string) (*dependencies.ImpactAnalysis, error) {
	_, span := observability.Tracer().Start(ctx, "monorepo.Impact",
		trace.WithAttributes(attribute.Int("morp.changed", len(changed))))
	defer span.End()

	for _, name := range changed {
		if name != m.root && !m.Graph.HasNode(name) {
			m.log.WithField("package", name).Warn("Changed package has no manifest; directory and package names may differ")
		}
	}

	start := time.Now()
	analysis, err := dependencies.Analyze(m.Graph, changed)
	m.metrics.ObserveStage(observability.StageImpact, start, err)
	if err != nil {
		return nil, fail(span, err)
	}

	m.metrics.ObserveImpact(len(analysis.Impacted))
	span.SetAttributes(attribute.Int("morp.impacted", len(analysis.Impacted)))
	return analysis, nil
}

// Order returns the packages in dependency order
func (m *Monorepo) Order() ([]string, error) {
	return dependencies.TopologicalOrder(m.Graph)
}

// stage runs fn in a child span and records its duration
func stage(ctx context.Context, metrics *observability.Metrics, name string, fn func(context.Context) error) error {
	ctx, span := observability.Tracer().Start(ctx, "monorepo."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.ObserveStage(name, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

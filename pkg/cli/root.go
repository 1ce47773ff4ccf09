package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/platinummonkey/morp/pkg/changes"
	"github.com/platinummonkey/morp/pkg/config"
	"github.com/platinummonkey/morp/pkg/manifest"
	"github.com/platinummonkey/morp/pkg/monorepo"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries the state shared by every command of one invocation
type app struct {
	version string

	// Persistent flags
	configPath string
	root       string
	logLevel   string
	logFormat  string

	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
	otel     *observability.OTelProviders
}

// NewRootCommand creates the morp command tree
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&app{version: version})
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	a := &app{version: version}
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	a.finish()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "morp",
		Short: "Monorepo dependency graph and change impact",
		Long: `morp reads the package manifests of a monorepo, builds the internal
dependency graph and reports which packages a change impacts.

Examples:
  morp graph -o dependencies.dot
  morp diff --branch develop --prefix @acme/
  morp diff packages/core/src/index.ts
  git diff develop... | morp diff --patch -
  morp order
  morp serve --addr :8080`,
		Version:           a.version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default <root>/"+config.DefaultFileName+")")
	flags.StringVarP(&a.root, "path", "p", "", "Monorepo root (default \".\")")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text, json")

	root.AddCommand(
		newGraphCommand(a),
		newDiffCommand(a),
		newOrderCommand(a),
		newServeCommand(a),
	)
	return root
}

// setup layers configuration and starts logging, metrics and tracing
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath, a.root)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewMetrics(a.registry)

	a.otel, err = observability.InitOTel(cmd.Context(), cfg.OTelConfig(), log)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	return nil
}

// finish pushes metrics and flushes traces. Failures are logged only.
func (a *app) finish() {
	if a.cfg == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if url := a.cfg.Metrics.PushgatewayURL; url != "" {
		if err := observability.Push(ctx, url, a.cfg.Metrics.Job, a.registry); err != nil {
			a.log.WithError(err).Warn("Failed to push metrics")
		}
	}
	_ = observability.ShutdownOTel(ctx, a.otel, a.log)
}

func (a *app) store() *manifest.Store {
	return manifest.NewStore(a.cfg.StoreConfig(), a.log)
}

// load reads and validates the monorepo graph
func (a *app) load(ctx context.Context) (*monorepo.Monorepo, error) {
	return monorepo.Load(ctx, a.store(), monorepo.Options{
		Log:         a.log,
		Metrics:     a.metrics,
		RootPackage: a.cfg.RootPackage,
	})
}

func (a *app) classifier() (changes.Classifier, error) {
	return changes.NewPrefixClassifier(a.cfg.PackagesDir, a.cfg.RootPackage)
}

// printNames writes one prefixed name per line
func printNames(w io.Writer, prefix string, names []string) error {
	for _, name := range names {
		if _, err := fmt.Fprintln(w, prefix+name); err != nil {
			return err
		}
	}
	return nil
}

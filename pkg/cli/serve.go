package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/morp/pkg/cache"
	"github.com/platinummonkey/morp/pkg/monorepo"
	"github.com/platinummonkey/morp/pkg/server"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve graph and impact queries over HTTP",
		Long: `Run a long-lived HTTP service answering graph and impact queries.

The graph is reloaded when manifests change on disk and on the configured
cron schedule. A reload that fails validation keeps the previous graph live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Server.Watch = watch
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload when manifests change on disk")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c, err := cache.New(a.cfg.CacheConfig())
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer c.Close()
	a.log.WithField("cache", c.Name()).Info("Impact cache ready")

	classifier, err := a.classifier()
	if err != nil {
		return err
	}

	store := a.store()
	reloader := server.NewReloader(func(ctx context.Context) (*monorepo.Monorepo, error) {
		return monorepo.Load(ctx, store, monorepo.Options{
			Log:         a.log,
			Metrics:     a.metrics,
			RootPackage: a.cfg.RootPackage,
		})
	}, a.log, a.metrics)

	srv := server.New(server.Options{
		Addr:            a.cfg.Server.Addr,
		ReadTimeout:     a.cfg.Server.ReadTimeout,
		WriteTimeout:    a.cfg.Server.WriteTimeout,
		IdleTimeout:     a.cfg.Server.IdleTimeout,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		PackagesPath:    store.PackagesPath(),
		ManifestFile:    a.cfg.ManifestFile,
		Watch:           a.cfg.Server.Watch,
		ReloadSchedule:  a.cfg.Server.ReloadSchedule,
		Classifier:      classifier,
		Version:         a.version,
	}, reloader, c, a.registry, a.metrics, a.log)

	return srv.Run(ctx)
}

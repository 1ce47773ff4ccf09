// Package observability provides logrus logging, Prometheus metrics, OpenTelemetry tracing and health checks.
//
// # Logging
//
//	log, err := observability.NewLogger("info", observability.FormatJSON, os.Stderr)
//	observability.FromContext(ctx).Info("graph loaded")
//
// FromContext adds the request ID and the active trace and span IDs.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveStage(observability.StageBuild, start, err)
//
// A nil *Metrics is accepted everywhere and records nothing. Batch runs can
// send their metrics to a Pushgateway with Push.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.Register("snapshot", true, snapshotLoaded)
//	checker.Register("cache", false, cache.Ping)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, log)
//	defer observability.ShutdownOTel(ctx, providers, log)
package observability

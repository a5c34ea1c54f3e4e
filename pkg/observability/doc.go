// Package observability provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for the residencia client.
//
// # Structured Logging
//
// Create a logger (logs go to stderr by default):
//
//	logger := observability.NewLogger(observability.InfoLevel, nil)
//	logger.WithField("module", "news").Info("loaded")
//
// Spans started by the client can be attached to a logger:
//
//	observability.UpdateLoggerWithTraceContext(ctx, logger).Debug("backend request")
//
// # Prometheus Metrics
//
// The client has no scrape endpoint, so metrics are dumped to a
// node-exporter textfile when the process finishes:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	defer metrics.WriteTextfile("/var/lib/node_exporter/residencia.prom")
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability

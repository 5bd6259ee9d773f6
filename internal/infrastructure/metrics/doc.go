// Package metrics exposes Prometheus counters for the observer and the
// capture pipeline.
//
// A *Metrics is optional everywhere it is accepted: all recording methods
// are no-ops on a nil receiver, so components can be built without metrics
// in tests and when metrics are disabled in the settings file.
//
// Usage:
//
//	m := metrics.New()
//	go metrics.Serve(ctx, cfg.Metrics.Listen, m, logger)
//	observer.SetMetrics(m)
package metrics

// Package observability records job lifecycle metrics via OpenTelemetry.
//
// A Metrics recorder attaches to any job through its notification
// hooks, so local and cloud jobs are instrumented identically:
//
//	rec := observability.NewMetrics()
//	stop := rec.Observe(j)
//	defer stop()
//
// With no MeterProvider configured the instruments are noops and
// observation is free.
package observability

// Package metrics exports engine events as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	obs := metrics.NewObserver(reg, "ledgerq")
//	e, err := engine.Open(ctx, engine.WithMetricsObserver(obs))
package metrics

/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log records.

Both are delivered as domain.LifecycleHooks and can be combined:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	engine, _ := cvflow.New(ctx, cvflow.WithLifecycleHooks(hooks))
*/
package observability

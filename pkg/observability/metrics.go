package observability

import (
	"context"
	"errors"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cvflow"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Cycles        prometheus.Counter
	CycleDuration prometheus.Histogram
	NodeRuns      *prometheus.CounterVec
	NodeDuration  *prometheus.HistogramVec
	NodeFailures  *prometheus.CounterVec
	PluginErrors  prometheus.Counter
	Running       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of completed scheduler cycles.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of scheduler cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}),
		NodeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_runs_total",
			Help:      "Total number of processor invocations.",
		}, []string{"node_type"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of processor invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"node_type"}),
		NodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_failures_total",
			Help:      "Total number of contained processor failures.",
		}, []string{"node_type", "panicked"}),
		PluginErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_load_failures_total",
			Help:      "Total number of plugin sources that failed to load.",
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the controller is running, 0 otherwise.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	var errs []error
	m.Cycles = register(reg, m.Cycles, &errs)
	m.CycleDuration = register(reg, m.CycleDuration, &errs)
	m.NodeRuns = register(reg, m.NodeRuns, &errs)
	m.NodeDuration = register(reg, m.NodeDuration, &errs)
	m.NodeFailures = register(reg, m.NodeFailures, &errs)
	m.PluginErrors = register(reg, m.PluginErrors, &errs)
	m.Running = register(reg, m.Running, &errs)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, errs *[]error) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	*errs = append(*errs, err)
	return c
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			if e.To == domain.StateIdle {
				m.Running.Set(0)
			} else {
				m.Running.Set(1)
			}
		},
		OnCycleEnd: func(_ context.Context, e *domain.CycleEvent) {
			m.Cycles.Inc()
			m.CycleDuration.Observe(e.Duration.Seconds())
		},
		OnNodeProcess: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeRuns.WithLabelValues(e.NodeType).Inc()
			m.NodeDuration.WithLabelValues(e.NodeType).Observe(e.Duration.Seconds())
		},
		OnNodeFailure: func(_ context.Context, e *domain.ProcessorError) {
			panicked := "false"
			if e.Panicked {
				panicked = "true"
			}
			m.NodeFailures.WithLabelValues(e.NodeType, panicked).Inc()
		},
		OnPluginFailure: func(context.Context, *domain.PluginLoadFailure) {
			m.PluginErrors.Inc()
		},
	}
}

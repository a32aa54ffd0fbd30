// Package metrics exports reactive runtime activity as Prometheus metrics.
//
// A Collector turns the runtime's diagnostic events into counters and
// histograms. Attach it with reactive.WithEventSink:
//
//	c := metrics.New(metrics.WithNamespace("myapp"))
//	rt := reactive.NewRuntime(reactive.WithEventSink(c.Sink()))
//
//	http.Handle("/metrics", promhttp.Handler())
//
// Metrics collected (namespace "reactive" by default):
//   - effect_runs_total: effect runs
//   - effect_duration_seconds: effect run duration
//   - memo_recomputes_total: memo recomputations by outcome
//   - drains_total: drains of the pending effect queue
//   - drain_effects: effects run per drain
//   - closure_panics_total: recovered panics by node kind
//   - update_loops_total: effects stopped by the rerun limit
//   - use_after_dispose_total: stale handle accesses by operation
//   - scopes_disposed_total: scope disposals
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/reactive/pkg/reactive"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "reactive").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Buckets are the buckets of effect_duration_seconds.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the metrics.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets labels added to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the registry the metrics are registered with.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "reactive",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// drainBuckets covers drains from a single effect up to large fan-outs.
var drainBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000}

// Collector holds the runtime metrics.
type Collector struct {
	effectRuns      prometheus.Counter
	effectDuration  prometheus.Histogram
	memoRecomputes  *prometheus.CounterVec
	drains          prometheus.Counter
	drainEffects    prometheus.Histogram
	closurePanics   *prometheus.CounterVec
	updateLoops     prometheus.Counter
	useAfterDispose *prometheus.CounterVec
	scopesDisposed  prometheus.Counter
}

// New registers the runtime metrics and returns their Collector. Creating
// two collectors on the same registry panics, as promauto does.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counter := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Collector{
		effectRuns: factory.NewCounter(counter("effect_runs_total",
			"Total number of effect runs")),

		effectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effect_duration_seconds",
			Help:        "Effect run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		memoRecomputes: factory.NewCounterVec(counter("memo_recomputes_total",
			"Total number of memo recomputations by whether the value changed"),
			[]string{"changed"}),

		drains: factory.NewCounter(counter("drains_total",
			"Total number of pending queue drains")),

		drainEffects: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "drain_effects",
			Help:        "Number of effect runs per drain",
			ConstLabels: config.ConstLabels,
			Buckets:     drainBuckets,
		}),

		closurePanics: factory.NewCounterVec(counter("closure_panics_total",
			"Total number of recovered closure panics by node kind"),
			[]string{"kind"}),

		updateLoops: factory.NewCounter(counter("update_loops_total",
			"Total number of effects stopped by the rerun limit")),

		useAfterDispose: factory.NewCounterVec(counter("use_after_dispose_total",
			"Total number of accesses through disposed handles by operation"),
			[]string{"op"}),

		scopesDisposed: factory.NewCounter(counter("scopes_disposed_total",
			"Total number of disposed scopes")),
	}
}

// Sink returns an event sink that records into c.
func (c *Collector) Sink() reactive.EventSink {
	return c.Record
}

// Record updates the metrics for one runtime event.
func (c *Collector) Record(ev reactive.Event) {
	switch ev.Kind {
	case reactive.EventEffectRun:
		c.effectRuns.Inc()
		c.effectDuration.Observe(ev.Duration.Seconds())
	case reactive.EventMemoRecompute:
		changed := "false"
		if ev.Changed {
			changed = "true"
		}
		c.memoRecomputes.WithLabelValues(changed).Inc()
	case reactive.EventDrain:
		c.drains.Inc()
		c.drainEffects.Observe(float64(ev.Effects))
	case reactive.EventClosurePanic:
		c.closurePanics.WithLabelValues(ev.NodeKind.String()).Inc()
	case reactive.EventUpdateLoop:
		c.updateLoops.Inc()
	case reactive.EventUseAfterDispose:
		c.useAfterDispose.WithLabelValues(ev.Op).Inc()
	case reactive.EventScopeDisposed:
		c.scopesDisposed.Inc()
	}
}

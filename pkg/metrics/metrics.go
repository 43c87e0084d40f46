// Package metrics collects Prometheus metrics for livesync sessions.
//
// Metrics collected:
//   - livesync_frames_total: frames by direction and opcode
//   - livesync_frame_bytes_total: encoded bytes by direction
//   - livesync_decode_errors_total: inbound frames dropped as undecodable
//   - livesync_patches_applied_total: patch instructions by op
//   - livesync_batch_size / livesync_batch_duration_seconds: drained batches
//   - livesync_reconnects_total: reconnect outcomes
//   - livesync_connected: 1 while the channel is open
//   - livesync_drift_total: drift mutations on managed nodes
//   - livesync_exec_total: remote execution outcomes
//   - livesync_navigations_total: navigation outcomes
//
// Example:
//
//	m := metrics.New(metrics.WithNamespace("myapp"))
//	sess := client.New(cfg.WithMetrics(m))
//	http.Handle("/metrics", promhttp.Handler())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "livesync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for batch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
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

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the batch duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "livesync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Direction labels.
const (
	Inbound  = "in"
	Outbound = "out"
)

// Metrics holds the collectors of one process. A nil *Metrics records
// nothing, so components can hold one unconditionally.
type Metrics struct {
	frames        *prometheus.CounterVec
	frameBytes    *prometheus.CounterVec
	decodeErrors  prometheus.Counter
	patches       *prometheus.CounterVec
	batchSize     prometheus.Histogram
	batchDuration prometheus.Histogram
	reconnects    *prometheus.CounterVec
	connected     prometheus.Gauge
	drift         prometheus.Counter
	execs         *prometheus.CounterVec
	navigations   *prometheus.CounterVec
}

// New registers the collectors and returns them.
// It panics if the collectors are already registered with the registry.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_total",
			Help:        "Total number of protocol frames by direction and opcode",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "opcode"}),

		frameBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_bytes_total",
			Help:        "Total encoded frame bytes by direction",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "decode_errors_total",
			Help:        "Total number of inbound frames dropped as undecodable",
			ConstLabels: config.ConstLabels,
		}),

		patches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patches_applied_total",
			Help:        "Total number of patch instructions applied by op",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_size",
			Help:        "Number of mutations per drained batch",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 5, 10, 50, 100, 500, 1000},
		}),

		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "batch_duration_seconds",
			Help:        "Time spent draining one batch in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		reconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnects_total",
			Help:        "Total reconnect attempts by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connected",
			Help:        "Number of open authority channels",
			ConstLabels: config.ConstLabels,
		}),

		drift: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "drift_total",
			Help:        "Total mutations of managed nodes not made by the patch engine",
			ConstLabels: config.ConstLabels,
		}),

		execs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "exec_total",
			Help:        "Total remote executions by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total navigations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),
	}
}

// Frame records one frame of n encoded bytes.
func (m *Metrics) Frame(direction, opcode string, n int) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction, opcode).Inc()
	m.frameBytes.WithLabelValues(direction).Add(float64(n))
}

// DecodeError records a dropped inbound frame.
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// PatchApplied records one applied patch instruction.
func (m *Metrics) PatchApplied(op string) {
	if m == nil {
		return
	}
	m.patches.WithLabelValues(op).Inc()
}

// BatchDrained records one drained batch.
func (m *Metrics) BatchDrained(size int, d time.Duration) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(d.Seconds())
}

// Reconnect records the outcome of a backoff sequence: "ok", "aborted" or
// "exhausted".
func (m *Metrics) Reconnect(outcome string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(outcome).Inc()
}

// Connected records the channel opening (true) or closing (false).
func (m *Metrics) Connected(open bool) {
	if m == nil {
		return
	}
	if open {
		m.connected.Inc()
	} else {
		m.connected.Dec()
	}
}

// Drift records one drift mutation.
func (m *Metrics) Drift() {
	if m == nil {
		return
	}
	m.drift.Inc()
}

// Exec records a remote execution outcome.
func (m *Metrics) Exec(outcome string) {
	if m == nil {
		return
	}
	m.execs.WithLabelValues(outcome).Inc()
}

// Navigation records a navigation outcome.
func (m *Metrics) Navigation(outcome string) {
	if m == nil {
		return
	}
	m.navigations.WithLabelValues(outcome).Inc()
}

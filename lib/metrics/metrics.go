// Package metrics provides simple metrics collection for respool.
// Supports Prometheus exposition format for monitoring integration.
//
// Metrics created with the New* constructors register with the default
// registry, which Handler and Serve expose.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// DefaultLatencyBuckets are histogram buckets in seconds suited to
// resource acquisition, from an idle hit to a slow connection handshake.
var DefaultLatencyBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30,
}

// metric is a named collector that renders itself in exposition format.
type metric interface {
	metricName() string
	writeTo(w io.Writer)
}

func writeHeader(w io.Writer, name, help, kind string) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Uint64
}

// NewCounter creates and registers a counter.
func NewCounter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	defaultRegistry.Register(c)
	return c
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add adds v to the counter.
func (c *Counter) Add(v uint64) { c.value.Add(v) }

// Value returns the current counter value.
func (c *Counter) Value() uint64 { return c.value.Load() }

func (c *Counter) metricName() string { return c.name }

func (c *Counter) writeTo(w io.Writer) {
	writeHeader(w, c.name, c.help, "counter")
	fmt.Fprintf(w, "%s %d\n", c.name, c.Value())
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// NewGauge creates and registers a gauge.
func NewGauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	defaultRegistry.Register(g)
	return g
}

// Set sets the gauge to v.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Add adds v to the gauge.
func (g *Gauge) Add(v int64) { g.value.Add(v) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value.Load() }

func (g *Gauge) metricName() string { return g.name }

func (g *Gauge) writeTo(w io.Writer) {
	writeHeader(w, g.name, g.help, "gauge")
	fmt.Fprintf(w, "%s %d\n", g.name, g.Value())
}

// GaugeVec is a family of gauges distinguished by one label, such as the
// pool name.
type GaugeVec struct {
	name  string
	help  string
	label string

	mu     sync.RWMutex
	gauges map[string]*Gauge
}

// NewGaugeVec creates and registers a gauge family keyed by label.
func NewGaugeVec(name, help, label string) *GaugeVec {
	v := &GaugeVec{
		name:   name,
		help:   help,
		label:  label,
		gauges: make(map[string]*Gauge),
	}
	defaultRegistry.Register(v)
	return v
}

// With returns the gauge for the label value, creating it at zero.
func (v *GaugeVec) With(value string) *Gauge {
	v.mu.RLock()
	g, ok := v.gauges[value]
	v.mu.RUnlock()
	if ok {
		return g
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if g, ok = v.gauges[value]; !ok {
		g = &Gauge{name: v.name, help: v.help}
		v.gauges[value] = g
	}
	return g
}

// Delete drops the gauge for the label value.
func (v *GaugeVec) Delete(value string) {
	v.mu.Lock()
	delete(v.gauges, value)
	v.mu.Unlock()
}

// Len returns the number of label values present.
func (v *GaugeVec) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.gauges)
}

func (v *GaugeVec) metricName() string { return v.name }

func (v *GaugeVec) writeTo(w io.Writer) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	values := make([]string, 0, len(v.gauges))
	for value := range v.gauges {
		values = append(values, value)
	}
	sort.Strings(values)

	writeHeader(w, v.name, v.help, "gauge")
	for _, value := range values {
		fmt.Fprintf(w, "%s{%s=\"%s\"} %d\n", v.name, v.label, labelEscaper.Replace(value), v.gauges[value].Value())
	}
}

// Histogram tracks the distribution of values.
// Bucket counts are cumulative, as the exposition format expects.
type Histogram struct {
	name    string
	help    string
	buckets []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

// NewHistogram creates and registers a histogram with the given upper
// bounds, which must be sorted ascending.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	h := newHistogram(name, help, buckets)
	defaultRegistry.Register(h)
	return h
}

func newHistogram(name, help string, buckets []float64) *Histogram {
	return &Histogram{
		name:    name,
		help:    help,
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	// First bucket whose bound holds v; every later bucket holds it too.
	first := sort.SearchFloat64s(h.buckets, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i := first; i < len(h.counts); i++ {
		h.counts[i]++
	}
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Histogram) metricName() string { return h.name }

func (h *Histogram) writeTo(w io.Writer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	writeHeader(w, h.name, h.help, "histogram")
	for i, b := range h.buckets {
		fmt.Fprintf(w, "%s_bucket{le=\"%g\"} %d\n", h.name, b, h.counts[i])
	}
	fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
	fmt.Fprintf(w, "%s_sum %g\n", h.name, h.sum)
	fmt.Fprintf(w, "%s_count %d\n", h.name, h.count)
}

// Registry holds metrics by name. Registering a name twice replaces the
// earlier metric.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]metric)}
}

var defaultRegistry = NewRegistry()

// Default returns the registry that New* constructors register with.
func Default() *Registry {
	return defaultRegistry
}

// Register adds m to the registry.
func (r *Registry) Register(m metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[m.metricName()] = m
}

// Names returns the sorted names of all registered metrics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render writes every metric in exposition format, sorted by name.
func (r *Registry) Render(w io.Writer) {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if m, ok := r.metrics[name]; ok {
			m.writeTo(w)
			io.WriteString(w, "\n")
		}
	}
}

// Expose returns all metrics in Prometheus exposition format.
func (r *Registry) Expose() string {
	var sb strings.Builder
	r.Render(&sb)
	return sb.String()
}

// Default process metrics
var (
	// StartTime is when the process started.
	StartTime = NewGauge("respool_start_time_seconds", "Unix timestamp when the process started")
	// BuildInfo is 1 for the running version.
	BuildInfo = NewGaugeVec("respool_build_info", "Build information, labelled by version", "version")
)

// RecordStartTime records the current time as the start time.
func RecordStartTime() {
	StartTime.Set(time.Now().Unix())
}

// RecordBuildInfo publishes the running version.
func RecordBuildInfo(version string) {
	BuildInfo.With(version).Set(1)
}

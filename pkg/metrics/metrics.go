package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	// ErrLabelCountMismatch is returned when the number of label values
	// differs from the declared label names.
	ErrLabelCountMismatch = errors.New("label count mismatch")

	// ErrNegativeCounterValue is returned when a counter would decrease.
	ErrNegativeCounterValue = errors.New("counter cannot be decreased")

	// ErrDuplicateMetric is returned when a metric name is registered twice.
	ErrDuplicateMetric = errors.New("duplicate metric name")
)

// atomicFloat64 stores float64 bits in a uint64 for lock-free updates.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// MetricType is the exposition type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is implemented by Counter, Gauge and Histogram.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Collect returns the current samples sorted by label set.
	Collect() []Sample
}

// Sample is one exposition line.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// family holds one child per distinct label value tuple.
type family[V any] struct {
	name       string
	help       string
	labelNames []string
	newChild   func() *V

	mu       sync.RWMutex
	children map[string]*child[V]
}

type child[V any] struct {
	values []string
	v      *V
}

func (f *family[V]) init(name, help string, labelNames []string, newChild func() *V) {
	f.name = name
	f.help = help
	f.labelNames = slices.Clone(labelNames)
	f.newChild = newChild
	f.children = make(map[string]*child[V])
}

func (f *family[V]) Name() string { return f.name }
func (f *family[V]) Help() string { return f.help }

// get returns the child for values, creating it on first use.
func (f *family[V]) get(kind string, values []string) (*V, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s %s expects %d labels, got %d",
			ErrLabelCountMismatch, kind, f.name, len(f.labelNames), len(values))
	}
	key := strings.Join(values, "\x00")

	f.mu.RLock()
	c, ok := f.children[key]
	f.mu.RUnlock()
	if ok {
		return c.v, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.children[key]; ok {
		return c.v, nil
	}
	c = &child[V]{values: slices.Clone(values), v: f.newChild()}
	f.children[key] = c
	return c.v, nil
}

// peek returns the child for values without creating it.
func (f *family[V]) peek(values []string) (*V, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.children[strings.Join(values, "\x00")]
	if !ok {
		return nil, false
	}
	return c.v, true
}

// sorted returns the children ordered by label values.
func (f *family[V]) sorted() []*child[V] {
	f.mu.RLock()
	out := slices.Collect(maps.Values(f.children))
	f.mu.RUnlock()
	slices.SortFunc(out, func(a, b *child[V]) int {
		return slices.Compare(a.values, b.values)
	})
	return out
}

func (f *family[V]) labels(values []string, extra ...string) map[string]string {
	out := make(map[string]string, len(values)+len(extra)/2)
	for i, name := range f.labelNames {
		out[name] = values[i]
	}
	for i := 0; i+1 < len(extra); i += 2 {
		out[extra[i]] = extra[i+1]
	}
	return out
}

// Counter is a monotonically increasing value.
type Counter struct {
	family[atomicFloat64]
}

// Type implements Metric.
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// CounterVec is a Counter bound to label values.
type CounterVec struct {
	v *atomicFloat64
}

// WithLabels binds label values in declaration order.
func (c *Counter) WithLabels(values ...string) (*CounterVec, error) {
	v, err := c.get("counter", values)
	if err != nil {
		return nil, err
	}
	return &CounterVec{v: v}, nil
}

// MustWithLabels is like WithLabels but panics on a label count mismatch.
func (c *Counter) MustWithLabels(values ...string) *CounterVec {
	vec, err := c.WithLabels(values...)
	if err != nil {
		panic(err)
	}
	return vec
}

// Inc adds one to an unlabeled counter.
func (c *Counter) Inc() error { return c.Add(1) }

// Add adds delta to an unlabeled counter.
func (c *Counter) Add(delta float64) error {
	vec, err := c.WithLabels()
	if err != nil {
		return err
	}
	return vec.Add(delta)
}

// Value returns the current value for the label values, or 0.
func (c *Counter) Value(values ...string) float64 {
	if v, ok := c.peek(values); ok {
		return v.Load()
	}
	return 0
}

// Collect implements Metric.
func (c *Counter) Collect() []Sample {
	var out []Sample
	for _, ch := range c.sorted() {
		out = append(out, Sample{Name: c.name, Labels: c.labels(ch.values), Value: ch.v.Load()})
	}
	return out
}

// Inc adds one.
func (v *CounterVec) Inc() error { return v.Add(1) }

// Add adds delta, which must not be negative.
func (v *CounterVec) Add(delta float64) error {
	if delta < 0 {
		return ErrNegativeCounterValue
	}
	v.v.Add(delta)
	return nil
}

// Gauge is a value that can go up and down.
type Gauge struct {
	family[atomicFloat64]
}

// Type implements Metric.
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// GaugeVec is a Gauge bound to label values.
type GaugeVec struct {
	v *atomicFloat64
}

// WithLabels binds label values in declaration order.
func (g *Gauge) WithLabels(values ...string) (*GaugeVec, error) {
	v, err := g.get("gauge", values)
	if err != nil {
		return nil, err
	}
	return &GaugeVec{v: v}, nil
}

// MustWithLabels is like WithLabels but panics on a label count mismatch.
func (g *Gauge) MustWithLabels(values ...string) *GaugeVec {
	vec, err := g.WithLabels(values...)
	if err != nil {
		panic(err)
	}
	return vec
}

// Set sets an unlabeled gauge.
func (g *Gauge) Set(v float64) error {
	vec, err := g.WithLabels()
	if err != nil {
		return err
	}
	vec.Set(v)
	return nil
}

// Add adds delta to an unlabeled gauge.
func (g *Gauge) Add(delta float64) error {
	vec, err := g.WithLabels()
	if err != nil {
		return err
	}
	vec.Add(delta)
	return nil
}

// Inc adds one to an unlabeled gauge.
func (g *Gauge) Inc() error { return g.Add(1) }

// Dec subtracts one from an unlabeled gauge.
func (g *Gauge) Dec() error { return g.Add(-1) }

// Value returns the current value for the label values, or 0.
func (g *Gauge) Value(values ...string) float64 {
	if v, ok := g.peek(values); ok {
		return v.Load()
	}
	return 0
}

// Collect implements Metric.
func (g *Gauge) Collect() []Sample {
	var out []Sample
	for _, ch := range g.sorted() {
		out = append(out, Sample{Name: g.name, Labels: g.labels(ch.values), Value: ch.v.Load()})
	}
	return out
}

func (v *GaugeVec) Set(x float64)     { v.v.Store(x) }
func (v *GaugeVec) Add(delta float64) { v.v.Add(delta) }
func (v *GaugeVec) Inc()              { v.v.Add(1) }
func (v *GaugeVec) Dec()              { v.v.Add(-1) }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	family[histogramData]
	bounds []float64
}

type histogramData struct {
	counts []atomic.Uint64
	sum    atomicFloat64
	count  atomic.Uint64
}

// Type implements Metric.
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// HistogramVec is a Histogram bound to label values.
type HistogramVec struct {
	bounds []float64
	d      *histogramData
}

// WithLabels binds label values in declaration order.
func (h *Histogram) WithLabels(values ...string) (*HistogramVec, error) {
	d, err := h.get("histogram", values)
	if err != nil {
		return nil, err
	}
	return &HistogramVec{bounds: h.bounds, d: d}, nil
}

// MustWithLabels is like WithLabels but panics on a label count mismatch.
func (h *Histogram) MustWithLabels(values ...string) *HistogramVec {
	vec, err := h.WithLabels(values...)
	if err != nil {
		panic(err)
	}
	return vec
}

// Observe records v on an unlabeled histogram.
func (h *Histogram) Observe(v float64) error {
	vec, err := h.WithLabels()
	if err != nil {
		return err
	}
	vec.Observe(v)
	return nil
}

// Count returns the number of observations for the label values.
func (h *Histogram) Count(values ...string) uint64 {
	if d, ok := h.peek(values); ok {
		return d.count.Load()
	}
	return 0
}

// Collect implements Metric. Each child yields one _bucket sample per bound,
// then _sum and _count.
func (h *Histogram) Collect() []Sample {
	var out []Sample
	for _, ch := range h.sorted() {
		var cumulative uint64
		for i, bound := range h.bounds {
			cumulative += ch.v.counts[i].Load()
			out = append(out, Sample{
				Name:   h.name + "_bucket",
				Labels: h.labels(ch.values, "le", formatFloat(bound)),
				Value:  float64(cumulative),
			})
		}
		out = append(out,
			Sample{Name: h.name + "_sum", Labels: h.labels(ch.values), Value: ch.v.sum.Load()},
			Sample{Name: h.name + "_count", Labels: h.labels(ch.values), Value: float64(ch.v.count.Load())},
		)
	}
	return out
}

// Observe records v.
func (v *HistogramVec) Observe(x float64) {
	i := sort.SearchFloat64s(v.bounds, x)
	if i < len(v.bounds) {
		v.d.counts[i].Add(1)
	}
	v.d.sum.Add(x)
	v.d.count.Add(1)
}

// DefaultBuckets are request duration buckets in seconds.
var DefaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Registry owns a set of uniquely named metrics.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter registers a counter. It panics if name is already registered.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{}
	c.init(name, help, labels, func() *atomicFloat64 { return new(atomicFloat64) })
	r.mustRegister(c)
	return c
}

// NewGauge registers a gauge. It panics if name is already registered.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{}
	g.init(name, help, labels, func() *atomicFloat64 { return new(atomicFloat64) })
	r.mustRegister(g)
	return g
}

// NewHistogram registers a histogram with the given upper bounds. A +Inf
// bound is appended when missing. It panics if name is already registered.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	bounds := slices.Clone(buckets)
	slices.Sort(bounds)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}
	h := &Histogram{bounds: bounds}
	h.init(name, help, labels, func() *histogramData {
		return &histogramData{counts: make([]atomic.Uint64, len(bounds))}
	})
	r.mustRegister(h)
	return h
}

func (r *Registry) mustRegister(m Metric) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Register adds an externally built metric.
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[m.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
	return nil
}

// Metrics returns the registered metrics in registration order.
func (r *Registry) Metrics() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.metrics)
}

// WriteText writes every metric with at least one sample in the Prometheus
// text format.
func (r *Registry) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, m := range r.Metrics() {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(bw, "# HELP %s %s\n", m.Name(), escapeHelp(m.Help()))
		_, _ = fmt.Fprintf(bw, "# TYPE %s %s\n", m.Name(), m.Type())
		for _, s := range samples {
			_, _ = bw.WriteString(s.Name)
			if len(s.Labels) > 0 {
				_ = bw.WriteByte('{')
				_, _ = bw.WriteString(formatLabels(s.Labels))
				_ = bw.WriteByte('}')
			}
			_ = bw.WriteByte(' ')
			_, _ = bw.WriteString(formatFloat(s.Value))
			_ = bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// Handler serves WriteText output.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_ = r.WriteText(w)
	})
}

func formatLabels(labels map[string]string) string {
	keys := slices.Sorted(maps.Keys(labels))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escapeLabelValue(labels[k]) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var (
	helpEscaper  = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
)

func escapeHelp(s string) string       { return helpEscaper.Replace(s) }
func escapeLabelValue(s string) string { return labelEscaper.Replace(s) }

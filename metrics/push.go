package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
)

// PushRegistry implements Registry for push-based metrics collection.
// Every change is pushed to a Prometheus remote write endpoint. Push
// failures are logged and counted; they never fail a test run.
type PushRegistry struct {
	pusher *pusher
}

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint (e.g., "http://localhost:9090").
	URL string
	// Prefix is the metric name prefix. All metric names will be prefixed with this value
	// followed by an underscore.
	Prefix string
	// Job is the job label for all metrics.
	Job string
	// Instance is the instance label for all metrics.
	Instance string
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Logger receives push failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewPushRegistry creates a new PushRegistry that pushes metrics to the given URL.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &pusher{
		url:        strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		httpClient: &http.Client{Timeout: timeout},
		prefix:     cfg.Prefix,
		job:        cfg.Job,
		instance:   cfg.Instance,
		timeout:    timeout,
		logger:     logger.With("component", "metrics"),
	}
	return &PushRegistry{pusher: p}
}

// Failures returns how many pushes failed.
func (r *PushRegistry) Failures() int64 {
	r.pusher.mu.Lock()
	defer r.pusher.mu.Unlock()
	return r.pusher.failures
}

// NewGauge creates a new push-based Gauge.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{pusher: r.pusher, name: opts.Name}, nil
}

// NewGaugeVec creates a new push-based GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{pusher: r.pusher, name: opts.Name, labels: labels}, nil
}

// NewCounter creates a new push-based Counter.
func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushCounter{pusher: r.pusher, name: opts.Name}, nil
}

// NewCounterVec creates a new push-based CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{
		pusher:   r.pusher,
		name:     opts.Name,
		labels:   labels,
		counters: make(map[string]*pushCounter),
	}, nil
}

// NewHistogramVec creates a new push-based HistogramVec. Remote write has no
// histogram type: every observation pushes the running <name>_sum and
// <name>_count series.
func (r *PushRegistry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) (HistogramVec, error) {
	return &pushHistogramVec{
		pusher:     r.pusher,
		name:       opts.Name,
		labels:     labels,
		histograms: make(map[string]*pushHistogram),
	}, nil
}

// sample is one value of one series.
type sample struct {
	name   string
	value  float64
	labels map[string]string
}

// pusher handles remote write.
type pusher struct {
	url        string
	httpClient *http.Client
	prefix     string
	job        string
	instance   string
	timeout    time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	failures int64
}

// push sends samples in one remote write request, logging failures.
func (p *pusher) push(samples ...sample) {
	if err := p.write(samples); err != nil {
		p.mu.Lock()
		p.failures++
		p.mu.Unlock()
		p.logger.Warn("pushing metrics failed", "metric", samples[0].name, "error", err)
	}
}

func (p *pusher) write(samples []sample) error {
	now := time.Now().UnixMilli()
	req := &prompb.WriteRequest{
		Timeseries: make([]prompb.TimeSeries, 0, len(samples)),
	}
	for _, s := range samples {
		req.Timeseries = append(req.Timeseries, p.timeSeries(s, now))
	}

	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// timeSeries converts a sample to the remote write format. Labels are
// sorted by name, as remote write receivers expect.
func (p *pusher) timeSeries(s sample, timestamp int64) prompb.TimeSeries {
	name := s.name
	if p.prefix != "" {
		name = p.prefix + "_" + name
	}

	labels := make([]prompb.Label, 0, len(s.labels)+3)
	labels = append(labels, prompb.Label{Name: "__name__", Value: name})
	if p.job != "" {
		labels = append(labels, prompb.Label{Name: "job", Value: p.job})
	}
	if p.instance != "" {
		labels = append(labels, prompb.Label{Name: "instance", Value: p.instance})
	}
	for k, v := range s.labels {
		labels = append(labels, prompb.Label{Name: k, Value: v})
	}
	slices.SortFunc(labels, func(a, b prompb.Label) int {
		return strings.Compare(a.Name, b.Name)
	})

	return prompb.TimeSeries{
		Labels:  labels,
		Samples: []prompb.Sample{{Value: s.value, Timestamp: timestamp}},
	}
}

// pushGauge implements Gauge for push mode.
type pushGauge struct {
	pusher *pusher
	name   string
	labels map[string]string
}

func (g *pushGauge) Set(v float64) {
	g.pusher.push(sample{name: g.name, value: v, labels: g.labels})
}

// pushGaugeVec implements GaugeVec for push mode.
type pushGaugeVec struct {
	pusher *pusher
	name   string
	labels []string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{pusher: g.pusher, name: g.name, labels: labels}
}

// pushCounter implements Counter for push mode. It keeps the running total
// since remote write stores absolute values.
type pushCounter struct {
	mu     sync.Mutex
	pusher *pusher
	name   string
	labels map[string]string
	value  float64
}

func (c *pushCounter) Inc() {
	c.Add(1)
}

func (c *pushCounter) Add(v float64) {
	if v < 0 {
		panic("counter cannot decrease in value")
	}
	c.mu.Lock()
	c.value += v
	value := c.value
	c.mu.Unlock()
	c.pusher.push(sample{name: c.name, value: value, labels: c.labels})
}

// pushCounterVec implements CounterVec for push mode.
type pushCounterVec struct {
	mu       sync.Mutex
	pusher   *pusher
	name     string
	labels   []string
	counters map[string]*pushCounter
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	key := labelsKey(labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[key]; ok {
		return counter
	}
	counter := &pushCounter{pusher: c.pusher, name: c.name, labels: labels}
	c.counters[key] = counter
	return counter
}

// pushHistogram implements Histogram for push mode.
type pushHistogram struct {
	mu     sync.Mutex
	pusher *pusher
	name   string
	labels map[string]string
	sum    float64
	count  float64
}

func (h *pushHistogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.count++
	sum, count := h.sum, h.count
	h.mu.Unlock()
	h.pusher.push(
		sample{name: h.name + "_sum", value: sum, labels: h.labels},
		sample{name: h.name + "_count", value: count, labels: h.labels},
	)
}

// pushHistogramVec implements HistogramVec for push mode.
type pushHistogramVec struct {
	mu         sync.Mutex
	pusher     *pusher
	name       string
	labels     []string
	histograms map[string]*pushHistogram
}

func (h *pushHistogramVec) With(labels prometheus.Labels) Histogram {
	key := labelsKey(labels)

	h.mu.Lock()
	defer h.mu.Unlock()

	if hist, ok := h.histograms[key]; ok {
		return hist
	}
	hist := &pushHistogram{pusher: h.pusher, name: h.name, labels: labels}
	h.histograms[key] = hist
	return hist
}

// labelsKey creates a map key from labels, independent of map order.
func labelsKey(labels prometheus.Labels) string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	slices.Sort(names)

	var sb strings.Builder
	for _, k := range names {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
		sb.WriteByte(',')
	}
	return sb.String()
}

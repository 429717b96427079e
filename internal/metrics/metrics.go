// Package metrics collects timing and outcome counters for page renders and
// asset fetches.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Operation names a timed step of the mirroring loop.
type Operation string

const (
	OpRender Operation = "render"
	OpFetch  Operation = "fetch"
)

// numBuckets is the size of the latency histogram.
const numBuckets = 10

// Collector collects and aggregates metrics. It is safe for concurrent use.
type Collector struct {
	render timing
	fetch  timing

	bytesTotal atomic.Int64

	// Error breakdown by error type
	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	// Status code breakdown of fetched assets
	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	startTime time.Time
	now       func() time.Time
}

// timing accumulates latencies of one operation.
type timing struct {
	total   atomic.Int64
	failed  atomic.Int64
	sumMs   atomic.Int64
	buckets [numBuckets]atomic.Int64 // <10, <50, <100, <250, <500, <1000, <2500, <5000, <10000, >=10000
}

func (t *timing) record(d time.Duration, failed bool) {
	ms := d.Milliseconds()
	t.total.Add(1)
	t.sumMs.Add(ms)
	t.buckets[bucket(ms)].Add(1)
	if failed {
		t.failed.Add(1)
	}
}

func (t *timing) average() time.Duration {
	n := t.total.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(t.sumMs.Load()/n) * time.Millisecond
}

func (t *timing) histogram() []int64 {
	hist := make([]int64, numBuckets)
	for i := range hist {
		hist[i] = t.buckets[i].Load()
	}
	return hist
}

func (t *timing) reset() {
	t.total.Store(0)
	t.failed.Store(0)
	t.sumMs.Store(0)
	for i := range t.buckets {
		t.buckets[i].Store(0)
	}
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		errorCounts: make(map[string]*atomic.Int64),
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// bucket returns the histogram bucket for a latency in milliseconds.
func bucket(ms int64) int {
	switch {
	case ms < 10:
		return 0
	case ms < 50:
		return 1
	case ms < 100:
		return 2
	case ms < 250:
		return 3
	case ms < 500:
		return 4
	case ms < 1000:
		return 5
	case ms < 2500:
		return 6
	case ms < 5000:
		return 7
	case ms < 10000:
		return 8
	default:
		return 9
	}
}

// RecordRender records one page render.
func (c *Collector) RecordRender(d time.Duration, err error) {
	c.render.record(d, err != nil)
}

// RecordFetch records one asset fetch. statusCode is zero when the request
// never produced a response.
func (c *Collector) RecordFetch(d time.Duration, statusCode int, size int, err error) {
	c.fetch.record(d, err != nil)
	if statusCode > 0 {
		c.RecordStatusCode(statusCode)
	}
	if size > 0 {
		c.bytesTotal.Add(int64(size))
	}
}

// Time runs fn and records its duration against op.
func (c *Collector) Time(op Operation, fn func() error) error {
	start := c.now()
	err := fn()
	d := c.now().Sub(start)
	switch op {
	case OpRender:
		c.RecordRender(d, err)
	case OpFetch:
		c.RecordFetch(d, 0, 0, err)
	}
	return err
}

// RecordError records an error of the given type.
func (c *Collector) RecordError(errorType string) {
	c.errorMu.Lock()
	if c.errorCounts[errorType] == nil {
		c.errorCounts[errorType] = &atomic.Int64{}
	}
	c.errorCounts[errorType].Add(1)
	c.errorMu.Unlock()
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:     c.now(),
		Uptime:        c.now().Sub(c.startTime),
		Renders:       c.render.total.Load(),
		RenderFailed:  c.render.failed.Load(),
		Fetches:       c.fetch.total.Load(),
		FetchFailed:   c.fetch.failed.Load(),
		BytesFetched:  c.bytesTotal.Load(),
		AverageRender: c.render.average(),
		AverageFetch:  c.fetch.average(),
		RenderHist:    c.render.histogram(),
		FetchHist:     c.fetch.histogram(),
		ErrorCounts:   make(map[string]int64),
		StatusCodes:   make(map[int]int64),
	}

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	return s
}

// Reset resets all metrics.
func (c *Collector) Reset() {
	c.render.reset()
	c.fetch.reset()
	c.bytesTotal.Store(0)

	c.errorMu.Lock()
	c.errorCounts = make(map[string]*atomic.Int64)
	c.errorMu.Unlock()

	c.statusMu.Lock()
	c.statusCodes = make(map[int]*atomic.Int64)
	c.statusMu.Unlock()

	c.startTime = c.now()
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp     time.Time        `json:"timestamp"`
	Uptime        time.Duration    `json:"uptime"`
	Renders       int64            `json:"renders"`
	RenderFailed  int64            `json:"render_failed"`
	Fetches       int64            `json:"fetches"`
	FetchFailed   int64            `json:"fetch_failed"`
	BytesFetched  int64            `json:"bytes_fetched"`
	AverageRender time.Duration    `json:"average_render"`
	AverageFetch  time.Duration    `json:"average_fetch"`
	RenderHist    []int64          `json:"render_histogram"`
	FetchHist     []int64          `json:"fetch_histogram"`
	ErrorCounts   map[string]int64 `json:"error_counts"`
	StatusCodes   map[int]int64    `json:"status_codes"`
}

// FailureRate returns the share of renders and fetches that failed.
func (s *Snapshot) FailureRate() float64 {
	total := s.Renders + s.Fetches
	if total == 0 {
		return 0
	}
	return float64(s.RenderFailed+s.FetchFailed) / float64(total)
}

// Summary returns the headline figures as log fields.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"renders":       s.Renders,
		"fetches":       s.Fetches,
		"failure_rate":  s.FailureRate(),
		"avg_render_ms": s.AverageRender.Milliseconds(),
		"avg_fetch_ms":  s.AverageFetch.Milliseconds(),
		"bytes_fetched": s.BytesFetched,
		"error_types":   len(s.ErrorCounts),
	}
}

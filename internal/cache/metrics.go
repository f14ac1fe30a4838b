package cache

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics counts cache outcomes. It is also a prometheus.Collector so
// the same counters back /metrics.
type CacheMetrics struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Errors   int64 `json:"errors"`
	Bypassed int64 `json:"bypassed"`

	Sets      int64 `json:"sets"`
	Deletes   int64 `json:"deletes"`
	StartTime int64 `json:"start_time"`
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{
		StartTime: time.Now().Unix(),
	}
}

func (m *CacheMetrics) RecordHit() {
	atomic.AddInt64(&m.Hits, 1)
}

func (m *CacheMetrics) RecordMiss() {
	atomic.AddInt64(&m.Misses, 1)
}

func (m *CacheMetrics) RecordError() {
	atomic.AddInt64(&m.Errors, 1)
}

// RecordBypass counts a lookup skipped because the circuit was open.
func (m *CacheMetrics) RecordBypass() {
	atomic.AddInt64(&m.Bypassed, 1)
}

func (m *CacheMetrics) RecordSet() {
	atomic.AddInt64(&m.Sets, 1)
}

func (m *CacheMetrics) RecordDelete() {
	atomic.AddInt64(&m.Deletes, 1)
}

func (m *CacheMetrics) GetStats() CacheMetrics {
	return CacheMetrics{
		Hits:      atomic.LoadInt64(&m.Hits),
		Misses:    atomic.LoadInt64(&m.Misses),
		Errors:    atomic.LoadInt64(&m.Errors),
		Bypassed:  atomic.LoadInt64(&m.Bypassed),
		Sets:      atomic.LoadInt64(&m.Sets),
		Deletes:   atomic.LoadInt64(&m.Deletes),
		StartTime: m.StartTime,
	}
}

func (m *CacheMetrics) HitRate() float64 {
	hits := atomic.LoadInt64(&m.Hits)
	misses := atomic.LoadInt64(&m.Misses)
	total := hits + misses

	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total) * 100.0
}

var cacheOpsDesc = prometheus.NewDesc(
	"todo_api_cache_operations_total",
	"Cache operations by outcome.",
	[]string{"outcome"},
	nil,
)

func (m *CacheMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- cacheOpsDesc
}

func (m *CacheMetrics) Collect(ch chan<- prometheus.Metric) {
	stats := m.GetStats()
	for outcome, v := range map[string]int64{
		"hit":    stats.Hits,
		"miss":   stats.Misses,
		"error":  stats.Errors,
		"bypass": stats.Bypassed,
		"set":    stats.Sets,
		"delete": stats.Deletes,
	} {
		ch <- prometheus.MustNewConstMetric(cacheOpsDesc, prometheus.CounterValue, float64(v), outcome)
	}
}

// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 请求指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// 阶段指标（routing / retrieving / generating）
	stageDuration *prometheus.HistogramVec

	// 流式输出指标
	tokensStreamed prometheus.Counter
	activeStreams  prometheus.Gauge

	// 检索指标
	evidenceReturned prometheus.Histogram

	// 路由缓存指标
	routeCacheHits   prometheus.Counter
	routeCacheMisses prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器。
// reg 为 nil 时注册到默认 registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of streaming QA requests",
		},
		[]string{"mode", "status"},
	)

	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	c.stageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	c.tokensStreamed = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_streamed_total",
			Help:      "Total number of tokens streamed to clients",
		},
	)

	c.activeStreams = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of streams currently in flight",
		},
	)

	c.evidenceReturned = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evidence_returned",
			Help:      "Number of evidence items returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	c.routeCacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_cache_hits_total",
			Help:      "Total number of route cache hits",
		},
	)

	c.routeCacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_cache_misses_total",
			Help:      "Total number of route cache misses",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 请求指标记录
// =============================================================================

// RecordRequest 记录一次完整请求
func (c *Collector) RecordRequest(mode, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(mode, status).Inc()
	c.requestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordStage 记录单个阶段耗时
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// =============================================================================
// 🌊 流式指标记录
// =============================================================================

// RecordTokens 累加已流出的 token 数
func (c *Collector) RecordTokens(n int) {
	c.tokensStreamed.Add(float64(n))
}

// StreamStarted 标记一个流开始
func (c *Collector) StreamStarted() {
	c.activeStreams.Inc()
}

// StreamFinished 标记一个流结束
func (c *Collector) StreamFinished() {
	c.activeStreams.Dec()
}

// RecordEvidence 记录一次检索返回的证据条数
func (c *Collector) RecordEvidence(count int) {
	c.evidenceReturned.Observe(float64(count))
}

// =============================================================================
// 💾 路由缓存指标记录
// =============================================================================

// RecordRouteCacheHit 记录路由缓存命中
func (c *Collector) RecordRouteCacheHit() {
	c.routeCacheHits.Inc()
}

// RecordRouteCacheMiss 记录路由缓存未命中
func (c *Collector) RecordRouteCacheMiss() {
	c.routeCacheMisses.Inc()
}

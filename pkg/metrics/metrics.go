// Package metrics 提供定价服务的 Prometheus 指标
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/optionpricer/pkg/logger"
)

const namespace = "optionpricer"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 定价请求计数，按期权类型和结果区分
	PricingRequestsTotal *prometheus.CounterVec
	// 定价失败计数，按错误码区分
	PricingErrorsTotal *prometheus.CounterVec
	// 已完成的模拟次数
	ReplicationsTotal *prometheus.CounterVec
	// 定价耗时
	PricingDuration *prometheus.HistogramVec
	// 正在执行的定价任务数
	PricingInFlight prometheus.Gauge

	// 缓存命中
	CacheHitsTotal prometheus.Counter
	// 缓存未命中
	CacheMissesTotal prometheus.Counter
}

// New 创建指标实例，使用独立的 Registry
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	return &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "http_requests_total",
			Help:        "Total HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PricingRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pricing_requests_total",
			Help:        "Total pricing requests by payoff kind and outcome",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		PricingErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "pricing_errors_total",
			Help:        "Total pricing failures by error code",
			ConstLabels: constLabels,
		}, []string{"code"}),
		ReplicationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "replications_total",
			Help:        "Total simulated paths",
			ConstLabels: constLabels,
		}, []string{"kind"}),
		PricingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "pricing_duration_seconds",
			Help:        "Monte Carlo pricing duration in seconds",
			ConstLabels: constLabels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"kind"}),
		PricingInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "pricing_in_flight",
			Help:        "Number of pricing runs in progress",
			ConstLabels: constLabels,
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "result_cache_hits_total",
			Help:        "Total result cache hits",
			ConstLabels: constLabels,
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "result_cache_misses_total",
			Help:        "Total result cache misses",
			ConstLabels: constLabels,
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PricingRequestsTotal,
		m.PricingErrorsTotal,
		m.ReplicationsTotal,
		m.PricingDuration,
		m.PricingInFlight,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	}

	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 /metrics 的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MetricsCollector 指标收集器接口
type MetricsCollector interface {
	// 记录 HTTP 请求
	RecordHTTPRequest(method, path string, statusCode int, duration float64)
	// 记录一次定价，code 为空表示成功
	RecordPricing(kind string, replications int, duration float64, code string)
	// 记录缓存访问
	RecordCacheLookup(hit bool)
	// 定价开始，返回结束回调
	TrackInFlight() func()
}

// DefaultMetricsCollector 默认指标收集器实现
type DefaultMetricsCollector struct {
	metrics *Metrics
}

// NewDefaultMetricsCollector 创建默认指标收集器
func NewDefaultMetricsCollector(metrics *Metrics) *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		metrics: metrics,
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (dmc *DefaultMetricsCollector) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	dmc.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	dmc.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordPricing 记录定价
func (dmc *DefaultMetricsCollector) RecordPricing(kind string, replications int, duration float64, code string) {
	outcome := "success"
	if code != "" {
		outcome = "error"
		dmc.metrics.PricingErrorsTotal.WithLabelValues(code).Inc()
	}
	dmc.metrics.PricingRequestsTotal.WithLabelValues(kind, outcome).Inc()
	if replications > 0 {
		dmc.metrics.ReplicationsTotal.WithLabelValues(kind).Add(float64(replications))
	}
	dmc.metrics.PricingDuration.WithLabelValues(kind).Observe(duration)
}

// RecordCacheLookup 记录缓存访问
func (dmc *DefaultMetricsCollector) RecordCacheLookup(hit bool) {
	if hit {
		dmc.metrics.CacheHitsTotal.Inc()
		return
	}
	dmc.metrics.CacheMissesTotal.Inc()
}

// TrackInFlight 增加在途计数，返回的函数负责减少
func (dmc *DefaultMetricsCollector) TrackInFlight() func() {
	dmc.metrics.PricingInFlight.Inc()
	return dmc.metrics.PricingInFlight.Dec
}

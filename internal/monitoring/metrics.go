package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 消息指标
	MessagesSent      prometheus.Counter
	MessagesFlagged   *prometheus.CounterVec
	MessagesRejected  *prometheus.CounterVec
	MessagesDelivered prometheus.Counter

	// 审查指标
	FlagsUnblocked prometheus.Counter
	FlagsReflagged prometheus.Counter
	FlagQueueSize  prometheus.Gauge

	// 链接预览指标
	PreviewFetches  *prometheus.CounterVec
	PreviewDuration prometheus.Histogram

	// 实时推送指标
	RealtimeClients  prometheus.Gauge
	StreamsActive    prometheus.Gauge
	PushesDelivered  prometheus.Counter
	PushesDropped    prometheus.Counter
	NotificationsOut prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribemarket_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribemarket_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MessagesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_messages_sent_total",
				Help: "Total number of messages persisted",
			},
		),
		MessagesFlagged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribemarket_messages_flagged_total",
				Help: "Total number of messages flagged by the moderation pipeline",
			},
			[]string{"reason"},
		),
		MessagesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribemarket_messages_rejected_total",
				Help: "Total number of messages rejected before persistence",
			},
			[]string{"cause"},
		),
		MessagesDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_messages_delivered_total",
				Help: "Total number of messages pushed to realtime subscribers",
			},
		),

		FlagsUnblocked: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_flags_unblocked_total",
				Help: "Total number of flagged messages unblocked by reviewers",
			},
		),
		FlagsReflagged: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_flags_reflagged_total",
				Help: "Total number of messages reflagged after review",
			},
		),
		FlagQueueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribemarket_flag_queue_pending",
				Help: "Number of flagged messages awaiting review",
			},
		),

		PreviewFetches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribemarket_link_preview_fetches_total",
				Help: "Total number of link preview fetch attempts",
			},
			[]string{"outcome"},
		),
		PreviewDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scribemarket_link_preview_duration_seconds",
				Help:    "Link preview fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		RealtimeClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribemarket_realtime_clients",
				Help: "Number of connected WebSocket clients",
			},
		),
		StreamsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribemarket_sse_streams_active",
				Help: "Number of active SSE streams",
			},
		),
		PushesDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_pushes_delivered_total",
				Help: "Total number of realtime pushes delivered",
			},
		),
		PushesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_pushes_dropped_total",
				Help: "Total number of realtime pushes dropped on blocked clients",
			},
		),
		NotificationsOut: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_notifications_total",
				Help: "Total number of notifications written",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribemarket_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),
		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scribemarket_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribemarket_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
			[]string{"limit_type"},
		),
	}
}

// Record 方法均可在 nil 接收者上调用（测试装配不传指标）。

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMessageSent 记录消息落库
func (m *Metrics) RecordMessageSent() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

// RecordMessageFlagged 记录消息被标记
func (m *Metrics) RecordMessageFlagged(reason string) {
	if m == nil {
		return
	}
	m.MessagesFlagged.WithLabelValues(reason).Inc()
}

// RecordMessageRejected 记录消息在落库前被拒绝
func (m *Metrics) RecordMessageRejected(cause string) {
	if m == nil {
		return
	}
	m.MessagesRejected.WithLabelValues(cause).Inc()
}

// RecordMessageDelivered 记录实时推送成功投递一条消息
func (m *Metrics) RecordMessageDelivered() {
	if m == nil {
		return
	}
	m.MessagesDelivered.Inc()
}

// RecordFlagUnblocked 记录审查放行
func (m *Metrics) RecordFlagUnblocked() {
	if m == nil {
		return
	}
	m.FlagsUnblocked.Inc()
}

// RecordFlagReflagged 记录审查回退
func (m *Metrics) RecordFlagReflagged() {
	if m == nil {
		return
	}
	m.FlagsReflagged.Inc()
}

// SetFlagQueuePending 更新待审查队列长度
func (m *Metrics) SetFlagQueuePending(pending int) {
	if m == nil {
		return
	}
	m.FlagQueueSize.Set(float64(pending))
}

// RecordPreviewFetch 记录链接预览抓取结果
func (m *Metrics) RecordPreviewFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PreviewFetches.WithLabelValues(outcome).Inc()
	m.PreviewDuration.Observe(duration.Seconds())
}

// RecordNotifications 记录写出的通知数量
func (m *Metrics) RecordNotifications(count int) {
	if m == nil {
		return
	}
	m.NotificationsOut.Add(float64(count))
}

// ClientConnected 记录 WebSocket 客户端接入
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.RealtimeClients.Inc()
}

// ClientDisconnected 记录 WebSocket 客户端断开
func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.RealtimeClients.Dec()
}

// RecordPush 记录一次实时推送的投递结果
func (m *Metrics) RecordPush(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.PushesDelivered.Inc()
	} else {
		m.PushesDropped.Inc()
	}
}

// StreamStarted 记录 SSE 流开启
func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.StreamsActive.Inc()
}

// StreamEnded 记录 SSE 流结束
func (m *Metrics) StreamEnded() {
	if m == nil {
		return
	}
	m.StreamsActive.Dec()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拦截
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	if m == nil {
		return
	}
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// Handler 返回 Prometheus 指标端点
func Handler() http.Handler {
	return promhttp.Handler()
}

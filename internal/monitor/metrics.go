package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
type Metrics struct {
	websocketConnected prometheus.Gauge
	connectionState    prometheus.Gauge
	connectionErrors   *prometheus.CounterVec
	framesReceived     prometheus.Counter
	messagesReceived   *prometheus.CounterVec
	protocolErrors     prometheus.Counter
	recordsDispatched  *prometheus.CounterVec
	listenerErrors     *prometheus.CounterVec

	subscriptionCount prometheus.Gauge
	bufferSizeHint    prometheus.Gauge
	messageQueueSize  prometheus.Gauge

	natsConnected prometheus.Gauge
	natsPublished *prometheus.CounterVec

	cacheHitTotal  *prometheus.CounterVec
	cacheMissTotal *prometheus.CounterVec
}

// NewMetrics 创建指标收集器并注册到默认 registry
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		websocketConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_connected",
				Help:      "WebSocket 连接状态 (1=open)",
			},
		),
		connectionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connection_state",
				Help:      "连接状态机当前状态 (0=closed,1=connecting,2=open,3=closing)",
			},
		),
		connectionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_errors_total",
				Help:      "Total number of transport failures",
			},
			[]string{"op"}, // open, receive
		),
		framesReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_received_total",
				Help:      "接收到的 WebSocket 帧总数",
			},
		),
		messagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "解码成功的消息总数（按类型）",
			},
			[]string{"type"}, // trade, news, pr, error, ping
		),
		protocolErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_errors_total",
				Help:      "无法分类或解码的消息总数",
			},
		),
		recordsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_dispatched_total",
				Help:      "分发给监听器的记录总数（按类型）",
			},
			[]string{"type"},
		),
		listenerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listener_errors_total",
				Help:      "监听器返回错误或 panic 的次数",
			},
			[]string{"event"},
		),
		subscriptionCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "subscriptions",
				Help:      "当前连接上的订阅数",
			},
		),
		bufferSizeHint: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "buffer_size_hint_bytes",
				Help:      "接收缓冲区大小估算",
			},
		),
		messageQueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "message_queue_size",
				Help:      "消息队列当前大小",
			},
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected)",
			},
		),
		natsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nats_published_total",
				Help:      "Total number of records published to NATS",
			},
			[]string{"type", "status"}, // status: success, error
		),
		cacheHitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hit_total",
				Help:      "缓存命中总数（按缓存类型）",
			},
			[]string{"cache_type"}, // news, pr
		),
		cacheMissTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_miss_total",
				Help:      "缓存未命中总数（按缓存类型）",
			},
			[]string{"cache_type"},
		),
	}

	prometheus.MustRegister(
		m.websocketConnected,
		m.connectionState,
		m.connectionErrors,
		m.framesReceived,
		m.messagesReceived,
		m.protocolErrors,
		m.recordsDispatched,
		m.listenerErrors,
		m.subscriptionCount,
		m.bufferSizeHint,
		m.messageQueueSize,
		m.natsConnected,
		m.natsPublished,
		m.cacheHitTotal,
		m.cacheMissTotal,
	)

	return m
}

// SetWebSocketConnected 设置WebSocket连接状态
func (m *Metrics) SetWebSocketConnected(connected bool) {
	if connected {
		m.websocketConnected.Set(1)
	} else {
		m.websocketConnected.Set(0)
	}
}

func (m *Metrics) SetConnectionState(state int) {
	m.connectionState.Set(float64(state))
}

func (m *Metrics) IncConnectionError(op string) {
	m.connectionErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) IncFramesReceived() {
	m.framesReceived.Inc()
}

func (m *Metrics) IncMessagesReceived(msgType string) {
	m.messagesReceived.WithLabelValues(msgType).Inc()
}

func (m *Metrics) IncProtocolError() {
	m.protocolErrors.Inc()
}

func (m *Metrics) AddRecordsDispatched(recordType string, n int) {
	m.recordsDispatched.WithLabelValues(recordType).Add(float64(n))
}

func (m *Metrics) IncListenerError(event string) {
	m.listenerErrors.WithLabelValues(event).Inc()
}

func (m *Metrics) SetSubscriptionCount(count int) {
	m.subscriptionCount.Set(float64(count))
}

func (m *Metrics) SetBufferSizeHint(bytes int) {
	m.bufferSizeHint.Set(float64(bytes))
}

// SetMessageQueueSize 设置消息队列大小
func (m *Metrics) SetMessageQueueSize(size int) {
	m.messageQueueSize.Set(float64(size))
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

func (m *Metrics) IncNATSPublished(recordType, status string) {
	m.natsPublished.WithLabelValues(recordType, status).Inc()
}

// IncCacheHit 增加缓存命中计数
func (m *Metrics) IncCacheHit(cacheType string) {
	m.cacheHitTotal.WithLabelValues(cacheType).Inc()
}

// IncCacheMiss 增加缓存未命中计数
func (m *Metrics) IncCacheMiss(cacheType string) {
	m.cacheMissTotal.WithLabelValues(cacheType).Inc()
}

var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics 获取全局指标收集器
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("finnhub_stream")
	})
	return globalMetrics
}

// InitMetrics 初始化指标收集器（供main使用）
func InitMetrics() {
	GetMetrics()
}

package monitor

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-finnhub-stream/pkg/goplus"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

// StreamRef 行情连接引用接口
type StreamRef interface {
	IsConnected() bool
	GetStats() map[string]any
}

// PublisherRef NATS发布器引用接口
type PublisherRef interface {
	IsConnected() bool
}

// HealthServer HTTP 健康检查和指标服务器
type HealthServer struct {
	addr      string
	stream    StreamRef
	publisher PublisherRef
	server    *http.Server
	startTime time.Time

	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	sources      map[string]func() any
}

// HealthStatus 健康状态
type HealthStatus struct {
	Healthy      bool            `json:"healthy"`
	HealthySince string          `json:"healthy_since"`
	Uptime       string          `json:"uptime"`
	WebSocket    WebSocketStatus `json:"websocket"`
	NATS         NATSStatus      `json:"nats"`
}

// WebSocketStatus WebSocket状态
type WebSocketStatus struct {
	Connected bool           `json:"connected"`
	Stats     map[string]any `json:"stats,omitempty"`
}

// NATSStatus NATS状态
type NATSStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// NewHealthServer 创建健康检查服务器，publisher 可以为 nil
func NewHealthServer(addr string, stream StreamRef, publisher PublisherRef) *HealthServer {
	return &HealthServer{
		addr:         addr,
		stream:       stream,
		publisher:    publisher,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
		sources:      make(map[string]func() any),
	}
}

// AddStatusSource 在 /status 中追加一项
func (h *HealthServer) AddStatusSource(name string, fn func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources[name] = fn
}

// Handler 路由
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", h.statusHandler)

	return mux
}

// Start 启动HTTP服务器
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	goplus.Go(func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", h.addr).Msg("health server started")

	return nil
}

// Stop 停止服务器
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthHandler 健康检查处理器
func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// readyHandler 就绪检查处理器：行情连接打开才算就绪
func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// liveHandler 存活检查处理器
func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusHandler 服务状态处理器
func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"health": h.getHealthStatus(),
	}

	h.mu.RLock()
	for name, fn := range h.sources {
		status[name] = fn()
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *HealthServer) isReady() bool {
	h.mu.RLock()
	healthy := h.healthy
	h.mu.RUnlock()

	return healthy && h.stream != nil && h.stream.IsConnected()
}

// getHealthStatus 获取健康状态
func (h *HealthServer) getHealthStatus() HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	ws := WebSocketStatus{}
	if h.stream != nil {
		ws.Connected = h.stream.IsConnected()
		ws.Stats = h.stream.GetStats()
	}

	nats := NATSStatus{Enabled: h.publisher != nil}
	if h.publisher != nil {
		nats.Connected = h.publisher.IsConnected()
	}

	return HealthStatus{
		Healthy:      healthy && ws.Connected,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		WebSocket:    ws,
		NATS:         nats,
	}
}

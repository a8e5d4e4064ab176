package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/proxy"

	"github.com/utrading/utrading-finnhub-stream/pkg/goplus"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultReadChunkSize    = 4096
	maxMessageSize          = 8 << 20
	closeGracePeriod        = time.Second
)

// Transport 全双工消息传输，按帧读取
// Receive 只允许一个 goroutine 调用，Send 可并发
type Transport interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, data []byte) error
	Receive() (Frame, error)
	Close() error
	State() ConnectionState
}

// TransportFactory 每次连接创建新的 Transport
type TransportFactory func() Transport

// TransportConfig WebSocket 传输配置
type TransportConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingPeriod       time.Duration // 0 表示不主动发 ping
	ReadChunkSize    int
	ProxyAddr        string // SOCKS5 代理地址，空表示直连
}

// WebsocketTransport 基于 gorilla/websocket 的 Transport
type WebsocketTransport struct {
	cfg TransportConfig

	mu    sync.RWMutex
	conn  *websocket.Conn
	state atomic.Int32

	writeMu sync.Mutex

	// 仅由读 goroutine 访问
	reader     io.Reader
	readerText bool
	buf        []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewWebsocketTransport 创建传输
func NewWebsocketTransport(cfg TransportConfig) *WebsocketTransport {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReadChunkSize <= 0 {
		cfg.ReadChunkSize = defaultReadChunkSize
	}
	return &WebsocketTransport{
		cfg:  cfg,
		buf:  make([]byte, cfg.ReadChunkSize),
		done: make(chan struct{}),
	}
}

func (t *WebsocketTransport) dialer() (*websocket.Dialer, error) {
	d := &websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if t.cfg.ProxyAddr == "" {
		return d, nil
	}

	socks, err := proxy.SOCKS5("tcp", t.cfg.ProxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}
	cd, ok := socks.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New("socks5 dialer does not support context")
	}
	d.Proxy = nil
	d.NetDialContext = cd.DialContext
	return d, nil
}

// Open 建立连接
func (t *WebsocketTransport) Open(ctx context.Context) error {
	if !t.state.CompareAndSwap(int32(StateClosed), int32(StateConnecting)) {
		return fmt.Errorf("transport cannot open in state %s", t.State())
	}

	d, err := t.dialer()
	if err != nil {
		t.state.Store(int32(StateClosed))
		return err
	}

	conn, _, err := d.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		t.state.Store(int32(StateClosed))
		return fmt.Errorf("dial error: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.state.Store(int32(StateOpen))

	if t.cfg.PingPeriod > 0 {
		goplus.Go(t.pingLoop)
	}
	return nil
}

// Send 发送一条文本消息，超时取 ctx 截止时间和 WriteTimeout 中较早者
func (t *WebsocketTransport) Send(ctx context.Context, data []byte) error {
	conn := t.getConn()
	if conn == nil || t.State() != StateOpen {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Receive 读取下一帧
// 一条消息被拆成若干块返回，消息结束时返回 Final 帧（可能为空）
func (t *WebsocketTransport) Receive() (Frame, error) {
	conn := t.getConn()
	if conn == nil {
		return Frame{}, ErrNotConnected
	}

	for {
		if t.reader == nil {
			mt, r, err := conn.NextReader()
			if err != nil {
				return Frame{}, err
			}
			t.reader = r
			t.readerText = mt == websocket.TextMessage
		}

		n, err := t.reader.Read(t.buf)
		if err == io.EOF {
			t.reader = nil
			return Frame{Payload: t.buf[:n], Final: true, Text: t.readerText}, nil
		}
		if err != nil {
			t.reader = nil
			return Frame{}, err
		}
		if n == 0 {
			continue
		}
		return Frame{Payload: t.buf[:n], Text: t.readerText}, nil
	}
}

// Close 发送 close 帧并关闭底层连接，可重复调用
func (t *WebsocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)

		t.mu.Lock()
		conn := t.conn
		t.conn = nil
		t.mu.Unlock()

		if conn == nil {
			t.state.Store(int32(StateClosed))
			return
		}

		t.state.Store(int32(StateClosing))
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); werr != nil {
			logger.Debug().Err(werr).Msg("ws write close frame failed")
		}
		err = conn.Close()
		t.state.Store(int32(StateClosed))
	})
	return err
}

// State 当前传输状态
func (t *WebsocketTransport) State() ConnectionState {
	return ConnectionState(t.state.Load())
}

func (t *WebsocketTransport) getConn() *websocket.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn
}

func (t *WebsocketTransport) pingLoop() {
	ticker := time.NewTicker(t.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			conn := t.getConn()
			if conn == nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.WriteTimeout)); err != nil {
				logger.Debug().Err(err).Msg("ws ping failed")
				return
			}
		}
	}
}

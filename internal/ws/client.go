package ws

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utrading/utrading-finnhub-stream/internal/manager"
	"github.com/utrading/utrading-finnhub-stream/internal/models"
	"github.com/utrading/utrading-finnhub-stream/internal/monitor"
	"github.com/utrading/utrading-finnhub-stream/internal/processor"
	"github.com/utrading/utrading-finnhub-stream/pkg/goplus"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

const (
	DefaultURL            = "wss://ws.finnhub.io"
	defaultDisposeTimeout = 5 * time.Second
)

// Config 客户端配置
type Config struct {
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingPeriod       time.Duration
	ReadChunkSize    int
	DisposeTimeout   time.Duration
	ProxyAddr        string
	Sizing           manager.Sizing
}

// BuildURL 拼接带 token 的连接地址
func BuildURL(base, token string) (string, error) {
	if base == "" {
		base = DefaultURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse ws url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("unsupported ws url scheme %q", u.Scheme)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Option 客户端选项
type Option func(*Client)

// WithTransportFactory 替换传输实现
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Client) {
		c.newTransport = f
	}
}

// session 一次连接的全部状态，断开时整体丢弃
type session struct {
	transport   Transport
	reassembler *FrameReassembler
	queue       *processor.MessageQueue
	closing     atomic.Bool
	failure     atomic.Pointer[ConnectionError] // 读循环意外退出的原因
	openedAt    time.Time
}

func (s *session) close() {
	s.closing.Store(true)
	s.queue.Close()
	if err := s.transport.Close(); err != nil {
		logger.Debug().Err(err).Msg("close transport")
	}
}

// Client Finnhub 行情 WebSocket 客户端
// 一个读 goroutine 拼帧入队，一个消费 goroutine 解码并分发事件
type Client struct {
	cfg          Config
	newTransport TransportFactory
	dispatcher   *Dispatcher
	subs         *manager.SubscriptionManager
	loops        *goplus.WaitGroup

	mu       sync.Mutex // 串行化 Connect/Disconnect，握手期间不持有
	pending  *connectAttempt
	state    atomic.Int32
	sess     atomic.Pointer[session]
	disposed atomic.Bool
}

// connectAttempt 进行中的握手，Disconnect 通过 cancel 中止它
type connectAttempt struct {
	cancel context.CancelFunc
}

// NewClient 创建客户端
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.DisposeTimeout <= 0 {
		cfg.DisposeTimeout = defaultDisposeTimeout
	}

	c := &Client{
		cfg:        cfg,
		dispatcher: NewDispatcher(),
		loops:      goplus.NewWaitGroup(),
	}
	c.subs = manager.NewSubscriptionManager(cfg.Sizing, c.applyHint)

	for _, opt := range opts {
		opt(c)
	}

	if c.newTransport == nil {
		wsURL, err := BuildURL(cfg.URL, cfg.Token)
		if err != nil {
			return nil, err
		}
		tcfg := TransportConfig{
			URL:              wsURL,
			HandshakeTimeout: cfg.HandshakeTimeout,
			WriteTimeout:     cfg.WriteTimeout,
			PingPeriod:       cfg.PingPeriod,
			ReadChunkSize:    cfg.ReadChunkSize,
			ProxyAddr:        cfg.ProxyAddr,
		}
		c.newTransport = func() Transport {
			return NewWebsocketTransport(tcfg)
		}
	}

	return c, nil
}

// Connect 建立连接并启动读写循环，已连接或连接中直接返回
// 握手期间调用 Disconnect 会中止本次连接并返回 ErrConnectAborted
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()

	if c.disposed.Load() {
		c.mu.Unlock()
		return ErrClientDisposed
	}
	if s := c.State(); s == StateConnecting || s == StateOpen {
		c.mu.Unlock()
		return nil
	}

	t := c.newTransport()
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	att := &connectAttempt{cancel: cancel}
	c.pending = att
	c.setState(StateConnecting)
	c.mu.Unlock()

	err := t.Open(dialCtx)

	c.mu.Lock()
	if c.pending != att {
		// 握手期间被 Disconnect 中止，状态已由 teardown 复位
		c.mu.Unlock()
		_ = t.Close()
		logger.Info().Msg("ws connect aborted")
		return &ConnectionError{Op: "open", Err: ErrConnectAborted}
	}
	c.pending = nil

	if err != nil {
		_ = t.Close()
		c.setState(StateClosed)
		c.mu.Unlock()

		cerr := &ConnectionError{Op: "open", Err: err}
		monitor.IncConnectionError(cerr.Op)
		logger.Error().Err(err).Msg("ws connect failed")
		c.dispatcher.Emit(EventError, cerr)
		return cerr
	}

	c.subs.Reset()
	sess := &session{
		transport:   t,
		reassembler: NewFrameReassembler(c.subs.Hint()),
		queue:       processor.NewMessageQueue(),
		openedAt:    time.Now(),
	}
	c.sess.Store(sess)
	c.setState(StateOpen)

	c.loops.Go(func() { c.produce(sess) })
	c.loops.Go(func() { c.consume(sess) })
	c.mu.Unlock()

	logger.Info().Msg("ws connected")
	c.dispatcher.Emit(EventConnected, nil)
	return nil
}

// Disconnect 断开连接，未连接时什么都不做
func (c *Client) Disconnect() {
	c.teardown(nil)
}

// Dispose 断开并等待后台循环退出，可重复调用
// 不要在回调中调用：消费循环会一直等到 DisposeTimeout
func (c *Client) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.Disconnect()

	done := make(chan struct{})
	go func() {
		c.loops.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("ws client disposed")
	case <-time.After(c.cfg.DisposeTimeout):
		logger.Warn().
			Int64("loops", c.ActiveLoops()).
			Dur("timeout", c.cfg.DisposeTimeout).
			Msg("ws client dispose timed out waiting for loops")
	}
}

// teardown 关闭当前会话；expected 不为空时只在它仍是当前会话时关闭
// 握手中的连接只取消，不发 disconnected
func (c *Client) teardown(expected *session) bool {
	c.mu.Lock()
	if expected == nil && c.pending != nil {
		c.pending.cancel()
		c.pending = nil
		c.setState(StateClosed)
		c.mu.Unlock()
		return false
	}

	sess := c.sess.Load()
	if sess == nil || c.State() == StateClosed || (expected != nil && sess != expected) {
		c.mu.Unlock()
		return false
	}

	c.setState(StateClosing)
	sess.close()
	c.sess.Store(nil)
	c.setState(StateClosed)
	c.mu.Unlock()

	logger.Info().Dur("uptime", time.Since(sess.openedAt)).Msg("ws disconnected")
	c.dispatcher.Emit(EventDisconnected, nil)
	return true
}

// produce 读帧、拼帧、入队
func (c *Client) produce(sess *session) {
	defer sess.reassembler.Reset()

	for c.State() == StateOpen && !sess.closing.Load() {
		frame, err := sess.transport.Receive()
		if err != nil {
			// 主动断开导致的读错误属于正常退出
			if sess.closing.Load() {
				return
			}
			// 交给消费循环上报，排在已入队的消息之后
			sess.failure.Store(&ConnectionError{Op: "receive", Err: err})
			_ = sess.queue.Push(nil)
			return
		}

		monitor.IncFramesReceived()
		msg, ok := sess.reassembler.Accumulate(frame.Payload, frame.Final)
		if !ok {
			continue
		}
		if err = sess.queue.Push(msg); err != nil {
			return
		}
		monitor.SetMessageQueueSize(sess.queue.Size())
	}
}

// consume 出队、解码、分发；所有 feed 事件都在这个 goroutine 上回调
func (c *Client) consume(sess *session) {
	sess.queue.Run(processor.MessageHandlerFunc(func(msg []byte) error {
		if sess.closing.Load() {
			return nil
		}
		if msg == nil {
			c.handleFailure(sess)
			return nil
		}
		return c.handleMessage(msg)
	}))
}

// handleFailure 上报读循环的连接错误并关闭会话
func (c *Client) handleFailure(sess *session) {
	cerr := sess.failure.Load()
	if cerr == nil {
		return
	}
	monitor.IncConnectionError(cerr.Op)
	logger.Warn().Err(cerr.Err).Msg("ws receive failed")
	c.dispatcher.Emit(EventError, cerr)
	c.teardown(sess)
}

func (c *Client) handleMessage(msg []byte) error {
	ev, err := processor.Decode(msg)
	if err != nil {
		monitor.IncProtocolError()
		c.dispatcher.Emit(EventError, err)
		return err
	}
	if ev == nil {
		monitor.IncMessagesReceived(string(processor.MessageTypePing))
		return nil
	}

	monitor.IncMessagesReceived(string(ev.Type))

	switch ev.Type {
	case processor.MessageTypeError:
		c.dispatcher.Emit(EventError, ev.Err)
	case processor.MessageTypeTrade:
		monitor.AddRecordsDispatched(string(ev.Type), ev.Len())
		c.dispatcher.Emit(EventTrade, ev.Trades)
	case processor.MessageTypeNews:
		monitor.AddRecordsDispatched(string(ev.Type), ev.Len())
		c.dispatcher.Emit(EventNews, ev.News)
	case processor.MessageTypePressRelease:
		monitor.AddRecordsDispatched(string(ev.Type), ev.Len())
		c.dispatcher.Emit(EventPressRelease, ev.PressReleases)
	}
	return nil
}

// SubscribeTrade 订阅逐笔成交
func (c *Client) SubscribeTrade(ctx context.Context, symbol string) error {
	return c.subscribe(ctx, manager.KindTrade, symbol)
}

// SubscribeNews 订阅新闻
func (c *Client) SubscribeNews(ctx context.Context, symbol string) error {
	return c.subscribe(ctx, manager.KindNews, symbol)
}

// SubscribePressRelease 订阅公告
func (c *Client) SubscribePressRelease(ctx context.Context, symbol string) error {
	return c.subscribe(ctx, manager.KindPressRelease, symbol)
}

func (c *Client) subscribe(ctx context.Context, kind manager.Kind, symbol string) error {
	sub, err := manager.NewSubscription(kind, symbol)
	if err != nil {
		err = &manager.SubscriptionError{Subscription: manager.Subscription{Kind: kind, Symbol: symbol}, Err: err}
	} else if sess := c.sess.Load(); sess == nil || c.State() != StateOpen {
		err = &manager.SubscriptionError{Subscription: sub, Err: ErrNotConnected}
	} else {
		err = c.subs.Subscribe(ctx, sess.transport, sub)
	}

	if err != nil {
		logger.Warn().Err(err).Str("kind", kind.String()).Str("symbol", symbol).Msg("subscribe failed")
		c.dispatcher.Emit(EventError, err)
		return err
	}
	return nil
}

// applyHint 订阅数变化时同步给当前会话的拼帧器
func (c *Client) applyHint(hint int) {
	if sess := c.sess.Load(); sess != nil {
		sess.reassembler.SetSizeHint(hint)
	}
}

// OnTrade 注册成交回调
func (c *Client) OnTrade(fn func([]models.Trade) error) ListenerID {
	return c.dispatcher.On(EventTrade, func(p any) error {
		return fn(p.([]models.Trade))
	})
}

// OnNews 注册新闻回调
func (c *Client) OnNews(fn func([]models.News) error) ListenerID {
	return c.dispatcher.On(EventNews, func(p any) error {
		return fn(p.([]models.News))
	})
}

// OnPressRelease 注册公告回调
func (c *Client) OnPressRelease(fn func([]models.PressRelease) error) ListenerID {
	return c.dispatcher.On(EventPressRelease, func(p any) error {
		return fn(p.([]models.PressRelease))
	})
}

// OnError 注册错误回调
// 消息和连接错误在消费 goroutine 上回调，Connect 和订阅失败在调用方 goroutine
func (c *Client) OnError(fn func(error)) ListenerID {
	return c.dispatcher.On(EventError, func(p any) error {
		err, _ := p.(error)
		fn(err)
		return nil
	})
}

func (c *Client) OnConnected(fn func()) ListenerID {
	return c.dispatcher.On(EventConnected, func(any) error {
		fn()
		return nil
	})
}

func (c *Client) OnDisconnected(fn func()) ListenerID {
	return c.dispatcher.On(EventDisconnected, func(any) error {
		fn()
		return nil
	})
}

// Off 注销回调
func (c *Client) Off(id ListenerID) bool {
	return c.dispatcher.Off(id)
}

// State 当前连接状态
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

// ActiveLoops 正在运行的后台循环数
func (c *Client) ActiveLoops() int64 {
	return c.loops.CurrentGoCount.Load()
}

// Subscriptions 当前连接上的订阅
func (c *Client) Subscriptions() []manager.Subscription {
	return c.subs.Active()
}

// GetStats 获取统计信息
func (c *Client) GetStats() map[string]any {
	stats := map[string]any{
		"state":        c.State().String(),
		"active_loops": c.ActiveLoops(),
		"disposed":     c.disposed.Load(),
	}
	for k, v := range c.subs.GetStats() {
		stats[k] = v
	}

	if sess := c.sess.Load(); sess != nil {
		stats["queue_size"] = sess.queue.Size()
		stats["connected_since"] = sess.openedAt.Format(time.RFC3339)
		stats["transport_state"] = sess.transport.State().String()
	}
	return stats
}

func (c *Client) setState(s ConnectionState) {
	c.state.Store(int32(s))
	monitor.SetConnectionState(int(s))
	monitor.SetWebSocketConnected(s == StateOpen)
}

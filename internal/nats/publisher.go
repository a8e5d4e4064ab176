package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/panjf2000/ants/v2"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
	"github.com/utrading/utrading-finnhub-stream/internal/monitor"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

const (
	defaultPoolSize     = 16
	defaultFlushTimeout = 2 * time.Second
)

var ErrPublisherClosed = errors.New("nats publisher is closed")

// PublisherConfig 发布器配置
type PublisherConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	PoolSize      int
	FlushTimeout  time.Duration
}

// conn *nats.Conn 中发布器用到的部分
type conn interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher 把解码后的记录转发到 NATS
// 发布在协程池中异步执行，池满时降级为同步发布并返回发布错误
type Publisher struct {
	conn     conn
	subjects Subjects
	pool     *ants.Pool
	flush    time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewPublisher 创建 NATS 发布器
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			monitor.SetNATSConnected(false)
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			monitor.SetNATSConnected(true)
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		nc.Close()
		return nil, err
	}

	p := newPublisher(nc, pool, NewSubjects(cfg.SubjectPrefix), cfg.FlushTimeout)

	monitor.SetNATSConnected(true)
	logger.Info().Str("url", nc.ConnectedUrl()).Str("prefix", p.subjects.Prefix).Msg("nats publisher connected")

	return p, nil
}

func newPublisher(c conn, pool *ants.Pool, subjects Subjects, flush time.Duration) *Publisher {
	return &Publisher{
		conn:     c,
		subjects: subjects,
		pool:     pool,
		flush:    flush,
	}
}

// PublishTrades 按代码分组发布成交
func (p *Publisher) PublishTrades(trades []models.Trade) error {
	order, groups := groupTrades(trades)
	for _, symbol := range order {
		if err := p.publishJSON("trade", p.subjects.Trade(symbol), groups[symbol]); err != nil {
			return err
		}
	}
	return nil
}

// PublishNews 发布新闻
func (p *Publisher) PublishNews(news []models.News) error {
	if len(news) == 0 {
		return nil
	}
	return p.publishJSON("news", p.subjects.News(), news)
}

// PublishPressReleases 发布公告
func (p *Publisher) PublishPressReleases(prs []models.PressRelease) error {
	if len(prs) == 0 {
		return nil
	}
	return p.publishJSON("pr", p.subjects.PressRelease(), prs)
}

func (p *Publisher) publishJSON(recordType, subject string, v any) error {
	if !p.IsConnected() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		monitor.IncNATSPublished(recordType, "marshal_error")
		return err
	}

	err = p.pool.Submit(func() {
		_ = p.publish(recordType, subject, data)
	})
	if err != nil {
		// ants.ErrPoolOverload，降级同步发布，阻塞的只是调用方的分发 goroutine
		logger.Warn().Err(err).Str("subject", subject).Msg("nats publish pool full, publishing synchronously")
		return p.publish(recordType, subject, data)
	}
	return nil
}

// publish 异步路径的错误只记日志和指标
func (p *Publisher) publish(recordType, subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		monitor.IncNATSPublished(recordType, "error")
		logger.Error().Err(err).Str("subject", subject).Msg("nats publish failed")
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	monitor.IncNATSPublished(recordType, "ok")
	return nil
}

// IsConnected 检查发布器是否已连接
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.conn != nil && p.conn.IsConnected()
}

// Close 等待池中任务完成，刷新缓冲后关闭连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if err := p.pool.ReleaseTimeout(p.flush); err != nil {
		logger.Warn().Err(err).Msg("nats publish pool release timed out")
	}
	if err := p.conn.FlushTimeout(p.flush); err != nil {
		logger.Warn().Err(err).Msg("nats flush failed")
	}
	p.conn.Close()

	monitor.SetNATSConnected(false)
	return nil
}

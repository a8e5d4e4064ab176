package manager

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/utrading/utrading-finnhub-stream/internal/monitor"
	"github.com/utrading/utrading-finnhub-stream/pkg/concurrent"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

var ErrNoTransport = errors.New("no transport")

// Sender 发送上行消息
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// Sizing 接收缓冲区大小估算参数
// 默认值为经验值：每条消息固定开销 60 字节，每个代码约 10 条成交、每条约 134 字节
type Sizing struct {
	FixedOverhead    int
	RecordSize       int
	RecordsPerSymbol int
	PageSize         int
	MaxHint          int
}

func DefaultSizing() Sizing {
	return Sizing{
		FixedOverhead:    60,
		RecordSize:       134,
		RecordsPerSymbol: 10,
		PageSize:         4096,
		MaxHint:          1 << 20,
	}
}

// withDefaults 未配置（<=0）的字段使用默认值
func (s Sizing) withDefaults() Sizing {
	d := DefaultSizing()
	if s.FixedOverhead <= 0 {
		s.FixedOverhead = d.FixedOverhead
	}
	if s.RecordSize <= 0 {
		s.RecordSize = d.RecordSize
	}
	if s.RecordsPerSymbol <= 0 {
		s.RecordsPerSymbol = d.RecordsPerSymbol
	}
	if s.PageSize <= 0 {
		s.PageSize = d.PageSize
	}
	if s.MaxHint <= 0 {
		s.MaxHint = d.MaxHint
	}
	return s
}

// Hint 按订阅数估算缓冲区大小：不小于一页，按页向上取整，不超过 MaxHint
func (s Sizing) Hint(count int) int {
	s = s.withDefaults()

	estimate := s.FixedOverhead + s.RecordSize*s.RecordsPerSymbol*count
	if estimate < s.PageSize {
		estimate = s.PageSize
	}
	estimate = (estimate + s.PageSize - 1) / s.PageSize * s.PageSize
	if estimate > s.MaxHint {
		estimate = s.MaxHint
	}
	return estimate
}

// SubscriptionManager 订阅管理器
// 记录当前连接上的订阅数，并据此调整接收缓冲区大小
type SubscriptionManager struct {
	sizing Sizing
	onHint func(int)

	mu    sync.Mutex
	count int
	hint  int

	active concurrent.Map[string, Subscription]
}

// NewSubscriptionManager 创建订阅管理器
// onHint 在持锁状态下调用，必须是非阻塞的
func NewSubscriptionManager(sizing Sizing, onHint func(int)) *SubscriptionManager {
	sizing = sizing.withDefaults()
	return &SubscriptionManager{
		sizing: sizing,
		onHint: onHint,
		hint:   sizing.Hint(0),
	}
}

// Subscribe 先发送订阅命令，成功后计数加一并重新计算 hint
// 发送失败时返回 *SubscriptionError，计数不变
func (m *SubscriptionManager) Subscribe(ctx context.Context, sender Sender, sub Subscription) error {
	if sender == nil {
		return &SubscriptionError{Subscription: sub, Err: ErrNoTransport}
	}

	data, err := sub.Marshal()
	if err != nil {
		return &SubscriptionError{Subscription: sub, Err: err}
	}

	if err = sender.Send(ctx, data); err != nil {
		return &SubscriptionError{Subscription: sub, Err: err}
	}

	m.mu.Lock()
	m.count++
	m.hint = m.sizing.Hint(m.count)
	count, hint := m.count, m.hint
	if m.onHint != nil {
		m.onHint(hint)
	}
	m.mu.Unlock()

	m.active.Store(sub.Key(), sub)

	monitor.SetSubscriptionCount(count)
	monitor.SetBufferSizeHint(hint)

	logger.Debug().
		Str("kind", sub.Kind.String()).
		Str("symbol", sub.Symbol).
		Int("count", count).
		Int("hint", hint).
		Msg("subscribed")

	return nil
}

// Reset 新连接建立时清零
func (m *SubscriptionManager) Reset() {
	m.mu.Lock()
	m.count = 0
	m.hint = m.sizing.Hint(0)
	hint := m.hint
	if m.onHint != nil {
		m.onHint(hint)
	}
	m.mu.Unlock()

	m.active.Clear()

	monitor.SetSubscriptionCount(0)
	monitor.SetBufferSizeHint(hint)
}

// Count 当前订阅数
func (m *SubscriptionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Hint 当前缓冲区大小估算
func (m *SubscriptionManager) Hint() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hint
}

// Active 当前连接上订阅过的 (类型, 代码)，按 key 排序
func (m *SubscriptionManager) Active() []Subscription {
	subs := make([]Subscription, 0, m.active.Len())
	for _, sub := range m.active.All() {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].Key() < subs[j].Key()
	})
	return subs
}

// GetStats 统计信息
func (m *SubscriptionManager) GetStats() map[string]any {
	keys := make([]string, 0)
	for _, sub := range m.Active() {
		keys = append(keys, sub.Key())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"count":         m.count,
		"hint_bytes":    m.hint,
		"subscriptions": keys,
	}
}

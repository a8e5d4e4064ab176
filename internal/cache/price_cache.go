package cache

import (
	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
	"github.com/utrading/utrading-finnhub-stream/pkg/concurrent"
)

type lastTrade struct {
	price     decimal.Decimal
	timestamp int64
}

// PriceCache 每个代码的最新成交价
type PriceCache struct {
	prices concurrent.Map[string, lastTrade] // BINANCE:BTCUSDT -> 7296.89
}

// NewPriceCache 创建价格缓存
func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Update 用一批成交更新价格，时间戳更早的成交不覆盖
func (c *PriceCache) Update(trades []models.Trade) {
	for _, t := range trades {
		next := lastTrade{price: t.Price, timestamp: t.Timestamp}
		for {
			prev, loaded := c.prices.LoadOrStore(t.Symbol, next)
			if !loaded {
				break
			}
			if prev.timestamp > next.timestamp {
				break
			}
			if c.prices.CompareAndSwap(t.Symbol, prev, next) {
				break
			}
		}
	}
}

// Get 获取最新成交价
func (c *PriceCache) Get(symbol string) (decimal.Decimal, bool) {
	last, ok := c.prices.Load(symbol)
	if !ok {
		return decimal.Zero, false
	}
	return last.price, true
}

// Snapshot 所有代码的最新价，用于 /status
func (c *PriceCache) Snapshot() map[string]string {
	out := make(map[string]string, c.prices.Len())
	c.prices.Range(func(symbol string, last lastTrade) bool {
		out[symbol] = last.price.String()
		return true
	})
	return out
}

// Stats 获取统计信息
func (c *PriceCache) Stats() map[string]any {
	return map[string]any{
		"symbol_count": c.prices.Len(),
	}
}

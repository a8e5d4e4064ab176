package cache

import (
	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
)

// DedupCacheInterface 去重缓存接口
type DedupCacheInterface interface {
	FirstSeen(kind string, id any) bool
	FilterNews(items []models.News) []models.News
	FilterPressReleases(items []models.PressRelease) []models.PressRelease
	Stats() map[string]any
}

// PriceCacheInterface 最新成交价缓存接口
type PriceCacheInterface interface {
	Update(trades []models.Trade)
	Get(symbol string) (decimal.Decimal, bool)
	Snapshot() map[string]string
	Stats() map[string]any
}

var (
	_ DedupCacheInterface = (*DedupCache)(nil)
	_ PriceCacheInterface = (*PriceCache)(nil)
)

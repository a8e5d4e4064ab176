package cache

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/cast"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
	"github.com/utrading/utrading-finnhub-stream/internal/monitor"
)

const (
	KindNews         = "news"
	KindPressRelease = "pr"
)

// DedupCache 新闻和公告去重，使用 go-cache 实现 TTL 自动过期
// 推送端在订阅多个代码时会对同一条新闻重复推送
type DedupCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewDedupCache 创建去重缓存，清理间隔为 2×TTL
func NewDedupCache(ttl time.Duration) *DedupCache {
	return &DedupCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// FirstSeen 第一次见到返回 true 并标记，之后 TTL 内返回 false
func (c *DedupCache) FirstSeen(kind string, id any) bool {
	// Add 在 key 已存在时返回错误，判断和标记是原子的
	if err := c.cache.Add(dedupKey(kind, id), time.Now(), cache.DefaultExpiration); err != nil {
		monitor.IncCacheHit("dedup_" + kind)
		return false
	}
	monitor.IncCacheMiss("dedup_" + kind)
	return true
}

// FilterNews 过滤掉已推送过的新闻（按 id）
func (c *DedupCache) FilterNews(items []models.News) []models.News {
	out := make([]models.News, 0, len(items))
	for _, n := range items {
		if c.FirstSeen(KindNews, n.ID) {
			out = append(out, n)
		}
	}
	return out
}

// FilterPressReleases 过滤掉已推送过的公告（按 url，缺失时按标题+时间）
func (c *DedupCache) FilterPressReleases(items []models.PressRelease) []models.PressRelease {
	out := make([]models.PressRelease, 0, len(items))
	for _, pr := range items {
		id := pr.URL
		if id == "" {
			id = pr.Headline + "@" + cast.ToString(pr.Datetime)
		}
		if c.FirstSeen(KindPressRelease, id) {
			out = append(out, pr)
		}
	}
	return out
}

// dedupKey 格式: "kind:id"
func dedupKey(kind string, id any) string {
	return kind + ":" + cast.ToString(id)
}

// Stats 获取统计信息
func (c *DedupCache) Stats() map[string]any {
	return map[string]any{
		"item_count":  c.cache.ItemCount(),
		"ttl_minutes": c.ttl.Minutes(),
	}
}

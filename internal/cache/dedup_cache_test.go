package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
)

func TestDedupCache_FirstSeen(t *testing.T) {
	c := NewDedupCache(30 * time.Second)

	assert.True(t, c.FirstSeen(KindNews, int64(7)))
	assert.False(t, c.FirstSeen(KindNews, int64(7)))
	// int 和 int64 生成同一个 key
	assert.False(t, c.FirstSeen(KindNews, 7))
	// 不同类型互不影响
	assert.True(t, c.FirstSeen(KindPressRelease, 7))
}

func TestDedupCache_TTL(t *testing.T) {
	c := NewDedupCache(100 * time.Millisecond)

	assert.True(t, c.FirstSeen(KindNews, "a"))
	time.Sleep(150 * time.Millisecond)
	assert.True(t, c.FirstSeen(KindNews, "a"))
}

func TestDedupCache_FilterNews(t *testing.T) {
	c := NewDedupCache(time.Minute)

	first := c.FilterNews([]models.News{{ID: 1}, {ID: 2}, {ID: 1}})
	assert.Len(t, first, 2)

	second := c.FilterNews([]models.News{{ID: 2}, {ID: 3}})
	assert.Len(t, second, 1)
	assert.Equal(t, int64(3), second[0].ID)

	assert.Equal(t, 3, c.Stats()["item_count"])
}

func TestDedupCache_FilterPressReleases(t *testing.T) {
	c := NewDedupCache(time.Minute)

	items := []models.PressRelease{
		{URL: "https://a", Headline: "x", Datetime: 1},
		{URL: "https://a", Headline: "y", Datetime: 2},
		{Headline: "no url", Datetime: 3},
		{Headline: "no url", Datetime: 3},
		{Headline: "no url", Datetime: 4},
	}

	out := c.FilterPressReleases(items)
	assert.Len(t, out, 3)
}

func TestDedupCache_Concurrent(t *testing.T) {
	c := NewDedupCache(30 * time.Second)

	var wg sync.WaitGroup
	var firsts atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if c.FirstSeen(KindNews, j) {
					firsts.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), firsts.Load())
}

package nats

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
)

type fakeConn struct {
	publishErr error

	mu       sync.Mutex
	subjects []string
	closed   bool
}

func (f *fakeConn) Publish(subject string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return f.publishErr
}

func (f *fakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeConn) FlushTimeout(time.Duration) error { return nil }

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) Subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subjects...)
}

// newBusyPublisher 返回协程池已被占满的发布器，发布全部走同步路径
func newBusyPublisher(t *testing.T, c *fakeConn) *Publisher {
	t.Helper()

	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-release }))

	p := newPublisher(c, pool, NewSubjects(""), time.Second)
	t.Cleanup(func() {
		close(release)
		_ = p.Close()
	})
	return p
}

func TestPublisher_SyncFallbackReturnsError(t *testing.T) {
	refused := errors.New("nats: slow consumer")
	c := &fakeConn{publishErr: refused}
	p := newBusyPublisher(t, c)

	err := p.PublishNews([]models.News{{Headline: "h"}})
	assert.ErrorIs(t, err, refused)

	err = p.PublishTrades([]models.Trade{{Symbol: "AAPL"}, {Symbol: "MSFT"}})
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, []string{"finnhub.news", "finnhub.trade.AAPL"}, c.Subjects(), "stops at the first failed group")
}

func TestPublisher_SyncFallbackPublishes(t *testing.T) {
	c := &fakeConn{}
	p := newBusyPublisher(t, c)

	require.NoError(t, p.PublishPressReleases([]models.PressRelease{{Headline: "h"}}))
	require.NoError(t, p.PublishNews(nil))
	assert.Equal(t, []string{"finnhub.pr"}, c.Subjects())
}

func TestPublisher_Closed(t *testing.T) {
	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	require.NoError(t, err)

	c := &fakeConn{}
	p := newPublisher(c, pool, NewSubjects(""), time.Second)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.False(t, p.IsConnected())
	assert.ErrorIs(t, p.PublishNews([]models.News{{Headline: "h"}}), ErrPublisherClosed)
	assert.Empty(t, c.Subjects())
}

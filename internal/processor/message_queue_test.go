package processor

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHandler 模拟消息处理器
type mockHandler struct {
	mu    sync.Mutex
	calls [][]byte
	delay time.Duration
}

func (h *mockHandler) HandleMessage(msg []byte) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, msg)

	if string(msg) == "error" {
		return errors.New("mock error")
	}
	return nil
}

func (h *mockHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func (h *mockHandler) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		out = append(out, string(c))
	}
	return out
}

func TestMessageQueue_PushPop(t *testing.T) {
	q := NewMessageQueue()
	defer q.Close()

	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))
	assert.Equal(t, 2, q.Size())

	msg, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, "a", string(msg))

	msg, err = q.Pop()
	require.NoError(t, err)
	assert.Equal(t, "b", string(msg))
	assert.Equal(t, 0, q.Size())
}

func TestMessageQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewMessageQueue()
	defer q.Close()

	got := make(chan string, 1)
	go func() {
		msg, err := q.Pop()
		if err == nil {
			got <- string(msg)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push([]byte("late")))

	select {
	case msg := <-got:
		assert.Equal(t, "late", msg)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestMessageQueue_CloseUnblocksPop(t *testing.T) {
	q := NewMessageQueue()

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Pop()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Close")
	}

	assert.True(t, q.Closed())
	assert.ErrorIs(t, q.Push([]byte("x")), ErrQueueClosed)

	// 重复关闭安全
	q.Close()
}

func TestMessageQueue_Unbounded(t *testing.T) {
	q := NewMessageQueue()
	defer q.Close()

	// 没有消费者时 Push 也不阻塞
	for i := 0; i < 10000; i++ {
		require.NoError(t, q.Push([]byte(fmt.Sprintf("%d", i))))
	}
	assert.Equal(t, 10000, q.Size())

	msg, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, "0", string(msg))
}

func TestMessageQueue_RunKeepsOrderAndSurvivesErrors(t *testing.T) {
	handler := &mockHandler{delay: time.Millisecond}
	q := NewMessageQueue()

	done := make(chan struct{})
	go func() {
		q.Run(handler)
		close(done)
	}()

	for _, m := range []string{"1", "error", "2", "3"} {
		require.NoError(t, q.Push([]byte(m)))
	}

	assert.Eventually(t, func() bool { return handler.CallCount() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1", "error", "2", "3"}, handler.Calls())

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Close")
	}
}

func BenchmarkMessageQueue_PushPop(b *testing.B) {
	q := NewMessageQueue()
	defer q.Close()
	msg := []byte(`{"type":"ping"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Push(msg)
		_, _ = q.Pop()
	}
}

package processor

import (
	"sync"

	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

// MessageHandler 消息处理器接口
type MessageHandler interface {
	HandleMessage(msg []byte) error
}

// MessageHandlerFunc 函数适配为 MessageHandler
type MessageHandlerFunc func(msg []byte) error

func (f MessageHandlerFunc) HandleMessage(msg []byte) error {
	return f(msg)
}

// MessageQueue 无界消息队列，解耦读 socket 和解码分发
// 不做背压：消费者过慢时内存会持续增长，换取不丢帧
type MessageQueue struct {
	mu        sync.Mutex
	items     [][]byte
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMessageQueue 创建消息队列
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push 入队，不阻塞；队列已关闭时返回 ErrQueueClosed
func (q *MessageQueue) Push(msg []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop 阻塞直到有消息或队列关闭
// 关闭后立即返回 ErrQueueClosed，未消费的消息直接丢弃
func (q *MessageQueue) Pop() ([]byte, error) {
	for {
		select {
		case <-q.done:
			return nil, ErrQueueClosed
		default:
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return msg, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		}
	}
}

// Run 消费循环，直到队列关闭
func (q *MessageQueue) Run(handler MessageHandler) {
	for {
		msg, err := q.Pop()
		if err != nil {
			return
		}
		if err = handler.HandleMessage(msg); err != nil {
			logger.Warn().Err(err).Int("size", len(msg)).Msg("handle message failed")
		}
	}
}

// Close 关闭队列并释放未消费的消息，可重复调用
func (q *MessageQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.mu.Lock()
		q.items = nil
		q.mu.Unlock()
	})
}

// Closed 队列是否已关闭
func (q *MessageQueue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// Size 返回当前队列长度
func (q *MessageQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

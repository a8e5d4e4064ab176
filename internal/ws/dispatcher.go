package ws

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/utrading/utrading-finnhub-stream/internal/monitor"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

// Listener 事件回调
type Listener func(payload any) error

// ListenerID 注册返回的句柄，用于注销
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Dispatcher 按事件类型分发回调
// 每次 Emit 遍历注册列表的快照，回调中注册或注销不影响本次分发
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[EventKind][]listenerEntry
	nextID    atomic.Uint64
}

// NewDispatcher 创建分发器
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		listeners: make(map[EventKind][]listenerEntry),
	}
}

// On 注册回调，同一事件的回调按注册顺序执行
func (d *Dispatcher) On(kind EventKind, fn Listener) ListenerID {
	id := ListenerID(d.nextID.Add(1))

	d.mu.Lock()
	defer d.mu.Unlock()

	// 写时复制，正在分发的快照不受影响
	old := d.listeners[kind]
	list := make([]listenerEntry, len(old), len(old)+1)
	copy(list, old)
	d.listeners[kind] = append(list, listenerEntry{id: id, fn: fn})
	return id
}

// Off 注销回调
func (d *Dispatcher) Off(id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for kind, old := range d.listeners {
		for i, e := range old {
			if e.id != id {
				continue
			}
			list := make([]listenerEntry, 0, len(old)-1)
			list = append(list, old[:i]...)
			list = append(list, old[i+1:]...)
			d.listeners[kind] = list
			return true
		}
	}
	return false
}

// Count 某事件的回调数量
func (d *Dispatcher) Count(kind EventKind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[kind])
}

// Emit 同步执行回调
// 回调失败转为 ListenerError 走 error 事件，error 回调自身失败只记日志
func (d *Dispatcher) Emit(kind EventKind, payload any) {
	d.mu.RLock()
	entries := d.listeners[kind]
	d.mu.RUnlock()

	if kind == EventError && len(entries) == 0 {
		if err, ok := payload.(error); ok {
			logger.Warn().Err(err).Msg("unhandled stream error")
		}
		return
	}

	for _, e := range entries {
		err := invoke(e.fn, payload)
		if err == nil {
			continue
		}

		monitor.IncListenerError(kind.String())
		lerr := &ListenerError{Kind: kind, Err: err}

		if kind == EventError {
			logger.Error().Err(lerr).Msg("error listener failed, dropped")
			continue
		}
		d.Emit(EventError, lerr)
	}
}

func invoke(fn Listener, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, r)
		}
	}()
	return fn(payload)
}

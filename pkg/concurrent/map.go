package concurrent

import (
	"iter"
	"sync"
	"sync/atomic"
)

// Map 泛型封装的 sync.Map，额外维护元素个数
// 零值可直接使用
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

// Len 元素个数
func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

// Store 写入，key 不存在时计数加一
func (m *Map[K, V]) Store(key K, value V) {
	if _, loaded := m.data.Swap(key, value); !loaded {
		m.length.Add(1)
	}
}

// LoadOrStore 已存在时返回旧值且 loaded 为 true
func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := m.data.LoadOrStore(key, value)
	if !loaded {
		m.length.Add(1)
	}
	return actual.(V), loaded
}

// CompareAndSwap 当前值等于 old 时替换为 new，V 必须可比较
func (m *Map[K, V]) CompareAndSwap(key K, old, new V) bool {
	return m.data.CompareAndSwap(key, old, new)
}

// Clear 清空
func (m *Map[K, V]) Clear() {
	m.data.Clear()
	m.length.Store(0)
}

// Range 遍历，f 返回 false 时停止；不保证一致快照
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// All 迭代器形式的 Range
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.Range(yield)
	}
}

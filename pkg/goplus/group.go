package goplus

import (
	"sync"
	"sync/atomic"
)

var (
	defaultGroup     *WaitGroup
	defaultGroupOnce sync.Once
)

// DefaultGroup 进程级的 goroutine 组
func DefaultGroup() *WaitGroup {
	defaultGroupOnce.Do(func() {
		defaultGroup = NewWaitGroup()
	})
	return defaultGroup
}

// Go 在默认组中启动 goroutine，panic 会被记录而不是让进程退出
func Go(fn func()) {
	DefaultGroup().Go(fn)
}

// WaitGroup 带运行计数的 sync.WaitGroup
type WaitGroup struct {
	wg             sync.WaitGroup
	CurrentGoCount atomic.Int64
}

func NewWaitGroup() *WaitGroup {
	return &WaitGroup{}
}

func (s *WaitGroup) Go(fn func()) {
	s.CurrentGoCount.Add(1)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.CurrentGoCount.Add(-1)
		defer Recover()

		fn()
	}()
}

func (s *WaitGroup) Wait() {
	s.wg.Wait()
}

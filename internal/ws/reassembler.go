package ws

import (
	"bytes"
	"sync/atomic"
)

const defaultSizeHint = 4096

// FrameReassembler 把分帧数据拼成完整消息
// 内部复用一个按 hint 预分配的缓冲区，交出的消息是按实际长度复制的
// Accumulate 和 Reset 只能在读 goroutine 调用，SetSizeHint 可并发
type FrameReassembler struct {
	buf     *bytes.Buffer
	bufHint int // buf 分配时的 hint
	hint    atomic.Int64
}

// NewFrameReassembler 创建拼帧器，hint 为缓冲区的预分配容量
func NewFrameReassembler(hint int) *FrameReassembler {
	r := &FrameReassembler{}
	r.SetSizeHint(hint)
	return r
}

// SetSizeHint 更新预分配容量，在下一条消息开始时生效
func (r *FrameReassembler) SetSizeHint(hint int) {
	if hint <= 0 {
		hint = defaultSizeHint
	}
	r.hint.Store(int64(hint))
}

// SizeHint 当前预分配容量
func (r *FrameReassembler) SizeHint() int {
	return int(r.hint.Load())
}

// Accumulate 追加一帧，final 时返回完整消息
// 返回的切片容量等于消息长度，之后的帧不会改写它
func (r *FrameReassembler) Accumulate(payload []byte, final bool) ([]byte, bool) {
	if r.buf == nil || (r.buf.Len() == 0 && r.bufHint != r.SizeHint()) {
		r.bufHint = r.SizeHint()
		r.buf = bytes.NewBuffer(make([]byte, 0, r.bufHint))
	}
	r.buf.Write(payload)

	if !final {
		return nil, false
	}

	msg := make([]byte, r.buf.Len())
	copy(msg, r.buf.Bytes())

	// 超大消息把缓冲区撑大后不保留，下一条消息按 hint 重新分配
	if r.buf.Cap() > r.bufHint {
		r.buf = nil
	} else {
		r.buf.Reset()
	}
	return msg, true
}

// Pending 未完成消息已累积的字节数
func (r *FrameReassembler) Pending() int {
	if r.buf == nil {
		return 0
	}
	return r.buf.Len()
}

// Capacity 当前缓冲区容量，未分配时为 0
func (r *FrameReassembler) Capacity() int {
	if r.buf == nil {
		return 0
	}
	return r.buf.Cap()
}

// Reset 丢弃未完成的消息并释放缓冲区
func (r *FrameReassembler) Reset() {
	r.buf = nil
	r.bufHint = 0
}

package processor

import (
	"errors"
	"fmt"
)

var (
	ErrUnrecognizedType = errors.New("unrecognized message type")
	ErrQueueClosed      = errors.New("message queue closed")
)

// maxRawInError 错误信息中保留的原始消息长度上限
const maxRawInError = 256

// ProtocolError 消息无法分类或解码
type ProtocolError struct {
	Raw    []byte // 原始消息
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	raw := e.Raw
	if len(raw) > maxRawInError {
		raw = raw[:maxRawInError]
	}
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v (message: %s)", e.Reason, e.Err, raw)
	}
	return fmt.Sprintf("protocol error: %s (message: %s)", e.Reason, raw)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// FeedError 服务端推送的 {"type":"error","msg":"..."}
type FeedError struct {
	Message string
}

func (e *FeedError) Error() string {
	return "feed error: " + e.Message
}

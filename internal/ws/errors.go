package ws

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected   = errors.New("websocket client is not connected")
	ErrClientDisposed = errors.New("websocket client is disposed")
	ErrListenerPanic  = errors.New("listener panic")
	ErrConnectAborted = errors.New("connect aborted by disconnect")
)

// ConnectionError 传输层打开失败或意外断开
type ConnectionError struct {
	Op  string // open, receive
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s): %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ListenerError 监听器返回错误或 panic
type ListenerError struct {
	Kind EventKind
	Err  error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("%s listener failed: %v", e.Kind, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

package ws

import (
	"fmt"
)

// ConnectionState 连接状态
type ConnectionState int32

const (
	StateClosed ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s ConnectionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EventKind 事件类型
type EventKind int

const (
	EventTrade EventKind = iota
	EventNews
	EventPressRelease
	EventError
	EventConnected
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventTrade:
		return "trade"
	case EventNews:
		return "news"
	case EventPressRelease:
		return "press_release"
	case EventError:
		return "error"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Frame 传输层的一帧
// Payload 只在下一次 Receive 之前有效
type Frame struct {
	Payload []byte
	Final   bool // 是否为消息的最后一帧
	Text    bool
}

package processor

import (
	"github.com/utrading/utrading-finnhub-stream/internal/models"
)

// MessageType 推送消息类型（envelope 的 type 字段）
type MessageType string

const (
	MessageTypePing         MessageType = "ping"
	MessageTypeError        MessageType = "error"
	MessageTypeTrade        MessageType = "trade"
	MessageTypeNews         MessageType = "news"
	MessageTypePressRelease MessageType = "pr"
)

// Event 一条完整消息解码后的结果
type Event struct {
	Type          MessageType
	Trades        []models.Trade
	News          []models.News
	PressReleases []models.PressRelease
	Err           error // Type 为 error 时为 *FeedError
}

// Len 事件中包含的记录数
func (e *Event) Len() int {
	switch e.Type {
	case MessageTypeTrade:
		return len(e.Trades)
	case MessageTypeNews:
		return len(e.News)
	case MessageTypePressRelease:
		return len(e.PressReleases)
	case MessageTypeError:
		return 1
	default:
		return 0
	}
}

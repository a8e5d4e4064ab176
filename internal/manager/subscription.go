package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind 订阅类型
type Kind int

const (
	KindTrade Kind = iota
	KindNews
	KindPressRelease
)

// 上行订阅命令的 type 字段
const (
	wireSubscribeTrade        = "subscribe"
	wireSubscribeNews         = "subscribe-news"
	wireSubscribePressRelease = "subscribe-pr"
)

var ErrEmptySymbol = errors.New("symbol is empty")

func (k Kind) String() string {
	switch k {
	case KindTrade:
		return "trade"
	case KindNews:
		return "news"
	case KindPressRelease:
		return "press-release"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// WireType 对应的上行命令类型
func (k Kind) WireType() string {
	switch k {
	case KindTrade:
		return wireSubscribeTrade
	case KindNews:
		return wireSubscribeNews
	case KindPressRelease:
		return wireSubscribePressRelease
	default:
		return ""
	}
}

// Subscription 订阅命令
type Subscription struct {
	Kind   Kind
	Symbol string
}

type subscriptionWire struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// NewSubscription 创建订阅命令，symbol 去掉首尾空白后不能为空
func NewSubscription(kind Kind, symbol string) (Subscription, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Subscription{}, ErrEmptySymbol
	}
	if kind.WireType() == "" {
		return Subscription{}, fmt.Errorf("unknown subscription kind %d", int(kind))
	}
	return Subscription{Kind: kind, Symbol: symbol}, nil
}

// Key 返回订阅的唯一键
func (s Subscription) Key() string {
	return s.Kind.String() + ":" + s.Symbol
}

// Marshal 序列化为 {"type":"subscribe","symbol":"AAPL"}
func (s Subscription) Marshal() ([]byte, error) {
	return json.Marshal(subscriptionWire{Type: s.Kind.WireType(), Symbol: s.Symbol})
}

// SubscriptionError 订阅命令发送失败
type SubscriptionError struct {
	Subscription Subscription
	Err          error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %s failed: %v", e.Subscription.Key(), e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

package processor

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
)

// Decode 解析一条完整消息
// ping 返回 (nil, nil)；无法分类或解码时返回 *ProtocolError
func Decode(msg []byte) (*Event, error) {
	if !gjson.ValidBytes(msg) {
		return nil, &ProtocolError{Raw: msg, Reason: "invalid json"}
	}

	root := gjson.ParseBytes(msg)
	if !root.IsObject() {
		return nil, &ProtocolError{Raw: msg, Reason: "envelope is not an object"}
	}

	typ := root.Get("type")
	if typ.Type != gjson.String {
		return nil, &ProtocolError{Raw: msg, Reason: "missing type", Err: ErrUnrecognizedType}
	}

	msgType := MessageType(typ.String())
	switch msgType {
	case MessageTypePing:
		return nil, nil

	case MessageTypeError:
		text := root.Get("msg")
		if !text.Exists() {
			return nil, &ProtocolError{Raw: msg, Reason: "missing msg"}
		}
		return &Event{
			Type: MessageTypeError,
			Err:  &FeedError{Message: cast.ToString(text.Value())},
		}, nil

	case MessageTypeTrade:
		var trades []models.Trade
		if err := decodeData(root, &trades); err != nil {
			return nil, &ProtocolError{Raw: msg, Reason: "decode trade data", Err: err}
		}
		return &Event{Type: msgType, Trades: trades}, nil

	case MessageTypeNews:
		var news []models.News
		if err := decodeData(root, &news); err != nil {
			return nil, &ProtocolError{Raw: msg, Reason: "decode news data", Err: err}
		}
		return &Event{Type: msgType, News: news}, nil

	case MessageTypePressRelease:
		var prs []models.PressRelease
		if err := decodeData(root, &prs); err != nil {
			return nil, &ProtocolError{Raw: msg, Reason: "decode press release data", Err: err}
		}
		return &Event{Type: msgType, PressReleases: prs}, nil

	default:
		return nil, &ProtocolError{Raw: msg, Reason: fmt.Sprintf("type %q", msgType), Err: ErrUnrecognizedType}
	}
}

// decodeData 将 data 数组解码到 out
func decodeData(root gjson.Result, out any) error {
	data := root.Get("data")
	if !data.Exists() {
		return fmt.Errorf("missing data field")
	}
	if !data.IsArray() {
		return fmt.Errorf("data is not an array")
	}
	return json.Unmarshal([]byte(data.Raw), out)
}

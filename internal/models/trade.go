package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade 成交推送
type Trade struct {
	Symbol     string          `json:"s"`           // 交易对，如 BINANCE:BTCUSDT
	Price      decimal.Decimal `json:"p"`           // 成交价
	Volume     decimal.Decimal `json:"v"`           // 成交量
	Timestamp  int64           `json:"t"`           // 毫秒时间戳
	Conditions []string        `json:"c,omitempty"` // 成交条件（可选）
}

// tradeWire 解码用，指针字段用于判断必填项是否缺失
type tradeWire struct {
	Symbol     *string          `json:"s"`
	Price      *decimal.Decimal `json:"p"`
	Volume     *decimal.Decimal `json:"v"`
	Timestamp  *int64           `json:"t"`
	Conditions []string         `json:"c"`
}

// UnmarshalJSON 校验 s/p/v/t 四个必填字段
func (t *Trade) UnmarshalJSON(data []byte) error {
	var w tradeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch {
	case w.Symbol == nil:
		return missingField("trade", "s")
	case w.Price == nil:
		return missingField("trade", "p")
	case w.Volume == nil:
		return missingField("trade", "v")
	case w.Timestamp == nil:
		return missingField("trade", "t")
	}

	*t = Trade{
		Symbol:     *w.Symbol,
		Price:      *w.Price,
		Volume:     *w.Volume,
		Timestamp:  *w.Timestamp,
		Conditions: w.Conditions,
	}
	return nil
}

// Time 成交时间（UTC）
func (t Trade) Time() time.Time {
	return msToUTC(t.Timestamp)
}

func (t Trade) String() string {
	return fmt.Sprintf("TradeUpdate: %s %s %s %s", t.Symbol, t.Price, t.Volume, t.Time().Format(time.RFC3339Nano))
}

func msToUTC(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func missingField(record, field string) error {
	return fmt.Errorf("%s: missing required field %q", record, field)
}

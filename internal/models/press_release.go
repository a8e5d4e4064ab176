package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PressRelease 公告推送
type PressRelease struct {
	Datetime   int64  `json:"datetime"` // 毫秒时间戳
	FullText   string `json:"fullText"`
	Headline   string `json:"headline"`
	RawSymbols string `json:"symbol"` // 逗号分隔，如 "AAPL,MSFT"
	URL        string `json:"url"`

	// 解码时由 RawSymbols 计算一次，之后只读
	symbols []string
}

// UnmarshalJSON datetime 和 headline 为必填，同时缓存拆分后的代码列表
func (p *PressRelease) UnmarshalJSON(data []byte) error {
	type plain PressRelease
	var w struct {
		plain
		Datetime *int64  `json:"datetime"`
		Headline *string `json:"headline"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Datetime == nil {
		return missingField("press release", "datetime")
	}
	if w.Headline == nil {
		return missingField("press release", "headline")
	}

	*p = PressRelease(w.plain)
	p.Datetime = *w.Datetime
	p.Headline = *w.Headline
	p.symbols = SplitSymbols(p.RawSymbols)
	return nil
}

// Symbols 返回拆分后的代码列表
// 解码得到的记录直接返回缓存结果，调用方不应修改返回的切片
func (p PressRelease) Symbols() []string {
	if p.symbols != nil {
		return p.symbols
	}
	return SplitSymbols(p.RawSymbols)
}

// Time 发布时间（UTC）
func (p PressRelease) Time() time.Time {
	return msToUTC(p.Datetime)
}

func (p PressRelease) String() string {
	return fmt.Sprintf("PressRelease: %s %s", p.Headline, p.Time().Format(time.RFC3339))
}

// SplitSymbols 拆分逗号分隔的代码列表，去掉空白和空项
func SplitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

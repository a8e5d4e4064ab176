package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// News 新闻推送
type News struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"` // 毫秒时间戳
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Image    string `json:"image"`
	Related  string `json:"related"` // 关联代码
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// UnmarshalJSON id 和 datetime 为必填
func (n *News) UnmarshalJSON(data []byte) error {
	type plain News
	var w struct {
		plain
		ID       *int64 `json:"id"`
		Datetime *int64 `json:"datetime"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == nil {
		return missingField("news", "id")
	}
	if w.Datetime == nil {
		return missingField("news", "datetime")
	}

	*n = News(w.plain)
	n.ID = *w.ID
	n.Datetime = *w.Datetime
	return nil
}

// Time 发布时间（UTC）
func (n News) Time() time.Time {
	return msToUTC(n.Datetime)
}

func (n News) String() string {
	return fmt.Sprintf("%s news: %s %s", n.Category, n.Headline, n.Time().Format(time.RFC3339))
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrade_Unmarshal(t *testing.T) {
	var trades []Trade
	err := json.Unmarshal([]byte(`[{"s":"X","p":"1.2","v":"3","t":1000},{"s":"BINANCE:BTCUSDT","p":64000.5,"v":0.01,"t":1700000000123,"c":["1","12"]}]`), &trades)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "X", trades[0].Symbol)
	assert.True(t, decimal.RequireFromString("1.2").Equal(trades[0].Price))
	assert.True(t, decimal.NewFromInt(3).Equal(trades[0].Volume))
	assert.Equal(t, time.UnixMilli(1000).UTC(), trades[0].Time())
	assert.Equal(t, time.UTC, trades[0].Time().Location())

	assert.True(t, decimal.RequireFromString("64000.5").Equal(trades[1].Price))
	assert.Equal(t, []string{"1", "12"}, trades[1].Conditions)
}

func TestTrade_MissingField(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"symbol", `{"p":1,"v":1,"t":1}`},
		{"price", `{"s":"X","v":1,"t":1}`},
		{"volume", `{"s":"X","p":1,"t":1}`},
		{"timestamp", `{"s":"X","p":1,"v":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Trade
			assert.Error(t, json.Unmarshal([]byte(tt.data), &tr))
		})
	}
}

func TestTrade_TypeMismatch(t *testing.T) {
	var tr Trade
	assert.Error(t, json.Unmarshal([]byte(`{"s":"X","p":"abc","v":1,"t":1}`), &tr))
	assert.Error(t, json.Unmarshal([]byte(`{"s":"X","p":1,"v":1,"t":"soon"}`), &tr))
}

func TestNews_Unmarshal(t *testing.T) {
	var news News
	err := json.Unmarshal([]byte(`{"category":"company","datetime":1700000000000,"headline":"h","id":42,"image":"i","related":"AAPL","source":"src","summary":"s","url":"u"}`), &news)
	require.NoError(t, err)

	assert.Equal(t, int64(42), news.ID)
	assert.Equal(t, "company", news.Category)
	assert.Equal(t, "AAPL", news.Related)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), news.Time())

	assert.Error(t, json.Unmarshal([]byte(`{"datetime":1}`), &news))
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &news))
}

func TestPressRelease_Symbols(t *testing.T) {
	var pr PressRelease
	err := json.Unmarshal([]byte(`{"datetime":1000,"headline":"h","fullText":"body","symbol":"AAPL,MSFT","url":"u"}`), &pr)
	require.NoError(t, err)

	first := pr.Symbols()
	assert.Equal(t, []string{"AAPL", "MSFT"}, first)
	assert.Equal(t, "AAPL,MSFT", pr.RawSymbols)

	// 多次读取返回同一份缓存
	second := pr.Symbols()
	assert.Equal(t, first, second)
	assert.Same(t, &first[0], &second[0])
}

func TestPressRelease_MissingField(t *testing.T) {
	var pr PressRelease
	assert.Error(t, json.Unmarshal([]byte(`{"headline":"h"}`), &pr))
	assert.Error(t, json.Unmarshal([]byte(`{"datetime":1}`), &pr))
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT"}, SplitSymbols(" AAPL , MSFT ,"))
	assert.Empty(t, SplitSymbols(""))

	manual := PressRelease{RawSymbols: "TSLA"}
	assert.Equal(t, []string{"TSLA"}, manual.Symbols())
}

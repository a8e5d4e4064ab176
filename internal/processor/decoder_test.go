package processor

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Trade(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"trade","data":[{"s":"X","p":"1.2","v":"3","t":1000}]}`))
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, MessageTypeTrade, ev.Type)
	require.Len(t, ev.Trades, 1)
	assert.Equal(t, 1, ev.Len())

	trade := ev.Trades[0]
	assert.Equal(t, "X", trade.Symbol)
	assert.True(t, decimal.RequireFromString("1.2").Equal(trade.Price))
	assert.True(t, decimal.NewFromInt(3).Equal(trade.Volume))
	assert.Equal(t, time.UnixMilli(1000).UTC(), trade.Time())
}

func TestDecode_Error(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"error","msg":"boom"}`))
	require.NoError(t, err)
	require.NotNil(t, ev)

	assert.Equal(t, MessageTypeError, ev.Type)
	assert.Empty(t, ev.Trades)
	assert.Empty(t, ev.News)
	assert.Empty(t, ev.PressReleases)

	var feedErr *FeedError
	require.True(t, errors.As(ev.Err, &feedErr))
	assert.Equal(t, "boom", feedErr.Message)
}

func TestDecode_Ping(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"ping"}`))
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecode_News(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"news","data":[{"category":"company","datetime":1000,"headline":"h","id":7,"related":"AAPL","source":"s","summary":"x","url":"u","image":""}]}`))
	require.NoError(t, err)

	assert.Equal(t, MessageTypeNews, ev.Type)
	require.Len(t, ev.News, 1)
	assert.Equal(t, int64(7), ev.News[0].ID)
	assert.Equal(t, "AAPL", ev.News[0].Related)
}

func TestDecode_PressRelease(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"pr","data":[{"datetime":1000,"headline":"h","fullText":"f","symbol":"AAPL,MSFT","url":"u"}]}`))
	require.NoError(t, err)

	assert.Equal(t, MessageTypePressRelease, ev.Type)
	require.Len(t, ev.PressReleases, 1)
	assert.Equal(t, []string{"AAPL", "MSFT"}, ev.PressReleases[0].Symbols())
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name         string
		msg          string
		unrecognized bool
	}{
		{name: "invalid json", msg: `{"type":"trade",`},
		{name: "not an object", msg: `[1,2,3]`},
		{name: "missing type", msg: `{"data":[]}`, unrecognized: true},
		{name: "non string type", msg: `{"type":5}`, unrecognized: true},
		{name: "unknown type", msg: `{"type":"candle","data":[]}`, unrecognized: true},
		{name: "missing data", msg: `{"type":"trade"}`},
		{name: "error without msg", msg: `{"type":"error"}`},
		{name: "data not array", msg: `{"type":"news","data":{}}`},
		{name: "missing required field", msg: `{"type":"trade","data":[{"s":"X","p":1,"v":1}]}`},
		{name: "type mismatch", msg: `{"type":"trade","data":[{"s":1,"p":1,"v":1,"t":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.msg))
			assert.Nil(t, ev)

			var protoErr *ProtocolError
			require.True(t, errors.As(err, &protoErr), "want *ProtocolError, got %v", err)
			assert.Equal(t, tt.msg, string(protoErr.Raw))
			assert.Equal(t, tt.unrecognized, errors.Is(err, ErrUnrecognizedType))
		})
	}
}

func TestProtocolError_TruncatesRaw(t *testing.T) {
	raw := make([]byte, 1000)
	for i := range raw {
		raw[i] = 'x'
	}
	err := &ProtocolError{Raw: raw, Reason: "invalid json"}
	assert.Less(t, len(err.Error()), 400)
}

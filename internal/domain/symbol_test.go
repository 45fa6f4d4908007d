package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveInstID(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		defaultType MarketType
		wantID      string
		wantType    MarketType
	}{
		{"USDT 무기한 기본", "BTCUSDT", LinearSwap, "BTC-USDT-SWAP", LinearSwap},
		{"소문자와 공백", " ethusdt ", LinearSwap, "ETH-USDT-SWAP", LinearSwap},
		{"현물 기본", "BTCUSDT", Spot, "BTC-USDT", Spot},
		{"TradingView 무기한 표기", "BTCUSDT.P", Spot, "BTC-USDT-SWAP", LinearSwap},
		{"OKX SWAP 그대로", "BTC-USDT-SWAP", Spot, "BTC-USDT-SWAP", LinearSwap},
		{"OKX 현물 그대로", "BTC-USDC", LinearSwap, "BTC-USDC", Spot},
		{"USDC 견적", "SOLUSDC", LinearSwap, "SOL-USDC-SWAP", LinearSwap},
		{"알 수 없는 형식", "XYZ", LinearSwap, "XYZ", LinearSwap},
		{"기본 유형 없음", "BTCUSDT", "", "BTC-USDT-SWAP", LinearSwap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, typ := ResolveInstID(tt.symbol, tt.defaultType)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantType, typ)
		})
	}
}

func TestOrderSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

func TestParseMarginMode(t *testing.T) {
	mode, ok := ParseMarginMode(" Isolated ")
	assert.True(t, ok)
	assert.Equal(t, Isolated, mode)

	_, ok = ParseMarginMode("portfolio")
	assert.False(t, ok)
}

package domain

import "strings"

// 심볼 뒤에 붙는 견적 통화. 긴 것부터 검사합니다
var quoteCurrencies = []string{"USDT", "USDC", "USD"}

// ResolveInstID는 웹훅 심볼을 OKX 상품 ID로 변환합니다.
// 이미 대시로 구분된 심볼(BTC-USDT, BTC-USDT-SWAP)은 그대로 사용하고,
// BTCUSDT 형태는 기본 상품 유형에 맞춰 변환합니다.
// TradingView 무기한 표기(BTCUSDT.P)는 항상 SWAP으로 처리합니다.
func ResolveInstID(symbol string, defaultType MarketType) (string, MarketType) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	marketType := defaultType
	if marketType == "" {
		marketType = LinearSwap
	}

	if strings.HasSuffix(s, ".P") {
		s = strings.TrimSuffix(s, ".P")
		marketType = LinearSwap
	}

	if strings.Contains(s, "-") {
		if strings.HasSuffix(s, "-SWAP") {
			return s, LinearSwap
		}
		return s, Spot
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			base := strings.TrimSuffix(s, quote)
			if marketType == Spot {
				return base + "-" + quote, Spot
			}
			return base + "-" + quote + "-SWAP", LinearSwap
		}
	}

	return s, marketType
}

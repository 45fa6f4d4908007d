package domain

import "github.com/shopspring/decimal"

// Balance는 통화별 잔고 정보를 표현합니다
type Balance struct {
	Currency  string          // 통화 (예: USDT, BTC)
	Available decimal.Decimal // 사용 가능한 잔고
	Frozen    decimal.Decimal // 주문 등에 잠긴 잔고
	Equity    decimal.Decimal // 통화별 총 자산
}

// AccountInfo는 계정 정보를 표현합니다
type AccountInfo struct {
	Balances    map[string]Balance // 통화별 잔고
	TotalEquity decimal.Decimal    // USD 환산 총 자산
}

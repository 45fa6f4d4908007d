package domain

import "strings"

// OrderSide는 주문 방향을 정의합니다
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite는 반대 방향을 반환합니다
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// IsValid는 정의된 방향인지 확인합니다
func (s OrderSide) IsValid() bool {
	return s == Buy || s == Sell
}

// OrderType은 주문 유형을 정의합니다
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// MarginMode는 증거금 모드(OKX tdMode)를 정의합니다
type MarginMode string

const (
	Cross    MarginMode = "cross"
	Isolated MarginMode = "isolated"
	Cash     MarginMode = "cash"
)

// ParseMarginMode는 문자열을 MarginMode로 변환합니다
func ParseMarginMode(s string) (MarginMode, bool) {
	switch MarginMode(strings.ToLower(strings.TrimSpace(s))) {
	case Cross:
		return Cross, true
	case Isolated:
		return Isolated, true
	case Cash:
		return Cash, true
	}
	return "", false
}

// MarketType은 상품 유형을 정의합니다
type MarketType string

const (
	Spot       MarketType = "SPOT"
	LinearSwap MarketType = "SWAP"
)

// PositionSide는 OKX posSide 값을 정의합니다
type PositionSide string

const (
	LongPosition  PositionSide = "long"
	ShortPosition PositionSide = "short"
	NetPosition   PositionSide = "net" // 단방향(one-way) 모드
)

// PositionMode는 계정의 포지션 모드를 정의합니다
type PositionMode string

const (
	NetMode       PositionMode = "net_mode"
	LongShortMode PositionMode = "long_short_mode" // 헤지 모드
)

// ActionKind는 웹훅 액션 종류를 정의합니다
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionBuy
	ActionSell
	ActionClose
	ActionTest
)

// String은 ActionKind의 문자열 표현을 반환합니다
func (k ActionKind) String() string {
	switch k {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	case ActionClose:
		return "close"
	case ActionTest:
		return "test"
	default:
		return "unknown"
	}
}

// Side는 매수/매도 액션의 주문 방향을 반환합니다
func (k ActionKind) Side() (OrderSide, bool) {
	switch k {
	case ActionBuy:
		return Buy, true
	case ActionSell:
		return Sell, true
	}
	return "", false
}

// NotificationColor는 알림 색상 코드를 정의합니다
const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0000FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)

package domain

import "github.com/shopspring/decimal"

// WebhookAction은 웹훅 페이로드를 정규화한 단일 표현입니다.
// 요청마다 한 번 생성되고 즉시 소비됩니다.
type WebhookAction struct {
	Kind      ActionKind
	Symbol    string
	Quantity  decimal.Decimal
	Price     decimal.NullDecimal
	OrderType OrderType
	Token     string
	RawAction string // 로그/응답용 원본 액션 문자열
}

// NeedsSymbol은 심볼이 필요한 액션인지 확인합니다
func (a WebhookAction) NeedsSymbol() bool {
	return a.Kind == ActionBuy || a.Kind == ActionSell || a.Kind == ActionClose
}

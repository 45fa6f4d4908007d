package notification

import "github.com/assist-by/piona/internal/domain"

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendError는 에러 알림을 전송합니다
	SendError(err error) error

	// SendInfo는 일반 정보 알림을 전송합니다
	SendInfo(message string) error

	// SendTradeInfo는 거래 실행 정보를 전송합니다
	SendTradeInfo(info TradeInfo) error
}

// TradeInfo는 거래 실행 정보를 정의합니다
type TradeInfo struct {
	Symbol        string // 심볼 (예: BTCUSDT)
	Action        string // buy / sell / close
	Side          string // 주문 방향
	RequestedQty  string // 요청 수량
	AdjustedQty   string // 정규화된 수량
	OrderID       string
	ClientOrderID string
	Closed        int    // 청산된 포지션 수
	Message       string // 추가 설명
}

// GetColorForAction은 액션에 따른 색상을 반환합니다
func GetColorForAction(action string) int {
	switch action {
	case domain.ActionBuy.String():
		return domain.ColorSuccess
	case domain.ActionSell.String():
		return domain.ColorError
	case domain.ActionClose.String():
		return domain.ColorWarning
	default:
		return domain.ColorInfo
	}
}

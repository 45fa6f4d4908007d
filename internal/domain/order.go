package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Instrument는 심볼의 거래 규칙을 나타냅니다
type Instrument struct {
	Symbol     string          // 웹훅에서 들어온 심볼 (예: BTCUSDT)
	InstID     string          // 거래소 상품 ID (예: BTC-USDT-SWAP)
	MinSize    decimal.Decimal // 최소 주문 수량
	LotSize    decimal.Decimal // 수량 단위
	TickSize   decimal.Decimal // 가격 단위
	MarketType MarketType      // SPOT / SWAP
	IsDefault  bool            // 거래소 응답 대신 기본값을 사용한 경우
}

// OrderRequest는 정규화 전의 주문 요청을 표현합니다
type OrderRequest struct {
	Symbol       string
	Side         OrderSide
	Quantity     decimal.Decimal
	Price        decimal.NullDecimal // Limit 주문에서만 사용
	Type         OrderType
	ReduceOnly   bool
	MarginMode   MarginMode   // 비어있으면 기본값 사용
	PositionSide PositionSide // 비어있으면 포지션 모드에 따라 결정
}

// Order는 거래소로 전송되는 최종 주문입니다
type Order struct {
	Symbol        string
	InstID        string
	Side          OrderSide
	Quantity      decimal.Decimal
	Price         decimal.NullDecimal
	Type          OrderType
	ReduceOnly    bool
	MarginMode    MarginMode
	PositionSide  PositionSide
	ClientOrderID string
}

// OrderResult는 주문 실행 결과를 표현합니다
type OrderResult struct {
	Success           bool            `json:"success"`
	OrderID           string          `json:"order_id,omitempty"`
	ClientOrderID     string          `json:"client_order_id,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
	Message           string          `json:"message,omitempty"`
	RequestedQuantity decimal.Decimal `json:"requested_qty"`
	AdjustedQuantity  decimal.Decimal `json:"adjusted_qty"`
	Adjusted          bool            `json:"adjusted"`
}

// NormalizedQuantity는 수량 정규화 결과입니다
type NormalizedQuantity struct {
	Requested   decimal.Decimal
	Adjusted    decimal.Decimal
	WasAdjusted bool
}

// Position은 포지션 정보를 표현합니다
type Position struct {
	Symbol        string
	InstID        string
	Side          OrderSide       // 보유 중인 방향
	Size          decimal.Decimal // 항상 0 이상
	MarginMode    MarginMode
	PositionSide  PositionSide
	AvgPrice      decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      string
}

// IsOpen은 포지션이 열려 있는지 확인합니다
func (p Position) IsOpen() bool {
	return p.Size.IsPositive()
}

// CloseEntry는 포지션 하나에 대한 청산 결과입니다
type CloseEntry struct {
	Position Position
	Result   *OrderResult
	Err      error
}

// CloseResult는 심볼 단위 청산 결과입니다
type CloseResult struct {
	Symbol     string
	NoPosition bool // 청산할 포지션이 없음 (에러가 아닌 종료 상태)
	Message    string
	Entries    []CloseEntry
}

// Succeeded는 성공한 청산 건수를 반환합니다
func (r *CloseResult) Succeeded() int {
	n := 0
	for _, e := range r.Entries {
		if e.Err == nil && e.Result != nil && e.Result.Success {
			n++
		}
	}
	return n
}

// Ticker는 최근 시세 정보입니다
type Ticker struct {
	InstID    string
	Last      decimal.Decimal
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Timestamp time.Time
}

// NewClientOrderID는 대시 없는 32자리 16진수 클라이언트 주문 ID를 생성합니다
func NewClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

package trading

import (
	"context"

	"github.com/assist-by/piona/internal/domain"
)

// ExecutorOptions는 주문 실행 기본값을 담고 있는 구조체이다.
type ExecutorOptions struct {
	MarginMode   domain.MarginMode   // 요청에 증거금 모드가 없을 때 사용
	PositionMode domain.PositionMode // 계정 포지션 모드 (net / long_short)
}

// RuleProvider는 심볼의 거래 규칙을 제공합니다
type RuleProvider interface {
	GetRules(ctx context.Context, symbol string) domain.Instrument
}

// OrderExecutor는 주문 실행기 인터페이스를 정의합니다
type OrderExecutor interface {
	// PlaceOrder는 요청을 정규화해 거래소에 주문합니다
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error)
}

// Outcome은 웹훅 액션 하나를 처리한 결과입니다
type Outcome struct {
	Action domain.WebhookAction
	Order  *domain.OrderResult // 매수/매도
	Close  *domain.CloseResult // 청산
}

// ExecutionError는 거래 실행 중 발생한 오류를 나타내는 구조체입니다.
type ExecutionError struct {
	Phase string
	Err   error
}

func (e *ExecutionError) Error() string {
	return "매매 실행 실패 (" + e.Phase + "): " + e.Err.Error()
}

// Unwrap은 내부 에러를 반환합니다
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

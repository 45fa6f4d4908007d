package position

import (
	"context"

	"github.com/assist-by/piona/internal/domain"
)

// Manager는 포지션 관리를 담당하는 인터페이스입니다
type Manager interface {
	// ClosePosition은 특정 심볼의 모든 포지션을 청산합니다
	ClosePosition(ctx context.Context, symbol string) (*domain.CloseResult, error)

	// GetActivePositions는 현재 열린 포지션 목록을 반환합니다
	GetActivePositions(ctx context.Context, symbol string) ([]domain.Position, error)
}

// PositionReader는 거래소의 포지션을 조회합니다
type PositionReader interface {
	GetPositions(ctx context.Context, symbol string) ([]domain.Position, error)
}

// OrderPlacer는 정규화가 끝난 주문을 거래소로 보냅니다
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order domain.Order) (*domain.OrderResult, error)
}

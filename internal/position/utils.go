package position

import (
	"github.com/assist-by/piona/internal/domain"
)

// GetPositionSideForEntry는 진입 주문에 붙일 posSide를 반환합니다.
// 단방향 모드에서는 net을 반환합니다.
func GetPositionSideForEntry(side domain.OrderSide, mode domain.PositionMode) domain.PositionSide {
	if mode != domain.LongShortMode {
		return domain.NetPosition
	}
	if side == domain.Buy {
		return domain.LongPosition
	}
	return domain.ShortPosition
}

// GetOrderSideForExit는 포지션 청산을 위한 주문 사이드를 반환합니다
func GetOrderSideForExit(pos domain.Position) domain.OrderSide {
	switch pos.PositionSide {
	case domain.LongPosition:
		return domain.Sell
	case domain.ShortPosition:
		return domain.Buy
	}
	return pos.Side.Opposite()
}

// FilterOpen은 수량이 0보다 큰 포지션만 반환합니다
func FilterOpen(positions []domain.Position) []domain.Position {
	open := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open
}

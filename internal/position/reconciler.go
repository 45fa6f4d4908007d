package position

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/assist-by/piona/internal/domain"
)

// Reconciler는 심볼의 포지션을 조회해 반대 방향 시장가 주문으로 모두 청산합니다
type Reconciler struct {
	reader PositionReader
	placer OrderPlacer
	logger *zap.Logger
	newID  func() string
}

// NewReconciler는 새로운 Reconciler를 생성합니다
func NewReconciler(reader PositionReader, placer OrderPlacer, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		reader: reader,
		placer: placer,
		logger: logger,
		newID:  domain.NewClientOrderID,
	}
}

// GetActivePositions는 수량이 0보다 큰 포지션만 반환합니다
func (r *Reconciler) GetActivePositions(ctx context.Context, symbol string) ([]domain.Position, error) {
	positions, err := r.reader.GetPositions(ctx, symbol)
	if err != nil {
		return nil, NewPositionError(symbol, "조회", err)
	}
	return FilterOpen(positions), nil
}

// ClosePosition은 심볼의 모든 열린 포지션을 청산합니다.
//
// 포지션이 없으면 주문 없이 NoPosition 결과를 반환합니다. 각 포지션은 순서대로
// 독립적으로 청산되며, 실패한 항목은 결과에 기록하고 다음 항목을 계속 처리합니다.
// 반환 에러는 실패한 항목들의 에러를 합친 것입니다.
func (r *Reconciler) ClosePosition(ctx context.Context, symbol string) (*domain.CloseResult, error) {
	open, err := r.GetActivePositions(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result := &domain.CloseResult{Symbol: symbol}
	if len(open) == 0 {
		result.NoPosition = true
		result.Message = domain.ErrNoPosition.Error()
		r.logger.Info("청산할 포지션 없음", zap.String("symbol", symbol))
		return result, nil
	}

	var errs error
	for _, pos := range open {
		order := domain.Order{
			Symbol:        symbol,
			InstID:        pos.InstID,
			Side:          GetOrderSideForExit(pos),
			Quantity:      pos.Size,
			Type:          domain.Market,
			ReduceOnly:    true,
			MarginMode:    pos.MarginMode,
			PositionSide:  pos.PositionSide,
			ClientOrderID: r.newID(),
		}

		entry := domain.CloseEntry{Position: pos}
		res, err := r.placer.PlaceOrder(ctx, order)
		if err != nil {
			entry.Err = NewPositionError(symbol, "청산", err)
			errs = multierr.Append(errs, entry.Err)
			r.logger.Error("포지션 청산 실패",
				zap.String("symbol", symbol),
				zap.String("pos_side", string(pos.PositionSide)),
				zap.String("size", pos.Size.String()),
				zap.Error(err),
			)
		} else {
			if res != nil {
				res.RequestedQuantity = pos.Size
				res.AdjustedQuantity = pos.Size
			}
			entry.Result = res
			r.logger.Info("포지션 청산 주문 완료",
				zap.String("symbol", symbol),
				zap.String("side", string(order.Side)),
				zap.String("pos_side", string(pos.PositionSide)),
				zap.String("size", pos.Size.String()),
				zap.String("cl_ord_id", order.ClientOrderID),
			)
		}
		result.Entries = append(result.Entries, entry)
	}

	result.Message = fmt.Sprintf("%d/%d 포지션 청산 완료", result.Succeeded(), len(open))
	return result, errs
}

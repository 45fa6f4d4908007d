package trading

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/position"
)

// Executor는 주문 요청을 거래 규칙에 맞게 정규화한 뒤 거래소로 보냅니다.
// 재시도하지 않습니다.
type Executor struct {
	rules  RuleProvider
	placer position.OrderPlacer
	opts   ExecutorOptions
	logger *zap.Logger
	newID  func() string
}

// NewExecutor는 새로운 Executor를 생성합니다
func NewExecutor(rules RuleProvider, placer position.OrderPlacer, opts ExecutorOptions, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MarginMode == "" {
		opts.MarginMode = domain.Cross
	}
	if opts.PositionMode == "" {
		opts.PositionMode = domain.NetMode
	}
	return &Executor{
		rules:  rules,
		placer: placer,
		opts:   opts,
		logger: logger,
		newID:  domain.NewClientOrderID,
	}
}

// PlaceOrder는 OrderExecutor 인터페이스를 구현합니다
func (e *Executor) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	if !req.Side.IsValid() {
		return nil, domain.NewValidationError("알 수 없는 주문 방향: %q", req.Side)
	}
	if req.Type == "" {
		req.Type = domain.Market
	}
	if req.Type == domain.Limit && !req.Price.Valid {
		return nil, domain.NewValidationError("지정가 주문에는 가격이 필요합니다")
	}
	if req.Price.Valid && !req.Price.Decimal.IsPositive() {
		return nil, domain.NewValidationError("가격은 0보다 커야 합니다: %s", req.Price.Decimal)
	}

	inst := e.rules.GetRules(ctx, req.Symbol)

	qty, err := position.NormalizeQuantity(req.Quantity, inst)
	if err != nil {
		return nil, &ExecutionError{Phase: "수량 정규화", Err: err}
	}
	if qty.WasAdjusted {
		e.logger.Info("주문 수량 조정",
			zap.String("symbol", req.Symbol),
			zap.String("requested", qty.Requested.String()),
			zap.String("adjusted", qty.Adjusted.String()),
			zap.String("lot_size", inst.LotSize.String()),
			zap.Bool("default_rules", inst.IsDefault),
		)
	}

	order := domain.Order{
		Symbol:        req.Symbol,
		InstID:        inst.InstID,
		Side:          req.Side,
		Quantity:      qty.Adjusted,
		Type:          req.Type,
		ReduceOnly:    req.ReduceOnly,
		MarginMode:    e.marginMode(req, inst),
		PositionSide:  e.positionSide(req, inst),
		ClientOrderID: e.newID(),
	}
	if req.Type == domain.Limit {
		order.Price = decimalNull(alignPrice(req.Price.Decimal, inst))
	}

	result, err := e.placer.PlaceOrder(ctx, order)
	if err != nil {
		e.logger.Error("주문 실패",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.String("qty", qty.Adjusted.String()),
			zap.String("cl_ord_id", order.ClientOrderID),
			zap.Error(err),
		)
		return nil, &ExecutionError{Phase: "주문", Err: err}
	}

	if result == nil {
		result = &domain.OrderResult{Success: true}
	}
	result.RequestedQuantity = qty.Requested
	result.AdjustedQuantity = qty.Adjusted
	result.Adjusted = qty.WasAdjusted
	if result.ClientOrderID == "" {
		result.ClientOrderID = order.ClientOrderID
	}

	e.logger.Info("주문 완료",
		zap.String("symbol", req.Symbol),
		zap.String("inst_id", order.InstID),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.String("qty", order.Quantity.String()),
		zap.String("order_id", result.OrderID),
	)
	return result, nil
}

// marginMode는 요청 → 설정 기본값 순으로 증거금 모드를 고릅니다. 현물은 항상 cash입니다.
func (e *Executor) marginMode(req domain.OrderRequest, inst domain.Instrument) domain.MarginMode {
	if inst.MarketType == domain.Spot {
		return domain.Cash
	}
	if req.MarginMode != "" {
		return req.MarginMode
	}
	return e.opts.MarginMode
}

func (e *Executor) positionSide(req domain.OrderRequest, inst domain.Instrument) domain.PositionSide {
	if inst.MarketType == domain.Spot {
		return ""
	}
	if req.PositionSide != "" {
		return req.PositionSide
	}
	return position.GetPositionSideForEntry(req.Side, e.opts.PositionMode)
}

// alignPrice는 가격을 호가 단위의 가장 가까운 배수로 맞춥니다
func alignPrice(price decimal.Decimal, inst domain.Instrument) decimal.Decimal {
	if !inst.TickSize.IsPositive() {
		return price
	}
	return price.Div(inst.TickSize).Round(0).Mul(inst.TickSize)
}

func decimalNull(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

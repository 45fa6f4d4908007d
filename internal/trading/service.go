package trading

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/notification"
	"github.com/assist-by/piona/internal/position"
)

// Service는 정규화된 웹훅 액션을 주문 실행기 또는 포지션 청산기로 보냅니다.
// 같은 심볼의 요청은 도착 순서대로 하나씩 처리됩니다. 중복 알림도 버리지 않습니다.
type Service struct {
	executor  OrderExecutor
	positions position.Manager
	notifier  notification.Notifier
	logger    *zap.Logger

	marketType domain.MarketType
	locks      *symbolLocks
	ready      atomic.Bool
}

// ServiceOption은 Service 옵션입니다
type ServiceOption func(*Service)

// WithNotifier는 거래 결과 알림을 설정합니다
func WithNotifier(n notification.Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithMarketType은 대시 없는 심볼을 해석할 기본 상품 유형을 설정합니다.
// 실행기와 같은 값을 써야 같은 상품이 같은 잠금을 공유합니다.
func WithMarketType(t domain.MarketType) ServiceOption {
	return func(s *Service) {
		s.marketType = t
	}
}

// NewService는 새로운 Service를 생성합니다
func NewService(executor OrderExecutor, positions position.Manager, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		executor:  executor,
		positions: positions,
		logger:    logger,
		locks:     newSymbolLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReady는 거래 가능 상태를 기록합니다
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Ready는 거래 가능 상태인지 확인합니다
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Handle은 웹훅 액션 하나를 처리합니다.
// Test와 Unknown 액션은 거래소를 호출하지 않습니다.
func (s *Service) Handle(ctx context.Context, action domain.WebhookAction) (*Outcome, error) {
	outcome := &Outcome{Action: action}

	switch action.Kind {
	case domain.ActionBuy, domain.ActionSell:
		if action.Symbol == "" {
			return nil, domain.NewValidationError("심볼이 필요합니다")
		}
		side, _ := action.Kind.Side()

		unlock := s.lockInstrument(action.Symbol)
		defer unlock()

		result, err := s.executor.PlaceOrder(ctx, domain.OrderRequest{
			Symbol:   action.Symbol,
			Side:     side,
			Quantity: action.Quantity,
			Price:    action.Price,
			Type:     action.OrderType,
		})
		if err != nil {
			s.notifyError(action, err)
			return nil, err
		}
		outcome.Order = result

	case domain.ActionClose:
		if action.Symbol == "" {
			return nil, domain.NewValidationError("심볼이 필요합니다")
		}

		unlock := s.lockInstrument(action.Symbol)
		defer unlock()

		result, err := s.positions.ClosePosition(ctx, action.Symbol)
		if err != nil {
			s.notifyError(action, err)
			if result == nil {
				return nil, err
			}
			// 일부 청산 실패: 결과와 에러를 함께 반환합니다
			outcome.Close = result
			return outcome, err
		}
		outcome.Close = result

	default:
		return outcome, nil
	}

	s.notifyTrade(outcome)
	return outcome, nil
}

// lockInstrument는 심볼 표기가 달라도 같은 OKX 상품이면 같은 잠금을 잡습니다
func (s *Service) lockInstrument(symbol string) func() {
	instID, _ := domain.ResolveInstID(symbol, s.marketType)
	return s.locks.Lock(instID)
}

func (s *Service) notifyTrade(outcome *Outcome) {
	if s.notifier == nil {
		return
	}

	info := notification.TradeInfo{
		Symbol: outcome.Action.Symbol,
		Action: outcome.Action.Kind.String(),
	}
	switch {
	case outcome.Order != nil:
		side, _ := outcome.Action.Kind.Side()
		info.Side = string(side)
		info.RequestedQty = outcome.Order.RequestedQuantity.String()
		info.AdjustedQty = outcome.Order.AdjustedQuantity.String()
		info.OrderID = outcome.Order.OrderID
		info.ClientOrderID = outcome.Order.ClientOrderID
	case outcome.Close != nil:
		if outcome.Close.NoPosition {
			return
		}
		info.Closed = outcome.Close.Succeeded()
		info.Message = outcome.Close.Message
	}

	go func() {
		if err := s.notifier.SendTradeInfo(info); err != nil {
			s.logger.Warn("거래 알림 전송 실패", zap.Error(err))
		}
	}()
}

func (s *Service) notifyError(action domain.WebhookAction, err error) {
	if s.notifier == nil || errors.Is(err, domain.ErrValidation) {
		return
	}
	wrapped := &ExecutionError{Phase: action.Kind.String() + " " + action.Symbol, Err: err}
	go func() {
		if sendErr := s.notifier.SendError(wrapped); sendErr != nil {
			s.logger.Warn("에러 알림 전송 실패", zap.Error(sendErr))
		}
	}()
}

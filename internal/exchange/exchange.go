// internal/exchange/exchange.go
package exchange

import (
	"context"
	"time"

	"github.com/assist-by/piona/internal/domain"
)

// Exchange는 거래소와의 상호작용을 위한 인터페이스입니다.
type Exchange interface {
	// 시장 데이터 조회
	GetServerTime(ctx context.Context) (time.Time, error)
	GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error)
	GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error)

	// 계정 데이터 조회
	GetBalance(ctx context.Context) (*domain.AccountInfo, error)
	GetPositions(ctx context.Context, symbol string) ([]domain.Position, error)

	// 거래 기능
	PlaceOrder(ctx context.Context, order domain.Order) (*domain.OrderResult, error)

	// 시간 동기화
	SyncTime(ctx context.Context) error
}

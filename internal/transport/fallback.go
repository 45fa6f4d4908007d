package transport

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/assist-by/piona/internal/domain"
)

// FallbackTransport는 기본 전송이 실패하면 대체 전송으로 정확히 한 번 더 시도합니다
type FallbackTransport struct {
	primary  Transport
	fallback Transport
	logger   *zap.Logger
}

// NewFallback은 새로운 FallbackTransport를 생성합니다
func NewFallback(primary, fallback Transport, logger *zap.Logger) *FallbackTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackTransport{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Execute는 Transport 인터페이스를 구현합니다
func (f *FallbackTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	resp, err := f.primary.Execute(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.logger.Warn("기본 전송 실패, 직접 연결로 전환",
		zap.String("method", req.Method),
		zap.Error(err),
	)

	resp, fallbackErr := f.fallback.Execute(ctx, req)
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: 모든 전송 경로 실패 (primary: %v): %w",
			domain.ErrTransport, err, fallbackErr)
	}
	return resp, nil
}

// CloseIdleConnections는 두 전송 경로의 유휴 연결을 닫습니다
func (f *FallbackTransport) CloseIdleConnections() {
	CloseIdle(f.primary)
	CloseIdle(f.fallback)
}

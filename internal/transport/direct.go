package transport

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DirectTransport는 프록시 없이 직접 연결합니다.
// 모든 요청에 브라우저와 유사한 헤더를 붙이고, 지터가 설정되면 호출 전에 임의로 대기합니다.
type DirectTransport struct {
	client    *http.Client
	jitterMin time.Duration
	jitterMax time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    *zap.Logger
}

// DirectOption은 DirectTransport 생성 옵션입니다
type DirectOption func(*DirectTransport)

// WithDirectTimeout은 호출당 타임아웃을 설정합니다
func WithDirectTimeout(timeout time.Duration) DirectOption {
	return func(d *DirectTransport) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// WithJitter는 호출 전 임의 대기 구간을 설정합니다
func WithJitter(min, max time.Duration) DirectOption {
	return func(d *DirectTransport) {
		d.jitterMin = min
		d.jitterMax = max
	}
}

// WithSleeper는 대기 함수를 교체합니다 (테스트용)
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) DirectOption {
	return func(d *DirectTransport) {
		d.sleep = sleep
	}
}

// WithDirectLogger는 로거를 설정합니다
func WithDirectLogger(logger *zap.Logger) DirectOption {
	return func(d *DirectTransport) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDirect는 새로운 직접 연결 전송을 생성합니다
func NewDirect(opts ...DirectOption) *DirectTransport {
	d := &DirectTransport{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: newSpoofingTransport(http.DefaultTransport),
		},
		sleep:  sleepContext,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Execute는 Transport 인터페이스를 구현합니다
func (d *DirectTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if delay := d.jitter(); delay > 0 {
		d.logger.Debug("직접 연결 전 지터 대기", zap.Duration("delay", delay))
		if err := d.sleep(ctx, delay); err != nil {
			return nil, transportError("지터 대기 중단", err)
		}
	}

	resp, err := send(ctx, d.client, req)
	if err != nil {
		return nil, transportError("직접 연결 실패", err)
	}
	resp.Via = "direct"
	return resp, nil
}

// jitter는 [jitterMin, jitterMax] 구간의 균등 분포 대기 시간을 반환합니다
func (d *DirectTransport) jitter() time.Duration {
	if d.jitterMax <= 0 {
		return 0
	}
	span := d.jitterMax - d.jitterMin
	if span <= 0 {
		return d.jitterMin
	}
	return d.jitterMin + time.Duration(rand.Int64N(int64(span)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CloseIdleConnections는 유휴 연결을 닫습니다
func (d *DirectTransport) CloseIdleConnections() {
	d.client.CloseIdleConnections()
}

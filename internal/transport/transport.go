// Package transport는 거래소 REST 호출을 위한 HTTP 전송 전략을 제공합니다.
// 프록시 풀을 먼저 시도하고, 모두 실패하면 위장 헤더를 붙인 직접 연결로 한 번 더 시도합니다.
// 재시도 루프나 지수 백오프는 없습니다.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/piona/internal/domain"
)

// Request는 전송할 HTTP 요청입니다
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response는 HTTP 응답입니다
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Via        string // 응답을 받은 경로 (프록시 호스트 또는 "direct")
}

// Transport는 교체 가능한 전송 전략입니다
type Transport interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Options는 NewResilient 설정입니다
type Options struct {
	Timeout       time.Duration
	Proxies       []string
	ProbeURL      string
	ProbeTimeout  time.Duration
	MaxCandidates int
	JitterMin     time.Duration
	JitterMax     time.Duration
}

// NewResilient는 설정에 맞는 전송 전략을 조립합니다.
// 프록시가 없으면 위장 헤더만 적용된 직접 연결을 사용하고,
// 프록시가 있으면 프록시 → 직접 연결(지터 포함) 순서의 폴백을 구성합니다.
func NewResilient(opts Options, logger *zap.Logger) (Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(opts.Proxies) == 0 {
		return NewDirect(
			WithDirectTimeout(opts.Timeout),
			WithDirectLogger(logger),
		), nil
	}

	proxy, err := NewProxy(opts.Proxies,
		WithProxyTimeout(opts.Timeout),
		WithProbe(opts.ProbeURL, opts.ProbeTimeout),
		WithMaxCandidates(opts.MaxCandidates),
		WithProxyLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	direct := NewDirect(
		WithDirectTimeout(opts.Timeout),
		WithJitter(opts.JitterMin, opts.JitterMax),
		WithDirectLogger(logger),
	)

	return NewFallback(proxy, direct, logger), nil
}

// send는 주어진 http.Client로 요청을 실행하고 본문을 모두 읽습니다
func send(ctx context.Context, client *http.Client, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("요청 생성 실패: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API 요청 실패: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("응답 읽기 실패: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// isBlocked는 프록시/CDN 차단으로 볼 수 있는 상태 코드인지 확인합니다
func isBlocked(status int) bool {
	switch status {
	case http.StatusForbidden,
		http.StatusProxyAuthRequired,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func transportError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrTransport, msg, err)
}

// CloseIdle은 전송 전략이 유지하는 유휴 연결을 닫습니다
func CloseIdle(t Transport) {
	if c, ok := t.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

package transport

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/assist-by/piona/internal/domain"
)

// ProxyTransport는 프록시 풀에서 임의로 고른 후보를 차례로 시도합니다.
// 각 후보는 짧은 생존 확인(probe) 후 실제 요청에 사용됩니다.
type ProxyTransport struct {
	proxies       []*url.URL
	maxCandidates int
	probeURL      string
	probeTimeout  time.Duration
	timeout       time.Duration
	shuffle       func(n int, swap func(i, j int))
	logger        *zap.Logger

	mu      sync.Mutex
	clients map[string]*http.Client // 프록시별로 재사용하는 클라이언트
}

// ProxyOption은 ProxyTransport 생성 옵션입니다
type ProxyOption func(*ProxyTransport)

// WithProxyTimeout은 호출당 타임아웃을 설정합니다
func WithProxyTimeout(timeout time.Duration) ProxyOption {
	return func(p *ProxyTransport) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithProbe는 생존 확인 URL과 타임아웃을 설정합니다
func WithProbe(probeURL string, timeout time.Duration) ProxyOption {
	return func(p *ProxyTransport) {
		if probeURL != "" {
			p.probeURL = probeURL
		}
		if timeout > 0 {
			p.probeTimeout = timeout
		}
	}
}

// WithMaxCandidates는 요청당 시도할 최대 프록시 수를 설정합니다
func WithMaxCandidates(n int) ProxyOption {
	return func(p *ProxyTransport) {
		if n > 0 {
			p.maxCandidates = n
		}
	}
}

// WithShuffle은 후보 섞기 함수를 교체합니다 (테스트용)
func WithShuffle(shuffle func(n int, swap func(i, j int))) ProxyOption {
	return func(p *ProxyTransport) {
		p.shuffle = shuffle
	}
}

// WithProxyLogger는 로거를 설정합니다
func WithProxyLogger(logger *zap.Logger) ProxyOption {
	return func(p *ProxyTransport) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProxy는 프록시 URL 목록으로 ProxyTransport를 생성합니다.
// 스킴이 없는 항목은 http://로 간주합니다.
func NewProxy(proxies []string, opts ...ProxyOption) (*ProxyTransport, error) {
	p := &ProxyTransport{
		maxCandidates: 3,
		probeURL:      "https://www.okx.com/api/v5/public/time",
		probeTimeout:  5 * time.Second,
		timeout:       10 * time.Second,
		shuffle:       rand.Shuffle,
		logger:        zap.NewNop(),
		clients:       make(map[string]*http.Client),
	}

	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: 잘못된 프록시 주소 %q", domain.ErrConfig, raw)
		}
		p.proxies = append(p.proxies, u)
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Size는 등록된 프록시 수를 반환합니다
func (p *ProxyTransport) Size() int {
	return len(p.proxies)
}

// Execute는 Transport 인터페이스를 구현합니다
func (p *ProxyTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	candidates := p.candidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: 사용 가능한 프록시가 없습니다", domain.ErrTransport)
	}

	var errs error
	for _, proxy := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, transportError("요청 취소됨", err)
		}

		client := p.clientFor(proxy)

		if err := p.probe(ctx, client); err != nil {
			p.logger.Debug("프록시 생존 확인 실패",
				zap.String("proxy", proxy.Host),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("%s probe: %w", proxy.Host, err))
			continue
		}

		resp, err := send(ctx, client, req)
		if err != nil {
			p.logger.Debug("프록시 요청 실패", zap.String("proxy", proxy.Host), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", proxy.Host, err))
			continue
		}
		if isBlocked(resp.StatusCode) {
			p.logger.Debug("프록시 응답 차단", zap.String("proxy", proxy.Host), zap.Int("status", resp.StatusCode))
			errs = multierr.Append(errs, fmt.Errorf("%s: HTTP %d", proxy.Host, resp.StatusCode))
			continue
		}

		resp.Via = proxy.Host
		return resp, nil
	}

	return nil, transportError(fmt.Sprintf("프록시 %d개 모두 실패", len(candidates)), errs)
}

// candidates는 풀을 섞어 최대 maxCandidates개를 반환합니다
func (p *ProxyTransport) candidates() []*url.URL {
	pool := make([]*url.URL, len(p.proxies))
	copy(pool, p.proxies)
	p.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	if len(pool) > p.maxCandidates {
		pool = pool[:p.maxCandidates]
	}
	return pool
}

// clientFor는 프록시별 클라이언트를 반환합니다. 연결 풀을 유지하기 위해 한 번만 생성합니다.
func (p *ProxyTransport) clientFor(proxy *url.URL) *http.Client {
	key := proxy.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[key]; ok {
		return client
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = http.ProxyURL(proxy)
	client := &http.Client{
		Timeout:   p.timeout,
		Transport: base,
	}
	p.clients[key] = client
	return client
}

// CloseIdleConnections는 모든 프록시 클라이언트의 유휴 연결을 닫습니다
func (p *ProxyTransport) CloseIdleConnections() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, client := range p.clients {
		client.CloseIdleConnections()
	}
}

// probe는 프록시를 통해 가벼운 GET 요청을 보내 생존 여부를 확인합니다
func (p *ProxyTransport) probe(ctx context.Context, client *http.Client) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	resp, err := send(probeCtx, client, &Request{Method: http.MethodGet, URL: p.probeURL})
	if err != nil {
		return err
	}
	if isBlocked(resp.StatusCode) || resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe HTTP %d", resp.StatusCode)
	}
	return nil
}

package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/piona/internal/domain"
)

type transportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f transportFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

func noShuffle(int, func(i, j int)) {}

// newFakeProxy는 절대 URI 요청을 받아 직접 응답하는 HTTP 프록시를 흉내냅니다
func newFakeProxy(t *testing.T, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if r.URL.Path == "/probe" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deadProxyURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	return addr
}

func hostOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}

func TestProxy_SkipsDeadProxy(t *testing.T) {
	alive := newFakeProxy(t, `{"code":"0"}`, nil)

	p, err := NewProxy([]string{deadProxyURL(t), alive.URL},
		WithProbe("http://exchange.test/probe", time.Second),
		WithProxyTimeout(2*time.Second),
		WithShuffle(noShuffle),
	)
	require.NoError(t, err)

	resp, err := p.Execute(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    "http://exchange.test/api/v5/public/time",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"code":"0"}`, string(resp.Body))
	assert.Equal(t, hostOf(t, alive.URL), resp.Via)
}

func TestProxy_AllDead(t *testing.T) {
	p, err := NewProxy([]string{deadProxyURL(t), deadProxyURL(t)},
		WithProbe("http://exchange.test/probe", time.Second),
		WithShuffle(noShuffle),
	)
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), &Request{Method: http.MethodGet, URL: "http://exchange.test/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestProxy_TriesAtMostMaxCandidates(t *testing.T) {
	var hits int32
	blocked := func() string {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)
		return srv.URL
	}

	pool := []string{blocked(), blocked(), blocked(), blocked(), blocked()}
	p, err := NewProxy(pool,
		WithProbe("http://exchange.test/probe", time.Second),
		WithMaxCandidates(3),
		WithShuffle(noShuffle),
	)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Size())

	_, err = p.Execute(context.Background(), &Request{Method: http.MethodGet, URL: "http://exchange.test/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestProxy_BlockedCallMovesToNextCandidate(t *testing.T) {
	blocking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/probe" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(blocking.Close)
	alive := newFakeProxy(t, "ok", nil)

	p, err := NewProxy([]string{blocking.URL, alive.URL},
		WithProbe("http://exchange.test/probe", time.Second),
		WithShuffle(noShuffle),
	)
	require.NoError(t, err)

	resp, err := p.Execute(context.Background(), &Request{Method: http.MethodGet, URL: "http://exchange.test/x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
}

func TestProxy_ReusesConnections(t *testing.T) {
	var conns int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			atomic.AddInt32(&conns, 1)
		}
	}
	srv.Start()
	t.Cleanup(srv.Close)

	p, err := NewProxy([]string{srv.URL},
		WithProbe("http://exchange.test/probe", time.Second),
		WithShuffle(noShuffle),
	)
	require.NoError(t, err)
	t.Cleanup(p.CloseIdleConnections)

	for i := 0; i < 3; i++ {
		resp, err := p.Execute(context.Background(), &Request{Method: http.MethodGet, URL: "http://exchange.test/x"})
		require.NoError(t, err)
		assert.Equal(t, "ok", string(resp.Body))
	}

	// 생존 확인과 실제 요청 6번이 하나의 연결을 공유합니다
	assert.Equal(t, int32(1), atomic.LoadInt32(&conns))
	assert.Same(t, p.clientFor(p.proxies[0]), p.clientFor(p.proxies[0]))
}

func TestNewProxy_InvalidAddress(t *testing.T) {
	_, err := NewProxy([]string{"://bad"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestNewProxy_AddsSchemeAndSkipsBlank(t *testing.T) {
	p, err := NewProxy([]string{"10.0.0.1:8080", "  ", "socks5://10.0.0.2:1080"})
	require.NoError(t, err)
	require.Equal(t, 2, p.Size())
	assert.Equal(t, "http", p.proxies[0].Scheme)
	assert.Equal(t, "socks5", p.proxies[1].Scheme)
}

func TestDirect_SpoofsHeadersAndWaitsJitter(t *testing.T) {
	var gotUA, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotKey = r.Header.Get("OK-ACCESS-KEY")
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	var slept []time.Duration
	d := NewDirect(
		WithJitter(time.Second, 3*time.Second),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}),
	)

	header := http.Header{}
	header.Set("OK-ACCESS-KEY", "key")
	resp, err := d.Execute(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL, Header: header})
	require.NoError(t, err)

	assert.Equal(t, "pong", string(resp.Body))
	assert.Equal(t, "direct", resp.Via)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, "key", gotKey)

	require.Len(t, slept, 1)
	assert.GreaterOrEqual(t, slept[0], time.Second)
	assert.LessOrEqual(t, slept[0], 3*time.Second)
}

func TestDirect_NoJitterByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	called := false
	d := NewDirect(WithSleeper(func(context.Context, time.Duration) error {
		called = true
		return nil
	}))

	_, err := d.Execute(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestDirect_ConnectionFailure(t *testing.T) {
	d := NewDirect(WithDirectTimeout(time.Second))

	_, err := d.Execute(context.Background(), &Request{Method: http.MethodGet, URL: deadProxyURL(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestFallback(t *testing.T) {
	ok := &Response{StatusCode: http.StatusOK, Body: []byte("ok")}
	failing := transportFunc(func(context.Context, *Request) (*Response, error) {
		return nil, errors.New("boom")
	})

	tests := []struct {
		name          string
		primaryFails  bool
		fallbackFails bool
		wantErr       bool
		wantFallback  int
	}{
		{name: "primary succeeds", wantFallback: 0},
		{name: "primary fails, fallback succeeds", primaryFails: true, wantFallback: 1},
		{name: "both fail", primaryFails: true, fallbackFails: true, wantErr: true, wantFallback: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var primary Transport = transportFunc(func(context.Context, *Request) (*Response, error) { return ok, nil })
			if tt.primaryFails {
				primary = failing
			}

			fallbackCalls := 0
			fallback := transportFunc(func(ctx context.Context, req *Request) (*Response, error) {
				fallbackCalls++
				if tt.fallbackFails {
					return failing(ctx, req)
				}
				return ok, nil
			})

			f := NewFallback(primary, fallback, nil)
			resp, err := f.Execute(context.Background(), &Request{Method: http.MethodPost, URL: "http://x"})

			assert.Equal(t, tt.wantFallback, fallbackCalls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrTransport)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", string(resp.Body))
		})
	}
}

func TestNewResilient(t *testing.T) {
	tr, err := NewResilient(Options{Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	assert.IsType(t, &DirectTransport{}, tr)

	tr, err = NewResilient(Options{
		Timeout:   5 * time.Second,
		Proxies:   []string{"10.0.0.1:8080"},
		JitterMin: time.Second,
		JitterMax: 3 * time.Second,
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FallbackTransport{}, tr)

	_, err = NewResilient(Options{Proxies: []string{"://bad"}}, nil)
	assert.ErrorIs(t, err, domain.ErrConfig)
}

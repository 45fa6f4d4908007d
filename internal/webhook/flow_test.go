package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/exchange/okx"
	"github.com/assist-by/piona/internal/instrument"
	"github.com/assist-by/piona/internal/position"
	"github.com/assist-by/piona/internal/trading"
	"github.com/assist-by/piona/internal/transport"
)

// fakeExchange는 주문 흐름에 필요한 OKX 엔드포인트만 흉내냅니다
type fakeExchange struct {
	mu     sync.Mutex
	orders []map[string]interface{}
	signed []string
}

func (f *fakeExchange) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v5/public/instruments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","instType":"SWAP","minSz":"0.01","lotSz":"0.01","tickSz":"0.1","state":"live"}]}`)
	})
	mux.HandleFunc("/api/v5/account/positions", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","posSide":"net","pos":"-0.05","mgnMode":"cross","avgPx":"65000","upl":"1.2","lever":"5"}]}`)
	})
	mux.HandleFunc("/api/v5/trade/order", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.orders = append(f.orders, body)
		f.mu.Unlock()

		_, _ = io.WriteString(w, `{"code":"0","msg":"","data":[{"ordId":"777","clOrdId":"`+body["clOrdId"].(string)+`","sCode":"0","sMsg":"Order placed"}]}`)
	})
	return mux
}

func (f *fakeExchange) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed = append(f.signed, r.Header.Get("OK-ACCESS-SIGN"))
}

func newFlowServer(t *testing.T, exchangeURL string) *Server {
	t.Helper()

	signer, err := okx.NewSigner("key", "secret", "pass")
	require.NoError(t, err)

	client := okx.NewClient(signer, transport.NewDirect(), okx.WithBaseURL(exchangeURL))
	rules := instrument.NewCache(client, nil)
	executor := trading.NewExecutor(rules, client, trading.ExecutorOptions{
		MarginMode:   domain.Cross,
		PositionMode: domain.NetMode,
	}, nil)
	service := trading.NewService(executor, position.NewReconciler(client, client, nil), nil)
	service.SetReady(true)

	return NewServer(Config{Secret: "s3cret"}, NewTranslator(decimal.Zero), service, client, nil)
}

func TestFlow_EntryNormalizesQuantity(t *testing.T) {
	fake := &fakeExchange{}
	exchange := httptest.NewServer(fake.handler(t))
	defer exchange.Close()

	srv := newFlowServer(t, exchange.URL)

	rec, resp := doRequest(t, srv.Handler(), "POST", "/webhook",
		`{"action":"entry","side":"long","qty":"0.015","symbol":"BTCUSDT","token":"s3cret"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", resp["status"])

	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "777", result["order_id"])
	assert.Equal(t, true, result["adjusted"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.orders, 1)
	order := fake.orders[0]
	assert.Equal(t, "BTC-USDT-SWAP", order["instId"])
	assert.Equal(t, "buy", order["side"])
	assert.Equal(t, "market", order["ordType"])
	assert.Equal(t, "cross", order["tdMode"])
	assert.NotContains(t, order, "posSide")
	assert.NotContains(t, order, "px")
	assert.True(t, decimal.RequireFromString(order["sz"].(string)).Equal(decimal.RequireFromString("0.02")))
	assert.Len(t, order["clOrdId"], 32)
}

func TestFlow_BelowMinimumRejected(t *testing.T) {
	fake := &fakeExchange{}
	exchange := httptest.NewServer(fake.handler(t))
	defer exchange.Close()

	srv := newFlowServer(t, exchange.URL)

	rec, resp := doRequest(t, srv.Handler(), "POST", "/webhook",
		`{"signal":"sell","quantity":0.004,"symbol":"BTCUSDT","token":"s3cret"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", resp["status"])
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.orders)
}

func TestFlow_CloseNetShort(t *testing.T) {
	fake := &fakeExchange{}
	exchange := httptest.NewServer(fake.handler(t))
	defer exchange.Close()

	srv := newFlowServer(t, exchange.URL)

	rec, resp := doRequest(t, srv.Handler(), "POST", "/webhook", `{"signal":"exit","symbol":"BTCUSDT","token":"s3cret"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "close", resp["action"])

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.orders, 1)
	order := fake.orders[0]
	assert.Equal(t, "buy", order["side"])
	assert.Equal(t, true, order["reduceOnly"])
	assert.Equal(t, "0.05", order["sz"])
	for _, sig := range fake.signed {
		assert.NotEmpty(t, sig)
	}
}

func TestFlow_WrongTokenNeverReachesExchange(t *testing.T) {
	fake := &fakeExchange{}
	exchange := httptest.NewServer(fake.handler(t))
	defer exchange.Close()

	srv := newFlowServer(t, exchange.URL)

	rec, _ := doRequest(t, srv.Handler(), "POST", "/webhook", `{"signal":"exit","symbol":"BTCUSDT","token":"guess"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.signed)
	assert.Empty(t, fake.orders)
}

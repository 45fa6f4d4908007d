package okx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/transport"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	signer, err := NewSigner("key", "secret", "pass")
	require.NoError(t, err)

	return NewClient(signer, transport.NewDirect(),
		WithBaseURL(srv.URL),
		WithRateLimit(1000, 100),
	)
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestClient_GetInstrument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/public/instruments", r.URL.Path)
		assert.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		assert.Empty(t, r.Header.Get("OK-ACCESS-SIGN"))
		writeJSON(w, `{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","minSz":"0.01","lotSz":"0.01","tickSz":"0.1"}]}`)
	})

	inst, err := c.GetInstrument(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USDT-SWAP", inst.InstID)
	assert.Equal(t, "BTCUSDT", inst.Symbol)
	assert.True(t, inst.MinSize.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, inst.LotSize.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, inst.TickSize.Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, domain.LinearSwap, inst.MarketType)
	assert.False(t, inst.IsDefault)
}

func TestClient_GetInstrument_Failures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{name: "empty body", body: "", wantErr: domain.ErrExchange},
		{name: "malformed json", body: "{not json", wantErr: domain.ErrExchange},
		{name: "error code", body: `{"code":"51001","msg":"Instrument ID does not exist","data":[]}`, wantErr: domain.ErrExchange},
		{name: "empty data", body: `{"code":"0","msg":"","data":[]}`, wantErr: domain.ErrExchange},
		{name: "bad lot size", body: `{"code":"0","data":[{"instId":"X","minSz":"1","lotSz":"abc"}]}`, wantErr: domain.ErrExchange},
		{name: "zero lot size", body: `{"code":"0","data":[{"instId":"X","minSz":"1","lotSz":"0"}]}`, wantErr: domain.ErrExchange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.body)
			})

			_, err := c.GetInstrument(context.Background(), "BTCUSDT")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_ExchangeErrorCarriesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":"50113","msg":"Invalid Sign","data":[]}`)
	})

	_, err := c.GetBalance(context.Background())
	require.Error(t, err)

	var exErr *domain.ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, "50113", exErr.Code)
	assert.Equal(t, "Invalid Sign", exErr.Message)
}

func TestClient_NonJSONErrorStatusIsTransport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "<html>blocked</html>")
	})

	_, err := c.GetTicker(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestClient_GetPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/account/positions", r.URL.Path)
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-TIMESTAMP"))
		writeJSON(w, `{"code":"0","msg":"","data":[
			{"instId":"BTC-USDT-SWAP","posSide":"net","pos":"-0.5","mgnMode":"isolated","avgPx":"60000","upl":"-3.2","lever":"10"},
			{"instId":"BTC-USDT-SWAP","posSide":"long","pos":"2","mgnMode":"cross"},
			{"instId":"BTC-USDT-SWAP","posSide":"short","pos":"0","mgnMode":"cross"}
		]}`)
	})

	positions, err := c.GetPositions(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, positions, 3)

	assert.Equal(t, domain.Sell, positions[0].Side)
	assert.True(t, positions[0].Size.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, domain.Isolated, positions[0].MarginMode)
	assert.Equal(t, domain.NetPosition, positions[0].PositionSide)
	assert.Equal(t, "10", positions[0].Leverage)

	assert.Equal(t, domain.Buy, positions[1].Side)
	assert.Equal(t, domain.LongPosition, positions[1].PositionSide)
	assert.True(t, positions[1].IsOpen())

	assert.Equal(t, domain.Sell, positions[2].Side)
	assert.False(t, positions[2].IsOpen())
}

func TestClient_PlaceOrder(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v5/trade/order", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("OK-ACCESS-SIGN"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, `{"code":"0","msg":"","data":[{"ordId":"312269865356374016","clOrdId":"abc123","sCode":"0","sMsg":""}]}`)
	})

	result, err := c.PlaceOrder(context.Background(), domain.Order{
		Symbol:        "BTCUSDT",
		InstID:        "BTC-USDT-SWAP",
		Side:          domain.Sell,
		Quantity:      decimal.RequireFromString("0.5"),
		Price:         decimal.NewNullDecimal(decimal.RequireFromString("61000")),
		Type:          domain.Market,
		ReduceOnly:    true,
		MarginMode:    domain.Isolated,
		PositionSide:  domain.NetPosition,
		ClientOrderID: "abc123",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "312269865356374016", result.OrderID)
	assert.Equal(t, "abc123", result.ClientOrderID)

	assert.Equal(t, "BTC-USDT-SWAP", got["instId"])
	assert.Equal(t, "isolated", got["tdMode"])
	assert.Equal(t, "sell", got["side"])
	assert.Equal(t, "market", got["ordType"])
	assert.Equal(t, "0.5", got["sz"])
	assert.Equal(t, true, got["reduceOnly"])
	assert.Equal(t, "abc123", got["clOrdId"])
	assert.NotContains(t, got, "px")
	assert.NotContains(t, got, "posSide")
}

func TestClient_PlaceLimitOrderSendsPrice(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, `{"code":"0","data":[{"ordId":"1","clOrdId":"c","sCode":"0"}]}`)
	})

	_, err := c.PlaceOrder(context.Background(), domain.Order{
		InstID:       "ETH-USDT-SWAP",
		Side:         domain.Buy,
		Quantity:     decimal.RequireFromString("1"),
		Price:        decimal.NewNullDecimal(decimal.RequireFromString("3000.5")),
		Type:         domain.Limit,
		MarginMode:   domain.Cross,
		PositionSide: domain.LongPosition,
	})
	require.NoError(t, err)
	assert.Equal(t, "3000.5", got["px"])
	assert.Equal(t, "long", got["posSide"])
	assert.NotContains(t, got, "reduceOnly")
}

func TestClient_PlaceOrder_SpotMarketUsesBaseCurrency(t *testing.T) {
	tests := []struct {
		name       string
		instID     string
		orderType  domain.OrderType
		wantTgtCcy bool
	}{
		{name: "spot market buy", instID: "BTC-USDT", orderType: domain.Market, wantTgtCcy: true},
		{name: "spot limit buy", instID: "BTC-USDT", orderType: domain.Limit, wantTgtCcy: false},
		{name: "swap market buy", instID: "BTC-USDT-SWAP", orderType: domain.Market, wantTgtCcy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				writeJSON(w, `{"code":"0","data":[{"ordId":"1","clOrdId":"c","sCode":"0"}]}`)
			})

			_, err := c.PlaceOrder(context.Background(), domain.Order{
				InstID:     tt.instID,
				Side:       domain.Buy,
				Quantity:   decimal.RequireFromString("0.001"),
				Price:      decimal.NewNullDecimal(decimal.RequireFromString("60000")),
				Type:       tt.orderType,
				MarginMode: domain.Cash,
			})
			require.NoError(t, err)

			assert.Equal(t, "0.001", got["sz"])
			if tt.wantTgtCcy {
				assert.Equal(t, "base_ccy", got["tgtCcy"])
			} else {
				assert.NotContains(t, got, "tgtCcy")
			}
		})
	}
}

func TestClient_PlaceOrder_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":"1","msg":"All operations failed","data":[{"ordId":"","clOrdId":"c","sCode":"51008","sMsg":"Order failed. Insufficient USDT margin in account"}]}`)
	})

	_, err := c.PlaceOrder(context.Background(), domain.Order{
		InstID:     "BTC-USDT-SWAP",
		Side:       domain.Buy,
		Quantity:   decimal.RequireFromString("1"),
		Type:       domain.Market,
		MarginMode: domain.Cross,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExchange)

	msg, ok := domain.ExchangeMessage(err)
	require.True(t, ok)
	assert.Equal(t, "Order failed. Insufficient USDT margin in account", msg)
}

func TestClient_GetBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"code":"0","data":[{"totalEq":"1234.5","details":[
			{"ccy":"USDT","availBal":"1000","frozenBal":"34.5","eq":"1034.5"},
			{"ccy":"BTC","availBal":"0.01","frozenBal":"0","eq":"0.01"}
		]}]}`)
	})

	info, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, info.TotalEquity.Equal(decimal.RequireFromString("1234.5")))
	require.Contains(t, info.Balances, "USDT")
	assert.True(t, info.Balances["USDT"].Available.Equal(decimal.NewFromInt(1000)))
	assert.True(t, info.Balances["BTC"].Equity.Equal(decimal.RequireFromString("0.01")))
}

func TestClient_GetTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ETH-USDT", r.URL.Query().Get("instId"))
		writeJSON(w, `{"code":"0","data":[{"instId":"ETH-USDT","last":"3001.2","bidPx":"3001.1","askPx":"3001.3","ts":"1709296245123"}]}`)
	})

	ticker, err := c.GetTicker(context.Background(), "eth-usdt")
	require.NoError(t, err)
	assert.Equal(t, "ETH-USDT", ticker.InstID)
	assert.True(t, ticker.Last.Equal(decimal.RequireFromString("3001.2")))
	assert.Equal(t, int64(1709296245123), ticker.Timestamp.UnixMilli())
}

func TestClient_SyncTime(t *testing.T) {
	serverNow := time.Now().Add(30 * time.Second)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/public/time", r.URL.Path)
		writeJSON(w, `{"code":"0","data":[{"ts":"`+strconv.FormatInt(serverNow.UnixMilli(), 10)+`"}]}`)
	})

	require.NoError(t, c.SyncTime(context.Background()))
	assert.InDelta(t, float64(30*time.Second), float64(c.signer.Offset()), float64(2*time.Second))
}

// internal/exchange/okx/client.go
package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/exchange"
	"github.com/assist-by/piona/internal/transport"
)

var _ exchange.Exchange = (*Client)(nil)

const (
	defaultBaseURL = "https://www.okx.com"

	// 이 이상 차이나면 경고를 남깁니다
	maxClockDrift = 5 * time.Second

	tgtCcyBase = "base_ccy"
)

// Client는 OKX v5 REST API 클라이언트를 구현합니다
type Client struct {
	baseURL     string
	signer      *Signer
	transport   transport.Transport
	limiter     *rate.Limiter
	defaultType domain.MarketType
	logger      *zap.Logger
}

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithBaseURL은 기본 URL을 설정합니다
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithRateLimit은 초당 요청 수와 버스트를 설정합니다
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithMarketType은 거래소 표기가 아닌 심볼의 기본 상품 유형을 설정합니다
func WithMarketType(t domain.MarketType) ClientOption {
	return func(c *Client) {
		if t != "" {
			c.defaultType = t
		}
	}
}

// WithLogger는 로거를 설정합니다
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient는 새로운 OKX API 클라이언트를 생성합니다
func NewClient(signer *Signer, tr transport.Transport, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		signer:      signer,
		transport:   tr,
		limiter:     rate.NewLimiter(rate.Limit(10), 5),
		defaultType: domain.LinearSwap,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ResolveInstID는 심볼을 OKX 상품 ID와 상품 유형으로 변환합니다
func (c *Client) ResolveInstID(symbol string) (string, domain.MarketType) {
	return domain.ResolveInstID(symbol, c.defaultType)
}

// call은 요청을 보내고 응답 봉투를 파싱합니다. 봉투의 code는 검사하지 않습니다.
func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, body interface{}, needSign bool) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: 요청 제한 대기 실패: %w", domain.ErrTransport, err)
	}

	requestPath := endpoint
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("요청 본문 직렬화 실패: %w", err)
		}
	}

	// 서명 경로는 쿼리 문자열을 포함합니다
	var header http.Header
	if needSign {
		header = c.signer.Headers(method, requestPath, payload)
	} else {
		header = c.signer.PublicHeaders()
	}

	resp, err := c.transport.Execute(ctx, &transport.Request{
		Method: method,
		URL:    c.baseURL + requestPath,
		Header: header,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}

	var result apiResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: HTTP 에러(%d): %s", domain.ErrTransport, resp.StatusCode, truncate(resp.Body, 200))
		}
		return nil, fmt.Errorf("%w: 응답 파싱 실패: %w", domain.ErrExchange, err)
	}

	return &result, nil
}

// doRequest는 요청을 실행하고 성공 응답의 data 필드를 반환합니다
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, body interface{}, needSign bool) (json.RawMessage, error) {
	resp, err := c.call(ctx, method, endpoint, params, body, needSign)
	if err != nil {
		return nil, err
	}
	if !resp.Code.ok() {
		return nil, &domain.ExchangeError{Code: string(resp.Code), Message: resp.Msg}
	}
	return resp.Data, nil
}

// GetServerTime은 서버 시간을 조회합니다
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v5/public/time", nil, nil, false)
	if err != nil {
		return time.Time{}, err
	}

	var result []serverTimeData
	if err := json.Unmarshal(data, &result); err != nil || len(result) == 0 {
		return time.Time{}, fmt.Errorf("%w: 서버 시간 파싱 실패", domain.ErrExchange)
	}

	ms, err := strconv.ParseInt(result[0].Ts, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: 서버 시간 파싱 실패: %w", domain.ErrExchange, err)
	}

	return time.UnixMilli(ms), nil
}

// SyncTime은 OKX 서버와 시간을 동기화합니다
func (c *Client) SyncTime(ctx context.Context) error {
	before := time.Now()
	serverTime, err := c.GetServerTime(ctx)
	if err != nil {
		return fmt.Errorf("서버 시간 조회 실패: %w", err)
	}
	// 왕복 시간의 중간 시점을 로컬 기준으로 사용
	local := before.Add(time.Since(before) / 2)

	offset := serverTime.Sub(local)
	c.signer.SetOffset(offset)

	if offset > maxClockDrift || offset < -maxClockDrift {
		c.logger.Warn("서버 시간과 로컬 시간 차이가 큽니다",
			zap.Duration("offset", offset),
			zap.Time("server_time", serverTime),
		)
	} else {
		c.logger.Debug("서버 시간 동기화 완료", zap.Duration("offset", offset))
	}
	return nil
}

// GetInstrument는 심볼의 거래 규칙을 조회합니다
func (c *Client) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	instID, marketType := c.ResolveInstID(symbol)

	params := url.Values{}
	params.Set("instType", string(marketType))
	params.Set("instId", instID)

	data, err := c.doRequest(ctx, http.MethodGet, "/api/v5/public/instruments", params, nil, false)
	if err != nil {
		return nil, err
	}

	var result []instrumentData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: 상품 정보 파싱 실패: %w", domain.ErrExchange, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: 상품 정보 없음: %s", domain.ErrExchange, instID)
	}

	raw := result[0]
	minSize, err := decimal.NewFromString(raw.MinSz)
	if err != nil {
		return nil, fmt.Errorf("%w: minSz 파싱 실패(%q): %w", domain.ErrExchange, raw.MinSz, err)
	}
	lotSize, err := decimal.NewFromString(raw.LotSz)
	if err != nil {
		return nil, fmt.Errorf("%w: lotSz 파싱 실패(%q): %w", domain.ErrExchange, raw.LotSz, err)
	}
	if !lotSize.IsPositive() || minSize.IsNegative() {
		return nil, fmt.Errorf("%w: 잘못된 수량 규칙 (minSz=%s, lotSz=%s)", domain.ErrExchange, raw.MinSz, raw.LotSz)
	}
	tickSize, _ := decimal.NewFromString(raw.TickSz)

	return &domain.Instrument{
		Symbol:     symbol,
		InstID:     raw.InstID,
		MinSize:    minSize,
		LotSize:    lotSize,
		TickSize:   tickSize,
		MarketType: marketType,
	}, nil
}

// GetTicker는 최근 시세를 조회합니다
func (c *Client) GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	instID, _ := c.ResolveInstID(symbol)

	params := url.Values{}
	params.Set("instId", instID)

	data, err := c.doRequest(ctx, http.MethodGet, "/api/v5/market/ticker", params, nil, false)
	if err != nil {
		return nil, err
	}

	var result []tickerData
	if err := json.Unmarshal(data, &result); err != nil || len(result) == 0 {
		return nil, fmt.Errorf("%w: 시세 파싱 실패: %s", domain.ErrExchange, instID)
	}

	raw := result[0]
	ticker := &domain.Ticker{
		InstID: raw.InstID,
		Last:   parseDecimal(raw.Last),
		Bid:    parseDecimal(raw.BidPx),
		Ask:    parseDecimal(raw.AskPx),
	}
	if ms, err := strconv.ParseInt(raw.Ts, 10, 64); err == nil {
		ticker.Timestamp = time.UnixMilli(ms)
	}
	return ticker, nil
}

// GetBalance는 계정 잔고를 조회합니다
func (c *Client) GetBalance(ctx context.Context) (*domain.AccountInfo, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v5/account/balance", nil, nil, true)
	if err != nil {
		return nil, err
	}

	var result []balanceData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: 잔고 파싱 실패: %w", domain.ErrExchange, err)
	}

	info := &domain.AccountInfo{Balances: make(map[string]domain.Balance)}
	for _, account := range result {
		info.TotalEquity = info.TotalEquity.Add(parseDecimal(account.TotalEq))
		for _, d := range account.Details {
			info.Balances[d.Ccy] = domain.Balance{
				Currency:  d.Ccy,
				Available: parseDecimal(d.AvailBal),
				Frozen:    parseDecimal(d.FrozenBal),
				Equity:    parseDecimal(d.Eq),
			}
		}
	}
	return info, nil
}

// GetPositions는 심볼의 포지션 목록을 조회합니다.
// 수량이 0인 항목도 그대로 반환합니다.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]domain.Position, error) {
	params := url.Values{}
	if symbol != "" {
		instID, _ := c.ResolveInstID(symbol)
		params.Set("instId", instID)
	}

	data, err := c.doRequest(ctx, http.MethodGet, "/api/v5/account/positions", params, nil, true)
	if err != nil {
		return nil, err
	}

	var result []positionData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: 포지션 파싱 실패: %w", domain.ErrExchange, err)
	}

	positions := make([]domain.Position, 0, len(result))
	for _, raw := range result {
		pos, err := toPosition(symbol, raw)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func toPosition(symbol string, raw positionData) (domain.Position, error) {
	amount := decimal.Zero
	if raw.Pos != "" {
		var err error
		amount, err = decimal.NewFromString(raw.Pos)
		if err != nil {
			return domain.Position{}, fmt.Errorf("%w: 포지션 수량 파싱 실패(%q): %w", domain.ErrExchange, raw.Pos, err)
		}
	}

	posSide := domain.PositionSide(strings.ToLower(raw.PosSide))
	if posSide == "" {
		posSide = domain.NetPosition
	}

	// long/short 모드에서는 posSide가 방향을, net 모드에서는 부호가 방향을 나타냅니다
	var side domain.OrderSide
	switch posSide {
	case domain.LongPosition:
		side = domain.Buy
	case domain.ShortPosition:
		side = domain.Sell
	default:
		side = domain.Buy
		if amount.IsNegative() {
			side = domain.Sell
		}
	}

	marginMode, ok := domain.ParseMarginMode(raw.MgnMode)
	if !ok {
		marginMode = domain.Cross
	}

	if symbol == "" {
		symbol = raw.InstID
	}

	return domain.Position{
		Symbol:        symbol,
		InstID:        raw.InstID,
		Side:          side,
		Size:          amount.Abs(),
		MarginMode:    marginMode,
		PositionSide:  posSide,
		AvgPrice:      parseDecimal(raw.AvgPx),
		UnrealizedPnL: parseDecimal(raw.Upl),
		Leverage:      raw.Lever,
	}, nil
}

// PlaceOrder는 주문을 실행합니다
func (c *Client) PlaceOrder(ctx context.Context, order domain.Order) (*domain.OrderResult, error) {
	instID := order.InstID
	if instID == "" {
		instID, _ = c.ResolveInstID(order.Symbol)
	}

	body := orderBody{
		InstID:     instID,
		TdMode:     string(order.MarginMode),
		Side:       string(order.Side),
		OrdType:    string(order.Type),
		Sz:         order.Quantity.String(),
		ReduceOnly: order.ReduceOnly,
		PosSide:    string(order.PositionSide),
		ClOrdID:    order.ClientOrderID,
	}
	if order.Type == domain.Limit && order.Price.Valid {
		body.Px = order.Price.Decimal.String()
	}
	// 현물 시장가 매수의 sz는 기본적으로 견적 통화 단위이므로 기준 통화로 고정합니다
	if _, marketType := domain.ResolveInstID(instID, c.defaultType); marketType == domain.Spot && order.Type == domain.Market {
		body.TgtCcy = tgtCcyBase
	}
	// net 모드에서는 posSide를 보내지 않습니다
	if order.PositionSide == domain.NetPosition {
		body.PosSide = ""
	}

	resp, err := c.call(ctx, http.MethodPost, "/api/v5/trade/order", nil, body, true)
	if err != nil {
		return nil, fmt.Errorf("주문 실행 실패 [심볼: %s, 방향: %s, 수량: %s]: %w",
			instID, order.Side, body.Sz, err)
	}

	var acks []orderAck
	_ = json.Unmarshal(resp.Data, &acks)

	// 개별 주문 오류(sCode)가 봉투 메시지보다 구체적입니다
	if len(acks) > 0 && acks[0].SCode != "" && !acks[0].SCode.ok() {
		return nil, &domain.ExchangeError{Code: string(acks[0].SCode), Message: acks[0].SMsg}
	}
	if !resp.Code.ok() {
		return nil, &domain.ExchangeError{Code: string(resp.Code), Message: resp.Msg}
	}
	if len(acks) == 0 {
		return nil, fmt.Errorf("%w: 주문 응답에 데이터가 없습니다", domain.ErrExchange)
	}

	return &domain.OrderResult{
		Success:       true,
		OrderID:       acks[0].OrdID,
		ClientOrderID: acks[0].ClOrdID,
		Raw:           resp.Data,
		Message:       acks[0].SMsg,
	}, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Package webhook은 트레이딩 알림 웹훅을 받아 거래 서비스로 전달하는 HTTP 경계입니다.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/assist-by/piona/internal/domain"
)

var defaultQuantity = decimal.RequireFromString("0.001")

// 액션 어휘
var (
	closeWords = map[string]bool{
		"close":           true,
		"exit":            true,
		"stop":            true,
		"time_exit":       true,
		"emergency_close": true,
	}
	sideWords = map[string]domain.ActionKind{
		"buy":   domain.ActionBuy,
		"long":  domain.ActionBuy,
		"sell":  domain.ActionSell,
		"short": domain.ActionSell,
	}
)

// Translator는 두 가지 웹훅 페이로드 형태를 WebhookAction으로 변환합니다.
//
//	A: {"signal": "buy", "quantity": 0.01, "symbol": "BTCUSDT"}
//	B: {"action": "entry", "side": "long", "qty": "0.01", "symbol": "BTCUSDT"}
type Translator struct {
	defaultQty decimal.Decimal
}

// NewTranslator는 새로운 Translator를 생성합니다.
// 기본 수량이 0 이하이면 0.001을 사용합니다.
func NewTranslator(defaultQty decimal.Decimal) *Translator {
	if !defaultQty.IsPositive() {
		defaultQty = defaultQuantity
	}
	return &Translator{defaultQty: defaultQty}
}

// Translate는 원본 본문을 WebhookAction으로 변환합니다
func (t *Translator) Translate(raw []byte) (domain.WebhookAction, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return domain.WebhookAction{}, domain.NewValidationError("본문이 JSON 객체가 아닙니다")
	}

	// signal/action이 없으면 Unknown으로 처리합니다
	word, _ := firstString(payload, "signal", "action")
	word = strings.ToLower(strings.TrimSpace(word))

	action := domain.WebhookAction{
		RawAction: word,
		OrderType: domain.Market,
	}

	kind, err := resolveKind(word, payload)
	if err != nil {
		return domain.WebhookAction{}, err
	}
	action.Kind = kind

	if symbol, ok := firstString(payload, "symbol", "ticker"); ok {
		action.Symbol = strings.ToUpper(strings.TrimSpace(symbol))
	}
	if action.NeedsSymbol() && action.Symbol == "" {
		return domain.WebhookAction{}, domain.NewValidationError("%s 액션에는 symbol이 필요합니다", word)
	}

	action.Quantity = t.defaultQty
	if qtyRaw, ok := firstRaw(payload, "quantity", "qty"); ok {
		qty, present, err := parseNumber(qtyRaw)
		if err != nil {
			return domain.WebhookAction{}, domain.NewValidationError("잘못된 수량: %s", string(qtyRaw))
		}
		if present {
			if !qty.IsPositive() {
				return domain.WebhookAction{}, domain.NewValidationError("수량은 0보다 커야 합니다: %s", qty)
			}
			action.Quantity = qty
		}
	}

	if priceRaw, ok := payload["price"]; ok {
		price, present, err := parseNumber(priceRaw)
		if err != nil {
			return domain.WebhookAction{}, domain.NewValidationError("잘못된 가격: %s", string(priceRaw))
		}
		if present {
			if !price.IsPositive() {
				return domain.WebhookAction{}, domain.NewValidationError("가격은 0보다 커야 합니다: %s", price)
			}
			action.Price = decimal.NewNullDecimal(price)
		}
	}

	if orderType, ok := firstString(payload, "order_type"); ok {
		switch domain.OrderType(strings.ToLower(strings.TrimSpace(orderType))) {
		case domain.Market:
			action.OrderType = domain.Market
		case domain.Limit:
			action.OrderType = domain.Limit
		default:
			return domain.WebhookAction{}, domain.NewValidationError("지원하지 않는 주문 유형: %s", orderType)
		}
	}

	if token, ok := firstString(payload, "token"); ok {
		action.Token = token
	}

	return action, nil
}

func resolveKind(word string, payload map[string]json.RawMessage) (domain.ActionKind, error) {
	switch {
	case word == "entry":
		side, _ := firstString(payload, "side")
		kind, ok := sideWords[strings.ToLower(strings.TrimSpace(side))]
		if !ok {
			return domain.ActionUnknown, domain.NewValidationError("entry 액션의 side를 알 수 없습니다: %q", side)
		}
		return kind, nil
	case closeWords[word]:
		return domain.ActionClose, nil
	case word == "test":
		return domain.ActionTest, nil
	}

	if kind, ok := sideWords[word]; ok {
		return kind, nil
	}
	return domain.ActionUnknown, nil
}

// firstRaw는 주어진 키 중 처음으로 존재하는 값을 반환합니다
func firstRaw(payload map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

// firstString은 주어진 키 중 처음으로 존재하는 비어있지 않은 값을 문자열로 반환합니다
func firstString(payload map[string]json.RawMessage, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok || isNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			s = string(bytes.TrimSpace(v))
		}
		if strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// parseNumber는 JSON 숫자 또는 숫자 문자열을 파싱합니다.
// 빈 문자열은 값이 없는 것으로 봅니다.
func parseNumber(raw json.RawMessage) (decimal.Decimal, bool, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return decimal.Zero, false, nil
	}

	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false, err
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return decimal.Zero, false, nil
		}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("숫자 파싱 실패: %w", err)
	}
	return d, true, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// extractToken은 본문이 JSON 객체인지 확인하고 token 필드를 꺼냅니다.
// 인증은 액션 해석보다 먼저 수행됩니다.
func extractToken(raw []byte) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return "", domain.NewValidationError("본문이 JSON 객체가 아닙니다")
	}
	token, _ := firstString(payload, "token")
	return token, nil
}

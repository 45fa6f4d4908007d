package webhook

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/assist-by/piona/internal/domain"
)

const transportFailureMessage = "거래소 네트워크 요청에 실패했습니다"

type balanceView struct {
	Available string `json:"available"`
	Frozen    string `json:"frozen"`
	Equity    string `json:"equity"`
}

type positionView struct {
	Symbol        string `json:"symbol"`
	InstID        string `json:"inst_id"`
	Side          string `json:"side"`
	PositionSide  string `json:"pos_side"`
	Size          string `json:"size"`
	MarginMode    string `json:"margin_mode"`
	AvgPrice      string `json:"avg_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	Leverage      string `json:"leverage,omitempty"`
}

func newPositionView(p domain.Position) positionView {
	return positionView{
		Symbol:        p.Symbol,
		InstID:        p.InstID,
		Side:          string(p.Side),
		PositionSide:  string(p.PositionSide),
		Size:          p.Size.String(),
		MarginMode:    string(p.MarginMode),
		AvgPrice:      p.AvgPrice.String(),
		UnrealizedPnL: p.UnrealizedPnL.String(),
		Leverage:      p.Leverage,
	}
}

type closeEntryView struct {
	Position positionView        `json:"position"`
	Result   *domain.OrderResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type closeView struct {
	Symbol    string           `json:"symbol"`
	Message   string           `json:"message"`
	Succeeded int              `json:"succeeded"`
	Entries   []closeEntryView `json:"entries"`
}

func newCloseView(r *domain.CloseResult) closeView {
	v := closeView{
		Symbol:    r.Symbol,
		Message:   r.Message,
		Succeeded: r.Succeeded(),
		Entries:   make([]closeEntryView, 0, len(r.Entries)),
	}
	for _, e := range r.Entries {
		ev := closeEntryView{Position: newPositionView(e.Position), Result: e.Result}
		if e.Err != nil {
			ev.Error = publicMessage(e.Err)
		}
		v.Entries = append(v.Entries, ev)
	}
	return v
}

// statusFor는 에러 분류에 맞는 HTTP 상태 코드를 반환합니다
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage는 응답에 실을 메시지를 반환합니다.
// 거래소 에러는 거래소 메시지를 그대로, 네트워크 에러는 일반 메시지를 사용합니다.
func publicMessage(err error) string {
	if msg, ok := domain.ExchangeMessage(err); ok && msg != "" {
		return msg
	}
	switch {
	case errors.Is(err, domain.ErrTransport):
		return transportFailureMessage
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrExchange):
		return err.Error()
	default:
		return "내부 오류가 발생했습니다"
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"status":  "error",
		"message": message,
	})
}

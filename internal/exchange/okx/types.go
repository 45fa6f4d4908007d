package okx

import (
	"bytes"
	"encoding/json"
	"strings"
)

// responseCode는 문자열과 숫자 두 형태의 code 필드를 모두 받아들입니다
type responseCode string

func (c *responseCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = responseCode(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = responseCode(n.String())
	return nil
}

func (c responseCode) ok() bool {
	return c == "0"
}

// apiResponse는 OKX v5 응답 봉투입니다
type apiResponse struct {
	Code responseCode    `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type instrumentData struct {
	InstID   string `json:"instId"`
	InstType string `json:"instType"`
	MinSz    string `json:"minSz"`
	LotSz    string `json:"lotSz"`
	TickSz   string `json:"tickSz"`
	State    string `json:"state"`
}

type tickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	Ts     string `json:"ts"`
}

type positionData struct {
	InstID  string `json:"instId"`
	PosSide string `json:"posSide"`
	Pos     string `json:"pos"`
	MgnMode string `json:"mgnMode"`
	AvgPx   string `json:"avgPx"`
	Upl     string `json:"upl"`
	Lever   string `json:"lever"`
}

type balanceData struct {
	TotalEq string `json:"totalEq"`
	Details []struct {
		Ccy       string `json:"ccy"`
		AvailBal  string `json:"availBal"`
		FrozenBal string `json:"frozenBal"`
		Eq        string `json:"eq"`
	} `json:"details"`
}

type serverTimeData struct {
	Ts string `json:"ts"`
}

// orderBody는 POST /api/v5/trade/order 요청 본문입니다
type orderBody struct {
	InstID     string `json:"instId"`
	TdMode     string `json:"tdMode"`
	Side       string `json:"side"`
	OrdType    string `json:"ordType"`
	Sz         string `json:"sz"`
	Px         string `json:"px,omitempty"`
	TgtCcy     string `json:"tgtCcy,omitempty"`
	ReduceOnly bool   `json:"reduceOnly,omitempty"`
	PosSide    string `json:"posSide,omitempty"`
	ClOrdID    string `json:"clOrdId,omitempty"`
}

type orderAck struct {
	OrdID   string       `json:"ordId"`
	ClOrdID string       `json:"clOrdId"`
	SCode   responseCode `json:"sCode"`
	SMsg    string       `json:"sMsg"`
}

package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/assist-by/piona/internal/domain"
	"github.com/assist-by/piona/internal/notification"
)

const footerText = "Piona Webhook Trader 🤖"

// SendError는 에러 알림을 전송합니다
func (c *Client) SendError(err error) error {
	embed := NewEmbed().
		SetTitle("에러 발생").
		SetDescription(fmt.Sprintf("```%v```", err)).
		SetColor(domain.ColorError).
		SetFooter(footerText).
		SetTimestamp(time.Now())

	msg := WebhookMessage{
		Embeds: []Embed{*embed},
	}

	return c.sendToWebhook(c.errorWebhook, msg)
}

// SendInfo는 일반 정보 알림을 전송합니다
func (c *Client) SendInfo(message string) error {
	embed := NewEmbed().
		SetDescription(message).
		SetColor(domain.ColorInfo).
		SetFooter(footerText).
		SetTimestamp(time.Now())

	msg := WebhookMessage{
		Embeds: []Embed{*embed},
	}

	return c.sendToWebhook(c.tradeWebhook, msg)
}

// SendTradeInfo는 거래 실행 정보를 전송합니다
func (c *Client) SendTradeInfo(info notification.TradeInfo) error {
	embed := NewEmbed().
		SetTitle(fmt.Sprintf("%s %s", strings.ToUpper(info.Action), info.Symbol)).
		SetColor(notification.GetColorForAction(info.Action)).
		SetFooter(footerText).
		SetTimestamp(time.Now())

	if info.Action == domain.ActionClose.String() {
		embed.SetDescription(fmt.Sprintf("**청산 포지션**: %d\n%s", info.Closed, info.Message))
	} else {
		embed.SetDescription(fmt.Sprintf("**방향**: %s\n**수량**: %s", info.Side, info.AdjustedQty))
		if info.RequestedQty != "" && info.RequestedQty != info.AdjustedQty {
			embed.AddField("요청 수량", info.RequestedQty, true)
		}
	}
	embed.AddFieldIf(info.OrderID != "", "주문 ID", info.OrderID, true)
	embed.AddFieldIf(info.ClientOrderID != "", "클라이언트 주문 ID", info.ClientOrderID, true)

	msg := WebhookMessage{
		Embeds: []Embed{*embed},
	}

	return c.sendToWebhook(c.tradeWebhook, msg)
}

package position

import (
	"github.com/shopspring/decimal"

	"github.com/assist-by/piona/internal/domain"
)

// NormalizeQuantity는 주문 수량을 상품의 수량 단위에 맞춥니다.
//
// 최소 수량보다 작으면 거부하고, 그 외에는 수량 단위의 가장 가까운 배수로
// 반올림합니다 (0.5는 0에서 먼 쪽으로). 반올림 결과가 최소 수량보다 작으면
// 최소 수량 이상인 가장 작은 배수로 올립니다. 단위 불일치만으로는 거부하지 않습니다.
func NormalizeQuantity(qty decimal.Decimal, inst domain.Instrument) (domain.NormalizedQuantity, error) {
	lot := inst.LotSize
	if !lot.IsPositive() {
		return domain.NormalizedQuantity{}, domain.NewValidationError(
			"잘못된 수량 단위 %s (%s)", lot.String(), inst.InstID)
	}
	if !qty.IsPositive() {
		return domain.NormalizedQuantity{}, domain.NewValidationError(
			"주문 수량은 0보다 커야 합니다: %s", qty.String())
	}
	if qty.LessThan(inst.MinSize) {
		return domain.NormalizedQuantity{}, domain.NewValidationError(
			"주문 수량 %s이(가) 최소 수량 %s보다 작습니다 (%s)", qty.String(), inst.MinSize.String(), inst.InstID)
	}

	steps := qty.Div(lot).Round(0)
	adjusted := steps.Mul(lot)

	if adjusted.LessThan(inst.MinSize) || !adjusted.IsPositive() {
		adjusted = inst.MinSize.Div(lot).Ceil().Mul(lot)
		if !adjusted.IsPositive() {
			adjusted = lot
		}
	}

	return domain.NormalizedQuantity{
		Requested:   qty,
		Adjusted:    adjusted,
		WasAdjusted: !adjusted.Equal(qty),
	}, nil
}

package types

import "github.com/shopspring/decimal"

// Default marketplace rates in basis points.
const (
	DefaultTaxRateBP        = 700
	DefaultServiceFeeRateBP = 500
)

// OrderAmounts is the money breakdown persisted on every order, in cents.
// Invariant: Total == Subtotal + Tax + ServiceFee + DeliveryFee + Tip.
type OrderAmounts struct {
	SubtotalCents    int `json:"subtotal_cents"`
	TaxCents         int `json:"tax_cents"`
	ServiceFeeCents  int `json:"service_fee_cents"`
	DeliveryFeeCents int `json:"delivery_fee_cents"`
	TipCents         int `json:"tip_cents"`
	TotalCents       int `json:"total_cents"`
}

// ComputeOrderAmounts derives tax and service fee from the subtotal at the
// given basis-point rates, rounding half-up to the cent, and sums the total.
func ComputeOrderAmounts(subtotalCents, deliveryFeeCents, tipCents, taxRateBP, serviceFeeRateBP int) OrderAmounts {
	amounts := OrderAmounts{
		SubtotalCents:    subtotalCents,
		TaxCents:         rateShareCents(subtotalCents, taxRateBP),
		ServiceFeeCents:  rateShareCents(subtotalCents, serviceFeeRateBP),
		DeliveryFeeCents: deliveryFeeCents,
		TipCents:         tipCents,
	}
	amounts.TotalCents = amounts.SubtotalCents + amounts.TaxCents + amounts.ServiceFeeCents + amounts.DeliveryFeeCents + amounts.TipCents
	return amounts
}

// Balanced reports whether the total matches the sum of its parts to the cent.
func (a OrderAmounts) Balanced() bool {
	return a.TotalCents == a.SubtotalCents+a.TaxCents+a.ServiceFeeCents+a.DeliveryFeeCents+a.TipCents
}

func rateShareCents(amountCents, rateBP int) int {
	if amountCents <= 0 || rateBP <= 0 {
		return 0
	}
	share := decimal.NewFromInt(int64(amountCents)).
		Mul(decimal.NewFromInt(int64(rateBP))).
		Div(decimal.NewFromInt(10000)).
		Round(0)
	return int(share.IntPart())
}

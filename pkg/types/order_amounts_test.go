package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOrderAmountsWorkedExample(t *testing.T) {
	// $10.00 x 2 basket, $5.00 delivery, no tip.
	amounts := ComputeOrderAmounts(2000, 500, 0, DefaultTaxRateBP, DefaultServiceFeeRateBP)

	assert.Equal(t, 2000, amounts.SubtotalCents)
	assert.Equal(t, 140, amounts.TaxCents)
	assert.Equal(t, 100, amounts.ServiceFeeCents)
	assert.Equal(t, 500, amounts.DeliveryFeeCents)
	assert.Equal(t, 0, amounts.TipCents)
	assert.Equal(t, 2740, amounts.TotalCents)
	assert.True(t, amounts.Balanced())
}

func TestComputeOrderAmountsRounding(t *testing.T) {
	cases := []struct {
		name     string
		subtotal int
		tax      int
		service  int
	}{
		{name: "exact cents", subtotal: 1000, tax: 70, service: 50},
		{name: "rounds half up", subtotal: 1050, tax: 74, service: 53},
		{name: "single cent", subtotal: 1, tax: 0, service: 0},
		{name: "large order", subtotal: 9999999, tax: 700000, service: 500000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amounts := ComputeOrderAmounts(tc.subtotal, 0, 0, DefaultTaxRateBP, DefaultServiceFeeRateBP)
			assert.Equal(t, tc.tax, amounts.TaxCents, "tax")
			assert.Equal(t, tc.service, amounts.ServiceFeeCents, "service fee")
			assert.True(t, amounts.Balanced())

			wantTax := decimal.NewFromInt(int64(tc.subtotal)).Mul(decimal.NewFromFloat(0.07)).Round(0)
			require.Equal(t, wantTax.IntPart(), int64(amounts.TaxCents))
		})
	}
}

func TestComputeOrderAmountsTipAndZeroRates(t *testing.T) {
	amounts := ComputeOrderAmounts(2000, 500, 300, 0, 0)
	assert.Equal(t, 0, amounts.TaxCents)
	assert.Equal(t, 0, amounts.ServiceFeeCents)
	assert.Equal(t, 2800, amounts.TotalCents)
	assert.True(t, amounts.Balanced())
}

package billing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecomputeTotals(t *testing.T) {
	tx := &Transaction{
		Kind: KindSale,
		Items: []LineItem{
			{Description: "Quartz strap", Quantity: 2, UnitPrice: 500},
			{Description: "Dial polish", Quantity: 1, UnitPrice: 1000},
		},
		Discount: DiscountSpec{Kind: DiscountPercentage, Value: 10},
	}

	require.NoError(t, Recompute(tx))
	require.InDelta(t, 2000.0, tx.Subtotal, 0.001)
	require.InDelta(t, 200.0, tx.Discount.Applied, 0.001)
	require.InDelta(t, 0.0, tx.Tax.Amount, 0.001)
	require.InDelta(t, 1800.0, tx.TotalAmount, 0.001)
}

func TestRecomputeIdempotent(t *testing.T) {
	tx := &Transaction{
		Kind: KindInvoice,
		Items: []LineItem{
			{Description: "Service charge", Quantity: 3, UnitPrice: 333.33},
		},
		Discount: DiscountSpec{Kind: DiscountAmount, Value: 99.99},
		Tax:      TaxSpec{Kind: "GST", Rate: 18},
	}

	require.NoError(t, Recompute(tx))
	first := *tx
	require.NoError(t, Recompute(tx))
	require.Equal(t, first.Subtotal, tx.Subtotal)
	require.Equal(t, first.Discount.Applied, tx.Discount.Applied)
	require.Equal(t, first.Tax.Amount, tx.Tax.Amount)
	require.Equal(t, first.TotalAmount, tx.TotalAmount)
}

func TestDiscountClampedToSubtotal(t *testing.T) {
	tx := &Transaction{
		Kind:     KindSale,
		Items:    []LineItem{{Description: "Battery", Quantity: 1, UnitPrice: 150}},
		Discount: DiscountSpec{Kind: DiscountAmount, Value: 600},
	}

	require.NoError(t, Recompute(tx))
	require.InDelta(t, 150.0, tx.Discount.Applied, 0.001)
	require.InDelta(t, 0.0, tx.TotalAmount, 0.001)
}

func TestTaxOnPostDiscountBase(t *testing.T) {
	tx := &Transaction{
		Kind:     KindSale,
		Items:    []LineItem{{Description: "Automatic movement", Quantity: 1, UnitPrice: 1000}},
		Discount: DiscountSpec{Kind: DiscountPercentage, Value: 20},
		Tax:      TaxSpec{Kind: "GST", Rate: 18},
	}

	require.NoError(t, Recompute(tx))
	// 18% of 800, not of 1000.
	require.InDelta(t, 144.0, tx.Tax.Amount, 0.001)
	require.InDelta(t, 944.0, tx.TotalAmount, 0.001)
}

func TestPerLineTaxScaledByDiscount(t *testing.T) {
	tx := &Transaction{
		Kind: KindSale,
		Items: []LineItem{
			{Description: "Strap", Quantity: 1, UnitPrice: 500, TaxRate: 12},
			{Description: "Glass", Quantity: 1, UnitPrice: 500, TaxRate: 18},
		},
		Discount: DiscountSpec{Kind: DiscountPercentage, Value: 50},
	}

	require.NoError(t, Recompute(tx))
	// Line tax 60 + 90 = 150, halved with the 50% discount.
	require.InDelta(t, 75.0, tx.Tax.Amount, 0.001)
	require.InDelta(t, 575.0, tx.TotalAmount, 0.001)
}

func TestRecomputeRejectsInvalidLines(t *testing.T) {
	tx := &Transaction{Items: []LineItem{{Description: "x", Quantity: 0, UnitPrice: 10}}}
	require.ErrorIs(t, Recompute(tx), ErrValidation)

	tx = &Transaction{Items: []LineItem{{Description: "x", Quantity: 1, UnitPrice: -5}}}
	require.ErrorIs(t, Recompute(tx), ErrValidation)
}

func TestRecomputeAfterItemChanges(t *testing.T) {
	tx := &Transaction{
		Kind:  KindSale,
		Items: []LineItem{{Description: "a", Quantity: 2, UnitPrice: 100}},
	}
	require.NoError(t, Recompute(tx))
	require.InDelta(t, 200.0, tx.TotalAmount, 0.001)

	tx.Items = append(tx.Items, LineItem{Description: "b", Quantity: 1, UnitPrice: 50})
	require.NoError(t, Recompute(tx))
	require.InDelta(t, 250.0, tx.TotalAmount, 0.001)

	tx.Items = tx.Items[:1]
	require.NoError(t, Recompute(tx))
	require.InDelta(t, 200.0, tx.TotalAmount, 0.001)
}

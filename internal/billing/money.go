package billing

import (
	"fmt"
	"math"
)

// round2 rounds to two decimal places, the resolution of every stored
// amount.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Recompute derives subtotal, applied discount, tax amount and total from
// the current items, discount and tax fields. It is pure apart from writing
// those four derived fields back and never touches the store.
//
// Calling it twice with unchanged inputs yields identical outputs.
func Recompute(t *Transaction) error {
	var subtotal float64
	var lineTax float64
	for i := range t.Items {
		item := &t.Items[i]
		if item.Quantity < 1 {
			return fmt.Errorf("%w: line %d: quantity must be at least 1", ErrValidation, i+1)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: line %d: unit price must not be negative", ErrValidation, i+1)
		}
		if item.TaxRate < 0 || item.TaxRate > 100 {
			return fmt.Errorf("%w: line %d: tax rate must be between 0 and 100", ErrValidation, i+1)
		}
		item.Subtotal = round2(float64(item.Quantity) * item.UnitPrice)
		item.TaxAmount = round2(item.Subtotal * item.TaxRate / 100)
		subtotal = round2(subtotal + item.Subtotal)
		lineTax += item.TaxAmount
	}
	t.Subtotal = subtotal

	applied, err := appliedDiscount(t.Discount, subtotal)
	if err != nil {
		return err
	}
	t.Discount.Applied = applied

	// Tax is a single pass over the post-discount base. A transaction-level
	// rate wins; otherwise per-line tax amounts are scaled down by the
	// discounted proportion so the discount never escapes taxation.
	base := round2(subtotal - applied)
	if t.Tax.Rate < 0 || t.Tax.Rate > 100 {
		return fmt.Errorf("%w: tax rate must be between 0 and 100", ErrValidation)
	}
	switch {
	case t.Tax.Rate > 0:
		t.Tax.Amount = round2(base * t.Tax.Rate / 100)
	case lineTax > 0 && subtotal > 0:
		t.Tax.Amount = round2(lineTax * base / subtotal)
	default:
		t.Tax.Amount = 0
	}

	t.TotalAmount = round2(base + t.Tax.Amount)
	t.BalanceAmount = math.Max(0, round2(t.TotalAmount-t.PaidAmount))
	return nil
}

// appliedDiscount resolves the discount spec against the subtotal. The
// result is clamped to [0, subtotal]: a discount can never make the taxable
// base negative.
func appliedDiscount(d DiscountSpec, subtotal float64) (float64, error) {
	if d.Value < 0 {
		return 0, fmt.Errorf("%w: discount value must not be negative", ErrValidation)
	}
	var applied float64
	switch d.Kind {
	case DiscountNone, "":
		applied = 0
	case DiscountPercentage:
		if d.Value > 100 {
			return 0, fmt.Errorf("%w: percentage discount must not exceed 100", ErrValidation)
		}
		applied = round2(subtotal * d.Value / 100)
	case DiscountAmount:
		applied = round2(d.Value)
	default:
		return 0, fmt.Errorf("%w: unknown discount kind %q", ErrValidation, d.Kind)
	}
	if applied > subtotal {
		applied = subtotal
	}
	if applied < 0 {
		applied = 0
	}
	return applied, nil
}

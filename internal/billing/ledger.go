package billing

import (
	"fmt"
	"math"
	"time"
)

// PaymentPolicy configures ledger behaviour that varies per shop.
type PaymentPolicy struct {
	// AllowOverpayment permits payments above the outstanding balance.
	// Default is the source behaviour: amount must not exceed the balance.
	AllowOverpayment bool
}

// AppendPayment validates and appends a normal (positive) payment event,
// then re-derives paid amount, balance and payment status. Refunds go
// through AppendRefund, never through here with a negative amount: the
// ledger stays self-describing.
func (t *Transaction) AppendPayment(ev PaymentEvent, policy PaymentPolicy, now time.Time) error {
	if t.IsDeleted() {
		return fmt.Errorf("%w: record is deleted", ErrImmutableRecord)
	}
	switch t.Status {
	case StatusCancelled, StatusReturned, StatusRefunded:
		return fmt.Errorf("%w: no payments on a %s record", ErrImmutableRecord, t.Status)
	}
	if ev.Amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	if !ValidMethod(ev.Method) {
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, ev.Method)
	}
	if !policy.AllowOverpayment && round2(t.PaidAmount+ev.Amount) > t.TotalAmount {
		return fmt.Errorf("%w: %.2f against balance %.2f", ErrOverpayment, ev.Amount, t.BalanceAmount)
	}

	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = now
	}
	ev.Amount = round2(ev.Amount)
	t.Payments = append(t.Payments, ev)
	t.recalcLedger(now)
	return nil
}

// AppendRefund validates and appends a negative payment event tagged
// method=refund. A refund can never exceed what was collected: paidAmount
// does not go negative.
func (t *Transaction) AppendRefund(amount float64, recordedBy int64, reason string, now time.Time) (PaymentEvent, error) {
	if t.IsDeleted() {
		return PaymentEvent{}, fmt.Errorf("%w: record is deleted", ErrImmutableRecord)
	}
	if amount <= 0 {
		return PaymentEvent{}, fmt.Errorf("%w: refund amount must be positive", ErrValidation)
	}
	if round2(amount) > round2(t.PaidAmount) {
		return PaymentEvent{}, fmt.Errorf("%w: %.2f against collected %.2f", ErrOverRefund, amount, t.PaidAmount)
	}

	ev := PaymentEvent{
		TransactionID: t.ID,
		Amount:        -round2(amount),
		Method:        MethodRefund,
		Notes:         reason,
		RecordedBy:    recordedBy,
		RecordedAt:    now,
	}
	t.Payments = append(t.Payments, ev)
	t.recalcLedger(now)
	// An explicit refund overrides the derived status.
	t.PaymentStatus = PaymentRefunded
	return ev, nil
}

// recalcLedger re-derives paidAmount, balanceAmount and paymentStatus from
// the event list.
func (t *Transaction) recalcLedger(now time.Time) {
	var paid float64
	for _, ev := range t.Payments {
		paid = round2(paid + ev.Amount)
	}
	t.PaidAmount = paid
	t.BalanceAmount = math.Max(0, round2(t.TotalAmount-paid))
	t.PaymentStatus = t.derivePaymentStatus(now)
}

// derivePaymentStatus applies the derivation rules in priority order. The
// refunded override is applied by AppendRefund, not here: a ledger that
// merely nets to zero after partial refunds is unpaid, not refunded.
func (t *Transaction) derivePaymentStatus(now time.Time) PaymentStatus {
	var status PaymentStatus
	switch {
	case t.PaidAmount <= 0:
		status = PaymentUnpaid
	case t.PaidAmount < t.TotalAmount:
		status = PaymentPartial
	case t.TotalAmount > 0:
		status = PaymentPaid
	default:
		status = PaymentUnpaid
	}

	if status == PaymentUnpaid || status == PaymentPartial {
		if t.DueDate != nil && now.After(*t.DueDate) && t.Status != StatusCancelled {
			status = PaymentOverdue
		}
	}
	return status
}

// RefreshPaymentStatus recomputes the derived payment status against the
// given clock. Used by read paths and the overdue scan so a record that
// crosses its due date without traffic still reports overdue.
func (t *Transaction) RefreshPaymentStatus(now time.Time) PaymentStatus {
	if t.PaymentStatus == PaymentRefunded {
		return PaymentRefunded
	}
	t.PaymentStatus = t.derivePaymentStatus(now)
	return t.PaymentStatus
}

package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func paidSale(total float64) *Transaction {
	return &Transaction{
		Kind:          KindSale,
		Status:        StatusCompleted,
		TotalAmount:   total,
		BalanceAmount: total,
		PaymentStatus: PaymentUnpaid,
	}
}

func TestPaymentLifecycle(t *testing.T) {
	now := time.Now()
	tx := paidSale(1800)

	err := tx.AppendPayment(PaymentEvent{Amount: 800, Method: MethodCash, RecordedBy: 1}, PaymentPolicy{}, now)
	require.NoError(t, err)
	require.Equal(t, PaymentPartial, tx.PaymentStatus)
	require.InDelta(t, 1000.0, tx.BalanceAmount, 0.001)

	err = tx.AppendPayment(PaymentEvent{Amount: 1000, Method: MethodUPI, RecordedBy: 1}, PaymentPolicy{}, now)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, tx.PaymentStatus)
	require.InDelta(t, 0.0, tx.BalanceAmount, 0.001)

	err = tx.AppendPayment(PaymentEvent{Amount: 100, Method: MethodCash, RecordedBy: 1}, PaymentPolicy{}, now)
	require.ErrorIs(t, err, ErrOverpayment)
}

func TestOverpaymentPolicy(t *testing.T) {
	now := time.Now()
	tx := paidSale(500)

	err := tx.AppendPayment(PaymentEvent{Amount: 600, Method: MethodCash, RecordedBy: 1}, PaymentPolicy{AllowOverpayment: true}, now)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, tx.PaymentStatus)
	require.InDelta(t, 0.0, tx.BalanceAmount, 0.001)
	require.InDelta(t, 600.0, tx.PaidAmount, 0.001)
}

func TestBalanceNonIncreasing(t *testing.T) {
	now := time.Now()
	tx := paidSale(1000)
	prev := tx.BalanceAmount
	for _, amount := range []float64{100, 250, 400, 250} {
		err := tx.AppendPayment(PaymentEvent{Amount: amount, Method: MethodCard, RecordedBy: 1}, PaymentPolicy{}, now)
		require.NoError(t, err)
		require.LessOrEqual(t, tx.BalanceAmount, prev)
		prev = tx.BalanceAmount
	}
}

func TestRefundBounds(t *testing.T) {
	now := time.Now()
	tx := paidSale(1000)
	require.NoError(t, tx.AppendPayment(PaymentEvent{Amount: 300, Method: MethodCash, RecordedBy: 1}, PaymentPolicy{}, now))

	_, err := tx.AppendRefund(500, 1, "changed mind", now)
	require.ErrorIs(t, err, ErrOverRefund)

	ev, err := tx.AppendRefund(300, 1, "changed mind", now)
	require.NoError(t, err)
	require.InDelta(t, -300.0, ev.Amount, 0.001)
	require.Equal(t, MethodRefund, ev.Method)
	require.Equal(t, PaymentRefunded, tx.PaymentStatus)
	require.InDelta(t, 0.0, tx.PaidAmount, 0.001)

	// Nothing left to give back.
	_, err = tx.AppendRefund(1, 1, "again", now)
	require.ErrorIs(t, err, ErrOverRefund)
}

func TestRefundRejectsDirectNegativePayment(t *testing.T) {
	tx := paidSale(100)
	err := tx.AppendPayment(PaymentEvent{Amount: -50, Method: MethodCash, RecordedBy: 1}, PaymentPolicy{}, time.Now())
	require.ErrorIs(t, err, ErrValidation)

	err = tx.AppendPayment(PaymentEvent{Amount: 50, Method: MethodRefund, RecordedBy: 1}, PaymentPolicy{}, time.Now())
	require.ErrorIs(t, err, ErrValidation)
}

func TestOverdueOverride(t *testing.T) {
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	tx := &Transaction{
		Kind:          KindInvoice,
		Status:        StatusSent,
		TotalAmount:   900,
		BalanceAmount: 900,
		PaymentStatus: PaymentUnpaid,
		DueDate:       &due,
	}

	require.Equal(t, PaymentUnpaid, tx.RefreshPaymentStatus(due.AddDate(0, 0, -1)))
	require.Equal(t, PaymentOverdue, tx.RefreshPaymentStatus(due.AddDate(0, 0, 1)))

	// Cancelled invoices never report overdue.
	tx.Status = StatusCancelled
	require.Equal(t, PaymentUnpaid, tx.RefreshPaymentStatus(due.AddDate(0, 0, 1)))
}

func TestNoPaymentsOnCancelledRecord(t *testing.T) {
	tx := paidSale(100)
	tx.Status = StatusCancelled
	err := tx.AppendPayment(PaymentEvent{Amount: 50, Method: MethodCash, RecordedBy: 1}, PaymentPolicy{}, time.Now())
	require.ErrorIs(t, err, ErrImmutableRecord)
}

package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServiceWorkflow(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	tx := &Transaction{Kind: KindService, Status: StatusPending}

	require.NoError(t, tx.ApplyTransition(StatusInProgress, 7, now, ""))
	require.NotNil(t, tx.StartedAt)
	started := *tx.StartedAt

	require.NoError(t, tx.ApplyTransition(StatusOnHold, 7, now.Add(time.Hour), "awaiting part"))
	require.NoError(t, tx.ApplyTransition(StatusInProgress, 7, now.Add(2*time.Hour), ""))
	// Re-entering in_progress must not overwrite the original stamp.
	require.Equal(t, started, *tx.StartedAt)

	require.NoError(t, tx.ApplyTransition(StatusCompleted, 7, now.Add(3*time.Hour), ""))
	require.NotNil(t, tx.CompletedAt)
	require.Len(t, tx.History, 4)

	err := tx.ApplyTransition(StatusPending, 7, now.Add(4*time.Hour), "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSaleWorkflow(t *testing.T) {
	now := time.Now()
	tx := &Transaction{Kind: KindSale, Status: StatusDraft}

	require.NoError(t, tx.ApplyTransition(StatusCompleted, 1, now, ""))
	require.NotNil(t, tx.CompletedAt)
	require.NoError(t, tx.ApplyTransition(StatusReturned, 1, now, "customer return"))
	require.ErrorIs(t, tx.ApplyTransition(StatusCompleted, 1, now, ""), ErrInvalidTransition)
}

func TestInvoiceWorkflow(t *testing.T) {
	now := time.Now()
	tx := &Transaction{Kind: KindInvoice, Status: StatusDraft}

	require.NoError(t, tx.ApplyTransition(StatusSent, 1, now, ""))
	require.NoError(t, tx.ApplyTransition(StatusViewed, 1, now, ""))
	require.NoError(t, tx.ApplyTransition(StatusPaid, 1, now, ""))
	require.NotNil(t, tx.CompletedAt)

	// Refund is the only move out of paid.
	require.ErrorIs(t, tx.ApplyTransition(StatusSent, 1, now, ""), ErrInvalidTransition)
	require.NoError(t, tx.ApplyTransition(StatusRefunded, 1, now, "warranty claim"))
	require.ErrorIs(t, tx.ApplyTransition(StatusPaid, 1, now, ""), ErrInvalidTransition)
}

func TestCancelFromAnyOpenServiceState(t *testing.T) {
	now := time.Now()
	for _, from := range []Status{StatusPending, StatusInProgress, StatusOnHold} {
		tx := &Transaction{Kind: KindService, Status: from}
		require.NoError(t, tx.ApplyTransition(StatusCancelled, 1, now, "walk-out"), "from %s", from)
	}
}

func TestTransitionRejectsForeignStatus(t *testing.T) {
	tx := &Transaction{Kind: KindSale, Status: StatusDraft}
	err := tx.ApplyTransition(StatusInProgress, 1, time.Now(), "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestDeletedRecordRejectsTransitions(t *testing.T) {
	tx := &Transaction{
		Kind:    KindSale,
		Status:  StatusDraft,
		Deleted: &Tombstone{At: time.Now(), By: 1},
	}
	err := tx.ApplyTransition(StatusCompleted, 1, time.Now(), "")
	require.ErrorIs(t, err, ErrImmutableRecord)
}

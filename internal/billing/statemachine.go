package billing

import (
	"fmt"
	"time"
)

// transitions lists, per kind, the legal moves out of each state. A state
// missing from the inner map is terminal.
var transitions = map[Kind]map[Status][]Status{
	KindSale: {
		StatusDraft:     {StatusCompleted, StatusCancelled},
		StatusCompleted: {StatusCancelled, StatusReturned},
	},
	KindService: {
		StatusPending:    {StatusInProgress, StatusCancelled},
		StatusInProgress: {StatusOnHold, StatusCompleted, StatusCancelled},
		StatusOnHold:     {StatusInProgress, StatusCancelled},
	},
	KindInvoice: {
		StatusDraft:  {StatusSent, StatusCancelled, StatusRefunded},
		StatusSent:   {StatusViewed, StatusPaid, StatusCancelled, StatusRefunded},
		StatusViewed: {StatusPaid, StatusCancelled, StatusRefunded},
		StatusPaid:   {StatusRefunded},
	},
}

// isTerminal reports whether no transition leaves the given state. For
// invoices, paid is not strictly terminal: a refund may still follow.
func isTerminal(kind Kind, status Status) bool {
	if kind == KindInvoice && status == StatusPaid {
		// Refundable, but closed for everything else.
		return true
	}
	return len(transitions[kind][status]) == 0
}

// CanTransition reports whether moving from -> to is legal for the kind.
func CanTransition(kind Kind, from, to Status) bool {
	for _, s := range transitions[kind][from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether the status belongs to the kind's state space.
func ValidStatus(kind Kind, status Status) bool {
	if _, ok := transitions[kind][status]; ok {
		return true
	}
	switch kind {
	case KindSale:
		return status == StatusCancelled || status == StatusReturned
	case KindService:
		return status == StatusCompleted || status == StatusCancelled
	case KindInvoice:
		return status == StatusCancelled || status == StatusRefunded
	}
	return false
}

// ApplyTransition moves the transaction to the target status, appending one
// history entry and stamping started/completed timestamps the first time the
// corresponding state is entered. It mutates the in-memory record only; the
// caller persists.
func (t *Transaction) ApplyTransition(to Status, actor int64, at time.Time, reason string) error {
	if t.IsDeleted() {
		return fmt.Errorf("%w: record is deleted", ErrImmutableRecord)
	}
	if !ValidStatus(t.Kind, to) {
		return fmt.Errorf("%w: %q is not a %s status", ErrValidation, to, t.Kind)
	}
	if !CanTransition(t.Kind, t.Status, to) {
		return fmt.Errorf("%w: %s -> %s not permitted for %s", ErrInvalidTransition, t.Status, to, t.Kind)
	}

	t.Status = to
	t.History = append(t.History, StatusChange{
		Status:    to,
		ChangedBy: actor,
		ChangedAt: at,
		Reason:    reason,
	})

	// Work-started and completion stamps are set once and never
	// overwritten by re-entry.
	if to == StatusInProgress && t.StartedAt == nil {
		stamp := at
		t.StartedAt = &stamp
	}
	if completionStatus(t.Kind, to) && t.CompletedAt == nil {
		stamp := at
		t.CompletedAt = &stamp
	}
	return nil
}

// completionStatus reports whether the status represents successful
// completion for the kind.
func completionStatus(kind Kind, status Status) bool {
	switch kind {
	case KindSale:
		return status == StatusCompleted
	case KindService:
		return status == StatusCompleted
	case KindInvoice:
		return status == StatusPaid
	}
	return false
}

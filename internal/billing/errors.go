package billing

import "errors"

// Error taxonomy for the financial core. Handlers map these onto HTTP
// problem responses; services never downgrade one to a warning.
var (
	// ErrValidation covers malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition is returned for a state change not permitted
	// from the current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrImmutableRecord is returned for financial mutations on a
	// terminal, paid or deleted record.
	ErrImmutableRecord = errors.New("record is immutable")
	// ErrOverpayment is returned when a payment would exceed the balance
	// and the overpayment policy does not allow it.
	ErrOverpayment = errors.New("payment exceeds balance")
	// ErrOverRefund is returned when a refund would exceed the amount
	// collected so far.
	ErrOverRefund = errors.New("refund exceeds collected amount")
	// ErrConflict covers settled-record deletion and duplicate document
	// numbers surfaced by the store's unique constraint.
	ErrConflict = errors.New("conflict with current state")
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
)

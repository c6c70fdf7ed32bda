// Package billing implements the financial core shared by sales, service
// tickets and invoices: one generalized transaction record with line items,
// a discount/tax specification, an append-only payment ledger and a
// kind-specific workflow state machine.
package billing

import "time"

// Kind discriminates the three transaction flavours.
type Kind string

const (
	KindSale    Kind = "sale"
	KindService Kind = "service"
	KindInvoice Kind = "invoice"
)

// Status is the workflow state. Which values are legal depends on the Kind;
// see statemachine.go for the transition tables.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusOnHold     Status = "on_hold"
	StatusSent       Status = "sent"
	StatusViewed     Status = "viewed"
	StatusPaid       Status = "paid"
	StatusRefunded   Status = "refunded"
)

// PaymentStatus is derived from the payment ledger, never set directly.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentOverdue  PaymentStatus = "overdue"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod enumerates how money moved.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodUPI          PaymentMethod = "upi"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheque       PaymentMethod = "cheque"
	MethodOther        PaymentMethod = "other"
	MethodRefund       PaymentMethod = "refund"
)

// ValidMethod reports whether m is an accepted payment method for a normal
// (non-refund) payment.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI, MethodBankTransfer, MethodCheque, MethodOther:
		return true
	}
	return false
}

// DiscountKind selects how DiscountSpec.Value is interpreted.
type DiscountKind string

const (
	DiscountNone       DiscountKind = "none"
	DiscountPercentage DiscountKind = "percentage"
	DiscountAmount     DiscountKind = "amount"
)

// LineItem is one priced unit inside a transaction. Owned exclusively by its
// parent; created and destroyed with it.
type LineItem struct {
	ID            int64    `json:"id"`
	TransactionID int64    `json:"transaction_id"`
	ItemID        *int64   `json:"item_id,omitempty"`
	Description   string   `json:"description"`
	Quantity      int      `json:"quantity"`
	UnitPrice     float64  `json:"unit_price"`
	Subtotal      float64  `json:"subtotal"`
	TaxRate       float64  `json:"tax_rate,omitempty"`
	TaxAmount     float64  `json:"tax_amount,omitempty"`
	Position      int      `json:"position"`
}

// DiscountSpec describes the discount applied to the whole transaction.
// Applied is derived and clamped to [0, subtotal].
type DiscountSpec struct {
	Kind    DiscountKind `json:"kind"`
	Value   float64      `json:"value"`
	Applied float64      `json:"applied"`
	Reason  string       `json:"reason,omitempty"`
}

// TaxSpec describes the single tax pass applied to the post-discount base.
type TaxSpec struct {
	Kind   string  `json:"kind,omitempty"`
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

// PaymentEvent is one recorded movement of money against a transaction.
// Events are immutable once recorded; refunds are separate negative-amount
// appends, never edits.
type PaymentEvent struct {
	ID            int64         `json:"id"`
	TransactionID int64         `json:"transaction_id"`
	Amount        float64       `json:"amount"`
	Method        PaymentMethod `json:"method"`
	Reference     string        `json:"reference,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	RecordedBy    int64         `json:"recorded_by"`
	RecordedAt    time.Time     `json:"recorded_at"`
}

// StatusChange is one append-only history entry.
type StatusChange struct {
	Status    Status    `json:"status"`
	ChangedBy int64     `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Reason    string    `json:"reason,omitempty"`
}

// Note is operational commentary. Notes stay attachable even on terminal or
// deleted records.
type Note struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Tombstone marks a soft-deleted record. Present or absent as a whole, so
// the three fields can never disagree.
type Tombstone struct {
	At     time.Time `json:"at"`
	By     int64     `json:"by"`
	Reason string    `json:"reason,omitempty"`
}

// Transaction generalizes a sale, a service ticket and an invoice.
type Transaction struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	Kind       Kind   `json:"kind"`
	CustomerID int64  `json:"customer_id"`
	// SourceID back-references the completed sale/service an invoice was
	// generated from.
	SourceID *int64 `json:"source_id,omitempty"`

	Items    []LineItem   `json:"items"`
	Discount DiscountSpec `json:"discount"`
	Tax      TaxSpec      `json:"tax"`

	Subtotal      float64 `json:"subtotal"`
	TotalAmount   float64 `json:"total_amount"`
	PaidAmount    float64 `json:"paid_amount"`
	BalanceAmount float64 `json:"balance_amount"`

	PaymentStatus PaymentStatus  `json:"payment_status"`
	Payments      []PaymentEvent `json:"payments,omitempty"`

	Status  Status         `json:"status"`
	History []StatusChange `json:"status_history,omitempty"`
	Notes   []Note         `json:"notes,omitempty"`

	DueDate     *time.Time `json:"due_date,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Deleted *Tombstone `json:"deleted,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDeleted reports whether the record carries a tombstone.
func (t *Transaction) IsDeleted() bool {
	return t.Deleted != nil
}

// IsTerminal reports whether the workflow status permits no further
// transition.
func (t *Transaction) IsTerminal() bool {
	return isTerminal(t.Kind, t.Status)
}

// FinancialsMutable reports whether items and discount may still change:
// non-terminal, not deleted, and for invoices not yet paid in full.
func (t *Transaction) FinancialsMutable() bool {
	if t.IsDeleted() || t.IsTerminal() {
		return false
	}
	if t.Kind == KindInvoice && t.PaymentStatus == PaymentPaid {
		return false
	}
	return true
}

// InitialStatus returns the status a freshly created transaction starts in.
func InitialStatus(kind Kind) Status {
	switch kind {
	case KindService:
		return StatusPending
	default:
		return StatusDraft
	}
}

// Package expenses records day-to-day shop outgoings: rent, electricity,
// parts purchases, tea for the counter. They feed the daily ledger as the
// outflow side.
package expenses

import "time"

// Category buckets an expense for reporting.
type Category string

const (
	CategoryRent      Category = "rent"
	CategoryUtilities Category = "utilities"
	CategoryParts     Category = "parts"
	CategorySalary    Category = "salary"
	CategorySupplies  Category = "supplies"
	CategoryOther     Category = "other"
)

// ValidCategory reports whether c is a known bucket.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryRent, CategoryUtilities, CategoryParts, CategorySalary, CategorySupplies, CategoryOther:
		return true
	}
	return false
}

// Expense is one recorded outgoing.
type Expense struct {
	ID          int64     `json:"id"`
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	PaidVia     string    `json:"paid_via"`
	ExpenseDate time.Time `json:"expense_date"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateExpenseRequest struct {
	Category    Category  `json:"category" validate:"required"`
	Description string    `json:"description" validate:"required,max=500"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	PaidVia     string    `json:"paid_via" validate:"required,oneof=cash card upi bank_transfer cheque other"`
	ExpenseDate time.Time `json:"expense_date" validate:"required"`
	Notes       *string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type UpdateExpenseRequest struct {
	Category    *Category  `json:"category,omitempty"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=500"`
	Amount      *float64   `json:"amount,omitempty" validate:"omitempty,gt=0"`
	PaidVia     *string    `json:"paid_via,omitempty" validate:"omitempty,oneof=cash card upi bank_transfer cheque other"`
	ExpenseDate *time.Time `json:"expense_date,omitempty"`
	Notes       *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type ListExpensesFilter struct {
	Category *Category
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// CategoryTotal is one row of the summary report.
type CategoryTotal struct {
	Category Category `json:"category"`
	Total    float64  `json:"total"`
	Count    int      `json:"count"`
}

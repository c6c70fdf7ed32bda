// Package ledger builds the daily cash summary the owner reads at closing
// time: what came in per payment method, what went back out as refunds,
// what was spent, and the net position.
package ledger

// DailySummary is the close-of-day view for one calendar day.
type DailySummary struct {
	Date string `json:"date"`

	CollectionsByMethod map[string]float64 `json:"collections_by_method"`
	TotalCollected      float64            `json:"total_collected"`
	TotalRefunded       float64            `json:"total_refunded"`
	NetCollected        float64            `json:"net_collected"`

	ExpenseTotal float64 `json:"expense_total"`
	NetCash      float64 `json:"net_cash"`

	SalesCompleted    int `json:"sales_completed"`
	ServicesCompleted int `json:"services_completed"`
	InvoicesIssued    int `json:"invoices_issued"`

	// Display carries locale-formatted figures for receipts and the
	// dashboard, Indian digit grouping included.
	Display DisplayAmounts `json:"display"`
}

// DisplayAmounts holds the pre-formatted currency strings.
type DisplayAmounts struct {
	TotalCollected string `json:"total_collected"`
	TotalRefunded  string `json:"total_refunded"`
	NetCollected   string `json:"net_collected"`
	ExpenseTotal   string `json:"expense_total"`
	NetCash        string `json:"net_cash"`
}

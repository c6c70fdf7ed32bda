package customers

import "time"

// Customer is a shop customer. The purchase/service counters and net value
// are maintained by the billing module inside its own transactions; this
// module only reads them.
type Customer struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
	Notes   *string `json:"notes,omitempty"`

	PurchaseCount int     `json:"purchase_count"`
	ServiceCount  int     `json:"service_count"`
	NetValue      float64 `json:"net_value"`

	IsActive  bool      `json:"is_active"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

package billing

import "time"

type lineItemReq struct {
	ItemID      *int64  `json:"item_id,omitempty" validate:"omitempty,gt=0"`
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	TaxRate     float64 `json:"tax_rate" validate:"gte=0,lte=100"`
}

type discountReq struct {
	Kind   DiscountKind `json:"kind" validate:"required,oneof=none percentage amount"`
	Value  float64      `json:"value" validate:"gte=0"`
	Reason string       `json:"reason,omitempty" validate:"max=500"`
}

type paymentReq struct {
	Amount    float64       `json:"amount" validate:"required,gt=0"`
	Method    PaymentMethod `json:"method" validate:"required,oneof=cash card upi bank_transfer cheque other"`
	Reference string        `json:"reference,omitempty" validate:"max=100"`
	Notes     string        `json:"notes,omitempty" validate:"max=500"`
}

type createReq struct {
	CustomerID int64         `json:"customer_id" validate:"required,gt=0"`
	Items      []lineItemReq `json:"items" validate:"dive"`
	Discount   *discountReq  `json:"discount,omitempty"`
	TaxKind    string        `json:"tax_kind,omitempty" validate:"max=20"`
	TaxRate    float64       `json:"tax_rate" validate:"gte=0,lte=100"`
	DueDate    *time.Time    `json:"due_date,omitempty"`
	Note       string        `json:"note,omitempty" validate:"max=2000"`
	// Payment settles (part of) the record in the same request, the counter
	// checkout case.
	Payment  *paymentReq `json:"payment,omitempty"`
	Complete bool        `json:"complete,omitempty"`
}

type updateReq struct {
	Items    *[]lineItemReq `json:"items,omitempty" validate:"omitempty,min=1,dive"`
	Discount *discountReq   `json:"discount,omitempty"`
	TaxKind  *string        `json:"tax_kind,omitempty"`
	TaxRate  *float64       `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	DueDate  *time.Time     `json:"due_date,omitempty"`
}

type statusReq struct {
	Status Status `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type refundReq struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"required,max=500"`
}

type noteReq struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type deleteReq struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type generateInvoiceReq struct {
	DueDate *time.Time `json:"due_date,omitempty"`
}

type listResp struct {
	Items      []Transaction `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

func (r createReq) toInput(kind Kind) CreateInput {
	in := CreateInput{
		Kind:       kind,
		CustomerID: r.CustomerID,
		Items:      toItemInputs(r.Items),
		TaxKind:    r.TaxKind,
		TaxRate:    r.TaxRate,
		DueDate:    r.DueDate,
		Note:       r.Note,
		Complete:   r.Complete,
	}
	if r.Discount != nil {
		in.Discount = DiscountSpec{Kind: r.Discount.Kind, Value: r.Discount.Value, Reason: r.Discount.Reason}
	}
	if r.Payment != nil {
		in.Payment = &PaymentInput{
			Amount:    r.Payment.Amount,
			Method:    r.Payment.Method,
			Reference: r.Payment.Reference,
			Notes:     r.Payment.Notes,
		}
	}
	return in
}

func (r updateReq) toInput() UpdateInput {
	in := UpdateInput{
		TaxKind: r.TaxKind,
		TaxRate: r.TaxRate,
		DueDate: r.DueDate,
	}
	if r.Items != nil {
		items := toItemInputs(*r.Items)
		in.Items = &items
	}
	if r.Discount != nil {
		in.Discount = &DiscountSpec{Kind: r.Discount.Kind, Value: r.Discount.Value, Reason: r.Discount.Reason}
	}
	return in
}

func toItemInputs(reqs []lineItemReq) []LineItemInput {
	items := make([]LineItemInput, len(reqs))
	for i, it := range reqs {
		items[i] = LineItemInput{
			ItemID:      it.ItemID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
		}
	}
	return items
}

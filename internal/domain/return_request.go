package domain

const (
	ReturnPending  = "Pending"
	ReturnApproved = "Approved"
	ReturnRejected = "Rejected"
	ReturnRefunded = "Refunded"
)

type ReturnRequest struct {
	Base
	OrderID  string  `json:"order_id" validate:"required"`
	Customer string  `json:"customer" validate:"required"`
	Product  string  `json:"product"`
	Reason   string  `json:"reason"`
	Amount   float64 `json:"amount" validate:"gte=0"`
	Status   string  `json:"status"`
}

func (r *ReturnRequest) RecordStatus() string { return r.Status }

func (r *ReturnRequest) SetStatus(status string) { r.Status = status }

func (r *ReturnRequest) SearchFields() []string {
	return []string{r.OrderID, r.Customer, r.Product, r.Reason}
}

func (r *ReturnRequest) FilterValue(field string) (string, bool) {
	return "", false
}

func (r *ReturnRequest) SortValue(key string) (any, bool) {
	switch key {
	case "customer":
		return r.Customer, true
	case "amount":
		return r.Amount, true
	}
	return r.baseSortValue(key)
}

func init() {
	register(Kind{
		Resource: "returns",
		Statuses: []string{ReturnPending, ReturnApproved, ReturnRejected, ReturnRefunded},
		SortKeys: map[string]SortType{"customer": SortText, "amount": SortNumeric},
		New:      func() Record { return &ReturnRequest{} },
	})
}

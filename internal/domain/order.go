package domain

const (
	OrderPending    = "Pending"
	OrderProcessing = "Processing"
	OrderShipped    = "Shipped"
	OrderDelivered  = "Delivered"
	OrderCancelled  = "Cancelled"
)

// Order is a storefront purchase as seen from the vendor and admin dashboards.
type Order struct {
	Base
	Customer        string      `json:"customer" validate:"required"`
	Email           string      `json:"email" validate:"omitempty,email"`
	VendorID        string      `json:"vendor_id"`
	Items           []OrderItem `json:"items" validate:"dive"`
	Total           float64     `json:"total" validate:"gte=0"`
	ShippingAddress Address     `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
	Status          string      `json:"status"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name" validate:"required"`
	Quantity  int     `json:"quantity" validate:"min=1"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// Address is shared by orders and vendor registrations.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

func (o *Order) RecordStatus() string { return o.Status }

func (o *Order) SetStatus(status string) { o.Status = status }

func (o *Order) SearchFields() []string {
	fields := []string{o.ID, o.Customer, o.Email}
	for _, it := range o.Items {
		fields = append(fields, it.Name)
	}
	return fields
}

func (o *Order) FilterValue(field string) (string, bool) {
	switch field {
	case "vendor":
		return o.VendorID, true
	case "payment_method":
		return o.PaymentMethod, true
	}
	return "", false
}

func (o *Order) SortValue(key string) (any, bool) {
	switch key {
	case "customer":
		return o.Customer, true
	case "total":
		return o.Total, true
	}
	return o.baseSortValue(key)
}

func init() {
	register(Kind{
		Resource: "orders",
		Statuses: []string{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled},
		SortKeys: map[string]SortType{"customer": SortText, "total": SortNumeric},
		New:      func() Record { return &Order{} },
	})
}

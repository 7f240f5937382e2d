package domain

const (
	InspectionPending = "Pending"
	InspectionPassed  = "Passed"
	InspectionFailed  = "Failed"
)

// Inspection is a quality-control checklist filled in before a vendor's goods ship.
type Inspection struct {
	Base
	CheckerID string           `json:"checker_id" validate:"required"`
	VendorID  string           `json:"vendor_id" validate:"required"`
	OrderID   string           `json:"order_id"`
	Items     []InspectionItem `json:"items" validate:"dive"`
	Notes     string           `json:"notes"`
	Status    string           `json:"status"`
}

// InspectionItem is one checklist line.
type InspectionItem struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Defects  int    `json:"defects" validate:"gte=0"`
	Result   string `json:"result" validate:"omitempty,oneof=pass fail"`
	Remarks  string `json:"remarks"`
}

func (i *Inspection) RecordStatus() string { return i.Status }

func (i *Inspection) SetStatus(status string) { i.Status = status }

func (i *Inspection) SearchFields() []string {
	fields := []string{i.CheckerID, i.VendorID, i.OrderID, i.Notes}
	for _, it := range i.Items {
		fields = append(fields, it.Name)
	}
	return fields
}

func (i *Inspection) FilterValue(field string) (string, bool) {
	switch field {
	case "checker":
		return i.CheckerID, true
	case "vendor":
		return i.VendorID, true
	}
	return "", false
}

func (i *Inspection) SortValue(key string) (any, bool) {
	switch key {
	case "checker_id":
		return i.CheckerID, true
	case "vendor_id":
		return i.VendorID, true
	}
	return i.baseSortValue(key)
}

func init() {
	register(Kind{
		Resource: "inspections",
		Statuses: []string{InspectionPending, InspectionPassed, InspectionFailed},
		SortKeys: map[string]SortType{"checker_id": SortText, "vendor_id": SortText},
		New:      func() Record { return &Inspection{} },
	})
}

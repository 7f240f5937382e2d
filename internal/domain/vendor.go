package domain

const (
	VendorPending   = "PENDING"
	VendorApproved  = "APPROVED"
	VendorRejected  = "REJECTED"
	VendorSuspended = "SUSPENDED"
)

// Vendor is a seller account created by the registration wizard.
type Vendor struct {
	Base
	BusinessName string  `json:"business_name" validate:"required"`
	OwnerName    string  `json:"owner_name"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        string  `json:"phone"`
	TaxID        string  `json:"tax_id"`
	Address      Address `json:"address"`

	// SelectedCategories maps a category id to the subcategory names the vendor sells in.
	SelectedCategories map[string][]string `json:"selected_categories,omitempty"`
	Documents          []Document          `json:"documents,omitempty"`
	Status             string              `json:"status"`
}

// Document is metadata for a file uploaded with a registration. The bytes are not stored.
type Document struct {
	Field       string `json:"field"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (v *Vendor) RecordStatus() string { return v.Status }

func (v *Vendor) SetStatus(status string) { v.Status = status }

func (v *Vendor) SearchFields() []string {
	return []string{v.BusinessName, v.OwnerName, v.Email, v.Address.City}
}

func (v *Vendor) FilterValue(field string) (string, bool) {
	switch field {
	case "city":
		return v.Address.City, true
	case "state":
		return v.Address.State, true
	}
	return "", false
}

func (v *Vendor) SortValue(key string) (any, bool) {
	switch key {
	case "business_name":
		return v.BusinessName, true
	}
	return v.baseSortValue(key)
}

func init() {
	register(Kind{
		Resource: "vendors",
		Statuses: []string{VendorPending, VendorApproved, VendorRejected, VendorSuspended},
		SortKeys: map[string]SortType{"business_name": SortText},
		New:      func() Record { return &Vendor{} },
	})
}

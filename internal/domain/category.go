package domain

const (
	CategoryActive   = "ACTIVE"
	CategoryInactive = "INACTIVE"
)

// Category groups products in the storefront; subcategories render as child rows.
type Category struct {
	Base
	Name          string        `json:"name" validate:"required,max=100"`
	Description   string        `json:"description"`
	Status        string        `json:"status"`
	ProductCount  int           `json:"product_count" validate:"gte=0"`
	Subcategories []Subcategory `json:"subcategories,omitempty" validate:"dive"`
}

// Subcategory is owned by its parent category. Deleting the parent does not cascade client side.
type Subcategory struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Status string `json:"status"`
}

func (c *Category) RecordStatus() string { return c.Status }

func (c *Category) SetStatus(status string) { c.Status = status }

func (c *Category) SearchFields() []string {
	fields := []string{c.Name, c.Description}
	for _, s := range c.Subcategories {
		fields = append(fields, s.Name)
	}
	return fields
}

func (c *Category) FilterValue(field string) (string, bool) {
	return "", false
}

func (c *Category) SortValue(key string) (any, bool) {
	switch key {
	case "name":
		return c.Name, true
	case "product_count":
		return c.ProductCount, true
	}
	return c.baseSortValue(key)
}

func (c *Category) ChildCount() int { return len(c.Subcategories) }

func init() {
	register(Kind{
		Resource: "categories",
		Statuses: []string{CategoryActive, CategoryInactive},
		SortKeys: map[string]SortType{"name": SortText, "product_count": SortNumeric},
		New:      func() Record { return &Category{} },
	})
}

package domain

const (
	StockIn  = "IN_STOCK"
	StockLow = "LOW_STOCK"
	StockOut = "OUT_OF_STOCK"
)

// InventoryItem is a vendor's stock line for one product.
type InventoryItem struct {
	Base
	Name              string  `json:"name" validate:"required"`
	SKU               string  `json:"sku" validate:"required"`
	Category          string  `json:"category"`
	VendorID          string  `json:"vendor_id"`
	Price             float64 `json:"price" validate:"gt=0"`
	Stock             int     `json:"stock" validate:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
	Status            string  `json:"status"`
}

func (i *InventoryItem) RecordStatus() string { return i.Status }

func (i *InventoryItem) SetStatus(status string) { i.Status = status }

func (i *InventoryItem) SearchFields() []string {
	return []string{i.Name, i.SKU, i.Category}
}

func (i *InventoryItem) FilterValue(field string) (string, bool) {
	switch field {
	case "category":
		return i.Category, true
	case "vendor":
		return i.VendorID, true
	}
	return "", false
}

func (i *InventoryItem) SortValue(key string) (any, bool) {
	switch key {
	case "name":
		return i.Name, true
	case "sku":
		return i.SKU, true
	case "price":
		return i.Price, true
	case "stock":
		return i.Stock, true
	}
	return i.baseSortValue(key)
}

// StockStatus derives the status a stock level implies.
func StockStatus(stock, lowThreshold int) string {
	switch {
	case stock <= 0:
		return StockOut
	case stock <= lowThreshold:
		return StockLow
	default:
		return StockIn
	}
}

func init() {
	register(Kind{
		Resource: "inventory",
		Statuses: []string{StockIn, StockLow, StockOut},
		SortKeys: map[string]SortType{"name": SortText, "sku": SortText, "price": SortNumeric, "stock": SortNumeric},
		New:      func() Record { return &InventoryItem{} },
	})
}

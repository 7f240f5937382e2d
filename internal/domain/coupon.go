package domain

import "time"

const (
	CouponActive   = "ACTIVE"
	CouponInactive = "INACTIVE"
	CouponExpired  = "EXPIRED"
)

type Coupon struct {
	Base
	Code          string     `json:"code" validate:"required"`
	Description   string     `json:"description"`
	DiscountType  string     `json:"discount_type" validate:"omitempty,oneof=percentage fixed"`
	DiscountValue float64    `json:"discount_value" validate:"gte=0"`
	UsageCount    int        `json:"usage_count" validate:"gte=0"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Status        string     `json:"status"`
}

func (c *Coupon) RecordStatus() string { return c.Status }

func (c *Coupon) SetStatus(status string) { c.Status = status }

func (c *Coupon) SearchFields() []string {
	return []string{c.Code, c.Description}
}

func (c *Coupon) FilterValue(field string) (string, bool) {
	if field == "discount_type" {
		return c.DiscountType, true
	}
	return "", false
}

func (c *Coupon) SortValue(key string) (any, bool) {
	switch key {
	case "code":
		return c.Code, true
	case "discount_value":
		return c.DiscountValue, true
	case "usage_count":
		return c.UsageCount, true
	}
	return c.baseSortValue(key)
}

func init() {
	register(Kind{
		Resource: "coupons",
		Statuses: []string{CouponActive, CouponInactive, CouponExpired},
		SortKeys: map[string]SortType{"code": SortText, "discount_value": SortNumeric, "usage_count": SortNumeric},
		New:      func() Record { return &Coupon{} },
	})
}

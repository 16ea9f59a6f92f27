package shop

import (
	"time"

	"eventhub/internal/model"
)

type Totals struct {
	Subtotal         int64 `json:"subtotal"`
	EligibleSubtotal int64 `json:"eligible_subtotal"`
	Discount         int64 `json:"discount_amount"`
	Total            int64 `json:"total"`
}

// Line is a priced cart item.
type Line struct {
	CartItemID int64
	Item       *model.Item
	Price      int64
}

func Lines(items []model.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, ci := range items {
		if ci.Item == nil {
			continue
		}
		lines = append(lines, Line{CartItemID: ci.ID, Item: ci.Item, Price: EffectivePrice(ci.Item)})
	}
	return lines
}

// EligibleLines returns the lines a discount code applies to.
func EligibleLines(lines []Line, dc *model.DiscountCode) []Line {
	if dc == nil {
		return nil
	}
	var out []Line
	for _, l := range lines {
		if Targets(dc, l.Item.Type, l.Item.ID) {
			out = append(out, l)
		}
	}
	return out
}

// CartTotals prices lines and applies dc to the eligible part. An invalid code
// contributes no discount.
func CartTotals(lines []Line, dc *model.DiscountCode, now time.Time) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.Price
	}
	if dc != nil && ValidateDiscount(dc, t.Subtotal, now) == nil {
		for _, l := range EligibleLines(lines, dc) {
			t.EligibleSubtotal += l.Price
		}
		t.Discount = DiscountAmount(dc, t.EligibleSubtotal)
		if t.Discount > t.Subtotal {
			t.Discount = t.Subtotal
		}
	}
	t.Total = t.Subtotal - t.Discount
	return t
}

// LineDiscount is the per-item discount used by partial checkout.
func LineDiscount(l Line, dc *model.DiscountCode, now time.Time) int64 {
	if dc == nil || !Targets(dc, l.Item.Type, l.Item.ID) {
		return 0
	}
	if ValidateDiscount(dc, l.Price, now) != nil {
		return 0
	}
	return DiscountAmount(dc, l.Price)
}

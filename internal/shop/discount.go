package shop

import (
	"errors"
	"strings"
	"time"

	"eventhub/internal/model"
)

var (
	ErrDiscountInactive     = errors.New("discount code is not active")
	ErrDiscountNotStarted   = errors.New("discount code is not valid yet")
	ErrDiscountExpired      = errors.New("discount code has expired")
	ErrDiscountMinAmount    = errors.New("order amount is below the discount minimum")
	ErrDiscountExhausted    = errors.New("discount code usage limit reached")
	ErrDiscountUserLimit    = errors.New("you have already used this discount code")
	ErrDiscountNotEligible  = errors.New("discount code does not apply to any item in your cart")
	ErrDiscountMisconfigure = errors.New("discount code must define exactly one of percentage or amount")
)

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckDiscountShape enforces the percentage XOR amount rule.
func CheckDiscountShape(dc *model.DiscountCode) error {
	if (dc.Percentage == nil) == (dc.Amount == nil) {
		return ErrDiscountMisconfigure
	}
	if dc.Percentage != nil && (*dc.Percentage <= 0 || *dc.Percentage > 100*model.PercentScale) {
		return ErrDiscountMisconfigure
	}
	if dc.Amount != nil && *dc.Amount <= 0 {
		return ErrDiscountMisconfigure
	}
	return nil
}

// ValidateDiscount checks the activity flag, validity window, minimum amount and global quota.
func ValidateDiscount(dc *model.DiscountCode, subtotal int64, now time.Time) error {
	if !dc.IsActive {
		return ErrDiscountInactive
	}
	if dc.ValidFrom != nil && now.Before(*dc.ValidFrom) {
		return ErrDiscountNotStarted
	}
	if dc.ValidTo != nil && now.After(*dc.ValidTo) {
		return ErrDiscountExpired
	}
	if subtotal < dc.MinOrderAmount {
		return ErrDiscountMinAmount
	}
	if dc.MaxUses != nil && dc.TimesUsed >= *dc.MaxUses {
		return ErrDiscountExhausted
	}
	return nil
}

// CheckUserQuota compares redemptions by one user with max_uses_per_user.
func CheckUserQuota(dc *model.DiscountCode, used int) error {
	if dc.MaxUsesPerUser != nil && used >= *dc.MaxUsesPerUser {
		return ErrDiscountUserLimit
	}
	return nil
}

// DiscountAmount is the reduction for base. Percentages round half to even to a whole unit
// and fixed amounts never exceed base.
func DiscountAmount(dc *model.DiscountCode, base int64) int64 {
	if base <= 0 {
		return 0
	}
	var off int64
	switch {
	case dc.Percentage != nil:
		off = roundHalfEven(base*int64(*dc.Percentage), 100*model.PercentScale)
	case dc.Amount != nil:
		off = *dc.Amount
	}
	if off > base {
		off = base
	}
	if off < 0 {
		off = 0
	}
	return off
}

func roundHalfEven(n, d int64) int64 {
	q, r := n/d, n%d
	if 2*r > d || (2*r == d && q%2 == 1) {
		q++
	}
	return q
}

// Targets reports whether the code applies to the given item. A code without a target applies to everything.
func Targets(dc *model.DiscountCode, itemType string, itemID int64) bool {
	if dc.TargetType == nil || dc.TargetID == nil {
		return true
	}
	return *dc.TargetType == itemType && *dc.TargetID == itemID
}

package coupon

import (
	"errors"
	"time"

	"codemart/internal/models"
)

var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrMinPurchaseNotMet = errors.New("minimum purchase not met")
	ErrCouponExhausted   = errors.New("coupon usage limit reached")
)

// Evaluate applies a coupon to a base amount and returns the discounted
// amount. It never mutates the coupon; redemption accounting happens in
// the store. The result is clamped at zero.
func Evaluate(base float64, c *models.Coupon, now time.Time) (float64, error) {
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return 0, ErrCouponExpired
	}
	if base < c.MinPurchase {
		return 0, ErrMinPurchaseNotMet
	}

	amount := base
	switch c.DiscountType {
	case models.DiscountFlat:
		amount -= c.DiscountValue
	case models.DiscountPercent:
		amount -= base * c.DiscountValue / 100
	}

	if amount < 0 {
		amount = 0
	}
	return amount, nil
}

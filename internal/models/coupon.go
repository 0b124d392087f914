package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	DiscountFlat    = "flat"
	DiscountPercent = "percent"
)

type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID            string     `bun:"id,pk" json:"id"`
	Code          string     `bun:"code,unique,notnull" json:"code"`
	DiscountType  string     `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue float64    `bun:"discount_value,notnull" json:"discount_value"`
	MinPurchase   float64    `bun:"min_purchase,notnull,default:0" json:"min_purchase"`
	MaxUses       *int       `bun:"max_uses" json:"max_uses,omitempty"`
	Uses          int        `bun:"uses,notnull,default:0" json:"uses"`
	ExpiresAt     *time.Time `bun:"expires_at" json:"expires_at,omitempty"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

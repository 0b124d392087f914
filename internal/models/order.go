package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	OrderPending   = "pending"
	OrderCompleted = "completed"

	// FreePaymentRef marks orders settled without a gateway round trip.
	// Both the intent and confirmation references carry it.
	FreePaymentRef = "FREE"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID               string     `bun:"id,pk" json:"id"`
	ProductID        string     `bun:"product_id,notnull" json:"product_id"`
	UserID           string     `bun:"user_id,notnull" json:"user_id"`
	Amount           float64    `bun:"amount,notnull" json:"amount"`
	CouponCode       string     `bun:"coupon_code,nullzero" json:"coupon_code,omitempty"`
	GatewayOrderID   string     `bun:"gateway_order_id,notnull" json:"gateway_order_id"`
	GatewayPaymentID string     `bun:"gateway_payment_id,nullzero" json:"gateway_payment_id,omitempty"`
	Status           string     `bun:"status,notnull" json:"status"`
	LicenseKey       string     `bun:"license_key,nullzero" json:"license_key,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	PaidAt           *time.Time `bun:"paid_at" json:"paid_at,omitempty"`
}

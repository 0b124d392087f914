package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Review struct {
	bun.BaseModel `bun:"table:reviews"`

	ID         string    `bun:"id,pk" json:"id"`
	ProductID  string    `bun:"product_id,notnull" json:"product_id"`
	UserID     string    `bun:"user_id,notnull" json:"user_id"`
	UserName   string    `bun:"user_name,notnull" json:"user_name"`
	Rating     int       `bun:"rating,notnull" json:"rating"`
	Comment    string    `bun:"comment,nullzero" json:"comment"`
	IsApproved bool      `bun:"is_approved,notnull,default:false" json:"is_approved"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

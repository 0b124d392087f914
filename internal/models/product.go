package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Product struct {
	bun.BaseModel `bun:"table:products"`

	ID           string    `bun:"id,pk" json:"id"`
	Title        string    `bun:"title,notnull" json:"title"`
	Tagline      string    `bun:"tagline,nullzero" json:"tagline"`
	Description  string    `bun:"description,nullzero" json:"description"`
	Price        float64   `bun:"price,notnull" json:"price"`
	Category     string    `bun:"category,nullzero" json:"category"`
	Tags         []string  `bun:"tags,array" json:"tags"`
	TechStack    []string  `bun:"tech_stack,array" json:"tech_stack"`
	DemoURL      string    `bun:"demo_url,nullzero" json:"demo_url,omitempty"`
	LicenseType  string    `bun:"license_type,nullzero" json:"license_type"`
	Thumbnail    string    `bun:"thumbnail,nullzero" json:"thumbnail,omitempty"`
	Gallery      []string  `bun:"gallery,array" json:"gallery"`
	IsPublished  bool      `bun:"is_published,notnull" json:"is_published"`
	FilePath     string    `bun:"file_path,nullzero" json:"file_path,omitempty"`
	Downloads    int64     `bun:"downloads,notnull,default:0" json:"downloads"`
	Rating       float64   `bun:"rating,notnull,default:0" json:"rating"`
	ReviewsCount int       `bun:"reviews_count,notnull,default:0" json:"reviews_count"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// ProductUpsert carries the admin-editable fields of a product.
// Downloads, rating and reviews_count are owned by the settlement
// and review pipelines and are never written through this struct.
type ProductUpsert struct {
	Title       string   `json:"title"`
	Tagline     string   `json:"tagline"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	TechStack   []string `json:"tech_stack"`
	DemoURL     string   `json:"demo_url"`
	LicenseType string   `json:"license_type"`
	Thumbnail   string   `json:"thumbnail"`
	Gallery     []string `json:"gallery"`
	IsPublished bool     `json:"is_published"`
}
